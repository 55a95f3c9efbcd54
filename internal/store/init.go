package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Kerhoff/toyrent/internal/backend"
	"github.com/Kerhoff/toyrent/internal/models"
	"github.com/Kerhoff/toyrent/internal/retry"
)

// ErrNoLoader is returned by FetchInitData when the store has no backend
var ErrNoLoader = errors.New("store has no loader configured")

// Loader is the part of the backend client used for the initial data load
type Loader interface {
	Profile(ctx context.Context) (backend.ProfileDTO, error)
	Children(ctx context.Context) ([]backend.ChildDTO, error)
	Subscriptions(ctx context.Context) ([]backend.SubscriptionDTO, error)
	SubscriptionPlans(ctx context.Context) ([]backend.PlanDTO, error)
	Interests(ctx context.Context) ([]backend.ReferenceDTO, error)
	Skills(ctx context.Context) ([]backend.ReferenceDTO, error)
	DeliveryAddresses(ctx context.Context) ([]backend.DeliveryInfoDTO, error)
}

type initData struct {
	profile   backend.ProfileDTO
	children  []backend.ChildDTO
	subs      []backend.SubscriptionDTO
	plans     []backend.PlanDTO
	interests []backend.ReferenceDTO
	skills    []backend.ReferenceDTO
	addresses []backend.DeliveryInfoDTO
}

// FetchInitData loads everything the signed-in screens need. The seven
// requests run concurrently and are retried together. On failure the
// previously loaded data is left as is and the load error is recorded.
func (s *Store) FetchInitData(ctx context.Context) error {
	if s.loader == nil {
		return ErrNoLoader
	}
	start := time.Now()

	s.update(func() bool {
		s.status = StatusLoading
		s.loadErr = nil
		return true
	})
	s.logger.Info("Loading initial data")

	opts := append([]retry.Option{
		retry.WithLogger(s.logger),
		retry.WithOnRetry(func(int, time.Duration, error) { s.metrics.ObserveRetry() }),
	}, s.retryOpts...)

	data, err := retry.Do(ctx, s.fetchAll, opts...)
	s.metrics.ObserveInitFetch(start, err)
	if err != nil {
		s.update(func() bool {
			s.status = StatusFailed
			s.loadErr = err
			return true
		})
		s.logger.WithError(err).Error("Failed to load initial data")
		return fmt.Errorf("failed to load initial data: %w", err)
	}

	user := UserFromDTO(data.profile, data.children, data.subs, data.addresses, s.logger)
	plans := PlansFromDTO(data.plans)
	interests := ReferencesFromDTO(data.interests)
	skills := ReferencesFromDTO(data.skills)

	s.update(func() bool {
		s.account = newAccount(user)
		s.plans = plans
		s.interests = models.MergeReferences(s.interests, interests)
		s.skills = models.MergeReferences(s.skills, skills)
		s.status = StatusReady
		s.loadErr = nil
		return true
	})
	s.logger.WithField("children", len(user.Children)).Info("Initial data loaded")
	return nil
}

// fetchAll issues one round of the seven initial requests. The first failure
// cancels the rest.
func (s *Store) fetchAll(ctx context.Context) (*initData, error) {
	var d initData
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		d.profile, err = s.loader.Profile(ctx)
		return wrapFetch("profile", err)
	})
	g.Go(func() (err error) {
		d.children, err = s.loader.Children(ctx)
		return wrapFetch("children", err)
	})
	g.Go(func() (err error) {
		d.subs, err = s.loader.Subscriptions(ctx)
		return wrapFetch("subscriptions", err)
	})
	g.Go(func() (err error) {
		d.plans, err = s.loader.SubscriptionPlans(ctx)
		return wrapFetch("subscription plans", err)
	})
	g.Go(func() (err error) {
		d.interests, err = s.loader.Interests(ctx)
		return wrapFetch("interests", err)
	})
	g.Go(func() (err error) {
		d.skills, err = s.loader.Skills(ctx)
		return wrapFetch("skills", err)
	})
	g.Go(func() (err error) {
		d.addresses, err = s.loader.DeliveryAddresses(ctx)
		return wrapFetch("delivery addresses", err)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &d, nil
}

func wrapFetch(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to fetch %s: %w", what, err)
}
