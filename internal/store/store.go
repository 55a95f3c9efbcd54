// Package store is the process-wide client state container. It mirrors the
// backend's view of the signed-in account, applies mutations after confirmed
// backend calls and notifies observers of every change.
package store

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"github.com/Kerhoff/toyrent/internal/metrics"
	"github.com/Kerhoff/toyrent/internal/models"
	"github.com/Kerhoff/toyrent/internal/retry"
)

// LoadStatus is the state of the initial data load
type LoadStatus string

const (
	StatusIdle    LoadStatus = "idle"
	StatusLoading LoadStatus = "loading"
	StatusReady   LoadStatus = "ready"
	StatusFailed  LoadStatus = "failed"
)

// State is an immutable snapshot of the container
type State struct {
	User              *models.User              `json:"user"`
	SubscriptionPlans []models.SubscriptionPlan `json:"subscription_plans"`
	Interests         []models.Reference        `json:"interests"`
	Skills            []models.Reference        `json:"skills"`
	UI                models.UIState            `json:"ui"`
	Status            LoadStatus                `json:"status"`
	LoadError         string                    `json:"load_error,omitempty"`
}

// Clearer wipes durable client storage on logout
type Clearer interface {
	Clear(ctx context.Context) error
}

// Navigator performs a full navigation to path
type Navigator func(path string)

type observer struct {
	id int
	fn func(State)
}

// Store holds the client state. All methods are safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	account   *account // nil when signed out
	plans     []models.SubscriptionPlan
	interests []models.Reference
	skills    []models.Reference
	ui        models.UIState
	status    LoadStatus
	loadErr   error

	version *atomic.Int64

	// notifyMu keeps observer calls in mutation order
	notifyMu  sync.Mutex
	obsMu     sync.Mutex
	observers []observer
	nextObsID int

	logger    *logrus.Entry
	loader    Loader
	storage   Clearer
	navigate  Navigator
	retryOpts []retry.Option
	metrics   *metrics.Metrics
	selectors *lru.Cache
}

// Option configures a Store
type Option func(*Store)

// WithLoader sets the backend used by FetchInitData
func WithLoader(l Loader) Option {
	return func(s *Store) { s.loader = l }
}

// WithStorage sets the durable storage wiped by Logout
func WithStorage(c Clearer) Option {
	return func(s *Store) { s.storage = c }
}

// WithNavigator sets the navigation performed after Logout
func WithNavigator(n Navigator) Option {
	return func(s *Store) { s.navigate = n }
}

// WithRetry appends retry options used by FetchInitData
func WithRetry(opts ...retry.Option) Option {
	return func(s *Store) { s.retryOpts = append(s.retryOpts, opts...) }
}

// WithMetrics records desyncs and load outcomes
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithSelectorCacheSize sets how many memoized selector results are kept
func WithSelectorCacheSize(n int) Option {
	return func(s *Store) {
		if c, err := lru.New(n); err == nil {
			s.selectors = c
		}
	}
}

// New creates an empty, signed-out store
func New(logger *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		ui:      models.DefaultUIState(),
		status:  StatusIdle,
		version: atomic.NewInt64(0),
		logger:  logger.WithField("component", "store"),
	}
	s.navigate = func(path string) {
		s.logger.WithField("path", path).Info("Navigation requested")
	}
	s.selectors, _ = lru.New(128)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a deep copy of the current state
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Version returns a counter incremented by every change
func (s *Store) Version() int64 {
	return s.version.Load()
}

// Err returns the error of the last failed initial data load, if any
func (s *Store) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadErr
}

// Subscribe registers fn to run after every change with the new snapshot.
// Observers run synchronously, in mutation order, and must not mutate the
// store themselves. The returned function unsubscribes.
func (s *Store) Subscribe(fn func(State)) func() {
	s.obsMu.Lock()
	defer s.obsMu.Unlock()

	s.nextObsID++
	id := s.nextObsID
	s.observers = append(s.observers, observer{id: id, fn: fn})

	return func() {
		s.obsMu.Lock()
		defer s.obsMu.Unlock()
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

// update runs fn under the write lock. fn reports whether it changed
// anything; only changes bump the version and notify observers.
func (s *Store) update(fn func() bool) State {
	s.mu.Lock()
	changed := fn()
	if changed {
		s.version.Inc()
	}
	snap := s.snapshotLocked()
	if !changed {
		s.mu.Unlock()
		return snap
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	s.obsMu.Lock()
	observers := append([]observer(nil), s.observers...)
	s.obsMu.Unlock()
	for _, o := range observers {
		o.fn(snap)
	}
	return snap
}

func (s *Store) snapshotLocked() State {
	st := State{
		UI:     cloneUI(s.ui),
		Status: s.status,
	}
	if s.account != nil {
		st.User = s.account.materialize()
	}
	if s.plans != nil {
		st.SubscriptionPlans = clonePlans(s.plans)
	}
	st.Interests = cloneRefs(s.interests)
	st.Skills = cloneRefs(s.skills)
	if s.loadErr != nil {
		st.LoadError = s.loadErr.Error()
	}
	return st
}

// desync logs a mutation whose target is missing. Callers hold the write lock.
func (s *Store) desync(mutator string, fields logrus.Fields, msg string) {
	s.logger.WithField("mutator", mutator).WithFields(fields).Warn(msg)
	s.metrics.ObserveDesync(mutator)
}

func cloneUI(ui models.UIState) models.UIState {
	ui.EditingChildID = cloneID(ui.EditingChildID)
	ui.SelectedAddressID = cloneID(ui.SelectedAddressID)
	return ui
}

func cloneID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func clonePlans(plans []models.SubscriptionPlan) []models.SubscriptionPlan {
	out := make([]models.SubscriptionPlan, len(plans))
	for i, p := range plans {
		if p.Toys != nil {
			p.Toys = append([]models.ToyConfig(nil), p.Toys...)
		}
		out[i] = p
	}
	return out
}

func cloneRefs(refs []models.Reference) []models.Reference {
	if refs == nil {
		return nil
	}
	out := make([]models.Reference, len(refs))
	copy(out, refs)
	return out
}
