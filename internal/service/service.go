package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/backend"
	"github.com/Kerhoff/toyrent/internal/models"
	"github.com/Kerhoff/toyrent/internal/storage"
	"github.com/Kerhoff/toyrent/internal/store"
)

// ErrInvalidInput is wrapped by errors caused by the caller's arguments
var ErrInvalidInput = errors.New("invalid input")

// Backend is the part of the API client the service drives
type Backend interface {
	store.Loader

	SendOTP(ctx context.Context, phone string) error
	VerifyOTP(ctx context.Context, phone, code string) (backend.TokenPair, error)
	UpdateProfile(ctx context.Context, update backend.ProfileUpdate) (backend.ProfileDTO, error)
	CreateChild(ctx context.Context, in backend.ChildInput) (backend.ChildDTO, error)
	UpdateChild(ctx context.Context, id int64, in backend.ChildInput) (backend.ChildDTO, error)
	DeleteChild(ctx context.Context, id int64) error
	CreateSubscription(ctx context.Context, in backend.SubscriptionInput) (backend.SubscriptionDTO, error)
	PauseSubscription(ctx context.Context, id int64) (backend.SubscriptionDTO, error)
	ResumeSubscription(ctx context.Context, id int64) (backend.SubscriptionDTO, error)
	CreateDeliveryAddress(ctx context.Context, in backend.DeliveryInfoInput) (backend.DeliveryInfoDTO, error)
	UpdateDeliveryAddress(ctx context.Context, id int64, in backend.DeliveryInfoInput) (backend.DeliveryInfoDTO, error)
	DeleteDeliveryAddress(ctx context.Context, id int64) error
}

// TokenSaver persists the bearer token pair after sign-in
type TokenSaver interface {
	Save(ctx context.Context, tokens storage.Tokens) error
}

// Service runs the user flows: every flow calls the backend first and only
// applies the confirmed result to the store.
type Service struct {
	backend Backend
	store   *store.Store
	tokens  TokenSaver
	logger  *logrus.Logger
}

// New creates a new Service with all required dependencies.
func New(b Backend, s *store.Store, tokens TokenSaver, logger *logrus.Logger) *Service {
	return &Service{backend: b, store: s, tokens: tokens, logger: logger}
}

// Store returns the state container the service mutates
func (s *Service) Store() *store.Store {
	return s.store
}

// RequestOTP asks the backend to send a one-time code to phone
func (s *Service) RequestOTP(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if err := s.backend.SendOTP(ctx, phone); err != nil {
		return fmt.Errorf("failed to request code for %s: %w", phone, err)
	}
	s.logger.Infof("Requested sign-in code for %s", phone)
	return nil
}

// VerifyOTP exchanges the code for tokens, saves them and loads the account
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) error {
	pair, err := s.backend.VerifyOTP(ctx, strings.TrimSpace(phone), strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("failed to verify code: %w", err)
	}
	if err := s.tokens.Save(ctx, storage.Tokens{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}
	s.logger.Infof("Signed in as %s", phone)

	if err := s.store.FetchInitData(ctx); err != nil {
		return err
	}
	return nil
}

// Refresh reloads all account data from the backend
func (s *Service) Refresh(ctx context.Context) error {
	return s.store.FetchInitData(ctx)
}

// AddChild creates a child profile. DateOfBirth may be given as DD.MM.YYYY
// or YYYY-MM-DD.
func (s *Service) AddChild(ctx context.Context, in backend.ChildInput) (*models.Child, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, fmt.Errorf("%w: child name is required", ErrInvalidInput)
	}
	in.DateOfBirth = store.ParseBirthDate(in.DateOfBirth)

	dto, err := s.backend.CreateChild(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create child: %w", err)
	}
	child := store.ChildFromDTO(dto)
	s.store.AddChild(child)
	s.logger.Infof("Added child %q (id=%d)", child.Name, child.ID)
	return &child, nil
}

// UpdateChild updates a child profile. The child's subscriptions are not
// part of the backend payload and are carried over from the store.
func (s *Service) UpdateChild(ctx context.Context, childID int64, in backend.ChildInput) (*models.Child, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DateOfBirth = store.ParseBirthDate(in.DateOfBirth)

	dto, err := s.backend.UpdateChild(ctx, childID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update child %d: %w", childID, err)
	}
	child := store.ChildFromDTO(dto)
	if existing := s.store.ChildByID(&childID); existing != nil {
		child.Subscriptions = existing.Subscriptions
	}
	s.store.UpdateChild(childID, child)
	return &child, nil
}

// RemoveChild deletes a child profile
func (s *Service) RemoveChild(ctx context.Context, childID int64) error {
	if err := s.backend.DeleteChild(ctx, childID); err != nil {
		return fmt.Errorf("failed to delete child %d: %w", childID, err)
	}
	s.store.RemoveChild(childID)
	s.logger.Infof("Removed child %d", childID)
	return nil
}

// CreateSubscription subscribes a child to a plan. The new subscription
// usually starts in pending_payment.
func (s *Service) CreateSubscription(ctx context.Context, in backend.SubscriptionInput) (*models.Subscription, error) {
	dto, err := s.backend.CreateSubscription(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription for child %d: %w", in.ChildID, err)
	}
	sub := store.SubscriptionFromDTO(dto)
	s.store.AddChildSubscription(sub.ChildID, sub)
	s.logger.Infof("Created subscription %d for child %d (plan=%d, status=%s)", sub.ID, sub.ChildID, sub.PlanID, sub.Status)
	return &sub, nil
}

// PauseSubscription pauses a subscription
func (s *Service) PauseSubscription(ctx context.Context, subID int64) (*models.Subscription, error) {
	dto, err := s.backend.PauseSubscription(ctx, subID)
	if err != nil {
		return nil, fmt.Errorf("failed to pause subscription %d: %w", subID, err)
	}
	return s.applySubscription(subID, dto), nil
}

// ResumeSubscription resumes a paused subscription
func (s *Service) ResumeSubscription(ctx context.Context, subID int64) (*models.Subscription, error) {
	dto, err := s.backend.ResumeSubscription(ctx, subID)
	if err != nil {
		return nil, fmt.Errorf("failed to resume subscription %d: %w", subID, err)
	}
	return s.applySubscription(subID, dto), nil
}

func (s *Service) applySubscription(subID int64, dto backend.SubscriptionDTO) *models.Subscription {
	sub := store.SubscriptionFromDTO(dto)
	s.store.UpdateChildSubscription(sub.ChildID, subID, sub)
	s.logger.Infof("Subscription %d is now %s", subID, sub.Status)
	return &sub
}

// AddDeliveryAddress creates a delivery address and selects it
func (s *Service) AddDeliveryAddress(ctx context.Context, in backend.DeliveryInfoInput) (*models.DeliveryAddress, error) {
	in.Address = strings.TrimSpace(in.Address)
	dto, err := s.backend.CreateDeliveryAddress(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery address: %w", err)
	}
	addr := store.AddressFromDTO(dto)
	s.store.AddDeliveryAddress(addr)
	return &addr, nil
}

// UpdateDeliveryAddress updates a delivery address
func (s *Service) UpdateDeliveryAddress(ctx context.Context, addrID int64, in backend.DeliveryInfoInput) (*models.DeliveryAddress, error) {
	in.Address = strings.TrimSpace(in.Address)
	dto, err := s.backend.UpdateDeliveryAddress(ctx, addrID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update delivery address %d: %w", addrID, err)
	}
	addr := store.AddressFromDTO(dto)
	s.store.UpdateDeliveryAddress(addrID, addr)
	return &addr, nil
}

// RemoveDeliveryAddress deletes a delivery address
func (s *Service) RemoveDeliveryAddress(ctx context.Context, addrID int64) error {
	if err := s.backend.DeleteDeliveryAddress(ctx, addrID); err != nil {
		return fmt.Errorf("failed to delete delivery address %d: %w", addrID, err)
	}
	s.store.RemoveDeliveryAddress(addrID)
	return nil
}

// UpdateName changes the user's display name
func (s *Service) UpdateName(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	dto, err := s.backend.UpdateProfile(ctx, backend.ProfileUpdate{Name: &name})
	if err != nil {
		return fmt.Errorf("failed to update name: %w", err)
	}
	s.store.SetUserName(dto.Name)
	return nil
}

// UpdatePhone changes the user's phone number
func (s *Service) UpdatePhone(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	dto, err := s.backend.UpdateProfile(ctx, backend.ProfileUpdate{Phone: &phone})
	if err != nil {
		return fmt.Errorf("failed to update phone: %w", err)
	}
	s.store.SetUserPhone(dto.Phone)
	return nil
}

// Logout signs out locally. Tokens live in the same storage and are wiped
// together with the persisted state.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.store.Logout(ctx); err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}
