package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/toyrent/internal/backend"
	"github.com/Kerhoff/toyrent/internal/models"
	"github.com/Kerhoff/toyrent/internal/retry"
	"github.com/Kerhoff/toyrent/internal/storage"
	"github.com/Kerhoff/toyrent/internal/store"
)

// fakeBackend keeps a tiny server-side account in memory
type fakeBackend struct {
	mu       sync.Mutex
	fail     error
	nextID   int64
	profile  backend.ProfileDTO
	children []backend.ChildDTO
	subs     []backend.SubscriptionDTO
	addrs    []backend.DeliveryInfoDTO
	lastOTP  string
	loads    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		nextID:  1000,
		profile: backend.ProfileDTO{ID: 1, Name: "Anna", Phone: "+79990000000"},
		children: []backend.ChildDTO{
			{ID: 10, Name: "Masha", DateOfBirth: "2020-02-01", Gender: "female"},
		},
		subs: []backend.SubscriptionDTO{
			{ID: 100, UserID: 1, ChildID: 10, PlanID: 5, Status: "active"},
		},
	}
}

func (f *fakeBackend) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeBackend) Profile(ctx context.Context) (backend.ProfileDTO, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.profile, f.fail
}

func (f *fakeBackend) Children(ctx context.Context) ([]backend.ChildDTO, error) {
	return f.children, nil
}

func (f *fakeBackend) Subscriptions(ctx context.Context) ([]backend.SubscriptionDTO, error) {
	return f.subs, nil
}

func (f *fakeBackend) SubscriptionPlans(ctx context.Context) ([]backend.PlanDTO, error) {
	return []backend.PlanDTO{{ID: 5, Name: "Basic"}}, nil
}

func (f *fakeBackend) Interests(ctx context.Context) ([]backend.ReferenceDTO, error) {
	return nil, nil
}

func (f *fakeBackend) Skills(ctx context.Context) ([]backend.ReferenceDTO, error) {
	return nil, nil
}

func (f *fakeBackend) DeliveryAddresses(ctx context.Context) ([]backend.DeliveryInfoDTO, error) {
	return f.addrs, nil
}

func (f *fakeBackend) SendOTP(ctx context.Context, phone string) error {
	f.lastOTP = phone
	return f.fail
}

func (f *fakeBackend) VerifyOTP(ctx context.Context, phone, code string) (backend.TokenPair, error) {
	if code != "1234" {
		return backend.TokenPair{}, &backend.Error{StatusCode: 400, Message: "invalid code"}
	}
	return backend.TokenPair{Access: "access", Refresh: "refresh"}, nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, update backend.ProfileUpdate) (backend.ProfileDTO, error) {
	if f.fail != nil {
		return backend.ProfileDTO{}, f.fail
	}
	if update.Name != nil {
		f.profile.Name = *update.Name
	}
	if update.Phone != nil {
		f.profile.Phone = *update.Phone
	}
	return f.profile, nil
}

func (f *fakeBackend) CreateChild(ctx context.Context, in backend.ChildInput) (backend.ChildDTO, error) {
	if f.fail != nil {
		return backend.ChildDTO{}, f.fail
	}
	return backend.ChildDTO{ID: f.id(), Name: in.Name, DateOfBirth: in.DateOfBirth, Gender: in.Gender}, nil
}

func (f *fakeBackend) UpdateChild(ctx context.Context, id int64, in backend.ChildInput) (backend.ChildDTO, error) {
	if f.fail != nil {
		return backend.ChildDTO{}, f.fail
	}
	return backend.ChildDTO{ID: id, Name: in.Name, DateOfBirth: in.DateOfBirth, Gender: in.Gender}, nil
}

func (f *fakeBackend) DeleteChild(ctx context.Context, id int64) error {
	return f.fail
}

func (f *fakeBackend) CreateSubscription(ctx context.Context, in backend.SubscriptionInput) (backend.SubscriptionDTO, error) {
	if f.fail != nil {
		return backend.SubscriptionDTO{}, f.fail
	}
	return backend.SubscriptionDTO{ID: f.id(), UserID: 1, ChildID: in.ChildID, PlanID: in.PlanID,
		Status: "pending_payment", DeliveryInfoID: in.DeliveryInfoID}, nil
}

func (f *fakeBackend) setStatus(id int64, status string) (backend.SubscriptionDTO, error) {
	if f.fail != nil {
		return backend.SubscriptionDTO{}, f.fail
	}
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs[i].Status = status
			return f.subs[i], nil
		}
	}
	return backend.SubscriptionDTO{}, &backend.Error{StatusCode: 404, Message: "not found"}
}

func (f *fakeBackend) PauseSubscription(ctx context.Context, id int64) (backend.SubscriptionDTO, error) {
	return f.setStatus(id, "paused")
}

func (f *fakeBackend) ResumeSubscription(ctx context.Context, id int64) (backend.SubscriptionDTO, error) {
	return f.setStatus(id, "active")
}

func (f *fakeBackend) CreateDeliveryAddress(ctx context.Context, in backend.DeliveryInfoInput) (backend.DeliveryInfoDTO, error) {
	if f.fail != nil {
		return backend.DeliveryInfoDTO{}, f.fail
	}
	return backend.DeliveryInfoDTO{ID: f.id(), Address: in.Address, Date: in.Date, Time: in.Time, Comment: in.Comment}, nil
}

func (f *fakeBackend) UpdateDeliveryAddress(ctx context.Context, id int64, in backend.DeliveryInfoInput) (backend.DeliveryInfoDTO, error) {
	if f.fail != nil {
		return backend.DeliveryInfoDTO{}, f.fail
	}
	return backend.DeliveryInfoDTO{ID: id, Address: in.Address, Date: in.Date, Time: in.Time}, nil
}

func (f *fakeBackend) DeleteDeliveryAddress(ctx context.Context, id int64) error {
	return f.fail
}

type fixture struct {
	svc     *Service
	backend *fakeBackend
	storage *storage.MemoryStore
	tokens  *storage.TokenStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	fb := newFakeBackend()
	mem := storage.NewMemoryStore()
	tokens := storage.NewTokenStore(mem)
	st := store.New(logger,
		store.WithLoader(fb),
		store.WithStorage(mem),
		store.WithRetry(retry.WithMaxAttempts(1)),
	)
	return &fixture{svc: New(fb, st, tokens, logger), backend: fb, storage: mem, tokens: tokens}
}

func signedIn(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	require.NoError(t, f.svc.VerifyOTP(context.Background(), "+79990000000", "1234"))
	return f
}

func TestRequestOTP(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.RequestOTP(context.Background(), " +79990000000 "))
	assert.Equal(t, "+79990000000", f.backend.lastOTP)

	assert.Error(t, f.svc.RequestOTP(context.Background(), "  "))
}

func TestVerifyOTP_SavesTokensAndLoads(t *testing.T) {
	f := signedIn(t)

	tokens, err := f.tokens.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.Tokens{Access: "access", Refresh: "refresh"}, tokens)

	st := f.svc.Store().State()
	require.NotNil(t, st.User)
	assert.Equal(t, "Anna", st.User.Name)
	assert.Equal(t, store.StatusReady, st.Status)
}

func TestVerifyOTP_BadCode(t *testing.T) {
	f := newFixture(t)

	err := f.svc.VerifyOTP(context.Background(), "+79990000000", "0000")
	require.Error(t, err)

	_, err = f.storage.Get(context.Background(), storage.AccessTokenKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Nil(t, f.svc.Store().State().User)
}

func TestChildFlows(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	child, err := f.svc.AddChild(ctx, backend.ChildInput{Name: " Petya ", DateOfBirth: "03.04.2021", Gender: "male"})
	require.NoError(t, err)
	assert.Equal(t, "Petya", child.Name)
	assert.Equal(t, "03.04.2021", child.DateOfBirth)

	updated, err := f.svc.UpdateChild(ctx, 10, backend.ChildInput{Name: "Maria", DateOfBirth: "01.02.2020", Gender: "female"})
	require.NoError(t, err)
	assert.Equal(t, "Maria", updated.Name)
	require.Len(t, updated.Subscriptions, 1, "subscriptions survive a profile edit")

	require.NoError(t, f.svc.RemoveChild(ctx, child.ID))

	st := f.svc.Store().State()
	require.Len(t, st.User.Children, 1)
	assert.Equal(t, "Maria", st.User.Children[0].Name)
	assert.Len(t, st.User.Children[0].Subscriptions, 1)
}

func TestBackendFailureLeavesStoreUntouched(t *testing.T) {
	f := signedIn(t)
	before := f.svc.Store().State()
	f.backend.fail = errors.New("boom")

	_, err := f.svc.AddChild(context.Background(), backend.ChildInput{Name: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create child")
	assert.ErrorIs(t, err, f.backend.fail)

	require.Error(t, f.svc.RemoveChild(context.Background(), 10))
	require.Error(t, f.svc.UpdateName(context.Background(), "y"))

	assert.Equal(t, before, f.svc.Store().State())
}

func TestSubscriptionFlows(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	sub, err := f.svc.CreateSubscription(ctx, backend.SubscriptionInput{ChildID: 10, PlanID: 5})
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPendingPayment, sub.Status)
	assert.Equal(t, []int64{sub.ID}, f.svc.Store().PendingSubscriptionIDs(true))

	paused, err := f.svc.PauseSubscription(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPaused, paused.Status)
	assert.Equal(t, models.SubscriptionStatusPaused, f.svc.Store().State().User.Children[0].Subscriptions[0].Status)

	_, err = f.svc.ResumeSubscription(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, f.svc.Store().State().User.Children[0].Subscriptions[0].Status)

	_, err = f.svc.PauseSubscription(ctx, 999)
	assert.True(t, backend.IsNotFound(err))
}

func TestDeliveryAddressFlows(t *testing.T) {
	f := signedIn(t)
	ctx := context.Background()

	addr, err := f.svc.AddDeliveryAddress(ctx, backend.DeliveryInfoInput{Address: "Mira 2", Date: "2024-05-01", Time: "10:00"})
	require.NoError(t, err)
	st := f.svc.Store().State()
	require.NotNil(t, st.UI.SelectedAddressID)
	assert.Equal(t, addr.ID, *st.UI.SelectedAddressID)

	_, err = f.svc.UpdateDeliveryAddress(ctx, addr.ID, backend.DeliveryInfoInput{Address: "Mira 4"})
	require.NoError(t, err)
	assert.Equal(t, "Mira 4", f.svc.Store().State().User.DeliveryAddresses[0].Address)

	require.NoError(t, f.svc.RemoveDeliveryAddress(ctx, addr.ID))
	st = f.svc.Store().State()
	assert.Empty(t, st.User.DeliveryAddresses)
	assert.Nil(t, st.UI.SelectedAddressID)
}

func TestProfileFlows(t *testing.T) {
	f := signedIn(t)

	require.NoError(t, f.svc.UpdateName(context.Background(), "Anya"))
	require.NoError(t, f.svc.UpdatePhone(context.Background(), "+70000000000"))

	u := f.svc.Store().State().User
	assert.Equal(t, "Anya", u.Name)
	assert.Equal(t, "+70000000000", u.Phone)
}

func TestLogout_WipesTokens(t *testing.T) {
	f := signedIn(t)

	require.NoError(t, f.svc.Logout(context.Background()))

	assert.Nil(t, f.svc.Store().State().User)
	assert.Equal(t, 0, f.storage.Len())
}

func TestStartRefreshLoop(t *testing.T) {
	f := signedIn(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		f.svc.StartRefreshLoop(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		f.backend.mu.Lock()
		defer f.backend.mu.Unlock()
		return f.backend.loads >= 3
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("refresh loop did not stop")
	}
}

func TestStartRefreshLoop_DisabledInterval(t *testing.T) {
	f := newFixture(t)
	f.svc.StartRefreshLoop(context.Background(), 0)
}
