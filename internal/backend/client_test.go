package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/toyrent/internal/storage"
	"github.com/Kerhoff/toyrent/pkg/logger"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"exp":     exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newTestClient(t *testing.T, mux *http.ServeMux, tokens storage.Tokens) (*Client, *storage.TokenStore) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	ts := storage.NewTokenStore(storage.NewMemoryStore())
	require.NoError(t, ts.Save(context.Background(), tokens))

	return New(srv.URL+"/", ts, logger.Discard()), ts
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_AttachesBearerAndRequestID(t *testing.T) {
	var gotAuth, gotRequestID string
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
		writeJSON(w, http.StatusOK, ProfileDTO{ID: 1, Name: "Anna", Phone: "+79990000000", SubscriptionStatus: true})
	})

	c, _ := newTestClient(t, mux, storage.Tokens{Access: "opaque-access", Refresh: "opaque-refresh"})
	profile, err := c.Profile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer opaque-access", gotAuth)
	assert.Len(t, gotRequestID, 36)
	assert.Equal(t, ProfileDTO{ID: 1, Name: "Anna", Phone: "+79990000000", SubscriptionStatus: true}, profile)
}

func TestClient_OTPRequestsAreUnauthenticated(t *testing.T) {
	var sendAuth, verifyAuth string
	var body otpVerifyRequest
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/otp/send", func(w http.ResponseWriter, r *http.Request) {
		sendAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/v1/auth/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		verifyAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&body)
		writeJSON(w, http.StatusOK, TokenPair{Access: "a", Refresh: "r"})
	})

	c, _ := newTestClient(t, mux, storage.Tokens{Access: "stale"})
	require.NoError(t, c.SendOTP(context.Background(), "+79990000000"))
	pair, err := c.VerifyOTP(context.Background(), "+79990000000", "1234")
	require.NoError(t, err)

	assert.Empty(t, sendAuth)
	assert.Empty(t, verifyAuth)
	assert.Equal(t, otpVerifyRequest{Phone: "+79990000000", Code: "1234"}, body)
	assert.Equal(t, TokenPair{Access: "a", Refresh: "r"}, pair)
}

func TestClient_Non2xxBecomesError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/children", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	})
	mux.HandleFunc("DELETE /api/v1/children/{id}", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such child", http.StatusNotFound)
	})

	c, _ := newTestClient(t, mux, storage.Tokens{})

	_, err := c.Children(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "token expired", apiErr.Message)
	assert.Equal(t, "/children", apiErr.Path)

	err = c.DeleteChild(context.Background(), 9)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "no such child")
}

func TestClient_RefreshesExpiringToken(t *testing.T) {
	expiring := signedToken(t, time.Now().Add(5*time.Second))
	fresh := signedToken(t, time.Now().Add(time.Hour))

	refreshCalls := 0
	var seenAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls++
		var req refreshRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "refresh-1", req.Refresh)
		writeJSON(w, http.StatusOK, TokenPair{Access: fresh})
	})
	mux.HandleFunc("GET /api/v1/skills", func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []ReferenceDTO{{ID: 1, Name: "Logic"}})
	})

	c, ts := newTestClient(t, mux, storage.Tokens{Access: expiring, Refresh: "refresh-1"})

	skills, err := c.Skills(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ReferenceDTO{{ID: 1, Name: "Logic"}}, skills)
	assert.Equal(t, "Bearer "+fresh, seenAuth)
	assert.Equal(t, 1, refreshCalls)

	saved, err := ts.Tokens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.Tokens{Access: fresh, Refresh: "refresh-1"}, saved)

	_, err = c.Skills(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, refreshCalls)
}

func TestClient_FailedRefreshKeepsOldToken(t *testing.T) {
	expiring := signedToken(t, time.Now().Add(-time.Minute))
	var seenAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/token/refresh", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "refresh expired"})
	})
	mux.HandleFunc("GET /api/v1/interests", func(w http.ResponseWriter, r *http.Request) {
		seenAuth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "token expired"})
	})

	c, _ := newTestClient(t, mux, storage.Tokens{Access: expiring, Refresh: "r"})
	_, err := c.Interests(context.Background())

	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Bearer "+expiring, seenAuth)
}

func TestClient_ResourceCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/children", func(w http.ResponseWriter, r *http.Request) {
		var in ChildInput
		json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusCreated, ChildDTO{ID: 3, Name: in.Name, DateOfBirth: in.DateOfBirth})
	})
	mux.HandleFunc("POST /api/v1/subscriptions/{id}/pause", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SubscriptionDTO{ID: 11, ChildID: 3, PlanID: 2, Status: "paused"})
	})
	mux.HandleFunc("PUT /api/v1/delivery-infos/{id}", func(w http.ResponseWriter, r *http.Request) {
		var in DeliveryInfoInput
		json.NewDecoder(r.Body).Decode(&in)
		writeJSON(w, http.StatusOK, DeliveryInfoDTO{ID: 5, Address: in.Address, Date: in.Date, Time: in.Time})
	})
	mux.HandleFunc("PATCH /api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		var in ProfileUpdate
		json.NewDecoder(r.Body).Decode(&in)
		assert.Nil(t, in.Phone)
		writeJSON(w, http.StatusOK, ProfileDTO{ID: 1, Name: *in.Name})
	})

	c, _ := newTestClient(t, mux, storage.Tokens{Access: "a"})
	ctx := context.Background()

	child, err := c.CreateChild(ctx, ChildInput{Name: "Mila", DateOfBirth: "2020-03-01"})
	require.NoError(t, err)
	assert.Equal(t, ChildDTO{ID: 3, Name: "Mila", DateOfBirth: "2020-03-01"}, child)

	sub, err := c.PauseSubscription(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "paused", sub.Status)

	addr, err := c.UpdateDeliveryAddress(ctx, 5, DeliveryInfoInput{Address: "Main st 1", Date: "2024-05-01", Time: "10:00-14:00"})
	require.NoError(t, err)
	assert.Equal(t, "Main st 1", addr.Address)

	name := "Olga"
	profile, err := c.UpdateProfile(ctx, ProfileUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Olga", profile.Name)
}

func TestExpiresWithin(t *testing.T) {
	now := time.Now()
	assert.True(t, expiresWithin(signedToken(t, now.Add(10*time.Second)), now, 30*time.Second))
	assert.False(t, expiresWithin(signedToken(t, now.Add(time.Hour)), now, 30*time.Second))
	assert.False(t, expiresWithin("not-a-jwt", now, 30*time.Second))
}
