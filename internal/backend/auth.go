package backend

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Kerhoff/toyrent/internal/storage"
)

// authTransport tags every request with a request id and attaches the bearer
// token, refreshing it first when it is about to expire.
type authTransport struct {
	base   http.RoundTripper
	client *Client
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", uuid.NewString())
	}

	if !authSkipped(r.Context()) {
		access, err := t.client.accessToken(r.Context())
		if err != nil {
			return nil, err
		}
		if access != "" {
			r.Header.Set("Authorization", "Bearer "+access)
		}
	}

	return t.base.RoundTrip(r)
}

// accessToken returns the current access token, refreshing it when it expires
// within the refresh skew and a refresh token is available.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	tokens, err := c.tokens.Tokens(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load tokens: %w", err)
	}
	if tokens.Access == "" || tokens.Refresh == "" || !expiresWithin(tokens.Access, c.now(), c.refreshSkew) {
		return tokens.Access, nil
	}

	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// Another request may have refreshed while we waited.
	tokens, err = c.tokens.Tokens(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to load tokens: %w", err)
	}
	if !expiresWithin(tokens.Access, c.now(), c.refreshSkew) {
		return tokens.Access, nil
	}

	pair, err := c.RefreshToken(ctx, tokens.Refresh)
	if err != nil {
		c.logger.WithError(err).Warn("Access token refresh failed")
		// Let the backend answer 401 to the original request.
		return tokens.Access, nil
	}
	if pair.Refresh == "" {
		pair.Refresh = tokens.Refresh
	}
	if err := c.tokens.Save(ctx, storage.Tokens{Access: pair.Access, Refresh: pair.Refresh}); err != nil {
		return "", fmt.Errorf("failed to save refreshed tokens: %w", err)
	}
	c.logger.Debug("Access token refreshed")
	return pair.Access, nil
}

// expiresWithin reports whether token is a JWT whose exp falls before now+skew.
// Tokens that are not JWTs or carry no exp never count as expiring.
func expiresWithin(token string, now time.Time, skew time.Duration) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Time.Before(now.Add(skew))
}

// SendOTP asks the backend to send a one-time code to phone
func (c *Client) SendOTP(ctx context.Context, phone string) error {
	return c.do(withoutAuth(ctx), http.MethodPost, "/auth/otp/send", otpRequest{Phone: phone}, nil)
}

// VerifyOTP exchanges phone and code for a token pair
func (c *Client) VerifyOTP(ctx context.Context, phone, code string) (TokenPair, error) {
	var out TokenPair
	err := c.do(withoutAuth(ctx), http.MethodPost, "/auth/otp/verify", otpVerifyRequest{Phone: phone, Code: code}, &out)
	return out, err
}

// RefreshToken exchanges a refresh token for a new access token
func (c *Client) RefreshToken(ctx context.Context, refresh string) (TokenPair, error) {
	var out TokenPair
	err := c.do(withoutAuth(ctx), http.MethodPost, "/auth/token/refresh", refreshRequest{Refresh: refresh}, &out)
	return out, err
}
