package backend

import (
	"context"
	"fmt"
	"net/http"
)

// Profile returns the signed-in user
func (c *Client) Profile(ctx context.Context) (ProfileDTO, error) {
	var out ProfileDTO
	err := c.do(ctx, http.MethodGet, "/users/me", nil, &out)
	return out, err
}

// UpdateProfile patches the signed-in user
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (ProfileDTO, error) {
	var out ProfileDTO
	err := c.do(ctx, http.MethodPatch, "/users/me", update, &out)
	return out, err
}

// Children lists the user's children
func (c *Client) Children(ctx context.Context) ([]ChildDTO, error) {
	var out []ChildDTO
	err := c.do(ctx, http.MethodGet, "/children", nil, &out)
	return out, err
}

func (c *Client) CreateChild(ctx context.Context, in ChildInput) (ChildDTO, error) {
	var out ChildDTO
	err := c.do(ctx, http.MethodPost, "/children", in, &out)
	return out, err
}

func (c *Client) UpdateChild(ctx context.Context, id int64, in ChildInput) (ChildDTO, error) {
	var out ChildDTO
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/children/%d", id), in, &out)
	return out, err
}

func (c *Client) DeleteChild(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/children/%d", id), nil, nil)
}

// Subscriptions lists the subscriptions of all the user's children
func (c *Client) Subscriptions(ctx context.Context) ([]SubscriptionDTO, error) {
	var out []SubscriptionDTO
	err := c.do(ctx, http.MethodGet, "/subscriptions", nil, &out)
	return out, err
}

// CreateSubscription creates a subscription; it starts in pending_payment
func (c *Client) CreateSubscription(ctx context.Context, in SubscriptionInput) (SubscriptionDTO, error) {
	var out SubscriptionDTO
	err := c.do(ctx, http.MethodPost, "/subscriptions", in, &out)
	return out, err
}

func (c *Client) PauseSubscription(ctx context.Context, id int64) (SubscriptionDTO, error) {
	var out SubscriptionDTO
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/subscriptions/%d/pause", id), nil, &out)
	return out, err
}

func (c *Client) ResumeSubscription(ctx context.Context, id int64) (SubscriptionDTO, error) {
	var out SubscriptionDTO
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/subscriptions/%d/resume", id), nil, &out)
	return out, err
}

// SubscriptionPlans lists the plan catalogue
func (c *Client) SubscriptionPlans(ctx context.Context) ([]PlanDTO, error) {
	var out []PlanDTO
	err := c.do(ctx, http.MethodGet, "/subscription-plans", nil, &out)
	return out, err
}

func (c *Client) Interests(ctx context.Context) ([]ReferenceDTO, error) {
	var out []ReferenceDTO
	err := c.do(ctx, http.MethodGet, "/interests", nil, &out)
	return out, err
}

func (c *Client) Skills(ctx context.Context) ([]ReferenceDTO, error) {
	var out []ReferenceDTO
	err := c.do(ctx, http.MethodGet, "/skills", nil, &out)
	return out, err
}

// DeliveryAddresses lists the user's delivery addresses
func (c *Client) DeliveryAddresses(ctx context.Context) ([]DeliveryInfoDTO, error) {
	var out []DeliveryInfoDTO
	err := c.do(ctx, http.MethodGet, "/delivery-infos", nil, &out)
	return out, err
}

func (c *Client) CreateDeliveryAddress(ctx context.Context, in DeliveryInfoInput) (DeliveryInfoDTO, error) {
	var out DeliveryInfoDTO
	err := c.do(ctx, http.MethodPost, "/delivery-infos", in, &out)
	return out, err
}

func (c *Client) UpdateDeliveryAddress(ctx context.Context, id int64, in DeliveryInfoInput) (DeliveryInfoDTO, error) {
	var out DeliveryInfoDTO
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/delivery-infos/%d", id), in, &out)
	return out, err
}

func (c *Client) DeleteDeliveryAddress(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/delivery-infos/%d", id), nil, nil)
}
