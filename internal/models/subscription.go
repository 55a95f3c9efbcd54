package models

// SubscriptionStatus represents the billing state of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusPaused         SubscriptionStatus = "paused"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
)

// Valid reports whether s is one of the known statuses
func (s SubscriptionStatus) Valid() bool {
	switch s {
	case SubscriptionStatusPendingPayment, SubscriptionStatusActive, SubscriptionStatusPaused,
		SubscriptionStatusCancelled, SubscriptionStatusExpired:
		return true
	}
	return false
}

// Subscription represents a toy-box subscription for one child
type Subscription struct {
	ID             int64              `json:"id"`
	UserID         int64              `json:"user_id"`
	ChildID        int64              `json:"child_id"`
	PlanID         int64              `json:"plan_id"`
	Status         SubscriptionStatus `json:"status"`
	DeliveryInfoID *int64             `json:"delivery_info_id"`
}

// IsPendingPayment returns true if the subscription still awaits payment
func (s *Subscription) IsPendingPayment() bool {
	return s.Status == SubscriptionStatusPendingPayment
}

// Clone returns a copy that shares no pointers with s
func (s Subscription) Clone() Subscription {
	if s.DeliveryInfoID != nil {
		id := *s.DeliveryInfoID
		s.DeliveryInfoID = &id
	}
	return s
}

// ToyConfig describes how many toys of a category a plan ships
type ToyConfig struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// SubscriptionPlan is an entry of the global plan catalogue
type SubscriptionPlan struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Price     int64       `json:"price"`
	ToysCount int         `json:"toys_count"`
	Toys      []ToyConfig `json:"toys"`
}
