package backend

// ProfileDTO is the /users/me payload
type ProfileDTO struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Phone              string `json:"phone"`
	SubscriptionStatus bool   `json:"subscription_status"`
}

// ProfileUpdate carries the profile fields to change; nil fields are left alone
type ProfileUpdate struct {
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`
}

// ChildDTO is a child as returned by the backend
type ChildDTO struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	DateOfBirth    string  `json:"date_of_birth"` // YYYY-MM-DD
	Gender         string  `json:"gender"`
	HasLimitations bool    `json:"has_limitations"`
	Comment        string  `json:"comment"`
	Interests      []int64 `json:"interests"`
	Skills         []int64 `json:"skills"`
}

// ChildInput is the body of child create and update calls
type ChildInput struct {
	Name           string  `json:"name"`
	DateOfBirth    string  `json:"date_of_birth"`
	Gender         string  `json:"gender"`
	HasLimitations bool    `json:"has_limitations"`
	Comment        string  `json:"comment"`
	Interests      []int64 `json:"interests"`
	Skills         []int64 `json:"skills"`
}

// SubscriptionDTO is a subscription as returned by the backend
type SubscriptionDTO struct {
	ID             int64  `json:"id"`
	UserID         int64  `json:"user_id"`
	ChildID        int64  `json:"child_id"`
	PlanID         int64  `json:"plan_id"`
	Status         string `json:"status"`
	DeliveryInfoID *int64 `json:"delivery_info_id"`
}

// SubscriptionInput is the body of a subscription create call
type SubscriptionInput struct {
	ChildID        int64  `json:"child_id"`
	PlanID         int64  `json:"plan_id"`
	DeliveryInfoID *int64 `json:"delivery_info_id,omitempty"`
}

// ToyConfigDTO is one line of a plan's toy configuration
type ToyConfigDTO struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// PlanDTO is a subscription plan
type PlanDTO struct {
	ID        int64          `json:"id"`
	Name      string         `json:"name"`
	Price     int64          `json:"price"`
	ToysCount int            `json:"toys_count"`
	Toys      []ToyConfigDTO `json:"toys"`
}

// ReferenceDTO is an entry of the interests or skills lists
type ReferenceDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// DeliveryInfoDTO is a delivery address with its schedule
type DeliveryInfoDTO struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Comment string `json:"comment"`
}

// DeliveryInfoInput is the body of delivery address create and update calls
type DeliveryInfoInput struct {
	Address string `json:"address"`
	Date    string `json:"date"`
	Time    string `json:"time"`
	Comment string `json:"comment,omitempty"`
}

// TokenPair is returned by OTP verification and token refresh
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type otpRequest struct {
	Phone string `json:"phone"`
}

type otpVerifyRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}
