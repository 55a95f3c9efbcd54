package models

// User represents the signed-in customer and everything the account owns
type User struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	Phone             string            `json:"phone"`
	Children          []Child           `json:"children"`
	DeliveryAddresses []DeliveryAddress `json:"delivery_addresses"`
	HasSubscription   bool              `json:"has_subscription"`
}

// DisplayName returns the best display name for the user
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Phone
}

// Clone returns a deep copy of the user
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Children != nil {
		out.Children = make([]Child, len(u.Children))
		for i := range u.Children {
			out.Children[i] = u.Children[i].Clone()
		}
	}
	if u.DeliveryAddresses != nil {
		out.DeliveryAddresses = append([]DeliveryAddress(nil), u.DeliveryAddresses...)
	}
	return &out
}
