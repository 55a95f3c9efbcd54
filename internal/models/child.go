package models

// Gender of a child profile
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Child represents a child profile owned by the user
type Child struct {
	ID             int64          `json:"id"`
	Name           string         `json:"name"`
	DateOfBirth    string         `json:"date_of_birth"` // DD.MM.YYYY
	Gender         Gender         `json:"gender"`
	HasLimitations bool           `json:"has_limitations"`
	Comment        string         `json:"comment"`
	Interests      []int64        `json:"interests"`
	Skills         []int64        `json:"skills"`
	Subscriptions  []Subscription `json:"subscriptions"`
}

// HasSubscriptionIn reports whether any of the child's subscriptions is in one of the statuses
func (c *Child) HasSubscriptionIn(statuses ...SubscriptionStatus) bool {
	for _, sub := range c.Subscriptions {
		for _, st := range statuses {
			if sub.Status == st {
				return true
			}
		}
	}
	return false
}

// Clone returns a deep copy of the child
func (c Child) Clone() Child {
	if c.Interests != nil {
		c.Interests = append([]int64(nil), c.Interests...)
	}
	if c.Skills != nil {
		c.Skills = append([]int64(nil), c.Skills...)
	}
	if c.Subscriptions != nil {
		subs := make([]Subscription, len(c.Subscriptions))
		for i, s := range c.Subscriptions {
			subs[i] = s.Clone()
		}
		c.Subscriptions = subs
	}
	return c
}
