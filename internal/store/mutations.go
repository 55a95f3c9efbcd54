package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/toyrent/internal/models"
)

// Mutators run after the matching backend call has succeeded. A missing
// target therefore means the client and server disagree; the mutator logs
// it and leaves the state untouched instead of failing.

// AddChild appends a child to the user
func (s *Store) AddChild(child models.Child) State {
	return s.update(func() bool {
		if s.account == nil {
			s.desync("AddChild", logrus.Fields{"child_id": child.ID}, "No user to add child to")
			return false
		}
		if _, ok := s.account.children[child.ID]; ok {
			s.desync("AddChild", logrus.Fields{"child_id": child.ID}, "Child already present")
			return false
		}
		s.account.children[child.ID] = newChildEntry(child)
		s.account.childOrder = append(s.account.childOrder, child.ID)
		return true
	})
}

// RemoveChild removes the child with the given id
func (s *Store) RemoveChild(childID int64) State {
	return s.update(func() bool {
		if s.childLocked("RemoveChild", childID) == nil {
			return false
		}
		delete(s.account.children, childID)
		s.account.childOrder = removeID(s.account.childOrder, childID)
		if s.ui.EditingChildID != nil && *s.ui.EditingChildID == childID {
			s.ui.EditingChildID = nil
		}
		return true
	})
}

// UpdateChild replaces the whole child with the given id, keeping its
// position. A zero child.ID inherits childID.
func (s *Store) UpdateChild(childID int64, child models.Child) State {
	return s.update(func() bool {
		if s.childLocked("UpdateChild", childID) == nil {
			return false
		}
		if child.ID == 0 {
			child.ID = childID
		}
		if child.ID != childID {
			if _, taken := s.account.children[child.ID]; taken {
				s.desync("UpdateChild", logrus.Fields{"child_id": childID, "new_id": child.ID}, "Replacement id already in use")
				return false
			}
			for i, id := range s.account.childOrder {
				if id == childID {
					s.account.childOrder[i] = child.ID
				}
			}
			delete(s.account.children, childID)
		}
		s.account.children[child.ID] = newChildEntry(child)
		return true
	})
}

// AddChildSubscription appends a subscription the backend has just created
func (s *Store) AddChildSubscription(childID int64, sub models.Subscription) State {
	return s.update(func() bool {
		entry := s.childLocked("AddChildSubscription", childID)
		if entry == nil {
			return false
		}
		if _, ok := entry.subs[sub.ID]; ok {
			s.desync("AddChildSubscription", logrus.Fields{"child_id": childID, "subscription_id": sub.ID}, "Subscription already present")
			return false
		}
		entry.subs[sub.ID] = sub.Clone()
		entry.subOrder = append(entry.subOrder, sub.ID)
		return true
	})
}

// UpdateChildSubscription replaces the whole subscription subID of child
// childID in place. A zero sub.ID inherits subID; every other field is taken
// from sub as given.
func (s *Store) UpdateChildSubscription(childID, subID int64, sub models.Subscription) State {
	return s.update(func() bool {
		entry := s.childLocked("UpdateChildSubscription", childID)
		if entry == nil {
			return false
		}
		if _, ok := entry.subs[subID]; !ok {
			s.desync("UpdateChildSubscription", logrus.Fields{"child_id": childID, "subscription_id": subID}, "Subscription not found")
			return false
		}
		if sub.ID == 0 {
			sub.ID = subID
		}
		if sub.ID != subID {
			if _, taken := entry.subs[sub.ID]; taken {
				s.desync("UpdateChildSubscription", logrus.Fields{"child_id": childID, "subscription_id": subID, "new_id": sub.ID}, "Replacement id already in use")
				return false
			}
			for i, id := range entry.subOrder {
				if id == subID {
					entry.subOrder[i] = sub.ID
				}
			}
			delete(entry.subs, subID)
		}
		entry.subs[sub.ID] = sub.Clone()
		return true
	})
}

// AddDeliveryAddress appends an address and selects it
func (s *Store) AddDeliveryAddress(addr models.DeliveryAddress) State {
	return s.update(func() bool {
		if s.account == nil {
			s.desync("AddDeliveryAddress", logrus.Fields{"address_id": addr.ID}, "No user to add address to")
			return false
		}
		if _, ok := s.account.addresses[addr.ID]; ok {
			s.desync("AddDeliveryAddress", logrus.Fields{"address_id": addr.ID}, "Address already present")
			return false
		}
		s.account.addresses[addr.ID] = addr
		s.account.addrOrder = append(s.account.addrOrder, addr.ID)
		id := addr.ID
		s.ui.SelectedAddressID = &id
		return true
	})
}

// UpdateDeliveryAddress replaces the address with the given id. A zero
// addr.ID inherits addrID.
func (s *Store) UpdateDeliveryAddress(addrID int64, addr models.DeliveryAddress) State {
	return s.update(func() bool {
		if !s.addressLocked("UpdateDeliveryAddress", addrID) {
			return false
		}
		if addr.ID == 0 {
			addr.ID = addrID
		}
		if addr.ID != addrID {
			if _, taken := s.account.addresses[addr.ID]; taken {
				s.desync("UpdateDeliveryAddress", logrus.Fields{"address_id": addrID, "new_id": addr.ID}, "Replacement id already in use")
				return false
			}
			for i, id := range s.account.addrOrder {
				if id == addrID {
					s.account.addrOrder[i] = addr.ID
				}
			}
			delete(s.account.addresses, addrID)
			if s.ui.SelectedAddressID != nil && *s.ui.SelectedAddressID == addrID {
				id := addr.ID
				s.ui.SelectedAddressID = &id
			}
		}
		s.account.addresses[addr.ID] = addr
		return true
	})
}

// RemoveDeliveryAddress removes the address and drops it from the selection
func (s *Store) RemoveDeliveryAddress(addrID int64) State {
	return s.update(func() bool {
		if !s.addressLocked("RemoveDeliveryAddress", addrID) {
			return false
		}
		delete(s.account.addresses, addrID)
		s.account.addrOrder = removeID(s.account.addrOrder, addrID)
		if s.ui.SelectedAddressID != nil && *s.ui.SelectedAddressID == addrID {
			s.ui.SelectedAddressID = nil
		}
		return true
	})
}

// SetSubscriptionPlans replaces the plan catalogue wholesale
func (s *Store) SetSubscriptionPlans(plans []models.SubscriptionPlan) State {
	return s.update(func() bool {
		s.plans = clonePlans(plans)
		return true
	})
}

// SetUserName changes the user's name
func (s *Store) SetUserName(name string) State {
	return s.update(func() bool {
		if s.account == nil {
			s.desync("SetUserName", nil, "No user to rename")
			return false
		}
		s.account.user.Name = name
		return true
	})
}

// SetUserPhone changes the user's phone
func (s *Store) SetUserPhone(phone string) State {
	return s.update(func() bool {
		if s.account == nil {
			s.desync("SetUserPhone", nil, "No user to change phone of")
			return false
		}
		s.account.user.Phone = phone
		return true
	})
}

// SetScreen switches the bottom-navigation screen
func (s *Store) SetScreen(screen models.Screen) State {
	return s.update(func() bool {
		if s.ui.Screen == screen {
			return false
		}
		s.ui.Screen = screen
		return true
	})
}

// SetEditingChild marks the child being edited; nil clears it
func (s *Store) SetEditingChild(childID *int64) State {
	return s.update(func() bool {
		s.ui.EditingChildID = cloneID(childID)
		return true
	})
}

// SetSelectedAddress marks the selected delivery address; nil clears it
func (s *Store) SetSelectedAddress(addrID *int64) State {
	return s.update(func() bool {
		s.ui.SelectedAddressID = cloneID(addrID)
		return true
	})
}

// ResetUI restores the navigation state to its initial value
func (s *Store) ResetUI() State {
	return s.update(func() bool {
		s.ui = models.DefaultUIState()
		return true
	})
}

// Persisted is the subset of State written to durable storage. Navigation
// state and load status are left out so a reload starts from a clean UI.
type Persisted struct {
	User              *models.User              `json:"user"`
	SubscriptionPlans []models.SubscriptionPlan `json:"subscription_plans"`
	Interests         []models.Reference        `json:"interests"`
	Skills            []models.Reference        `json:"skills"`
}

// Persisted extracts the persisted subset of st
func (st State) Persisted() Persisted {
	return Persisted{
		User:              st.User,
		SubscriptionPlans: st.SubscriptionPlans,
		Interests:         st.Interests,
		Skills:            st.Skills,
	}
}

// Restore loads a persisted subset, typically right after startup
func (s *Store) Restore(p Persisted) State {
	return s.update(func() bool {
		s.account = nil
		if p.User != nil {
			s.account = newAccount(p.User)
		}
		s.plans = nil
		if p.SubscriptionPlans != nil {
			s.plans = clonePlans(p.SubscriptionPlans)
		}
		s.interests = cloneRefs(p.Interests)
		s.skills = cloneRefs(p.Skills)
		return true
	})
}

// Logout resets the whole container, wipes durable storage and navigates to
// the application root. There is no confirmation step.
func (s *Store) Logout(ctx context.Context) error {
	s.update(func() bool {
		s.account = nil
		s.plans = nil
		s.interests = nil
		s.skills = nil
		s.ui = models.DefaultUIState()
		s.status = StatusIdle
		s.loadErr = nil
		return true
	})
	s.logger.Info("Signed out")

	var err error
	if s.storage != nil {
		if cerr := s.storage.Clear(ctx); cerr != nil {
			err = fmt.Errorf("failed to clear storage: %w", cerr)
		}
	}
	s.navigate("/")
	return err
}

// childLocked returns the entry of childID, or nil after logging a desync
func (s *Store) childLocked(mutator string, childID int64) *childEntry {
	if s.account == nil {
		s.desync(mutator, logrus.Fields{"child_id": childID}, "No user loaded")
		return nil
	}
	entry, ok := s.account.children[childID]
	if !ok {
		s.desync(mutator, logrus.Fields{"child_id": childID}, "Child not found")
		return nil
	}
	return entry
}

func (s *Store) addressLocked(mutator string, addrID int64) bool {
	if s.account == nil {
		s.desync(mutator, logrus.Fields{"address_id": addrID}, "No user loaded")
		return false
	}
	if _, ok := s.account.addresses[addrID]; !ok {
		s.desync(mutator, logrus.Fields{"address_id": addrID}, "Address not found")
		return false
	}
	return true
}
