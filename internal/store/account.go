package store

import "github.com/Kerhoff/toyrent/internal/models"

// account is the arena form of models.User: children, their subscriptions
// and delivery addresses are kept in id-keyed maps with a separate order
// slice, so nested lookups are two map reads instead of two scans.
type account struct {
	user       models.User // Children and DeliveryAddresses are always nil here
	childOrder []int64
	children   map[int64]*childEntry
	addrOrder  []int64
	addresses  map[int64]models.DeliveryAddress
}

type childEntry struct {
	child    models.Child // Subscriptions is always nil here
	subOrder []int64
	subs     map[int64]models.Subscription
}

// newAccount builds the arena from a user aggregate. Duplicate ids keep the
// first occurrence.
func newAccount(u *models.User) *account {
	a := &account{
		user:      *u,
		children:  make(map[int64]*childEntry, len(u.Children)),
		addresses: make(map[int64]models.DeliveryAddress, len(u.DeliveryAddresses)),
	}
	a.user.Children = nil
	a.user.DeliveryAddresses = nil

	for _, c := range u.Children {
		if _, dup := a.children[c.ID]; dup {
			continue
		}
		a.children[c.ID] = newChildEntry(c)
		a.childOrder = append(a.childOrder, c.ID)
	}
	for _, addr := range u.DeliveryAddresses {
		if _, dup := a.addresses[addr.ID]; dup {
			continue
		}
		a.addresses[addr.ID] = addr
		a.addrOrder = append(a.addrOrder, addr.ID)
	}
	return a
}

func newChildEntry(c models.Child) *childEntry {
	c = c.Clone()
	e := &childEntry{subs: make(map[int64]models.Subscription, len(c.Subscriptions))}
	for _, sub := range c.Subscriptions {
		if _, dup := e.subs[sub.ID]; dup {
			continue
		}
		e.subs[sub.ID] = sub
		e.subOrder = append(e.subOrder, sub.ID)
	}
	c.Subscriptions = nil
	e.child = c
	return e
}

// materialize returns the nested, ordered user aggregate as a fresh copy
func (a *account) materialize() *models.User {
	u := a.user
	u.Children = make([]models.Child, 0, len(a.childOrder))
	for _, id := range a.childOrder {
		u.Children = append(u.Children, a.children[id].materialize())
	}
	u.DeliveryAddresses = make([]models.DeliveryAddress, 0, len(a.addrOrder))
	for _, id := range a.addrOrder {
		u.DeliveryAddresses = append(u.DeliveryAddresses, a.addresses[id])
	}
	return &u
}

func (e *childEntry) materialize() models.Child {
	c := e.child.Clone()
	c.Subscriptions = make([]models.Subscription, 0, len(e.subOrder))
	for _, id := range e.subOrder {
		c.Subscriptions = append(c.Subscriptions, e.subs[id].Clone())
	}
	return c
}

func removeID(ids []int64, id int64) []int64 {
	out := make([]int64, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
