package store

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Kerhoff/toyrent/internal/models"
)

// Selectors are pure reads of the current state. Results are memoized per
// state version and parameters; callers always receive their own copy.

// ChildrenWithoutSubscriptionIn returns the children none of whose
// subscriptions has one of the statuses, in user order
func (s *Store) ChildrenWithoutSubscriptionIn(statuses ...models.SubscriptionStatus) []models.Child {
	v := s.memo("without", statusKey(statuses), func() any {
		return s.filterChildren(func(c *models.Child) bool { return !c.HasSubscriptionIn(statuses...) })
	})
	return cloneChildren(v.([]models.Child))
}

// ChildrenWithSubscriptionIn returns the children with at least one
// subscription in one of the statuses, in user order
func (s *Store) ChildrenWithSubscriptionIn(statuses ...models.SubscriptionStatus) []models.Child {
	v := s.memo("with", statusKey(statuses), func() any {
		return s.filterChildren(func(c *models.Child) bool { return c.HasSubscriptionIn(statuses...) })
	})
	return cloneChildren(v.([]models.Child))
}

// PendingSubscriptionIDs returns subscription ids across all children. With
// onlyPending only subscriptions awaiting payment are included.
func (s *Store) PendingSubscriptionIDs(onlyPending bool) []int64 {
	v := s.memo("pending", fmt.Sprint(onlyPending), func() any {
		ids := []int64{}
		if s.account == nil {
			return ids
		}
		for _, cid := range s.account.childOrder {
			entry := s.account.children[cid]
			for _, sid := range entry.subOrder {
				sub := entry.subs[sid]
				if onlyPending && !sub.IsPendingPayment() {
					continue
				}
				ids = append(ids, sid)
			}
		}
		return ids
	})
	return append([]int64{}, v.([]int64)...)
}

// ChildByID returns the child with the given id, or nil if id is nil or
// no such child exists
func (s *Store) ChildByID(id *int64) *models.Child {
	if id == nil {
		return nil
	}
	v := s.memo("child", fmt.Sprint(*id), func() any {
		if s.account == nil {
			return (*models.Child)(nil)
		}
		entry, ok := s.account.children[*id]
		if !ok {
			return (*models.Child)(nil)
		}
		c := entry.materialize()
		return &c
	})
	c := v.(*models.Child)
	if c == nil {
		return nil
	}
	out := c.Clone()
	return &out
}

// SubscriptionPlanByID returns the plan with the given id, or nil
func (s *Store) SubscriptionPlanByID(id int64) *models.SubscriptionPlan {
	v := s.memo("plan", fmt.Sprint(id), func() any {
		for _, p := range s.plans {
			if p.ID == id {
				return &clonePlans([]models.SubscriptionPlan{p})[0]
			}
		}
		return (*models.SubscriptionPlan)(nil)
	})
	p := v.(*models.SubscriptionPlan)
	if p == nil {
		return nil
	}
	return &clonePlans([]models.SubscriptionPlan{*p})[0]
}

// memo returns the cached result of compute for the current version, running
// compute under the read lock on a miss
func (s *Store) memo(name, params string, compute func() any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := fmt.Sprintf("%s:%d:%s", name, s.version.Load(), params)
	if v, ok := s.selectors.Get(key); ok {
		return v
	}
	v := compute()
	s.selectors.Add(key, v)
	return v
}

// filterChildren runs under the read lock held by memo
func (s *Store) filterChildren(keep func(c *models.Child) bool) []models.Child {
	out := []models.Child{}
	if s.account == nil {
		return out
	}
	for _, id := range s.account.childOrder {
		c := s.account.children[id].materialize()
		if keep(&c) {
			out = append(out, c)
		}
	}
	return out
}

func statusKey(statuses []models.SubscriptionStatus) string {
	parts := make([]string, len(statuses))
	for i, st := range statuses {
		parts[i] = string(st)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func cloneChildren(children []models.Child) []models.Child {
	out := make([]models.Child, len(children))
	for i, c := range children {
		out[i] = c.Clone()
	}
	return out
}
