package entity

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

var ErrUnknownCategory = errors.New("unknown entity category")

// Store owns every live entity of one kind, keyed by id.
// It is not synchronized; callers hold the bridge lock.
type Store struct {
	kind  Kind
	clock Clock
	byID  map[uint32]Entity
	// cursor is the highest frame time handed to a poller. Field stamps
	// are kept strictly above it so no change hides behind a reference.
	cursor int64
}

func NewStore(kind Kind, clock Clock) *Store {
	if clock == nil {
		clock = WallClock
	}
	return &Store{kind: kind, clock: clock, byID: map[uint32]Entity{}}
}

func (s *Store) stamp() int64 {
	return max(s.clock(), s.cursor+1)
}

// IssueCursor records that a frame stamped t is about to be served.
// Changes made afterwards are stamped later than t even within the same
// millisecond.
func (s *Store) IssueCursor(t int64) {
	s.cursor = max(s.cursor, t)
}

func (s *Store) Kind() Kind { return s.kind }
func (s *Store) Len() int   { return len(s.byID) }

// Upsert creates the entity on first sight, classified by p.Category, or
// merges p into the existing entity. Only fields present in p are applied.
// The category of an existing entity never changes.
func (s *Store) Upsert(id uint32, p Patch) (Entity, error) {
	e, ok := s.byID[id]
	if !ok {
		if p.Category == nil {
			return nil, fmt.Errorf("%s %d: missing category: %w", s.kind, id, ErrUnknownCategory)
		}
		var err error
		e, err = s.create(id, *p.Category)
		if err != nil {
			return nil, err
		}
		s.byID[id] = e
	}
	e.apply(&p)
	return e, nil
}

func (s *Store) create(id uint32, category string) (Entity, error) {
	switch s.kind {
	case KindUnit:
		switch category {
		case CategoryAircraft, CategoryHelicopter, CategoryGroundUnit, CategoryNavyUnit:
			return newUnit(id, category, s.stamp), nil
		}
	case KindWeapon:
		switch category {
		case CategoryMissile, CategoryBomb:
			return newWeapon(id, category, s.stamp), nil
		}
	}
	return nil, fmt.Errorf("%s %d: %q: %w", s.kind, id, category, ErrUnknownCategory)
}

func (s *Store) Get(id uint32) (Entity, bool) {
	e, ok := s.byID[id]
	return e, ok
}

// Unit returns the unit with the given id, if this is a unit store.
func (s *Store) Unit(id uint32) (*Unit, bool) {
	u, ok := s.byID[id].(*Unit)
	return u, ok
}

func (s *Store) Remove(id uint32) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	delete(s.byID, id)
	return true
}

// Each visits entities in ascending id order. Returning false stops the walk.
func (s *Store) Each(fn func(Entity) bool) {
	for _, id := range slices.Sorted(maps.Keys(s.byID)) {
		if !fn(s.byID[id]) {
			return
		}
	}
}

// GroupLeader returns the leader of the unit's group, or the unit itself
// when it has no group or no member reports leadership.
func (s *Store) GroupLeader(id uint32) (*Unit, bool) {
	u, ok := s.Unit(id)
	if !ok {
		return nil, false
	}
	if u.groupName == "" || u.isLeader {
		return u, true
	}
	var leader *Unit
	s.Each(func(e Entity) bool {
		o, ok := e.(*Unit)
		if ok && o.isLeader && o.alive && o.groupName == u.groupName {
			leader = o
			return false
		}
		return true
	})
	if leader == nil {
		return u, true
	}
	return leader, true
}

// GroupMembers returns the units sharing the group of id, in id order.
func (s *Store) GroupMembers(id uint32) []*Unit {
	u, ok := s.Unit(id)
	if !ok {
		return nil
	}
	if u.groupName == "" {
		return []*Unit{u}
	}
	var out []*Unit
	s.Each(func(e Entity) bool {
		if o, ok := e.(*Unit); ok && o.groupName == u.groupName {
			out = append(out, o)
		}
		return true
	})
	return out
}

// SweepDead removes entities that have been dead for at least ttl and
// returns their ids. A ttl of zero keeps dead entities forever.
func (s *Store) SweepDead(ttl time.Duration) []uint32 {
	if ttl <= 0 {
		return nil
	}
	now := s.clock()
	var removed []uint32
	for _, id := range slices.Sorted(maps.Keys(s.byID)) {
		e := s.byID[id]
		if e.Alive() {
			continue
		}
		if now-e.UpdateTimeOf(FieldAlive) >= ttl.Milliseconds() {
			delete(s.byID, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// AcquireControl marks every unit of id's group as controlled by the
// bridge. A unit taken over this way starts idle with no path.
func (s *Store) AcquireControl(id uint32) {
	for _, u := range s.GroupMembers(id) {
		if u.controlled {
			continue
		}
		u.SetControlled(true)
		u.SetActivePath(nil)
		u.SetState(StateIdle)
	}
}
