package entity

import (
	"errors"
	"testing"
	"time"
)

type fakeClock struct{ now int64 }

func (c *fakeClock) Now() int64 { return c.now }

func newTestStore(kind Kind) (*Store, *fakeClock) {
	c := &fakeClock{now: 1000}
	return NewStore(kind, c.Now), c
}

func TestStore_UpsertClassifiesByCategory(t *testing.T) {
	s, _ := newTestStore(KindUnit)
	e, err := s.Upsert(1, Patch{Category: Ptr(CategoryAircraft), Name: Ptr("F-16C")})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if _, ok := e.(*Unit); !ok {
		t.Fatalf("expected *Unit, got %T", e)
	}
	if e.Kind() != KindUnit || e.Category() != CategoryAircraft || e.Name() != "F-16C" {
		t.Fatalf("unexpected entity: kind=%s category=%q name=%q", e.Kind(), e.Category(), e.Name())
	}

	w, _ := newTestStore(KindWeapon)
	e, err = w.Upsert(9, Patch{Category: Ptr(CategoryMissile)})
	if err != nil {
		t.Fatalf("upsert weapon: %v", err)
	}
	if _, ok := e.(*Weapon); !ok {
		t.Fatalf("expected *Weapon, got %T", e)
	}
}

func TestStore_UnknownCategoryRejected(t *testing.T) {
	s, _ := newTestStore(KindUnit)
	if _, err := s.Upsert(1, Patch{Category: Ptr("Missile")}); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := s.Upsert(2, Patch{Name: Ptr("no category")}); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory for missing category, got %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("rejected entities must not be stored, len=%d", s.Len())
	}
}

func TestStore_PartialUpsertLeavesAbsentFieldsUntouched(t *testing.T) {
	s, clk := newTestStore(KindUnit)
	if _, err := s.Upsert(1, Patch{
		Category: Ptr(CategoryGroundUnit),
		Alive:    Ptr(true),
		Name:     Ptr("T-72"),
		Speed:    Ptr(3.0),
	}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	clk.now = 2000
	e, err := s.Upsert(1, Patch{Speed: Ptr(5.0)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	u := e.(*Unit)
	if u.Name() != "T-72" || !u.Alive() {
		t.Fatalf("absent fields changed: name=%q alive=%v", u.Name(), u.Alive())
	}
	if u.Speed() != 5 {
		t.Fatalf("speed=%v want 5", u.Speed())
	}
	if got := u.UpdateTimeOf(FieldSpeed); got != 2000 {
		t.Fatalf("speed stamp=%d want 2000", got)
	}
	if got := u.UpdateTimeOf(FieldName); got != 1000 {
		t.Fatalf("name stamp=%d want 1000", got)
	}
}

func TestStore_StampsOnlyOnChange(t *testing.T) {
	s, clk := newTestStore(KindWeapon)
	if _, err := s.Upsert(4, Patch{Category: Ptr(CategoryBomb), Heading: Ptr(0.0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e, _ := s.Get(4)
	if got := e.UpdateTimeOf(FieldHeading); got != 1000 {
		t.Fatalf("first assignment of zero value must stamp, got %d", got)
	}
	clk.now = 1500
	_, _ = s.Upsert(4, Patch{Heading: Ptr(0.0)})
	if got := e.UpdateTimeOf(FieldHeading); got != 1000 {
		t.Fatalf("same-value upsert restamped heading: %d", got)
	}
	if got := e.UpdateTimeOf(FieldSpeed); got != 0 {
		t.Fatalf("never-set field has stamp %d", got)
	}
}

func TestStore_StampsFollowIssuedCursor(t *testing.T) {
	s, _ := newTestStore(KindWeapon)
	if _, err := s.Upsert(4, Patch{Category: Ptr(CategoryBomb), Speed: Ptr(100.0)}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	s.IssueCursor(1000)
	_, _ = s.Upsert(4, Patch{Speed: Ptr(120.0)})
	e, _ := s.Get(4)
	if got := e.UpdateTimeOf(FieldSpeed); got <= 1000 {
		t.Fatalf("change after a frame at 1000 stamped %d, want > 1000", got)
	}
	if got := e.UpdateTimeOf(FieldCategory); got != 1000 {
		t.Fatalf("category stamp = %d, want 1000", got)
	}
}

func TestStore_CategoryIsImmutable(t *testing.T) {
	s, _ := newTestStore(KindUnit)
	_, _ = s.Upsert(1, Patch{Category: Ptr(CategoryNavyUnit)})
	e, err := s.Upsert(1, Patch{Category: Ptr(CategoryAircraft)})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if e.Category() != CategoryNavyUnit {
		t.Fatalf("category changed to %q", e.Category())
	}
}

func TestStore_RemoveAndEachOrder(t *testing.T) {
	s, _ := newTestStore(KindUnit)
	for _, id := range []uint32{5, 1, 3} {
		if _, err := s.Upsert(id, Patch{Category: Ptr(CategoryHelicopter)}); err != nil {
			t.Fatalf("upsert %d: %v", id, err)
		}
	}
	if !s.Remove(3) {
		t.Fatalf("remove 3 reported missing")
	}
	if s.Remove(3) {
		t.Fatalf("second remove of 3 reported success")
	}
	var ids []uint32
	s.Each(func(e Entity) bool {
		ids = append(ids, e.ID())
		return true
	})
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 5 {
		t.Fatalf("ids=%v want [1 5]", ids)
	}
	if _, ok := s.Get(3); ok {
		t.Fatalf("removed entity still resolvable")
	}
}

func TestStore_GroupLeader(t *testing.T) {
	s, _ := newTestStore(KindUnit)
	_, _ = s.Upsert(1, Patch{Category: Ptr(CategoryGroundUnit), Alive: Ptr(true), GroupName: Ptr("armor-1"), IsLeader: Ptr(false)})
	_, _ = s.Upsert(2, Patch{Category: Ptr(CategoryGroundUnit), Alive: Ptr(true), GroupName: Ptr("armor-1"), IsLeader: Ptr(true)})
	_, _ = s.Upsert(3, Patch{Category: Ptr(CategoryGroundUnit), Alive: Ptr(true), GroupName: Ptr("armor-2")})

	if l, ok := s.GroupLeader(1); !ok || l.ID() != 2 {
		t.Fatalf("leader of 1: ok=%v id=%v", ok, l)
	}
	if l, ok := s.GroupLeader(3); !ok || l.ID() != 3 {
		t.Fatalf("leaderless group should resolve to self")
	}
	if _, ok := s.GroupLeader(42); ok {
		t.Fatalf("unknown id resolved")
	}
	if m := s.GroupMembers(1); len(m) != 2 {
		t.Fatalf("members of armor-1: %d", len(m))
	}
}

func TestStore_SweepDead(t *testing.T) {
	s, clk := newTestStore(KindWeapon)
	_, _ = s.Upsert(1, Patch{Category: Ptr(CategoryMissile), Alive: Ptr(true)})
	_, _ = s.Upsert(2, Patch{Category: Ptr(CategoryMissile), Alive: Ptr(true)})
	clk.now = 2000
	_, _ = s.Upsert(2, Patch{Alive: Ptr(false)})

	clk.now = 2500
	if got := s.SweepDead(time.Second); len(got) != 0 {
		t.Fatalf("swept too early: %v", got)
	}
	clk.now = 3000
	got := s.SweepDead(time.Second)
	if len(got) != 1 || got[0] != 2 {
		t.Fatalf("swept=%v want [2]", got)
	}
	if s.SweepDead(0) != nil {
		t.Fatalf("zero ttl must keep dead entities")
	}
}

func TestUnit_RevisionTracksTaskingFields(t *testing.T) {
	s, clk := newTestStore(KindUnit)
	e, _ := s.Upsert(1, Patch{Category: Ptr(CategoryAircraft)})
	u := e.(*Unit)
	rev := u.Revision()

	clk.now = 1001
	u.SetDesiredSpeed(250)
	if u.Revision() == rev {
		t.Fatalf("desired speed change did not bump revision")
	}
	rev = u.Revision()
	u.SetDesiredSpeed(250)
	if u.Revision() != rev {
		t.Fatalf("same-value set bumped revision")
	}
	_, _ = s.Upsert(1, Patch{Fuel: Ptr(0.5)})
	if u.Revision() != rev {
		t.Fatalf("engine-reported fuel bumped tasking revision")
	}
	u.SetControlled(true)
	if u.Revision() != rev {
		t.Fatalf("controlled flag bumped tasking revision")
	}
}

func TestUnit_ActivePath(t *testing.T) {
	s, clk := newTestStore(KindUnit)
	e, _ := s.Upsert(1, Patch{Category: Ptr(CategoryGroundUnit)})
	u := e.(*Unit)

	path := []Coords{{Lat: 1, Lng: 2}, {Lat: 3, Lng: 4}}
	u.SetActivePath(path)
	path[0].Lat = 99
	if u.ActivePath()[0].Lat != 1 {
		t.Fatalf("active path aliases caller slice")
	}
	clk.now = 1200
	u.PopWaypoint()
	if p := u.ActivePath(); len(p) != 1 || p[0].Lat != 3 {
		t.Fatalf("after pop: %v", p)
	}
	if got := u.UpdateTimeOf(FieldActivePath); got != 1200 {
		t.Fatalf("path stamp=%d want 1200", got)
	}
}
