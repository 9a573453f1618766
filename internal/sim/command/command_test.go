package command

import (
	"strings"
	"testing"

	"simbridge.dev/internal/sim/entity"
)

func TestRender_Smoke(t *testing.T) {
	c := New(Smoke{Color: "red", Location: LatLng{Lat: 41.123456789, Lng: -0.5}})
	want := `Olympus.smoke, "red", 41.12345679, -0.5`
	if got := c.Render(); got != want {
		t.Fatalf("render=%q want %q", got, want)
	}
	if got := c.Script(); got != "Olympus.protectedCall("+want+")" {
		t.Fatalf("script=%q", got)
	}
}

func TestRender_MoveAndTask(t *testing.T) {
	m := Move{
		ID:           12,
		Destination:  LatLng{Lat: 42, Lng: 43.25},
		Altitude:     3048,
		AltitudeType: "ASL",
		Speed:        220,
		SpeedType:    "CAS",
		Category:     entity.CategoryAircraft,
	}
	want := `Olympus.move, 12, 42, 43.25, 3048, "ASL", 220, "CAS", "Aircraft", {}`
	if got := m.Render(); got != want {
		t.Fatalf("render=%q want %q", got, want)
	}

	task := SetTask{ID: 3, Task: Table{}.With("id", "AttackUnit").With("targetID", uint32(9))}
	if got := task.Render(); got != `Olympus.setTask, 3, {id = "AttackUnit", targetID = 9}` {
		t.Fatalf("task render=%q", got)
	}
}

func TestRender_QuotesStrings(t *testing.T) {
	got := Smoke{Color: "a\"b\\c\n\x01"}.Render()
	if !strings.Contains(got, `"a\"b\\c\n\001"`) {
		t.Fatalf("unexpected quoting: %q", got)
	}
}

func TestNew_DefaultsAndOptions(t *testing.T) {
	sp := SpawnGroundUnits{Spawn{Coalition: "blue", Units: []SpawnUnit{{UnitType: "M-1 Abrams"}, {UnitType: "M-1 Abrams"}}}}
	c := New(sp)
	if c.Priority != Low || c.Load != 200 {
		t.Fatalf("spawn defaults: priority=%s load=%d", c.Priority, c.Load)
	}
	sp.Immediate = true
	if c := New(sp); c.Priority != Immediate {
		t.Fatalf("immediate spawn priority=%s", c.Priority)
	}

	called := 0
	c = New(Smoke{Color: "green"}, WithPriority(Immediate), WithLoad(0), WithCallback(func() { called++ }))
	if c.Priority != Immediate || c.Load != 1 {
		t.Fatalf("options not applied: priority=%s load=%d", c.Priority, c.Load)
	}
	c.Callback()
	if called != 1 {
		t.Fatalf("callback not wired")
	}
}

func TestHash_StableAndContentDerived(t *testing.T) {
	a := New(Explosion{Intensity: 5, ExplosionType: "normal", Location: LatLng{Lat: 1, Lng: 2}})
	b := New(Explosion{Intensity: 5, ExplosionType: "normal", Location: LatLng{Lat: 1, Lng: 2}}, WithPriority(Low))
	if a.Hash() != b.Hash() {
		t.Fatalf("identical content hashed differently")
	}
	if len(a.Hash()) != 32 {
		t.Fatalf("hash length=%d want 32", len(a.Hash()))
	}
	c := New(Explosion{Intensity: 6, ExplosionType: "normal", Location: LatLng{Lat: 1, Lng: 2}})
	if a.Hash() == c.Hash() {
		t.Fatalf("different content produced equal hash")
	}

	// Same field values under two variants must not collide.
	sp := Spawn{Coalition: "red", Units: []SpawnUnit{{UnitType: "x"}}}
	if New(SpawnGroundUnits{sp}).Hash() == New(SpawnNavyUnits{sp}).Hash() {
		t.Fatalf("variant kind not part of the hash")
	}
}

func TestPriority_ScanOrder(t *testing.T) {
	for i := 1; i < len(ScanOrder); i++ {
		if ScanOrder[i-1] <= ScanOrder[i] {
			t.Fatalf("scan order not descending: %v", ScanOrder)
		}
	}
}
