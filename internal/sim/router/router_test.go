package router

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"testing"

	"simbridge.dev/internal/sim/entity"
	"simbridge.dev/internal/sim/scheduler"
)

type fixture struct {
	r     *Router
	sched *scheduler.Scheduler
	units *entity.Store
}

type fakeCatalog map[string]bool

func (c fakeCatalog) HasUnitType(category, unitType string) (bool, bool) {
	if len(c) == 0 {
		return false, false
	}
	return c[category+"/"+unitType], true
}

func newFixture(t *testing.T, opts scheduler.CommandModeOptions, ro Options) *fixture {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	sched := scheduler.New(scheduler.Config{Options: opts}, logger)
	units := entity.NewStore(entity.KindUnit, func() int64 { return 1000 })
	r, err := New(sched, units, ro, logger)
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return &fixture{r: r, sched: sched, units: units}
}

func (f *fixture) addUnit(t *testing.T, id uint32, category string, coalition uint8, group string, leader bool) *entity.Unit {
	t.Helper()
	e, err := f.units.Upsert(id, entity.Patch{
		Category:  entity.Ptr(category),
		Alive:     entity.Ptr(true),
		Coalition: entity.Ptr(coalition),
		GroupName: entity.Ptr(group),
		IsLeader:  entity.Ptr(leader),
		UnitName:  entity.Ptr(group + "-" + category),
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	return e.(*entity.Unit)
}

func batch(t *testing.T, s string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("batch json: %v", err)
	}
	return m
}

var gm = Caller{Username: "gm", Role: RoleGameMaster}

func outcome(t *testing.T, res Result, key string) Outcome {
	t.Helper()
	for _, o := range res.Outcomes {
		if o.Intent == key {
			return o
		}
	}
	t.Fatalf("no outcome for %s in %+v", key, res.Outcomes)
	return Outcome{}
}

func TestNew_CompilesEverySchema(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	if got, want := len(f.r.Intents()), len(intentTable); got != want {
		t.Fatalf("intents=%d want %d", got, want)
	}
}

func TestHandle_SmokeCreatesCommand(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	res := f.r.Handle(gm, batch(t, `{"smoke":{"color":"red","location":{"lat":41.5,"lng":42.5}}}`))
	if res.CommandHash == "" {
		t.Fatalf("no command hash")
	}
	p := f.sched.Pending()
	if len(p) != 1 || p[0].Hash() != res.CommandHash {
		t.Fatalf("pending=%d", len(p))
	}
	if got := outcome(t, res, "smoke").Status; got != StatusQueued {
		t.Fatalf("status=%s", got)
	}

	res = f.r.Handle(gm, batch(t, `{"smoke":{"color":"red","location":{"lat":41.5,"lng":42.5}}}`))
	if got := outcome(t, res, "smoke").Status; got != StatusDuplicate {
		t.Fatalf("resubmission status=%s", got)
	}
	if len(f.sched.Pending()) != 1 {
		t.Fatalf("duplicate queued")
	}
}

func TestHandle_MalformedIntentDroppedBatchContinues(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	u := f.addUnit(t, 1, entity.CategoryAircraft, entity.CoalitionBlue, "", true)
	res := f.r.Handle(gm, batch(t, `{
		"smoke": {"color": 5},
		"setSpeed": {"ID": 1, "speed": 200},
		"explosion": {"location": {"lat": 1, "lng": 2}},
		"bogus": {}
	}`))
	if outcome(t, res, "smoke").Status != StatusDropped {
		t.Fatalf("mistyped smoke not dropped")
	}
	if outcome(t, res, "explosion").Status != StatusDropped {
		t.Fatalf("explosion without intensity not dropped")
	}
	if outcome(t, res, "bogus").Status != StatusUnknown {
		t.Fatalf("unknown key not reported")
	}
	if outcome(t, res, "setSpeed").Status != StatusApplied || u.DesiredSpeed() != 200 {
		t.Fatalf("valid intent in the same batch not applied: speed=%v", u.DesiredSpeed())
	}
	if res.CommandHash != "" || len(f.sched.Pending()) != 0 {
		t.Fatalf("dropped intents produced commands")
	}
}

func TestHandle_UnresolvedIDDropped(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	f.addUnit(t, 1, entity.CategoryGroundUnit, entity.CoalitionRed, "", true)
	res := f.r.Handle(gm, batch(t, `{"attackUnit":{"ID":1,"targetID":99},"setROE":{"ID":42,"ROE":2}}`))
	for _, key := range []string{"attackUnit", "setROE"} {
		if outcome(t, res, key).Status != StatusDropped {
			t.Fatalf("%s with unresolved id not dropped", key)
		}
	}
}

func TestHandle_AdvisoryAppliesToGroupLeaderAndAcquiresControl(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	wing := f.addUnit(t, 1, entity.CategoryAircraft, entity.CoalitionBlue, "Viper", false)
	lead := f.addUnit(t, 2, entity.CategoryAircraft, entity.CoalitionBlue, "Viper", true)
	f.addUnit(t, 3, entity.CategoryAircraft, entity.CoalitionRed, "Flanker", true)

	res := f.r.Handle(gm, batch(t, `{
		"setPath": {"ID": 1, "path": [{"lat": 1, "lng": 2}, {"lat": 3, "lng": 4}]},
		"setROE": {"ID": 1, "ROE": 4}
	}`))
	if res.CommandHash != "" {
		t.Fatalf("advisory intents must not create commands")
	}
	if lead.State() != entity.StateReachDestination || len(lead.ActivePath()) != 2 || lead.ROE() != 4 {
		t.Fatalf("leader state=%s path=%d roe=%d", lead.State(), len(lead.ActivePath()), lead.ROE())
	}
	if !wing.Controlled() || !lead.Controlled() {
		t.Fatalf("control not acquired for the whole group")
	}
	if wing.ROE() != 0 || len(wing.ActivePath()) != 0 {
		t.Fatalf("advisory change applied to the wingman")
	}

	f.r.Handle(gm, batch(t, `{"attackUnit":{"ID":2,"targetID":3}}`))
	if lead.State() != entity.StateAttack || lead.TargetID() != 3 {
		t.Fatalf("attack not applied: state=%s target=%d", lead.State(), lead.TargetID())
	}
}

func TestHandle_ChangeSpeedAndAltitude(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	u := f.addUnit(t, 1, entity.CategoryAircraft, entity.CoalitionBlue, "", true)
	u.SetDesiredSpeed(30)
	f.r.Handle(gm, batch(t, `{"changeSpeed":{"ID":1,"change":"slow"}}`))
	if u.DesiredSpeed() != 50*knot {
		t.Fatalf("aircraft speed floor not applied: %v", u.DesiredSpeed())
	}
	f.r.Handle(gm, batch(t, `{"changeAltitude":{"ID":1,"change":"climb"}}`))
	if u.DesiredAltitude() != 500*foot {
		t.Fatalf("altitude=%v", u.DesiredAltitude())
	}
	f.r.Handle(gm, batch(t, `{"changeAltitude":{"ID":1,"change":"descend"}}`))
	f.r.Handle(gm, batch(t, `{"changeAltitude":{"ID":1,"change":"descend"}}`))
	if u.DesiredAltitude() != 0 {
		t.Fatalf("altitude went below zero: %v", u.DesiredAltitude())
	}
	f.r.Handle(gm, batch(t, `{"changeSpeed":{"ID":1,"change":"stop"}}`))
	if u.State() != entity.StateIdle {
		t.Fatalf("stop did not idle the unit")
	}
}

func TestHandle_SetAdvancedOptionsTruncatesCallsign(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	u := f.addUnit(t, 1, entity.CategoryAircraft, entity.CoalitionBlue, "", true)
	res := f.r.Handle(gm, batch(t, `{"setAdvancedOptions":{
		"ID": 1, "isActiveTanker": true, "isActiveAWACS": false,
		"TACAN": {"isOn": true, "channel": 40, "XY": "Y", "callsign": "TEXACO"},
		"radio": {"frequency": 251000000, "callsign": 1, "callsignNumber": 1},
		"generalSettings": {"prohibitJettison": false, "prohibitAA": true, "prohibitAG": false, "prohibitAfterburner": false, "prohibitAirWpn": false}
	}}`))
	if outcome(t, res, "setAdvancedOptions").Status != StatusApplied {
		t.Fatalf("outcome=%+v", res.Outcomes)
	}
	if !u.IsActiveTanker() || u.TACAN().Callsign != "TEX" || u.Radio().Frequency != 251000000 || !u.GeneralSettings().ProhibitAA {
		t.Fatalf("advanced options not applied: %+v %+v", u.TACAN(), u.Radio())
	}
}

const spawnBlue = `{"spawnGroundUnits":{"coalition":"blue","country":"USA","immediate":false,"spawnPoints":%d,
	"units":[{"unitType":"M-1 Abrams","location":{"lat":1,"lng":2}}]}}`

func spawnBatch(t *testing.T, points int) map[string]json.RawMessage {
	t.Helper()
	return batch(t, fmt.Sprintf(spawnBlue, points))
}

func TestHandle_SpawnBudgetGatesCommandConstruction(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{RestrictSpawns: true, SpawnPoints: scheduler.SpawnPoints{Blue: 100}}, Options{})

	res := f.r.Handle(gm, spawnBatch(t, 50))
	if res.CommandHash == "" {
		t.Fatalf("affordable spawn rejected")
	}
	res = f.r.Handle(gm, spawnBatch(t, 60))
	if res.CommandHash != "" || outcome(t, res, "spawnGroundUnits").Status != StatusDropped {
		t.Fatalf("unaffordable spawn built a command")
	}
	if len(f.sched.Pending()) != 1 {
		t.Fatalf("pending=%d want 1", len(f.sched.Pending()))
	}
	if got := f.sched.CommandModeOptions().SpawnPoints.Blue; got != 50 {
		t.Fatalf("blue budget=%d want 50", got)
	}
}

func TestHandle_SpawnUnknownUnitTypeDoesNotReserve(t *testing.T) {
	cat := fakeCatalog{entity.CategoryGroundUnit + "/T-72B": true}
	f := newFixture(t, scheduler.CommandModeOptions{RestrictSpawns: true, SpawnPoints: scheduler.SpawnPoints{Blue: 100}}, Options{Catalog: cat})
	res := f.r.Handle(gm, spawnBatch(t, 10))
	if outcome(t, res, "spawnGroundUnits").Status != StatusDropped {
		t.Fatalf("unknown unit type spawned")
	}
	if got := f.sched.CommandModeOptions().SpawnPoints.Blue; got != 100 {
		t.Fatalf("points reserved for a rejected spawn: %d", got)
	}
}

func TestHandle_RestrictToCoalition(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{RestrictToCoalition: true}, Options{})
	red := f.addUnit(t, 1, entity.CategoryGroundUnit, entity.CoalitionRed, "", true)
	blueCmdr := Caller{Username: "blue", Role: RoleBlueCommander}

	res := f.r.Handle(blueCmdr, batch(t, `{"setROE":{"ID":1,"ROE":1}}`))
	if outcome(t, res, "setROE").Status != StatusDropped || red.ROE() != 0 {
		t.Fatalf("blue commander changed a red unit")
	}
	if res := f.r.Handle(blueCmdr, spawnBatch(t, 0)); res.CommandHash == "" {
		t.Fatalf("blue commander could not spawn for blue")
	}
	res = f.r.Handle(gm, batch(t, `{"setROE":{"ID":1,"ROE":1}}`))
	if outcome(t, res, "setROE").Status != StatusApplied || red.ROE() != 1 {
		t.Fatalf("game master restricted")
	}
	res = f.r.Handle(blueCmdr, batch(t, `{"setCommandModeOptions":{"restrictToCoalition":false}}`))
	if outcome(t, res, "setCommandModeOptions").Status != StatusDropped {
		t.Fatalf("commander changed command mode options")
	}
}

func TestHandle_CommandModeOptionsPartial(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{SetupTime: 60, SpawnPoints: scheduler.SpawnPoints{Blue: 1, Red: 2}}, Options{})
	f.r.Handle(gm, batch(t, `{"setCommandModeOptions":{"restrictSpawns":true,"spawnPoints":{"red":30}}}`))
	o := f.sched.CommandModeOptions()
	if !o.RestrictSpawns || o.SetupTime != 60 || o.SpawnPoints.Blue != 1 || o.SpawnPoints.Red != 30 {
		t.Fatalf("options=%+v", o)
	}
}

func TestHandle_LastCommandHashWins(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	res := f.r.Handle(gm, batch(t, `{
		"explosion": {"intensity": 3, "location": {"lat": 1, "lng": 1}},
		"smoke": {"color": "blue", "location": {"lat": 1, "lng": 1}}
	}`))
	if len(f.sched.Pending()) != 2 {
		t.Fatalf("pending=%d", len(f.sched.Pending()))
	}
	if res.CommandHash != outcome(t, res, "smoke").Hash {
		t.Fatalf("command hash is not the last created command's")
	}
}

func TestHandle_DeleteAndClone(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	f.addUnit(t, 7, entity.CategoryNavyUnit, entity.CoalitionBlue, "", true)
	res := f.r.Handle(gm, batch(t, `{"deleteUnit":{"ID":7,"explosion":false,"immediate":true}}`))
	if res.CommandHash == "" {
		t.Fatalf("delete built no command")
	}
	res = f.r.Handle(gm, batch(t, `{"cloneUnits":{"deleteOriginal":false,"units":[{"ID":7,"location":{"lat":5,"lng":6}}]}}`))
	if res.CommandHash == "" {
		t.Fatalf("clone built no command")
	}
	res = f.r.Handle(gm, batch(t, `{"deleteUnit":{"ID":8}}`))
	if res.CommandHash != "" {
		t.Fatalf("delete of unknown unit built a command")
	}
}

func TestHandle_ReloadDatabasesIsDeferredToCaller(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	res := f.r.Handle(gm, batch(t, `{"reloadDatabases":{}}`))
	if !res.ReloadDatabases || outcome(t, res, "reloadDatabases").Status != StatusApplied {
		t.Fatalf("reload not requested: %+v", res)
	}
	if res := f.r.Handle(gm, batch(t, `{"smoke":{"color":"red","location":{"lat":1,"lng":1}}}`)); res.ReloadDatabases {
		t.Fatalf("reload requested by an unrelated batch")
	}
}

func TestHandle_DuplicateReportsAbsorbingHash(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	first := f.r.Handle(gm, batch(t, `{"smoke":{"color":"red","location":{"lat":41.12345678901,"lng":2}}}`))
	second := f.r.Handle(gm, batch(t, `{"smoke":{"color":"red","location":{"lat":41.12345678902,"lng":2}}}`))
	if outcome(t, second, "smoke").Status != StatusDuplicate {
		t.Fatalf("second smoke outcome=%+v", second.Outcomes)
	}
	if second.CommandHash != first.CommandHash {
		t.Fatalf("duplicate hash %s, want the pending command's %s", second.CommandHash, first.CommandHash)
	}
	f.sched.SetRuntime(nopRuntime{})
	f.sched.Execute()
	if !f.sched.IsCommandExecuted(second.CommandHash) {
		t.Fatalf("hash returned for the duplicate never completes")
	}
}

type nopRuntime struct{}

func (nopRuntime) Exec(string, string) error { return nil }

func TestHandle_UnresolvedTargetLeavesUnitUntouched(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{}, Options{})
	u := f.addUnit(t, 1, entity.CategoryAircraft, entity.CoalitionBlue, "Viper", true)
	u.SetActivePath([]entity.Coords{{Lat: 1, Lng: 2}})
	for _, in := range []string{
		`{"attackUnit":{"ID":1,"targetID":99}}`,
		`{"followUnit":{"ID":1,"targetID":99,"offsetX":0,"offsetY":0,"offsetZ":0}}`,
	} {
		res := f.r.Handle(gm, batch(t, in))
		if res.Outcomes[0].Status != StatusDropped {
			t.Fatalf("%s: outcome=%+v", in, res.Outcomes)
		}
	}
	if u.Controlled() || len(u.ActivePath()) != 1 {
		t.Fatalf("dropped intent changed the unit: controlled=%v path=%d", u.Controlled(), len(u.ActivePath()))
	}
}

func TestHandle_CloneMixedCoalitionsWithSpawnPoints(t *testing.T) {
	f := newFixture(t, scheduler.CommandModeOptions{RestrictSpawns: true, SpawnPoints: scheduler.SpawnPoints{Blue: 100, Red: 100}}, Options{})
	f.addUnit(t, 1, entity.CategoryGroundUnit, entity.CoalitionBlue, "A", true)
	f.addUnit(t, 2, entity.CategoryGroundUnit, entity.CoalitionRed, "B", true)
	mixed := `{"cloneUnits":{"deleteOriginal":false,"spawnPoints":%d,"units":[
		{"ID":1,"location":{"lat":1,"lng":1}},{"ID":2,"location":{"lat":2,"lng":2}}]}}`

	res := f.r.Handle(gm, batch(t, fmt.Sprintf(mixed, 20)))
	if outcome(t, res, "cloneUnits").Status != StatusDropped {
		t.Fatalf("mixed clone with spawn points accepted: %+v", res.Outcomes)
	}
	if o := f.sched.CommandModeOptions().SpawnPoints; o.Blue != 100 || o.Red != 100 {
		t.Fatalf("points reserved for a rejected clone: %+v", o)
	}
	if res := f.r.Handle(gm, batch(t, fmt.Sprintf(mixed, 0))); res.CommandHash == "" {
		t.Fatalf("free mixed clone rejected: %+v", res.Outcomes)
	}
}
