// Package tasking derives engine commands from the advisory state of
// controlled units. It runs once per heartbeat, after host updates are
// applied, and only looks at group leaders whose tasking revision moved.
package tasking

import (
	"log"
	"math"

	"simbridge.dev/internal/sim/command"
	"simbridge.dev/internal/sim/entity"
)

// Controller option ids understood by the host script.
const (
	OptionROE              = 0
	OptionReactionToThreat = 1
	OptionRadarUsing       = 3
	OptionFlareUsing       = 4
	OptionECMUsing         = 13
)

// Queue is where derived commands go.
type Queue interface {
	AppendCommand(c *command.Command) bool
}

// taskKey captures everything the state command is derived from.
type taskKey struct {
	state        entity.State
	pathLen      int
	waypoint     entity.Coords
	targetID     uint32
	targetPos    entity.Coords
	leaderID     uint32
	offset       entity.Offset
	speed        float64
	speedType    string
	altitude     float64
	altitudeType string
	followRoads  bool
	tanker       bool
	awacs        bool
}

type seen struct {
	rev              uint64
	task             taskKey
	roe              uint8
	reactionToThreat uint8
	emissions        uint8
	onOff            bool
	tacan            entity.TACAN
	radio            entity.Radio
}

type Tasker struct {
	log  *log.Logger
	last map[uint32]seen
}

func New(logger *log.Logger) *Tasker {
	if logger == nil {
		logger = log.Default()
	}
	return &Tasker{log: logger, last: map[uint32]seen{}}
}

// Run queues the commands implied by every changed controlled leader and
// returns them.
func (t *Tasker) Run(units *entity.Store, q Queue) []*command.Command {
	var out []*command.Command
	push := func(c *command.Command) {
		if q.AppendCommand(c) {
			out = append(out, c)
		}
	}
	live := make(map[uint32]bool, len(t.last))
	units.Each(func(e entity.Entity) bool {
		u, ok := e.(*entity.Unit)
		if !ok || !u.Alive() || !u.Controlled() {
			return true
		}
		if l, ok := units.GroupLeader(u.ID()); !ok || l.ID() != u.ID() {
			return true
		}
		live[u.ID()] = true
		advanceWaypoint(u)
		prev, known := t.last[u.ID()]
		if known && prev.rev == u.Revision() {
			return true
		}
		cur := snapshot(u)
		if !known || prev.task != cur.task {
			if c := stateCommand(u); c != nil {
				push(c)
			}
		}
		for _, c := range optionCommands(u, prev, cur, known) {
			push(c)
		}
		t.last[u.ID()] = cur
		return true
	})
	for id := range t.last {
		if !live[id] {
			delete(t.last, id)
		}
	}
	return out
}

// Arrival radius in meters around a waypoint, by unit category.
const (
	arrivalRadiusAir    = 500.0
	arrivalRadiusGround = 50.0
)

// advanceWaypoint drops the head of a moving unit's path once the unit is
// within the arrival radius of it. The path change moves the tasking
// revision, so the same pass issues the move to the next waypoint. A unit
// that reaches its last waypoint goes idle.
func advanceWaypoint(u *entity.Unit) {
	if u.State() != entity.StateReachDestination || u.UpdateTimeOf(entity.FieldPosition) == 0 {
		return
	}
	path := u.ActivePath()
	if len(path) == 0 {
		return
	}
	radius := arrivalRadiusGround
	switch u.Category() {
	case entity.CategoryAircraft, entity.CategoryHelicopter:
		radius = arrivalRadiusAir
	}
	if groundDistance(u.Position(), path[0]) > radius {
		return
	}
	u.PopWaypoint()
	if len(path) == 1 {
		u.SetState(entity.StateIdle)
	}
}

// groundDistance is the haversine distance in meters between a and b.
func groundDistance(a, b entity.Coords) float64 {
	const earthRadius = 6371000.0
	rad := math.Pi / 180
	dLat := (b.Lat - a.Lat) * rad
	dLng := (b.Lng - a.Lng) * rad
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*rad)*math.Cos(b.Lat*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(h))
}

// Forget drops the memory of a unit so its next pass re-issues everything.
func (t *Tasker) Forget(id uint32) { delete(t.last, id) }

func snapshot(u *entity.Unit) seen {
	path := u.ActivePath()
	key := taskKey{
		state:        u.State(),
		pathLen:      len(path),
		targetID:     u.TargetID(),
		targetPos:    u.TargetPosition(),
		leaderID:     u.LeaderID(),
		offset:       u.FormationOffset(),
		speed:        u.DesiredSpeed(),
		speedType:    u.DesiredSpeedType(),
		altitude:     u.DesiredAltitude(),
		altitudeType: u.DesiredAltitudeType(),
		followRoads:  u.FollowRoads(),
		tanker:       u.IsActiveTanker(),
		awacs:        u.IsActiveAWACS(),
	}
	if len(path) > 0 {
		key.waypoint = path[0]
	}
	return seen{
		rev:              u.Revision(),
		task:             key,
		roe:              u.ROE(),
		reactionToThreat: u.ReactionToThreat(),
		emissions:        u.EmissionsCountermeasures(),
		onOff:            u.OnOff(),
		tacan:            u.TACAN(),
		radio:            u.Radio(),
	}
}

func stateCommand(u *entity.Unit) *command.Command {
	id := u.ID()
	task := func(tb command.Table) *command.Command {
		return command.New(command.SetTask{ID: id, Task: tb})
	}
	at := func(name string, c entity.Coords) command.Table {
		return command.Table{}.With("id", name).With("lat", c.Lat).With("lng", c.Lng)
	}

	switch u.State() {
	case entity.StateIdle, entity.StateNone:
		switch {
		case u.IsActiveTanker():
			return task(command.Table{}.With("id", "Tanker"))
		case u.IsActiveAWACS():
			return task(command.Table{}.With("id", "AWACS"))
		}
		return command.New(command.ResetTask{ID: id})
	case entity.StateReachDestination:
		path := u.ActivePath()
		if len(path) == 0 {
			return command.New(command.ResetTask{ID: id})
		}
		return command.New(moveTo(u, path[0]))
	case entity.StateAttack:
		return task(command.Table{}.With("id", "AttackUnit").With("unitID", u.TargetID()))
	case entity.StateFollow:
		off := u.FormationOffset()
		return task(command.Table{}.
			With("id", "FollowUnit").
			With("leaderID", u.LeaderID()).
			With("offset", command.Table{}.With("x", off.X).With("y", off.Y).With("z", off.Z)))
	case entity.StateLand:
		if path := u.ActivePath(); len(path) > 0 {
			return task(at("Land", path[0]))
		}
		return task(command.Table{}.With("id", "Land"))
	case entity.StateLandAtPoint:
		if path := u.ActivePath(); len(path) > 0 {
			return task(at("LandAtPoint", path[0]))
		}
		return nil
	case entity.StateRefuel:
		return task(command.Table{}.With("id", "Refuel"))
	case entity.StateBombPoint:
		return task(at("Bombing", u.TargetPosition()))
	case entity.StateCarpetBomb:
		return task(at("CarpetBombing", u.TargetPosition()))
	case entity.StateBombBuilding:
		return task(at("AttackMapObject", u.TargetPosition()))
	case entity.StateFireAtArea:
		return task(at("FireAtPoint", u.TargetPosition()).With("radius", 100.0))
	case entity.StateSimulateFireFight:
		tp := u.TargetPosition()
		return task(at("FireAtPoint", tp).With("alt", tp.Alt).With("radius", 0.01))
	case entity.StateScenicAAA:
		return task(command.Table{}.With("id", "ScenicAAA").With("coalition", entity.CoalitionName(u.Coalition())))
	case entity.StateMissOnPurpose:
		return task(command.Table{}.With("id", "MissOnPurpose").With("coalition", entity.CoalitionName(u.Coalition())))
	case entity.StateTanker:
		return task(command.Table{}.With("id", "Tanker"))
	case entity.StateAWACS:
		return task(command.Table{}.With("id", "AWACS"))
	}
	return nil
}

func moveTo(u *entity.Unit, wp entity.Coords) command.Move {
	opts := command.Table{}
	if u.Category() == entity.CategoryGroundUnit && u.FollowRoads() {
		opts = opts.With("id", "FollowRoads").With("value", true)
	}
	return command.Move{
		ID:           u.ID(),
		Destination:  command.LatLng{Lat: wp.Lat, Lng: wp.Lng},
		Altitude:     u.DesiredAltitude(),
		AltitudeType: u.DesiredAltitudeType(),
		Speed:        u.DesiredSpeed(),
		SpeedType:    u.DesiredSpeedType(),
		Category:     u.Category(),
		TaskOptions:  opts,
	}
}

func optionCommands(u *entity.Unit, prev, cur seen, known bool) []*command.Command {
	id := u.ID()
	var out []*command.Command
	opt := func(optionID uint32, v any) {
		out = append(out, command.New(command.SetOption{ID: id, OptionID: optionID, Value: v}))
	}
	if !known || prev.roe != cur.roe {
		opt(OptionROE, cur.roe)
	}
	if !known || prev.reactionToThreat != cur.reactionToThreat {
		opt(OptionReactionToThreat, cur.reactionToThreat)
	}
	if !known || prev.emissions != cur.emissions {
		radar, flares, ecm := emissionsOptions(cur.emissions)
		opt(OptionRadarUsing, radar)
		opt(OptionFlareUsing, flares)
		opt(OptionECMUsing, ecm)
	}
	if known && prev.onOff != cur.onOff {
		out = append(out, command.New(command.SetOnOff{ID: id, OnOff: cur.onOff}))
	}
	if known && prev.tacan != cur.tacan {
		out = append(out, command.New(command.SetCommand{ID: id, Command: tacanCommand(cur.tacan)}))
	}
	if known && prev.radio != cur.radio {
		out = append(out, command.New(command.SetCommand{ID: id, Command: command.Table{}.
			With("id", "SetFrequency").
			With("frequency", cur.radio.Frequency).
			With("modulation", 0)}))
	}
	return out
}

// emissionsOptions splits the emissions level into radar, flare and ECM
// option values (silent, attack, defend, free).
func emissionsOptions(level uint8) (radar, flares, ecm uint8) {
	switch level {
	case 0:
		return 0, 0, 0
	case 1:
		return 1, 1, 1
	case 2:
		return 2, 2, 2
	default:
		return 3, 3, 3
	}
}

func tacanCommand(t entity.TACAN) command.Table {
	if !t.IsOn {
		return command.Table{}.With("id", "DeactivateBeacon")
	}
	return command.Table{}.
		With("id", "ActivateBeacon").
		With("channel", t.Channel).
		With("modeChannel", t.XY).
		With("callsign", t.Callsign)
}
