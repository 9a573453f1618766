package entity

import "simbridge.dev/internal/sim/encoding"

const (
	CategoryAircraft   = "Aircraft"
	CategoryHelicopter = "Helicopter"
	CategoryGroundUnit = "GroundUnit"
	CategoryNavyUnit   = "NavyUnit"
)

// Unit is a simulation unit. Engine-owned fields arrive through Patch;
// advisory fields are written by the request router and read by tasking.
type Unit struct {
	base

	human               bool
	controlled          bool
	country             uint8
	unitName            string
	groupName           string
	state               State
	task                string
	hasTask             bool
	horizontalVelocity  float64
	verticalVelocity    float64
	isActiveTanker      bool
	isActiveAWACS       bool
	onOff               bool
	followRoads         bool
	desiredSpeed        float64
	desiredSpeedType    string
	desiredAltitude     float64
	desiredAltitudeType string
	leaderID            uint32
	formationOffset     Offset
	targetID            uint32
	targetPosition      Coords
	roe                 uint8
	reactionToThreat    uint8
	emissions           uint8
	tacan               TACAN
	radio               Radio
	generalSettings     GeneralSettings
	activePath          []Coords
	isLeader            bool
	operateAs           uint8
	shotsScatter        uint8
	shotsIntensity      uint8
	fuel                float64

	revision uint64
}

func newUnit(id uint32, category string, clock Clock) *Unit {
	u := &Unit{base: base{id: id, clock: clock}}
	u.onTouch = func(f Field) {
		if taskingFields[f] {
			u.revision++
		}
	}
	set(&u.base, FieldCategory, &u.category, category)
	set(&u.base, FieldOnOff, &u.onOff, true)
	set(&u.base, FieldDesiredSpeedType, &u.desiredSpeedType, "GS")
	set(&u.base, FieldDesiredAltitudeType, &u.desiredAltitudeType, "AGL")
	return u
}

func (u *Unit) Kind() Kind      { return KindUnit }
func (u *Unit) Fields() []Field { return unitFields }

// Revision increases every time a field relevant to tasking is stamped.
func (u *Unit) Revision() uint64 { return u.revision }

func (u *Unit) IsAirUnit() bool {
	return u.category == CategoryAircraft || u.category == CategoryHelicopter
}

func (u *Unit) Human() bool                      { return u.human }
func (u *Unit) Controlled() bool                 { return u.controlled }
func (u *Unit) Country() uint8                   { return u.country }
func (u *Unit) UnitName() string                 { return u.unitName }
func (u *Unit) GroupName() string                { return u.groupName }
func (u *Unit) State() State                     { return u.state }
func (u *Unit) Task() string                     { return u.task }
func (u *Unit) HasTask() bool                    { return u.hasTask }
func (u *Unit) IsActiveTanker() bool             { return u.isActiveTanker }
func (u *Unit) IsActiveAWACS() bool              { return u.isActiveAWACS }
func (u *Unit) OnOff() bool                      { return u.onOff }
func (u *Unit) FollowRoads() bool                { return u.followRoads }
func (u *Unit) DesiredSpeed() float64            { return u.desiredSpeed }
func (u *Unit) DesiredSpeedType() string         { return u.desiredSpeedType }
func (u *Unit) DesiredAltitude() float64         { return u.desiredAltitude }
func (u *Unit) DesiredAltitudeType() string      { return u.desiredAltitudeType }
func (u *Unit) LeaderID() uint32                 { return u.leaderID }
func (u *Unit) FormationOffset() Offset          { return u.formationOffset }
func (u *Unit) TargetID() uint32                 { return u.targetID }
func (u *Unit) TargetPosition() Coords           { return u.targetPosition }
func (u *Unit) ROE() uint8                       { return u.roe }
func (u *Unit) ReactionToThreat() uint8          { return u.reactionToThreat }
func (u *Unit) EmissionsCountermeasures() uint8  { return u.emissions }
func (u *Unit) TACAN() TACAN                     { return u.tacan }
func (u *Unit) Radio() Radio                     { return u.radio }
func (u *Unit) GeneralSettings() GeneralSettings { return u.generalSettings }
func (u *Unit) IsLeader() bool                   { return u.isLeader }
func (u *Unit) OperateAs() uint8                 { return u.operateAs }
func (u *Unit) ShotsScatter() uint8              { return u.shotsScatter }
func (u *Unit) ShotsIntensity() uint8            { return u.shotsIntensity }
func (u *Unit) Fuel() float64                    { return u.fuel }

func (u *Unit) ActivePath() []Coords {
	out := make([]Coords, len(u.activePath))
	copy(out, u.activePath)
	return out
}

// Advisory setters. Each stamps its field only when the value changes.

func (u *Unit) SetControlled(v bool) { set(&u.base, FieldControlled, &u.controlled, v) }
func (u *Unit) SetState(v State)     { set(&u.base, FieldState, &u.state, v) }
func (u *Unit) SetOnOff(v bool)      { set(&u.base, FieldOnOff, &u.onOff, v) }
func (u *Unit) SetFollowRoads(v bool) {
	set(&u.base, FieldFollowRoads, &u.followRoads, v)
}
func (u *Unit) SetIsActiveTanker(v bool) {
	set(&u.base, FieldIsActiveTanker, &u.isActiveTanker, v)
}
func (u *Unit) SetIsActiveAWACS(v bool) {
	set(&u.base, FieldIsActiveAWACS, &u.isActiveAWACS, v)
}
func (u *Unit) SetDesiredSpeed(v float64) {
	set(&u.base, FieldDesiredSpeed, &u.desiredSpeed, v)
}
func (u *Unit) SetDesiredSpeedType(v string) {
	set(&u.base, FieldDesiredSpeedType, &u.desiredSpeedType, v)
}
func (u *Unit) SetDesiredAltitude(v float64) {
	set(&u.base, FieldDesiredAltitude, &u.desiredAltitude, v)
}
func (u *Unit) SetDesiredAltitudeType(v string) {
	set(&u.base, FieldDesiredAltitudeType, &u.desiredAltitudeType, v)
}
func (u *Unit) SetLeaderID(v uint32) { set(&u.base, FieldLeaderID, &u.leaderID, v) }
func (u *Unit) SetFormationOffset(v Offset) {
	set(&u.base, FieldFormationOffset, &u.formationOffset, v)
}
func (u *Unit) SetTargetID(v uint32) { set(&u.base, FieldTargetID, &u.targetID, v) }
func (u *Unit) SetTargetPosition(v Coords) {
	set(&u.base, FieldTargetPosition, &u.targetPosition, v)
}
func (u *Unit) SetROE(v uint8) { set(&u.base, FieldROE, &u.roe, v) }
func (u *Unit) SetReactionToThreat(v uint8) {
	set(&u.base, FieldReactionToThreat, &u.reactionToThreat, v)
}
func (u *Unit) SetEmissionsCountermeasures(v uint8) {
	set(&u.base, FieldEmissionsCountermeasures, &u.emissions, v)
}
func (u *Unit) SetTACAN(v TACAN)     { set(&u.base, FieldTACAN, &u.tacan, v) }
func (u *Unit) SetRadio(v Radio)     { set(&u.base, FieldRadio, &u.radio, v) }
func (u *Unit) SetOperateAs(v uint8) { set(&u.base, FieldOperateAs, &u.operateAs, v) }
func (u *Unit) SetShotsScatter(v uint8) {
	set(&u.base, FieldShotsScatter, &u.shotsScatter, v)
}
func (u *Unit) SetShotsIntensity(v uint8) {
	set(&u.base, FieldShotsIntensity, &u.shotsIntensity, v)
}
func (u *Unit) SetGeneralSettings(v GeneralSettings) {
	set(&u.base, FieldGeneralSettings, &u.generalSettings, v)
}

func (u *Unit) SetActivePath(path []Coords) {
	if samePath(u.activePath, path) && u.stamps[FieldActivePath] != 0 {
		return
	}
	u.activePath = append([]Coords(nil), path...)
	u.touch(FieldActivePath)
}

// PopWaypoint drops the first waypoint of the active path.
func (u *Unit) PopWaypoint() {
	if len(u.activePath) == 0 {
		return
	}
	u.SetActivePath(u.activePath[1:])
}

func (u *Unit) apply(p *Patch) {
	u.applyShared(p)
	if p.Human != nil {
		set(&u.base, FieldHuman, &u.human, *p.Human)
	}
	if p.Country != nil {
		set(&u.base, FieldCountry, &u.country, *p.Country)
	}
	if p.UnitName != nil {
		set(&u.base, FieldUnitName, &u.unitName, *p.UnitName)
	}
	if p.GroupName != nil {
		set(&u.base, FieldGroupName, &u.groupName, *p.GroupName)
	}
	if p.Task != nil {
		set(&u.base, FieldTask, &u.task, *p.Task)
	}
	if p.HasTask != nil {
		set(&u.base, FieldHasTask, &u.hasTask, *p.HasTask)
	}
	if p.HorizontalVelocity != nil {
		set(&u.base, FieldHorizontalVelocity, &u.horizontalVelocity, *p.HorizontalVelocity)
	}
	if p.VerticalVelocity != nil {
		set(&u.base, FieldVerticalVelocity, &u.verticalVelocity, *p.VerticalVelocity)
	}
	if p.IsLeader != nil {
		set(&u.base, FieldIsLeader, &u.isLeader, *p.IsLeader)
	}
	if p.Fuel != nil {
		set(&u.base, FieldFuel, &u.fuel, *p.Fuel)
	}
}

func (u *Unit) WriteField(w *encoding.Buffer, f Field) bool {
	if u.writeShared(w, f) {
		return true
	}
	switch f {
	case FieldHuman:
		w.Bool(u.human)
	case FieldControlled:
		w.Bool(u.controlled)
	case FieldCountry:
		w.Uint8(u.country)
	case FieldUnitName:
		w.String(u.unitName)
	case FieldGroupName:
		w.String(u.groupName)
	case FieldState:
		w.Uint8(uint8(u.state))
	case FieldTask:
		w.String(u.task)
	case FieldHasTask:
		w.Bool(u.hasTask)
	case FieldHorizontalVelocity:
		w.Float64(u.horizontalVelocity)
	case FieldVerticalVelocity:
		w.Float64(u.verticalVelocity)
	case FieldIsActiveTanker:
		w.Bool(u.isActiveTanker)
	case FieldIsActiveAWACS:
		w.Bool(u.isActiveAWACS)
	case FieldOnOff:
		w.Bool(u.onOff)
	case FieldFollowRoads:
		w.Bool(u.followRoads)
	case FieldDesiredSpeed:
		w.Float64(u.desiredSpeed)
	case FieldDesiredSpeedType:
		w.String(u.desiredSpeedType)
	case FieldDesiredAltitude:
		w.Float64(u.desiredAltitude)
	case FieldDesiredAltitudeType:
		w.String(u.desiredAltitudeType)
	case FieldLeaderID:
		w.Uint32(u.leaderID)
	case FieldFormationOffset:
		w.Float64(u.formationOffset.X)
		w.Float64(u.formationOffset.Y)
		w.Float64(u.formationOffset.Z)
	case FieldTargetID:
		w.Uint32(u.targetID)
	case FieldTargetPosition:
		writeCoords(w, u.targetPosition)
	case FieldROE:
		w.Uint8(u.roe)
	case FieldReactionToThreat:
		w.Uint8(u.reactionToThreat)
	case FieldEmissionsCountermeasures:
		w.Uint8(u.emissions)
	case FieldTACAN:
		w.Bool(u.tacan.IsOn)
		w.Uint8(u.tacan.Channel)
		xy := byte('X')
		if u.tacan.XY != "" {
			xy = u.tacan.XY[0]
		}
		w.Uint8(xy)
		w.String(u.tacan.Callsign)
	case FieldRadio:
		w.Uint32(u.radio.Frequency)
		w.Uint8(u.radio.Callsign)
		w.Uint8(u.radio.CallsignNumber)
	case FieldGeneralSettings:
		w.Bool(u.generalSettings.ProhibitJettison)
		w.Bool(u.generalSettings.ProhibitAA)
		w.Bool(u.generalSettings.ProhibitAG)
		w.Bool(u.generalSettings.ProhibitAfterburner)
		w.Bool(u.generalSettings.ProhibitAirWpn)
	case FieldActivePath:
		n := len(u.activePath)
		if n > 0xFFFF {
			n = 0xFFFF
		}
		w.Uint16(uint16(n))
		for _, c := range u.activePath[:n] {
			writeCoords(w, c)
		}
	case FieldIsLeader:
		w.Bool(u.isLeader)
	case FieldOperateAs:
		w.Uint8(u.operateAs)
	case FieldShotsScatter:
		w.Uint8(u.shotsScatter)
	case FieldShotsIntensity:
		w.Uint8(u.shotsIntensity)
	case FieldFuel:
		w.Float64(u.fuel)
	default:
		return false
	}
	return true
}
