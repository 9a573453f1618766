package entity

// Field is a wire tag identifying one independently dirty-tracked data channel.
// Tags are part of the poll protocol: a new field gets a new tag, an existing
// tag is never redefined.
type Field uint8

const (
	FieldCategory Field = iota + 1
	FieldAlive
	FieldHuman
	FieldControlled
	FieldCoalition
	FieldCountry
	FieldName
	FieldUnitName
	FieldGroupName
	FieldState
	FieldTask
	FieldHasTask
	FieldPosition
	FieldSpeed
	FieldHorizontalVelocity
	FieldVerticalVelocity
	FieldHeading
	FieldIsActiveTanker
	FieldIsActiveAWACS
	FieldOnOff
	FieldFollowRoads
	FieldDesiredSpeed
	FieldDesiredSpeedType
	FieldDesiredAltitude
	FieldDesiredAltitudeType
	FieldLeaderID
	FieldFormationOffset
	FieldTargetID
	FieldTargetPosition
	FieldROE
	FieldReactionToThreat
	FieldEmissionsCountermeasures
	FieldTACAN
	FieldRadio
	FieldGeneralSettings
	FieldActivePath
	FieldIsLeader
	FieldOperateAs
	FieldShotsScatter
	FieldShotsIntensity
	FieldFuel

	fieldLimit // one past the last tag; keep last
)

type valueKind uint8

const (
	kindBool valueKind = iota + 1
	kindUint8
	kindUint32
	kindFloat64
	kindString
	kindCoords
	kindOffset
	kindTACAN
	kindRadio
	kindGeneralSettings
	kindPath
)

var fieldInfo = [fieldLimit]struct {
	name string
	kind valueKind
}{
	FieldCategory:                 {"category", kindString},
	FieldAlive:                    {"alive", kindBool},
	FieldHuman:                    {"human", kindBool},
	FieldControlled:               {"controlled", kindBool},
	FieldCoalition:                {"coalition", kindUint8},
	FieldCountry:                  {"country", kindUint8},
	FieldName:                     {"name", kindString},
	FieldUnitName:                 {"unitName", kindString},
	FieldGroupName:                {"groupName", kindString},
	FieldState:                    {"state", kindUint8},
	FieldTask:                     {"task", kindString},
	FieldHasTask:                  {"hasTask", kindBool},
	FieldPosition:                 {"position", kindCoords},
	FieldSpeed:                    {"speed", kindFloat64},
	FieldHorizontalVelocity:       {"horizontalVelocity", kindFloat64},
	FieldVerticalVelocity:         {"verticalVelocity", kindFloat64},
	FieldHeading:                  {"heading", kindFloat64},
	FieldIsActiveTanker:           {"isActiveTanker", kindBool},
	FieldIsActiveAWACS:            {"isActiveAWACS", kindBool},
	FieldOnOff:                    {"onOff", kindBool},
	FieldFollowRoads:              {"followRoads", kindBool},
	FieldDesiredSpeed:             {"desiredSpeed", kindFloat64},
	FieldDesiredSpeedType:         {"desiredSpeedType", kindString},
	FieldDesiredAltitude:          {"desiredAltitude", kindFloat64},
	FieldDesiredAltitudeType:      {"desiredAltitudeType", kindString},
	FieldLeaderID:                 {"leaderID", kindUint32},
	FieldFormationOffset:          {"formationOffset", kindOffset},
	FieldTargetID:                 {"targetID", kindUint32},
	FieldTargetPosition:           {"targetPosition", kindCoords},
	FieldROE:                      {"ROE", kindUint8},
	FieldReactionToThreat:         {"reactionToThreat", kindUint8},
	FieldEmissionsCountermeasures: {"emissionsCountermeasures", kindUint8},
	FieldTACAN:                    {"TACAN", kindTACAN},
	FieldRadio:                    {"radio", kindRadio},
	FieldGeneralSettings:          {"generalSettings", kindGeneralSettings},
	FieldActivePath:               {"activePath", kindPath},
	FieldIsLeader:                 {"isLeader", kindBool},
	FieldOperateAs:                {"operateAs", kindUint8},
	FieldShotsScatter:             {"shotsScatter", kindUint8},
	FieldShotsIntensity:           {"shotsIntensity", kindUint8},
	FieldFuel:                     {"fuel", kindFloat64},
}

func (f Field) Valid() bool { return f > 0 && f < fieldLimit }

func (f Field) String() string {
	if !f.Valid() {
		return "unknown"
	}
	return fieldInfo[f].name
}

// unitFields is the full enumeration order for units (ascending tag order).
var unitFields = func() []Field {
	out := make([]Field, 0, int(fieldLimit)-1)
	for f := FieldCategory; f < fieldLimit; f++ {
		out = append(out, f)
	}
	return out
}()

var weaponFields = []Field{
	FieldCategory,
	FieldAlive,
	FieldCoalition,
	FieldName,
	FieldPosition,
	FieldSpeed,
	FieldHeading,
}

// taskingFields bump a unit's tasking revision when stamped.
var taskingFields = map[Field]bool{
	FieldState:                    true,
	FieldActivePath:               true,
	FieldTargetID:                 true,
	FieldTargetPosition:           true,
	FieldLeaderID:                 true,
	FieldFormationOffset:          true,
	FieldDesiredSpeed:             true,
	FieldDesiredSpeedType:         true,
	FieldDesiredAltitude:          true,
	FieldDesiredAltitudeType:      true,
	FieldIsActiveTanker:           true,
	FieldIsActiveAWACS:            true,
	FieldTACAN:                    true,
	FieldRadio:                    true,
	FieldOnOff:                    true,
	FieldFollowRoads:              true,
	FieldROE:                      true,
	FieldReactionToThreat:         true,
	FieldEmissionsCountermeasures: true,
	FieldOperateAs:                true,
	FieldShotsScatter:             true,
	FieldShotsIntensity:           true,
}
