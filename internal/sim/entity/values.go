package entity

import "strings"

type Coords struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
	Alt float64 `json:"alt"`
}

type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type TACAN struct {
	IsOn     bool   `json:"isOn"`
	Channel  uint8  `json:"channel"`
	XY       string `json:"XY"`
	Callsign string `json:"callsign"`
}

type Radio struct {
	Frequency      uint32 `json:"frequency"`
	Callsign       uint8  `json:"callsign"`
	CallsignNumber uint8  `json:"callsignNumber"`
}

type GeneralSettings struct {
	ProhibitJettison    bool `json:"prohibitJettison"`
	ProhibitAA          bool `json:"prohibitAA"`
	ProhibitAG          bool `json:"prohibitAG"`
	ProhibitAfterburner bool `json:"prohibitAfterburner"`
	ProhibitAirWpn      bool `json:"prohibitAirWpn"`
}

// State is the advisory task a controlled unit should be carrying out.
type State uint8

const (
	StateNone State = iota
	StateIdle
	StateReachDestination
	StateAttack
	StateFollow
	StateLand
	StateRefuel
	StateAWACS
	StateTanker
	StateBombPoint
	StateCarpetBomb
	StateBombBuilding
	StateFireAtArea
	StateSimulateFireFight
	StateScenicAAA
	StateMissOnPurpose
	StateLandAtPoint
)

var stateNames = [...]string{
	StateNone:              "none",
	StateIdle:              "idle",
	StateReachDestination:  "reach-destination",
	StateAttack:            "attack",
	StateFollow:            "follow",
	StateLand:              "land",
	StateRefuel:            "refuel",
	StateAWACS:             "awacs",
	StateTanker:            "tanker",
	StateBombPoint:         "bomb-point",
	StateCarpetBomb:        "carpet-bomb",
	StateBombBuilding:      "bomb-building",
	StateFireAtArea:        "fire-at-area",
	StateSimulateFireFight: "simulate-fire-fight",
	StateScenicAAA:         "scenic-aaa",
	StateMissOnPurpose:     "miss-on-purpose",
	StateLandAtPoint:       "land-at-point",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// Coalition ids as reported by the simulation.
const (
	CoalitionNeutral uint8 = 0
	CoalitionRed     uint8 = 1
	CoalitionBlue    uint8 = 2
)

func CoalitionName(id uint8) string {
	switch id {
	case CoalitionRed:
		return "red"
	case CoalitionBlue:
		return "blue"
	default:
		return "neutral"
	}
}

// CoalitionID maps "red"/"blue"/"neutral" to the simulation id.
func CoalitionID(name string) (uint8, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "red":
		return CoalitionRed, true
	case "blue":
		return CoalitionBlue, true
	case "neutral":
		return CoalitionNeutral, true
	}
	return 0, false
}

func samePath(a, b []Coords) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
