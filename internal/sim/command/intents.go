package command

import "simbridge.dev/internal/sim/entity"

// LatLng is a map location without altitude.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type Move struct {
	ID           uint32  `json:"id"`
	Destination  LatLng  `json:"destination"`
	Altitude     float64 `json:"altitude"`
	AltitudeType string  `json:"altitudeType"`
	Speed        float64 `json:"speed"`
	SpeedType    string  `json:"speedType"`
	Category     string  `json:"category"`
	TaskOptions  Table   `json:"taskOptions,omitempty"`
}

func (m Move) Kind() string              { return "move" }
func (m Move) defaults() (Priority, int) { return High, 5 }
func (m Move) Render() string {
	opts := m.TaskOptions
	if opts == nil {
		opts = Table{}
	}
	return args("move", m.ID, m.Destination.Lat, m.Destination.Lng, m.Altitude, m.AltitudeType,
		m.Speed, m.SpeedType, m.Category, opts)
}

type Smoke struct {
	Color    string `json:"color"`
	Location LatLng `json:"location"`
}

func (s Smoke) Kind() string              { return "smoke" }
func (s Smoke) defaults() (Priority, int) { return Low, 2 }
func (s Smoke) Render() string {
	return args("smoke", s.Color, s.Location.Lat, s.Location.Lng)
}

// SpawnUnit is one unit of a spawn request.
type SpawnUnit struct {
	UnitType string        `json:"unitType"`
	Location entity.Coords `json:"location"`
	Heading  float64       `json:"heading"`
	Loadout  string        `json:"loadout,omitempty"`
	Skill    string        `json:"skill,omitempty"`
	LiveryID string        `json:"liveryID,omitempty"`
}

func (u SpawnUnit) table() Table {
	return Table{
		{"unitType", u.UnitType},
		{"lat", u.Location.Lat},
		{"lng", u.Location.Lng},
		{"alt", u.Location.Alt},
		{"heading", u.Heading},
		{"loadout", u.Loadout},
		{"skill", u.Skill},
		{"liveryID", u.LiveryID},
	}
}

// Spawn holds the fields shared by the four spawn variants.
type Spawn struct {
	Coalition   string      `json:"coalition"`
	Country     string      `json:"country"`
	Airbase     string      `json:"airbaseName,omitempty"`
	Units       []SpawnUnit `json:"units"`
	Immediate   bool        `json:"immediate"`
	SpawnPoints int         `json:"spawnPoints"`
}

func (s Spawn) render(category string) string {
	units := make(List, 0, len(s.Units))
	for _, u := range s.Units {
		units = append(units, u.table())
	}
	return args("spawnUnits", Table{
		{"category", category},
		{"coalition", s.Coalition},
		{"airbaseName", s.Airbase},
		{"country", s.Country},
		{"units", units},
	})
}

func (s Spawn) defaults() (Priority, int) {
	p := Low
	if s.Immediate {
		p = Immediate
	}
	return p, 100 * max(1, len(s.Units))
}

type SpawnAircraft struct{ Spawn }
type SpawnHelicopters struct{ Spawn }
type SpawnGroundUnits struct{ Spawn }
type SpawnNavyUnits struct{ Spawn }

func (s SpawnAircraft) Kind() string    { return "spawnAircrafts" }
func (s SpawnHelicopters) Kind() string { return "spawnHelicopters" }
func (s SpawnGroundUnits) Kind() string { return "spawnGroundUnits" }
func (s SpawnNavyUnits) Kind() string   { return "spawnNavyUnits" }

func (s SpawnAircraft) Render() string    { return s.render(entity.CategoryAircraft) }
func (s SpawnHelicopters) Render() string { return s.render(entity.CategoryHelicopter) }
func (s SpawnGroundUnits) Render() string { return s.render(entity.CategoryGroundUnit) }
func (s SpawnNavyUnits) Render() string   { return s.render(entity.CategoryNavyUnit) }

type CloneUnit struct {
	ID       uint32 `json:"id"`
	Location LatLng `json:"location"`
}

type Clone struct {
	Units          []CloneUnit `json:"units"`
	DeleteOriginal bool        `json:"deleteOriginal"`
	SpawnPoints    int         `json:"spawnPoints"`
}

func (c Clone) Kind() string              { return "clone" }
func (c Clone) defaults() (Priority, int) { return Low, 30 * max(1, len(c.Units)) }
func (c Clone) Render() string {
	units := make(List, 0, len(c.Units))
	for _, u := range c.Units {
		units = append(units, Table{{"ID", u.ID}, {"lat", u.Location.Lat}, {"lng", u.Location.Lng}})
	}
	return args("clone", units, c.DeleteOriginal)
}

type Delete struct {
	ID            uint32 `json:"id"`
	Explosion     bool   `json:"explosion"`
	ExplosionType string `json:"explosionType,omitempty"`
	Immediate     bool   `json:"immediate"`
}

func (d Delete) Kind() string { return "delete" }
func (d Delete) defaults() (Priority, int) {
	if d.Immediate {
		return Immediate, 1
	}
	return Low, 30
}
func (d Delete) Render() string {
	return args("delete", d.ID, d.Explosion, d.ExplosionType)
}

type Explosion struct {
	Intensity     uint32 `json:"intensity"`
	ExplosionType string `json:"explosionType"`
	Location      LatLng `json:"location"`
}

func (e Explosion) Kind() string              { return "explosion" }
func (e Explosion) defaults() (Priority, int) { return High, 10 }
func (e Explosion) Render() string {
	return args("explosion", e.Intensity, e.ExplosionType, e.Location.Lat, e.Location.Lng)
}

// SetTask pushes a controller task table to a group.
type SetTask struct {
	ID   uint32 `json:"id"`
	Task Table  `json:"task"`
}

func (s SetTask) Kind() string              { return "setTask" }
func (s SetTask) defaults() (Priority, int) { return High, 2 }
func (s SetTask) Render() string            { return args("setTask", s.ID, s.Task) }

type ResetTask struct {
	ID uint32 `json:"id"`
}

func (r ResetTask) Kind() string              { return "resetTask" }
func (r ResetTask) defaults() (Priority, int) { return High, 2 }
func (r ResetTask) Render() string            { return args("resetTask", r.ID) }

// SetCommand pushes a one-shot controller command table.
type SetCommand struct {
	ID      uint32 `json:"id"`
	Command Table  `json:"command"`
}

func (s SetCommand) Kind() string              { return "setCommand" }
func (s SetCommand) defaults() (Priority, int) { return High, 2 }
func (s SetCommand) Render() string            { return args("setCommand", s.ID, s.Command) }

// SetOption sets one controller option. Value is a number or a bool.
type SetOption struct {
	ID       uint32 `json:"id"`
	OptionID uint32 `json:"optionID"`
	Value    any    `json:"value"`
}

func (s SetOption) Kind() string              { return "setOption" }
func (s SetOption) defaults() (Priority, int) { return High, 2 }
func (s SetOption) Render() string            { return args("setOption", s.ID, s.OptionID, s.Value) }

type SetOnOff struct {
	ID    uint32 `json:"id"`
	OnOff bool   `json:"onOff"`
}

func (s SetOnOff) Kind() string              { return "setOnOff" }
func (s SetOnOff) defaults() (Priority, int) { return High, 2 }
func (s SetOnOff) Render() string            { return args("setOnOff", s.ID, s.OnOff) }

var (
	_ Intent = Move{}
	_ Intent = Smoke{}
	_ Intent = SpawnAircraft{}
	_ Intent = SpawnHelicopters{}
	_ Intent = SpawnGroundUnits{}
	_ Intent = SpawnNavyUnits{}
	_ Intent = Clone{}
	_ Intent = Delete{}
	_ Intent = Explosion{}
	_ Intent = SetTask{}
	_ Intent = ResetTask{}
	_ Intent = SetCommand{}
	_ Intent = SetOption{}
	_ Intent = SetOnOff{}
)
