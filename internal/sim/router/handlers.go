package router

import (
	"fmt"

	"simbridge.dev/internal/sim/command"
	"simbridge.dev/internal/sim/entity"
	"simbridge.dev/internal/sim/scheduler"
)

type intentDef struct {
	schema string
	fn     func(r *Router, c *call) error
}

var intentTable = map[string]intentDef{
	"setPath":                     {"setPath", (*Router).setPath},
	"smoke":                       {"smoke", (*Router).smoke},
	"spawnAircrafts":              {"spawn", (*Router).spawn},
	"spawnHelicopters":            {"spawn", (*Router).spawn},
	"spawnGroundUnits":            {"spawn", (*Router).spawn},
	"spawnNavyUnits":              {"spawn", (*Router).spawn},
	"attackUnit":                  {"attackUnit", (*Router).attackUnit},
	"followUnit":                  {"followUnit", (*Router).followUnit},
	"changeSpeed":                 {"changeSpeed", (*Router).changeSpeed},
	"changeAltitude":              {"changeAltitude", (*Router).changeAltitude},
	"setSpeed":                    {"setSpeed", (*Router).setSpeed},
	"setSpeedType":                {"setSpeedType", (*Router).setSpeedType},
	"setAltitude":                 {"setAltitude", (*Router).setAltitude},
	"setAltitudeType":             {"setAltitudeType", (*Router).setAltitudeType},
	"cloneUnits":                  {"cloneUnits", (*Router).cloneUnits},
	"setROE":                      {"setROE", (*Router).setROE},
	"setReactionToThreat":         {"setReactionToThreat", (*Router).setReactionToThreat},
	"setEmissionsCountermeasures": {"setEmissionsCountermeasures", (*Router).setEmissions},
	"landAt":                      {"located", (*Router).landAt},
	"deleteUnit":                  {"deleteUnit", (*Router).deleteUnit},
	"refuel":                      {"unitRef", stateTask(entity.StateRefuel)},
	"setAdvancedOptions":          {"setAdvancedOptions", (*Router).setAdvancedOptions},
	"setFollowRoads":              {"setFollowRoads", (*Router).setFollowRoads},
	"setOnOff":                    {"setOnOff", (*Router).setOnOff},
	"explosion":                   {"explosion", (*Router).explosion},
	"bombPoint":                   {"located", targetTask(entity.StateBombPoint)},
	"carpetBomb":                  {"located", targetTask(entity.StateCarpetBomb)},
	"fireAtArea":                  {"located", targetTask(entity.StateFireAtArea)},
	"simulateFireFight":           {"simulateFireFight", targetTask(entity.StateSimulateFireFight)},
	"scenicAAA":                   {"unitRef", stateTask(entity.StateScenicAAA)},
	"missOnPurpose":               {"unitRef", stateTask(entity.StateMissOnPurpose)},
	"setOperateAs":                {"setOperateAs", (*Router).setOperateAs},
	"landAtPoint":                 {"located", (*Router).landAtPoint},
	"setShotsScatter":             {"setShotsScatter", (*Router).setShotsScatter},
	"setShotsIntensity":           {"setShotsIntensity", (*Router).setShotsIntensity},
	"setCommandModeOptions":       {"setCommandModeOptions", (*Router).setCommandModeOptions},
	"reloadDatabases":             {"empty", (*Router).reloadDatabases},
}

type latLng struct {
	Lat float64  `json:"lat"`
	Lng float64  `json:"lng"`
	Alt *float64 `json:"alt"`
}

func (l latLng) coords() entity.Coords {
	c := entity.Coords{Lat: l.Lat, Lng: l.Lng}
	if l.Alt != nil {
		c.Alt = *l.Alt
	}
	return c
}

type unitRef struct {
	ID uint32 `json:"ID"`
}

type located struct {
	ID       uint32  `json:"ID"`
	Location latLng  `json:"location"`
	Altitude float64 `json:"altitude"`
}

const (
	knot = 0.514444
	foot = 0.3048
)

// Advisory intents.

func (r *Router) setPath(c *call) error {
	var p struct {
		ID   uint32   `json:"ID"`
		Path []latLng `json:"path"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	path := make([]entity.Coords, 0, len(p.Path))
	for _, wp := range p.Path {
		path = append(path, wp.coords())
	}
	u.SetActivePath(path)
	u.SetState(entity.StateReachDestination)
	r.log.Printf("%s updated destination path for unit %s", c.Username, entity.Describe(u))
	return nil
}

func (r *Router) attackUnit(c *call) error {
	var p struct {
		ID       uint32 `json:"ID"`
		TargetID uint32 `json:"targetID"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	target, ok := r.adv.Unit(p.TargetID)
	if !ok {
		return fmt.Errorf("%w: target %d", errUnresolved, p.TargetID)
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	u.SetTargetID(p.TargetID)
	u.SetState(entity.StateAttack)
	r.log.Printf("%s tasked unit %s to attack unit %s", c.Username, entity.Describe(u), entity.Describe(target))
	return nil
}

func (r *Router) followUnit(c *call) error {
	var p struct {
		ID       uint32  `json:"ID"`
		TargetID uint32  `json:"targetID"`
		OffsetX  float64 `json:"offsetX"`
		OffsetY  float64 `json:"offsetY"`
		OffsetZ  float64 `json:"offsetZ"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	leader, ok := r.adv.Unit(p.TargetID)
	if !ok {
		return fmt.Errorf("%w: leader %d", errUnresolved, p.TargetID)
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	u.SetFormationOffset(entity.Offset{X: p.OffsetX, Y: p.OffsetY, Z: p.OffsetZ})
	u.SetLeaderID(p.TargetID)
	u.SetState(entity.StateFollow)
	r.log.Printf("%s tasked unit %s to follow unit %s", c.Username, entity.Describe(u), entity.Describe(leader))
	return nil
}

func (r *Router) changeSpeed(c *call) error {
	var p struct {
		ID     uint32 `json:"ID"`
		Change string `json:"change"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	step, floor := 5*knot, 0.0
	switch u.Category() {
	case entity.CategoryAircraft:
		step, floor = 25*knot, 50*knot
	case entity.CategoryHelicopter:
		step = 10 * knot
	}
	switch p.Change {
	case "stop":
		u.SetState(entity.StateIdle)
	case "slow":
		u.SetDesiredSpeed(u.DesiredSpeed() - step)
	case "fast":
		u.SetDesiredSpeed(u.DesiredSpeed() + step)
	}
	if u.DesiredSpeed() < floor {
		u.SetDesiredSpeed(floor)
	}
	r.log.Printf("%s changed %s speed: %s", c.Username, entity.Describe(u), p.Change)
	return nil
}

func (r *Router) changeAltitude(c *call) error {
	var p struct {
		ID     uint32 `json:"ID"`
		Change string `json:"change"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	if !u.IsAirUnit() {
		return fmt.Errorf("unit %d is not an air unit", p.ID)
	}
	alt := u.DesiredAltitude()
	step := 500 * foot
	if alt > 5000 {
		step = 2500 * foot
	}
	switch p.Change {
	case "descend":
		if alt > 0 {
			alt -= step
		}
	case "climb":
		alt += step
	}
	u.SetDesiredAltitude(max(alt, 0))
	r.log.Printf("%s changed %s altitude: %s", c.Username, entity.Describe(u), p.Change)
	return nil
}

func (r *Router) setSpeed(c *call) error {
	var p struct {
		ID    uint32  `json:"ID"`
		Speed float64 `json:"speed"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetDesiredSpeed(p.Speed) })
}

func (r *Router) setSpeedType(c *call) error {
	var p struct {
		ID        uint32 `json:"ID"`
		SpeedType string `json:"speedType"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetDesiredSpeedType(p.SpeedType) })
}

func (r *Router) setAltitude(c *call) error {
	var p struct {
		ID       uint32  `json:"ID"`
		Altitude float64 `json:"altitude"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetDesiredAltitude(p.Altitude) })
}

func (r *Router) setAltitudeType(c *call) error {
	var p struct {
		ID           uint32 `json:"ID"`
		AltitudeType string `json:"altitudeType"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetDesiredAltitudeType(p.AltitudeType) })
}

func (r *Router) setROE(c *call) error {
	var p struct {
		ID  uint32 `json:"ID"`
		ROE uint8  `json:"ROE"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetROE(p.ROE) })
}

func (r *Router) setReactionToThreat(c *call) error {
	var p struct {
		ID    uint32 `json:"ID"`
		Value uint8  `json:"reactionToThreat"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetReactionToThreat(p.Value) })
}

func (r *Router) setEmissions(c *call) error {
	var p struct {
		ID    uint32 `json:"ID"`
		Value uint8  `json:"emissionsCountermeasures"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetEmissionsCountermeasures(p.Value) })
}

func (r *Router) setFollowRoads(c *call) error {
	var p struct {
		ID          uint32 `json:"ID"`
		FollowRoads bool   `json:"followRoads"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetFollowRoads(p.FollowRoads) })
}

func (r *Router) setOnOff(c *call) error {
	var p struct {
		ID    uint32 `json:"ID"`
		OnOff bool   `json:"onOff"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetOnOff(p.OnOff) })
}

func (r *Router) setOperateAs(c *call) error {
	var p struct {
		ID        uint32 `json:"ID"`
		OperateAs uint8  `json:"operateAs"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetOperateAs(p.OperateAs) })
}

func (r *Router) setShotsScatter(c *call) error {
	var p struct {
		ID    uint32 `json:"ID"`
		Value uint8  `json:"shotsScatter"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetShotsScatter(p.Value) })
}

func (r *Router) setShotsIntensity(c *call) error {
	var p struct {
		ID    uint32 `json:"ID"`
		Value uint8  `json:"shotsIntensity"`
	}
	return r.advise(c, &p, &p.ID, func(u *entity.Unit) { u.SetShotsIntensity(p.Value) })
}

// advise decodes the payload, resolves the group leader of *id and applies fn.
func (r *Router) advise(c *call, payload any, id *uint32, fn func(u *entity.Unit)) error {
	if err := c.decode(payload); err != nil {
		return err
	}
	u, err := r.leader(c, *id)
	if err != nil {
		return err
	}
	fn(u)
	r.log.Printf("%s applied %s to unit %s", c.Username, c.key, entity.Describe(u))
	return nil
}

func (r *Router) landAt(c *call) error {
	var p located
	if err := c.decode(&p); err != nil {
		return err
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	u.SetActivePath([]entity.Coords{p.Location.coords()})
	u.SetState(entity.StateLand)
	r.log.Printf("%s tasked unit %s to land", c.Username, entity.Describe(u))
	return nil
}

func (r *Router) landAtPoint(c *call) error {
	var p located
	if err := c.decode(&p); err != nil {
		return err
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	u.SetActivePath([]entity.Coords{p.Location.coords()})
	u.SetState(entity.StateLandAtPoint)
	r.log.Printf("%s tasked unit %s to land at point", c.Username, entity.Describe(u))
	return nil
}

// stateTask sets the leader's state and nothing else.
func stateTask(s entity.State) func(r *Router, c *call) error {
	return func(r *Router, c *call) error {
		var p unitRef
		if err := c.decode(&p); err != nil {
			return err
		}
		u, err := r.leader(c, p.ID)
		if err != nil {
			return err
		}
		u.SetState(s)
		r.log.Printf("%s tasked unit %s: %s", c.Username, entity.Describe(u), s)
		return nil
	}
}

// targetTask sets the leader's target position and state.
func targetTask(s entity.State) func(r *Router, c *call) error {
	return func(r *Router, c *call) error {
		var p located
		if err := c.decode(&p); err != nil {
			return err
		}
		u, err := r.leader(c, p.ID)
		if err != nil {
			return err
		}
		pos := p.Location.coords()
		if p.Altitude != 0 {
			pos.Alt = p.Altitude
		}
		u.SetTargetPosition(pos)
		u.SetState(s)
		r.log.Printf("%s tasked unit %s: %s", c.Username, entity.Describe(u), s)
		return nil
	}
}

func (r *Router) setAdvancedOptions(c *call) error {
	var p struct {
		ID              uint32                 `json:"ID"`
		IsActiveTanker  bool                   `json:"isActiveTanker"`
		IsActiveAWACS   bool                   `json:"isActiveAWACS"`
		TACAN           entity.TACAN           `json:"TACAN"`
		Radio           entity.Radio           `json:"radio"`
		GeneralSettings entity.GeneralSettings `json:"generalSettings"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	u, err := r.leader(c, p.ID)
	if err != nil {
		return err
	}
	if len(p.TACAN.Callsign) > 3 {
		p.TACAN.Callsign = p.TACAN.Callsign[:3]
	}
	u.SetIsActiveTanker(p.IsActiveTanker)
	u.SetIsActiveAWACS(p.IsActiveAWACS)
	u.SetTACAN(p.TACAN)
	u.SetRadio(p.Radio)
	u.SetGeneralSettings(p.GeneralSettings)
	r.log.Printf("%s updated unit %s advanced options", c.Username, entity.Describe(u))
	return nil
}

// Authoritative intents.

func (r *Router) smoke(c *call) error {
	var p struct {
		Color    string `json:"color"`
		Location latLng `json:"location"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	c.command = command.New(command.Smoke{Color: p.Color, Location: command.LatLng{Lat: p.Location.Lat, Lng: p.Location.Lng}})
	r.log.Printf("%s added a %s smoke at (%f, %f)", c.Username, p.Color, p.Location.Lat, p.Location.Lng)
	return nil
}

func (r *Router) spawn(c *call) error {
	var p struct {
		Immediate   bool   `json:"immediate"`
		Coalition   string `json:"coalition"`
		Airbase     string `json:"airbaseName"`
		Country     string `json:"country"`
		SpawnPoints int    `json:"spawnPoints"`
		Units       []struct {
			UnitType string   `json:"unitType"`
			Location latLng   `json:"location"`
			Altitude *float64 `json:"altitude"`
			Heading  float64  `json:"heading"`
			Loadout  string   `json:"loadout"`
			LiveryID string   `json:"liveryID"`
			Skill    string   `json:"skill"`
		} `json:"units"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	if err := r.mayCommand(c, p.Coalition); err != nil {
		return err
	}
	category := spawnCategory[c.key]
	if r.opts.Catalog != nil {
		for _, u := range p.Units {
			if found, loaded := r.opts.Catalog.HasUnitType(category, u.UnitType); loaded && !found {
				return fmt.Errorf("%w: unknown %s type %q", errUnresolved, category, u.UnitType)
			}
		}
	}
	// The reservation is the last check: nothing after it may fail.
	if !r.auth.CheckSpawnPoints(p.SpawnPoints, p.Coalition) {
		return fmt.Errorf("not enough %s spawn points for %d", p.Coalition, p.SpawnPoints)
	}

	sp := command.Spawn{
		Coalition:   p.Coalition,
		Country:     p.Country,
		Airbase:     p.Airbase,
		Immediate:   p.Immediate,
		SpawnPoints: p.SpawnPoints,
	}
	for _, u := range p.Units {
		loc := u.Location.coords()
		if u.Altitude != nil {
			loc.Alt = *u.Altitude
		}
		sp.Units = append(sp.Units, command.SpawnUnit{
			UnitType: u.UnitType,
			Location: loc,
			Heading:  u.Heading,
			Loadout:  u.Loadout,
			Skill:    u.Skill,
			LiveryID: u.LiveryID,
		})
		r.log.Printf("%s spawned a %s %s", c.Username, p.Coalition, u.UnitType)
	}
	var in command.Intent
	switch category {
	case entity.CategoryAircraft:
		in = command.SpawnAircraft{Spawn: sp}
	case entity.CategoryHelicopter:
		in = command.SpawnHelicopters{Spawn: sp}
	case entity.CategoryGroundUnit:
		in = command.SpawnGroundUnits{Spawn: sp}
	default:
		in = command.SpawnNavyUnits{Spawn: sp}
	}
	c.command = command.New(in)
	return nil
}

var spawnCategory = map[string]string{
	"spawnAircrafts":   entity.CategoryAircraft,
	"spawnHelicopters": entity.CategoryHelicopter,
	"spawnGroundUnits": entity.CategoryGroundUnit,
	"spawnNavyUnits":   entity.CategoryNavyUnit,
}

func (r *Router) cloneUnits(c *call) error {
	var p struct {
		DeleteOriginal bool      `json:"deleteOriginal"`
		SpawnPoints    int       `json:"spawnPoints"`
		Units          []located `json:"units"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	cl := command.Clone{DeleteOriginal: p.DeleteOriginal, SpawnPoints: p.SpawnPoints}
	coalition := ""
	for _, cu := range p.Units {
		u, ok := r.adv.Unit(cu.ID)
		if !ok {
			return fmt.Errorf("%w: unit %d", errUnresolved, cu.ID)
		}
		side := entity.CoalitionName(u.Coalition())
		if err := r.mayCommand(c, side); err != nil {
			return err
		}
		switch {
		case coalition == "":
			coalition = side
		case side != coalition && p.SpawnPoints > 0 && r.auth.CommandModeOptions().RestrictSpawns:
			return fmt.Errorf("clone batch mixes %s and %s units: spawn points cannot be charged to one coalition", coalition, side)
		}
		cl.Units = append(cl.Units, command.CloneUnit{ID: cu.ID, Location: command.LatLng{Lat: cu.Location.Lat, Lng: cu.Location.Lng}})
	}
	if p.SpawnPoints > 0 && !r.auth.CheckSpawnPoints(p.SpawnPoints, coalition) {
		return fmt.Errorf("not enough %s spawn points for %d", coalition, p.SpawnPoints)
	}
	c.command = command.New(cl)
	r.log.Printf("%s cloning %d units", c.Username, len(cl.Units))
	return nil
}

func (r *Router) deleteUnit(c *call) error {
	var p struct {
		ID            uint32 `json:"ID"`
		Explosion     bool   `json:"explosion"`
		ExplosionType string `json:"explosionType"`
		Immediate     bool   `json:"immediate"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	u, ok := r.adv.Unit(p.ID)
	if !ok {
		return fmt.Errorf("%w: unit %d", errUnresolved, p.ID)
	}
	if err := r.mayCommand(c, entity.CoalitionName(u.Coalition())); err != nil {
		return err
	}
	c.command = command.New(command.Delete{ID: p.ID, Explosion: p.Explosion, ExplosionType: p.ExplosionType, Immediate: p.Immediate})
	r.log.Printf("%s deleted unit %s", c.Username, entity.Describe(u))
	return nil
}

func (r *Router) explosion(c *call) error {
	var p struct {
		Intensity     uint32 `json:"intensity"`
		ExplosionType string `json:"explosionType"`
		Location      latLng `json:"location"`
	}
	if err := c.decode(&p); err != nil {
		return err
	}
	if p.ExplosionType == "" {
		p.ExplosionType = "normal"
	}
	c.command = command.New(command.Explosion{
		Intensity:     p.Intensity,
		ExplosionType: p.ExplosionType,
		Location:      command.LatLng{Lat: p.Location.Lat, Lng: p.Location.Lng},
	})
	r.log.Printf("adding explosion of type %s at (%f, %f)", p.ExplosionType, p.Location.Lat, p.Location.Lng)
	return nil
}

// Session intents.

func (r *Router) setCommandModeOptions(c *call) error {
	if c.Role != RoleGameMaster {
		return fmt.Errorf("%w: %s may not change command mode options", errForbidden, c.Role)
	}
	var p scheduler.CommandModePatch
	if err := c.decode(&p); err != nil {
		return err
	}
	r.auth.SetCommandModeOptions(p)
	r.log.Printf("%s updated the command mode options", c.Username)
	return nil
}

func (r *Router) reloadDatabases(c *call) error {
	c.reload = true
	r.log.Printf("%s requested a unit database reload", c.Username)
	return nil
}
