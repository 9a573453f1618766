package scheduler

// SpawnPoints are the per-coalition spawn budgets.
type SpawnPoints struct {
	Blue int `json:"blue" yaml:"blue"`
	Red  int `json:"red" yaml:"red"`
}

// CommandModeOptions restrict what commanders may do in a session.
type CommandModeOptions struct {
	RestrictSpawns      bool        `json:"restrictSpawns" yaml:"restrict_spawns"`
	RestrictToCoalition bool        `json:"restrictToCoalition" yaml:"restrict_to_coalition"`
	SetupTime           int         `json:"setupTime" yaml:"setup_time"`
	SpawnPoints         SpawnPoints `json:"spawnPoints" yaml:"spawn_points"`
	Eras                []string    `json:"eras" yaml:"eras"`
}

func (o CommandModeOptions) clone() CommandModeOptions {
	o.Eras = append([]string{}, o.Eras...)
	return o
}

// CommandModePatch is a partial update; nil fields are left unchanged.
type CommandModePatch struct {
	RestrictSpawns      *bool             `json:"restrictSpawns"`
	RestrictToCoalition *bool             `json:"restrictToCoalition"`
	SetupTime           *int              `json:"setupTime"`
	SpawnPoints         *SpawnPointsPatch `json:"spawnPoints"`
	Eras                []string          `json:"eras"`
}

type SpawnPointsPatch struct {
	Blue *int `json:"blue"`
	Red  *int `json:"red"`
}

func (s *Scheduler) CommandModeOptions() CommandModeOptions { return s.opts.clone() }

func (s *Scheduler) SetCommandModeOptions(p CommandModePatch) {
	if p.RestrictSpawns != nil {
		s.opts.RestrictSpawns = *p.RestrictSpawns
	}
	if p.RestrictToCoalition != nil {
		s.opts.RestrictToCoalition = *p.RestrictToCoalition
	}
	if p.SetupTime != nil {
		s.opts.SetupTime = *p.SetupTime
	}
	if sp := p.SpawnPoints; sp != nil {
		if sp.Blue != nil {
			s.opts.SpawnPoints.Blue = *sp.Blue
		}
		if sp.Red != nil {
			s.opts.SpawnPoints.Red = *sp.Red
		}
	}
	if p.Eras != nil {
		s.opts.Eras = append([]string{}, p.Eras...)
	}
}

// Patch returns a patch that sets every field to the value in o.
func (o CommandModeOptions) Patch() CommandModePatch {
	o = o.clone()
	return CommandModePatch{
		RestrictSpawns:      &o.RestrictSpawns,
		RestrictToCoalition: &o.RestrictToCoalition,
		SetupTime:           &o.SetupTime,
		SpawnPoints:         &SpawnPointsPatch{Blue: &o.SpawnPoints.Blue, Red: &o.SpawnPoints.Red},
		Eras:                o.Eras,
	}
}
