// Package config reads the bridge YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"simbridge.dev/internal/sim/scheduler"
)

type Config struct {
	Server         Server                       `yaml:"server"`
	Authentication Authentication               `yaml:"authentication"`
	Engine         Engine                       `yaml:"engine"`
	Scheduler      Scheduler                    `yaml:"scheduler"`
	CommandMode    scheduler.CommandModeOptions `yaml:"command_mode"`
	Databases      Databases                    `yaml:"databases"`
	Logs           Logs                         `yaml:"logs"`
	Persistence    Persistence                  `yaml:"persistence"`
}

type Server struct {
	Addr         string `yaml:"addr"`
	LogRequests  bool   `yaml:"log_requests"`
	MaxBodyBytes int64  `yaml:"max_body_bytes"`
}

type Authentication struct {
	GameMasterPassword    string `yaml:"game_master_password"`
	BlueCommanderPassword string `yaml:"blue_commander_password"`
	RedCommanderPassword  string `yaml:"red_commander_password"`
}

type Engine struct {
	Path        string        `yaml:"path"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

type Scheduler struct {
	HashHorizon     time.Duration `yaml:"hash_horizon"`
	FrameRateWindow time.Duration `yaml:"frame_rate_window"`
	DeadEntityTTL   time.Duration `yaml:"dead_entity_ttl"`
}

type Databases struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

type Logs struct {
	RingLines int `yaml:"ring_lines"`
}

type Persistence struct {
	DataDir       string        `yaml:"data_dir"`
	Audit         bool          `yaml:"audit"`
	IndexDB       bool          `yaml:"index_db"`
	SnapshotEvery time.Duration `yaml:"snapshot_every"`
	SnapshotKeep  int           `yaml:"snapshot_keep"`
	Mirror        Mirror        `yaml:"mirror"`
}

// Mirror configures the optional S3/R2 copy of snapshots and closed audit
// files. Credentials come from SIMBRIDGE_MIRROR_ACCESS_KEY_ID and
// SIMBRIDGE_MIRROR_SECRET_ACCESS_KEY, never from the file.
type Mirror struct {
	Endpoint string `yaml:"endpoint"`
	Bucket   string `yaml:"bucket"`
	Region   string `yaml:"region"`
	Prefix   string `yaml:"prefix"`
	Workers  int    `yaml:"workers"`
}

func (m Mirror) Enabled() bool { return m.Endpoint != "" && m.Bucket != "" }

func Defaults() Config {
	return Config{
		Server:    Server{Addr: ":3001", MaxBodyBytes: 4 << 20},
		Engine:    Engine{Path: "/v1/engine", ReadTimeout: 60 * time.Second},
		Scheduler: Scheduler{HashHorizon: 10 * time.Minute, FrameRateWindow: 50 * time.Millisecond},
		CommandMode: scheduler.CommandModeOptions{
			SetupTime:   300,
			SpawnPoints: scheduler.SpawnPoints{Blue: 10000, Red: 10000},
			Eras:        []string{"WW2", "Early Cold War", "Late Cold War", "Modern"},
		},
		Databases: Databases{Dir: "configs/databases", Watch: true},
		Logs:      Logs{RingLines: 1000},
		Persistence: Persistence{
			DataDir:       "data",
			Audit:         true,
			IndexDB:       true,
			SnapshotEvery: 5 * time.Minute,
			SnapshotKeep:  12,
			Mirror:        Mirror{Region: "auto", Workers: 2},
		},
	}
}

// Load overlays the file at path on Defaults. Keys absent from the file
// keep their default value.
func Load(path string) (Config, error) {
	c := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return Defaults(), fmt.Errorf("bridge.yaml: %w", err)
	}
	if err := c.Normalize(); err != nil {
		return Defaults(), fmt.Errorf("bridge.yaml: %w", err)
	}
	return c, nil
}

// Normalize fills zero values with defaults and rejects impossible ones.
func (c *Config) Normalize() error {
	d := Defaults()
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = d.Server.MaxBodyBytes
	}
	if c.Engine.Path == "" {
		c.Engine.Path = d.Engine.Path
	}
	if c.Engine.ReadTimeout <= 0 {
		c.Engine.ReadTimeout = d.Engine.ReadTimeout
	}
	if c.Scheduler.HashHorizon <= 0 {
		c.Scheduler.HashHorizon = d.Scheduler.HashHorizon
	}
	if c.Scheduler.FrameRateWindow <= 0 {
		c.Scheduler.FrameRateWindow = d.Scheduler.FrameRateWindow
	}
	if c.Scheduler.DeadEntityTTL < 0 {
		return fmt.Errorf("scheduler.dead_entity_ttl must not be negative")
	}
	if c.CommandMode.SpawnPoints.Blue < 0 || c.CommandMode.SpawnPoints.Red < 0 {
		return fmt.Errorf("command_mode.spawn_points must not be negative")
	}
	if c.Logs.RingLines <= 0 {
		c.Logs.RingLines = d.Logs.RingLines
	}
	if c.Persistence.DataDir == "" {
		c.Persistence.DataDir = d.Persistence.DataDir
	}
	if c.Persistence.SnapshotKeep < 0 {
		c.Persistence.SnapshotKeep = 0
	}
	if c.Persistence.Mirror.Workers <= 0 {
		c.Persistence.Mirror.Workers = 2
	}
	return nil
}

// SchedulerConfig is the scheduler section in the form the scheduler takes.
func (c Config) SchedulerConfig() scheduler.Config {
	return scheduler.Config{HashHorizon: c.Scheduler.HashHorizon, Options: c.CommandMode}
}
