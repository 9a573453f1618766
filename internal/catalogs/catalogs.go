// Package catalogs loads the unit databases: one JSON object per unit
// category, keyed by unit type name.
package catalogs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"simbridge.dev/internal/sim/entity"
)

// Files maps each unit category to its database file name.
var Files = map[string]string{
	entity.CategoryAircraft:   "aircraftdatabase.json",
	entity.CategoryHelicopter: "helicopterdatabase.json",
	entity.CategoryGroundUnit: "groundunitdatabase.json",
	entity.CategoryNavyUnit:   "navyunitdatabase.json",
}

type UnitDef struct {
	Name      string   `json:"name"`
	Label     string   `json:"label,omitempty"`
	ShortName string   `json:"shortLabel,omitempty"`
	Era       string   `json:"era,omitempty"`
	Coalition string   `json:"coalition,omitempty"`
	Type      string   `json:"type,omitempty"`
	Cost      int      `json:"cost,omitempty"`
	Loadouts  []string `json:"-"`
}

type Database struct {
	Category string
	Types    map[string]UnitDef
	Digest   string
}

// Names returns the unit type names in sorted order.
func (d Database) Names() []string {
	out := make([]string, 0, len(d.Types))
	for n := range d.Types {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type Catalogs struct {
	ByCategory map[string]Database
}

// Load reads every database present in dir. A missing file leaves its
// category unloaded; a malformed one fails the whole load.
func Load(dir string) (*Catalogs, error) {
	c := &Catalogs{ByCategory: map[string]Database{}}
	for category, name := range Files {
		db, err := loadDatabase(filepath.Join(dir, name), category)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c.ByCategory[category] = db
	}
	return c, nil
}

type rawUnit struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	ShortName string `json:"shortLabel"`
	Era       string `json:"era"`
	Coalition string `json:"coalition"`
	Type      string `json:"type"`
	Cost      int    `json:"cost"`
	Loadouts  []struct {
		Name string `json:"name"`
	} `json:"loadouts"`
}

func loadDatabase(path, category string) (Database, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Database{}, err
	}
	db := Database{Category: category, Digest: sha256Hex(raw)}

	var defs map[string]rawUnit
	if err := json.Unmarshal(raw, &defs); err != nil {
		return Database{}, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	db.Types = make(map[string]UnitDef, len(defs))
	for key, d := range defs {
		if key == "" {
			return Database{}, fmt.Errorf("%s: empty unit type", filepath.Base(path))
		}
		def := UnitDef{
			Name:      key,
			Label:     d.Label,
			ShortName: d.ShortName,
			Era:       d.Era,
			Coalition: d.Coalition,
			Type:      d.Type,
			Cost:      d.Cost,
		}
		for _, l := range d.Loadouts {
			def.Loadouts = append(def.Loadouts, l.Name)
		}
		db.Types[key] = def
	}
	return db, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Digests returns the content digest of each loaded database.
func (c *Catalogs) Digests() map[string]string {
	out := make(map[string]string, len(c.ByCategory))
	for k, db := range c.ByCategory {
		out[k] = db.Digest
	}
	return out
}

// Set is a reloadable Catalogs shared between request goroutines.
type Set struct {
	dir string

	mu  sync.RWMutex
	cur *Catalogs
}

func NewSet(dir string) *Set {
	return &Set{dir: dir, cur: &Catalogs{ByCategory: map[string]Database{}}}
}

func (s *Set) Dir() string { return s.dir }

// Reload rereads the databases. On error the previous contents stay.
func (s *Set) Reload() error {
	c, err := Load(s.dir)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.cur = c
	s.mu.Unlock()
	return nil
}

func (s *Set) Current() *Catalogs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// HasUnitType reports whether unitType exists in the category database.
// loaded is false when that database was never loaded.
func (s *Set) HasUnitType(category, unitType string) (found, loaded bool) {
	db, ok := s.Current().ByCategory[category]
	if !ok {
		return false, false
	}
	_, found = db.Types[unitType]
	return found, true
}
