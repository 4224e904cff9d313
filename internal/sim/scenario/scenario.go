package scenario

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario is the starting world state of a game session.
type Scenario struct {
	Name      string         `yaml:"name"`
	Map       MapSpec        `yaml:"map"`
	Techs     []TechSpec     `yaml:"techs"`
	Players   []PlayerSpec   `yaml:"players"`
	Cities    []CitySpec     `yaml:"cities"`
	Relations []RelationSpec `yaml:"relations,omitempty"`

	// Digest is the sha256 of the raw YAML; empty for scenarios built in code.
	Digest string `yaml:"-"`
}

type MapSpec struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// Ocean rows, one string per map row; '~' marks an ocean tile.
	Ocean []string `yaml:"ocean,omitempty"`
}

type TechSpec struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	// ExcludedNations can never research this tech.
	ExcludedNations []string `yaml:"excluded_nations,omitempty"`
}

type PlayerSpec struct {
	ID           int          `yaml:"id"`
	Name         string       `yaml:"name"`
	Nation       string       `yaml:"nation"`
	NationPlural string       `yaml:"nation_plural"`
	AI           bool         `yaml:"ai"`
	Barbarian    bool         `yaml:"barbarian"`
	Token        string       `yaml:"token,omitempty"`
	Gold         int          `yaml:"gold"`
	Team         int          `yaml:"team"`
	Techs        []int        `yaml:"techs"`
	Research     ResearchSpec `yaml:"research"`
	// Embassies lists the players this player has an embassy with.
	Embassies []int `yaml:"embassies,omitempty"`
}

type ResearchSpec struct {
	Bulbs       int `yaml:"bulbs"`
	BulbsBefore int `yaml:"bulbs_before"`
	Researching int `yaml:"researching"`
	Goal        int `yaml:"goal"`
}

type CitySpec struct {
	ID      int    `yaml:"id"`
	Name    string `yaml:"name"`
	Owner   int    `yaml:"owner"`
	X       int    `yaml:"x"`
	Y       int    `yaml:"y"`
	Capital bool   `yaml:"capital"`
}

type RelationSpec struct {
	A            int    `yaml:"a"`
	B            int    `yaml:"b"`
	State        string `yaml:"state"`
	TurnsLeft    int    `yaml:"turns_left,omitempty"`
	ContactTurns int    `yaml:"contact_turns,omitempty"`
}

func Load(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	sc, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

func Parse(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, err
	}
	sc.Normalize()
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	sc.Digest = sha256Hex(raw)
	return &sc, nil
}

func (s *Scenario) Normalize() {
	if s.Map.Width <= 0 {
		s.Map.Width = 32
	}
	if s.Map.Height <= 0 {
		s.Map.Height = 32
	}
	for i := range s.Players {
		p := &s.Players[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			p.Name = fmt.Sprintf("Player%d", p.ID)
		}
		if p.Nation == "" {
			p.Nation = p.Name
		}
		if p.NationPlural == "" {
			p.NationPlural = p.Nation + "s"
		}
	}
}

func (s *Scenario) Validate() error {
	techs := map[int]bool{}
	for _, t := range s.Techs {
		if t.ID <= 0 {
			return fmt.Errorf("tech %q: id must be > 0", t.Name)
		}
		if techs[t.ID] {
			return fmt.Errorf("duplicate tech id %d", t.ID)
		}
		techs[t.ID] = true
	}
	players := map[int]bool{}
	for _, p := range s.Players {
		if p.ID < 0 {
			return fmt.Errorf("player %q: negative id", p.Name)
		}
		if players[p.ID] {
			return fmt.Errorf("duplicate player id %d", p.ID)
		}
		players[p.ID] = true
	}
	for _, p := range s.Players {
		for _, t := range p.Techs {
			if !techs[t] {
				return fmt.Errorf("player %d: unknown tech %d", p.ID, t)
			}
		}
		for _, e := range p.Embassies {
			if !players[e] || e == p.ID {
				return fmt.Errorf("player %d: bad embassy target %d", p.ID, e)
			}
		}
		if p.Gold < 0 {
			return fmt.Errorf("player %d: negative gold", p.ID)
		}
	}
	cities := map[int]bool{}
	for _, c := range s.Cities {
		if c.ID <= 0 {
			return fmt.Errorf("city %q: id must be > 0", c.Name)
		}
		if cities[c.ID] {
			return fmt.Errorf("duplicate city id %d", c.ID)
		}
		cities[c.ID] = true
		if !players[c.Owner] {
			return fmt.Errorf("city %d: unknown owner %d", c.ID, c.Owner)
		}
		if c.X < 0 || c.Y < 0 || c.X >= s.Map.Width || c.Y >= s.Map.Height {
			return fmt.Errorf("city %d: position (%d,%d) off map", c.ID, c.X, c.Y)
		}
	}
	for _, r := range s.Relations {
		if !players[r.A] || !players[r.B] || r.A == r.B {
			return fmt.Errorf("relation %d-%d: bad players", r.A, r.B)
		}
	}
	return nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
