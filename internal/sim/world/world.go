package world

import (
	"fmt"
	"sort"

	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/scenario"
)

type Config struct {
	// DiplCostPct is the share of bulbs a player loses when receiving a tech by treaty.
	DiplCostPct int
	// ContactTurns is how long two players may meet after first contact.
	ContactTurns int
	// CityRadius is the map radius revealed around a city.
	CityRadius int
}

func (c *Config) applyDefaults() {
	if c.DiplCostPct < 0 {
		c.DiplCostPct = 0
	}
	if c.DiplCostPct > 100 {
		c.DiplCostPct = 100
	}
	if c.ContactTurns <= 0 {
		c.ContactTurns = 10
	}
	if c.CityRadius <= 0 {
		c.CityRadius = 2
	}
}

type TechDef struct {
	ID       model.TechID
	Name     string
	excluded map[string]bool
}

type Player struct {
	ID           model.PlayerID
	Name         string
	Nation       string
	NationPlural string
	AI           bool
	Barbarian    bool
	Alive        bool
	Token        string

	Gold     int
	Team     model.TeamID
	Research model.Research

	techs map[model.TechID]bool
	known map[model.Pos]bool
	// embassy holds the players this player has an embassy with.
	embassy map[model.PlayerID]bool
	// vision holds the players this player shares vision with.
	vision map[model.PlayerID]bool
}

type relKey struct{ from, to model.PlayerID }

// World is the in-memory game state the diplomacy engine reads and mutates.
// It is owned by a single session goroutine and is not safe for concurrent use.
type World struct {
	cfg Config

	players map[model.PlayerID]*Player
	order   []model.PlayerID

	techs     map[model.TechID]*TechDef
	techOrder []model.TechID

	cities    map[model.CityID]*model.City
	relations map[relKey]*model.Relation

	width, height int
	ocean         map[model.Pos]bool

	turn int
}

func New(cfg Config, sc *scenario.Scenario) (*World, error) {
	cfg.applyDefaults()
	if sc == nil {
		return nil, fmt.Errorf("nil scenario")
	}
	w := &World{
		cfg:       cfg,
		players:   map[model.PlayerID]*Player{},
		techs:     map[model.TechID]*TechDef{},
		cities:    map[model.CityID]*model.City{},
		relations: map[relKey]*model.Relation{},
		width:     sc.Map.Width,
		height:    sc.Map.Height,
		ocean:     map[model.Pos]bool{},
	}
	for y, row := range sc.Map.Ocean {
		for x, ch := range row {
			if ch == '~' {
				w.ocean[model.Pos{X: x, Y: y}] = true
			}
		}
	}
	for _, t := range sc.Techs {
		def := &TechDef{ID: model.TechID(t.ID), Name: t.Name, excluded: map[string]bool{}}
		for _, n := range t.ExcludedNations {
			def.excluded[n] = true
		}
		w.techs[def.ID] = def
		w.techOrder = append(w.techOrder, def.ID)
	}
	sort.Slice(w.techOrder, func(i, j int) bool { return w.techOrder[i] < w.techOrder[j] })

	for _, ps := range sc.Players {
		p := &Player{
			ID:           model.PlayerID(ps.ID),
			Name:         ps.Name,
			Nation:       ps.Nation,
			NationPlural: ps.NationPlural,
			AI:           ps.AI,
			Barbarian:    ps.Barbarian,
			Alive:        true,
			Token:        ps.Token,
			Gold:         ps.Gold,
			Team:         model.TeamID(ps.Team),
			Research: model.Research{
				BulbsResearched: ps.Research.Bulbs,
				BulbsBefore:     ps.Research.BulbsBefore,
				Researching:     model.TechID(ps.Research.Researching),
				TechGoal:        model.TechID(ps.Research.Goal),
			},
			techs:   map[model.TechID]bool{},
			known:   map[model.Pos]bool{},
			embassy: map[model.PlayerID]bool{},
			vision:  map[model.PlayerID]bool{},
		}
		for _, t := range ps.Techs {
			p.techs[model.TechID(t)] = true
		}
		for _, e := range ps.Embassies {
			p.embassy[model.PlayerID(e)] = true
		}
		w.players[p.ID] = p
		w.order = append(w.order, p.ID)
	}
	sort.Slice(w.order, func(i, j int) bool { return w.order[i] < w.order[j] })

	for _, cs := range sc.Cities {
		c := &model.City{
			ID:      model.CityID(cs.ID),
			Name:    cs.Name,
			Owner:   model.PlayerID(cs.Owner),
			Pos:     model.Pos{X: cs.X, Y: cs.Y},
			Capital: cs.Capital,
		}
		w.cities[c.ID] = c
		if owner := w.players[c.Owner]; owner != nil {
			w.revealAround(owner, c.Pos)
		}
	}

	for _, a := range w.order {
		for _, b := range w.order {
			if a != b {
				w.relations[relKey{a, b}] = &model.Relation{State: model.DiplNoContact}
			}
		}
	}
	for _, rs := range sc.Relations {
		st, err := model.ParseDiplState(rs.State)
		if err != nil {
			return nil, fmt.Errorf("relation %d-%d: %w", rs.A, rs.B, err)
		}
		a, b := model.PlayerID(rs.A), model.PlayerID(rs.B)
		w.SetRelation(a, b, st, rs.TurnsLeft)
		if rs.ContactTurns > 0 {
			w.relations[relKey{a, b}].ContactTurnsLeft = rs.ContactTurns
			w.relations[relKey{b, a}].ContactTurnsLeft = rs.ContactTurns
		}
	}
	return w, nil
}

func (w *World) Turn() int { return w.turn }

func (w *World) player(p model.PlayerID) *Player {
	if w == nil {
		return nil
	}
	return w.players[p]
}

// Players returns every player id in ascending order.
func (w *World) Players() []model.PlayerID {
	return append([]model.PlayerID(nil), w.order...)
}

func (w *World) ValidPlayer(p model.PlayerID) bool { return w.player(p) != nil }

func (w *World) IsBarbarian(p model.PlayerID) bool {
	pl := w.player(p)
	return pl != nil && pl.Barbarian
}

func (w *World) IsAI(p model.PlayerID) bool {
	pl := w.player(p)
	return pl != nil && pl.AI
}

func (w *World) IsAlive(p model.PlayerID) bool {
	pl := w.player(p)
	return pl != nil && pl.Alive
}

func (w *World) PlayerName(p model.PlayerID) string {
	if pl := w.player(p); pl != nil {
		return pl.Name
	}
	return fmt.Sprintf("player %d", p)
}

func (w *World) NationPlural(p model.PlayerID) string {
	if pl := w.player(p); pl != nil {
		return pl.NationPlural
	}
	return fmt.Sprintf("player %d", p)
}

// Authenticate reports whether token lets a connection act as p. Players
// without a configured token accept any token.
func (w *World) Authenticate(p model.PlayerID, token string) bool {
	pl := w.player(p)
	if pl == nil {
		return false
	}
	return pl.Token == "" || pl.Token == token
}

// Eliminate marks p as dead. Callers must cancel p's meetings.
func (w *World) Eliminate(p model.PlayerID) bool {
	pl := w.player(p)
	if pl == nil || !pl.Alive {
		return false
	}
	pl.Alive = false
	return true
}

func (w *World) Gold(p model.PlayerID) int {
	if pl := w.player(p); pl != nil {
		return pl.Gold
	}
	return 0
}

func (w *World) AddGold(p model.PlayerID, delta int) {
	if pl := w.player(p); pl != nil {
		pl.Gold += delta
	}
}

func (w *World) Team(p model.PlayerID) model.TeamID {
	if pl := w.player(p); pl != nil {
		return pl.Team
	}
	return model.TeamNone
}

// HasEmbassy reports whether a has an embassy with b.
func (w *World) HasEmbassy(a, b model.PlayerID) bool {
	pl := w.player(a)
	return pl != nil && pl.embassy[b]
}

// EstablishEmbassy gives a an embassy with b. It reports false when either
// player is unknown or a already holds one.
func (w *World) EstablishEmbassy(a, b model.PlayerID) bool {
	pl := w.player(a)
	if pl == nil || a == b || w.player(b) == nil || pl.embassy[b] {
		return false
	}
	pl.embassy[b] = true
	return true
}

// EmbassiesWith returns the players holding an embassy with p.
func (w *World) EmbassiesWith(p model.PlayerID) []model.PlayerID {
	var out []model.PlayerID
	for _, id := range w.order {
		if id != p && w.players[id].embassy[p] {
			out = append(out, id)
		}
	}
	return out
}

func (w *World) GiveSharedVision(from, to model.PlayerID) {
	if pl := w.player(from); pl != nil && w.player(to) != nil {
		pl.vision[to] = true
	}
}

func (w *World) SharesVision(from, to model.PlayerID) bool {
	pl := w.player(from)
	return pl != nil && pl.vision[to]
}
