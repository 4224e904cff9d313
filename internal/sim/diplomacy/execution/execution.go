package execution

import (
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/treaty"
)

// Env is the mutable world the executor writes to.
type Env interface {
	KnowsTech(p model.PlayerID, tech model.TechID) bool
	GrantTech(p model.PlayerID, tech model.TechID)
	// ApplyDiplomacyCost charges the receiver of a traded tech.
	ApplyDiplomacyCost(p model.PlayerID)
	AddGold(p model.PlayerID, delta int)
	GiveMap(from, to model.PlayerID)
	GiveSeaMap(from, to model.PlayerID)
	City(id model.CityID) (model.City, bool)
	TransferCity(id model.CityID, to model.PlayerID)
	SetRelation(a, b model.PlayerID, state model.DiplState, turnsLeft int)
	Research(p model.PlayerID) model.Research
	SetResearch(p model.PlayerID, r model.Research)
	Techs() []model.TechID
	GiveSharedVision(from, to model.PlayerID)
}

type Config struct {
	CeaseFireTurns int
}

func (c *Config) applyDefaults() {
	if c.CeaseFireTurns <= 0 {
		c.CeaseFireTurns = 16
	}
}

type Skip string

const (
	SkipNone         Skip = ""
	SkipAlreadyKnown Skip = "ALREADY_KNOWN"
	SkipCityGone     Skip = "CITY_GONE"
	SkipUnknownKind  Skip = "UNKNOWN_KIND"
)

// Outcome records what happened to one clause during finalize.
type Outcome struct {
	Clause  treaty.Clause
	Giver   model.PlayerID
	Dest    model.PlayerID
	Applied bool
	Skip    Skip
	// City is the city as it was right before the transfer.
	City model.City
	// Backfilled lists techs granted to each side by a team merge.
	Backfilled map[model.PlayerID][]model.TechID
}

// ApplyAll executes every clause of t in clause order. A clause that can no
// longer be applied is skipped; earlier clauses are never rolled back.
func ApplyAll(env Env, cfg Config, t *treaty.Treaty) []Outcome {
	cfg.applyDefaults()
	out := make([]Outcome, 0, len(t.Clauses))
	for _, c := range t.Clauses {
		out = append(out, apply(env, cfg, t, c))
	}
	return out
}

// Apply executes a single clause of t.
func Apply(env Env, cfg Config, t *treaty.Treaty, c treaty.Clause) Outcome {
	cfg.applyDefaults()
	return apply(env, cfg, t, c)
}

func apply(env Env, cfg Config, t *treaty.Treaty, c treaty.Clause) Outcome {
	giver := c.From
	dest := t.Other(giver)
	o := Outcome{Clause: c, Giver: giver, Dest: dest}

	switch term := c.Term.(type) {
	case treaty.TechTransfer:
		// Two meetings may hand over the same tech; the second grant is a no-op.
		if env.KnowsTech(dest, term.Tech) {
			o.Skip = SkipAlreadyKnown
			return o
		}
		env.ApplyDiplomacyCost(dest)
		env.GrantTech(dest, term.Tech)
	case treaty.Gold:
		env.AddGold(giver, -term.Amount)
		env.AddGold(dest, term.Amount)
	case treaty.WorldMap:
		env.GiveMap(giver, dest)
	case treaty.SeaMap:
		env.GiveSeaMap(giver, dest)
	case treaty.CityTransfer:
		city, ok := env.City(term.City)
		if !ok {
			o.Skip = SkipCityGone
			return o
		}
		o.City = city
		env.TransferCity(term.City, dest)
	case treaty.CeaseFire:
		env.SetRelation(giver, dest, model.DiplCeaseFire, cfg.CeaseFireTurns)
	case treaty.Peace:
		env.SetRelation(giver, dest, model.DiplPeace, 0)
	case treaty.Alliance:
		env.SetRelation(giver, dest, model.DiplAlliance, 0)
	case treaty.TeamMerge:
		o.Backfilled = mergeResearch(env, giver, dest)
		env.SetRelation(giver, dest, model.DiplTeam, 0)
	case treaty.SharedVision:
		env.GiveSharedVision(giver, dest)
	default:
		o.Skip = SkipUnknownKind
		return o
	}
	o.Applied = true
	return o
}

// mergeResearch pools research between a and b: techs known by only one side
// are granted to the other, bulb counters are averaged, and both adopt the
// research target and goal of the lower-numbered player.
func mergeResearch(env Env, a, b model.PlayerID) map[model.PlayerID][]model.TechID {
	backfilled := map[model.PlayerID][]model.TechID{}
	for _, tech := range env.Techs() {
		ka, kb := env.KnowsTech(a, tech), env.KnowsTech(b, tech)
		switch {
		case ka && !kb:
			env.GrantTech(b, tech)
			backfilled[b] = append(backfilled[b], tech)
		case kb && !ka:
			env.GrantTech(a, tech)
			backfilled[a] = append(backfilled[a], tech)
		}
	}

	ra, rb := env.Research(a), env.Research(b)
	lead := ra
	if b < a {
		lead = rb
	}
	merged := model.Research{
		BulbsResearched: (ra.BulbsResearched + rb.BulbsResearched) / 2,
		BulbsBefore:     (ra.BulbsBefore + rb.BulbsBefore) / 2,
		Researching:     lead.Researching,
		ChangedFrom:     lead.ChangedFrom,
		TechGoal:        lead.TechGoal,
	}
	env.SetResearch(a, merged)
	env.SetResearch(b, merged)
	return backfilled
}
