package world

import (
	"fmt"

	"envoy.ai/internal/sim/model"
)

func (w *World) TechExists(t model.TechID) bool {
	_, ok := w.techs[t]
	return ok
}

func (w *World) TechName(t model.TechID) string {
	if def := w.techs[t]; def != nil {
		return def.Name
	}
	return fmt.Sprintf("tech %d", t)
}

// Techs returns every tech id in ascending order.
func (w *World) Techs() []model.TechID {
	return append([]model.TechID(nil), w.techOrder...)
}

func (w *World) KnowsTech(p model.PlayerID, t model.TechID) bool {
	pl := w.player(p)
	return pl != nil && pl.techs[t]
}

// TechReachable is false when p's nation is excluded from ever owning t.
func (w *World) TechReachable(p model.PlayerID, t model.TechID) bool {
	def := w.techs[t]
	pl := w.player(p)
	if def == nil || pl == nil {
		return false
	}
	return !def.excluded[pl.Nation]
}

// GrantTech adds t to p. A player researching t drops it as its target.
func (w *World) GrantTech(p model.PlayerID, t model.TechID) {
	pl := w.player(p)
	if pl == nil || !w.TechExists(t) || pl.techs[t] {
		return
	}
	pl.techs[t] = true
	if pl.Research.Researching == t {
		pl.Research.ChangedFrom = t
		pl.Research.Researching = model.TechNone
	}
	if pl.Research.TechGoal == t {
		pl.Research.TechGoal = model.TechNone
	}
}

func (w *World) KnownTechs(p model.PlayerID) []model.TechID {
	pl := w.player(p)
	if pl == nil {
		return nil
	}
	var out []model.TechID
	for _, t := range w.techOrder {
		if pl.techs[t] {
			out = append(out, t)
		}
	}
	return out
}

func (w *World) Research(p model.PlayerID) model.Research {
	if pl := w.player(p); pl != nil {
		return pl.Research
	}
	return model.Research{}
}

func (w *World) SetResearch(p model.PlayerID, r model.Research) {
	if pl := w.player(p); pl != nil {
		pl.Research = r
	}
}

// ApplyDiplomacyCost removes the configured share of p's researched bulbs.
func (w *World) ApplyDiplomacyCost(p model.PlayerID) {
	pl := w.player(p)
	if pl == nil || w.cfg.DiplCostPct == 0 {
		return
	}
	pl.Research.BulbsResearched -= pl.Research.BulbsResearched * w.cfg.DiplCostPct / 100
}
