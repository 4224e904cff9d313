package validation

import (
	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/treaty"
)

// Env is the read-only world view the validator needs.
type Env interface {
	// TechReachable reports whether p's civilization can ever own tech.
	TechReachable(p model.PlayerID, tech model.TechID) bool
	KnowsTech(p model.PlayerID, tech model.TechID) bool
	City(id model.CityID) (model.City, bool)
	// CanAlly is false when a is at war with one of b's allies.
	CanAlly(a, b model.PlayerID) bool
	Gold(p model.PlayerID) int
	Team(p model.PlayerID) model.TeamID
}

type Reason string

const (
	ReasonNone             Reason = ""
	ReasonTechUnreachable  Reason = "TECH_UNREACHABLE"
	ReasonTechUnknown      Reason = "TECH_UNKNOWN"
	ReasonCityGone         Reason = "CITY_GONE"
	ReasonCityNotOwned     Reason = "CITY_NOT_OWNED"
	ReasonCapital          Reason = "CITY_CAPITAL"
	ReasonOriginAllyAtWar  Reason = "ORIGIN_AT_WAR_WITH_ALLY"
	ReasonDestAllyAtWar    Reason = "DEST_AT_WAR_WITH_ALLY"
	ReasonInsufficientGold Reason = "INSUFFICIENT_GOLD"
	ReasonNoCommonTeam     Reason = "NO_COMMON_TEAM"
)

// Verdict is the result of checking one clause.
type Verdict struct {
	OK     bool
	Code   string
	Reason Reason
	Clause treaty.Clause
	// City is filled for city clauses whose city still exists.
	City model.City
}

func fail(c treaty.Clause, code string, r Reason) Verdict {
	return Verdict{Code: code, Reason: r, Clause: c}
}

// Check decides whether the origin of c can currently keep its promise to dest.
func Check(env Env, c treaty.Clause, dest model.PlayerID) Verdict {
	from := c.From
	switch t := c.Term.(type) {
	case treaty.TechTransfer:
		if !env.TechReachable(dest, t.Tech) {
			return fail(c, protocol.ErrBlocked, ReasonTechUnreachable)
		}
		if !env.KnowsTech(from, t.Tech) {
			return fail(c, protocol.ErrNoResource, ReasonTechUnknown)
		}
	case treaty.CityTransfer:
		city, ok := env.City(t.City)
		if !ok {
			return fail(c, protocol.ErrInvalidTarget, ReasonCityGone)
		}
		if city.Owner != from {
			v := fail(c, protocol.ErrNoPermission, ReasonCityNotOwned)
			v.City = city
			return v
		}
		if city.Capital {
			v := fail(c, protocol.ErrNoPermission, ReasonCapital)
			v.City = city
			return v
		}
		return Verdict{OK: true, Clause: c, City: city}
	case treaty.Alliance:
		if !env.CanAlly(from, dest) {
			return fail(c, protocol.ErrConflict, ReasonOriginAllyAtWar)
		}
		if !env.CanAlly(dest, from) {
			return fail(c, protocol.ErrConflict, ReasonDestAllyAtWar)
		}
	case treaty.Gold:
		if env.Gold(from) < t.Amount {
			return fail(c, protocol.ErrNoResource, ReasonInsufficientGold)
		}
	case treaty.TeamMerge:
		team := env.Team(from)
		if team == model.TeamNone || team != env.Team(dest) {
			return fail(c, protocol.ErrBlocked, ReasonNoCommonTeam)
		}
	}
	return Verdict{OK: true, Clause: c}
}

// CheckAll validates every clause promised by from and returns the first failure.
func CheckAll(env Env, t *treaty.Treaty, from model.PlayerID) Verdict {
	dest := t.Other(from)
	for _, c := range t.ClausesFrom(from) {
		if v := Check(env, c, dest); !v.OK {
			return v
		}
	}
	return Verdict{OK: true}
}
