package world

import "envoy.ai/internal/sim/model"

func (w *World) relation(a, b model.PlayerID) *model.Relation {
	return w.relations[relKey{a, b}]
}

// Relation returns the diplomatic state a holds towards b.
func (w *World) Relation(a, b model.PlayerID) model.Relation {
	if r := w.relation(a, b); r != nil {
		return *r
	}
	return model.Relation{State: model.DiplNoContact}
}

// SetRelation sets both directions of the pair to state.
func (w *World) SetRelation(a, b model.PlayerID, state model.DiplState, turnsLeft int) {
	if a == b || w.player(a) == nil || w.player(b) == nil {
		return
	}
	for _, k := range []relKey{{a, b}, {b, a}} {
		r := w.relations[k]
		if r == nil {
			r = &model.Relation{}
			w.relations[k] = r
		}
		r.State = state
		r.TurnsLeft = turnsLeft
		if state != model.DiplNoContact && r.ContactTurnsLeft < w.cfg.ContactTurns {
			r.ContactTurnsLeft = w.cfg.ContactTurns
		}
	}
}

// MakeContact opens the contact window between a and b. Players that never
// met move from no contact to war. It reports false unless both are alive.
func (w *World) MakeContact(a, b model.PlayerID) bool {
	if a == b || !w.IsAlive(a) || !w.IsAlive(b) {
		return false
	}
	if w.Relation(a, b).State == model.DiplNoContact {
		w.SetRelation(a, b, model.DiplWar, 0)
	}
	w.relation(a, b).ContactTurnsLeft = w.cfg.ContactTurns
	w.relation(b, a).ContactTurnsLeft = w.cfg.ContactTurns
	return true
}

// CouldMeet reports whether a and b are both alive and either holds an
// embassy with the other or they are in recent contact.
func (w *World) CouldMeet(a, b model.PlayerID) bool {
	if a == b || !w.IsAlive(a) || !w.IsAlive(b) {
		return false
	}
	if w.HasEmbassy(a, b) || w.HasEmbassy(b, a) {
		return true
	}
	return w.Relation(a, b).ContactTurnsLeft > 0
}

func (w *World) allied(a, b model.PlayerID) bool {
	if a == b {
		return true
	}
	st := w.Relation(a, b).State
	return st == model.DiplAlliance || st == model.DiplTeam
}

// CanAlly is false when a is at war with a living ally of b.
func (w *World) CanAlly(a, b model.PlayerID) bool {
	for _, c := range w.order {
		if c == a || c == b || !w.IsAlive(c) {
			continue
		}
		if w.allied(b, c) && w.Relation(a, c).State == model.DiplWar {
			return false
		}
	}
	return true
}
