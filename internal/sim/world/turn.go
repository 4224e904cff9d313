package world

import "envoy.ai/internal/sim/model"

// Expiry reports a cease-fire that ran out during a turn change.
type Expiry struct {
	A, B model.PlayerID
}

// AdvanceTurn counts down contact windows and cease-fires. Expired
// cease-fires fall back to war.
func (w *World) AdvanceTurn() []Expiry {
	w.turn++
	var out []Expiry
	for i, a := range w.order {
		for _, b := range w.order[i+1:] {
			ab, ba := w.relation(a, b), w.relation(b, a)
			if ab == nil || ba == nil {
				continue
			}
			for _, r := range []*model.Relation{ab, ba} {
				if r.ContactTurnsLeft > 0 {
					r.ContactTurnsLeft--
				}
			}
			if ab.State != model.DiplCeaseFire {
				continue
			}
			ab.TurnsLeft--
			ba.TurnsLeft = ab.TurnsLeft
			if ab.TurnsLeft <= 0 {
				ab.State, ba.State = model.DiplWar, model.DiplWar
				ab.TurnsLeft, ba.TurnsLeft = 0, 0
				out = append(out, Expiry{A: a, B: b})
			}
		}
	}
	return out
}
