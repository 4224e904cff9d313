package treaty

import (
	"time"

	"envoy.ai/internal/sim/model"
)

type State string

const (
	StateOpen         State = "OPEN"
	StateHalfAccepted State = "HALF_ACCEPTED"
	StateMutual       State = "MUTUAL"
	StateDissolved    State = "DISSOLVED"
)

// Treaty is one bilateral negotiation. P0 is the player that requested the meeting.
type Treaty struct {
	ID       string
	P0, P1   model.PlayerID
	Accept0  bool
	Accept1  bool
	Clauses  []Clause
	OpenedAt time.Time

	dissolved bool
}

func (t *Treaty) Key() PairKey { return NewPairKey(t.P0, t.P1) }

func (t *Treaty) Involves(p model.PlayerID) bool {
	return p == t.P0 || p == t.P1
}

// Other returns the counterpart of p. p must be a participant.
func (t *Treaty) Other(p model.PlayerID) model.PlayerID {
	if p == t.P0 {
		return t.P1
	}
	return t.P0
}

func (t *Treaty) Accepted(p model.PlayerID) bool {
	switch p {
	case t.P0:
		return t.Accept0
	case t.P1:
		return t.Accept1
	default:
		return false
	}
}

// Toggle flips p's accept flag and returns the new value.
func (t *Treaty) Toggle(p model.PlayerID) bool {
	switch p {
	case t.P0:
		t.Accept0 = !t.Accept0
		return t.Accept0
	case t.P1:
		t.Accept1 = !t.Accept1
		return t.Accept1
	default:
		return false
	}
}

func (t *Treaty) State() State {
	switch {
	case t.dissolved:
		return StateDissolved
	case t.Accept0 && t.Accept1:
		return StateMutual
	case t.Accept0 || t.Accept1:
		return StateHalfAccepted
	default:
		return StateOpen
	}
}

// ClausesFrom returns the clauses promised by p, in insertion order.
func (t *Treaty) ClausesFrom(p model.PlayerID) []Clause {
	var out []Clause
	for _, c := range t.Clauses {
		if c.From == p {
			out = append(out, c)
		}
	}
	return out
}

type AddResult int

const (
	AddRejected AddResult = iota
	AddDuplicate
	AddAppended
	AddReplaced
)

// AddClause stores c. Exact duplicates are no-ops. A pact clause replaces any
// other pact clause, and a gold clause replaces the same giver's gold clause;
// in that case the replaced clause is returned. Legality against the world is
// not checked here.
func (t *Treaty) AddClause(c Clause) (AddResult, Clause) {
	if c.Term == nil || !t.Involves(c.From) {
		return AddRejected, Clause{}
	}
	if g, ok := c.Term.(Gold); ok && g.Amount < 0 {
		return AddRejected, Clause{}
	}
	for i, old := range t.Clauses {
		if old.Equal(c) {
			return AddDuplicate, Clause{}
		}
		if IsPact(c.Kind()) && IsPact(old.Kind()) {
			t.Clauses[i] = c
			return AddReplaced, old
		}
		if c.Kind() == KindGold && old.Kind() == KindGold && old.From == c.From {
			t.Clauses[i] = c
			return AddReplaced, old
		}
	}
	t.Clauses = append(t.Clauses, c)
	return AddAppended, Clause{}
}

// RemoveClause deletes the first clause equal to c.
func (t *Treaty) RemoveClause(c Clause) bool {
	for i, old := range t.Clauses {
		if old.Equal(c) {
			t.Clauses = append(t.Clauses[:i], t.Clauses[i+1:]...)
			return true
		}
	}
	return false
}
