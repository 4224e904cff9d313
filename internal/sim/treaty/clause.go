package treaty

import (
	"fmt"

	"envoy.ai/internal/sim/model"
)

type Kind string

const (
	KindTech         Kind = "TECH"
	KindGold         Kind = "GOLD"
	KindWorldMap     Kind = "MAP"
	KindSeaMap       Kind = "SEAMAP"
	KindCity         Kind = "CITY"
	KindCeaseFire    Kind = "CEASEFIRE"
	KindPeace        Kind = "PEACE"
	KindAlliance     Kind = "ALLIANCE"
	KindTeamMerge    Kind = "TEAM"
	KindSharedVision Kind = "VISION"
)

// Term is the payload of a clause. The set of implementations is closed.
type Term interface {
	Kind() Kind
	isTerm()
}

type TechTransfer struct{ Tech model.TechID }
type Gold struct{ Amount int }
type WorldMap struct{}
type SeaMap struct{}
type CityTransfer struct{ City model.CityID }
type CeaseFire struct{}
type Peace struct{}
type Alliance struct{}
type TeamMerge struct{}
type SharedVision struct{}

func (TechTransfer) Kind() Kind { return KindTech }
func (Gold) Kind() Kind         { return KindGold }
func (WorldMap) Kind() Kind     { return KindWorldMap }
func (SeaMap) Kind() Kind       { return KindSeaMap }
func (CityTransfer) Kind() Kind { return KindCity }
func (CeaseFire) Kind() Kind    { return KindCeaseFire }
func (Peace) Kind() Kind        { return KindPeace }
func (Alliance) Kind() Kind     { return KindAlliance }
func (TeamMerge) Kind() Kind    { return KindTeamMerge }
func (SharedVision) Kind() Kind { return KindSharedVision }

func (TechTransfer) isTerm() {}
func (Gold) isTerm()         {}
func (WorldMap) isTerm()     {}
func (SeaMap) isTerm()       {}
func (CityTransfer) isTerm() {}
func (CeaseFire) isTerm()    {}
func (Peace) isTerm()        {}
func (Alliance) isTerm()     {}
func (TeamMerge) isTerm()    {}
func (SharedVision) isTerm() {}

// Clause is one proposed exchange, promised by From.
type Clause struct {
	From model.PlayerID
	Term Term
}

// Equal reports whether two clauses are semantically identical
// (same kind, same origin, same payload).
func (c Clause) Equal(o Clause) bool {
	return c.From == o.From && c.Term == o.Term
}

func (c Clause) Kind() Kind {
	if c.Term == nil {
		return ""
	}
	return c.Term.Kind()
}

func (c Clause) String() string {
	switch t := c.Term.(type) {
	case TechTransfer:
		return fmt.Sprintf("%s(%d) from %d", t.Kind(), t.Tech, c.From)
	case Gold:
		return fmt.Sprintf("%s(%d) from %d", t.Kind(), t.Amount, c.From)
	case CityTransfer:
		return fmt.Sprintf("%s(%d) from %d", t.Kind(), t.City, c.From)
	case nil:
		return fmt.Sprintf("<nil> from %d", c.From)
	default:
		return fmt.Sprintf("%s from %d", t.Kind(), c.From)
	}
}

// IsPact reports the mutually exclusive diplomatic-status kinds.
func IsPact(k Kind) bool {
	return k == KindCeaseFire || k == KindPeace || k == KindAlliance
}

// PactState maps a pact kind to the diplomatic state it establishes.
func PactState(k Kind) (model.DiplState, bool) {
	switch k {
	case KindCeaseFire:
		return model.DiplCeaseFire, true
	case KindPeace:
		return model.DiplPeace, true
	case KindAlliance:
		return model.DiplAlliance, true
	default:
		return "", false
	}
}

// NewTerm builds a term from its kind and the integer value used on the wire.
// The value is the tech id, gold amount or city id and is ignored for other kinds.
func NewTerm(k Kind, value int) (Term, error) {
	switch k {
	case KindTech:
		return TechTransfer{Tech: model.TechID(value)}, nil
	case KindGold:
		if value < 0 {
			return nil, fmt.Errorf("negative gold amount %d", value)
		}
		return Gold{Amount: value}, nil
	case KindWorldMap:
		return WorldMap{}, nil
	case KindSeaMap:
		return SeaMap{}, nil
	case KindCity:
		return CityTransfer{City: model.CityID(value)}, nil
	case KindCeaseFire:
		return CeaseFire{}, nil
	case KindPeace:
		return Peace{}, nil
	case KindAlliance:
		return Alliance{}, nil
	case KindTeamMerge:
		return TeamMerge{}, nil
	case KindSharedVision:
		return SharedVision{}, nil
	default:
		return nil, fmt.Errorf("unknown clause kind %q", k)
	}
}

// Value returns the integer payload of a term for the wire (0 for kinds without one).
func Value(t Term) int {
	switch v := t.(type) {
	case TechTransfer:
		return int(v.Tech)
	case Gold:
		return v.Amount
	case CityTransfer:
		return int(v.City)
	default:
		return 0
	}
}
