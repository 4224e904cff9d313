package treaty

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"envoy.ai/internal/sim/model"
)

// PairKey identifies an unordered player pair; Lo <= Hi.
type PairKey struct {
	Lo, Hi model.PlayerID
}

func NewPairKey(a, b model.PlayerID) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Lo: a, Hi: b}
}

// Registry holds the in-progress treaties, at most one per player pair.
// It is not safe for concurrent use; the owning session serializes access.
type Registry struct {
	byPair map[PairKey]*Treaty

	now   func() time.Time
	newID func() string
}

func NewRegistry() *Registry {
	return &Registry{
		byPair: map[PairKey]*Treaty{},
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

func (r *Registry) Find(a, b model.PlayerID) *Treaty {
	if r == nil {
		return nil
	}
	return r.byPair[NewPairKey(a, b)]
}

// Create registers an empty treaty requested by a. It returns nil when a == b
// or a treaty already exists for the pair.
func (r *Registry) Create(a, b model.PlayerID) *Treaty {
	if a == b {
		return nil
	}
	k := NewPairKey(a, b)
	if _, ok := r.byPair[k]; ok {
		return nil
	}
	t := &Treaty{
		ID:       r.newID(),
		P0:       a,
		P1:       b,
		OpenedAt: r.now().UTC(),
	}
	r.byPair[k] = t
	return t
}

func (r *Registry) Remove(t *Treaty) {
	if t == nil {
		return
	}
	k := t.Key()
	if cur, ok := r.byPair[k]; ok && cur == t {
		delete(r.byPair, k)
	}
	t.dissolved = true
}

// ForPlayer returns the treaties p takes part in, ordered by counterpart id.
func (r *Registry) ForPlayer(p model.PlayerID) []*Treaty {
	var out []*Treaty
	for k, t := range r.byPair {
		if k.Lo == p || k.Hi == p {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Other(p) < out[j].Other(p)
	})
	return out
}

// All returns every active treaty ordered by pair key.
func (r *Registry) All() []*Treaty {
	out := make([]*Treaty, 0, len(r.byPair))
	for _, t := range r.byPair {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		if ki.Lo != kj.Lo {
			return ki.Lo < kj.Lo
		}
		return ki.Hi < kj.Hi
	})
	return out
}

func (r *Registry) Len() int { return len(r.byPair) }

// Clear drops every treaty, marking each dissolved.
func (r *Registry) Clear() {
	for k, t := range r.byPair {
		t.dissolved = true
		delete(r.byPair, k)
	}
}
