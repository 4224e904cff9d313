package session

import (
	"context"
	"fmt"

	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/model"
)

// ListTreaties returns every open treaty, ordered by player pair.
func (s *Session) ListTreaties(ctx context.Context) ([]TreatySummary, error) {
	var out []TreatySummary
	err := s.do(ctx, func() {
		for _, t := range s.dipl.Active() {
			out = append(out, summarize(t))
		}
	})
	return out, err
}

// PlayerInfo returns the public state of p.
func (s *Session) PlayerInfo(ctx context.Context, p model.PlayerID) (protocol.PlayerInfoMsg, bool, error) {
	var (
		info protocol.PlayerInfoMsg
		ok   bool
	)
	err := s.do(ctx, func() {
		if !s.world.ValidPlayer(p) {
			return
		}
		info, ok = s.world.PlayerInfo(p), true
	})
	return info, ok, err
}

// Eliminate kills p and cancels every meeting p takes part in. It reports
// false when p is unknown or already dead.
func (s *Session) Eliminate(ctx context.Context, p model.PlayerID) (bool, error) {
	var ok bool
	err := s.do(ctx, func() {
		if !s.world.Eliminate(p) {
			return
		}
		ok = true
		s.dipl.CancelAllMeetings(p)
		s.record(TreatyRecord{Kind: RecordEliminated, P0: int(p), Actor: int(p)})
		s.log.Printf("player %d eliminated", p)
		outbox{s}.SendPlayer(p, s.world.PlayerInfo(p))
	})
	return ok, err
}

// EstablishEmbassy gives a an embassy with b and sends a the fresh view of
// b. It reports false when the pair is invalid or the embassy exists.
func (s *Session) EstablishEmbassy(ctx context.Context, a, b model.PlayerID) (bool, error) {
	var ok bool
	err := s.do(ctx, func() {
		if !s.world.EstablishEmbassy(a, b) {
			return
		}
		ok = true
		eventLog{s}.Record(model.EventEmbassyReport, []model.PlayerID{a, b},
			fmt.Sprintf("%s establishes an embassy with the %s.", s.world.PlayerName(a), s.world.NationPlural(b)))
		out := outbox{s}
		out.SendPlayer(a, s.world.PlayerInfo(b))
		out.SendPlayer(a, s.world.PlayerInfo(a))
	})
	return ok, err
}

// MakeContact opens the contact window between a and b so that they can
// meet without an embassy.
func (s *Session) MakeContact(ctx context.Context, a, b model.PlayerID) (bool, error) {
	var ok bool
	err := s.do(ctx, func() {
		if !s.world.MakeContact(a, b) {
			return
		}
		ok = true
		eventLog{s}.Record(model.EventDiplomacy, []model.PlayerID{a, b},
			fmt.Sprintf("%s and %s are in contact.", s.world.PlayerName(a), s.world.PlayerName(b)))
		out := outbox{s}
		for _, p := range []model.PlayerID{a, b} {
			out.SendPlayer(p, s.world.PlayerInfo(a))
			out.SendPlayer(p, s.world.PlayerInfo(b))
		}
	})
	return ok, err
}

// AdvanceTurn runs one turn change and returns the new turn number.
func (s *Session) AdvanceTurn(ctx context.Context) (int, error) {
	var turn int
	err := s.do(ctx, func() { turn = s.advanceTurn() })
	return turn, err
}

func (s *Session) advanceTurn() int {
	expired := s.world.AdvanceTurn()
	s.metrics.TurnAdvanced()
	out := outbox{s}
	for _, e := range expired {
		s.notify(e.A, fmt.Sprintf("The cease-fire with %s has run out. You are now at war with the %s.",
			s.world.PlayerName(e.B), s.world.NationPlural(e.B)))
		s.notify(e.B, fmt.Sprintf("The cease-fire with %s has run out. You are now at war with the %s.",
			s.world.PlayerName(e.A), s.world.NationPlural(e.A)))
		infos := []protocol.PlayerInfoMsg{s.world.PlayerInfo(e.A), s.world.PlayerInfo(e.B)}
		for _, p := range []model.PlayerID{e.A, e.B} {
			for _, info := range infos {
				out.SendPlayer(p, info)
			}
		}
		s.record(TreatyRecord{Kind: RecordCeaseFireExpired, P0: int(e.A), P1: int(e.B)})
	}
	return s.world.Turn()
}

func (s *Session) notify(p model.PlayerID, text string) {
	outbox{s}.SendPlayer(p, protocol.NotifyMsg{
		Type:            protocol.TypeNotify,
		ProtocolVersion: protocol.Version,
		Event:           model.EventDiplomacy,
		Text:            text,
	})
}
