package diplomacy

import (
	"log"

	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/diplomacy/execution"
	"envoy.ai/internal/sim/diplomacy/validation"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/treaty"
)

// World is everything the negotiation engine reads from or writes to the game.
type World interface {
	validation.Env
	execution.Env

	ValidPlayer(p model.PlayerID) bool
	IsAlive(p model.PlayerID) bool
	IsBarbarian(p model.PlayerID) bool
	IsAI(p model.PlayerID) bool
	CouldMeet(a, b model.PlayerID) bool
	Players() []model.PlayerID

	TechExists(t model.TechID) bool
	TechName(t model.TechID) string
	PlayerName(p model.PlayerID) string
	NationPlural(p model.PlayerID) string
	Relation(a, b model.PlayerID) model.Relation

	MapKnows(p model.PlayerID, pos model.Pos) bool
	GiveCityMap(id model.CityID, to model.PlayerID)
	// EmbassiesWith returns the players holding an embassy with p.
	EmbassiesWith(p model.PlayerID) []model.PlayerID
	PlayerInfo(p model.PlayerID) protocol.PlayerInfoMsg
}

// Outbox delivers server messages. SendPlayer fans out to every live
// connection of p.
type Outbox interface {
	SendPlayer(p model.PlayerID, msg any)
}

// EventLog records game events for observers, separate from delivery.
type EventLog interface {
	Record(kind string, players []model.PlayerID, text string)
}

// Advisor lets a strategy module react to treaties involving an AI player.
// Calls are synchronous and made from the session goroutine.
type Advisor interface {
	TreatyEvaluate(self, other model.PlayerID, t *treaty.Treaty)
	TreatyAccepted(self, other model.PlayerID, t *treaty.Treaty)
}

// FinalizeReport describes the end of a mutually accepted treaty.
type FinalizeReport struct {
	Treaty *treaty.Treaty
	// Trigger is the player whose accept made the treaty mutual.
	Trigger model.PlayerID
	OK      bool
	// Failure is set when the finalize-time check dissolved the treaty.
	Failure  validation.Verdict
	Outcomes []execution.Outcome
}

type Hooks struct {
	OnOpened    func(t *treaty.Treaty)
	OnClause    func(t *treaty.Treaty, c treaty.Clause, added bool)
	OnAccept    func(t *treaty.Treaty, p model.PlayerID, accepted bool)
	OnRejected  func(t *treaty.Treaty, p model.PlayerID, v validation.Verdict)
	OnFinalized func(r FinalizeReport)
	OnCancelled func(t *treaty.Treaty, by model.PlayerID)
}

type Config struct {
	Execution execution.Config
}

// Service owns the treaty registry of one game session. It is not safe for
// concurrent use; the session serializes every call.
type Service struct {
	world   World
	out     Outbox
	events  EventLog
	advisor Advisor
	hooks   Hooks
	cfg     Config
	logger  *log.Logger

	treaties *treaty.Registry
}

type Options struct {
	World    World
	Outbox   Outbox
	EventLog EventLog
	Advisor  Advisor
	Hooks    Hooks
	Config   Config
	Logger   *log.Logger
	Registry *treaty.Registry
}

func New(opts Options) *Service {
	s := &Service{
		world:    opts.World,
		out:      opts.Outbox,
		events:   opts.EventLog,
		advisor:  opts.Advisor,
		hooks:    opts.Hooks,
		cfg:      opts.Config,
		logger:   opts.Logger,
		treaties: opts.Registry,
	}
	if s.out == nil {
		s.out = discardOutbox{}
	}
	if s.events == nil {
		s.events = discardEvents{}
	}
	if s.treaties == nil {
		s.treaties = treaty.NewRegistry()
	}
	return s
}

// Active returns every open treaty ordered by pair.
func (s *Service) Active() []*treaty.Treaty { return s.treaties.All() }

// Find returns the open treaty between a and b, if any.
func (s *Service) Find(a, b model.PlayerID) *treaty.Treaty { return s.treaties.Find(a, b) }

// Close dissolves every open treaty without notifying anyone. Used at session end.
func (s *Service) Close() { s.treaties.Clear() }

func (s *Service) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// pair resolves a request for (player, counterpart). Misuse yields ok=false.
func (s *Service) pair(player, counterpart model.PlayerID) bool {
	if player == counterpart || !s.world.ValidPlayer(player) || !s.world.ValidPlayer(counterpart) {
		s.logf("diplomacy: ignored request %d -> %d", player, counterpart)
		return false
	}
	return true
}

// InitMeeting opens a treaty between player and counterpart.
func (s *Service) InitMeeting(player, counterpart model.PlayerID) {
	if !s.pair(player, counterpart) {
		return
	}
	if s.treaties.Find(player, counterpart) != nil {
		return
	}
	if s.world.IsBarbarian(player) || s.world.IsBarbarian(counterpart) {
		s.notify(player, model.EventDiplomacy, nil, "Your diplomatic envoy was decapitated!")
		return
	}
	if !s.world.CouldMeet(player, counterpart) {
		s.logf("diplomacy: %d cannot meet %d", player, counterpart)
		return
	}
	t := s.treaties.Create(player, counterpart)
	if t == nil {
		return
	}
	s.out.SendPlayer(player, meetingMsg(protocol.TypeInitMeeting, counterpart, player))
	s.out.SendPlayer(counterpart, meetingMsg(protocol.TypeInitMeeting, player, player))
	if s.hooks.OnOpened != nil {
		s.hooks.OnOpened(t)
	}
}

// CreateClause adds a clause promised by giver to the treaty of the pair.
func (s *Service) CreateClause(player, counterpart model.PlayerID, c treaty.Clause) {
	if !s.pair(player, counterpart) {
		return
	}
	if c.From != player && c.From != counterpart {
		return
	}
	t := s.treaties.Find(player, counterpart)
	if t == nil {
		return
	}
	if !s.saneClause(t, c) {
		return
	}
	res, replaced := t.AddClause(c)
	switch res {
	case treaty.AddRejected, treaty.AddDuplicate:
		return
	case treaty.AddReplaced:
		s.broadcastClause(t, protocol.TypeRemoveClause, replaced)
		if s.hooks.OnClause != nil {
			s.hooks.OnClause(t, replaced, false)
		}
	}

	if city, ok := c.Term.(treaty.CityTransfer); ok {
		receiver := t.Other(c.From)
		if info, found := s.world.City(city.City); found && !s.world.MapKnows(receiver, info.Pos) {
			s.world.GiveCityMap(city.City, receiver)
		}
	}

	s.broadcastClause(t, protocol.TypeCreateClause, c)
	if s.hooks.OnClause != nil {
		s.hooks.OnClause(t, c, true)
	}
	s.evaluate(t)
}

// RemoveClause withdraws the first clause equal to c.
func (s *Service) RemoveClause(player, counterpart model.PlayerID, c treaty.Clause) {
	if !s.pair(player, counterpart) {
		return
	}
	if c.From != player && c.From != counterpart {
		return
	}
	t := s.treaties.Find(player, counterpart)
	if t == nil || !t.RemoveClause(c) {
		return
	}
	s.broadcastClause(t, protocol.TypeRemoveClause, c)
	if s.hooks.OnClause != nil {
		s.hooks.OnClause(t, c, false)
	}
	s.evaluate(t)
}

// saneClause drops requests no correct client sends: unknown techs, negative
// gold, bad city ids, and pacts matching the current relation.
func (s *Service) saneClause(t *treaty.Treaty, c treaty.Clause) bool {
	switch term := c.Term.(type) {
	case nil:
		return false
	case treaty.TechTransfer:
		if !s.world.TechExists(term.Tech) {
			s.logf("diplomacy: clause with unknown tech %d", term.Tech)
			return false
		}
	case treaty.Gold:
		if term.Amount < 0 {
			return false
		}
	case treaty.CityTransfer:
		if term.City <= 0 {
			return false
		}
	default:
		if state, ok := treaty.PactState(term.Kind()); ok {
			if s.world.Relation(t.P0, t.P1).State == state {
				s.logf("diplomacy: %d and %d already have %s", t.P0, t.P1, state)
				return false
			}
		}
	}
	return true
}

func (s *Service) evaluate(t *treaty.Treaty) {
	if s.advisor == nil {
		return
	}
	for _, p := range []model.PlayerID{t.P0, t.P1} {
		if s.world.IsAI(p) {
			s.advisor.TreatyEvaluate(p, t.Other(p), t)
		}
	}
}

// ToggleAccept flips player's accept flag and finalizes on mutual acceptance.
func (s *Service) ToggleAccept(player, counterpart model.PlayerID) {
	if !s.pair(player, counterpart) {
		return
	}
	t := s.treaties.Find(player, counterpart)
	if t == nil {
		return
	}
	if !t.Accepted(player) {
		if v := validation.CheckAll(s.world, t, player); !v.OK {
			s.notify(player, model.EventDiplomacy, nil, s.acceptRefusal(player, counterpart, v))
			if s.hooks.OnRejected != nil {
				s.hooks.OnRejected(t, player, v)
			}
			return
		}
	}

	accepted := t.Toggle(player)
	s.out.SendPlayer(player, acceptMsg(counterpart, accepted, t.Accepted(counterpart)))
	s.out.SendPlayer(counterpart, acceptMsg(player, t.Accepted(counterpart), accepted))
	if s.hooks.OnAccept != nil {
		s.hooks.OnAccept(t, player, accepted)
	}

	if t.State() == treaty.StateMutual {
		s.finalize(t, player)
	}
}

// finalize runs once both sides accepted. trigger is the player whose accept
// completed the treaty; the other side's promises are checked again because
// the world may have moved since that side accepted.
func (s *Service) finalize(t *treaty.Treaty, trigger model.PlayerID) {
	other := t.Other(trigger)
	n := len(t.Clauses)

	s.out.SendPlayer(trigger, meetingMsg(protocol.TypeCancelMeeting, other, trigger))
	s.out.SendPlayer(other, meetingMsg(protocol.TypeCancelMeeting, trigger, trigger))
	agreed := treatyAgreedText(n)
	s.notify(trigger, model.EventDiplomacy, nil, agreed)
	s.notify(other, model.EventDiplomacy, nil, agreed)
	s.events.Record(model.EventDiplomacy, []model.PlayerID{trigger, other},
		s.world.NationPlural(trigger)+" and "+s.world.NationPlural(other)+" agree to a treaty")

	report := FinalizeReport{Treaty: t, Trigger: trigger}
	if v := validation.CheckAll(s.world, t, other); !v.OK {
		text := s.finalizeRefusal(trigger, other, v)
		s.notify(trigger, model.EventTreatyBroken, nil, text)
		s.notify(other, model.EventTreatyBroken, nil, text)
		report.Failure = v
	} else {
		if s.advisor != nil {
			for _, p := range []model.PlayerID{trigger, other} {
				if s.world.IsAI(p) {
					s.advisor.TreatyAccepted(p, t.Other(p), t)
				}
			}
		}
		report.OK = true
		report.Outcomes = execution.ApplyAll(s.world, s.cfg.Execution, t)
		for _, o := range report.Outcomes {
			if !o.Applied {
				s.logf("diplomacy: treaty %s clause %s skipped: %s", t.ID, o.Clause, o.Skip)
				continue
			}
			s.announce(o)
		}
	}

	s.treaties.Remove(t)
	infos := []protocol.PlayerInfoMsg{s.world.PlayerInfo(trigger), s.world.PlayerInfo(other)}
	for _, p := range []model.PlayerID{trigger, other} {
		for _, info := range infos {
			s.out.SendPlayer(p, info)
		}
	}
	if s.hooks.OnFinalized != nil {
		s.hooks.OnFinalized(report)
	}
}

// CancelMeeting dissolves the pair's treaty, if any.
func (s *Service) CancelMeeting(player, counterpart model.PlayerID) {
	if !s.pair(player, counterpart) {
		return
	}
	s.cancel(player, counterpart)
}

func (s *Service) cancel(player, counterpart model.PlayerID) {
	t := s.treaties.Find(player, counterpart)
	if t == nil {
		return
	}
	s.out.SendPlayer(counterpart, meetingMsg(protocol.TypeCancelMeeting, player, player))
	s.notify(counterpart, model.EventMeetingEnded, nil, s.world.PlayerName(player)+" canceled the meeting!")
	s.out.SendPlayer(player, meetingMsg(protocol.TypeCancelMeeting, counterpart, player))
	s.notify(player, model.EventMeetingEnded, nil, "Meeting with "+s.world.PlayerName(counterpart)+" canceled.")
	s.treaties.Remove(t)
	if s.hooks.OnCancelled != nil {
		s.hooks.OnCancelled(t, player)
	}
}

// CancelAllMeetings cancels every treaty player takes part in.
func (s *Service) CancelAllMeetings(player model.PlayerID) {
	for _, t := range s.treaties.ForPlayer(player) {
		s.cancel(player, t.Other(player))
	}
}

// Resync returns the frames that rebuild player's open meetings on a fresh
// connection, in the order a live client would have seen them.
func (s *Service) Resync(player model.PlayerID) []any {
	var out []any
	for _, t := range s.treaties.ForPlayer(player) {
		other := t.Other(player)
		out = append(out, meetingMsg(protocol.TypeInitMeeting, other, t.P0))
		for _, c := range t.Clauses {
			out = append(out, clauseMsg(protocol.TypeCreateClause, other, c))
		}
		if t.Accepted(player) || t.Accepted(other) {
			out = append(out, acceptMsg(other, t.Accepted(player), t.Accepted(other)))
		}
	}
	return out
}

func (s *Service) broadcastClause(t *treaty.Treaty, typ string, c treaty.Clause) {
	s.out.SendPlayer(t.P0, clauseMsg(typ, t.P1, c))
	s.out.SendPlayer(t.P1, clauseMsg(typ, t.P0, c))
}

func (s *Service) notify(p model.PlayerID, event string, pos *model.Pos, text string) {
	s.out.SendPlayer(p, notifyMsg(event, pos, text))
}

type discardOutbox struct{}

func (discardOutbox) SendPlayer(model.PlayerID, any) {}

type discardEvents struct{}

func (discardEvents) Record(string, []model.PlayerID, string) {}
