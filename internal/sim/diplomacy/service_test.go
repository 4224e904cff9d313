package diplomacy

import (
	"strings"
	"testing"

	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/diplomacy/validation"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/scenario"
	"envoy.ai/internal/sim/treaty"
	"envoy.ai/internal/sim/world"
)

const testScenario = `
name: talks
map: {width: 16, height: 16}
techs:
  - {id: 1, name: Alphabet}
  - {id: 2, name: Writing}
  - {id: 3, name: Pottery}
players:
  - {id: 1, name: Ada, nation: Aran, gold: 50, team: 1, techs: [1, 3], embassies: [2], research: {bulbs: 100, bulbs_before: 10, researching: 2}}
  - {id: 2, name: Bo, nation: Bren, gold: 100, team: 1, techs: [2], embassies: [1], research: {bulbs: 300, bulbs_before: 30}}
  - {id: 3, name: Cy, nation: Cyr, ai: true, embassies: [1]}
  - {id: 4, name: Xul, nation: Barbarian, barbarian: true}
  - {id: 5, name: Eve, nation: Eld, embassies: [1, 2]}
cities:
  - {id: 1, name: Alpha, owner: 1, x: 1, y: 1, capital: true}
  - {id: 2, name: Beta, owner: 1, x: 3, y: 1}
  - {id: 3, name: Gamma, owner: 2, x: 14, y: 14, capital: true}
relations:
  - {a: 1, b: 2, state: CEASEFIRE, turns_left: 5}
  - {a: 1, b: 3, state: WAR}
  - {a: 2, b: 3, state: ALLIANCE}
  - {a: 1, b: 4, state: WAR}
`

type sent struct {
	to  model.PlayerID
	msg any
}

type recorder struct{ msgs []sent }

func (r *recorder) SendPlayer(p model.PlayerID, msg any) {
	r.msgs = append(r.msgs, sent{to: p, msg: msg})
}

func (r *recorder) reset() { r.msgs = nil }

func msgType(msg any) string {
	switch m := msg.(type) {
	case protocol.MeetingMsg:
		return m.Type
	case protocol.ClauseMsg:
		return m.Type
	case protocol.AcceptMsg:
		return m.Type
	case protocol.NotifyMsg:
		return m.Type
	case protocol.PlayerInfoMsg:
		return m.Type
	}
	return ""
}

func (r *recorder) ofType(p model.PlayerID, typ string) []any {
	var out []any
	for _, s := range r.msgs {
		if s.to == p && msgType(s.msg) == typ {
			out = append(out, s.msg)
		}
	}
	return out
}

func (r *recorder) notices(p model.PlayerID) []protocol.NotifyMsg {
	var out []protocol.NotifyMsg
	for _, m := range r.ofType(p, protocol.TypeNotify) {
		out = append(out, m.(protocol.NotifyMsg))
	}
	return out
}

func (r *recorder) hasNotice(p model.PlayerID, substr string) bool {
	for _, n := range r.notices(p) {
		if strings.Contains(n.Text, substr) {
			return true
		}
	}
	return false
}

type advisorCall struct {
	accepted    bool
	self, other model.PlayerID
}

type fakeAdvisor struct{ calls []advisorCall }

func (a *fakeAdvisor) TreatyEvaluate(self, other model.PlayerID, _ *treaty.Treaty) {
	a.calls = append(a.calls, advisorCall{self: self, other: other})
}

func (a *fakeAdvisor) TreatyAccepted(self, other model.PlayerID, _ *treaty.Treaty) {
	a.calls = append(a.calls, advisorCall{accepted: true, self: self, other: other})
}

type fixture struct {
	w        *world.World
	out      *recorder
	advisor  *fakeAdvisor
	svc      *Service
	reports  []FinalizeReport
	rejected []validation.Verdict
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	sc, err := scenario.Parse([]byte(testScenario))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	w, err := world.New(world.Config{}, sc)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	f := &fixture{w: w, out: &recorder{}, advisor: &fakeAdvisor{}}
	f.svc = New(Options{
		World:   w,
		Outbox:  f.out,
		Advisor: f.advisor,
		Hooks: Hooks{
			OnFinalized: func(r FinalizeReport) { f.reports = append(f.reports, r) },
			OnRejected: func(_ *treaty.Treaty, _ model.PlayerID, v validation.Verdict) {
				f.rejected = append(f.rejected, v)
			},
		},
	})
	return f
}

func clause(from model.PlayerID, term treaty.Term) treaty.Clause {
	return treaty.Clause{From: from, Term: term}
}

func TestInitMeeting(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	if f.svc.Find(2, 1) == nil {
		t.Fatalf("expected treaty")
	}
	for _, p := range []model.PlayerID{1, 2} {
		got := f.out.ofType(p, protocol.TypeInitMeeting)
		if len(got) != 1 || got[0].(protocol.MeetingMsg).InitiatedFrom != 1 {
			t.Fatalf("player %d init messages: %+v", p, got)
		}
	}

	f.out.reset()
	f.svc.InitMeeting(2, 1)
	if len(f.out.msgs) != 0 || len(f.svc.Active()) != 1 {
		t.Fatalf("second init must be a no-op")
	}

	f.svc.InitMeeting(1, 4)
	if f.svc.Find(1, 4) != nil || !f.out.hasNotice(1, "decapitated") {
		t.Fatalf("barbarian meeting must fail with a notice")
	}
	f.svc.InitMeeting(5, 3)
	if f.svc.Find(5, 3) != nil {
		t.Fatalf("players without contact cannot meet")
	}
	f.svc.InitMeeting(1, 1)
	f.svc.InitMeeting(1, 42)
	if len(f.svc.Active()) != 1 {
		t.Fatalf("misuse must not create treaties")
	}
}

func TestCreateClause_BroadcastsAndRejectsMisuse(t *testing.T) {
	f := newFixture(t)
	f.svc.CreateClause(1, 2, clause(1, treaty.Gold{Amount: 10}))
	if len(f.out.msgs) != 0 {
		t.Fatalf("clause without treaty must be ignored")
	}
	f.svc.InitMeeting(1, 2)
	f.out.reset()

	f.svc.CreateClause(1, 2, clause(1, treaty.Gold{Amount: 10}))
	f.svc.CreateClause(1, 2, clause(1, treaty.Gold{Amount: 10}))
	f.svc.CreateClause(1, 2, clause(3, treaty.WorldMap{}))
	f.svc.CreateClause(1, 2, clause(1, treaty.TechTransfer{Tech: 99}))
	f.svc.CreateClause(1, 2, clause(2, treaty.CeaseFire{}))

	tr := f.svc.Find(1, 2)
	if len(tr.Clauses) != 1 {
		t.Fatalf("clauses=%v", tr.Clauses)
	}
	for _, p := range []model.PlayerID{1, 2} {
		if got := len(f.out.ofType(p, protocol.TypeCreateClause)); got != 1 {
			t.Fatalf("player %d got %d create messages", p, got)
		}
	}
	msg := f.out.ofType(2, protocol.TypeCreateClause)[0].(protocol.ClauseMsg)
	if msg.Counterpart != 1 || msg.Giver != 1 || msg.Kind != "GOLD" || msg.Value != 10 {
		t.Fatalf("clause message: %+v", msg)
	}
}

func TestCreateClause_PactReplacement(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(1, treaty.Peace{}))
	f.out.reset()
	f.svc.CreateClause(2, 1, clause(2, treaty.Alliance{}))

	tr := f.svc.Find(1, 2)
	if len(tr.Clauses) != 1 || tr.Clauses[0].Kind() != treaty.KindAlliance {
		t.Fatalf("clauses=%v", tr.Clauses)
	}
	var kinds []string
	for _, s := range f.out.msgs {
		if s.to == 1 {
			kinds = append(kinds, msgType(s.msg))
		}
	}
	if len(kinds) != 2 || kinds[0] != protocol.TypeRemoveClause || kinds[1] != protocol.TypeCreateClause {
		t.Fatalf("expected remove then create, got %v", kinds)
	}
}

func TestCreateClause_CityRevealsMap(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	beta := model.Pos{X: 3, Y: 1}
	if f.w.MapKnows(2, beta) {
		t.Fatalf("precondition")
	}
	f.svc.CreateClause(1, 2, clause(1, treaty.CityTransfer{City: 2}))
	if !f.w.MapKnows(2, beta) {
		t.Fatalf("receiver must learn the city area")
	}
}

func TestRemoveClause(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(1, treaty.WorldMap{}))
	f.out.reset()

	f.svc.RemoveClause(2, 1, clause(2, treaty.WorldMap{}))
	if len(f.out.msgs) != 0 {
		t.Fatalf("removing a missing clause must be silent")
	}
	f.svc.RemoveClause(2, 1, clause(1, treaty.WorldMap{}))
	if len(f.svc.Find(1, 2).Clauses) != 0 || len(f.out.ofType(1, protocol.TypeRemoveClause)) != 1 {
		t.Fatalf("clause not removed")
	}
}

func TestToggleAccept_Involution(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(2, treaty.WorldMap{}))
	tr := f.svc.Find(1, 2)

	f.svc.ToggleAccept(1, 2)
	if !tr.Accepted(1) || tr.State() != treaty.StateHalfAccepted {
		t.Fatalf("expected half accepted")
	}
	msgs := f.out.ofType(2, protocol.TypeAcceptTreaty)
	last := msgs[len(msgs)-1].(protocol.AcceptMsg)
	if last.SelfAccepted || !last.OtherAccepted || last.Counterpart != 1 {
		t.Fatalf("counterpart view: %+v", last)
	}
	f.svc.ToggleAccept(1, 2)
	if tr.Accepted(1) || tr.State() != treaty.StateOpen {
		t.Fatalf("second toggle must un-accept")
	}
	f.svc.ToggleAccept(3, 2)
	if tr.Accepted(1) || tr.Accepted(2) {
		t.Fatalf("non-participant toggle must be ignored")
	}
}

func TestEmptyTreatyFinalizes(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.ToggleAccept(1, 2)
	f.svc.ToggleAccept(2, 1)

	if f.svc.Find(1, 2) != nil {
		t.Fatalf("treaty must be removed")
	}
	if len(f.reports) != 1 || !f.reports[0].OK || len(f.reports[0].Outcomes) != 0 || f.reports[0].Trigger != 2 {
		t.Fatalf("reports: %+v", f.reports)
	}
	if f.w.Gold(1) != 50 || f.w.Gold(2) != 100 {
		t.Fatalf("world changed")
	}
	for _, p := range []model.PlayerID{1, 2} {
		if len(f.out.ofType(p, protocol.TypeCancelMeeting)) != 1 {
			t.Fatalf("player %d: expected cancel message", p)
		}
		if !f.out.hasNotice(p, "A treaty containing 0 clauses was agreed upon.") {
			t.Fatalf("player %d: missing agreed notice", p)
		}
		if len(f.out.ofType(p, protocol.TypePlayerInfo)) != 2 {
			t.Fatalf("player %d: expected both player summaries", p)
		}
	}
}

func TestGoldAcceptRejectedThenSucceeds(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(1, treaty.Gold{Amount: 100}))
	tr := f.svc.Find(1, 2)

	f.svc.ToggleAccept(1, 2)
	if tr.Accepted(1) {
		t.Fatalf("accept must be refused")
	}
	if !f.out.hasNotice(1, "You don't have enough gold") || len(f.out.notices(2)) != 0 {
		t.Fatalf("refusal goes to the requester only")
	}
	if len(f.rejected) != 1 || f.rejected[0].Reason != validation.ReasonInsufficientGold {
		t.Fatalf("rejected: %+v", f.rejected)
	}

	f.w.AddGold(1, 50)
	f.svc.ToggleAccept(1, 2)
	if !tr.Accepted(1) {
		t.Fatalf("accept must succeed once the treasury covers the promise")
	}
	f.svc.ToggleAccept(2, 1)
	if f.w.Gold(1) != 0 || f.w.Gold(2) != 200 {
		t.Fatalf("gold=%d/%d", f.w.Gold(1), f.w.Gold(2))
	}
	if !f.out.hasNotice(2, "You get 100 gold.") {
		t.Fatalf("missing gold notice")
	}
	if !f.out.hasNotice(5, "have given 100 gold") {
		t.Fatalf("embassy holder must hear about the transfer")
	}
}

func TestAllianceConflictRejected(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(1, treaty.Alliance{}))
	tr := f.svc.Find(1, 2)
	f.out.reset()

	f.svc.ToggleAccept(1, 2)
	if tr.Accepted(1) || tr.Accepted(2) {
		t.Fatalf("no flag may change")
	}
	if len(f.out.ofType(1, protocol.TypeAcceptTreaty)) != 0 {
		t.Fatalf("no accept broadcast on refusal")
	}
	if !f.out.hasNotice(1, "an alliance with Bo is impossible") {
		t.Fatalf("notices: %+v", f.out.notices(1))
	}
	if f.rejected[0].Reason != validation.ReasonOriginAllyAtWar {
		t.Fatalf("reason=%s", f.rejected[0].Reason)
	}
}

func TestFinalizeRecheckDissolvesWithoutEffects(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(2, treaty.Gold{Amount: 80}))
	f.svc.CreateClause(1, 2, clause(1, treaty.TechTransfer{Tech: 1}))

	f.svc.ToggleAccept(2, 1)
	f.w.AddGold(2, -50)
	f.svc.ToggleAccept(1, 2)

	if f.svc.Find(1, 2) != nil {
		t.Fatalf("treaty must be dissolved")
	}
	if len(f.reports) != 1 || f.reports[0].OK || f.reports[0].Failure.Reason != validation.ReasonInsufficientGold {
		t.Fatalf("report: %+v", f.reports)
	}
	if f.w.KnowsTech(2, 1) || f.w.Gold(1) != 50 {
		t.Fatalf("no effect may be applied")
	}
	for _, p := range []model.PlayerID{1, 2} {
		if !f.out.hasNotice(p, "The Brens don't have the promised amount of gold! Treaty canceled!") {
			t.Fatalf("player %d: missing failure notice", p)
		}
		if len(f.out.ofType(p, protocol.TypePlayerInfo)) != 2 {
			t.Fatalf("player %d: summaries must follow a failed finalize", p)
		}
	}
}

func TestFinalizeRecheckCatchesDestroyedCity(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(1, treaty.CityTransfer{City: 2}))
	f.svc.CreateClause(1, 2, clause(2, treaty.Gold{Amount: 30}))

	f.svc.ToggleAccept(1, 2)
	f.w.DestroyCity(2)
	f.svc.ToggleAccept(2, 1)

	if len(f.reports) != 1 || f.reports[0].OK || f.reports[0].Failure.Reason != validation.ReasonCityGone {
		t.Fatalf("report: %+v", f.reports)
	}
	if f.w.Gold(2) != 100 {
		t.Fatalf("gold must not move")
	}
}

func TestTechGrantIsIdempotentAcrossTreaties(t *testing.T) {
	f := newFixture(t)
	f.w.GrantTech(2, 3)
	f.svc.InitMeeting(1, 3)
	f.svc.InitMeeting(2, 3)
	f.svc.CreateClause(1, 3, clause(1, treaty.TechTransfer{Tech: 3}))
	f.svc.CreateClause(2, 3, clause(2, treaty.TechTransfer{Tech: 3}))

	f.svc.ToggleAccept(3, 1)
	f.svc.ToggleAccept(1, 3)
	if !f.w.KnowsTech(3, 3) || !f.reports[0].OK {
		t.Fatalf("first treaty must grant the tech")
	}
	f.svc.ToggleAccept(3, 2)
	f.svc.ToggleAccept(2, 3)
	if len(f.reports) != 2 || !f.reports[1].OK {
		t.Fatalf("second treaty must finalize: %+v", f.reports)
	}
	if f.reports[1].Outcomes[0].Applied {
		t.Fatalf("second grant must be a no-op")
	}
}

func TestTeamMergeAveragesResearch(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(1, treaty.TeamMerge{}))
	f.svc.ToggleAccept(1, 2)
	f.svc.ToggleAccept(2, 1)

	for _, p := range []model.PlayerID{1, 2} {
		r := f.w.Research(p)
		if r.BulbsResearched != 200 || r.BulbsBefore != 20 {
			t.Fatalf("player %d research: %+v", p, r)
		}
		if !f.w.KnowsTech(p, 1) || !f.w.KnowsTech(p, 2) {
			t.Fatalf("player %d techs not pooled", p)
		}
	}
	if f.w.Relation(1, 2).State != model.DiplTeam {
		t.Fatalf("relation not team")
	}
}

func TestCancelAllMeetings(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 2)
	f.svc.InitMeeting(1, 3)
	f.svc.InitMeeting(2, 3)
	f.out.reset()

	f.svc.CancelAllMeetings(1)
	if f.svc.Find(1, 2) != nil || f.svc.Find(1, 3) != nil {
		t.Fatalf("treaties of 1 must be gone")
	}
	if f.svc.Find(2, 3) == nil {
		t.Fatalf("unrelated treaty must survive")
	}
	if !f.out.hasNotice(2, "Ada canceled the meeting!") || !f.out.hasNotice(1, "Meeting with Cy canceled.") {
		t.Fatalf("cancel notices missing")
	}
	f.out.reset()
	f.svc.CancelMeeting(1, 2)
	if len(f.out.msgs) != 0 {
		t.Fatalf("cancel without treaty must be silent")
	}
}

func TestResyncRebuildsOpenMeetings(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(2, 1)
	f.svc.CreateClause(1, 2, clause(1, treaty.WorldMap{}))
	f.svc.CreateClause(1, 2, clause(2, treaty.SeaMap{}))
	f.svc.ToggleAccept(2, 1)
	f.out.reset()

	frames := f.svc.Resync(1)
	if len(f.out.msgs) != 0 {
		t.Fatalf("resync must not broadcast: %+v", f.out.msgs)
	}
	var types []string
	for _, m := range frames {
		types = append(types, msgType(m))
	}
	want := []string{protocol.TypeInitMeeting, protocol.TypeCreateClause, protocol.TypeCreateClause, protocol.TypeAcceptTreaty}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Fatalf("resync=%v", types)
	}
	if c := frames[1].(protocol.ClauseMsg); c.Kind != "MAP" || c.Counterpart != 2 {
		t.Fatalf("first clause replayed out of order: %+v", c)
	}
	if a := frames[3].(protocol.AcceptMsg); a.SelfAccepted || !a.OtherAccepted {
		t.Fatalf("accept flags from 1's view: %+v", a)
	}
	if got := f.svc.Resync(4); len(got) != 0 {
		t.Fatalf("player without meetings: %+v", got)
	}
}

func TestAdvisorCalledForAIOnly(t *testing.T) {
	f := newFixture(t)
	f.svc.InitMeeting(1, 3)
	f.svc.CreateClause(1, 3, clause(1, treaty.SeaMap{}))
	if len(f.advisor.calls) != 1 || f.advisor.calls[0] != (advisorCall{self: 3, other: 1}) {
		t.Fatalf("evaluate calls: %+v", f.advisor.calls)
	}
	f.svc.ToggleAccept(1, 3)
	f.svc.ToggleAccept(3, 1)
	last := f.advisor.calls[len(f.advisor.calls)-1]
	if !last.accepted || last.self != 3 {
		t.Fatalf("accepted call: %+v", f.advisor.calls)
	}

	f.advisor.calls = nil
	f.svc.InitMeeting(1, 2)
	f.svc.CreateClause(1, 2, clause(1, treaty.SeaMap{}))
	if len(f.advisor.calls) != 0 {
		t.Fatalf("humans must not trigger the advisor")
	}
}

func TestClauseFromRequest(t *testing.T) {
	c, err := ClauseFromRequest(protocol.ClauseReq{Giver: 2, Kind: "CITY", Value: 7})
	if err != nil || c.From != 2 || c.Term != (treaty.CityTransfer{City: 7}) {
		t.Fatalf("clause=%+v err=%v", c, err)
	}
	if _, err := ClauseFromRequest(protocol.ClauseReq{Giver: 2, Kind: "GOLD", Value: -1}); err == nil {
		t.Fatalf("negative gold must fail")
	}
}
