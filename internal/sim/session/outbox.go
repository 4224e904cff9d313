package session

import (
	"encoding/json"
	"time"

	"envoy.ai/internal/sim/diplomacy"
	"envoy.ai/internal/sim/diplomacy/validation"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/treaty"
)

// outbox fans server frames out to client connections. A connection whose
// buffer is full is dropped rather than allowed to stall the session.
type outbox struct{ s *Session }

func (o outbox) SendPlayer(p model.PlayerID, msg any) {
	conns := o.s.clients[p]
	if len(conns) == 0 {
		return
	}
	b, err := json.Marshal(msg)
	if err != nil {
		o.s.log.Printf("marshal %T: %v", msg, err)
		return
	}
	for id, c := range conns {
		o.s.deliver(id, c, b)
	}
}

func (s *Session) deliver(connID string, c *clientState, b []byte) {
	select {
	case c.Out <- b:
	default:
		s.log.Printf("drop slow conn=%s player=%d", connID, c.Player)
		s.detach(connID, c)
		s.metrics.ClientDropped()
	}
}

// eventLog turns game log lines into EVENT records.
type eventLog struct{ s *Session }

func (e eventLog) Record(kind string, players []model.PlayerID, text string) {
	rec := TreatyRecord{Kind: RecordEvent, Event: kind, Text: text}
	if len(players) > 0 {
		rec.P0 = int(players[0])
	}
	if len(players) > 1 {
		rec.P1 = int(players[1])
	}
	e.s.log.Printf("gamelog %s: %s", kind, text)
	e.s.record(rec)
}

func (s *Session) record(rec TreatyRecord) {
	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	rec.Turn = s.world.Turn()
	for _, r := range s.recorders {
		if err := r.WriteTreaty(rec); err != nil {
			s.metrics.RecorderError()
			s.log.Printf("record %s: %v", rec.Kind, err)
		}
	}
}

func treatyRecord(kind RecordKind, t *treaty.Treaty) TreatyRecord {
	return TreatyRecord{Kind: kind, TreatyID: t.ID, P0: int(t.P0), P1: int(t.P1)}
}

// hooks feeds negotiation milestones to metrics and recorders.
func (s *Session) hooks() diplomacy.Hooks {
	return diplomacy.Hooks{
		OnOpened: func(t *treaty.Treaty) {
			s.metrics.TreatyOpened()
			s.metrics.SetActiveTreaties(len(s.dipl.Active()))
			rec := treatyRecord(RecordOpened, t)
			rec.Actor = int(t.P0)
			s.record(rec)
		},
		OnClause: func(t *treaty.Treaty, c treaty.Clause, added bool) {
			s.metrics.ClauseChanged(string(c.Kind()), added)
			kind := RecordClauseAdded
			if !added {
				kind = RecordClauseRemoved
			}
			rec := treatyRecord(kind, t)
			rec.Clauses = []ClauseRecord{clauseRecord(c)}
			s.record(rec)
		},
		OnAccept: func(t *treaty.Treaty, p model.PlayerID, accepted bool) {
			rec := treatyRecord(RecordAccept, t)
			rec.Actor = int(p)
			rec.Accepted = accepted
			s.record(rec)
		},
		OnRejected: func(t *treaty.Treaty, p model.PlayerID, v validation.Verdict) {
			s.metrics.AcceptRejected(string(v.Reason))
			rec := treatyRecord(RecordRejected, t)
			rec.Actor = int(p)
			rec.Code = v.Code
			rec.Reason = string(v.Reason)
			rec.Clauses = []ClauseRecord{clauseRecord(v.Clause)}
			s.record(rec)
		},
		OnFinalized: func(r diplomacy.FinalizeReport) {
			s.metrics.TreatyFinalized(r.OK)
			s.metrics.SetActiveTreaties(len(s.dipl.Active()))
			rec := treatyRecord(RecordFinalized, r.Treaty)
			rec.Actor = int(r.Trigger)
			if r.OK {
				rec.Clauses = outcomeRecords(r.Outcomes)
			} else {
				rec.Kind = RecordFailed
				rec.Code = r.Failure.Code
				rec.Reason = string(r.Failure.Reason)
				rec.Clauses = []ClauseRecord{clauseRecord(r.Failure.Clause)}
			}
			s.record(rec)
		},
		OnCancelled: func(t *treaty.Treaty, by model.PlayerID) {
			s.metrics.TreatyCancelled()
			s.metrics.SetActiveTreaties(len(s.dipl.Active()))
			rec := treatyRecord(RecordCancelled, t)
			rec.Actor = int(by)
			rec.Clauses = clauseRecords(t.Clauses)
			s.record(rec)
		},
	}
}
