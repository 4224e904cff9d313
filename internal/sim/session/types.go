package session

import (
	"time"

	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/diplomacy/execution"
	"envoy.ai/internal/sim/model"
	"envoy.ai/internal/sim/treaty"
)

// AttachRequest binds a new connection to a player. Out receives every
// server frame for that connection; the session closes it on leave or when
// the connection falls behind.
type AttachRequest struct {
	PlayerID model.PlayerID
	Token    string
	Out      chan []byte
	Resp     chan AttachResponse
}

// AttachResponse carries either a WELCOME or a rejection code. Resync holds
// the encoded frames that rebuild the player's open meetings; the caller
// writes them after the WELCOME and before anything queued on Out.
type AttachResponse struct {
	ConnID  string
	Welcome protocol.WelcomeMsg
	Resync  [][]byte
	Code    string
	Message string
}

func (r AttachResponse) OK() bool { return r.Code == "" && r.ConnID != "" }

// Request is one decoded diplomacy request.
type Request struct {
	Player      model.PlayerID
	ConnID      string
	Type        string
	Counterpart model.PlayerID
	// Clause is set for clause requests only.
	Clause treaty.Clause
}

type RecordKind string

const (
	RecordOpened           RecordKind = "OPENED"
	RecordClauseAdded      RecordKind = "CLAUSE_ADDED"
	RecordClauseRemoved    RecordKind = "CLAUSE_REMOVED"
	RecordAccept           RecordKind = "ACCEPT"
	RecordRejected         RecordKind = "REJECTED"
	RecordFinalized        RecordKind = "FINALIZED"
	RecordFailed           RecordKind = "FAILED"
	RecordCancelled        RecordKind = "CANCELLED"
	RecordEvent            RecordKind = "EVENT"
	RecordCeaseFireExpired RecordKind = "CEASEFIRE_EXPIRED"
	RecordEliminated       RecordKind = "ELIMINATED"
)

// TreatyRecord is one audit entry. Persistence sinks store it as is.
type TreatyRecord struct {
	Time     time.Time      `json:"time"`
	Turn     int            `json:"turn"`
	Kind     RecordKind     `json:"kind"`
	TreatyID string         `json:"treaty_id,omitempty"`
	P0       int            `json:"p0"`
	P1       int            `json:"p1,omitempty"`
	Actor    int            `json:"actor,omitempty"`
	Accepted bool           `json:"accepted,omitempty"`
	Clauses  []ClauseRecord `json:"clauses,omitempty"`
	Code     string         `json:"code,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Event    string         `json:"event,omitempty"`
	Text     string         `json:"text,omitempty"`
}

type ClauseRecord struct {
	Giver   int    `json:"giver"`
	Kind    string `json:"kind"`
	Value   int    `json:"value"`
	Applied bool   `json:"applied,omitempty"`
	Skip    string `json:"skip,omitempty"`
}

// Recorder persists treaty records. Calls come from the session goroutine
// and must not block for long.
type Recorder interface {
	WriteTreaty(TreatyRecord) error
}

// TreatySummary is the admin view of an open treaty.
type TreatySummary struct {
	ID       string         `json:"id"`
	P0       int            `json:"p0"`
	P1       int            `json:"p1"`
	Accept0  bool           `json:"accept0"`
	Accept1  bool           `json:"accept1"`
	State    string         `json:"state"`
	Clauses  []ClauseRecord `json:"clauses"`
	OpenedAt time.Time      `json:"opened_at"`
}

func clauseRecord(c treaty.Clause) ClauseRecord {
	return ClauseRecord{Giver: int(c.From), Kind: string(c.Kind()), Value: treaty.Value(c.Term)}
}

func clauseRecords(cs []treaty.Clause) []ClauseRecord {
	out := make([]ClauseRecord, 0, len(cs))
	for _, c := range cs {
		out = append(out, clauseRecord(c))
	}
	return out
}

func outcomeRecords(outcomes []execution.Outcome) []ClauseRecord {
	out := make([]ClauseRecord, 0, len(outcomes))
	for _, o := range outcomes {
		r := clauseRecord(o.Clause)
		r.Applied = o.Applied
		r.Skip = string(o.Skip)
		out = append(out, r)
	}
	return out
}

func summarize(t *treaty.Treaty) TreatySummary {
	return TreatySummary{
		ID:       t.ID,
		P0:       int(t.P0),
		P1:       int(t.P1),
		Accept0:  t.Accept0,
		Accept1:  t.Accept1,
		State:    string(t.State()),
		Clauses:  clauseRecords(t.Clauses),
		OpenedAt: t.OpenedAt,
	}
}
