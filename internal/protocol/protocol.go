package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	TypeHello   = "HELLO"
	TypeWelcome = "WELCOME"
	TypeError   = "ERROR"
	TypeNotify  = "NOTIFY"

	TypePlayerInfo = "PLAYER_INFO"

	// client -> server
	TypeInitMeetingReq   = "DIPL_INIT_MEETING_REQ"
	TypeCancelMeetingReq = "DIPL_CANCEL_MEETING_REQ"
	TypeCreateClauseReq  = "DIPL_CREATE_CLAUSE_REQ"
	TypeRemoveClauseReq  = "DIPL_REMOVE_CLAUSE_REQ"
	TypeAcceptTreatyReq  = "DIPL_ACCEPT_TREATY_REQ"

	// server -> client
	TypeInitMeeting   = "DIPL_INIT_MEETING"
	TypeCancelMeeting = "DIPL_CANCEL_MEETING"
	TypeCreateClause  = "DIPL_CREATE_CLAUSE"
	TypeRemoveClause  = "DIPL_REMOVE_CLAUSE"
	TypeAcceptTreaty  = "DIPL_ACCEPT_TREATY"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// IsRequest reports whether typ is a diplomacy request a client may send
// after the handshake.
func IsRequest(typ string) bool {
	switch typ {
	case TypeInitMeetingReq, TypeCancelMeetingReq, TypeCreateClauseReq, TypeRemoveClauseReq, TypeAcceptTreatyReq:
		return true
	}
	return false
}
