package protocol

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	PlayerID        int    `json:"player_id"`
	Token           string `json:"token,omitempty"`
	ClientName      string `json:"client_name,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	SessionID       string `json:"session_id"`
	PlayerID        int    `json:"player_id"`
	PlayerName      string `json:"player_name"`
	Turn            int    `json:"turn"`
	ScenarioDigest  string `json:"scenario_digest,omitempty"`
}

// ERROR (server -> client) reports a rejected handshake or malformed frame.
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// MeetingReq is shared by DIPL_INIT_MEETING_REQ, DIPL_CANCEL_MEETING_REQ and
// DIPL_ACCEPT_TREATY_REQ.
type MeetingReq struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Counterpart     int    `json:"counterpart"`
}

// ClauseReq is shared by DIPL_CREATE_CLAUSE_REQ and DIPL_REMOVE_CLAUSE_REQ.
type ClauseReq struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	Counterpart     int    `json:"counterpart"`
	Giver           int    `json:"giver"`
	Kind            string `json:"kind"`
	Value           int    `json:"value"`
}

// MeetingMsg is shared by DIPL_INIT_MEETING and DIPL_CANCEL_MEETING.
// Counterpart is the other participant from the receiver's point of view.
type MeetingMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Counterpart     int    `json:"counterpart"`
	InitiatedFrom   int    `json:"initiated_from"`
}

// ClauseMsg is shared by DIPL_CREATE_CLAUSE and DIPL_REMOVE_CLAUSE.
type ClauseMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Counterpart     int    `json:"counterpart"`
	Giver           int    `json:"giver"`
	Kind            string `json:"kind"`
	Value           int    `json:"value"`
}

// AcceptMsg carries both accept flags, the receiver's own flag first.
type AcceptMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Counterpart     int    `json:"counterpart"`
	SelfAccepted    bool   `json:"self_accepted"`
	OtherAccepted   bool   `json:"other_accepted"`
}

// NOTIFY (server -> client) is a human-readable notice.
type NotifyMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Event           string `json:"event"`
	Text            string `json:"text"`
	Pos             *Pos   `json:"pos,omitempty"`
}

type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// PLAYER_INFO (server -> client) is a player's public state after a treaty.
type PlayerInfoMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	PlayerID        int            `json:"player_id"`
	Name            string         `json:"name"`
	Nation          string         `json:"nation"`
	Alive           bool           `json:"alive"`
	Gold            int            `json:"gold"`
	Team            int            `json:"team,omitempty"`
	Techs           []int          `json:"techs"`
	Researching     int            `json:"researching,omitempty"`
	TechGoal        int            `json:"tech_goal,omitempty"`
	Bulbs           int            `json:"bulbs"`
	Cities          []int          `json:"cities"`
	Relations       []RelationInfo `json:"relations"`
}

type RelationInfo struct {
	PlayerID     int    `json:"player_id"`
	State        string `json:"state"`
	TurnsLeft    int    `json:"turns_left,omitempty"`
	HasEmbassy   bool   `json:"has_embassy,omitempty"`
	SharedVision bool   `json:"shared_vision,omitempty"`
}
