package session

import (
	"encoding/json"
	"fmt"

	"envoy.ai/internal/protocol"
	"envoy.ai/internal/sim/diplomacy"
	"envoy.ai/internal/sim/model"
)

// RequestError is a frame rejected before it reaches the session.
type RequestError struct {
	Code    string
	Message string
}

func (e *RequestError) Error() string { return e.Code + ": " + e.Message }

func badRequest(format string, args ...any) error {
	return &RequestError{Code: protocol.ErrProtoBadRequest, Message: fmt.Sprintf(format, args...)}
}

// ParseRequest decodes and validates one client frame sent by player on connID.
func ParseRequest(player model.PlayerID, connID string, raw []byte) (Request, error) {
	base, err := protocol.DecodeBase(raw)
	if err != nil {
		return Request{}, badRequest("malformed frame: %v", err)
	}
	if !protocol.IsRequest(base.Type) {
		return Request{}, badRequest("unexpected message type %q", base.Type)
	}
	if base.ProtocolVersion != "" && base.ProtocolVersion != protocol.Version {
		return Request{}, &RequestError{Code: protocol.ErrProtoVersion, Message: "bad protocol_version"}
	}
	if err := protocol.Validate(raw); err != nil {
		return Request{}, badRequest("%s: %v", base.Type, err)
	}

	req := Request{Player: player, ConnID: connID, Type: base.Type}
	switch base.Type {
	case protocol.TypeCreateClauseReq, protocol.TypeRemoveClauseReq:
		var m protocol.ClauseReq
		if err := json.Unmarshal(raw, &m); err != nil {
			return Request{}, badRequest("%s: %v", base.Type, err)
		}
		c, err := diplomacy.ClauseFromRequest(m)
		if err != nil {
			return Request{}, &RequestError{Code: protocol.ErrBadRequest, Message: err.Error()}
		}
		req.Counterpart = model.PlayerID(m.Counterpart)
		req.Clause = c
	default:
		var m protocol.MeetingReq
		if err := json.Unmarshal(raw, &m); err != nil {
			return Request{}, badRequest("%s: %v", base.Type, err)
		}
		req.Counterpart = model.PlayerID(m.Counterpart)
	}
	return req, nil
}
