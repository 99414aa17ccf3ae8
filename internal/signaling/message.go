package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Event names carried between peers and the relay. The relay never inspects
// SDP or ICE semantics; offer/answer/ice-candidate payloads are opaque to it.
const (
	EventJoinRoom      = "join-room"
	EventLeaveRoom     = "leave-room"
	EventOffer         = "offer"
	EventAnswer        = "answer"
	EventICECandidate  = "ice-candidate"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventExistingPeers = "existing-peers"
	EventError         = "error"
)

// Message is the envelope for all websocket traffic in both directions.
type Message struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage wraps a payload value into a Message.
func NewMessage(event string, payload any) (*Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return &Message{Event: event, Payload: raw}, nil
}

// Role declared by a joining peer.
type Role string

const (
	RoleSender   Role = "sender"
	RoleReceiver Role = "receiver"
	RoleUnknown  Role = "unknown"
)

// JoinPayload is the structured join-room payload.
type JoinPayload struct {
	RoomID string `json:"roomId"`
	Role   Role   `json:"role,omitempty"`
}

// DecodeJoin normalizes a join-room payload. It accepts the structured form,
// a legacy bare room-code string, or a bare number (older clients sent the
// code unquoted).
func DecodeJoin(raw json.RawMessage) (JoinPayload, error) {
	var p JoinPayload

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return p, fmt.Errorf("decode join payload: %w", err)
	}

	switch t := v.(type) {
	case string:
		p.RoomID = t
		p.Role = RoleUnknown
	case json.Number:
		p.RoomID = t.String()
		p.Role = RoleUnknown
	case map[string]any:
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("decode join payload: %w", err)
		}
		if p.Role == "" {
			p.Role = RoleUnknown
		}
	default:
		return p, fmt.Errorf("unsupported join payload type %T", v)
	}

	return p, nil
}

// Envelope is a negotiation message relayed between two peers. Inbound
// messages carry Target; the relay strips it and tags the sender identity
// into Caller, Responder or Sender depending on the event.
type Envelope struct {
	Target    string          `json:"target,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Caller    string          `json:"caller,omitempty"`
	Responder string          `json:"responder,omitempty"`
	Sender    string          `json:"sender,omitempty"`
}

// Valid reports whether an inbound envelope has a target and a payload for
// the given event. Invalid envelopes are protocol noise and dropped silently.
func (e *Envelope) Valid(event string) bool {
	if e.Target == "" {
		return false
	}
	switch event {
	case EventOffer, EventAnswer:
		return len(e.SDP) > 0
	case EventICECandidate:
		return len(e.Candidate) > 0
	}
	return false
}
