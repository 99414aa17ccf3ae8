package relay

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/beamit-app/beamit/internal/signaling"
)

// inbound pairs a parsed message with the client that sent it.
type inbound struct {
	client *Client
	msg    *signaling.Message
}

// Hub is the signaling relay: a per-connection message router built on the
// Registry. A single Run goroutine owns all hub state, so one room's
// transitions never block another's beyond the length of this loop, and no
// lock ordering exists to get wrong.
type Hub struct {
	registry *Registry

	// clients maps peer id to connection.
	clients map[string]*Client

	// Register is the channel for registering new clients.
	Register chan *Client

	// Unregister is the channel for unregistering clients on disconnect.
	Unregister chan *Client

	inbound chan inbound
}

// NewHub creates a hub over the given registry.
func NewHub(registry *Registry) *Hub {
	return &Hub{
		registry:   registry,
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		inbound:    make(chan inbound, 64),
	}
}

// Run starts the hub's main processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client.id] = client
			logrus.WithFields(logrus.Fields{"peer": client.id, "addr": client.addr}).Info("client registered")

		case client := <-h.Unregister:
			h.handleDisconnect(client)

		case in := <-h.inbound:
			switch in.msg.Event {
			case signaling.EventJoinRoom:
				h.handleJoin(in.client, in.msg.Payload)

			case signaling.EventLeaveRoom:
				h.handleLeave(in.client, in.msg.Payload)

			case signaling.EventOffer, signaling.EventAnswer, signaling.EventICECandidate:
				h.relayEnvelope(in.client, in.msg.Event, in.msg.Payload)

			default:
				logrus.WithField("event", in.msg.Event).Debug("unknown message event")
			}
		}
	}
}

// handleJoin normalizes the join payload, consults the registry, and emits
// membership notifications. Failures go back to the caller only.
func (h *Hub) handleJoin(c *Client, payload json.RawMessage) {
	join, err := signaling.DecodeJoin(payload)
	if err != nil {
		h.sendError(c, ErrInvalidCode.Error())
		return
	}

	if _, err := h.registry.Join(c.id, join.RoomID, join.Role); err != nil {
		logrus.WithFields(logrus.Fields{
			"peer": c.id,
			"room": join.RoomID,
			"role": join.Role,
		}).Warnf("join refused: %v", err)
		h.sendError(c, err.Error())
		return
	}

	logrus.WithFields(logrus.Fields{
		"peer": c.id,
		"room": join.RoomID,
		"role": join.Role,
	}).Info("peer joined room")

	others := h.registry.PeersOf(join.RoomID, c.id)

	// Tell everyone already present that this peer arrived, so they can
	// (re)initiate negotiation.
	for _, id := range others {
		h.sendTo(id, signaling.EventUserJoined, c.id)
	}

	// Tell the joiner who was already there.
	if len(others) > 0 {
		h.sendTo(c.id, signaling.EventExistingPeers, others)
	}
}

// handleLeave removes the peer from the room and notifies the remaining
// members. The payload is the bare room code.
func (h *Hub) handleLeave(c *Client, payload json.RawMessage) {
	var roomCode string
	if err := json.Unmarshal(payload, &roomCode); err != nil || roomCode == "" {
		return
	}

	h.registry.Leave(c.id, roomCode)
	logrus.WithFields(logrus.Fields{"peer": c.id, "room": roomCode}).Info("peer left room")

	for _, id := range h.registry.PeersOf(roomCode, c.id) {
		h.sendTo(id, signaling.EventUserLeft, c.id)
	}
}

// relayEnvelope forwards a negotiation envelope to its target, tagging it
// with the sender's identity. The relay is byte-blind: SDP and candidate
// payloads pass through untouched. Malformed envelopes are protocol noise
// and dropped without a reply.
func (h *Hub) relayEnvelope(c *Client, event string, payload json.RawMessage) {
	var env signaling.Envelope
	if err := json.Unmarshal(payload, &env); err != nil || !env.Valid(event) {
		logrus.WithFields(logrus.Fields{"peer": c.id, "event": event}).Debug("dropping malformed envelope")
		return
	}

	out := signaling.Envelope{SDP: env.SDP, Candidate: env.Candidate}
	switch event {
	case signaling.EventOffer:
		out.Caller = c.id
	case signaling.EventAnswer:
		out.Responder = c.id
	case signaling.EventICECandidate:
		out.Sender = c.id
	}

	logrus.WithFields(logrus.Fields{
		"event": event,
		"from":  c.id,
		"to":    env.Target,
	}).Debug("relaying envelope")

	h.sendTo(env.Target, event, out)
}

// handleDisconnect drops the peer from every room and fans out user-left
// notifications per affected room.
func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.clients[c.id]; !ok {
		return
	}

	logrus.WithFields(logrus.Fields{"peer": c.id, "addr": c.addr}).Info("client disconnected")

	for _, roomCode := range h.registry.DropAll(c.id) {
		for _, id := range h.registry.PeersOf(roomCode, c.id) {
			h.sendTo(id, signaling.EventUserLeft, c.id)
		}
	}

	delete(h.clients, c.id)
	close(c.send)
}

// sendTo queues an event for a peer. Unknown targets are a no-op. A peer
// whose send buffer is full is considered dead and dropped, so one stalled
// connection cannot wedge the hub.
func (h *Hub) sendTo(peerID, event string, payload any) {
	c, ok := h.clients[peerID]
	if !ok {
		return
	}

	msg, err := signaling.NewMessage(event, payload)
	if err != nil {
		logrus.Errorf("encode %s: %v", event, err)
		return
	}

	select {
	case c.send <- msg:
	default:
		logrus.WithField("peer", peerID).Warn("send buffer full, dropping client")
		h.handleDisconnect(c)
	}
}

// sendError emits a typed error event to a single peer.
func (h *Hub) sendError(c *Client, message string) {
	h.sendTo(c.id, signaling.EventError, message)
}
