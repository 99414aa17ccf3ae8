package signaling

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
)

// OfferEvent is an incoming offer, tagged by the relay with the caller's id.
type OfferEvent struct {
	SDP    json.RawMessage
	Caller string
}

// AnswerEvent is an incoming answer, tagged with the responder's id.
type AnswerEvent struct {
	SDP       json.RawMessage
	Responder string
}

// CandidateEvent is an incoming ICE candidate, tagged with the sender's id.
type CandidateEvent struct {
	Candidate json.RawMessage
	Sender    string
}

// Handler routes incoming relay messages to typed channels.
type Handler struct {
	client *Client

	UserJoined    chan string
	UserLeft      chan string
	ExistingPeers chan []string
	Offer         chan OfferEvent
	Answer        chan AnswerEvent
	Candidate     chan CandidateEvent
	Error         chan string

	closed bool
}

// NewHandler creates a new message handler.
func NewHandler(client *Client) *Handler {
	return &Handler{
		client:        client,
		UserJoined:    make(chan string, 1),
		UserLeft:      make(chan string, 1),
		ExistingPeers: make(chan []string, 1),
		Offer:         make(chan OfferEvent, 4),
		Answer:        make(chan AnswerEvent, 4),
		Candidate:     make(chan CandidateEvent, 32),
		Error:         make(chan string, 1),
	}
}

// Start begins listening to incoming messages and routing them. It returns
// when the underlying connection closes. Routing never blocks: once the
// consumer stops draining (its listen loop ends when the counterpart
// leaves), further events are dropped instead of pinning the read pump.
func (h *Handler) Start() {
	for msg := range h.client.Incoming() {
		switch msg.Event {

		case EventUserJoined:
			var peerID string
			if err := json.Unmarshal(msg.Payload, &peerID); err == nil {
				deliver(h.UserJoined, peerID, msg.Event)
			}

		case EventUserLeft:
			var peerID string
			if err := json.Unmarshal(msg.Payload, &peerID); err == nil {
				deliver(h.UserLeft, peerID, msg.Event)
			}

		case EventExistingPeers:
			var peers []string
			if err := json.Unmarshal(msg.Payload, &peers); err == nil {
				deliver(h.ExistingPeers, peers, msg.Event)
			}

		case EventOffer:
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err == nil {
				deliver(h.Offer, OfferEvent{SDP: env.SDP, Caller: env.Caller}, msg.Event)
			}

		case EventAnswer:
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err == nil {
				deliver(h.Answer, AnswerEvent{SDP: env.SDP, Responder: env.Responder}, msg.Event)
			}

		case EventICECandidate:
			var env Envelope
			if err := json.Unmarshal(msg.Payload, &env); err == nil {
				deliver(h.Candidate, CandidateEvent{Candidate: env.Candidate, Sender: env.Sender}, msg.Event)
			}

		case EventError:
			var errMsg string
			if err := json.Unmarshal(msg.Payload, &errMsg); err != nil {
				errMsg = "unknown error from server"
			}
			deliver(h.Error, errMsg, msg.Event)

		default:
			logrus.WithField("event", msg.Event).Debug("ignoring unknown signaling event")
		}
	}
}

// deliver hands an event to its typed channel without ever blocking the
// read pump; an event nobody is left to consume is dropped.
func deliver[T any](ch chan<- T, v T, event string) {
	select {
	case ch <- v:
	default:
		logrus.WithField("event", event).Debug("dropping signaling event, no listener")
	}
}

// Close closes all handler channels.
func (h *Handler) Close() {
	if h.closed {
		return
	}
	h.closed = true

	close(h.UserJoined)
	close(h.UserLeft)
	close(h.ExistingPeers)
	close(h.Offer)
	close(h.Answer)
	close(h.Candidate)
	close(h.Error)
}
