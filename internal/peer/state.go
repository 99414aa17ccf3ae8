package peer

import "sync"

// State is the negotiation state of one connection attempt. The UI layer
// consumes these values directly; there is no string matching anywhere.
type State int

const (
	// StateIdle means no attempt is in flight; safe starting point and the
	// result of teardown.
	StateIdle State = iota

	// StateOffering: initiator has produced and sent its offer.
	StateOffering

	// StateAwaitingOffer: responder is waiting for the initiator's offer.
	StateAwaitingOffer

	// StateOfferExchanged: the remote offer has been applied.
	StateOfferExchanged

	// StateAnswerExchanged: the answer has been applied on both sides.
	StateAnswerExchanged

	// StateICEGathering: trickle candidates are flowing.
	StateICEGathering

	// StateConnected: the data channel transport is up.
	StateConnected

	// StateLocalConnected: connected, and the remote candidate is a host or
	// private-range address. Display-only refinement of StateConnected.
	StateLocalConnected

	// StateDisconnected: the attempt ended; the owner may start a fresh one.
	StateDisconnected

	// StateFailed: ICE or transport failure ended the attempt.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOffering:
		return "offering"
	case StateAwaitingOffer:
		return "awaiting-offer"
	case StateOfferExchanged:
		return "offer-exchanged"
	case StateAnswerExchanged:
		return "answer-exchanged"
	case StateICEGathering:
		return "ice-gathering"
	case StateConnected:
		return "connected"
	case StateLocalConnected:
		return "local-connected"
	case StateDisconnected:
		return "disconnected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connected reports whether the attempt has an open transport.
func (s State) Connected() bool {
	return s == StateConnected || s == StateLocalConnected
}

// stateNotifier fans out state changes to subscribers. Slow subscribers lose
// intermediate states rather than blocking the negotiator.
type stateNotifier struct {
	mu    sync.Mutex
	state State
	subs  []chan State
}

func (n *stateNotifier) set(s State) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.state == s {
		return
	}
	n.state = s

	for _, ch := range n.subs {
		select {
		case ch <- s:
		default:
		}
	}
}

func (n *stateNotifier) get() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.state
}

func (n *stateNotifier) subscribe() <-chan State {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan State, 16)
	n.subs = append(n.subs, ch)
	return ch
}
