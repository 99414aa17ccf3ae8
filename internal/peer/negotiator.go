package peer

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"

	"github.com/pion/webrtc/v4"
	"github.com/sirupsen/logrus"

	"github.com/beamit-app/beamit/internal/config"
	"github.com/beamit-app/beamit/internal/signaling"
)

// dataChannelLabel is the single channel both sides agree on.
const dataChannelLabel = "file-transfer"

// SignalSender is the outbound half of the signaling connection the
// negotiator needs. *signaling.Client satisfies it.
type SignalSender interface {
	SendOffer(target string, sdp []byte) error
	SendAnswer(target string, sdp []byte) error
	SendCandidate(target string, candidate []byte) error
}

// Negotiator drives exactly one peer connection attempt from nothing to an
// open data channel. Each room membership owns one instance; tearing it
// down and building a fresh one is how reconnection works.
//
// Collision policy: if an offer arrives while we are not in a stable
// signaling state, the initiator ignores it (its own offer wins) while the
// responder accepts the newest offer. This is deliberately not perfect
// negotiation; the asymmetry is a known limitation.
type Negotiator struct {
	sig       SignalSender
	initiator bool

	mu       sync.Mutex
	pc       *webrtc.PeerConnection
	dc       *webrtc.DataChannel
	remoteID string
	closed   bool

	queue    candidateQueue
	notifier stateNotifier

	// onChannel hands the data channel to the owner (the transfer engine
	// glue) as soon as it exists, before it opens.
	onChannel func(*webrtc.DataChannel)
}

// NewNegotiator builds the peer connection. The initiator creates the data
// channel eagerly so it rides the first offer; the responder waits for the
// channel to arrive with the connection.
func NewNegotiator(sig SignalSender, cfg *config.Config, initiator bool, onChannel func(*webrtc.DataChannel)) (*Negotiator, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: cfg.STUNServers}},
	})
	if err != nil {
		return nil, fmt.Errorf("create peer connection: %w", err)
	}

	n := &Negotiator{
		sig:       sig,
		initiator: initiator,
		pc:        pc,
		onChannel: onChannel,
	}
	n.notifier.state = StateIdle

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		n.mu.Lock()
		target := n.remoteID
		n.mu.Unlock()
		if target == "" {
			return
		}

		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			return
		}
		if err := n.sig.SendCandidate(target, payload); err != nil {
			logrus.Debugf("send candidate: %v", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		logrus.WithField("state", state.String()).Debug("peer connection state")
		// pion fires this from transport goroutines and teardown closes the
		// transport, so react off the callback.
		go n.handleTransportState(state)
	})

	if initiator {
		ordered := true
		dc, err := pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("create data channel: %w", err)
		}
		n.dc = dc
		if n.onChannel != nil {
			n.onChannel(dc)
		}
	} else {
		pc.OnDataChannel(func(dc *webrtc.DataChannel) {
			if dc.Label() != dataChannelLabel {
				return
			}
			n.mu.Lock()
			n.dc = dc
			n.mu.Unlock()
			if n.onChannel != nil {
				n.onChannel(dc)
			}
		})
		n.notifier.set(StateAwaitingOffer)
	}

	return n, nil
}

// State returns the current negotiation state.
func (n *Negotiator) State() State {
	return n.notifier.get()
}

// Subscribe returns a channel of state changes. Slow consumers miss
// intermediate states instead of blocking negotiation.
func (n *Negotiator) Subscribe() <-chan State {
	return n.notifier.subscribe()
}

// RemoteID returns the counterpart's peer id, when known.
func (n *Negotiator) RemoteID() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.remoteID
}

// HandleUserJoined starts the offer exchange once a counterpart appears.
// Only the initiator reacts; it also ignores further joins once a
// counterpart is locked in.
func (n *Negotiator) HandleUserJoined(peerID string) error {
	n.mu.Lock()
	if !n.initiator || n.closed || n.remoteID != "" {
		n.mu.Unlock()
		return nil
	}
	n.remoteID = peerID
	pc := n.pc
	n.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	// Trickle ICE: send the offer immediately, candidates follow on their own.
	sdp, err := json.Marshal(pc.LocalDescription())
	if err != nil {
		return err
	}
	if err := n.sig.SendOffer(peerID, sdp); err != nil {
		return err
	}

	n.notifier.set(StateOffering)
	return nil
}

// HandleOffer applies a remote offer and returns an answer through the
// relay. Queued candidates flush right after the remote description lands.
func (n *Negotiator) HandleOffer(ev signaling.OfferEvent) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	pc := n.pc
	if n.initiator && pc.SignalingState() != webrtc.SignalingStateStable {
		// Offer collision: our own offer takes precedence.
		n.mu.Unlock()
		logrus.Debug("ignoring colliding offer as initiator")
		return nil
	}
	if ev.Caller != "" {
		n.remoteID = ev.Caller
	}
	target := n.remoteID
	n.mu.Unlock()

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(ev.SDP, &desc); err != nil {
		return fmt.Errorf("decode offer: %w", err)
	}

	if err := pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	n.flushCandidates()
	n.notifier.set(StateOfferExchanged)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	sdp, err := json.Marshal(pc.LocalDescription())
	if err != nil {
		return err
	}
	if err := n.sig.SendAnswer(target, sdp); err != nil {
		return err
	}

	n.notifier.set(StateAnswerExchanged)
	n.notifier.set(StateICEGathering)
	return nil
}

// HandleAnswer applies the remote answer. Answers in any state other than
// have-local-offer are stale and ignored.
func (n *Negotiator) HandleAnswer(ev signaling.AnswerEvent) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	pc := n.pc
	n.mu.Unlock()

	if pc.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		logrus.WithField("state", pc.SignalingState().String()).Debug("ignoring unexpected answer")
		return nil
	}

	var desc webrtc.SessionDescription
	if err := json.Unmarshal(ev.SDP, &desc); err != nil {
		return fmt.Errorf("decode answer: %w", err)
	}

	if err := pc.SetRemoteDescription(desc); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	n.flushCandidates()

	n.notifier.set(StateAnswerExchanged)
	n.notifier.set(StateICEGathering)
	return nil
}

// HandleCandidate applies a remote ICE candidate, or queues it when the
// remote description has not been set yet.
func (n *Negotiator) HandleCandidate(ev signaling.CandidateEvent) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(ev.Candidate, &init); err != nil {
		return fmt.Errorf("decode candidate: %w", err)
	}

	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	pc := n.pc
	n.mu.Unlock()

	if pc.RemoteDescription() == nil {
		n.queue.add(init)
		return nil
	}

	if err := pc.AddICECandidate(init); err != nil {
		return fmt.Errorf("add ice candidate: %w", err)
	}
	return nil
}

// flushCandidates applies queued candidates in their original arrival order.
func (n *Negotiator) flushCandidates() {
	for _, init := range n.queue.drain() {
		if err := n.pc.AddICECandidate(init); err != nil {
			logrus.Debugf("apply queued candidate: %v", err)
		}
	}
}

// handleTransportState maps pion transport states onto negotiation states.
// A dead transport tears the attempt down, the same as the counterpart
// leaving, so nothing keeps waiting on a connection that cannot recover.
func (n *Negotiator) handleTransportState(state webrtc.PeerConnectionState) {
	switch state {
	case webrtc.PeerConnectionStateConnected:
		n.notifier.set(StateConnected)
		n.classifyLocal()
	case webrtc.PeerConnectionStateDisconnected:
		n.teardown()
		n.notifier.set(StateDisconnected)
	case webrtc.PeerConnectionStateFailed:
		n.teardown()
		n.notifier.set(StateFailed)
	}
}

// HandlePeerLeft tears down the attempt when the counterpart leaves the
// room. The owner decides whether to re-join; there is no auto-reconnect.
func (n *Negotiator) HandlePeerLeft() {
	n.teardown()
	n.notifier.set(StateDisconnected)
}

// Close releases the transport resources. It is idempotent and safe to call
// from any state, including when already idle.
func (n *Negotiator) Close() error {
	err := n.teardown()
	n.notifier.set(StateIdle)
	return err
}

func (n *Negotiator) teardown() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		return nil
	}
	n.closed = true

	n.queue.drain()

	var err error
	if n.dc != nil {
		err = n.dc.Close()
	}
	if n.pc != nil {
		if cerr := n.pc.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Listen wires handler events into the negotiator until done closes or the
// counterpart leaves.
func (n *Negotiator) Listen(h *signaling.Handler, done <-chan struct{}) {
	for {
		select {
		case peerID := <-h.UserJoined:
			if err := n.HandleUserJoined(peerID); err != nil {
				logrus.Warnf("handle user joined: %v", err)
			}

		case peers := <-h.ExistingPeers:
			// A counterpart was waiting in the room before we arrived.
			if len(peers) > 0 {
				if err := n.HandleUserJoined(peers[0]); err != nil {
					logrus.Warnf("handle existing peer: %v", err)
				}
			}

		case ev := <-h.Offer:
			if err := n.HandleOffer(ev); err != nil {
				logrus.Warnf("handle offer: %v", err)
			}

		case ev := <-h.Answer:
			if err := n.HandleAnswer(ev); err != nil {
				logrus.Warnf("handle answer: %v", err)
			}

		case ev := <-h.Candidate:
			if err := n.HandleCandidate(ev); err != nil {
				logrus.Debugf("handle candidate: %v", err)
			}

		case <-h.UserLeft:
			n.HandlePeerLeft()
			return

		case <-done:
			return
		}
	}
}

// classifyLocal inspects post-connection statistics and upgrades the state
// to LocalConnected when the remote candidate is a host or private-range
// address. Purely informational for the UI.
func (n *Negotiator) classifyLocal() {
	n.mu.Lock()
	pc := n.pc
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return
	}

	for _, s := range pc.GetStats() {
		cs, ok := s.(webrtc.ICECandidateStats)
		if !ok || cs.Type != webrtc.StatsTypeRemoteCandidate {
			continue
		}
		if cs.CandidateType == webrtc.ICECandidateTypeHost || isPrivateAddr(cs.IP) {
			n.notifier.set(StateLocalConnected)
			return
		}
	}
}

func isPrivateAddr(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	return ip.IsPrivate() || ip.IsLoopback()
}
