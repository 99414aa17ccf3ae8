package relay

import (
	"errors"
	"regexp"
	"sync"

	"github.com/beamit-app/beamit/internal/signaling"
)

// Registry errors. The messages double as the error event payloads sent to
// the rejected joiner, so they keep the exact wording clients display.
var (
	ErrInvalidCode  = errors.New("Invalid Room ID format")
	ErrRoomFull     = errors.New("Room is full")
	ErrRoomNotFound = errors.New("Room not found")
)

var roomCodePattern = regexp.MustCompile(`^\d{6}$`)

// RegistryConfig controls room admission policy.
type RegistryConfig struct {
	// MaxMembers is the number of concurrently active peers per room.
	MaxMembers int

	// ReconnectOverlap adds admission slots on top of MaxMembers to absorb
	// the brief overlap while a client reconnects. Zero disables it.
	ReconnectOverlap int

	// AllowWaitingReceiver admits a receiver into a room nobody has created
	// yet, so it can wait for the sender. When false such joins fail with
	// ErrRoomNotFound.
	AllowWaitingReceiver bool
}

// DefaultRegistryConfig matches the documented room contract: two peers per
// room, receivers may wait for a sender.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		MaxMembers:           2,
		AllowWaitingReceiver: true,
	}
}

type member struct {
	id   string
	role signaling.Role
}

// Registry is the authoritative membership table for all rooms. It is a pure
// state table: it never touches the network, and every operation is
// serialized under one lock so admission checks and inserts are atomic.
type Registry struct {
	mu     sync.Mutex
	cfg    RegistryConfig
	rooms  map[string][]member            // room code -> members in join order
	byPeer map[string]map[string]struct{} // peer id -> room codes
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.MaxMembers <= 0 {
		cfg.MaxMembers = 2
	}
	return &Registry{
		cfg:    cfg,
		rooms:  make(map[string][]member),
		byPeer: make(map[string]map[string]struct{}),
	}
}

// Join admits a peer into a room, creating the room on first join. It
// returns the member count after the join. Joining a room the peer is
// already in is a no-op.
func (r *Registry) Join(peerID, roomCode string, role signaling.Role) (int, error) {
	if !roomCodePattern.MatchString(roomCode) {
		return 0, ErrInvalidCode
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	members, exists := r.rooms[roomCode]

	if !exists && role == signaling.RoleReceiver && !r.cfg.AllowWaitingReceiver {
		return 0, ErrRoomNotFound
	}

	for _, m := range members {
		if m.id == peerID {
			return len(members), nil
		}
	}

	if len(members) >= r.cfg.MaxMembers+r.cfg.ReconnectOverlap {
		return 0, ErrRoomFull
	}

	r.rooms[roomCode] = append(members, member{id: peerID, role: role})
	if r.byPeer[peerID] == nil {
		r.byPeer[peerID] = make(map[string]struct{})
	}
	r.byPeer[peerID][roomCode] = struct{}{}

	return len(r.rooms[roomCode]), nil
}

// Leave removes a peer from a room. It is idempotent: unknown peers and
// rooms are a no-op. Empty rooms are garbage-collected.
func (r *Registry) Leave(peerID, roomCode string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(peerID, roomCode)
}

func (r *Registry) leaveLocked(peerID, roomCode string) {
	members, ok := r.rooms[roomCode]
	if !ok {
		return
	}

	for i, m := range members {
		if m.id == peerID {
			r.rooms[roomCode] = append(members[:i], members[i+1:]...)
			break
		}
	}

	if len(r.rooms[roomCode]) == 0 {
		delete(r.rooms, roomCode)
	}

	if codes, ok := r.byPeer[peerID]; ok {
		delete(codes, roomCode)
		if len(codes) == 0 {
			delete(r.byPeer, peerID)
		}
	}
}

// PeersOf returns the ids of the room's members excluding the given peer,
// in join order.
func (r *Registry) PeersOf(roomCode, except string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var peers []string
	for _, m := range r.rooms[roomCode] {
		if m.id != except {
			peers = append(peers, m.id)
		}
	}
	return peers
}

// DropAll removes a peer from every room it belongs to and returns the
// affected room codes, so membership-change notifications can be emitted
// for each. Called on transport disconnect.
func (r *Registry) DropAll(peerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var codes []string
	for code := range r.byPeer[peerID] {
		codes = append(codes, code)
	}
	for _, code := range codes {
		r.leaveLocked(peerID, code)
	}
	return codes
}
