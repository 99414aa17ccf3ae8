package transfer

import (
	"sync"
	"time"
)

// Kind distinguishes what a session is moving.
type Kind string

const (
	KindFile Kind = "file"
	KindText Kind = "text"
)

// ItemInfo describes one logical item in a session.
type ItemInfo struct {
	Name string
	Size int64
}

// Session holds the mutable counters for one beam. The engine owns it
// exclusively; everyone else reads snapshots.
type Session struct {
	mu         sync.Mutex
	kind       Kind
	items      []ItemInfo
	totalBytes int64
	bytesMoved int64
	start      time.Time
	pausedAt   time.Time
	paused     bool

	now func() time.Time
}

func newSession() *Session {
	return &Session{now: time.Now}
}

// begin resets the session for a new set of items.
func (s *Session) begin(kind Kind, items []ItemInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.kind = kind
	s.items = items
	s.totalBytes = 0
	for _, it := range items {
		s.totalBytes += it.Size
	}
	s.bytesMoved = 0
	s.start = s.now()
	s.paused = false
}

func (s *Session) addBytes(n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bytesMoved += n
}

// markPaused freezes the session clock.
func (s *Session) markPaused() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.paused {
		return
	}
	s.paused = true
	s.pausedAt = s.now()
}

// markResumed shifts the start-time reference forward by the pause duration
// so speed and ETA only reflect active transfer time.
func (s *Session) markResumed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.paused {
		return
	}
	s.paused = false
	s.start = s.start.Add(s.now().Sub(s.pausedAt))
}

// reset zeroes the counters, e.g. after a cancel.
func (s *Session) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.totalBytes = 0
	s.bytesMoved = 0
	s.paused = false
}

// Snapshot computes a display view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		BytesMoved: s.bytesMoved,
		TotalBytes: s.totalBytes,
		Paused:     s.paused,
	}

	if s.totalBytes > 0 {
		snap.Progress = float64(s.bytesMoved) / float64(s.totalBytes) * 100
		if snap.Progress > 100 {
			snap.Progress = 100
		}
	}

	ref := s.now()
	if s.paused {
		ref = s.pausedAt
	}
	snap.Speed, snap.ETA = computeRates(s.bytesMoved, s.totalBytes, ref.Sub(s.start))

	return snap
}
