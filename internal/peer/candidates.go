package peer

import (
	"sync"

	"github.com/pion/webrtc/v4"
)

// candidateQueue buffers remote ICE candidates that arrive before the remote
// description has been applied. Applying a candidate without a remote
// description is invalid, so they wait here and drain in arrival order.
type candidateQueue struct {
	mu      sync.Mutex
	pending []webrtc.ICECandidateInit
}

func (q *candidateQueue) add(c webrtc.ICECandidateInit) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, c)
}

// drain returns the queued candidates in arrival order and empties the queue.
func (q *candidateQueue) drain() []webrtc.ICECandidateInit {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.pending
	q.pending = nil
	return out
}

func (q *candidateQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
