package peer

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
)

func TestStateConnected(t *testing.T) {
	assert.True(t, StateConnected.Connected())
	assert.True(t, StateLocalConnected.Connected())
	assert.False(t, StateOffering.Connected())
	assert.False(t, StateDisconnected.Connected())
}

func TestNotifierSkipsDuplicatesAndNeverBlocks(t *testing.T) {
	var n stateNotifier

	sub := n.subscribe()

	n.set(StateOffering)
	n.set(StateOffering) // duplicate, no second event
	n.set(StateConnected)

	assert.Equal(t, StateOffering, <-sub)
	assert.Equal(t, StateConnected, <-sub)
	select {
	case s := <-sub:
		t.Fatalf("unexpected extra state %v", s)
	default:
	}

	// Saturate a subscriber; set must not block and state stays current.
	for i := 0; i < 100; i++ {
		if i%2 == 0 {
			n.set(StateDisconnected)
		} else {
			n.set(StateConnected)
		}
	}
	assert.Equal(t, StateConnected, n.get())
}

func TestCandidateQueuePreservesOrder(t *testing.T) {
	var q candidateQueue

	mids := []string{"a", "b", "c"}
	for i := range mids {
		mid := mids[i]
		q.add(webrtc.ICECandidateInit{SDPMid: &mid})
	}
	assert.Equal(t, 3, q.len())

	drained := q.drain()
	assert.Zero(t, q.len())
	for i, c := range drained {
		assert.Equal(t, mids[i], *c.SDPMid)
	}

	assert.Empty(t, q.drain(), "second drain is empty")
}

func TestIsPrivateAddr(t *testing.T) {
	assert.True(t, isPrivateAddr("192.168.1.20"))
	assert.True(t, isPrivateAddr("10.4.0.9"))
	assert.True(t, isPrivateAddr("127.0.0.1"))
	assert.False(t, isPrivateAddr("203.0.113.7"))
	assert.False(t, isPrivateAddr("not-an-ip"))
}
