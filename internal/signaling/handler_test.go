package signaling

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerRoutesEvents(t *testing.T) {
	client := &Client{incoming: make(chan *Message, 8)}
	h := NewHandler(client)

	joined, err := NewMessage(EventUserJoined, "peer-1")
	require.NoError(t, err)
	offer, err := NewMessage(EventOffer, Envelope{SDP: []byte(`{"type":"offer"}`), Caller: "peer-1"})
	require.NoError(t, err)

	client.incoming <- joined
	client.incoming <- offer
	close(client.incoming)

	h.Start()

	assert.Equal(t, "peer-1", <-h.UserJoined)
	ev := <-h.Offer
	assert.Equal(t, "peer-1", ev.Caller)
}

func TestHandlerNeverBlocksWithoutListener(t *testing.T) {
	client := &Client{incoming: make(chan *Message, 64)}
	h := NewHandler(client)

	// Flood every typed channel well past its buffer with nothing draining,
	// the situation after the negotiator's listen loop has returned.
	for i := 0; i < 20; i++ {
		msg, err := NewMessage(EventUserJoined, fmt.Sprintf("peer-%d", i))
		require.NoError(t, err)
		client.incoming <- msg

		msg, err = NewMessage(EventICECandidate, Envelope{Candidate: []byte(`{}`), Sender: "x"})
		require.NoError(t, err)
		client.incoming <- msg

		msg, err = NewMessage(EventError, "boom")
		require.NoError(t, err)
		client.incoming <- msg
	}
	close(client.incoming)

	done := make(chan struct{})
	go func() {
		h.Start()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler blocked on a full channel with no listener")
	}

	// Whatever fit in the buffers is still delivered; the rest was dropped.
	assert.Equal(t, "peer-0", <-h.UserJoined)
	select {
	case p := <-h.UserJoined:
		t.Fatalf("expected overflow to be dropped, got %q", p)
	default:
	}
}
