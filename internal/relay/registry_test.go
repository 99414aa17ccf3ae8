package relay

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamit-app/beamit/internal/signaling"
)

func TestJoinCreatesRoomAndCounts(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	count, err := r.Join("peer-a", "123456", signaling.RoleSender)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = r.Join("peer-b", "123456", signaling.RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	assert.Equal(t, []string{"peer-a"}, r.PeersOf("123456", "peer-b"))
}

func TestJoinRejectsMalformedCodes(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	for _, code := range []string{"", "12345", "1234567", "12345a", "abc def", "12 456"} {
		_, err := r.Join("peer-a", code, signaling.RoleSender)
		assert.ErrorIs(t, err, ErrInvalidCode, "code %q", code)
	}
}

func TestJoinRejectsWhenFull(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	_, err := r.Join("peer-a", "123456", signaling.RoleSender)
	require.NoError(t, err)
	_, err = r.Join("peer-b", "123456", signaling.RoleReceiver)
	require.NoError(t, err)

	_, err = r.Join("peer-c", "123456", signaling.RoleReceiver)
	assert.ErrorIs(t, err, ErrRoomFull)

	// The rejected join must not disturb existing membership.
	assert.Equal(t, []string{"peer-a", "peer-b"}, r.PeersOf("123456", ""))
}

func TestReconnectOverlapAdmitsExtraSocket(t *testing.T) {
	r := NewRegistry(RegistryConfig{
		MaxMembers:           2,
		ReconnectOverlap:     1,
		AllowWaitingReceiver: true,
	})

	_, err := r.Join("peer-a", "123456", signaling.RoleSender)
	require.NoError(t, err)
	_, err = r.Join("peer-b", "123456", signaling.RoleReceiver)
	require.NoError(t, err)

	// The reconnecting client's new socket overlaps its dying one.
	count, err := r.Join("peer-b2", "123456", signaling.RoleReceiver)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = r.Join("peer-c", "123456", signaling.RoleReceiver)
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestJoinIdempotentForSamePeer(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	_, err := r.Join("peer-a", "123456", signaling.RoleSender)
	require.NoError(t, err)

	count, err := r.Join("peer-a", "123456", signaling.RoleSender)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWaitingReceiverPolicy(t *testing.T) {
	t.Run("allowed by default", func(t *testing.T) {
		r := NewRegistry(DefaultRegistryConfig())

		count, err := r.Join("peer-b", "654321", signaling.RoleReceiver)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		// The sender arriving later sees the waiting receiver.
		_, err = r.Join("peer-a", "654321", signaling.RoleSender)
		require.NoError(t, err)
		assert.Equal(t, []string{"peer-b"}, r.PeersOf("654321", "peer-a"))
	})

	t.Run("rejected when disabled", func(t *testing.T) {
		r := NewRegistry(RegistryConfig{MaxMembers: 2})

		_, err := r.Join("peer-b", "654321", signaling.RoleReceiver)
		assert.ErrorIs(t, err, ErrRoomNotFound)

		// A sender still creates the room, and the receiver can follow.
		_, err = r.Join("peer-a", "654321", signaling.RoleSender)
		require.NoError(t, err)
		_, err = r.Join("peer-b", "654321", signaling.RoleReceiver)
		require.NoError(t, err)
	})
}

func TestLeaveIdempotentAndGarbageCollects(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	_, err := r.Join("peer-a", "123456", signaling.RoleSender)
	require.NoError(t, err)

	r.Leave("peer-a", "123456")
	r.Leave("peer-a", "123456") // second leave is a no-op
	r.Leave("ghost", "123456")  // unknown peer is a no-op
	r.Leave("peer-a", "999999") // unknown room is a no-op

	// The emptied room was deleted, so its code is reusable at capacity 0.
	count, err := r.Join("peer-z", "123456", signaling.RoleSender)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDropAllReportsEveryRoom(t *testing.T) {
	r := NewRegistry(DefaultRegistryConfig())

	_, err := r.Join("peer-a", "111111", signaling.RoleSender)
	require.NoError(t, err)
	_, err = r.Join("peer-a", "222222", signaling.RoleSender)
	require.NoError(t, err)
	_, err = r.Join("peer-b", "111111", signaling.RoleReceiver)
	require.NoError(t, err)

	codes := r.DropAll("peer-a")
	assert.ElementsMatch(t, []string{"111111", "222222"}, codes)

	assert.Equal(t, []string{"peer-b"}, r.PeersOf("111111", ""))
	assert.Empty(t, r.PeersOf("222222", ""))

	assert.Empty(t, r.DropAll("peer-a"), "second drop is a no-op")
}
