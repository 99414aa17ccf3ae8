package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beamit-app/beamit/internal/relay"
	"github.com/beamit-app/beamit/internal/signaling"
)

func newTestServer(t *testing.T, cfg relay.RegistryConfig, limit int) *httptest.Server {
	t.Helper()

	hub := relay.NewHub(relay.NewRegistry(cfg))
	go hub.Run()

	limiter := relay.NewRateLimiter(time.Minute, limit)
	srv := httptest.NewServer(NewMux(hub, limiter))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	msg, err := signaling.NewMessage(event, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func readMessage(t *testing.T, conn *websocket.Conn) *signaling.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg signaling.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return &msg
}

func decodeString(t *testing.T, raw json.RawMessage) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(raw, &s))
	return s
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "healthy")
}

func TestJoinFlowNotifiesBothSides(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	sender := dial(t, srv)
	send(t, sender, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleSender})

	receiver := dial(t, srv)
	send(t, receiver, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleReceiver})

	// The peer already in the room learns about the newcomer.
	joined := readMessage(t, sender)
	assert.Equal(t, signaling.EventUserJoined, joined.Event)
	newcomerID := decodeString(t, joined.Payload)
	assert.NotEmpty(t, newcomerID)

	// The newcomer learns who was waiting.
	existing := readMessage(t, receiver)
	assert.Equal(t, signaling.EventExistingPeers, existing.Event)
	var peers []string
	require.NoError(t, json.Unmarshal(existing.Payload, &peers))
	assert.Len(t, peers, 1)
	assert.NotEqual(t, newcomerID, peers[0])
}

func TestThirdJoinRejected(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	first := dial(t, srv)
	send(t, first, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleSender})
	second := dial(t, srv)
	send(t, second, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleReceiver})
	readMessage(t, first)  // user-joined
	readMessage(t, second) // existing-peers

	third := dial(t, srv)
	send(t, third, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleReceiver})

	errMsg := readMessage(t, third)
	assert.Equal(t, signaling.EventError, errMsg.Event)
	assert.Equal(t, "Room is full", decodeString(t, errMsg.Payload))
}

func TestInvalidRoomCodeRejected(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	conn := dial(t, srv)
	send(t, conn, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "12ab56", Role: signaling.RoleSender})

	errMsg := readMessage(t, conn)
	assert.Equal(t, signaling.EventError, errMsg.Event)
	assert.Equal(t, "Invalid Room ID format", decodeString(t, errMsg.Payload))
}

func TestLegacyBareCodeJoinAccepted(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	legacy := dial(t, srv)
	send(t, legacy, signaling.EventJoinRoom, "123456")

	modern := dial(t, srv)
	send(t, modern, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleReceiver})

	joined := readMessage(t, legacy)
	assert.Equal(t, signaling.EventUserJoined, joined.Event)
}

func TestEnvelopeRelayTagsIdentity(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	sender := dial(t, srv)
	send(t, sender, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleSender})

	receiver := dial(t, srv)
	send(t, receiver, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleReceiver})

	joined := readMessage(t, sender)
	receiverID := decodeString(t, joined.Payload)

	existing := readMessage(t, receiver)
	var peers []string
	require.NoError(t, json.Unmarshal(existing.Payload, &peers))
	senderID := peers[0]

	// Offer travels sender -> receiver, tagged with the caller's identity.
	offerSDP := json.RawMessage(`{"type":"offer","sdp":"v=0..."}`)
	send(t, sender, signaling.EventOffer, signaling.Envelope{Target: receiverID, SDP: offerSDP})

	got := readMessage(t, receiver)
	assert.Equal(t, signaling.EventOffer, got.Event)
	var env signaling.Envelope
	require.NoError(t, json.Unmarshal(got.Payload, &env))
	assert.Equal(t, senderID, env.Caller)
	assert.JSONEq(t, string(offerSDP), string(env.SDP))
	assert.Empty(t, env.Target, "relay strips the routing field")

	// Answer travels back, tagged with the responder.
	answerSDP := json.RawMessage(`{"type":"answer","sdp":"v=0..."}`)
	send(t, receiver, signaling.EventAnswer, signaling.Envelope{Target: senderID, SDP: answerSDP})

	got = readMessage(t, sender)
	assert.Equal(t, signaling.EventAnswer, got.Event)
	env = signaling.Envelope{}
	require.NoError(t, json.Unmarshal(got.Payload, &env))
	assert.Equal(t, receiverID, env.Responder)

	// Candidates are tagged with the generic sender field.
	cand := json.RawMessage(`{"candidate":"candidate:1 1 udp 2122252543 192.0.2.1 54321 typ host"}`)
	send(t, sender, signaling.EventICECandidate, signaling.Envelope{Target: receiverID, Candidate: cand})

	got = readMessage(t, receiver)
	assert.Equal(t, signaling.EventICECandidate, got.Event)
	env = signaling.Envelope{}
	require.NoError(t, json.Unmarshal(got.Payload, &env))
	assert.Equal(t, senderID, env.Sender)
	assert.JSONEq(t, string(cand), string(env.Candidate))
}

func TestMalformedEnvelopeDroppedSilently(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	sender := dial(t, srv)
	send(t, sender, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleSender})

	receiver := dial(t, srv)
	send(t, receiver, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "123456", Role: signaling.RoleReceiver})

	joined := readMessage(t, sender)
	receiverID := decodeString(t, joined.Payload)
	readMessage(t, receiver) // existing-peers

	// No target: dropped without a reply or a disconnect.
	send(t, sender, signaling.EventOffer, signaling.Envelope{SDP: json.RawMessage(`{"type":"offer"}`)})
	// No SDP: same.
	send(t, sender, signaling.EventOffer, signaling.Envelope{Target: receiverID})

	// The connection survives: a valid envelope still goes through.
	send(t, sender, signaling.EventOffer, signaling.Envelope{Target: receiverID, SDP: json.RawMessage(`{"type":"offer"}`)})

	got := readMessage(t, receiver)
	assert.Equal(t, signaling.EventOffer, got.Event)
}

func TestLeaveAndDisconnectNotifyPeers(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 100)

	t.Run("explicit leave", func(t *testing.T) {
		a := dial(t, srv)
		send(t, a, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "111111", Role: signaling.RoleSender})
		b := dial(t, srv)
		send(t, b, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "111111", Role: signaling.RoleReceiver})

		joined := readMessage(t, a)
		bID := decodeString(t, joined.Payload)
		readMessage(t, b)

		send(t, b, signaling.EventLeaveRoom, "111111")

		left := readMessage(t, a)
		assert.Equal(t, signaling.EventUserLeft, left.Event)
		assert.Equal(t, bID, decodeString(t, left.Payload))
	})

	t.Run("transport drop", func(t *testing.T) {
		a := dial(t, srv)
		send(t, a, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "222222", Role: signaling.RoleSender})
		b := dial(t, srv)
		send(t, b, signaling.EventJoinRoom, signaling.JoinPayload{RoomID: "222222", Role: signaling.RoleReceiver})

		joined := readMessage(t, a)
		bID := decodeString(t, joined.Payload)
		readMessage(t, b)

		b.Close()

		left := readMessage(t, a)
		assert.Equal(t, signaling.EventUserLeft, left.Event)
		assert.Equal(t, bID, decodeString(t, left.Payload))
	})
}

func TestConnectionRateLimit(t *testing.T) {
	srv := newTestServer(t, relay.DefaultRegistryConfig(), 2)

	dial(t, srv)
	dial(t, srv)

	// All test connections share 127.0.0.1, so the third attempt is over
	// the limit and refused before the upgrade.
	resp, err := http.Get(srv.URL + "/ws")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestClientAddrHonorsForwardedFor(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.RemoteAddr = "192.0.2.10:4242"
	assert.Equal(t, "192.0.2.10", clientAddr(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", clientAddr(r))
}
