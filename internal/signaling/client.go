package signaling

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the signaling relay. It is an
// explicitly owned handle: the negotiator and the session receive it as a
// dependency rather than reaching for shared global state.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *Message
	outgoing  chan *Message
	done      chan struct{}
	closeOnce sync.Once
}

// NewClient creates a new signaling client for the given ws:// or wss:// URL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *Message, 32),
		outgoing:  make(chan *Message, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and starts the pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads messages from the WebSocket connection.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		select {
		case c.incoming <- &msg:
		case <-c.done:
			return
		}
	}
}

// writePump writes messages to the WebSocket connection and sends periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues a message for delivery to the relay.
func (c *Client) Send(msg *Message) {
	select {
	case c.outgoing <- msg:
	case <-c.done:
	}
}

// Incoming returns the channel of messages received from the relay.
func (c *Client) Incoming() <-chan *Message {
	return c.incoming
}

// JoinRoom asks the relay to admit this connection into a room.
func (c *Client) JoinRoom(roomCode string, role Role) error {
	msg, err := NewMessage(EventJoinRoom, JoinPayload{RoomID: roomCode, Role: role})
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}

// LeaveRoom tells the relay this connection is leaving a room.
func (c *Client) LeaveRoom(roomCode string) error {
	msg, err := NewMessage(EventLeaveRoom, roomCode)
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}

// SendOffer relays a session description offer to the target peer.
func (c *Client) SendOffer(target string, sdp []byte) error {
	return c.sendEnvelope(EventOffer, Envelope{Target: target, SDP: sdp})
}

// SendAnswer relays a session description answer to the target peer.
func (c *Client) SendAnswer(target string, sdp []byte) error {
	return c.sendEnvelope(EventAnswer, Envelope{Target: target, SDP: sdp})
}

// SendCandidate relays a locally discovered ICE candidate to the target peer.
func (c *Client) SendCandidate(target string, candidate []byte) error {
	return c.sendEnvelope(EventICECandidate, Envelope{Target: target, Candidate: json.RawMessage(candidate)})
}

func (c *Client) sendEnvelope(event string, env Envelope) error {
	msg, err := NewMessage(event, env)
	if err != nil {
		return err
	}
	c.Send(msg)
	return nil
}

// Close shuts the connection down. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
