package relay

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/beamit-app/beamit/internal/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs fit comfortably.
	maxMessageSize = 64 * 1024
)

// Client wraps a single websocket connection (one peer) on the relay side.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// id is the relay-assigned peer identifier, the address other peers
	// target envelopes at.
	id string

	// addr is the source network address, used for logging.
	addr string

	// send is the buffered channel of outbound messages. The hub writes to
	// it; writePump drains it onto the wire.
	send chan *signaling.Message
}

// NewClient wraps an upgraded websocket connection and assigns it a peer id.
func NewClient(hub *Hub, conn *websocket.Conn, addr string) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		id:   uuid.NewString(),
		addr: addr,
		send: make(chan *signaling.Message, 256),
	}
}

// ID returns the relay-assigned peer identifier.
func (c *Client) ID() string { return c.id }

// ReadPump pumps messages from the websocket connection to the hub.
//
// One ReadPump goroutine runs per connection; all reads go through it.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg signaling.Message
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("peer", c.id).Debugf("read error: %v", err)
			}
			break
		}

		c.hub.inbound <- inbound{client: c, msg: &msg}
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// One WritePump goroutine runs per connection; all writes go through it.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logrus.WithField("peer", c.id).Debugf("write error: %v", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
