package server

import (
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/beamit-app/beamit/internal/relay"
)

// Configure the websocket upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024, // 64 KB
	WriteBufferSize: 64 * 1024, // 64 KB

	// In production you'd check r.Header.Get("Origin") against your
	// frontend's domain.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewMux builds the relay's HTTP routes. Split out so tests can mount it on
// an httptest.Server.
func NewMux(hub *relay.Hub, limiter *relay.RateLimiter) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/ws", ServeWs(hub, limiter))
	return mux
}

// HealthHandler reports process liveness.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling relay is healthy."))
}

// ServeWs returns an http.HandlerFunc that rate-limits and upgrades
// websocket requests, then hands the connection to the hub.
func ServeWs(hub *relay.Hub, limiter *relay.RateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		addr := clientAddr(r)

		if !limiter.Allow(addr) {
			logrus.WithField("addr", addr).Warn("connection rate limit exceeded")
			http.Error(w, "Too many connection attempts. Please try again later.", http.StatusTooManyRequests)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logrus.Debugf("failed to upgrade connection: %v", err)
			return
		}

		client := relay.NewClient(hub, conn, addr)
		hub.Register <- client

		// Start the client's read and write pumps; they own the
		// connection's lifecycle from here.
		go client.WritePump()
		go client.ReadPump()
	}
}

// clientAddr extracts the source address for rate limiting, honoring the
// first X-Forwarded-For hop when the relay sits behind a proxy.
func clientAddr(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
