package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default configuration values (production)
const (
	DefaultDomain = "beamit.app"
	DefaultSTUN   = "stun:stun.l.google.com:19302"
	DefaultSTUN2  = "stun:stun1.l.google.com:19302"
)

// Config holds client-side application configuration.
type Config struct {
	// Domain is the backend server domain
	Domain string

	// WebSocketURL is constructed from domain
	WebSocketURL string

	// STUN servers for WebRTC (no TURN fallback by design)
	STUNServers []string
}

// Options for loading config with CLI flag overrides
type Options struct {
	Domain     string
	STUNServer string
	ServerURL  string
}

// Load reads client configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	domain := opts.Domain
	if domain == "" {
		domain = os.Getenv("BEAMIT_DOMAIN")
	}
	if domain == "" {
		domain = DefaultDomain
	}

	stun := opts.STUNServer
	if stun == "" {
		stun = os.Getenv("BEAMIT_STUN_SERVER")
	}

	stunServers := []string{DefaultSTUN, DefaultSTUN2}
	if stun != "" {
		stunServers = []string{stun}
	}

	wsURL := opts.ServerURL
	if wsURL == "" {
		wsURL = os.Getenv("BEAMIT_SERVER_URL")
	}
	if wsURL == "" {
		wsURL = fmt.Sprintf("wss://%s/ws", domain)
	}

	return &Config{
		Domain:       domain,
		WebSocketURL: wsURL,
		STUNServers:  stunServers,
	}, nil
}

// GetRoomLink returns the webapp URL embedding a room code.
func (c *Config) GetRoomLink(roomCode string) string {
	return fmt.Sprintf("https://%s/?room=%s", c.Domain, roomCode)
}

// ServerConfig holds relay server configuration.
type ServerConfig struct {
	Addr string

	// Connection rate limiting, per source address.
	RateLimitWindow time.Duration
	RateLimitMax    int

	// Room policy. MaxMembers is the number of concurrently active peers a
	// room admits. ReconnectOverlap adds slots to absorb a brief overlap
	// while a mobile client reconnects (set to 1 to tolerate 3 sockets).
	MaxMembers           int
	ReconnectOverlap     int
	AllowWaitingReceiver bool
}

// LoadServer reads relay configuration from the environment.
func LoadServer() *ServerConfig {
	cfg := &ServerConfig{
		Addr:                 ":8080",
		RateLimitWindow:      time.Minute,
		RateLimitMax:         30,
		MaxMembers:           2,
		ReconnectOverlap:     0,
		AllowWaitingReceiver: true,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Addr = ":" + port
	}
	if v := envInt("BEAMIT_RATE_LIMIT_MAX"); v > 0 {
		cfg.RateLimitMax = v
	}
	if v := envInt("BEAMIT_RATE_LIMIT_WINDOW_SECONDS"); v > 0 {
		cfg.RateLimitWindow = time.Duration(v) * time.Second
	}
	if v := envInt("BEAMIT_ROOM_CAPACITY"); v > 0 {
		cfg.MaxMembers = v
	}
	if v := envInt("BEAMIT_RECONNECT_OVERLAP"); v > 0 {
		cfg.ReconnectOverlap = v
	}
	if v := os.Getenv("BEAMIT_REJECT_WAITING_RECEIVER"); v == "1" || v == "true" {
		cfg.AllowWaitingReceiver = false
	}

	return cfg
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
