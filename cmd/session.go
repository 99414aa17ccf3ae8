package cmd

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/beamit-app/beamit/internal/config"
	"github.com/beamit-app/beamit/internal/peer"
	"github.com/beamit-app/beamit/internal/signaling"
	"github.com/beamit-app/beamit/internal/transfer"
	"github.com/beamit-app/beamit/internal/ui"
)

// connectTimeout bounds how long we wait for the data channel to open once
// both peers are in the room.
const connectTimeout = 60 * time.Second

// ConnectionContext bundles the signaling pieces every command needs.
type ConnectionContext struct {
	Client  *signaling.Client
	Handler *signaling.Handler
	Config  *config.Config
}

func NewConnectionContext(cfg *config.Config) (*ConnectionContext, error) {
	client := signaling.NewClient(cfg.WebSocketURL)
	if err := client.Connect(); err != nil {
		return nil, transfer.NewError("connect to server", err)
	}

	handler := signaling.NewHandler(client)
	go handler.Start()

	return &ConnectionContext{
		Client:  client,
		Handler: handler,
		Config:  cfg,
	}, nil
}

func (c *ConnectionContext) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

func LoadConfig(opts config.Options) (*config.Config, error) {
	cfg, err := config.Load(opts)
	if err != nil {
		return nil, transfer.NewError("load config", err)
	}
	return cfg, nil
}

// generateRoomCode draws a uniform 6-digit code from a CSPRNG.
func generateRoomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// peerSession glues one negotiation attempt to one transfer engine. The
// engine only exists once the data channel does, so everything that needs it
// waits on WaitOpen first.
type peerSession struct {
	ctx   *ConnectionContext
	neg   *peer.Negotiator
	hooks transfer.Hooks
	opts  transfer.Options

	mu     sync.Mutex
	engine *transfer.Engine

	opened     chan struct{}
	openOnce   sync.Once
	listenDone chan struct{}
	done       chan struct{}
	closeOnce  sync.Once
}

func newPeerSession(ctx *ConnectionContext, initiator bool, opts transfer.Options, hooks transfer.Hooks) (*peerSession, error) {
	s := &peerSession{
		ctx:        ctx,
		hooks:      hooks,
		opts:       opts,
		opened:     make(chan struct{}),
		listenDone: make(chan struct{}),
		done:       make(chan struct{}),
	}

	neg, err := peer.NewNegotiator(ctx.Client, ctx.Config, initiator, s.attachChannel)
	if err != nil {
		return nil, transfer.NewError("create peer connection", err)
	}
	s.neg = neg

	go func() {
		neg.Listen(ctx.Handler, s.done)
		close(s.listenDone)
	}()
	go s.watchTransport(neg.Subscribe())

	return s, nil
}

// watchTransport closes the engine once the connection is gone, so a send
// parked on the pause gate or on backpressure errors out instead of waiting
// for a drain signal that can never come.
func (s *peerSession) watchTransport(states <-chan peer.State) {
	for {
		select {
		case st := <-states:
			if st != peer.StateDisconnected && st != peer.StateFailed {
				continue
			}
		case <-s.listenDone:
		case <-s.done:
			return
		}

		if engine := s.Engine(); engine != nil {
			engine.Close()
		}
		return
	}
}

func (s *peerSession) attachChannel(dc *webrtc.DataChannel) {
	engine := transfer.NewEngine(dc, s.opts, s.hooks)

	s.mu.Lock()
	s.engine = engine
	s.mu.Unlock()

	dc.OnOpen(func() {
		engine.StartHeartbeat()
		s.openOnce.Do(func() { close(s.opened) })
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		engine.Receive(msg.Data, msg.IsString)
	})
}

// Engine returns the transfer engine. Only valid after WaitOpen succeeds.
func (s *peerSession) Engine() *transfer.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// WaitOpen blocks until the data channel opens, the relay reports an error,
// the counterpart leaves, or the timeout passes.
func (s *peerSession) WaitOpen(timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-s.opened:
		return nil
	case errMsg := <-s.ctx.Handler.Error:
		return transfer.WrapError("join room", transfer.ErrSignalingError, errMsg)
	case <-s.listenDone:
		return transfer.NewError("connect to peer", transfer.ErrPeerDisconnected)
	case <-timer.C:
		return transfer.NewError("connect to peer", fmt.Errorf("timed out after %s", timeout))
	}
}

// PeerGone reports when the counterpart has left the room.
func (s *peerSession) PeerGone() <-chan struct{} {
	return s.listenDone
}

func (s *peerSession) Close() {
	s.closeOnce.Do(func() { close(s.done) })

	if engine := s.Engine(); engine != nil {
		engine.Close()
	}
	if err := s.neg.Close(); err != nil {
		fmt.Println(ui.MutedStyle.Render(fmt.Sprintf("teardown: %v", err)))
	}
}

// runControlLoop reads single-letter commands from stdin while a transfer is
// active: p pauses, r resumes, c cancels.
func runControlLoop(engine *transfer.Engine, done <-chan struct{}) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case line := <-lines:
			switch strings.ToLower(line) {
			case "p":
				if err := engine.Pause(); err != nil {
					ui.PrintWarning(err.Error())
				}
			case "r":
				if err := engine.Resume(); err != nil {
					ui.PrintWarning(err.Error())
				}
			case "c":
				if err := engine.Cancel(); err != nil {
					ui.PrintWarning(err.Error())
				}
			}
		case <-done:
			return
		}
	}
}

func printControlHint() {
	fmt.Println(ui.MutedStyle.Render("Controls: p + Enter = pause, r + Enter = resume, c + Enter = cancel"))
}
