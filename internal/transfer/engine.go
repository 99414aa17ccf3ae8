package transfer

import (
	"bytes"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Tunables. Chunks are a few hundred kilobytes; the water marks bound the
// channel's outbound buffer so a fast disk can't balloon memory while the
// network catches up.
const (
	DefaultChunkSize         = 256 * 1024
	DefaultHighWaterMark     = 1024 * 1024
	DefaultLowWaterMark      = 512 * 1024
	DefaultStatsEvery        = 8
	DefaultHeartbeatInterval = 10 * time.Second
)

// Channel is the ordered, reliable byte-stream the engine moves frames
// over. *webrtc.DataChannel satisfies it directly; tests use an in-memory
// implementation.
type Channel interface {
	Send(data []byte) error
	SendText(s string) error
	BufferedAmount() uint64
	SetBufferedAmountLowThreshold(th uint64)
	OnBufferedAmountLow(f func())
}

// Options tune one engine instance. Zero values take defaults.
type Options struct {
	ChunkSize     int
	HighWaterMark uint64
	LowWaterMark  uint64

	// StatsEvery recomputes progress statistics every Nth chunk rather than
	// on every chunk; completion always recomputes so final figures are
	// exact.
	StatsEvery int

	HeartbeatInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.HighWaterMark == 0 {
		o.HighWaterMark = DefaultHighWaterMark
	}
	if o.LowWaterMark == 0 {
		o.LowWaterMark = DefaultLowWaterMark
	}
	if o.StatsEvery <= 0 {
		o.StatsEvery = DefaultStatsEvery
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return o
}

// Hooks are how the engine talks to its UI collaborator. All are optional.
type Hooks struct {
	// OnFile delivers a fully reassembled incoming item.
	OnFile func(name string, data []byte)

	// OnText delivers an incoming text beam.
	OnText func(content string)

	// OnProgress receives sampled and completion snapshots.
	OnProgress func(Snapshot)

	// OnPeerAction reports pause/resume/cancel signals from the remote
	// side, for display only.
	OnPeerAction func(ControlAction)
}

// Item is one logical file to send.
type Item struct {
	Name string
	Size int64
	Data io.Reader
}

// Engine moves items across an open channel with flow control and
// cooperative pause/cancel. One engine serves one data channel; its session
// counters are owned here exclusively and exposed only as snapshots.
type Engine struct {
	ch      Channel
	opts    Options
	hooks   Hooks
	session *Session

	mu        sync.Mutex
	sending   bool
	paused    bool
	resumec   chan struct{}
	cancelc   chan struct{}
	cancelled bool
	closed    bool

	// drained is pulsed by the channel's buffered-amount-low callback.
	drained chan struct{}

	recvMu     sync.Mutex
	recvMeta   *ItemInfo
	recvBuf    bytes.Buffer
	recvChunks int

	hbStop    chan struct{}
	closeOnce sync.Once
}

// NewEngine wires an engine onto an established channel.
func NewEngine(ch Channel, opts Options, hooks Hooks) *Engine {
	e := &Engine{
		ch:      ch,
		opts:    opts.withDefaults(),
		hooks:   hooks,
		session: newSession(),
		cancelc: make(chan struct{}),
		drained: make(chan struct{}, 1),
		hbStop:  make(chan struct{}),
	}

	ch.SetBufferedAmountLowThreshold(e.opts.LowWaterMark)
	ch.OnBufferedAmountLow(func() {
		select {
		case e.drained <- struct{}{}:
		default:
		}
	})

	return e
}

// Snapshot returns a read-only view of the current session.
func (e *Engine) Snapshot() Snapshot {
	return e.session.Snapshot()
}

// SendFiles streams the items sequentially: one metadata frame, then the
// item's bytes as ordered fixed-size chunks. It blocks until every item is
// accepted by the channel, the transfer is cancelled, or a send fails.
func (e *Engine) SendFiles(items []Item) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrChannelNotOpen
	}
	if e.sending {
		e.mu.Unlock()
		return ErrTransferInProgress
	}
	e.sending = true
	e.cancelled = false
	e.cancelc = make(chan struct{})
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.sending = false
		e.mu.Unlock()
	}()

	infos := make([]ItemInfo, len(items))
	for i, it := range items {
		infos[i] = ItemInfo{Name: it.Name, Size: it.Size}
	}
	e.session.begin(KindFile, infos)

	for _, it := range items {
		if err := e.sendItem(it); err != nil {
			return err
		}
	}

	e.emitProgress()
	return nil
}

func (e *Engine) sendItem(it Item) error {
	if err := e.sendFrame(MetadataFrame(it.Name, it.Size)); err != nil {
		return NewFileError("send metadata", it.Name, err)
	}

	buf := make([]byte, e.opts.ChunkSize)
	chunk := 0

	for {
		n, readErr := it.Data.Read(buf)
		if n > 0 {
			if err := e.waitReady(); err != nil {
				return err
			}

			payload := make([]byte, n)
			copy(payload, buf[:n])
			if err := e.ch.Send(payload); err != nil {
				return NewFileError("send chunk", it.Name, err)
			}

			e.session.addBytes(int64(n))
			chunk++
			if chunk%e.opts.StatsEvery == 0 {
				e.emitProgress()
			}
		}

		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return NewFileError("read", it.Name, readErr)
		}
	}

	// Completion recomputes deterministically so final figures are exact.
	e.emitProgress()
	return nil
}

// waitReady blocks between chunks while the transfer is paused or the
// channel's outbound buffer sits above the high-water mark. Both waits are
// released by cancel and by Close, so nothing blocks forever.
func (e *Engine) waitReady() error {
	for {
		e.mu.Lock()
		if e.cancelled {
			e.mu.Unlock()
			return e.abortErr()
		}
		if e.paused {
			resume := e.resumec
			cancel := e.cancelc
			e.mu.Unlock()

			select {
			case <-resume:
			case <-cancel:
				return e.abortErr()
			}
			continue
		}
		cancel := e.cancelc
		e.mu.Unlock()

		if e.ch.BufferedAmount() < e.opts.HighWaterMark {
			return nil
		}

		select {
		case <-e.drained:
			// Re-check the pause gate: a pause request may extend a
			// backpressure suspension.
		case <-cancel:
			return e.abortErr()
		}
	}
}

// abortErr reports why a blocked send was released: a torn-down channel
// beats a cooperative cancel.
func (e *Engine) abortErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrPeerDisconnected
	}
	return ErrTransferCancelled
}

// SendText beams a text payload as a single frame, no chunking.
func (e *Engine) SendText(content string) error {
	if err := e.sendFrame(TextFrame(content)); err != nil {
		return NewError("send text", err)
	}
	return nil
}

// Pause suspends sending between chunks and tells the peer. Idempotent.
func (e *Engine) Pause() error {
	if !e.setPaused(true) {
		return nil
	}
	e.session.markPaused()
	return e.sendFrame(ControlFrame(ActionPause))
}

// Resume continues from the exact byte offset where sending stopped. The
// paused interval is excluded from speed and ETA.
func (e *Engine) Resume() error {
	if !e.setPaused(false) {
		return nil
	}
	e.session.markResumed()
	return e.sendFrame(ControlFrame(ActionResume))
}

// setPaused flips the pause gate. Returns false when already in the
// requested state.
func (e *Engine) setPaused(paused bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.paused == paused {
		return false
	}
	e.paused = paused
	if paused {
		e.resumec = make(chan struct{})
	} else {
		close(e.resumec)
	}
	return true
}

// Cancel aborts the current and queued transfers, unblocks any wait, resets
// the session, and tells the peer.
func (e *Engine) Cancel() error {
	e.abortSend()
	e.session.reset()
	e.resetReceive()
	return e.sendFrame(ControlFrame(ActionCancel))
}

// abortSend releases anything blocked in waitReady. Either side's cancel
// lands here.
func (e *Engine) abortSend() {
	e.mu.Lock()
	if e.sending && !e.cancelled {
		e.cancelled = true
		close(e.cancelc)
	}
	if e.paused {
		e.paused = false
		close(e.resumec)
	}
	e.mu.Unlock()
}

// Receive handles one inbound data channel message. Text frames carry the
// JSON control plane; binary frames are chunk bytes for the most recent
// unfinished metadata frame.
func (e *Engine) Receive(data []byte, isString bool) {
	if isString {
		e.receiveFrame(data)
		return
	}
	e.receiveChunk(data)
}

func (e *Engine) receiveFrame(data []byte) {
	f, err := DecodeFrame(data)
	if err != nil {
		// Protocol noise, not actionable.
		logrus.Debugf("ignoring undecodable frame: %v", err)
		return
	}

	switch f.Type {
	case FrameMetadata:
		e.recvMu.Lock()
		e.recvMeta = &ItemInfo{Name: f.Name, Size: f.Size}
		e.recvBuf.Reset()
		e.recvChunks = 0
		e.recvMu.Unlock()

		e.session.begin(KindFile, []ItemInfo{{Name: f.Name, Size: f.Size}})

		if f.Size == 0 {
			e.completeItem()
		}

	case FrameText:
		if e.hooks.OnText != nil {
			e.hooks.OnText(f.Content)
		}

	case FrameControl:
		// Control frames act on both sides: a receiver's pause must gate
		// the sender's chunk loop, not just its own display.
		switch f.Action {
		case ActionPause:
			e.setPaused(true)
			e.session.markPaused()
		case ActionResume:
			e.setPaused(false)
			e.session.markResumed()
		case ActionCancel:
			e.abortSend()
			e.resetReceive()
			e.session.reset()
		}
		if e.hooks.OnPeerAction != nil {
			e.hooks.OnPeerAction(f.Action)
		}

	case FrameHeartbeat:
		// Keepalive only, never surfaced.

	default:
		logrus.WithField("type", f.Type).Debug("ignoring unknown frame type")
	}
}

func (e *Engine) receiveChunk(data []byte) {
	e.recvMu.Lock()
	if e.recvMeta == nil {
		// Chunk with no metadata context: defensive no-op.
		e.recvMu.Unlock()
		return
	}

	// Received bytes never exceed the declared size.
	if remaining := e.recvMeta.Size - int64(e.recvBuf.Len()); int64(len(data)) > remaining {
		data = data[:remaining]
	}
	e.recvBuf.Write(data)
	e.recvChunks++

	done := int64(e.recvBuf.Len()) >= e.recvMeta.Size
	sample := e.recvChunks%e.opts.StatsEvery == 0
	e.recvMu.Unlock()

	e.session.addBytes(int64(len(data)))

	if done {
		e.completeItem()
		return
	}
	if sample {
		e.emitProgress()
	}
}

// completeItem hands the assembled stream to the UI collaborator and clears
// accumulation state for the next metadata frame.
func (e *Engine) completeItem() {
	e.recvMu.Lock()
	meta := e.recvMeta
	if meta == nil {
		e.recvMu.Unlock()
		return
	}
	assembled := make([]byte, e.recvBuf.Len())
	copy(assembled, e.recvBuf.Bytes())
	e.recvMeta = nil
	e.recvBuf.Reset()
	e.recvChunks = 0
	e.recvMu.Unlock()

	e.emitProgress()
	if e.hooks.OnFile != nil {
		e.hooks.OnFile(meta.Name, assembled)
	}
}

func (e *Engine) resetReceive() {
	e.recvMu.Lock()
	e.recvMeta = nil
	e.recvBuf.Reset()
	e.recvChunks = 0
	e.recvMu.Unlock()
}

// StartHeartbeat emits a periodic no-op frame so idle connections are not
// torn down by middleboxes. Receipt is ignored on the other side.
func (e *Engine) StartHeartbeat() {
	go func() {
		ticker := time.NewTicker(e.opts.HeartbeatInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if err := e.sendFrame(HeartbeatFrame()); err != nil {
					logrus.Debugf("heartbeat: %v", err)
				}
			case <-e.hbStop:
				return
			}
		}
	}()
}

// Close stops the heartbeat and releases anything blocked on the engine; a
// send parked on the pause gate or on backpressure returns
// ErrPeerDisconnected. The channel itself belongs to the negotiator and is
// closed there.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.hbStop)
	})

	e.mu.Lock()
	e.closed = true
	if e.sending && !e.cancelled {
		e.cancelled = true
		close(e.cancelc)
	}
	e.mu.Unlock()
}

func (e *Engine) sendFrame(f Frame) error {
	encoded, err := f.Encode()
	if err != nil {
		return err
	}
	return e.ch.SendText(encoded)
}

func (e *Engine) emitProgress() {
	if e.hooks.OnProgress != nil {
		e.hooks.OnProgress(e.session.Snapshot())
	}
}
