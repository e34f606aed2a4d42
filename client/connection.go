package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"muco/client/internal/wire"
)

// outboundQueueCapacity bounds frames queued while disconnected or between
// reconnect attempts; back-pressure beyond this blocks the enqueuing caller.
const outboundQueueCapacity = 256

// inboundQueueCapacity bounds frames awaiting consumer drain; a full queue
// applies back-pressure to the socket reader, per spec.md §4.8 step 4.
const inboundQueueCapacity = 256

// reconnectDelay is the pause between a dropped connection and the next
// discovery-and-dial attempt.
const reconnectDelay = 2 * time.Second

// Connection is the client-side mirror of the relay's per-session task (C8):
// one cooperative loop per managed connection, shuttling between a local
// outbound queue and the socket. Grounded on the teacher's Transport: the
// same shape of callback setters guarded by a RWMutex (cbMu here), the same
// ctrlMu-guarded single-writer send path, and the same reconnect-loop
// structure as Transport.Connect/Disconnect — adapted from WebTransport
// sessions/streams to a plain net.Conn, and from JSON control frames to the
// binary C1/C2 frame format.
type Connection struct {
	deviceID  uint32
	discover  func(ctx context.Context) (string, error)
	reconnect bool

	mu      sync.Mutex
	conn    net.Conn
	session wire.SessionID
	cancel  context.CancelFunc

	ctrlMu sync.Mutex
	out    chan []byte
	in     chan wire.ServerToClient

	cbMu           sync.RWMutex
	onConnected    func(session wire.SessionID)
	onMessage      func(wire.ServerToClient)
	onDisconnected func(err error)

	logger *slog.Logger
}

// NewConnection returns a Connection configured to dial via discover (C10's
// client Subscribe, or a fixed address closed over by the caller) and to
// reconnect indefinitely when reconnect is true.
func NewConnection(deviceID uint32, discover func(ctx context.Context) (string, error), reconnect bool) *Connection {
	return &Connection{
		deviceID:  deviceID,
		discover:  discover,
		reconnect: reconnect,
		out:       make(chan []byte, outboundQueueCapacity),
		in:        make(chan wire.ServerToClient, inboundQueueCapacity),
		logger:    slog.With("component", "connection"),
	}
}

// --- Callback setters ---

func (c *Connection) SetOnConnected(fn func(session wire.SessionID)) {
	c.cbMu.Lock()
	c.onConnected = fn
	c.cbMu.Unlock()
}

func (c *Connection) SetOnMessage(fn func(wire.ServerToClient)) {
	c.cbMu.Lock()
	c.onMessage = fn
	c.cbMu.Unlock()
}

func (c *Connection) SetOnDisconnected(fn func(err error)) {
	c.cbMu.Lock()
	c.onDisconnected = fn
	c.cbMu.Unlock()
}

// Inbound returns the queue of decoded server->client messages. Prefer this
// over SetOnMessage when draining from a select loop rather than a callback.
func (c *Connection) Inbound() <-chan wire.ServerToClient {
	return c.in
}

// Send enqueues msg for delivery; it is preserved across a reconnect.
func (c *Connection) Send(msg wire.ClientToServer) {
	c.out <- wire.EncodeClientToServer(msg)
}

// SendRaw enqueues an already-encoded client->server payload (tag plus
// body, no length prefix) for delivery. Used by the connect CLI's
// hex-frame-from-stdin mode, where the caller has its own encoded bytes
// rather than a decoded wire.ClientToServer value.
func (c *Connection) SendRaw(payload []byte) {
	c.out <- payload
}

// SessionID returns the id assigned by the relay's most recent Hello, or 0
// before one has arrived.
func (c *Connection) SessionID() wire.SessionID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Run drives the connect/reconnect loop until ctx is canceled.
func (c *Connection) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		addr, err := c.discover(ctx)
		if err != nil {
			c.logger.Debug("discovery failed, retrying", "err", err)
			if !sleepOrDone(ctx, reconnectDelay) {
				return
			}
			continue
		}

		if err := c.runOnce(ctx, addr); err != nil {
			c.logger.Info("connection ended", "addr", addr, "err", err)
			c.cbMu.RLock()
			onDisc := c.onDisconnected
			c.cbMu.RUnlock()
			if onDisc != nil {
				onDisc(err)
			}
		}

		if !c.reconnect {
			return
		}
		if !sleepOrDone(ctx, reconnectDelay) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runOnce performs one connect-handshake-loop-disconnect cycle: TCP dial,
// prelude write, then the biased cooperative select of spec.md §4.8 step 4
// (outbound queue drained ahead of socket reads, mirroring the relay's own
// mainLoop). A full inbound queue blocks drainFrames rather than dropping,
// per spec.md §4.8 step 4's "a full inbound queue awaits consumer drain" —
// this is the one point where the socket-read side itself applies
// back-pressure to a slow consumer.
func (c *Connection) runOnce(ctx context.Context, addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	var prelude [wire.PreludeSize]byte
	copy(prelude[:], wire.NetworkVersion)
	binary.LittleEndian.PutUint32(prelude[len(wire.NetworkVersion):], c.deviceID)
	if _, err := conn.Write(prelude[:]); err != nil {
		return fmt.Errorf("write prelude: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.conn = conn
	c.cancel = cancel
	c.mu.Unlock()
	defer cancel()

	readCh := make(chan []byte)
	readErrCh := make(chan error, 1)
	go readLoop(conn, readCh, readErrCh, sessCtx.Done())

	var inbuf []byte
	for {
	drain:
		for {
			select {
			case frame := <-c.out:
				if err := c.write(conn, frame); err != nil {
					return err
				}
			default:
				break drain
			}
		}

		select {
		case <-sessCtx.Done():
			return sessCtx.Err()
		case frame := <-c.out:
			if err := c.write(conn, frame); err != nil {
				return err
			}
		case chunk := <-readCh:
			inbuf = append(inbuf, chunk...)
			if !c.drainFrames(sessCtx, &inbuf) {
				return sessCtx.Err()
			}
		case err := <-readErrCh:
			return err
		}
	}
}

func (c *Connection) write(conn net.Conn, frame []byte) error {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()
	_, err := conn.Write(wire.AppendFrame(nil, frame))
	return err
}

// drainFrames decodes every complete frame currently buffered and pushes
// each onto c.in, blocking when that queue is full so the socket-read side
// itself carries the back-pressure (spec.md §4.8 step 4). It returns false
// if ctx is canceled while waiting for the consumer to drain.
func (c *Connection) drainFrames(ctx context.Context, inbuf *[]byte) bool {
	for {
		begin, end, ok := wire.TryExtractFrame(*inbuf)
		if !ok {
			return true
		}
		payload := (*inbuf)[begin:end]
		*inbuf = (*inbuf)[end:]

		msg, err := wire.DecodeServerToClient(payload)
		if err != nil {
			c.logger.Debug("decode error, skipping frame", "err", err)
			continue
		}

		if hello, ok := msg.(wire.MsgHello); ok {
			c.mu.Lock()
			c.session = hello.Session
			c.mu.Unlock()
			c.cbMu.RLock()
			onConn := c.onConnected
			c.cbMu.RUnlock()
			if onConn != nil {
				onConn(hello.Session)
			}
		}

		select {
		case c.in <- msg:
		case <-ctx.Done():
			return false
		}

		c.cbMu.RLock()
		onMsg := c.onMessage
		c.cbMu.RUnlock()
		if onMsg != nil {
			onMsg(msg)
		}
	}
}

func readLoop(conn net.Conn, out chan<- []byte, errOut chan<- error, done <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-done:
				return
			}
		}
		if err != nil {
			select {
			case errOut <- err:
			case <-done:
			}
			return
		}
	}
}

// Close terminates the active connection, if any; Run will then honor the
// configured reconnect policy.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}
