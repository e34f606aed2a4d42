package main

import (
	"bytes"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"muco/server/internal/bridge"
	"muco/server/internal/wire"
)

// session is the per-client task (C4): one goroutine per accepted
// connection, carrying the ACCEPT -> HELLO_SENT -> TERMINATED state
// machine. Grounded on the teacher's Client struct shape — a session id,
// a mutex-serialized write path (ctrlMu there, writeMu here), and a
// cancelable lifetime — with the WebTransport-specific datagram circuit
// breaker and NACK cache dropped: spec.md's transport is a single ordered
// TCP byte stream with no unreliable channel to protect against.
type session struct {
	id      wire.SessionID
	conn    net.Conn
	hub     *Hub
	model   *Model
	log     *logWriter // nil when logging is disabled
	started time.Time

	writeMu sync.Mutex
	logger  *slog.Logger
}

// runSession drives one accepted connection end to end: prelude, Hello,
// main loop, termination broadcast. It returns once the connection is
// fully torn down.
func runSession(conn net.Conn, id wire.SessionID, hub *Hub, model *Model, log *logWriter, serverStart time.Time) {
	s := &session{
		id:      id,
		conn:    conn,
		hub:     hub,
		model:   model,
		log:     log,
		started: serverStart,
		logger:  slog.With("session", id, "remote", conn.RemoteAddr()),
	}
	defer conn.Close()
	if log != nil {
		defer log.Close()
	}

	deviceID, ok := s.readPrelude()
	if !ok {
		return // bad version or closed before prelude completed; no frames sent
	}
	s.logger.Info("session accepted", "device_id", deviceID)

	events := s.hub.Subscribe(s.id)
	defer s.hub.Unsubscribe(s.id)

	if !s.sendHello() {
		s.logger.Info("hello write failed, never entered membership view")
		return // per spec: no disconnect broadcast — peer never joined
	}

	s.mainLoop(events)

	s.hub.Send(wire.Address{Kind: wire.AddressAll}, s.id,
		wire.EncodeServerToClient(wire.MsgClientDisconnected{Session: s.id}))
	s.logger.Info("session terminated")
}

// readPrelude reads the fixed-size version+device-id preamble. A mismatch
// or short read terminates silently: no Hello, no disconnect broadcast.
func (s *session) readPrelude() (deviceID uint32, ok bool) {
	buf := make([]byte, wire.PreludeSize)
	if _, err := io.ReadFull(s.conn, buf); err != nil {
		s.logger.Debug("prelude read failed", "err", err)
		return 0, false
	}
	if !bytes.Equal(buf[:len(wire.NetworkVersion)], wire.NetworkVersion) {
		s.logger.Warn("network version mismatch, dropping connection")
		return 0, false
	}
	deviceID = leUint32(buf[len(wire.NetworkVersion):])
	return deviceID, true
}

func leUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// sendHello writes the assigned session id plus a full model snapshot.
func (s *session) sendHello() bool {
	snap := s.model.Snapshot()
	facts := make([]wire.HelloFact, 0, len(snap))
	for _, f := range snap {
		facts = append(facts, wire.HelloFact{Key: f.Key, Data: f.Data})
	}
	hello := wire.MsgHello{Session: s.id, Facts: facts}
	return s.write(wire.EncodeServerToClient(hello)) == nil
}

// write serializes payload as a length-prefixed frame and writes it,
// serialized against concurrent hub-driven writes via writeMu — the
// socket has exactly one writer goroutine (this one), but write is called
// both from the hub-drain branch and (for Hello) before the main loop, so
// the mutex guards against any future caller forgetting that invariant.
func (s *session) write(payload []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	frame := wire.AppendFrame(nil, payload)
	_, err := s.conn.Write(frame)
	return err
}

// mainLoop implements the biased cooperative select of spec.md §4.4:
// broadcast events are drained ahead of socket reads so in-flight replies
// never queue up behind a slow peer. Go has no native biased select, so
// this uses the standard double-select idiom: a non-blocking drain pass
// first, then a blocking select across both sources.
func (s *session) mainLoop(events <-chan event) {
	readCh := make(chan []byte)
	readErrCh := make(chan error, 1)
	quit := make(chan struct{})
	defer close(quit)
	go s.readLoop(readCh, readErrCh, quit)

	var inbuf []byte

	for {
		// Drain pass: handle any broadcast items already queued before
		// considering the next socket read.
	drain:
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return // hub dropped us as a lagging subscriber
				}
				if s.handleEvent(ev) {
					return
				}
			default:
				break drain
			}
		}

		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if s.handleEvent(ev) {
				return
			}
		case chunk, ok := <-readCh:
			if !ok {
				return
			}
			inbuf = append(inbuf, chunk...)
			if s.drainFrames(&inbuf) {
				return
			}
		case err := <-readErrCh:
			s.logger.Debug("socket read ended", "err", err)
			return
		}
	}
}

// readLoop feeds raw bytes from the socket to the main loop over a
// channel, so mainLoop can select between it and hub events on a single
// goroutine without blocking either source on the other. quit is closed
// when mainLoop returns, so a send racing against shutdown (e.g. mainLoop
// exiting on a hub-driven Kick while a read is in flight) never leaks this
// goroutine blocked on a channel nobody drains anymore.
func (s *session) readLoop(out chan<- []byte, errOut chan<- error, quit <-chan struct{}) {
	buf := make([]byte, 4096)
	for {
		n, err := s.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case out <- chunk:
			case <-quit:
				return
			}
		}
		if err != nil {
			select {
			case errOut <- err:
			case <-quit:
			}
			return
		}
	}
}

// handleEvent applies one hub event to this session: writing an addressed
// frame, or recognizing a Kick(me) and requesting the loop stop.
func (s *session) handleEvent(ev event) (disconnect bool) {
	if ev.kick {
		return ev.target == s.id
	}
	if err := s.write(ev.payload); err != nil {
		s.logger.Debug("write failed, disconnecting", "err", err)
		return true
	}
	return false
}

// drainFrames repeatedly extracts complete frames from inbuf, logs and
// dispatches each, and compacts inbuf to the remaining partial tail.
func (s *session) drainFrames(inbuf *[]byte) (disconnect bool) {
	for {
		begin, end, ok := wire.TryExtractFrame(*inbuf)
		if !ok {
			return false
		}
		frame := append([]byte(nil), (*inbuf)[:end]...)
		payload := (*inbuf)[begin:end]
		if len(payload) > 2000 {
			// No hard cap on frame size: large frames are logged, then handled normally.
			s.logger.Info("large inbound frame", "bytes", len(payload))
		}

		if s.log != nil {
			if err := s.log.Feed(frame); err != nil {
				s.logger.Warn("session log write failed", "err", err)
			}
		}

		msg, err := wire.DecodeClientToServer(payload, s.id)
		*inbuf = (*inbuf)[end:]

		if err != nil {
			s.logger.Debug("decode error, terminating session only", "err", err)
			return true
		}
		if s.dispatch(msg) {
			return true
		}
	}
}

// dispatch translates one inbound message into at most one outbound
// broadcast, per spec.md §4.4's table. It returns true when the session
// should terminate (Disconnect, or a Kick naming this session will be
// observed via the hub, not here).
func (s *session) dispatch(msg wire.ClientToServer) (disconnect bool) {
	switch m := msg.(type) {
	case wire.MsgDisconnect:
		return true

	case wire.MsgBinaryMessageTo:
		s.hub.Send(m.To, s.id, wire.EncodeServerToClient(wire.MsgInterClient{Sender: s.id, Bytes: m.Bytes}))

	case wire.MsgSetClientType:
		if m.Type == wire.ClientTypePlayer {
			s.hub.Send(wire.Address{Kind: wire.AddressOther, Client: s.id}, s.id,
				wire.EncodeServerToClient(wire.MsgClientConnected{Session: s.id}))
		}

	case wire.MsgKick:
		s.hub.Kick(m.Target)

	case wire.MsgSetData:
		if s.model.SetData(m.Key, s.id, m.Data) == Accepted {
			s.hub.Send(wire.Address{Kind: wire.AddressOther, Client: s.id}, s.id,
				wire.EncodeServerToClient(wire.MsgDataNotify{Key: m.Key, Data: m.Data}))
			s.hub.Bridge.Notify(bridge.Event{Kind: bridge.EventFactChanged, Session: s.id, Key: m.Key})
		}

	case wire.MsgClaimData:
		s.model.ClaimData(m.Key, s.id)
		s.hub.Send(wire.Address{Kind: wire.AddressOther, Client: s.id}, s.id,
			wire.EncodeServerToClient(wire.MsgDataOwner{Key: m.Key, Owner: s.id}))
		s.hub.Bridge.Notify(bridge.Event{Kind: bridge.EventFactOwnerChanged, Session: s.id, Key: m.Key})
	}
	return false
}
