package main

import (
	"bytes"
	"net"
	"testing"
	"time"

	"muco/server/internal/wire"
)

// startTestSession creates a pair of connected in-memory net.Conns, starts
// a session on one end as the accept loop would, and returns the other end.
func startTestSession(t *testing.T, id wire.SessionID, hub *Hub, model *Model) net.Conn {
	t.Helper()
	server, client := net.Pipe()
	done := make(chan struct{})
	go func() {
		runSession(server, id, hub, model, nil, time.Now())
		close(done)
	}()
	t.Cleanup(func() {
		client.Close()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("session goroutine did not exit")
		}
	})
	return client
}

func sendPrelude(t *testing.T, conn net.Conn, deviceID uint32) {
	t.Helper()
	buf := append([]byte(nil), wire.NetworkVersion...)
	buf = append(buf, byte(deviceID), byte(deviceID>>8), byte(deviceID>>16), byte(deviceID>>24))
	if _, err := conn.Write(buf); err != nil {
		t.Fatalf("write prelude: %v", err)
	}
}

func readFrame(t *testing.T, conn net.Conn) []byte {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var buf []byte
	chunk := make([]byte, 4096)
	for {
		if begin, end, ok := wire.TryExtractFrame(buf); ok {
			return buf[begin:end]
		}
		n, err := conn.Read(chunk)
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		buf = append(buf, chunk[:n]...)
	}
}

func TestSessionHandshakeSendsHello(t *testing.T) {
	hub := NewHub()
	model := NewModel()
	conn := startTestSession(t, 0, hub, model)

	sendPrelude(t, conn, 0xDEADBEEF)

	payload := readFrame(t, conn)
	msg, err := wire.DecodeServerToClient(payload)
	if err != nil {
		t.Fatalf("decode hello: %v", err)
	}
	hello, ok := msg.(wire.MsgHello)
	if !ok {
		t.Fatalf("got %T, want MsgHello", msg)
	}
	if hello.Session != 0 || len(hello.Facts) != 0 {
		t.Fatalf("unexpected hello: %+v", hello)
	}
}

func TestSessionBadVersionDropsSilently(t *testing.T) {
	hub := NewHub()
	model := NewModel()
	conn := startTestSession(t, 0, hub, model)

	bad := append([]byte{0, 0, 0, 0, 0}, 0, 0, 0, 0)
	conn.Write(bad)

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	buf := make([]byte, 16)
	_, err := conn.Read(buf)
	if err == nil {
		t.Fatalf("expected no data and eventual close, got a read")
	}
}

// TestSessionFanOut mirrors spec scenario S2: two players set their
// client type and exchange a BinaryMessageTo(All, ...).
func TestSessionFanOut(t *testing.T) {
	hub := NewHub()
	model := NewModel()
	p1 := startTestSession(t, 0, hub, model)
	p2 := startTestSession(t, 1, hub, model)

	sendPrelude(t, p1, 1)
	sendPrelude(t, p2, 2)
	readFrame(t, p1) // Hello
	readFrame(t, p2) // Hello

	send := func(conn net.Conn, msg wire.ClientToServer) {
		conn.Write(wire.AppendFrame(nil, wire.EncodeClientToServer(msg)))
	}

	send(p1, wire.MsgSetClientType{Type: wire.ClientTypePlayer})
	send(p2, wire.MsgSetClientType{Type: wire.ClientTypePlayer})

	p2Connected := decodeAs[wire.MsgClientConnected](t, readFrame(t, p2))
	if p2Connected.Session != 0 {
		t.Fatalf("p2 should see p1 (session 0) connected, got %d", p2Connected.Session)
	}
	p1Connected := decodeAs[wire.MsgClientConnected](t, readFrame(t, p1))
	if p1Connected.Session != 1 {
		t.Fatalf("p1 should see p2 (session 1) connected, got %d", p1Connected.Session)
	}

	send(p1, wire.MsgBinaryMessageTo{To: wire.Address{Kind: wire.AddressAll}, Bytes: []byte{0x01, 0x02}})

	got1 := decodeAs[wire.MsgInterClient](t, readFrame(t, p1))
	got2 := decodeAs[wire.MsgInterClient](t, readFrame(t, p2))
	for _, got := range []wire.MsgInterClient{got1, got2} {
		if got.Sender != 0 || !bytes.Equal(got.Bytes, []byte{0x01, 0x02}) {
			t.Fatalf("unexpected InterClient: %+v", got)
		}
	}
}

func decodeAs[T wire.ServerToClient](t *testing.T, payload []byte) T {
	t.Helper()
	msg, err := wire.DecodeServerToClient(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := msg.(T)
	if !ok {
		t.Fatalf("got %T, want %T", msg, *new(T))
	}
	return got
}
