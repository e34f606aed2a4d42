package main

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"muco/client/internal/wire"
)

// fakeRelay accepts exactly one connection, reads the prelude, and writes a
// Hello with the given session id, followed by any extra frames. It then
// sends nothing further and closes the connection after 200 ms.
func fakeRelay(t *testing.T, session wire.SessionID, extra ...wire.ServerToClient) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		prelude := make([]byte, wire.PreludeSize)
		if _, err := io.ReadFull(conn, prelude); err != nil {
			return
		}

		hello := wire.EncodeServerToClient(wire.MsgHello{Session: session})
		conn.Write(wire.AppendFrame(nil, hello))

		for _, m := range extra {
			conn.Write(wire.AppendFrame(nil, wire.EncodeServerToClient(m)))
		}

		time.Sleep(200 * time.Millisecond)
	}()

	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func TestConnectionReceivesHelloAndSessionID(t *testing.T) {
	addr := fakeRelay(t, wire.SessionID(9))

	conn := NewConnection(123, func(ctx context.Context) (string, error) {
		return addr, nil
	}, false)

	connected := make(chan wire.SessionID, 1)
	conn.SetOnConnected(func(sid wire.SessionID) { connected <- sid })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go conn.Run(ctx)

	select {
	case sid := <-connected:
		if sid != 9 {
			t.Fatalf("expected session 9, got %d", sid)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for onConnected callback")
	}

	if conn.SessionID() != 9 {
		t.Fatalf("expected SessionID() == 9, got %d", conn.SessionID())
	}
}

func TestConnectionDeliversInboundMessages(t *testing.T) {
	notify := wire.MsgClientConnected{Session: 4}
	addr := fakeRelay(t, wire.SessionID(1), notify)

	conn := NewConnection(1, func(ctx context.Context) (string, error) {
		return addr, nil
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go conn.Run(ctx)

	var got wire.ServerToClient
	for got == nil {
		select {
		case msg := <-conn.Inbound():
			if _, ok := msg.(wire.MsgHello); ok {
				continue
			}
			got = msg
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for inbound message")
		}
	}

	cc, ok := got.(wire.MsgClientConnected)
	if !ok {
		t.Fatalf("expected MsgClientConnected, got %T", got)
	}
	if cc.Session != 4 {
		t.Fatalf("expected session 4, got %d", cc.Session)
	}
}

func TestConnectionPreludeCarriesDeviceID(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	gotDeviceID := make(chan uint32, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		prelude := make([]byte, wire.PreludeSize)
		if _, err := io.ReadFull(conn, prelude); err != nil {
			return
		}
		gotDeviceID <- binary.LittleEndian.Uint32(prelude[len(wire.NetworkVersion):])
	}()

	c := NewConnection(0xDEADBEEF, func(ctx context.Context) (string, error) {
		return ln.Addr().String(), nil
	}, false)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go c.Run(ctx)

	select {
	case id := <-gotDeviceID:
		if id != 0xDEADBEEF {
			t.Fatalf("expected device id 0xDEADBEEF, got %#x", id)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for prelude")
	}
}
