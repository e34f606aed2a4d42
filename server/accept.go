package main

import (
	"context"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"muco/server/internal/wire"
)

// Listener runs the accept loop (C6): binds the configured address,
// disables Nagle's algorithm on every accepted connection, assigns the
// next session id, and spawns a session task. It never blocks on
// per-client work — each accepted connection is handed off to its own
// goroutine immediately.
type Listener struct {
	Addr    string
	LogDir  string // directory for per-session logs, used when Logging is true
	Logging bool

	Hub   *Hub
	Model *Model

	nextID atomic.Uint32
}

// Run binds the listener and accepts connections until ctx is canceled or
// the listener errors. start is the server's own start time, used for
// per-session log deltas; the caller derives LogDir's unix-seconds suffix
// (spec.md §6: "log_{unix_seconds}/") from the same instant.
func (l *Listener) Run(ctx context.Context, start time.Time) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", l.Addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	slog.Info("accept loop listening", "addr", l.Addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if tcp, ok := conn.(*net.TCPConn); ok {
			if err := tcp.SetNoDelay(true); err != nil {
				slog.Warn("failed to disable Nagle's algorithm", "err", err)
			}
		}

		sid := wire.SessionID(l.nextID.Add(1) - 1)

		var lw *logWriter
		if l.Logging {
			lw, err = newLogWriter(l.LogDir, sid, start)
			if err != nil {
				slog.Error("failed to create session log, continuing without it", "session", sid, "err", err)
				lw = nil
			}
		}

		go runSession(conn, sid, l.Hub, l.Model, lw, start)
	}
}
