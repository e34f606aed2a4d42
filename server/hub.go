package main

import (
	"log/slog"
	"sync"

	"muco/server/internal/bridge"
	"muco/server/internal/wire"
)

// hubCapacity bounds each subscriber's backlog. It exists to give
// back-pressure a signal, not to guarantee delivery — a subscriber that
// falls this far behind is dropped.
const hubCapacity = 100

// event is one item flowing through the hub: either a framed message
// addressed to some subset of sessions, or a forced disconnect.
type event struct {
	kick    bool
	target  wire.SessionID // valid when kick is true
	addr    wire.Address   // valid when kick is false
	sender  wire.SessionID // the session an Other address excludes
	payload []byte         // pre-serialized server->client frame
}

// Hub is the single in-process broadcast bus every per-client task
// subscribes to exactly once. publish snapshots the current subscriber set
// under a read lock, then fans out without holding the lock — the same
// snapshot-then-release shape as the teacher's Room.Broadcast, generalized
// from a per-client slice pool to a bounded-channel-per-subscriber bus
// since spec.md's hub (unlike voice datagrams) must never silently skip a
// send for a healthy subscriber, only drop subscribers that fall behind.
type Hub struct {
	mu     sync.RWMutex
	subs   map[wire.SessionID]chan event
	Bridge bridge.Bridge // never nil; defaults to bridge.Noop{}
}

// NewHub returns an empty hub with a no-op operator bridge. Callers that
// have a real Bridge implementation assign hub.Bridge after construction.
func NewHub() *Hub {
	return &Hub{subs: make(map[wire.SessionID]chan event), Bridge: bridge.Noop{}}
}

// Subscribe registers sid and returns its delivery channel. Each session
// must subscribe exactly once, after its prelude and before its Hello.
func (h *Hub) Subscribe(sid wire.SessionID) <-chan event {
	h.mu.Lock()
	ch := make(chan event, hubCapacity)
	h.subs[sid] = ch
	h.mu.Unlock()
	h.Bridge.Notify(bridge.Event{Kind: bridge.EventSessionJoined, Session: sid})
	return ch
}

// Unsubscribe removes sid from the hub. Called when its task terminates.
func (h *Hub) Unsubscribe(sid wire.SessionID) {
	h.mu.Lock()
	ch, ok := h.subs[sid]
	if ok {
		delete(h.subs, sid)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
		h.Bridge.Notify(bridge.Event{Kind: bridge.EventSessionLeft, Session: sid})
	}
}

// Send publishes a pre-serialized server->client frame addressed per addr.
// sender is the session that produced the frame (used to resolve
// Address{Kind: AddressOther}).
func (h *Hub) Send(addr wire.Address, sender wire.SessionID, payload []byte) {
	h.publish(event{addr: addr, sender: sender, payload: payload})
}

// Kick publishes a forced-disconnect instruction for target.
func (h *Hub) Kick(target wire.SessionID) {
	h.publish(event{kick: true, target: target})
}

// SessionCount returns the number of currently subscribed sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// SessionIDs returns the ids of every currently subscribed session, for the
// ops HTTP surface's state snapshot.
func (h *Hub) SessionIDs() []uint16 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]uint16, 0, len(h.subs))
	for sid := range h.subs {
		ids = append(ids, uint16(sid))
	}
	return ids
}

func (h *Hub) publish(ev event) {
	h.mu.RLock()
	targets := make([]wire.SessionID, 0, len(h.subs))
	chans := make([]chan event, 0, len(h.subs))
	for sid, ch := range h.subs {
		targets = append(targets, sid)
		chans = append(chans, ch)
	}
	h.mu.RUnlock()

	for i, sid := range targets {
		if !ev.kick && !ev.addr.Includes(sid, ev.sender) {
			continue
		}
		select {
		case chans[i] <- ev:
		default:
			slog.Warn("hub subscriber lagged, dropping", "session", sid)
			h.Unsubscribe(sid)
		}
	}
}
