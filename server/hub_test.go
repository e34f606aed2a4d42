package main

import (
	"testing"

	"muco/server/internal/bridge"
	"muco/server/internal/wire"
)

type recordingBridge struct {
	events []bridge.Event
}

func (r *recordingBridge) Notify(ev bridge.Event) {
	r.events = append(r.events, ev)
}

func TestHubNotifiesBridgeOnSubscribeAndUnsubscribe(t *testing.T) {
	h := NewHub()
	rb := &recordingBridge{}
	h.Bridge = rb

	h.Subscribe(1)
	h.Unsubscribe(1)

	if len(rb.events) != 2 {
		t.Fatalf("expected 2 bridge events, got %d: %#v", len(rb.events), rb.events)
	}
	if rb.events[0].Kind != bridge.EventSessionJoined || rb.events[0].Session != 1 {
		t.Fatalf("unexpected first event: %#v", rb.events[0])
	}
	if rb.events[1].Kind != bridge.EventSessionLeft || rb.events[1].Session != 1 {
		t.Fatalf("unexpected second event: %#v", rb.events[1])
	}
}

func TestHubSessionIDsReflectsSubscribers(t *testing.T) {
	h := NewHub()
	h.Subscribe(wire.SessionID(2))
	h.Subscribe(wire.SessionID(5))

	if h.SessionCount() != 2 {
		t.Fatalf("expected 2 sessions, got %d", h.SessionCount())
	}
	ids := h.SessionIDs()
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %v", ids)
	}

	h.Unsubscribe(wire.SessionID(2))
	if h.SessionCount() != 1 {
		t.Fatalf("expected 1 session after unsubscribe, got %d", h.SessionCount())
	}
}
