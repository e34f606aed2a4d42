// Package bridge defines the boundary between the relay and an external
// operator-facing manager: a manager web/websocket surface, its persisted
// headset-status store, and player-application domain logic are all
// out of scope here (see spec §1) and live, if anywhere, on the other side
// of this interface. The relay only ever calls Bridge; it never implements
// one beyond the no-op default.
package bridge

import "muco/server/internal/wire"

// Event is one relay occurrence a manager UI might want to reflect: a
// session joining or leaving, or a fact changing hands. It mirrors the
// server->client wire vocabulary rather than inventing a parallel one, since
// an operator bridge has no information the wire protocol doesn't already
// carry.
type Event struct {
	Kind    EventKind
	Session wire.SessionID
	Key     wire.FactKey // valid when Kind is EventFactChanged or EventFactOwnerChanged
}

// EventKind enumerates the occurrences a Bridge can observe.
type EventKind int

const (
	EventSessionJoined EventKind = iota
	EventSessionLeft
	EventFactChanged
	EventFactOwnerChanged
)

// Bridge receives read-only notifications of relay activity. Implementations
// forward these to whatever external system tracks headset status; the
// relay itself never depends on a Bridge's outcome, so a Bridge must never
// block the caller for long nor be allowed to fail the relay.
type Bridge interface {
	Notify(Event)
}

// Noop is the default Bridge: it discards every event. Wiring in a real
// manager connection is an integration left to whatever embeds this module.
type Noop struct{}

// Notify discards ev.
func (Noop) Notify(Event) {}

var _ Bridge = Noop{}
