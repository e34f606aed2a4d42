package main

import (
	"sync"

	"muco/server/internal/wire"
)

// Model is the shared in-memory fact store every connected session reads
// and writes through. One Model per server process; there is no
// persistence across restarts, and no cleanup of facts or ownership when
// a session disconnects (spec leaves both unspecified — see DESIGN.md).
type Model struct {
	mu     sync.RWMutex
	facts  map[wire.FactKey][]byte
	owners map[wire.FactKey]wire.SessionID
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{
		facts:  make(map[wire.FactKey][]byte),
		owners: make(map[wire.FactKey]wire.SessionID),
	}
}

// Fact is one entry of a model snapshot.
type Fact struct {
	Key      wire.FactKey
	Data     []byte
	Owner    wire.SessionID
	HasOwner bool
}

// Snapshot clones the current facts and their owners for a Hello message.
// Cloning under a read lock keeps the critical section short.
func (m *Model) Snapshot() []Fact {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Fact, 0, len(m.facts))
	for key, data := range m.facts {
		cp := make([]byte, len(data))
		copy(cp, data)
		owner, hasOwner := m.owners[key]
		out = append(out, Fact{Key: key, Data: cp, Owner: owner, HasOwner: hasOwner})
	}
	return out
}

// SetResult is the outcome of a SetData call.
type SetResult int

const (
	Accepted SetResult = iota
	RejectedByOwner
)

// SetData writes data under key on behalf of sid, enforcing the ownership
// guard: a key with an owner other than sid is rejected with no state
// change. A key with no owner, or owned by sid itself, accepts the write.
func (m *Model) SetData(key wire.FactKey, sid wire.SessionID, data []byte) SetResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.owners[key]; ok && owner != sid {
		return RejectedByOwner
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	m.facts[key] = cp
	return Accepted
}

// ClaimData assigns key's ownership to sid, unconditionally — the latest
// claim always wins, per spec; there is no release or transfer provision.
func (m *Model) ClaimData(key wire.FactKey, sid wire.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[key] = sid
}
