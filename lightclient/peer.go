// Copyright 2020 420integrated
// This file is part of the go-420light library.
//
// The go-420light library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-420light library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-420light library. If not, see <http://www.gnu.org/licenses/>.

package lightclient

import (
	"sync"
	"time"
)

// Peers is the registry of PeerSlots, one per connected peer, keyed by
// peer identifier. It plays the role go-420coin's peerSet plays for
// protocol peers: register/unregister under an exclusive lock, everything
// else under a shared one, and a closed flag so a shutting-down registry
// rejects new registrations instead of racing them.
type Peers struct {
	lock   sync.RWMutex
	slots  map[string]*PeerSlot
	closed bool
}

// NewPeers returns an empty, open peer registry.
func NewPeers() *Peers {
	return &Peers{slots: make(map[string]*PeerSlot)}
}

// Register adds a newly discovered peer in the Discovered state.
func (p *Peers) Register(id string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return ErrPeerSetClosed
	}
	if _, ok := p.slots[id]; ok {
		return ErrPeerAlreadyRegistered
	}
	p.slots[id] = &PeerSlot{updateTimestamp: time.Now()}
	return nil
}

// Unregister drops a peer's slot, e.g. on disconnect. A verification
// already running against the dropped slot still completes: it updates
// that orphaned slot and commits an accepted ProveState through the
// Committer as usual.
func (p *Peers) Unregister(id string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	if _, ok := p.slots[id]; !ok {
		return ErrPeerNotRegistered
	}
	delete(p.slots, id)
	return nil
}

// Peer returns a peer's slot, or ErrPeerNotRegistered.
func (p *Peers) Peer(id string) (*PeerSlot, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	slot, ok := p.slots[id]
	if !ok {
		return nil, ErrPeerNotRegistered
	}
	return slot, nil
}

// Len returns the number of registered peers.
func (p *Peers) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.slots)
}

// Close marks the registry closed; further Register calls fail.
func (p *Peers) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.closed = true
}

// Stale returns the ids of every peer whose update_timestamp is older
// than horizon, for the sweeper to mark as requiring refresh.
func (p *Peers) Stale(horizon time.Duration) []string {
	p.lock.RLock()
	defer p.lock.RUnlock()
	cutoff := time.Now().Add(-horizon)
	var ids []string
	for id, slot := range p.slots {
		slot.mu.RLock()
		old := slot.updateTimestamp.Before(cutoff)
		slot.mu.RUnlock()
		if old {
			ids = append(ids, id)
		}
	}
	return ids
}

// State returns a snapshot of the slot's current PeerState.
func (s *PeerSlot) State() PeerState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// UpdateTimestamp returns when the slot was last touched.
func (s *PeerSlot) UpdateTimestamp() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updateTimestamp
}

// setState overwrites the slot's state and bumps its timestamp. Its
// callers are the state transitions in dispatcher.go.
func (s *PeerSlot) setState(state PeerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.updateTimestamp = time.Now()
}
