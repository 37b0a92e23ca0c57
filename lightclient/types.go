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

// Package lightclient holds the data model and verification engine of a
// super-light client: it never stores a chain, only the last header it
// trusts per peer plus the small suffix needed to keep extending that
// trust. Types here play the role go-420coin's core Header/Block types
// play for a full node, trimmed to the fields a FlyClient-style prover
// needs.
package lightclient

import (
	"sync"
	"time"

	"github.com/holiman/uint256"
)

// Hash is a 32-byte block or digest hash.
type Hash [32]byte

// EpochNumberWithFraction packs a block's position within its difficulty
// epoch: which epoch, how far into it, and how long the epoch is.
type EpochNumberWithFraction struct {
	Number uint64
	Index  uint64
	Length uint64
}

// SameEpoch reports whether two headers share an epoch number.
func (e EpochNumberWithFraction) SameEpoch(o EpochNumberWithFraction) bool {
	return e.Number == o.Number
}

// Epoch field widths inside the packed uint64 wire form: number in the
// low 24 bits, index in the next 16, length in the 16 above that.
const (
	epochNumberBits = 24
	epochIndexBits  = 16
	epochLengthBits = 16

	epochNumberMask = (1 << epochNumberBits) - 1
	epochIndexMask  = (1 << epochIndexBits) - 1
	epochLengthMask = (1 << epochLengthBits) - 1
)

// Pack folds the epoch into the single uint64 it travels the wire as.
// Out-of-range components are truncated to their field width; honest
// chains never produce them, and a dishonest peer's packed epoch simply
// decodes to whatever it encoded.
func (e EpochNumberWithFraction) Pack() uint64 {
	return (e.Number & epochNumberMask) |
		(e.Index&epochIndexMask)<<epochNumberBits |
		(e.Length&epochLengthMask)<<(epochNumberBits+epochIndexBits)
}

// UnpackEpoch is the inverse of Pack.
func UnpackEpoch(v uint64) EpochNumberWithFraction {
	return EpochNumberWithFraction{
		Number: v & epochNumberMask,
		Index:  (v >> epochNumberBits) & epochIndexMask,
		Length: (v >> (epochNumberBits + epochIndexBits)) & epochLengthMask,
	}
}

// Header is the immutable, self-describing part of a block: enough to
// check proof-of-work and chain continuity, plus the running total
// difficulty up to and including this block.
type Header struct {
	Number          uint64
	Epoch           EpochNumberWithFraction
	CompactTarget   uint32
	ParentHash      Hash
	Hash            Hash
	TotalDifficulty *uint256.Int
}

// VerifiableHeader is a Header plus the MMR commitment tying it to every
// ancestor before it (ParentChainRoot) and the extra hash binding that
// commitment into the header hash itself.
type VerifiableHeader struct {
	Header
	ParentChainRoot HeaderDigest
	ExtraHash       Hash
}

// IsValid reports whether h is usable as an MMR-anchored tip: its epoch
// must be at or past chain-root activation, and its extra hash must
// actually commit to the declared parent chain root. Genesis (number 0)
// has no ancestors and is valid unconditionally.
func (h VerifiableHeader) IsValid(mmrActivatedEpoch uint64) bool {
	if h.Number == 0 {
		return true
	}
	if h.Epoch.Number < mmrActivatedEpoch {
		return false
	}
	if h.ParentChainRoot.EndNumber != h.Number-1 {
		return false
	}
	return h.ExtraHash == computeExtraHash(h.Header, h.ParentChainRoot)
}

// ProveRequest is the pending sampling request a peer is expected to
// answer with a SendLastStateProof. Difficulties must be sorted ascending
// and strictly increasing; callers that construct one keep it that way.
type ProveRequest struct {
	LastHeader         VerifiableHeader
	StartNumber        uint64
	DifficultyBoundary *uint256.Int
	Difficulties       []*uint256.Int
	LastNBlocks        uint64

	SkipCheckTau     bool
	LongForkDetected bool

	IfTrustedState bool
	TrustedHash    Hash
}

// ProveState is the last tip this client has accepted for a peer, plus
// the small trailing window of headers needed to rebind the next request
// to it (the reorg prefix) and to backfill LastHeaders when a future
// response's last-n slice comes up short.
type ProveState struct {
	LastHeader       VerifiableHeader
	ReorgLastHeaders []VerifiableHeader
	LastHeaders      []VerifiableHeader
}

// PeerStateKind tags which variant of PeerState is populated, the Go
// analogue of the source's {Discovered, AwaitingProof, Proved} sum type.
type PeerStateKind int

const (
	StateDiscovered PeerStateKind = iota
	StateAwaitingProof
	StateProved
)

func (k PeerStateKind) String() string {
	switch k {
	case StateDiscovered:
		return "discovered"
	case StateAwaitingProof:
		return "awaiting_proof"
	case StateProved:
		return "proved"
	default:
		return "unknown"
	}
}

// PeerState is the per-peer prove-state machine's current snapshot. Kind
// names the lifecycle stage; ProveRequest is non-nil exactly while Kind is
// StateAwaitingProof. ProveState, once set by a first commit, is kept
// around across later AwaitingProof rounds too: it is the "previously
// accepted tip" every subsequent τ/total-difficulty check and last_headers
// backfill is computed against, not just the terminal value of a Proved
// peer.
type PeerState struct {
	Kind         PeerStateKind
	ProveRequest *ProveRequest
	ProveState   *ProveState
}

// PeerSlot is the single per-peer record a Peers registry hands out. All
// reads and writes to a slot's state go through its own mutex so that a
// peer's verification and commit stay serialized with respect to each
// other without contending with unrelated peers.
type PeerSlot struct {
	mu              sync.RWMutex
	state           PeerState
	updateTimestamp time.Time
}
