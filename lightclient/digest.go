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
	"encoding/binary"

	"github.com/420integrated/go-420light/mmr"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// HeaderDigest is one node of the parent-chain MMR: either a leaf built
// directly from a single header, or an interior node built by combining
// two children. It carries just enough of each side's summary
// (TotalDifficulty, StartNumber, EndNumber) to let a parent digest answer
// continuity and total-difficulty questions about the range it covers
// without holding the headers themselves.
type HeaderDigest struct {
	ChildrenHash    Hash
	TotalDifficulty *uint256.Int
	StartNumber     uint64
	EndNumber       uint64
}

// DigestFromHeader builds the MMR leaf digest for a single header.
func DigestFromHeader(h Header) HeaderDigest {
	return HeaderDigest{
		ChildrenHash:    h.Hash,
		TotalDifficulty: h.TotalDifficulty,
		StartNumber:     h.Number,
		EndNumber:       h.Number,
	}
}

// Verify checks a digest's own structural self-consistency: a leaf or
// node must cover a non-empty, non-inverted range and carry a difficulty
// figure. It does not re-derive ChildrenHash from anything. For a leaf
// that's because the hash is exactly the header's own hash, already
// authenticated by the header's proof-of-work and continuity checks; for
// a non-leaf digest arriving as an MMR proof's sibling node, it's because
// only the merged result ever crosses the wire, never the two children
// that produced it, so there is nothing to recompute against. A forged
// non-leaf digest is instead caught by mmr.Proof.Verify, which folds
// siblings up to a single root and compares it against the
// already-trusted ParentChainRoot.
func (d HeaderDigest) Verify() bool {
	if d.StartNumber > d.EndNumber {
		return false
	}
	return d.TotalDifficulty != nil
}

// Equal implements mmr.Digest.
func (d HeaderDigest) Equal(other mmr.Digest) bool {
	o, ok := other.(HeaderDigest)
	if !ok {
		return false
	}
	return d.ChildrenHash == o.ChildrenHash &&
		d.StartNumber == o.StartNumber &&
		d.EndNumber == o.EndNumber &&
		d.TotalDifficulty.Eq(o.TotalDifficulty)
}

// mergeDigests deterministically combines a left (older) and right
// (newer) digest into their parent. TotalDifficulty is carried from the
// right child since total difficulty only grows with block number;
// StartNumber/EndNumber widen to the union of both children's ranges.
// The parent's ChildrenHash commits to every field of both children.
func mergeDigests(left, right HeaderDigest) HeaderDigest {
	h := sha3.NewLegacyKeccak256()
	for _, c := range []HeaderDigest{left, right} {
		h.Write(c.ChildrenHash[:])
		h.Write(encodeU256(c.TotalDifficulty))
		h.Write(encodeUint64(c.StartNumber))
		h.Write(encodeUint64(c.EndNumber))
	}
	var combined Hash
	h.Sum(combined[:0])

	return HeaderDigest{
		ChildrenHash:    combined,
		TotalDifficulty: right.TotalDifficulty,
		StartNumber:     left.StartNumber,
		EndNumber:       right.EndNumber,
	}
}

func encodeUint64(v uint64) []byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	return buf[:]
}

// encodeU256 returns v as 32 bytes; a nil value encodes as all zeros.
func encodeU256(v *uint256.Int) []byte {
	var buf [32]byte
	if v != nil {
		buf = v.Bytes32()
	}
	return buf[:]
}

// computeExtraHash ties a header to the MMR commitment over everything
// before it, the way a post-activation header's extra field commits to
// its parent chain root. A full node's on-wire extra-hash covers more;
// here it covers exactly what VerifiableHeader.IsValid needs to check.
func computeExtraHash(h Header, parentChainRoot HeaderDigest) Hash {
	hasher := sha3.NewLegacyKeccak256()
	hasher.Write(h.ParentHash[:])
	hasher.Write(encodeUint64(h.Number))
	hasher.Write(parentChainRoot.ChildrenHash[:])
	hasher.Write(encodeUint64(parentChainRoot.EndNumber))
	var out Hash
	hasher.Sum(out[:0])
	return out
}

// headerDigestMerger adapts mergeDigests to the generic mmr.Merger
// interface so mmr.Proof.Verify can fold HeaderDigest values without the
// mmr package knowing anything about headers.
type headerDigestMerger struct{}

func (headerDigestMerger) Merge(left, right mmr.Digest) mmr.Digest {
	return mergeDigests(left.(HeaderDigest), right.(HeaderDigest))
}
