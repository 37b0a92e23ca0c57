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

	"github.com/holiman/uint256"
)

// easyCompact decodes (consensus/difficulty.CompactToTarget) to a target
// whose top 24 bits are all set and whose remaining 232 bits are zero:
// essentially the whole 256-bit space, so every fixture hash built by
// hashN below (which only ever sets low-order bytes) trivially satisfies
// proof-of-work without needing real mining.
const easyCompact = 0x20ffffff

// hashN returns a small, distinct 32-byte value for use as a fixture
// header/digest hash: high-order bytes are zero, so it always meets
// easyCompact's target.
func hashN(n uint64) Hash {
	var h Hash
	binary.BigEndian.PutUint64(h[24:], n)
	return h
}

// digestHashN is the same idea as hashN but offset so fixture chain-root
// digests never collide with a header hash built from the same index.
func digestHashN(n uint64) Hash {
	return hashN(n + 1_000_000)
}

func u256(n uint64) *uint256.Int {
	return uint256.NewInt().SetUint64(n)
}

// buildHeader constructs a VerifiableHeader at number with total
// difficulty td, chained to a parent with hash parentHash and total
// difficulty parentTD. The header's chain root is a fixture digest (not a
// real MMR node); it only needs to be self-consistent for IsValid and for
// sampling.go's parent/current total-difficulty comparisons, not anchored
// to an actual tree except in the dedicated MMR proof tests.
func buildHeader(number, td uint64, parentHash Hash, parentTD uint64, epoch EpochNumberWithFraction) VerifiableHeader {
	h := Header{
		Number:          number,
		Epoch:           epoch,
		CompactTarget:   easyCompact,
		ParentHash:      parentHash,
		Hash:            hashN(number),
		TotalDifficulty: u256(td),
	}
	var root HeaderDigest
	if number > 0 {
		root = HeaderDigest{
			ChildrenHash:    digestHashN(number - 1),
			TotalDifficulty: u256(parentTD),
			StartNumber:     0,
			EndNumber:       number - 1,
		}
	}
	vh := VerifiableHeader{Header: h, ParentChainRoot: root}
	vh.ExtraHash = computeExtraHash(vh.Header, vh.ParentChainRoot)
	return vh
}

// buildChain returns a contiguous run of n headers starting at startNumber
// with total difficulty increasing by diffStep per block, all sharing
// epoch. genesisTD is the total difficulty of startNumber-1 (the implicit
// parent just before the chain, used to seed the first header's parent
// link).
func buildChain(startNumber uint64, n int, genesisTD, diffStep uint64, epoch EpochNumberWithFraction) []VerifiableHeader {
	headers := make([]VerifiableHeader, 0, n)
	parentHash := hashN(startNumber - 1)
	parentTD := genesisTD
	for i := 0; i < n; i++ {
		number := startNumber + uint64(i)
		currentTD := parentTD + diffStep
		h := buildHeader(number, currentTD, parentHash, parentTD, epoch)
		headers = append(headers, h)
		parentHash = h.Hash
		parentTD = currentTD
	}
	return headers
}
