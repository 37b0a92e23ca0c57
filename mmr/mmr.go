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

// Package mmr implements the position arithmetic and proof-bagging
// algorithm for a Merkle Mountain Range: an append-only log whose leaves
// are numbered 0, 1, 2, ... and whose interior nodes are addressed by a
// single flat, zero-based position space threaded through every "mountain"
// in the forest. The bit-trick height/peak derivations below are the
// standard family (jump-left, pos-height, peak enumeration), expressed in
// the zero-based position convention the wire format uses.
//
// This package only verifies proofs; it never builds an MMR. The client
// holds headers, never the tree.
package mmr

import (
	"errors"
	"math/bits"
)

// ErrCorruptedProof is returned when a proof's node list is exhausted
// before the bagging algorithm reaches a single root, or when leaves
// disagree with the claimed peak structure.
var ErrCorruptedProof = errors.New("mmr: corrupted proof")

// LeafIndexToPos maps a zero-based leaf index to its position in the flat
// MMR node numbering.
func LeafIndexToPos(index uint64) uint64 {
	return 2*index - uint64(bits.OnesCount64(index))
}

// LeafIndexToMMRSize returns the total node count of the smallest MMR
// whose last-added leaf is leaf index.
func LeafIndexToMMRSize(index uint64) uint64 {
	leaves := index + 1
	return 2*leaves - uint64(bits.OnesCount64(leaves))
}

// PosHeightInTree returns the height (0 = leaf) of the node at zero-based
// position pos.
func PosHeightInTree(pos uint64) uint64 {
	pos++
	for !allOnes(pos) {
		pos = jumpLeft(pos)
	}
	return uint64(bits.Len64(pos)) - 1
}

func allOnes(num uint64) bool {
	return num != 0 && bits.OnesCount64(num) == bits.Len64(num)
}

func jumpLeft(pos uint64) uint64 {
	bitLength := uint64(bits.Len64(pos))
	msb := uint64(1) << (bitLength - 1)
	return pos - (msb - 1)
}

func siblingOffset(height uint64) uint64 {
	return (2 << height) - 1
}

func parentOffset(height uint64) uint64 {
	return 2 << height
}

func peakPosByHeight(height uint64) uint64 {
	return (uint64(1) << (height + 1)) - 2
}

// GetPeaks returns the zero-based positions of every mountain peak in an
// MMR of the given size, ordered from the highest (left-most) peak to the
// lowest (right-most) one.
func GetPeaks(mmrSize uint64) []uint64 {
	if mmrSize == 0 {
		return nil
	}
	height, pos := leftPeakHeightPos(mmrSize)
	peaks := []uint64{pos}
	for height > 0 {
		nextHeight, nextPos, ok := getRightPeak(height, pos, mmrSize)
		if !ok {
			break
		}
		height, pos = nextHeight, nextPos
		peaks = append(peaks, pos)
	}
	return peaks
}

func leftPeakHeightPos(mmrSize uint64) (uint64, uint64) {
	height := uint64(0)
	prevPos := uint64(0)
	pos := peakPosByHeight(height)
	for pos < mmrSize {
		height++
		prevPos = pos
		pos = peakPosByHeight(height)
	}
	if height == 0 {
		return 0, 0
	}
	return height - 1, prevPos
}

func getRightPeak(height, pos, mmrSize uint64) (uint64, uint64, bool) {
	pos += siblingOffset(height)
	for pos > mmrSize-1 {
		if height == 0 {
			return 0, 0, false
		}
		height--
		pos -= parentOffset(height)
	}
	return height, pos, true
}
