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

package mmr

// Digest is any combinable node value an MMR can be built from. Concrete
// light-client header digests live in package lightclient; this package
// only ever manipulates them through this interface so that position math
// and proof bagging stay independent of what is actually being proven.
type Digest interface {
	// Equal reports whether two digests represent the same node.
	Equal(other Digest) bool
}

// Merger combines a left and right child digest into their parent's
// digest. Implementations must be associative in the sense the tree
// expects: Merge(a, b) always means "a is left of b".
type Merger interface {
	Merge(left, right Digest) Digest
}

// Leaf is a single proven leaf: its flat position and its digest.
type Leaf struct {
	Pos    uint64
	Digest Digest
}

// Proof is a flat list of sibling digests accompanying one or more leaves,
// sufficient to recompute the MMR root of a tree of MMRSize nodes. This
// mirrors the proof's wire shape: {mmr_size, nodes}.
type Proof struct {
	MMRSize uint64
	Nodes   []Digest
}

// NewProof wraps an mmr_size and its accompanying node list into a Proof.
func NewProof(mmrSize uint64, nodes []Digest) Proof {
	return Proof{MMRSize: mmrSize, Nodes: nodes}
}

// Verify recomputes the MMR root implied by leaves and p's sibling nodes,
// and reports whether it equals root. leaves must be sorted by ascending
// Pos and must not repeat a position.
//
// The algorithm bags one peak at a time, left to right: for each peak
// position, it consumes every leaf at or below that peak and walks them
// up to the peak using either another pending leaf or the next proof node
// as each missing sibling, then folds the resulting peak digests right to
// left into the final root. This is the standard peak-bagging shape (walk
// each leaf to its peak with supplied siblings, then compare accumulated
// peaks), extended to bag proofs that span more than one peak.
func (p Proof) Verify(merger Merger, root Digest, leaves []Leaf) (bool, error) {
	calculated, err := calculateRoot(merger, leaves, p.MMRSize, p.Nodes)
	if err != nil {
		return false, err
	}
	return calculated.Equal(root), nil
}

func calculateRoot(merger Merger, leaves []Leaf, mmrSize uint64, proof []Digest) (Digest, error) {
	if len(leaves) == 0 {
		return nil, ErrCorruptedProof
	}

	peaks := GetPeaks(mmrSize)
	proofIdx := 0
	nextProof := func() (Digest, bool) {
		if proofIdx >= len(proof) {
			return nil, false
		}
		d := proof[proofIdx]
		proofIdx++
		return d, true
	}

	peakDigests := make([]Digest, 0, len(peaks)+1)
	remaining := leaves

	for _, peakPos := range peaks {
		var peakLeaves []Leaf
		i := 0
		for i < len(remaining) && remaining[i].Pos <= peakPos {
			peakLeaves = append(peakLeaves, remaining[i])
			i++
		}
		remaining = remaining[i:]

		var peakDigest Digest
		switch {
		case len(peakLeaves) == 1 && peakLeaves[0].Pos == peakPos:
			peakDigest = peakLeaves[0].Digest
		case len(peakLeaves) == 0:
			d, ok := nextProof()
			if !ok {
				// No more leaves touch any remaining peak and the proof is
				// exhausted: every untouched peak from here on must have
				// been bagged into the proof tail instead.
				break
			}
			peakDigest = d
		default:
			d, err := calculatePeakRoot(merger, peakLeaves, peakPos, nextProof)
			if err != nil {
				return nil, err
			}
			peakDigest = d
		}
		if peakDigest != nil {
			peakDigests = append(peakDigests, peakDigest)
		}
		if len(remaining) == 0 && proofIdx >= len(proof) {
			break
		}
	}

	// Peaks were bagged left (highest) to right (lowest); reverse so the
	// fold below consumes right to left, then append whatever proof nodes
	// are left over. Every peak without a proven leaf has already taken
	// its own proof node above, so leftover nodes are folded in beyond the
	// left-most peak and change the resulting root.
	reversed := make([]Digest, 0, len(peakDigests)+len(proof)-proofIdx)
	for i := len(peakDigests) - 1; i >= 0; i-- {
		reversed = append(reversed, peakDigests[i])
	}
	for ; proofIdx < len(proof); proofIdx++ {
		reversed = append(reversed, proof[proofIdx])
	}

	return baggingPeaks(merger, reversed)
}

type peakEntry struct {
	pos    uint64
	digest Digest
	height uint64
}

// calculatePeakRoot walks a contiguous run of leaves under a single peak up
// to that peak, merging in either another queued leaf or the next proof
// node as each missing sibling, exactly as the real MMR crate's
// calculate_peak_root does.
func calculatePeakRoot(merger Merger, leaves []Leaf, peakPos uint64, nextProof func() (Digest, bool)) (Digest, error) {
	queue := make([]peakEntry, 0, len(leaves))
	for _, l := range leaves {
		queue = append(queue, peakEntry{pos: l.Pos, digest: l.Digest, height: 0})
	}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		if e.pos == peakPos {
			if len(queue) == 0 {
				return e.digest, nil
			}
			return nil, ErrCorruptedProof
		}

		nextHeight := PosHeightInTree(e.pos + 1)
		var siblingPos, parentPos uint64
		rightSibling := nextHeight > e.height
		if rightSibling {
			siblingPos = e.pos - siblingOffset(e.height)
			parentPos = e.pos + 1
		} else {
			siblingPos = e.pos + siblingOffset(e.height)
			parentPos = e.pos + parentOffset(e.height)
		}

		var siblingDigest Digest
		if len(queue) > 0 && queue[0].pos == siblingPos {
			siblingDigest = queue[0].digest
			queue = queue[1:]
		} else {
			d, ok := nextProof()
			if !ok {
				return nil, ErrCorruptedProof
			}
			siblingDigest = d
		}

		var parentDigest Digest
		if rightSibling {
			parentDigest = merger.Merge(siblingDigest, e.digest)
		} else {
			parentDigest = merger.Merge(e.digest, siblingDigest)
		}

		if parentPos < peakPos {
			queue = append(queue, peakEntry{pos: parentPos, digest: parentDigest, height: e.height + 1})
		} else {
			return parentDigest, nil
		}
	}
	return nil, ErrCorruptedProof
}

// baggingPeaks folds a right-to-left ordered peak-digest list into a single
// root, merging the two right-most peaks repeatedly.
func baggingPeaks(merger Merger, peaks []Digest) (Digest, error) {
	if len(peaks) == 0 {
		return nil, ErrCorruptedProof
	}
	for len(peaks) > 1 {
		right := peaks[0]
		left := peaks[1]
		peaks = append([]Digest{merger.Merge(left, right)}, peaks[2:]...)
	}
	return peaks[0], nil
}
