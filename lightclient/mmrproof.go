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
	"github.com/420integrated/go-420light/mmr"
	"golang.org/x/crypto/sha3"
)

// mmrProofCacheKey condenses everything VerifyMMRProof's outcome depends
// on into one fixed-size digest: every field of the claimed root and of
// each proof node in order, and each header's hash, number and total
// difficulty in order. Two calls that hash to the same key always produce
// the same verdict, since VerifyMMRProof is a pure function of exactly
// these values.
func mmrProofCacheKey(lastHeader VerifiableHeader, proofNodes []HeaderDigest, headers []VerifiableHeader) Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range append([]HeaderDigest{lastHeader.ParentChainRoot}, proofNodes...) {
		h.Write(d.ChildrenHash[:])
		h.Write(encodeU256(d.TotalDifficulty))
		h.Write(encodeUint64(d.StartNumber))
		h.Write(encodeUint64(d.EndNumber))
	}
	for _, hd := range headers {
		h.Write(hd.Hash[:])
		h.Write(encodeUint64(hd.Number))
		h.Write(encodeU256(hd.TotalDifficulty))
	}
	var key Hash
	h.Sum(key[:0])
	return key
}

// VerifyMMRProof checks that headers, combined with proofNodes, bag up to
// lastHeader.ParentChainRoot under the standard MMR leaf-index mapping.
// Every header's leaf digest is independently checked for self-consistency
// before being handed to the bagging algorithm; a single corrupted digest
// or header number in proofNodes flips the recomputed root and the proof
// is rejected.
func VerifyMMRProof(lastHeader VerifiableHeader, proofNodes []HeaderDigest, headers []VerifiableHeader) error {
	leaves := make([]mmr.Leaf, 0, len(headers))
	for _, h := range headers {
		d := DigestFromHeader(h.Header)
		if !d.Verify() {
			return ErrInvalidProof
		}
		leaves = append(leaves, mmr.Leaf{Pos: mmr.LeafIndexToPos(h.Number), Digest: d})
	}

	nodes := make([]mmr.Digest, len(proofNodes))
	for i, n := range proofNodes {
		nodes[i] = n
	}

	mmrSize := mmr.LeafIndexToMMRSize(lastHeader.ParentChainRoot.EndNumber)
	proof := mmr.NewProof(mmrSize, nodes)

	ok, err := proof.Verify(headerDigestMerger{}, lastHeader.ParentChainRoot, leaves)
	if err != nil || !ok {
		return ErrInvalidProof
	}
	return nil
}

// verifyMMRProofCached is VerifyMMRProof memoized on lc's digest cache. A
// recheck round (tau soft-failure, long-fork re-probe) often resends the
// same tip and proof the client just rejected for an unrelated reason;
// that repeat hits the cache instead of re-folding the MMR. The verdict itself, not just a
// boolean, is cached so a rejection reason survives a repeat lookup too.
func (lc *LightClient) verifyMMRProofCached(lastHeader VerifiableHeader, proofNodes []HeaderDigest, headers []VerifiableHeader) error {
	key := mmrProofCacheKey(lastHeader, proofNodes, headers)
	if v, ok := lc.digestCache.Get(key); ok {
		if v == nil {
			return nil
		}
		return v.(error)
	}
	err := VerifyMMRProof(lastHeader, proofNodes, headers)
	lc.digestCache.Add(key, err)
	return err
}
