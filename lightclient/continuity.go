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

import "github.com/420integrated/go-420light/consensus/difficulty"

// CheckPoWForHeaders verifies that every header's hash meets its own
// compact target, the way ethash's VerifyHeaders checks each seal
// independently of its neighbours. It applies to the whole response at
// once: sampled headers are not parent-linked to one another, but each
// one still has to be honestly mined.
func CheckPoWForHeaders(headers []VerifiableHeader) error {
	for _, h := range headers {
		if !difficulty.HashMeetsTarget(h.Hash, h.CompactTarget) {
			return ErrInvalidParentBlock
		}
	}
	return nil
}

// CheckContinuousHeaders verifies that headers form a parent-linked,
// strictly-numbered, epoch-monotonic chain. Callers apply this only to
// the reorg prefix and to the last-n suffix of a response: the sampled
// segment in between is legitimately non-contiguous by construction, so
// it is never passed to this function.
func CheckContinuousHeaders(headers []VerifiableHeader) error {
	for i := 1; i < len(headers); i++ {
		prev, cur := headers[i-1], headers[i]
		if prev.Hash != cur.ParentHash {
			return ErrInvalidParentBlock
		}
		if cur.Number != prev.Number+1 {
			return ErrInvalidParentBlock
		}
		if cur.Epoch.Number < prev.Epoch.Number {
			return ErrInvalidParentBlock
		}
	}
	return nil
}
