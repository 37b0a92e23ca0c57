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

// MatchCounts is the (reorg, sampled, last_n) partition CheckIfResponseIsMatched
// derives from a peer's returned header list.
type MatchCounts struct {
	ReorgCount   int
	SampledCount int
	LastNCount   int
}

// CheckIfResponseIsMatched validates that headers is a structurally honest
// answer to req and partitions it into a leading reorg segment, a sampled
// segment proving the request's drawn difficulties were covered, and a
// trailing last-n segment. headers must be strictly increasing by number
// and must not include req.LastHeader itself.
//
// This is the FlyClient sampling check: a peer that forged a heavy block
// off-sample gets away with it unless the client happens to draw that
// exact height, so the client instead draws heights weighted by
// difficulty and the peer must exhibit the one block covering each drawn
// weight. A request difficulty that lands inside an earlier block's range
// and is skipped by the peer is exactly the cheat this function catches.
func CheckIfResponseIsMatched(req *ProveRequest, headers []VerifiableHeader) (MatchCounts, error) {
	var counts MatchCounts

	if len(headers) == 0 {
		return counts, ErrMalformedProtocolMessage
	}
	for i := 1; i < len(headers); i++ {
		if headers[i].Number <= headers[i-1].Number {
			return counts, ErrMalformedProtocolMessage
		}
	}

	reorgCount := 0
	for reorgCount < len(headers) && headers[reorgCount].Number < req.StartNumber {
		reorgCount++
	}
	if reorgCount != 0 {
		if uint64(reorgCount) != req.LastNBlocks && headers[0].Number != 1 {
			return counts, ErrInvalidReorgHeaders
		}
		if headers[reorgCount-1].Number != req.StartNumber-1 {
			return counts, ErrInvalidReorgHeaders
		}
	}
	counts.ReorgCount = reorgCount

	remaining := len(headers) - reorgCount
	var sampledCount, lastNCount int
	if uint64(remaining) > req.LastNBlocks {
		beforeBoundaryCount := 0
		for _, h := range headers {
			if h.TotalDifficulty.Cmp(req.DifficultyBoundary) < 0 {
				beforeBoundaryCount++
			}
		}
		if uint64(len(headers)-beforeBoundaryCount) > req.LastNBlocks {
			sampledCount = beforeBoundaryCount - reorgCount
			lastNCount = len(headers) - beforeBoundaryCount
		} else {
			sampledCount = remaining - int(req.LastNBlocks)
			lastNCount = int(req.LastNBlocks)
		}
	} else {
		sampledCount = 0
		lastNCount = remaining
	}
	counts.SampledCount = sampledCount
	counts.LastNCount = lastNCount

	if sampledCount == 0 && lastNCount > 0 {
		lastN := headers[reorgCount:]
		if lastN[0].Number != req.StartNumber {
			return counts, ErrMalformedProtocolMessage
		}
		if lastN[len(lastN)-1].Number != req.LastHeader.Number-1 {
			return counts, ErrMalformedProtocolMessage
		}
		return counts, nil
	}

	if sampledCount > 0 {
		sampledHeaders := headers[reorgCount : reorgCount+sampledCount]
		firstLastN := headers[reorgCount+sampledCount]
		firstLastNTD := firstLastN.TotalDifficulty

		di := 0
		for _, h := range sampledHeaders {
			parentTD := h.ParentChainRoot.TotalDifficulty
			currentTD := h.TotalDifficulty
			matchedAny := false
			for di < len(req.Difficulties) &&
				req.Difficulties[di].Cmp(firstLastNTD) < 0 &&
				req.Difficulties[di].Cmp(currentTD) <= 0 {
				d := req.Difficulties[di]
				if d.Cmp(parentTD) <= 0 {
					return counts, ErrInvalidSamples
				}
				di++
				matchedAny = true
			}
			if !matchedAny {
				return counts, ErrInvalidSamples
			}
		}
		firstLastNParentTD := firstLastN.ParentChainRoot.TotalDifficulty
		for ; di < len(req.Difficulties); di++ {
			if req.Difficulties[di].Cmp(firstLastNParentTD) <= 0 {
				return counts, ErrInvalidSamples
			}
		}
	}

	return counts, nil
}
