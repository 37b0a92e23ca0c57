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
	"github.com/420integrated/go-420light/log"
	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"
)

// mmrDigestCacheSize bounds how many distinct (root, proof, headers)
// verdicts LightClient keeps memoized at once. One entry per in-flight or
// just-finished peer exchange comfortably fits well under this.
const mmrDigestCacheSize = 256

// TrustAnchor is the operator-pinned starting point every peer's first
// accepted tip must be reachable from: either genesis (Number == 0) or a
// specific pinned header.
type TrustAnchor struct {
	Number uint64
	Hash   Hash
}

// Config holds the tunables a deployment fixes at start-up.
type Config struct {
	Tau               uint64
	LastNBlocks       uint64
	MMRActivatedEpoch uint64
	SampleCount       int
	TrustAnchor       TrustAnchor
}

// Committer persists a peer's newly accepted ProveState. The dispatcher
// is the only caller; verification code (sampling.go, continuity.go,
// mmrproof.go, verify.go) never imports a Committer and performs no I/O,
// satisfying the "verification code is pure" requirement by construction.
type Committer interface {
	CommitProveState(peerID string, state ProveState) error
}

// PeerMessenger sends an outbound sampling request to a peer. The real
// implementation lives with the P2P transport, an external collaborator;
// lightclient only ever calls it with requests it just stored on the
// peer's slot, so a send failure leaves the state machine consistent
// (the peer simply never answers and the sweeper flags it stale).
type PeerMessenger interface {
	SendGetLastStateProof(peerID string, req *ProveRequest) error
}

// LightClient owns the peer registry and tunables and drives the prove-
// state machine. It holds no transport of its own; callers feed it
// inbound messages and send whatever ProveRequest it produces back out.
type LightClient struct {
	cfg         Config
	peers       *Peers
	store       Committer
	log         *log.Logger
	digestCache *lru.Cache
}

// NewLightClient wires a peer registry and persistence layer together
// under a fixed tunable set.
func NewLightClient(cfg Config, peers *Peers, store Committer) *LightClient {
	cache, err := lru.New(mmrDigestCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// mmrDigestCacheSize never is.
		panic(err)
	}
	return &LightClient{cfg: cfg, peers: peers, store: store, log: log.New("module", "lightclient"), digestCache: cache}
}

// Peers returns the client's peer registry.
func (lc *LightClient) Peers() *Peers { return lc.peers }

// NewProveRequest builds the sampling request a client sends a peer that
// just advertised newTip: start_number anchors the suffix/reorg boundary
// to the previous accepted tip (or the trust anchor if this is the first
// round), and difficulties are spaced evenly in total difficulty across
// the covered range (see sampleDifficulties). The exact draw is this client's own
// choice of distribution, not a wire-visible quantity: any peer can
// verify the response against whatever difficulties were actually sent.
func (lc *LightClient) NewProveRequest(newTip VerifiableHeader, prev *ProveState) *ProveRequest {
	req := &ProveRequest{LastHeader: newTip, LastNBlocks: lc.cfg.LastNBlocks}

	var startTD, tipTD *uint256.Int
	if prev != nil {
		req.StartNumber = prev.LastHeader.Number + 1
		startTD = prev.LastHeader.TotalDifficulty
	} else {
		req.StartNumber = lc.cfg.TrustAnchor.Number
		startTD = new(uint256.Int)
	}
	tipTD = newTip.TotalDifficulty

	req.DifficultyBoundary = tipTD
	req.Difficulties = sampleDifficulties(startTD, tipTD, lc.cfg.SampleCount)
	return req
}

// sampleDifficulties draws n strictly increasing difficulty thresholds in
// (start, end), evenly spaced by total difficulty with step
// (end-start)/(n+1). It returns nil when n <= 0 or when the span is too
// small to give a non-zero step.
func sampleDifficulties(start, end *uint256.Int, n int) []*uint256.Int {
	if n <= 0 {
		return nil
	}
	span := new(uint256.Int).Sub(end, start)
	step := new(uint256.Int).Div(span, uint256.NewInt().SetUint64(uint64(n+1)))
	if step.IsZero() {
		return nil
	}
	out := make([]*uint256.Int, 0, n)
	acc := new(uint256.Int).Set(start)
	for i := 0; i < n; i++ {
		acc = new(uint256.Int).Add(acc, step)
		out = append(out, new(uint256.Int).Set(acc))
	}
	return out
}

// detectLongFork reports whether committing newState over prev would
// regress total difficulty or break the history prev already anchored:
// either condition means the peer's new tip is not a legitimate extension
// of what this client previously accepted from it.
func detectLongFork(prev *ProveState, newState ProveState, reorgHeaders []VerifiableHeader) bool {
	if prev == nil {
		return false
	}
	if newState.LastHeader.TotalDifficulty.Cmp(prev.LastHeader.TotalDifficulty) < 0 {
		return true
	}
	if len(reorgHeaders) == 0 {
		return false
	}
	// A non-empty reorg segment must start no later than the block right
	// after prev's previously accepted tip; one that starts later means
	// prev's chain was abandoned deeper than this response's reorg window
	// reaches.
	if reorgHeaders[0].Number > prev.LastHeader.Number+1 {
		return true
	}
	return false
}

// backfillLastHeaders reconciles the last-n tail a peer actually returned
// (lastNTail, exactly reorgCount+sampledCount.. through the end of the
// response) against the fixed want=LastNBlocks this client asks every
// peer to keep proving: too many is trimmed down from the front, too few
// is padded from whichever older last-n history is available (the
// previous accepted ProveState's own tail when this response carried no
// reorg, or the current response's own reorg prefix when it did), and an
// exact match passes through untouched.
func backfillLastHeaders(want uint64, lastNTail []VerifiableHeader, reorgCount int, reorgHeaders []VerifiableHeader, prev *ProveState) ([]VerifiableHeader, error) {
	lastNCount := len(lastNTail)
	switch {
	case lastNCount == int(want):
		return lastNTail, nil
	case lastNCount > int(want):
		splitAt := lastNCount - int(want)
		return lastNTail[splitAt:], nil
	default:
		required := int(want) - lastNCount
		if prev != nil {
			var old []VerifiableHeader
			if reorgCount == 0 {
				old = prev.LastHeaders
			} else {
				old = reorgHeaders
			}
			// last_headers from a previous prove state are empty iff the
			// chain only had one block after MMR activation: nothing to
			// pad with, so the short tail is accepted as-is.
			if len(old) == 0 {
				return lastNTail, nil
			}
			skip := len(old) - required
			if skip < 0 {
				skip = 0
			}
			combined := make([]VerifiableHeader, 0, len(old)-skip+lastNCount)
			combined = append(combined, old[skip:]...)
			combined = append(combined, lastNTail...)
			return combined, nil
		}
		if reorgCount == 0 {
			return lastNTail, nil
		}
		// No previous prove state but the response carried reorg blocks:
		// there is nothing honest for them to rebind against, so the peer
		// is at fault.
		return nil, ErrInvalidReorgHeaders
	}
}
