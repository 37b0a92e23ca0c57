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

import "github.com/holiman/uint256"

// SendLastStateProof is the inbound wire message a peer answers a
// GetLastStateProof with: its current tip, the MMR proof binding that tip
// to every ancestor, and the headers the sampling request asked for.
type SendLastStateProof struct {
	LastHeader VerifiableHeader
	Proof      []HeaderDigest
	Headers    []VerifiableHeader
}

// Verdict is the outcome of processing one SendLastStateProof, a
// {Accept, RequireRecheck, Reject, Noop, Fatal} sum type rendered the Go
// way: Kind selects the branch, and at most one of its fields is
// meaningful (Noop carries none).
type Verdict struct {
	Kind VerdictKind

	// Accept
	ProveState ProveState
	// RequireRecheck
	NextRequest *ProveRequest
	// Reject
	Status StatusCode
	// Fatal
	Reason string
}

// VerdictKind tags which branch of Verdict is populated.
type VerdictKind int

const (
	VerdictAccept VerdictKind = iota
	VerdictRequireRecheck
	VerdictReject
	VerdictNoop
	VerdictFatal
)

// ProcessSendLastStateProof drives one peer's prove-state machine through
// an inbound SendLastStateProof. It does no network I/O and changes slot
// only through its final setState; on the accept path verifyAndCommit
// persists the new ProveState through lc.store (the Committer) before
// that setState. The caller (the per-peer message-processing task, the
// role a protocol peer's readLoop plays) is responsible for actually
// sending NextRequest back out.
func (lc *LightClient) ProcessSendLastStateProof(peerID string, slot *PeerSlot, msg SendLastStateProof) Verdict {
	state := slot.State()

	if state.Kind != StateAwaitingProof {
		// Discovered or already-Proved peers with no outstanding request:
		// an unsolicited reply is dropped, not an error, since a slow
		// peer's stale answer to a superseded/cancelled request is
		// ordinary traffic, not a protocol violation.
		lc.log.Debug("dropping unsolicited proof", "state", state.Kind)
		return Verdict{Kind: VerdictNoop}
	}
	req := state.ProveRequest

	if req.IfTrustedState {
		if req.TrustedHash != msg.LastHeader.Hash {
			return Verdict{Kind: VerdictReject, Status: StatusNotTrustedState}
		}
	}

	proofEmpty := len(msg.Proof) == 0
	sameTip := msg.LastHeader.Hash == req.LastHeader.Hash

	switch {
	case proofEmpty && !sameTip:
		// Peer advertised a new tip before answering our sampling
		// request: replace the request with one rooted at the new tip,
		// keeping whatever accepted state we already have.
		next := lc.NewProveRequest(msg.LastHeader, state.ProveState)
		slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: next, ProveState: state.ProveState})
		return Verdict{Kind: VerdictRequireRecheck, NextRequest: next}

	case !proofEmpty && !sameTip:
		lc.log.Warn("proof for unknown tip", "want", req.LastHeader.Hash, "got", msg.LastHeader.Hash)
		return Verdict{Kind: VerdictNoop}
	}

	// sameTip && (proof present or empty): run the full check pipeline.
	return lc.verifyAndCommit(peerID, slot, state, req, msg)
}

// OnSendLastStateProof is the transport-facing wrapper around
// ProcessSendLastStateProof: it resolves the peer's slot, runs the state
// machine, and sends any follow-up sampling request back out through
// messenger. Unknown peers report StatusPeerIsNotOnProcess. The Verdict
// is returned unchanged so the caller still sees fatal outcomes and can
// escalate them (verification code never exits the process itself).
func (lc *LightClient) OnSendLastStateProof(peerID string, msg SendLastStateProof, messenger PeerMessenger) Verdict {
	slot, err := lc.peers.Peer(peerID)
	if err != nil {
		return Verdict{Kind: VerdictReject, Status: StatusPeerIsNotOnProcess}
	}
	verdict := lc.ProcessSendLastStateProof(peerID, slot, msg)
	if verdict.Kind == VerdictRequireRecheck && verdict.NextRequest != nil {
		if err := messenger.SendGetLastStateProof(peerID, verdict.NextRequest); err != nil {
			lc.log.Warn("failed to send recheck request", "peer", peerID, "err", err)
		}
	}
	return verdict
}

// verifyAndCommit runs the full response-validation pipeline against req
// and msg in the same order and with the same branch conditions as the
// reference prove-state transition: every header's chain root and proof
// of work are checked regardless of whether tau ends up satisfied, and
// the tau outcome is only acted on at the very end, after continuity,
// the MMR proof and total difficulty have all passed. A tau failure
// never short-circuits those downstream checks - a peer that also got
// continuity or the proof wrong is rejected outright rather than just
// asked to recheck tau.
func (lc *LightClient) verifyAndCommit(peerID string, slot *PeerSlot, state PeerState, req *ProveRequest, msg SendLastStateProof) Verdict {
	if !msg.LastHeader.IsValid(lc.cfg.MMRActivatedEpoch) {
		return lc.reject(slot, state, StatusInvalidProof)
	}

	counts, err := CheckIfResponseIsMatched(req, msg.Headers)
	if err != nil {
		return lc.reject(slot, state, Status(err))
	}

	for _, h := range msg.Headers {
		if !h.IsValid(lc.cfg.MMRActivatedEpoch) {
			return lc.reject(slot, state, StatusInvalidProof)
		}
	}
	if err := CheckPoWForHeaders(msg.Headers); err != nil {
		return lc.reject(slot, state, Status(err))
	}

	failedToVerifyTau := false
	if !req.SkipCheckTau && counts.SampledCount != 0 {
		start := msg.Headers[counts.ReorgCount]
		end := msg.Headers[len(msg.Headers)-1]
		tauOK, err := VerifyTau(start.Epoch, end.Epoch, start.CompactTarget, end.CompactTarget, lc.cfg.Tau)
		if err != nil {
			return lc.reject(slot, state, Status(err))
		}
		failedToVerifyTau = !tauOK
	}

	reorgHeaders := msg.Headers[:counts.ReorgCount]
	if counts.ReorgCount != 0 {
		if err := CheckContinuousHeaders(reorgHeaders[:len(reorgHeaders)-1]); err != nil {
			return lc.reject(slot, state, Status(err))
		}
	}
	if err := CheckContinuousHeaders(msg.Headers[counts.ReorgCount+counts.SampledCount:]); err != nil {
		return lc.reject(slot, state, Status(err))
	}

	if err := lc.verifyMMRProofCached(msg.LastHeader, msg.Proof, msg.Headers); err != nil {
		return lc.reject(slot, state, Status(err))
	}

	// If there are no sampled headers, PoW plus continuity already rule
	// out a cheaper chain: total difficulty adds nothing in that case.
	if counts.SampledCount != 0 {
		if prev := state.ProveState; prev != nil {
			if err := VerifyTotalDifficulty(
				prev.LastHeader.Epoch, prev.LastHeader.CompactTarget, prev.LastHeader.TotalDifficulty,
				msg.LastHeader.Epoch, msg.LastHeader.CompactTarget, msg.LastHeader.TotalDifficulty,
				lc.cfg.Tau,
			); err != nil {
				return lc.reject(slot, state, Status(err))
			}
		}
	}

	if failedToVerifyTau {
		recheck := *req
		recheck.LastHeader = msg.LastHeader
		recheck.SkipCheckTau = true
		slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: &recheck, ProveState: state.ProveState})
		return Verdict{Kind: VerdictRequireRecheck, NextRequest: &recheck}
	}

	lastNTail := msg.Headers[len(msg.Headers)-counts.LastNCount:]
	lastHeaders, err := backfillLastHeaders(lc.cfg.LastNBlocks, lastNTail, counts.ReorgCount, reorgHeaders, state.ProveState)
	if err != nil {
		return lc.reject(slot, state, Status(err))
	}

	newState := ProveState{
		LastHeader:       msg.LastHeader,
		ReorgLastHeaders: reorgHeaders,
		LastHeaders:      lastHeaders,
	}

	if !req.IfTrustedState && detectLongFork(state.ProveState, newState, reorgHeaders) {
		if req.LongForkDetected {
			return Verdict{Kind: VerdictFatal, Reason: "long fork confirmed after genesis re-probe"}
		}
		recheck := &ProveRequest{
			LastHeader:         msg.LastHeader,
			StartNumber:        lc.cfg.TrustAnchor.Number,
			DifficultyBoundary: msg.LastHeader.TotalDifficulty,
			Difficulties:       sampleDifficulties(new(uint256.Int), msg.LastHeader.TotalDifficulty, lc.cfg.SampleCount),
			LastNBlocks:        req.LastNBlocks,
			LongForkDetected:   true,
		}
		slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: recheck, ProveState: state.ProveState})
		return Verdict{Kind: VerdictRequireRecheck, NextRequest: recheck}
	}

	if err := lc.store.CommitProveState(peerID, newState); err != nil {
		// Commit failure leaves the previous AwaitingProof/ProveState in
		// place: no partial transition is ever observable.
		return lc.reject(slot, state, StatusUnexpectedResponse)
	}

	slot.setState(PeerState{Kind: StateProved, ProveState: &newState})
	return Verdict{Kind: VerdictAccept, ProveState: newState}
}

// reject reports a peer-fault verdict without touching slot's committed
// state: the previous ProveRequest/ProveState, whichever was active,
// remains exactly as it was.
func (lc *LightClient) reject(slot *PeerSlot, state PeerState, code StatusCode) Verdict {
	lc.log.Debug("rejecting proof", "code", code)
	return Verdict{Kind: VerdictReject, Status: code}
}
