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
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommitter struct {
	committed map[string]ProveState
	failNext  bool
}

func newFakeCommitter() *fakeCommitter {
	return &fakeCommitter{committed: make(map[string]ProveState)}
}

func (c *fakeCommitter) CommitProveState(peerID string, state ProveState) error {
	if c.failNext {
		c.failNext = false
		return errors.New("commit failed")
	}
	c.committed[peerID] = state
	return nil
}

func newTestClient(store Committer) *LightClient {
	cfg := Config{Tau: 2, LastNBlocks: 3, MMRActivatedEpoch: 0, SampleCount: 4}
	return NewLightClient(cfg, NewPeers(), store)
}

func TestProcessSendLastStateProofNoopWhenNotAwaitingProof(t *testing.T) {
	lc := newTestClient(newFakeCommitter())
	slot := &PeerSlot{}
	verdict := lc.ProcessSendLastStateProof("p1", slot, SendLastStateProof{})
	assert.Equal(t, VerdictNoop, verdict.Kind)
}

func TestProcessSendLastStateProofRequireRecheckOnNewTipBeforeProof(t *testing.T) {
	lc := newTestClient(newFakeCommitter())
	slot := &PeerSlot{}
	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	oldTip := buildHeader(5, 500, hashN(4), 450, epoch)
	newTip := buildHeader(6, 550, oldTip.Hash, 500, epoch)

	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: &ProveRequest{LastHeader: oldTip, StartNumber: 0, LastNBlocks: 3}})

	verdict := lc.ProcessSendLastStateProof("p1", slot, SendLastStateProof{LastHeader: newTip})
	require.Equal(t, VerdictRequireRecheck, verdict.Kind)
	assert.Equal(t, newTip.Hash, verdict.NextRequest.LastHeader.Hash)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)
}

func TestProcessSendLastStateProofNoopOnProofForUnknownTip(t *testing.T) {
	lc := newTestClient(newFakeCommitter())
	slot := &PeerSlot{}
	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	wantTip := buildHeader(5, 500, hashN(4), 450, epoch)
	gotTip := buildHeader(6, 550, wantTip.Hash, 500, epoch)

	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: &ProveRequest{LastHeader: wantTip, StartNumber: 0, LastNBlocks: 3}})

	verdict := lc.ProcessSendLastStateProof("p1", slot, SendLastStateProof{
		LastHeader: gotTip,
		Proof:      []HeaderDigest{DigestFromHeader(wantTip.Header)},
	})
	assert.Equal(t, VerdictNoop, verdict.Kind)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)
}

func TestProcessSendLastStateProofAcceptsHonestProof(t *testing.T) {
	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	leaves, root := buildThreeLeafMMR(epoch)

	tip := buildHeader(3, 400, leaves[2].Hash, 300, epoch)
	tip.ParentChainRoot = root
	tip.ExtraHash = computeExtraHash(tip.Header, tip.ParentChainRoot)
	require.True(t, tip.IsValid(0))

	store := newFakeCommitter()
	lc := newTestClient(store)
	slot := &PeerSlot{}
	req := &ProveRequest{LastHeader: tip, StartNumber: 0, LastNBlocks: 3}
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: req})

	msg := SendLastStateProof{LastHeader: tip, Proof: nil, Headers: leaves}
	verdict := lc.ProcessSendLastStateProof("p1", slot, msg)

	require.Equal(t, VerdictAccept, verdict.Kind, "verdict: %s", spew.Sdump(verdict))
	assert.Equal(t, tip.Hash, verdict.ProveState.LastHeader.Hash)
	assert.Equal(t, StateProved, slot.State().Kind)
	committed, ok := store.committed["p1"]
	require.True(t, ok)
	assert.Equal(t, tip.Hash, committed.LastHeader.Hash)

	// Replaying the identical message after the commit finds no request
	// outstanding: the duplicate is dropped and the proved state stays.
	replay := lc.ProcessSendLastStateProof("p1", slot, msg)
	assert.Equal(t, VerdictNoop, replay.Kind)
	assert.Equal(t, StateProved, slot.State().Kind)
}

func TestProcessSendLastStateProofRejectsOnCorruptedProof(t *testing.T) {
	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	leaves, root := buildThreeLeafMMR(epoch)

	tip := buildHeader(3, 400, leaves[2].Hash, 300, epoch)
	tip.ParentChainRoot = root
	tip.ExtraHash = computeExtraHash(tip.Header, tip.ParentChainRoot)

	// Perturb one returned header's total difficulty: continuity (parent
	// hash/number/epoch) and proof-of-work are untouched by this field, so
	// only the MMR leaf digest, and therefore the recomputed root, is
	// affected.
	corrupted := make([]VerifiableHeader, len(leaves))
	copy(corrupted, leaves)
	corrupted[1].TotalDifficulty = u256(999)

	lc := newTestClient(newFakeCommitter())
	slot := &PeerSlot{}
	req := &ProveRequest{LastHeader: tip, StartNumber: 0, LastNBlocks: 3}
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: req})

	msg := SendLastStateProof{LastHeader: tip, Proof: nil, Headers: corrupted}
	verdict := lc.ProcessSendLastStateProof("p1", slot, msg)

	require.Equal(t, VerdictReject, verdict.Kind)
	assert.Equal(t, StatusInvalidProof, verdict.Status)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)
}

func TestProcessSendLastStateProofCommitFailureLeavesStateUntouched(t *testing.T) {
	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	leaves, root := buildThreeLeafMMR(epoch)

	tip := buildHeader(3, 400, leaves[2].Hash, 300, epoch)
	tip.ParentChainRoot = root
	tip.ExtraHash = computeExtraHash(tip.Header, tip.ParentChainRoot)

	store := newFakeCommitter()
	store.failNext = true
	lc := newTestClient(store)
	slot := &PeerSlot{}
	req := &ProveRequest{LastHeader: tip, StartNumber: 0, LastNBlocks: 3}
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: req})

	msg := SendLastStateProof{LastHeader: tip, Proof: nil, Headers: leaves}
	verdict := lc.ProcessSendLastStateProof("p1", slot, msg)

	require.Equal(t, VerdictReject, verdict.Kind)
	assert.Equal(t, StatusUnexpectedResponse, verdict.Status)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)
	_, ok := store.committed["p1"]
	assert.False(t, ok)
}

func TestProcessSendLastStateProofRejectsUntrustedState(t *testing.T) {
	lc := newTestClient(newFakeCommitter())
	slot := &PeerSlot{}
	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	tip := buildHeader(5, 500, hashN(4), 450, epoch)

	req := &ProveRequest{
		LastHeader:     tip,
		StartNumber:    0,
		LastNBlocks:    3,
		IfTrustedState: true,
		TrustedHash:    hashN(999),
	}
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: req})

	verdict := lc.ProcessSendLastStateProof("p1", slot, SendLastStateProof{LastHeader: tip})

	require.Equal(t, VerdictReject, verdict.Kind)
	assert.Equal(t, StatusNotTrustedState, verdict.Status)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)
}

// TestProcessSendLastStateProofRequireRecheckOnTauFailure builds a 4-leaf
// parent-chain MMR (positions 0,1,3,4; leaf 0 supplied as an opaque proof
// node rather than as one of the sampled headers, since a number-0 header
// carries no parent chain root for the sampling check to read a parent
// total difficulty from) where the sampled segment's epoch trend exceeds
// tau: every other check in the pipeline passes, so the verdict must come
// down to the tau soft failure alone.
func TestProcessSendLastStateProofRequireRecheckOnTauFailure(t *testing.T) {
	epochA := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	epochB := EpochNumberWithFraction{Number: 1, Index: 0, Length: 300}

	h0 := buildHeader(0, 100, Hash{}, 0, epochA)
	h1 := buildHeader(1, 200, h0.Hash, 100, epochA)
	h2 := buildHeader(2, 300, h1.Hash, 200, epochA)
	h3 := buildHeader(3, 400, h2.Hash, 300, epochB)
	h4 := buildHeader(4, 500, h3.Hash, 400, epochB)

	leaf0 := DigestFromHeader(h0.Header)
	leaf1 := DigestFromHeader(h1.Header)
	leaf2 := DigestFromHeader(h2.Header)
	leaf3 := DigestFromHeader(h3.Header)
	node01 := mergeDigests(leaf0, leaf1)
	node23 := mergeDigests(leaf2, leaf3)
	root := mergeDigests(node01, node23)

	h4.ParentChainRoot = root
	h4.ExtraHash = computeExtraHash(h4.Header, h4.ParentChainRoot)
	require.True(t, h4.IsValid(0))

	cfg := Config{Tau: 2, LastNBlocks: 1, MMRActivatedEpoch: 0, SampleCount: 2}
	lc := NewLightClient(cfg, NewPeers(), newFakeCommitter())
	slot := &PeerSlot{}
	req := &ProveRequest{
		LastHeader:         h4,
		StartNumber:        1,
		DifficultyBoundary: u256(1000),
		Difficulties:       []*uint256.Int{u256(150), u256(250)},
		LastNBlocks:        1,
	}
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: req})

	msg := SendLastStateProof{
		LastHeader: h4,
		Proof:      []HeaderDigest{leaf0},
		Headers:    []VerifiableHeader{h1, h2, h3},
	}

	verdict := lc.ProcessSendLastStateProof("p1", slot, msg)

	require.Equal(t, VerdictRequireRecheck, verdict.Kind)
	assert.True(t, verdict.NextRequest.SkipCheckTau)
	assert.Equal(t, h4.Hash, verdict.NextRequest.LastHeader.Hash)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)
}

// TestProcessSendLastStateProofFatalOnConfirmedLongFork drives a peer
// through both long-fork rounds: a first response that regresses total
// difficulty against a previously accepted tip earns a RequireRecheck
// rooted back at genesis, and a second response that still regresses
// against that same previous tip, now with LongForkDetected already set,
// earns the terminal Fatal verdict instead of another recheck.
func TestProcessSendLastStateProofFatalOnConfirmedLongFork(t *testing.T) {
	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	leaves, root := buildThreeLeafMMR(epoch)

	tip := buildHeader(3, 400, leaves[2].Hash, 300, epoch)
	tip.ParentChainRoot = root
	tip.ExtraHash = computeExtraHash(tip.Header, tip.ParentChainRoot)
	require.True(t, tip.IsValid(0))

	prevTip := buildHeader(9, 1000, hashN(8), 900, epoch)
	prevState := &ProveState{LastHeader: prevTip}

	lc := newTestClient(newFakeCommitter())
	slot := &PeerSlot{}
	req := &ProveRequest{LastHeader: tip, StartNumber: 0, LastNBlocks: 3}
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: req, ProveState: prevState})

	msg := SendLastStateProof{LastHeader: tip, Proof: nil, Headers: leaves}

	first := lc.ProcessSendLastStateProof("p1", slot, msg)
	require.Equal(t, VerdictRequireRecheck, first.Kind)
	assert.True(t, first.NextRequest.LongForkDetected)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)

	second := lc.ProcessSendLastStateProof("p1", slot, msg)
	require.Equal(t, VerdictFatal, second.Kind)
	assert.NotEmpty(t, second.Reason)
}

type fakeMessenger struct {
	sent []*ProveRequest
	err  error
}

func (m *fakeMessenger) SendGetLastStateProof(peerID string, req *ProveRequest) error {
	m.sent = append(m.sent, req)
	return m.err
}

func TestOnSendLastStateProofRejectsUnknownPeer(t *testing.T) {
	lc := newTestClient(newFakeCommitter())
	verdict := lc.OnSendLastStateProof("ghost", SendLastStateProof{}, &fakeMessenger{})
	require.Equal(t, VerdictReject, verdict.Kind)
	assert.Equal(t, StatusPeerIsNotOnProcess, verdict.Status)
}

// A recheck verdict must also go back out on the wire: the follow-up
// request stored on the slot and the one handed to the messenger are the
// same object.
func TestOnSendLastStateProofSendsRecheckRequest(t *testing.T) {
	lc := newTestClient(newFakeCommitter())
	require.NoError(t, lc.Peers().Register("p1"))
	slot, err := lc.Peers().Peer("p1")
	require.NoError(t, err)

	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	oldTip := buildHeader(5, 500, hashN(4), 450, epoch)
	newTip := buildHeader(6, 550, oldTip.Hash, 500, epoch)
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: &ProveRequest{LastHeader: oldTip, StartNumber: 0, LastNBlocks: 3}})

	messenger := &fakeMessenger{}
	verdict := lc.OnSendLastStateProof("p1", SendLastStateProof{LastHeader: newTip}, messenger)

	require.Equal(t, VerdictRequireRecheck, verdict.Kind)
	require.Len(t, messenger.sent, 1)
	assert.Same(t, verdict.NextRequest, messenger.sent[0])
	assert.Equal(t, newTip.Hash, messenger.sent[0].LastHeader.Hash)
}

// A messenger failure is logged, never escalated: the slot keeps the
// stored follow-up request and the verdict is unchanged, so the sweeper
// eventually flags the silent peer instead.
func TestOnSendLastStateProofToleratesSendFailure(t *testing.T) {
	lc := newTestClient(newFakeCommitter())
	require.NoError(t, lc.Peers().Register("p1"))
	slot, err := lc.Peers().Peer("p1")
	require.NoError(t, err)

	epoch := EpochNumberWithFraction{Number: 0, Index: 0, Length: 100}
	oldTip := buildHeader(5, 500, hashN(4), 450, epoch)
	newTip := buildHeader(6, 550, oldTip.Hash, 500, epoch)
	slot.setState(PeerState{Kind: StateAwaitingProof, ProveRequest: &ProveRequest{LastHeader: oldTip, StartNumber: 0, LastNBlocks: 3}})

	messenger := &fakeMessenger{err: errors.New("peer hung up")}
	verdict := lc.OnSendLastStateProof("p1", SendLastStateProof{LastHeader: newTip}, messenger)

	require.Equal(t, VerdictRequireRecheck, verdict.Kind)
	assert.Equal(t, StateAwaitingProof, slot.State().Kind)
	assert.Equal(t, newTip.Hash, slot.State().ProveRequest.LastHeader.Hash)
}
