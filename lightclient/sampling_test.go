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
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testEpoch = EpochNumberWithFraction{Number: 0, Index: 0, Length: 2000}

// Honest suffix, no sampling at all.
func TestCheckIfResponseIsMatchedHonestSuffixNoSampling(t *testing.T) {
	headers := buildChain(1000, 3, 900, 10, testEpoch) // numbers 1000,1001,1002, td 910,920,930
	lastHeader := buildHeader(1003, 940, headers[2].Hash, 930, testEpoch)

	req := &ProveRequest{
		LastHeader:         lastHeader,
		StartNumber:        1000,
		LastNBlocks:        3,
		DifficultyBoundary: u256(940),
	}

	counts, err := CheckIfResponseIsMatched(req, headers)
	require.NoError(t, err)
	assert.Equal(t, MatchCounts{ReorgCount: 0, SampledCount: 0, LastNCount: 3}, counts)
}

// Honest response with samples covering four drawn difficulties, one
// per sampled header. StartNumber sits at genesis so every returned
// header before the tip counts as sampled/last-n, never reorg.
func TestCheckIfResponseIsMatchedHonestWithSamples(t *testing.T) {
	h500 := buildHeader(500, 120, hashN(499), 90, testEpoch)
	h700 := buildHeader(700, 220, h500.Hash, 120, testEpoch)
	h900 := buildHeader(900, 350, h700.Hash, 220, testEpoch)
	h999 := buildHeader(999, 480, h900.Hash, 350, testEpoch)
	h1000 := buildHeader(1000, 490, h999.Hash, 480, testEpoch)
	h1001 := buildHeader(1001, 500, h1000.Hash, 490, testEpoch)
	lastHeader := buildHeader(1002, 510, h1001.Hash, 500, testEpoch)

	headers := []VerifiableHeader{h500, h700, h900, h999, h1000, h1001}
	req := &ProveRequest{
		LastHeader:         lastHeader,
		StartNumber:        0,
		LastNBlocks:        2,
		DifficultyBoundary: u256(500),
		Difficulties:       []*uint256.Int{u256(100), u256(200), u256(300), u256(400)},
	}

	counts, err := CheckIfResponseIsMatched(req, headers)
	require.NoError(t, err)
	assert.Equal(t, MatchCounts{ReorgCount: 0, SampledCount: 4, LastNCount: 2}, counts)
}

// Block 700, the one whose (parent, current] total-difficulty range
// covers drawn difficulty 200, is missing. Block 900's own range starts
// strictly after 220, so it cannot cover 200 either: no header does, and
// the sample is unmatched.
func TestCheckIfResponseIsMatchedMissingSample(t *testing.T) {
	h500 := buildHeader(500, 120, hashN(499), 90, testEpoch)
	h900 := buildHeader(900, 350, h500.Hash, 220, testEpoch)
	h999 := buildHeader(999, 480, h900.Hash, 350, testEpoch)
	h1000 := buildHeader(1000, 490, h999.Hash, 480, testEpoch)
	h1001 := buildHeader(1001, 500, h1000.Hash, 490, testEpoch)
	lastHeader := buildHeader(1002, 510, h1001.Hash, 500, testEpoch)

	headers := []VerifiableHeader{h500, h900, h999, h1000, h1001}
	req := &ProveRequest{
		LastHeader:         lastHeader,
		StartNumber:        0,
		LastNBlocks:        2,
		DifficultyBoundary: u256(500),
		Difficulties:       []*uint256.Int{u256(100), u256(200), u256(300), u256(400)},
	}

	_, err := CheckIfResponseIsMatched(req, headers)
	assert.ErrorIs(t, err, ErrInvalidSamples)
}

// A leftover drawn difficulty that falls in (firstLastNParentTD,
// firstLastNTD] is legitimately covered by the first last_n header itself,
// not by any sampled header, and must be accepted: 150 falls in (100,200].
func TestCheckIfResponseIsMatchedLeftoverDifficultyCoveredByFirstLastN(t *testing.T) {
	a := buildHeader(500, 100, hashN(499), 0, testEpoch)
	b := buildHeader(501, 200, a.Hash, 100, testEpoch)
	lastHeader := buildHeader(502, 210, b.Hash, 200, testEpoch)

	req := &ProveRequest{
		LastHeader:         lastHeader,
		StartNumber:        0,
		LastNBlocks:        1,
		DifficultyBoundary: u256(200),
		Difficulties:       []*uint256.Int{u256(50), u256(150)},
	}

	counts, err := CheckIfResponseIsMatched(req, []VerifiableHeader{a, b})
	require.NoError(t, err)
	assert.Equal(t, MatchCounts{ReorgCount: 0, SampledCount: 1, LastNCount: 1}, counts)
}

// A reorg prefix whose length does not match last_n_blocks and whose
// first header is not block 1 is rejected.
func TestCheckIfResponseIsMatchedInvalidReorgPrefix(t *testing.T) {
	reorg := buildChain(1030, 10, 1029000, 10, testEpoch)  // 1030..1039, last td 1029100
	suffix := buildChain(1040, 10, 1029100, 10, testEpoch) // 1040..1049, last td 1029200
	lastHeader := buildHeader(1050, 1029210, suffix[len(suffix)-1].Hash, 1029200, testEpoch)

	headers := append(append([]VerifiableHeader{}, reorg...), suffix...)
	req := &ProveRequest{
		LastHeader:  lastHeader,
		StartNumber: 1040,
		LastNBlocks: 5, // reorg has 10 headers, neither matches LastNBlocks nor starts at block 1
	}

	_, err := CheckIfResponseIsMatched(req, headers)
	assert.ErrorIs(t, err, ErrInvalidReorgHeaders)
}

func TestCheckIfResponseIsMatchedValidReorgPrefix(t *testing.T) {
	reorg := buildChain(1030, 10, 1029000, 10, testEpoch)
	suffix := buildChain(1040, 10, 1029100, 10, testEpoch)
	lastHeader := buildHeader(1050, 1029210, suffix[len(suffix)-1].Hash, 1029200, testEpoch)

	headers := append(append([]VerifiableHeader{}, reorg...), suffix...)
	req := &ProveRequest{
		LastHeader:  lastHeader,
		StartNumber: 1040,
		LastNBlocks: 10,
	}

	counts, err := CheckIfResponseIsMatched(req, headers)
	require.NoError(t, err)
	assert.Equal(t, 10, counts.ReorgCount)
	assert.Equal(t, 10, counts.LastNCount)
}

func TestCheckIfResponseIsMatchedRejectsEmptyResponse(t *testing.T) {
	req := &ProveRequest{StartNumber: 10, LastNBlocks: 1}
	_, err := CheckIfResponseIsMatched(req, nil)
	assert.ErrorIs(t, err, ErrMalformedProtocolMessage)
}

func TestCheckIfResponseIsMatchedRejectsNonIncreasingHeaders(t *testing.T) {
	h1 := buildHeader(10, 100, hashN(9), 90, testEpoch)
	h2 := buildHeader(10, 100, hashN(9), 90, testEpoch)
	req := &ProveRequest{StartNumber: 10, LastNBlocks: 5}
	_, err := CheckIfResponseIsMatched(req, []VerifiableHeader{h1, h2})
	assert.ErrorIs(t, err, ErrMalformedProtocolMessage)
}

// Counts always sum to |H|. A zero difficulty
// boundary with no drawn difficulties puts every header in the last-n
// segment, the simplest case in which the sum is easy to hand-check.
func TestCheckIfResponseIsMatchedCountsSumToLength(t *testing.T) {
	headers := buildChain(1000, 6, 900, 10, testEpoch)
	lastHeader := buildHeader(1006, 970, headers[5].Hash, 960, testEpoch)
	req := &ProveRequest{
		LastHeader:         lastHeader,
		StartNumber:        1000,
		LastNBlocks:        4,
		DifficultyBoundary: u256(0),
	}
	counts, err := CheckIfResponseIsMatched(req, headers)
	require.NoError(t, err)
	assert.Equal(t, MatchCounts{ReorgCount: 0, SampledCount: 0, LastNCount: 6}, counts)
	assert.Equal(t, len(headers), counts.ReorgCount+counts.SampledCount+counts.LastNCount)
}
