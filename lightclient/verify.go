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
	"github.com/420integrated/go-420light/consensus/difficulty"
	"github.com/420integrated/go-420light/consensus/trend"
	"github.com/holiman/uint256"
)

// VerifyTau checks the τ bound between two epochs' compact targets. Same
// epoch requires identical targets (a mid-epoch retarget is never legal).
// Different epochs delegate to trend.CheckTau; ok=false there is a soft
// failure the caller should answer with RequireRecheck, not an error.
func VerifyTau(startEpoch, endEpoch EpochNumberWithFraction, startCompact, endCompact uint32, tau uint64) (ok bool, err error) {
	if startEpoch.Number == endEpoch.Number {
		if startCompact != endCompact {
			return false, ErrInvalidCompactTarget
		}
		return true, nil
	}

	startEpochDiff := epochDifficulty(startCompact, startEpoch.Length)
	endEpochDiff := epochDifficulty(endCompact, endEpoch.Length)
	t := trend.New(startEpochDiff, endEpochDiff)
	n := endEpoch.Number - startEpoch.Number
	return t.CheckTau(tau, n), nil
}

// VerifyTotalDifficulty checks that the accumulated total difficulty
// between two accepted tips is exactly explained by the block difficulty
// path between them: either a fixed per-block amount within one epoch, or
// a range bounded by the minimum/maximum aligned difficulty the epochs in
// between could have produced under τ.
func VerifyTotalDifficulty(
	startEpoch EpochNumberWithFraction, startCompact uint32, startTD *uint256.Int,
	endEpoch EpochNumberWithFraction, endCompact uint32, endTD *uint256.Int,
	tau uint64,
) error {
	if startTD.Cmp(endTD) > 0 {
		return ErrInvalidTotalDifficulty
	}
	got := new(uint256.Int).Sub(endTD, startTD)
	startBlockDiff := difficulty.CompactToDifficulty(startCompact)

	if startEpoch.Number == endEpoch.Number {
		indexDelta := endEpoch.Index - startEpoch.Index
		want := new(uint256.Int).Mul(startBlockDiff, uint256.NewInt().SetUint64(indexDelta))
		if got.Cmp(want) != 0 {
			return ErrInvalidTotalDifficulty
		}
		return nil
	}

	endBlockDiff := difficulty.CompactToDifficulty(endCompact)
	n := endEpoch.Number - startEpoch.Number
	startEpochDiff := epochDifficulty(startCompact, startEpoch.Length)
	endEpochDiff := epochDifficulty(endCompact, endEpoch.Length)
	t := trend.New(startEpochDiff, endEpochDiff)

	k, ok := t.CalculateTauExponent(tau, n)
	if !ok {
		return ErrInvalidTotalDifficulty
	}

	unaligned := new(uint256.Int).Add(
		new(uint256.Int).Mul(startBlockDiff, uint256.NewInt().SetUint64(startEpoch.Length-startEpoch.Index-1)),
		new(uint256.Int).Mul(endBlockDiff, uint256.NewInt().SetUint64(endEpoch.Index+1)),
	)

	if n == 1 {
		if got.Cmp(unaligned) != 0 {
			return ErrInvalidTotalDifficulty
		}
		return nil
	}

	minDetails := t.Split(trend.Min, n, k).RemoveLastEpoch()
	maxDetails := t.Split(trend.Max, n, k).RemoveLastEpoch()

	alignedMin, ok1 := t.CalculateTotalDifficultyLimit(startEpochDiff, tau, minDetails)
	alignedMax, ok2 := t.CalculateTotalDifficultyLimit(startEpochDiff, tau, maxDetails)
	if !ok1 || !ok2 {
		return ErrInvalidTotalDifficulty
	}

	lower := new(uint256.Int).Add(unaligned, alignedMin)
	upper := new(uint256.Int).Add(unaligned, alignedMax)
	if got.Cmp(lower) < 0 || got.Cmp(upper) > 0 {
		return ErrInvalidTotalDifficulty
	}
	return nil
}

func epochDifficulty(compact uint32, epochLength uint64) *uint256.Int {
	blockDiff := difficulty.CompactToDifficulty(compact)
	return new(uint256.Int).Mul(blockDiff, uint256.NewInt().SetUint64(epochLength))
}
