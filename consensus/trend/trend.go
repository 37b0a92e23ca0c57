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

// Package trend classifies how the epoch difficulty moved between two
// headers and bounds how far it was allowed to move, the variable-
// difficulty analogue of go-420coin's ethash CalcDifficulty family, which
// instead derives a single deterministic next difficulty from a fixed
// adjustment formula. Here the chain's difficulty
// can swing by up to a factor of tau per epoch switch in either
// direction, and these functions bound that swing rather than recompute
// it.
package trend

import "github.com/holiman/uint256"

// Kind tags which direction the epoch difficulty moved.
type Kind int

const (
	Unchanged Kind = iota
	Increased
	Decreased
)

// Trend is the classified relationship between a start and an end epoch
// difficulty.
type Trend struct {
	Kind  Kind
	Start *uint256.Int
	End   *uint256.Int
}

// New classifies the trend between two epoch difficulties.
func New(startEpochDifficulty, endEpochDifficulty *uint256.Int) Trend {
	switch startEpochDifficulty.Cmp(endEpochDifficulty) {
	case 0:
		return Trend{Kind: Unchanged}
	case -1:
		return Trend{Kind: Increased, Start: startEpochDifficulty, End: endEpochDifficulty}
	default:
		return Trend{Kind: Decreased, Start: startEpochDifficulty, End: endEpochDifficulty}
	}
}

func saturatingMul(x, y *uint256.Int) *uint256.Int {
	if x.IsZero() || y.IsZero() {
		return new(uint256.Int)
	}
	z := new(uint256.Int).Mul(x, y)
	// Mul wraps mod 2^256; clamp when dividing back by x fails to recover y.
	if !new(uint256.Int).Div(z, x).Eq(y) {
		return new(uint256.Int).SetAllOne()
	}
	return z
}

// CheckTau reports whether the observed trend stays within the tau bound
// over epochsSwitchCount epoch switches:
//   - Increased: start * tau^N >= end
//   - Decreased: start / tau^N <= end
//   - Unchanged: always true
func (t Trend) CheckTau(tau uint64, epochsSwitchCount uint64) bool {
	switch t.Kind {
	case Unchanged:
		return true
	case Increased:
		tauU := uint256.NewInt().SetUint64(tau)
		endMax := new(uint256.Int).Set(t.Start)
		for i := uint64(0); i < epochsSwitchCount; i++ {
			endMax = saturatingMul(endMax, tauU)
		}
		return t.End.Cmp(endMax) <= 0
	default: // Decreased
		endMin := new(uint256.Int).Set(t.Start)
		tauU := uint256.NewInt().SetUint64(tau)
		for i := uint64(0); i < epochsSwitchCount; i++ {
			endMin = new(uint256.Int).Div(endMin, tauU)
		}
		return t.End.Cmp(endMin) >= 0
	}
}

// CalculateTauExponent finds the smallest k in [0, limit) such that
//   - Increased: start * tau^(k+1) >= end
//   - Decreased: start / tau^(k+1) <= end
//
// returning (0, true) for Unchanged, or (0, false) if no such k exists
// within the limit (the difficulty changed too fast to bound).
func (t Trend) CalculateTauExponent(tau, limit uint64) (k uint64, ok bool) {
	switch t.Kind {
	case Unchanged:
		return 0, true
	case Increased:
		tauU := uint256.NewInt().SetUint64(tau)
		tmp := new(uint256.Int).Set(t.Start)
		for k := uint64(0); k < limit; k++ {
			tmp = saturatingMul(tmp, tauU)
			if tmp.Cmp(t.End) >= 0 {
				return k, true
			}
		}
		return 0, false
	default: // Decreased
		tauU := uint256.NewInt().SetUint64(tau)
		tmp := new(uint256.Int).Set(t.Start)
		for k := uint64(0); k < limit; k++ {
			tmp = new(uint256.Int).Div(tmp, tauU)
			if tmp.Cmp(t.End) <= 0 {
				return k, true
			}
		}
		return 0, false
	}
}

// EstimatedLimit selects whether Split computes the minimum or maximum
// attainable aligned total difficulty.
type EstimatedLimit int

const (
	Min EstimatedLimit = iota
	Max
)

// Group tags an epoch-count partition with the trend it was assigned.
type Group struct {
	Increased bool
	Count     uint64
}

func (g Group) subtract1() Group {
	return Group{Increased: g.Increased, Count: g.Count - 1}
}

// Details is the (start-group, end-group) partition of n epoch switches
// produced by Split, applied in that order.
type Details struct {
	Start Group
	End   Group
}

// TotalEpochsCount returns Start.Count + End.Count.
func (d Details) TotalEpochsCount() uint64 {
	return d.Start.Count + d.End.Count
}

// RemoveLastEpoch drops one unit from the end-group (or the start-group if
// the end-group is already empty): the last epoch's contribution is
// already accounted for by the unaligned term in the total-difficulty
// bound, so the aligned term must not double count it.
func (d Details) RemoveLastEpoch() Details {
	if d.End.Count == 0 {
		return Details{Start: d.Start.subtract1(), End: d.End}
	}
	return Details{Start: d.Start, End: d.End.subtract1()}
}

// Split partitions n total epoch switches into a (start-group, end-group)
// pair such that, applied in the prescribed order, the total aligned
// difficulty takes its minimum (decrease-first then increase) or maximum
// (increase-first then decrease) value. The partition formulas are fixed
// protocol constants; both sides of the proof must agree on them.
func (t Trend) Split(limit EstimatedLimit, n, k uint64) Details {
	var increased, decreased uint64
	switch {
	case limit == Min && t.Kind == Unchanged:
		decreased = (n + 1) / 2
		increased = n - decreased
	case limit == Max && t.Kind == Unchanged:
		increased = (n + 1) / 2
		decreased = n - increased
	case limit == Min && t.Kind == Increased:
		decreased = (n - k + 1) / 2
		increased = n - decreased
	case limit == Max && t.Kind == Increased:
		increased = (n-k+1)/2 + k
		decreased = n - increased
	case limit == Min && t.Kind == Decreased:
		decreased = (n-k+1)/2 + k
		increased = n - decreased
	case limit == Max && t.Kind == Decreased:
		increased = (n - k + 1) / 2
		decreased = n - increased
	}
	if limit == Min {
		return Details{
			Start: Group{Increased: false, Count: decreased},
			End:   Group{Increased: true, Count: increased},
		}
	}
	return Details{
		Start: Group{Increased: true, Count: increased},
		End:   Group{Increased: false, Count: decreased},
	}
}

// CalculateTotalDifficultyLimit simulates the start-group then end-group in
// order, each epoch either dividing the running epoch difficulty by tau
// (decreased group) or saturating-multiplying it by tau (increased group),
// summing the result into total. Overflow in the running sum is fatal to
// the caller (signalled via ok=false) rather than silently wrapping.
func (t Trend) CalculateTotalDifficultyLimit(startEpochDifficulty *uint256.Int, tau uint64, details Details) (total *uint256.Int, ok bool) {
	curr := new(uint256.Int).Set(startEpochDifficulty)
	total = new(uint256.Int)
	tauU := uint256.NewInt().SetUint64(tau)
	ok = true
	for _, group := range []Group{details.Start, details.End} {
		for i := uint64(0); i < group.Count; i++ {
			if group.Increased {
				curr = saturatingMul(curr, tauU)
			} else {
				curr = new(uint256.Int).Div(curr, tauU)
			}
			sum := new(uint256.Int).Add(total, curr)
			// Add wraps mod 2^256; a wrapped sum is strictly below total.
			if sum.Cmp(total) < 0 {
				return total, false
			}
			total = sum
		}
	}
	return total, ok
}
