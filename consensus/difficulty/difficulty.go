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

// Package difficulty decodes a block's compact (nBits-style) proof-of-work
// target and converts between target and difficulty, the way go-420coin's
// ethash consensus engine checks a block's sealed hash against
// two256/difficulty, except here the target itself is packed into the
// header (a variable-difficulty chain) instead of being implied by a
// fixed adjustment formula.
package difficulty

import "github.com/holiman/uint256"

// MaxTarget is the largest representable 256-bit target, (2^256)-1.
var MaxTarget = new(uint256.Int).SetAllOne()

// CompactToTarget decodes a compact (nBits-style) representation into a
// full 256-bit target. The bottom 3 bytes are the mantissa, the top byte is
// the (signed, though negative is never legal here) exponent, counted in
// bytes. overflow is true when the decoded target does not fit in 256
// bits; callers must treat that as a malformed/adversarial header.
func CompactToTarget(compact uint32) (target *uint256.Int, overflow bool) {
	exponent := compact >> 24
	mantissa := uint256.NewInt().SetUint64(uint64(compact & 0x00ffffff))

	if exponent <= 3 {
		shift := uint(8 * (3 - exponent))
		return new(uint256.Int).Rsh(mantissa, shift), false
	}

	shift := uint(8 * (exponent - 3))
	// mantissa << shift overflows iff any mantissa bit would be pushed past
	// bit 255.
	if uint(mantissa.BitLen())+shift > 256 {
		return new(uint256.Int), true
	}
	return new(uint256.Int).Lsh(mantissa, shift), false
}

// TargetToDifficulty converts a PoW target into the equivalent difficulty,
// (2^256-1)/target. A zero target has no meaningful difficulty and yields
// zero rather than dividing by zero.
func TargetToDifficulty(target *uint256.Int) *uint256.Int {
	if target == nil || target.IsZero() {
		return new(uint256.Int)
	}
	return new(uint256.Int).Div(MaxTarget, target)
}

// CompactToDifficulty decodes a compact target directly into a difficulty
// value. An overflowing or zero target decodes to zero difficulty, which
// will fail every downstream PoW and tau check rather than panicking.
func CompactToDifficulty(compact uint32) *uint256.Int {
	target, overflow := CompactToTarget(compact)
	if overflow {
		return new(uint256.Int)
	}
	return TargetToDifficulty(target)
}

// HashMeetsTarget reports whether a block hash, read as a big-endian U256,
// is a valid proof-of-work for the given compact target: hash <= target.
func HashMeetsTarget(hash [32]byte, compact uint32) bool {
	target, overflow := CompactToTarget(compact)
	if overflow {
		return false
	}
	h := new(uint256.Int).SetBytes(hash[:])
	return h.Cmp(target) <= 0
}

// SaturatingMul multiplies x and y, clamping to MaxTarget instead of
// wrapping on overflow. Difficulty multiplies must saturate rather than
// panic or silently wrap on adversarial inputs.
func SaturatingMul(x, y *uint256.Int) *uint256.Int {
	if x.IsZero() || y.IsZero() {
		return new(uint256.Int)
	}
	z := new(uint256.Int).Mul(x, y)
	// Mul wraps mod 2^256; the product overflowed iff dividing it back by
	// x does not recover y.
	if !new(uint256.Int).Div(z, x).Eq(y) {
		return new(uint256.Int).Set(MaxTarget)
	}
	return z
}

// CheckedAdd adds x and y, returning ok=false on overflow instead of
// wrapping. Running totals (total difficulty accumulators) must use this
// and fail verification rather than silently wrap.
func CheckedAdd(x, y *uint256.Int) (sum *uint256.Int, ok bool) {
	z := new(uint256.Int).Add(x, y)
	// Add wraps mod 2^256; a wrapped sum is strictly below either operand.
	return z, z.Cmp(x) >= 0
}
