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

package wire

import (
	"encoding/binary"
	"io"

	"github.com/420integrated/go-420light/lightclient"
	"github.com/holiman/uint256"
)

// encoder accumulates a payload by appending fixed-layout fields. Writes
// never fail; framing handles the I/O.
type encoder struct {
	buf []byte
}

func (e *encoder) bool(v bool) {
	if v {
		e.buf = append(e.buf, 1)
	} else {
		e.buf = append(e.buf, 0)
	}
}

func (e *encoder) u32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) u64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
}

func (e *encoder) hash(h lightclient.Hash) {
	e.buf = append(e.buf, h[:]...)
}

// u256 appends v as 32 bytes little-endian. A nil value encodes as zero,
// so optional difficulties need no presence flag.
func (e *encoder) u256(v *uint256.Int) {
	var le [32]byte
	if v != nil {
		be := v.Bytes32()
		for i := 0; i < 32; i++ {
			le[i] = be[31-i]
		}
	}
	e.buf = append(e.buf, le[:]...)
}

func (e *encoder) digest(d lightclient.HeaderDigest) {
	e.hash(d.ChildrenHash)
	e.u256(d.TotalDifficulty)
	e.u64(d.StartNumber)
	e.u64(d.EndNumber)
}

func (e *encoder) verifiableHeader(h lightclient.VerifiableHeader) {
	e.u64(h.Number)
	e.u64(h.Epoch.Pack())
	e.u32(h.CompactTarget)
	e.hash(h.ParentHash)
	e.hash(h.Hash)
	e.u256(h.TotalDifficulty)
	e.digest(h.ParentChainRoot)
	e.hash(h.ExtraHash)
}

// decoder walks a payload with a cursor. The first short read sets
// failed and every later read returns a zero value, so message decoders
// stay straight-line and check failed once at the end.
type decoder struct {
	buf    []byte
	pos    int
	failed bool
}

func (d *decoder) take(n int) []byte {
	if d.failed || len(d.buf)-d.pos < n {
		d.failed = true
		return nil
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b
}

func (d *decoder) bool() bool {
	b := d.take(1)
	if b == nil {
		return false
	}
	switch b[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		d.failed = true
		return false
	}
}

func (d *decoder) u32() uint32 {
	b := d.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (d *decoder) u64() uint64 {
	b := d.take(8)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint64(b)
}

func (d *decoder) hash() lightclient.Hash {
	var h lightclient.Hash
	b := d.take(32)
	if b != nil {
		copy(h[:], b)
	}
	return h
}

func (d *decoder) u256() *uint256.Int {
	b := d.take(32)
	if b == nil {
		return new(uint256.Int)
	}
	var be [32]byte
	for i := 0; i < 32; i++ {
		be[i] = b[31-i]
	}
	return new(uint256.Int).SetBytes(be[:])
}

// listLen reads a u32 count prefix and sanity-bounds it.
func (d *decoder) listLen() int {
	n := d.u32()
	if n > maxListLen {
		d.failed = true
		return 0
	}
	return int(n)
}

func (d *decoder) digest() lightclient.HeaderDigest {
	var out lightclient.HeaderDigest
	out.ChildrenHash = d.hash()
	out.TotalDifficulty = d.u256()
	out.StartNumber = d.u64()
	out.EndNumber = d.u64()
	return out
}

func (d *decoder) verifiableHeader() lightclient.VerifiableHeader {
	var out lightclient.VerifiableHeader
	out.Number = d.u64()
	out.Epoch = lightclient.UnpackEpoch(d.u64())
	out.CompactTarget = d.u32()
	out.ParentHash = d.hash()
	out.Hash = d.hash()
	out.TotalDifficulty = d.u256()
	out.ParentChainRoot = d.digest()
	out.ExtraHash = d.hash()
	return out
}

// writeFrame emits the u32 LE length (code byte included), the code, and
// the payload as one Write so a message is either fully queued on the
// transport or not at all.
func writeFrame(w io.Writer, code byte, payload []byte) error {
	frame := make([]byte, 5+len(payload))
	binary.LittleEndian.PutUint32(frame[:4], uint32(len(payload)+1))
	frame[4] = code
	copy(frame[5:], payload)
	_, err := w.Write(frame)
	return err
}

// readFrame reads one length-prefixed frame and splits off the code byte.
func readFrame(r io.Reader) (byte, []byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return 0, nil, err
	}
	size := binary.LittleEndian.Uint32(lenBuf[:])
	if size == 0 || size > maxFrameSize {
		return 0, nil, lightclient.ErrMalformedProtocolMessage
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, err
	}
	return body[0], body[1:], nil
}
