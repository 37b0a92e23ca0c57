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

// Package wire encodes and decodes the light_client protocol messages as
// length-prefixed little-endian frames: a u32 length counting the code
// byte and the payload, a one-byte message code, then the payload. Integers are u64 LE, 256-bit values are
// 32-byte LE, lists carry a u32 count prefix. The layout is bit-exact and
// position-fixed; there is no schema negotiation, matching the host
// chain's frozen message encoding.
package wire

import (
	"io"

	"github.com/420integrated/go-420light/lightclient"
	"github.com/holiman/uint256"
)

// Message codes. Frozen: appending new codes is allowed, renumbering is
// not.
const (
	GetLastStateMsg          = 0x00
	SendLastStateMsg         = 0x01
	GetLastStateProofMsg     = 0x02
	SendLastStateProofMsg    = 0x03
	GetTransactionsProofMsg  = 0x04
	SendTransactionsProofMsg = 0x05
)

// maxFrameSize bounds a single inbound frame. A full last-n response with
// a deep MMR proof stays well under 1 MiB; anything approaching this cap
// is a peer trying to make the decoder allocate, not a legitimate proof.
const maxFrameSize = 8 * 1024 * 1024

// maxListLen bounds every decoded list independently of the frame size,
// so a tiny frame can't claim a huge count and trigger a large
// pre-allocation before the element reads start failing.
const maxListLen = 1 << 20

// Message is one decoded protocol message; the concrete type identifies
// which.
type Message interface {
	// Code returns the message's wire code.
	Code() byte
}

// GetLastState asks a peer for its current tip, optionally subscribing to
// future tip updates.
type GetLastState struct {
	Subscribe bool
}

// SendLastState is a peer's (possibly unsolicited, when subscribed)
// advertisement of its current tip.
type SendLastState struct {
	LastHeader lightclient.VerifiableHeader
}

// GetLastStateProof is the sampling request: prove the tip at LastHash by
// returning the sampled, reorg and last-n headers plus an MMR proof
// binding them to the tip's parent chain root.
type GetLastStateProof struct {
	LastHash           lightclient.Hash
	StartNumber        uint64
	LastNBlocks        uint64
	DifficultyBoundary *uint256.Int
	Difficulties       []*uint256.Int
}

// SendLastStateProof is the peer's answer to a GetLastStateProof. Its
// fields mirror lightclient.SendLastStateProof exactly; Response converts
// so transport code hands the decoded form straight to
// LightClient.OnSendLastStateProof.
type SendLastStateProof struct {
	LastHeader lightclient.VerifiableHeader
	Proof      []lightclient.HeaderDigest
	Headers    []lightclient.VerifiableHeader
}

// Response converts the decoded message into the dispatcher's input type.
func (m SendLastStateProof) Response() lightclient.SendLastStateProof {
	return lightclient.SendLastStateProof(m)
}

// GetTransactionsProof asks for a merkle proof that the listed
// transactions are committed in blocks under the tip at LastHash.
type GetTransactionsProof struct {
	LastHash lightclient.Hash
	TxHashes []lightclient.Hash
}

// SendTransactionsProof answers a GetTransactionsProof: the tip header,
// the MMR proof for the blocks containing the transactions, and the
// hashes actually proven.
type SendTransactionsProof struct {
	LastHeader lightclient.VerifiableHeader
	Proof      []lightclient.HeaderDigest
	TxHashes   []lightclient.Hash
}

func (GetLastState) Code() byte          { return GetLastStateMsg }
func (SendLastState) Code() byte         { return SendLastStateMsg }
func (GetLastStateProof) Code() byte     { return GetLastStateProofMsg }
func (SendLastStateProof) Code() byte    { return SendLastStateProofMsg }
func (GetTransactionsProof) Code() byte  { return GetTransactionsProofMsg }
func (SendTransactionsProof) Code() byte { return SendTransactionsProofMsg }

// GetLastStateProofFromRequest projects a ProveRequest onto its wire
// form. The request's flags (skip_check_tau, long_fork_detected,
// if_trusted_state) are client-local bookkeeping and never travel.
func GetLastStateProofFromRequest(req *lightclient.ProveRequest) *GetLastStateProof {
	return &GetLastStateProof{
		LastHash:           req.LastHeader.Hash,
		StartNumber:        req.StartNumber,
		LastNBlocks:        req.LastNBlocks,
		DifficultyBoundary: req.DifficultyBoundary,
		Difficulties:       req.Difficulties,
	}
}

// WriteMessage frames and writes one message.
func WriteMessage(w io.Writer, msg Message) error {
	var e encoder
	switch m := msg.(type) {
	case GetLastState:
		e.bool(m.Subscribe)
	case *GetLastState:
		e.bool(m.Subscribe)
	case SendLastState:
		e.verifiableHeader(m.LastHeader)
	case *SendLastState:
		e.verifiableHeader(m.LastHeader)
	case GetLastStateProof:
		encodeGetLastStateProof(&e, &m)
	case *GetLastStateProof:
		encodeGetLastStateProof(&e, m)
	case GetTransactionsProof:
		encodeGetTransactionsProof(&e, &m)
	case *GetTransactionsProof:
		encodeGetTransactionsProof(&e, m)
	case SendLastStateProof:
		encodeSendLastStateProof(&e, &m)
	case *SendLastStateProof:
		encodeSendLastStateProof(&e, m)
	case SendTransactionsProof:
		encodeSendTransactionsProof(&e, &m)
	case *SendTransactionsProof:
		encodeSendTransactionsProof(&e, m)
	default:
		return lightclient.ErrMalformedProtocolMessage
	}
	return writeFrame(w, msg.Code(), e.buf)
}

// ReadMessage reads and decodes one framed message. Decode failures of
// any kind, including unknown codes and trailing garbage, report
// lightclient.ErrMalformedProtocolMessage so the dispatcher can forward
// the matching status to the peer without inspecting the error.
func ReadMessage(r io.Reader) (Message, error) {
	code, payload, err := readFrame(r)
	if err != nil {
		return nil, err
	}
	d := decoder{buf: payload}

	var msg Message
	switch code {
	case GetLastStateMsg:
		var m GetLastState
		m.Subscribe = d.bool()
		msg = m
	case SendLastStateMsg:
		var m SendLastState
		m.LastHeader = d.verifiableHeader()
		msg = m
	case GetLastStateProofMsg:
		msg = decodeGetLastStateProof(&d)
	case SendLastStateProofMsg:
		msg = decodeSendLastStateProof(&d)
	case GetTransactionsProofMsg:
		msg = decodeGetTransactionsProof(&d)
	case SendTransactionsProofMsg:
		msg = decodeSendTransactionsProof(&d)
	default:
		return nil, lightclient.ErrMalformedProtocolMessage
	}
	if d.failed || d.pos != len(d.buf) {
		return nil, lightclient.ErrMalformedProtocolMessage
	}
	return msg, nil
}

func encodeGetLastStateProof(e *encoder, m *GetLastStateProof) {
	e.hash(m.LastHash)
	e.u64(m.StartNumber)
	e.u64(m.LastNBlocks)
	e.u256(m.DifficultyBoundary)
	e.u32(uint32(len(m.Difficulties)))
	for _, diff := range m.Difficulties {
		e.u256(diff)
	}
}

func decodeGetLastStateProof(d *decoder) GetLastStateProof {
	var m GetLastStateProof
	m.LastHash = d.hash()
	m.StartNumber = d.u64()
	m.LastNBlocks = d.u64()
	m.DifficultyBoundary = d.u256()
	n := d.listLen()
	for i := 0; i < n && !d.failed; i++ {
		m.Difficulties = append(m.Difficulties, d.u256())
	}
	return m
}

func encodeSendLastStateProof(e *encoder, m *SendLastStateProof) {
	e.verifiableHeader(m.LastHeader)
	e.u32(uint32(len(m.Proof)))
	for _, dg := range m.Proof {
		e.digest(dg)
	}
	e.u32(uint32(len(m.Headers)))
	for _, h := range m.Headers {
		e.verifiableHeader(h)
	}
}

func decodeSendLastStateProof(d *decoder) SendLastStateProof {
	var m SendLastStateProof
	m.LastHeader = d.verifiableHeader()
	n := d.listLen()
	for i := 0; i < n && !d.failed; i++ {
		m.Proof = append(m.Proof, d.digest())
	}
	n = d.listLen()
	for i := 0; i < n && !d.failed; i++ {
		m.Headers = append(m.Headers, d.verifiableHeader())
	}
	return m
}

func encodeGetTransactionsProof(e *encoder, m *GetTransactionsProof) {
	e.hash(m.LastHash)
	e.u32(uint32(len(m.TxHashes)))
	for _, h := range m.TxHashes {
		e.hash(h)
	}
}

func decodeGetTransactionsProof(d *decoder) GetTransactionsProof {
	var m GetTransactionsProof
	m.LastHash = d.hash()
	n := d.listLen()
	for i := 0; i < n && !d.failed; i++ {
		m.TxHashes = append(m.TxHashes, d.hash())
	}
	return m
}

func encodeSendTransactionsProof(e *encoder, m *SendTransactionsProof) {
	e.verifiableHeader(m.LastHeader)
	e.u32(uint32(len(m.Proof)))
	for _, dg := range m.Proof {
		e.digest(dg)
	}
	e.u32(uint32(len(m.TxHashes)))
	for _, h := range m.TxHashes {
		e.hash(h)
	}
}

func decodeSendTransactionsProof(d *decoder) SendTransactionsProof {
	var m SendTransactionsProof
	m.LastHeader = d.verifiableHeader()
	n := d.listLen()
	for i := 0; i < n && !d.failed; i++ {
		m.Proof = append(m.Proof, d.digest())
	}
	n = d.listLen()
	for i := 0; i < n && !d.failed; i++ {
		m.TxHashes = append(m.TxHashes, d.hash())
	}
	return m
}
