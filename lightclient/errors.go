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

import "errors"

// StatusCode is the error code surfaced to peers, the taxonomy a peer
// registry usually expresses as bare sentinel errors, collected here
// under one enum since the wire protocol needs a stable numeric tag.
type StatusCode int

const (
	StatusOK StatusCode = iota
	StatusMalformedProtocolMessage
	StatusInvalidReorgHeaders
	StatusInvalidSamples
	StatusInvalidParentBlock
	StatusInvalidProof
	StatusInvalidCompactTarget
	StatusInvalidTotalDifficulty
	StatusNotTrustedState
	StatusRequireRecheck
	StatusPeerIsNotOnProcess
	StatusUnexpectedResponse
)

func (s StatusCode) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusMalformedProtocolMessage:
		return "malformed_protocol_message"
	case StatusInvalidReorgHeaders:
		return "invalid_reorg_headers"
	case StatusInvalidSamples:
		return "invalid_samples"
	case StatusInvalidParentBlock:
		return "invalid_parent_block"
	case StatusInvalidProof:
		return "invalid_proof"
	case StatusInvalidCompactTarget:
		return "invalid_compact_target"
	case StatusInvalidTotalDifficulty:
		return "invalid_total_difficulty"
	case StatusNotTrustedState:
		return "not_trusted_state"
	case StatusRequireRecheck:
		return "require_recheck"
	case StatusPeerIsNotOnProcess:
		return "peer_is_not_on_process"
	case StatusUnexpectedResponse:
		return "unexpected_response"
	default:
		return "unknown"
	}
}

// statusError pairs a sentinel error with the StatusCode it maps to on
// the wire, so callers can both errors.Is against a specific failure and
// forward a StatusCode to the peer without a second switch statement.
type statusError struct {
	code StatusCode
	msg  string
}

func (e *statusError) Error() string { return e.msg }

// Status extracts the StatusCode a verification error should be reported
// to the offending peer as. Errors not produced by this package report
// StatusUnexpectedResponse.
func Status(err error) StatusCode {
	if err == nil {
		return StatusOK
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.code
	}
	return StatusUnexpectedResponse
}

var (
	ErrMalformedProtocolMessage = &statusError{StatusMalformedProtocolMessage, "lightclient: malformed protocol message"}
	ErrInvalidReorgHeaders      = &statusError{StatusInvalidReorgHeaders, "lightclient: invalid reorg headers"}
	ErrInvalidSamples           = &statusError{StatusInvalidSamples, "lightclient: invalid samples"}
	ErrInvalidParentBlock       = &statusError{StatusInvalidParentBlock, "lightclient: invalid parent block"}
	ErrInvalidProof             = &statusError{StatusInvalidProof, "lightclient: invalid mmr proof"}
	ErrInvalidCompactTarget     = &statusError{StatusInvalidCompactTarget, "lightclient: invalid compact target"}
	ErrInvalidTotalDifficulty   = &statusError{StatusInvalidTotalDifficulty, "lightclient: invalid total difficulty"}
	ErrNotTrustedState          = &statusError{StatusNotTrustedState, "lightclient: proof does not match trusted state"}

	// ErrPeerSetClosed, ErrPeerAlreadyRegistered and ErrPeerNotRegistered
	// are the Peers registry's own sentinel errors; they never go out on
	// the wire.
	ErrPeerSetClosed         = errors.New("lightclient: peer set is closed")
	ErrPeerAlreadyRegistered = errors.New("lightclient: peer already registered")
	ErrPeerNotRegistered     = errors.New("lightclient: peer not registered")

	// ErrLongForkSuspected names a long fork awaiting a re-probe from
	// genesis. No function in this package returns it: the dispatcher
	// reports that case as VerdictRequireRecheck with LongForkDetected set.
	ErrLongForkSuspected = errors.New("lightclient: long fork suspected")

	// ErrLongForkConfirmed names a long fork that a genesis re-probe still
	// shows. No function in this package returns it: the dispatcher
	// reports that case as VerdictFatal.
	ErrLongForkConfirmed = errors.New("lightclient: long fork confirmed")
)
