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

// Package store persists the light client's own last accepted state and
// trust anchor under a typed single-byte key-prefix discipline, the same
// shape go-420coin's rawdb accessor functions impose over a shared
// key-value database (ReadPreimage/WritePreimage, ReadCode/WriteCode,
// each owning a disjoint key namespace via a fixed prefix). Unlike rawdb,
// which fans out over dozens of object kinds for a full node, this store
// only ever holds one trust anchor and one ProveState per peer, so there
// is no need for 420db's broader KeyValueStore abstraction: a single
// goleveldb handle, the same chain database backend the full node uses,
// is enough.
package store

import (
	"bytes"
	"encoding/gob"

	"github.com/420integrated/go-420light/lightclient"
	"github.com/syndtr/goleveldb/leveldb"
)

const (
	prefixProveState  = 'p'
	prefixTrustAnchor = 't'
)

func proveStateKey(peerID string) []byte {
	return append([]byte{prefixProveState}, []byte(peerID)...)
}

var trustAnchorKey = []byte{prefixTrustAnchor}

// Store wraps a goleveldb handle behind the lightclient.Committer
// interface plus trust-anchor load/save. It is the only place in this
// module that touches disk; verification code in lightclient never
// imports it.
type Store struct {
	db *leveldb.DB
}

// Open opens (creating if necessary) a goleveldb database at dir.
func Open(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CommitProveState persists a peer's newly accepted ProveState, fulfilling
// lightclient.Committer.
func (s *Store) CommitProveState(peerID string, state lightclient.ProveState) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return err
	}
	return s.db.Put(proveStateKey(peerID), buf.Bytes(), nil)
}

// ReadProveState loads a previously committed ProveState for peerID, if
// any. ok is false when nothing has been committed for that peer yet.
func (s *Store) ReadProveState(peerID string) (state lightclient.ProveState, ok bool, err error) {
	data, err := s.db.Get(proveStateKey(peerID), nil)
	if err == leveldb.ErrNotFound {
		return lightclient.ProveState{}, false, nil
	}
	if err != nil {
		return lightclient.ProveState{}, false, err
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return lightclient.ProveState{}, false, err
	}
	return state, true, nil
}

// WriteTrustAnchor persists the operator-pinned trust anchor, overwriting
// any previous value: an operator who resets the anchor is making a
// deliberate trust decision, not accumulating history.
func (s *Store) WriteTrustAnchor(anchor lightclient.TrustAnchor) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(anchor); err != nil {
		return err
	}
	return s.db.Put(trustAnchorKey, buf.Bytes(), nil)
}

// ReadTrustAnchor loads the persisted trust anchor, if one was ever
// written.
func (s *Store) ReadTrustAnchor() (anchor lightclient.TrustAnchor, ok bool, err error) {
	data, err := s.db.Get(trustAnchorKey, nil)
	if err == leveldb.ErrNotFound {
		return lightclient.TrustAnchor{}, false, nil
	}
	if err != nil {
		return lightclient.TrustAnchor{}, false, err
	}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&anchor); err != nil {
		return lightclient.TrustAnchor{}, false, err
	}
	return anchor, true, nil
}

// Reset wipes every key this store owns, the documented recovery path
// for an operator who has confirmed (per cmd/g420light's "reset"
// subcommand) that a peer's long fork is real and the store's history
// needs to be rebuilt from a fresh trust anchor.
func (s *Store) Reset() error {
	iter := s.db.NewIterator(nil, nil)
	defer iter.Release()
	batch := new(leveldb.Batch)
	for iter.Next() {
		batch.Delete(append([]byte{}, iter.Key()...))
	}
	if err := iter.Error(); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}
