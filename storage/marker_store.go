// Copyright 2024 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package storage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	// Database key prefixes
	markerPrefix   = []byte("m") // markerPrefix + block hash + index (uint32 big endian) -> markerRecord
	progressPrefix = []byte("p") // progressPrefix + block hash + index -> accepted calls (uint32 big endian)
	factPrefix     = []byte("f") // factPrefix + fact hash -> owning block hash + index
	lastHeightKey  = []byte("LastProcessedHeight")

	markerWriteMeter = metrics.NewRegisteredMeter("relay/markers/write", nil)
)

// markerRecord is the stored form of a marker.
type markerRecord struct {
	Height     uint64
	Calls      uint64
	RecordedAt uint64
}

// Marker records that the trusted calls of an extrinsic were handed to the
// execution queue.
type Marker struct {
	Block      common.Hash
	Index      uint32
	Height     uint64
	Calls      int
	RecordedAt time.Time
}

// MarkerDB is an append-only processed-marker store on top of a key-value
// database. It also keeps the height of the last completed block.
type MarkerDB struct {
	db ethdb.KeyValueStore
	mu sync.Mutex // serializes check-and-write of markers

	now func() time.Time
}

// NewMarkerDB creates a marker store over db.
func NewMarkerDB(db ethdb.KeyValueStore) *MarkerDB {
	return &MarkerDB{db: db, now: time.Now}
}

func extrinsicKey(prefix []byte, block common.Hash, index uint32) []byte {
	key := make([]byte, len(prefix)+common.HashLength+4)
	copy(key, prefix)
	copy(key[len(prefix):], block[:])
	binary.BigEndian.PutUint32(key[len(prefix)+common.HashLength:], index)
	return key
}

func markerKey(block common.Hash, index uint32) []byte {
	return extrinsicKey(markerPrefix, block, index)
}

func progressKey(block common.Hash, index uint32) []byte {
	return extrinsicKey(progressPrefix, block, index)
}

func factKey(fact common.Hash) []byte {
	return append(common.CopyBytes(factPrefix), fact[:]...)
}

// HasMarker reports whether the extrinsic was already dispatched.
func (m *MarkerDB) HasMarker(block common.Hash, index uint32) (bool, error) {
	return m.db.Has(markerKey(block, index))
}

// WriteMarker records a dispatched extrinsic and drops its dispatch progress.
// Existing markers are never overwritten.
func (m *MarkerDB) WriteMarker(block common.Hash, index uint32, height uint64, calls int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := markerKey(block, index)
	exists, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s/%d", ErrMarkerExists, block.TerminalString(), index)
	}
	enc, err := rlp.EncodeToBytes(&markerRecord{
		Height:     height,
		Calls:      uint64(calls),
		RecordedAt: uint64(m.now().Unix()),
	})
	if err != nil {
		return err
	}
	batch := m.db.NewBatch()
	if err := batch.Put(key, enc); err != nil {
		return err
	}
	if err := batch.Delete(progressKey(block, index)); err != nil {
		return err
	}
	if err := batch.Write(); err != nil {
		return err
	}
	markerWriteMeter.Mark(1)
	return nil
}

// ReadProgress returns how many leading calls of an extrinsic without a
// marker were already accepted by the execution queue.
func (m *MarkerDB) ReadProgress(block common.Hash, index uint32) (int, error) {
	key := progressKey(block, index)
	exists, err := m.db.Has(key)
	if err != nil || !exists {
		return 0, err
	}
	enc, err := m.db.Get(key)
	if err != nil {
		return 0, err
	}
	if len(enc) != 4 {
		return 0, fmt.Errorf("%w: progress of %d bytes for %s/%d", ErrCorruptMarker, len(enc), block.TerminalString(), index)
	}
	return int(binary.BigEndian.Uint32(enc)), nil
}

// WriteProgress records that the first submitted calls of an extrinsic were
// accepted.
func (m *MarkerDB) WriteProgress(block common.Hash, index uint32, submitted int) error {
	var enc [4]byte
	binary.BigEndian.PutUint32(enc[:], uint32(submitted))
	return m.db.Put(progressKey(block, index), enc[:])
}

// ClaimFacts binds facts to the extrinsic (block, index). Facts already bound
// to the same extrinsic are accepted again. If any fact is bound to another
// extrinsic, nothing is written and false is returned.
func (m *MarkerDB) ClaimFacts(block common.Hash, index uint32, facts []common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	owner := extrinsicKey(nil, block, index)
	batch := m.db.NewBatch()
	for _, fact := range facts {
		key := factKey(fact)
		exists, err := m.db.Has(key)
		if err != nil {
			return false, err
		}
		if exists {
			cur, err := m.db.Get(key)
			if err != nil {
				return false, err
			}
			if !bytes.Equal(cur, owner) {
				return false, nil
			}
			continue
		}
		if err := batch.Put(key, owner); err != nil {
			return false, err
		}
	}
	if batch.ValueSize() == 0 {
		return true, nil
	}
	return true, batch.Write()
}

// FactOwner returns the extrinsic a fact is bound to.
func (m *MarkerDB) FactOwner(fact common.Hash) (common.Hash, uint32, bool, error) {
	key := factKey(fact)
	exists, err := m.db.Has(key)
	if err != nil || !exists {
		return common.Hash{}, 0, false, err
	}
	enc, err := m.db.Get(key)
	if err != nil {
		return common.Hash{}, 0, false, err
	}
	if len(enc) != common.HashLength+4 {
		return common.Hash{}, 0, false, fmt.Errorf("%w: fact owner of %d bytes", ErrCorruptMarker, len(enc))
	}
	return common.BytesToHash(enc[:common.HashLength]), binary.BigEndian.Uint32(enc[common.HashLength:]), true, nil
}

// ReadMarker returns the marker of an extrinsic.
func (m *MarkerDB) ReadMarker(block common.Hash, index uint32) (*Marker, error) {
	key := markerKey(block, index)
	exists, err := m.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrMarkerNotFound
	}
	enc, err := m.db.Get(key)
	if err != nil {
		return nil, err
	}
	return decodeMarker(block, index, enc)
}

// BlockMarkers returns all markers of a block in extrinsic index order.
func (m *MarkerDB) BlockMarkers(block common.Hash) ([]*Marker, error) {
	prefix := append(common.CopyBytes(markerPrefix), block[:]...)
	it := m.db.NewIterator(prefix, nil)
	defer it.Release()

	var markers []*Marker
	for it.Next() {
		key := it.Key()
		if len(key) != len(prefix)+4 {
			continue
		}
		marker, err := decodeMarker(block, binary.BigEndian.Uint32(key[len(prefix):]), it.Value())
		if err != nil {
			return nil, err
		}
		markers = append(markers, marker)
	}
	return markers, it.Error()
}

func decodeMarker(block common.Hash, index uint32, enc []byte) (*Marker, error) {
	var rec markerRecord
	if err := rlp.DecodeBytes(enc, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s/%d: %v", ErrCorruptMarker, block.TerminalString(), index, err)
	}
	return &Marker{
		Block:      block,
		Index:      index,
		Height:     rec.Height,
		Calls:      int(rec.Calls),
		RecordedAt: time.Unix(int64(rec.RecordedAt), 0),
	}, nil
}

// ReadLastHeight returns the height of the last completely processed block.
// The second result is false if no block was completed yet.
func (m *MarkerDB) ReadLastHeight() (uint64, bool, error) {
	exists, err := m.db.Has(lastHeightKey)
	if err != nil || !exists {
		return 0, false, err
	}
	enc, err := m.db.Get(lastHeightKey)
	if err != nil {
		return 0, false, err
	}
	if len(enc) != 8 {
		return 0, false, fmt.Errorf("%w: last height of %d bytes", ErrCorruptMarker, len(enc))
	}
	return binary.BigEndian.Uint64(enc), true, nil
}

// WriteLastHeight stores the height of the last completely processed block.
func (m *MarkerDB) WriteLastHeight(height uint64) error {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], height)
	return m.db.Put(lastHeightKey, enc[:])
}
