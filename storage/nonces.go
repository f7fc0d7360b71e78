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
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var noncePrefix = []byte("n") // noncePrefix + shard + account -> executed calls (uint64 big endian)

func nonceKey(shard common.Hash, account common.Address) []byte {
	key := make([]byte, 0, len(noncePrefix)+common.HashLength+common.AddressLength)
	key = append(key, noncePrefix...)
	key = append(key, shard[:]...)
	return append(key, account[:]...)
}

// ReadNonce returns the number of executed calls of account in shard. The
// second result is false if none was recorded.
func (m *MarkerDB) ReadNonce(shard common.Hash, account common.Address) (uint64, bool, error) {
	key := nonceKey(shard, account)
	exists, err := m.db.Has(key)
	if err != nil || !exists {
		return 0, false, err
	}
	enc, err := m.db.Get(key)
	if err != nil {
		return 0, false, err
	}
	if len(enc) != 8 {
		return 0, false, fmt.Errorf("%w: nonce of %d bytes", ErrCorruptMarker, len(enc))
	}
	return binary.BigEndian.Uint64(enc), true, nil
}

// WriteNonce stores the number of executed calls of account in shard.
func (m *MarkerDB) WriteNonce(shard common.Hash, account common.Address, nonce uint64) error {
	var enc [8]byte
	binary.BigEndian.PutUint64(enc[:], nonce)
	return m.db.Put(nonceKey(shard, account), enc[:])
}
