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

package indirect

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// Hasher is the deterministic hash function proofs are computed with.
type Hasher interface {
	Name() string
	Hash(data ...[]byte) common.Hash
}

const (
	HasherKeccak256  = "keccak256"
	HasherBlake2b256 = "blake2b256"
)

// Keccak256Hasher hashes with legacy Keccak-256.
type Keccak256Hasher struct{}

func (Keccak256Hasher) Name() string { return HasherKeccak256 }

func (Keccak256Hasher) Hash(data ...[]byte) common.Hash {
	return crypto.Keccak256Hash(data...)
}

// Blake2bHasher hashes with unkeyed BLAKE2b-256, the substrate default.
type Blake2bHasher struct{}

func (Blake2bHasher) Name() string { return HasherBlake2b256 }

func (Blake2bHasher) Hash(data ...[]byte) common.Hash {
	h, _ := blake2b.New256(nil) // only fails for oversized keys
	for _, b := range data {
		h.Write(b)
	}
	return common.BytesToHash(h.Sum(nil))
}

// NewHasher returns the hasher registered under name.
func NewHasher(name string) (Hasher, error) {
	switch name {
	case HasherKeccak256:
		return Keccak256Hasher{}, nil
	case HasherBlake2b256, "":
		return Blake2bHasher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}
