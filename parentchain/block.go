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

// Package parentchain holds the block types the relay consumes from the
// parentchain and the sources that deliver them.
package parentchain

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var (
	ErrDuplicateExtrinsic = errors.New("duplicate extrinsic index")
	ErrEmptyExtrinsic     = errors.New("empty extrinsic")
)

// Header is the part of a parentchain block that identifies it and commits to
// its state.
type Header struct {
	ParentHash common.Hash `json:"parentHash"`
	Number     uint64      `json:"number"`
	StateRoot  common.Hash `json:"stateRoot"`
}

// Hash returns the keccak256 hash of the header's RLP encoding.
func (h *Header) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(h)
	if err != nil {
		// Header only holds fixed-size fields, encoding cannot fail.
		panic(err)
	}
	return crypto.Keccak256Hash(enc)
}

// Extrinsic is a raw encoded parentchain instruction and its position in the
// block.
type Extrinsic struct {
	Index uint32 `json:"index"`
	Raw   []byte `json:"raw"`
}

// Block is an immutable parentchain block as delivered by a BlockSource.
type Block struct {
	Header     *Header     `json:"header"`
	Extrinsics []Extrinsic `json:"extrinsics"`

	hash common.Hash
}

// NewBlock assembles a block. The extrinsic slice is copied so later changes by
// the caller do not leak into the block.
func NewBlock(header *Header, extrinsics []Extrinsic) *Block {
	h := *header
	exts := make([]Extrinsic, len(extrinsics))
	for i, ext := range extrinsics {
		exts[i] = Extrinsic{Index: ext.Index, Raw: common.CopyBytes(ext.Raw)}
	}
	return &Block{Header: &h, Extrinsics: exts, hash: h.Hash()}
}

// NewBlockFromRaw builds a block whose extrinsic indices follow their order.
func NewBlockFromRaw(header *Header, raws [][]byte) *Block {
	exts := make([]Extrinsic, len(raws))
	for i, raw := range raws {
		exts[i] = Extrinsic{Index: uint32(i), Raw: raw}
	}
	return NewBlock(header, exts)
}

// Hash returns the block identifier.
func (b *Block) Hash() common.Hash {
	if b.hash == (common.Hash{}) {
		b.hash = b.Header.Hash()
	}
	return b.hash
}

// Number returns the block height.
func (b *Block) Number() uint64 { return b.Header.Number }

// StateRoot returns the state root committed by the block.
func (b *Block) StateRoot() common.Hash { return b.Header.StateRoot }

// ParentHash returns the hash of the previous block.
func (b *Block) ParentHash() common.Hash { return b.Header.ParentHash }

// SanityCheck reports structural problems a supplier should never deliver.
// The relay logs them but still processes the block; the idempotency guard
// keeps a duplicate index from dispatching twice.
func (b *Block) SanityCheck() error {
	seen := make(map[uint32]struct{}, len(b.Extrinsics))
	for _, ext := range b.Extrinsics {
		if _, ok := seen[ext.Index]; ok {
			return ErrDuplicateExtrinsic
		}
		seen[ext.Index] = struct{}{}
		if len(ext.Raw) == 0 {
			return ErrEmptyExtrinsic
		}
	}
	return nil
}

// extblock is the RLP form of a block.
type extblock struct {
	Header     *Header
	Extrinsics []Extrinsic
}

// Encode returns the RLP form of the block.
func (b *Block) Encode() ([]byte, error) {
	return rlp.EncodeToBytes(&extblock{Header: b.Header, Extrinsics: b.Extrinsics})
}

// DecodeBlock decodes a block from its RLP form.
func DecodeBlock(data []byte) (*Block, error) {
	var eb extblock
	if err := rlp.DecodeBytes(data, &eb); err != nil {
		return nil, err
	}
	if eb.Header == nil {
		return nil, errors.New("block without header")
	}
	return NewBlock(eb.Header, eb.Extrinsics), nil
}
