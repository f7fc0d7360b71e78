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

package parentchain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"
)

// BlockSource supplies finalized parentchain blocks in increasing height
// order. Next returns io.EOF once the source is exhausted. Chain continuity is
// the supplier's responsibility.
type BlockSource interface {
	Next(ctx context.Context) (*Block, error)
}

// SliceSource serves blocks from memory.
type SliceSource struct {
	mu     sync.Mutex
	blocks []*Block
	pos    int
}

// NewSliceSource creates a source over the given blocks.
func NewSliceSource(blocks ...*Block) *SliceSource {
	return &SliceSource{blocks: blocks}
}

// Next implements BlockSource.
func (s *SliceSource) Next(ctx context.Context) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.blocks) {
		return nil, io.EOF
	}
	b := s.blocks[s.pos]
	s.pos++
	return b, nil
}

// FileSource streams RLP encoded blocks from a file, one block after another.
type FileSource struct {
	mu     sync.Mutex
	file   *os.File
	stream *rlp.Stream
	read   int
}

// OpenFileSource opens an RLP block file written by WriteBlocks.
func OpenFileSource(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open block file: %w", err)
	}
	return &FileSource{
		file:   f,
		stream: rlp.NewStream(bufio.NewReader(f), 0),
	}, nil
}

// Next implements BlockSource.
func (s *FileSource) Next(ctx context.Context) (*Block, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var eb extblock
	if err := s.stream.Decode(&eb); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("block %d: %w", s.read, err)
	}
	if eb.Header == nil {
		return nil, fmt.Errorf("block %d: missing header", s.read)
	}
	s.read++
	return NewBlock(eb.Header, eb.Extrinsics), nil
}

// Close releases the underlying file.
func (s *FileSource) Close() error {
	return s.file.Close()
}

// WriteBlocks writes blocks to w in the format read by FileSource.
func WriteBlocks(w io.Writer, blocks ...*Block) error {
	for _, b := range blocks {
		if err := rlp.Encode(w, &extblock{Header: b.Header, Extrinsics: b.Extrinsics}); err != nil {
			return fmt.Errorf("failed to encode block %d: %w", b.Number(), err)
		}
	}
	return nil
}
