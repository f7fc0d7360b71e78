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

// Package toppool is the enclave's queue of trusted operations waiting for
// execution. The relay submits signed calls to it; the state transition side
// drains it in submission order.
package toppool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/xchain/indirect-relay/indirect"
)

var (
	ErrPoolFull         = errors.New("trusted operation pool is full")
	ErrAlreadyKnown     = errors.New("trusted operation already in pool")
	ErrInvalidSignature = errors.New("invalid trusted operation signature")
	ErrInvalidConfig    = errors.New("invalid pool configuration")

	submittedMeter = metrics.NewRegisteredMeter("relay/toppool/submitted", nil)
	rejectedMeter  = metrics.NewRegisteredMeter("relay/toppool/rejected", nil)
	pendingGauge   = metrics.NewRegisteredGauge("relay/toppool/pending", nil)
)

// Config bounds the pool.
type Config struct {
	Capacity         int  `toml:"capacity"`
	VerifySignatures bool `toml:"verify_signatures"`
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() *Config {
	return &Config{Capacity: 4096, VerifySignatures: true}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive", ErrInvalidConfig)
	}
	return nil
}

type accountKey struct {
	shard   common.Hash
	account common.Address
}

// NonceStore persists executed call counts so nonces survive restarts.
type NonceStore interface {
	ReadNonce(shard common.Hash, account common.Address) (uint64, bool, error)
	WriteNonce(shard common.Hash, account common.Address, nonce uint64) error
}

// Pool is a bounded FIFO of signed trusted calls. It implements
// indirect.Executor for the relay, and signer.PendingCounter and
// signer.NonceSource so nonces follow what was queued and executed.
type Pool struct {
	config *Config

	mu       sync.Mutex
	queue    []*indirect.SignedCall
	known    mapset.Set[common.Hash]
	pending  map[accountKey]uint64
	executed map[accountKey]uint64 // loaded from nonces on first use
	nonces   NonceStore            // nil keeps executed counts in memory only

	log log.Logger
}

// New creates an empty pool whose executed counts live in memory.
func New(config *Config) (*Pool, error) {
	return NewWithNonces(config, nil)
}

// NewWithNonces creates an empty pool that records executed counts in store.
func NewWithNonces(config *Config, store NonceStore) (*Pool, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Pool{
		config:   config,
		known:    mapset.NewThreadUnsafeSet[common.Hash](),
		pending:  make(map[accountKey]uint64),
		executed: make(map[accountKey]uint64),
		nonces:   store,
		log:      log.New("module", "toppool"),
	}, nil
}

// Submit implements indirect.Executor.
func (p *Pool) Submit(ctx context.Context, call *indirect.SignedCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.config.VerifySignatures && !call.VerifySignature() {
		rejectedMeter.Mark(1)
		return ErrInvalidSignature
	}
	hash := call.Hash()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.known.Contains(hash) {
		rejectedMeter.Mark(1)
		return fmt.Errorf("%w: %s", ErrAlreadyKnown, hash.TerminalString())
	}
	if len(p.queue) >= p.config.Capacity {
		rejectedMeter.Mark(1)
		return ErrPoolFull
	}
	p.queue = append(p.queue, call)
	p.known.Add(hash)
	p.pending[accountKey{call.Call.Shard, call.Signer}]++

	submittedMeter.Mark(1)
	pendingGauge.Update(int64(len(p.queue)))
	p.log.Trace("Queued trusted call", "hash", hash, "op", call.Call.Op, "nonce", call.Nonce)
	return nil
}

// Take removes up to n calls in submission order and counts them as
// executed. With a nonce store the new counts are persisted before Take
// returns; if that fails the calls stay queued.
func (p *Pool) Take(n int) ([]*indirect.SignedCall, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n > len(p.queue) {
		n = len(p.queue)
	}
	if n <= 0 {
		return nil, nil
	}
	out := make([]*indirect.SignedCall, n)
	copy(out, p.queue[:n])

	counts := make(map[accountKey]uint64)
	for _, call := range out {
		key := accountKey{call.Call.Shard, call.Signer}
		if _, ok := counts[key]; !ok {
			executed, err := p.executedLocked(key)
			if err != nil {
				return nil, err
			}
			counts[key] = executed
		}
		counts[key]++
	}
	if p.nonces != nil {
		for key, executed := range counts {
			if err := p.nonces.WriteNonce(key.shard, key.account, executed); err != nil {
				return nil, fmt.Errorf("failed to persist nonce of %s: %w", key.account, err)
			}
		}
	}
	p.queue = append(p.queue[:0], p.queue[n:]...)
	for _, call := range out {
		key := accountKey{call.Call.Shard, call.Signer}
		p.known.Remove(call.Hash())
		p.pending[key]--
		if p.pending[key] == 0 {
			delete(p.pending, key)
		}
	}
	for key, executed := range counts {
		p.executed[key] = executed
	}
	pendingGauge.Update(int64(len(p.queue)))
	return out, nil
}

// executedLocked returns the executed count of key, loading it from the
// nonce store on first use.
func (p *Pool) executedLocked(key accountKey) (uint64, error) {
	if executed, ok := p.executed[key]; ok {
		return executed, nil
	}
	if p.nonces == nil {
		return 0, nil
	}
	executed, _, err := p.nonces.ReadNonce(key.shard, key.account)
	if err != nil {
		return 0, fmt.Errorf("failed to read nonce of %s: %w", key.account, err)
	}
	p.executed[key] = executed
	return executed, nil
}

// PendingFor implements signer.PendingCounter.
func (p *Pool) PendingFor(shard common.Hash, account common.Address) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending[accountKey{shard, account}]
}

// AccountNonce implements signer.NonceSource by counting executed calls.
func (p *Pool) AccountNonce(shard common.Hash, account common.Address) (uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.executedLocked(accountKey{shard, account})
}

// Has reports whether a signed call with hash is queued.
func (p *Pool) Has(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.known.Contains(hash)
}

// Len returns the number of queued calls.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
