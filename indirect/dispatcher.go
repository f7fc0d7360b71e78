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
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/lru"
	"github.com/ethereum/go-ethereum/log"
)

// MarkerKey identifies an extrinsic across the lifetime of the relay.
type MarkerKey struct {
	Block common.Hash
	Index uint32
}

func (k MarkerKey) String() string {
	return fmt.Sprintf("%s/%d", k.Block.TerminalString(), k.Index)
}

// DispatchStatus is the outcome of dispatching one extrinsic.
type DispatchStatus uint8

const (
	StatusDispatched DispatchStatus = iota
	StatusAlreadyProcessed
	StatusFailed
	StatusFactConsumed
)

func (s DispatchStatus) String() string {
	switch s {
	case StatusDispatched:
		return "dispatched"
	case StatusAlreadyProcessed:
		return "already-processed"
	case StatusFactConsumed:
		return "fact-consumed"
	default:
		return "failed"
	}
}

// DispatchResult reports what happened to an extrinsic's trusted calls.
type DispatchResult struct {
	Status    DispatchStatus
	Resumed   int   // leading calls accepted by an earlier attempt and skipped
	Submitted int   // calls accepted by the execution queue in this attempt
	Err       error // set when Status is StatusFailed (retryable) or StatusFactConsumed (final)
}

// Dispatcher submits trusted calls to the execution queue at most once per
// extrinsic. It is the only stage with shared mutable state.
type Dispatcher struct {
	markers  MarkerStore
	executor Executor
	signer   Signer

	mu       sync.Mutex
	inflight map[MarkerKey]struct{}
	recent   *lru.Cache[MarkerKey, struct{}] // recorded markers, nil if disabled

	log log.Logger
}

// NewDispatcher creates a dispatcher. cacheSize recently recorded markers are
// answered from memory.
func NewDispatcher(markers MarkerStore, executor Executor, signer Signer, cacheSize int) *Dispatcher {
	d := &Dispatcher{
		markers:  markers,
		executor: executor,
		signer:   signer,
		inflight: make(map[MarkerKey]struct{}),
		log:      log.New("module", "dispatcher"),
	}
	if cacheSize > 0 {
		d.recent = lru.NewCache[MarkerKey, struct{}](cacheSize)
	}
	return d
}

// Dispatch signs and submits calls for the extrinsic identified by key, then
// records the processed marker. A key that already has a marker is skipped.
//
// The proven facts of the calls are claimed for key before anything is
// submitted; if another extrinsic consumed one of them the extrinsic is
// refused with ErrFactConsumed. Progress is recorded after every accepted
// call, so a redelivered extrinsic resumes after the last accepted position
// instead of submitting its leading calls again. Any other failure leaves the
// extrinsic eligible for redelivery.
func (d *Dispatcher) Dispatch(ctx context.Context, key MarkerKey, height uint64, calls []*TrustedCall) DispatchResult {
	done, err := d.claim(key)
	if err != nil {
		return DispatchResult{Status: StatusFailed, Err: err}
	}
	if done {
		return DispatchResult{Status: StatusAlreadyProcessed}
	}
	defer d.release(key)

	if facts := callFacts(calls); len(facts) > 0 {
		ok, err := d.markers.ClaimFacts(key.Block, key.Index, facts)
		if err != nil {
			return DispatchResult{Status: StatusFailed, Err: fmt.Errorf("%w: %v", ErrMarkerStore, err)}
		}
		if !ok {
			d.log.Warn("Refusing extrinsic with consumed fact", "key", key, "facts", len(facts))
			return DispatchResult{Status: StatusFactConsumed, Err: ErrFactConsumed}
		}
	}
	start, err := d.markers.ReadProgress(key.Block, key.Index)
	if err != nil {
		return DispatchResult{Status: StatusFailed, Err: fmt.Errorf("%w: %v", ErrMarkerStore, err)}
	}
	if start > len(calls) {
		start = len(calls)
	}
	if start > 0 {
		d.log.Debug("Resuming partially dispatched extrinsic", "key", key, "accepted", start, "calls", len(calls))
	}
	res := DispatchResult{Status: StatusFailed, Resumed: start}
	for i := start; i < len(calls); i++ {
		call := calls[i]
		signed, err := d.signer.Sign(call)
		if err != nil {
			res.Err = fmt.Errorf("%w: %v", ErrSigning, err)
			return res
		}
		if err := d.executor.Submit(ctx, signed); err != nil {
			d.log.Warn("Execution queue rejected trusted call", "key", key, "position", i, "op", call.Op, "err", err)
			res.Err = fmt.Errorf("%w: %v", ErrSubmission, err)
			return res
		}
		res.Submitted++
		if err := d.markers.WriteProgress(key.Block, key.Index, i+1); err != nil {
			// Position i is queued but not recorded; a retry submits it again.
			d.log.Error("Failed to record dispatch progress", "key", key, "position", i, "err", err)
			res.Err = fmt.Errorf("%w: %v", ErrMarkerStore, err)
			return res
		}
	}
	if err := d.markers.WriteMarker(key.Block, key.Index, height, len(calls)); err != nil {
		d.log.Error("Failed to record processed marker", "key", key, "calls", len(calls), "err", err)
		res.Err = fmt.Errorf("%w: %v", ErrMarkerStore, err)
		return res
	}
	if d.recent != nil {
		d.recent.Add(key, struct{}{})
	}
	res.Status = StatusDispatched
	return res
}

func callFacts(calls []*TrustedCall) []common.Hash {
	var facts []common.Hash
	for _, call := range calls {
		if call.Fact != (common.Hash{}) {
			facts = append(facts, call.Fact)
		}
	}
	return facts
}

// IsProcessed reports whether key carries a processed marker.
func (d *Dispatcher) IsProcessed(key MarkerKey) (bool, error) {
	if d.recent != nil && d.recent.Contains(key) {
		return true, nil
	}
	ok, err := d.markers.HasMarker(key.Block, key.Index)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMarkerStore, err)
	}
	return ok, nil
}

// claim checks the marker and reserves key for the caller. It returns true if
// the extrinsic was already dispatched. While a key is reserved, concurrent
// callers for the same key fail with ErrDispatchInFlight.
func (d *Dispatcher) claim(key MarkerKey) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, busy := d.inflight[key]; busy {
		return false, ErrDispatchInFlight
	}
	done, err := d.IsProcessed(key)
	if err != nil {
		// Never read a store failure as "already processed".
		return false, err
	}
	if done {
		return true, nil
	}
	d.inflight[key] = struct{}{}
	return false, nil
}

func (d *Dispatcher) release(key MarkerKey) {
	d.mu.Lock()
	delete(d.inflight, key)
	d.mu.Unlock()
}
