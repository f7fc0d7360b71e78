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

	"github.com/ethereum/go-ethereum/common"
)

// MarkerStore persists which (block, extrinsic index) pairs were dispatched,
// how far an unfinished dispatch got, and which proven facts were consumed.
// Markers are append-only. All calls may block on storage I/O.
type MarkerStore interface {
	// HasMarker reports whether the extrinsic was already dispatched.
	HasMarker(block common.Hash, index uint32) (bool, error)

	// WriteMarker records a dispatched extrinsic and drops its progress. It
	// fails if the marker already exists.
	WriteMarker(block common.Hash, index uint32, height uint64, calls int) error

	// ReadProgress returns how many leading calls of an extrinsic without a
	// marker were already accepted by the execution queue.
	ReadProgress(block common.Hash, index uint32) (int, error)

	// WriteProgress records that the first submitted calls were accepted.
	WriteProgress(block common.Hash, index uint32, submitted int) error

	// ClaimFacts atomically binds facts to the extrinsic. It returns false,
	// writing nothing, if any fact is bound to a different extrinsic.
	ClaimFacts(block common.Hash, index uint32, facts []common.Hash) (bool, error)
}

// VaultQuery resolves the parentchain account holding a shard's shielded
// funds.
type VaultQuery interface {
	ShardVault(shard common.Hash) (AccountID, error)
}

// Executor is the enclave's execution queue. Any error is retryable.
type Executor interface {
	Submit(ctx context.Context, call *SignedCall) error
}

// Signer signs trusted calls with the enclave's call signing key.
type Signer interface {
	Sign(call *TrustedCall) (*SignedCall, error)
}
