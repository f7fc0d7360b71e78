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
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrInvalidConfig = errors.New("invalid relay configuration")
	ErrUnknownHasher = errors.New("unknown hash function")

	// ErrFatalConfig marks errors that mean the relay cannot safely continue
	// with the current schema version. Block processing aborts on them.
	ErrFatalConfig           = errors.New("fatal relay configuration error")
	ErrTranslationImpossible = errors.New("no translation for validated call")

	// Dispatch errors, all retryable by redelivering the block
	ErrDispatchInFlight = errors.New("extrinsic dispatch already in flight")
	ErrMarkerStore      = errors.New("processed-marker store failure")
	ErrSubmission       = errors.New("execution queue rejected trusted call")
	ErrSigning          = errors.New("failed to sign trusted call")

	// Proof and field rejections
	ErrMissingProof      = errors.New("required inclusion proof missing")
	ErrProofMismatch     = errors.New("proof leaf does not match asserted fact")
	ErrProofUnverified   = errors.New("inclusion proof does not verify against block state root")
	ErrProofTooDeep      = errors.New("inclusion proof exceeds maximum depth")
	ErrUnknownProofKind  = errors.New("unknown inclusion proof kind")
	ErrEmptyAccount      = errors.New("empty account id")
	ErrZeroAmount        = errors.New("zero amount")
	ErrEmptyPayload      = errors.New("empty payload")
	ErrPayloadTooLarge   = errors.New("payload too large")
	ErrInvalidConfigKey  = errors.New("invalid config key")
	ErrEmptyBatch        = errors.New("empty batch")
	ErrBatchTooLarge     = errors.New("batch too large")
	ErrNestedBatch       = errors.New("nested batch")
	ErrMissingTransferID = errors.New("missing transfer id")
	ErrDuplicateFact     = errors.New("fact asserted twice in batch")
	ErrVaultUndefined    = errors.New("shard vault undefined")
	ErrWrongVault        = errors.New("transfer does not involve the shard vault")

	// ErrFactConsumed is a rejection found at dispatch time: the proven fact
	// was already consumed by another extrinsic.
	ErrFactConsumed = errors.New("proven fact already consumed")
)

// RejectionError is returned by the validator when the evidence or the fields
// of an indirect call do not hold. It is recorded against the extrinsic and
// never escalated.
type RejectionError struct {
	Kind   CallKind
	Reason error
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%s rejected: %v", e.Kind, e.Reason)
}

func (e *RejectionError) Unwrap() error { return e.Reason }

func reject(kind CallKind, reason error) *RejectionError {
	return &RejectionError{Kind: kind, Reason: reason}
}

// IsRetryable reports whether a dispatch error may succeed on redelivery of
// the same block.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrDispatchInFlight) ||
		errors.Is(err, ErrMarkerStore) ||
		errors.Is(err, ErrSubmission) ||
		errors.Is(err, ErrSigning)
}
