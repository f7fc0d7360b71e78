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
)

// Stage is the position of an extrinsic or block in the processing pipeline.
type Stage uint8

const (
	StageReceived Stage = iota
	StageClassifying
	StageValidating
	StageTranslating
	StageDispatching
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageReceived:
		return "received"
	case StageClassifying:
		return "classifying"
	case StageValidating:
		return "validating"
	case StageTranslating:
		return "translating"
	case StageDispatching:
		return "dispatching"
	case StageCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Rejection records an extrinsic whose evidence or fields did not hold.
type Rejection struct {
	Index uint32
	Kind  CallKind
	Err   error
}

// DispatchFailure records an extrinsic that should be retried by
// redelivering the block.
type DispatchFailure struct {
	Index     uint32
	Kind      CallKind
	Submitted int
	Err       error
}

// BlockReport is the outcome of processing one parentchain block.
type BlockReport struct {
	Block  common.Hash
	Height uint64

	Ignored          int
	Rejected         int
	Dispatched       int
	AlreadyProcessed int
	DispatchFailed   int

	// Calls is the number of trusted calls accepted by the execution queue.
	Calls int

	Rejections []Rejection
	Failures   []DispatchFailure

	// Interrupted is set when processing stopped before every extrinsic was
	// dispatched. Replaying the block resumes where it stopped.
	Interrupted bool
}

// Retryable reports whether redelivering the block may make progress.
func (r *BlockReport) Retryable() bool {
	return r.DispatchFailed > 0 || r.Interrupted
}

// Total returns the number of extrinsics accounted for.
func (r *BlockReport) Total() int {
	return r.Ignored + r.Rejected + r.Dispatched + r.AlreadyProcessed + r.DispatchFailed
}

func (r *BlockReport) String() string {
	return fmt.Sprintf("block %d (%s): ignored=%d rejected=%d dispatched=%d already=%d failed=%d calls=%d",
		r.Height, r.Block.TerminalString(), r.Ignored, r.Rejected, r.Dispatched, r.AlreadyProcessed, r.DispatchFailed, r.Calls)
}
