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
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/xchain/indirect-relay/parentchain"
)

type outcome uint8

const (
	outcomeIgnored outcome = iota
	outcomeRejected
	outcomeReady
)

// prepared is the result of the pure stages for one extrinsic.
type prepared struct {
	index   uint32
	kind    CallKind
	outcome outcome
	calls   []*TrustedCall
	err     error
}

// Processor drives one parentchain block at a time through classification,
// validation, translation and dispatch. Blocks must be handed over in
// parentchain order by a single caller.
type Processor struct {
	config     *Config
	classifier *Classifier
	validator  *Validator
	translator *Translator
	dispatcher *Dispatcher
	log        log.Logger
}

// NewProcessor wires a processor for the V1 schema. Collaborators outside the
// trust boundary are injected here and nowhere else.
func NewProcessor(config *Config, markers MarkerStore, executor Executor, signer Signer, vaults VaultQuery) (*Processor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if vaults == nil {
		return nil, fmt.Errorf("%w: no shard vault query", ErrInvalidConfig)
	}
	hasher, err := NewHasher(config.Hasher)
	if err != nil {
		return nil, err
	}
	return &Processor{
		config:     config,
		classifier: NewClassifier(SchemaV1()),
		validator:  NewValidator(config, NewMerkleVerifier(hasher), vaults),
		translator: NewTranslator(),
		dispatcher: NewDispatcher(markers, executor, signer, config.MarkerCacheSize),
		log:        log.New("module", "indirect"),
	}, nil
}

// Process handles every extrinsic of block and returns the block report.
// Per-extrinsic failures end up in the report. An error is only returned for
// fatal configuration errors (wrapping ErrFatalConfig) or when ctx is
// cancelled, in which case the partial report is returned as well and the
// block can be replayed from the start.
func (p *Processor) Process(ctx context.Context, block *parentchain.Block) (*BlockReport, error) {
	start := time.Now()
	defer blockTimer.UpdateSince(start)

	report := &BlockReport{Block: block.Hash(), Height: block.Number()}
	logger := p.log.New("number", block.Number(), "hash", block.Hash())

	if err := block.SanityCheck(); err != nil {
		logger.Warn("Malformed block from parentchain source", "err", err)
	}
	logger.Trace("Block stage", "stage", StageReceived, "extrinsics", len(block.Extrinsics))

	results, err := p.prepare(ctx, block, logger)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			report.Interrupted = true
			return report, ctxErr
		}
		logger.Error("Aborting block on configuration error", "err", err)
		return nil, err
	}

	logger.Trace("Block stage", "stage", StageDispatching)
	for _, r := range results {
		switch r.outcome {
		case outcomeIgnored:
			report.Ignored++
			continue
		case outcomeRejected:
			report.Rejected++
			report.Rejections = append(report.Rejections, Rejection{Index: r.index, Kind: r.kind, Err: r.err})
			logger.Debug("Indirect call rejected", "index", r.index, "kind", r.kind, "err", r.err)
			continue
		}
		if err := ctx.Err(); err != nil {
			report.Interrupted = true
			logger.Warn("Block processing interrupted", "index", r.index, "err", err)
			report.mark()
			return report, err
		}
		key := MarkerKey{Block: report.Block, Index: r.index}
		res := p.dispatcher.Dispatch(ctx, key, report.Height, r.calls)
		report.Calls += res.Submitted

		switch res.Status {
		case StatusDispatched:
			report.Dispatched++
			logger.Debug("Indirect call dispatched", "index", r.index, "kind", r.kind, "calls", res.Submitted, "resumed", res.Resumed)
		case StatusAlreadyProcessed:
			report.AlreadyProcessed++
			logger.Debug("Indirect call already processed", "index", r.index, "kind", r.kind)
		case StatusFactConsumed:
			report.Rejected++
			report.Rejections = append(report.Rejections, Rejection{Index: r.index, Kind: r.kind, Err: reject(r.kind, res.Err)})
			logger.Debug("Indirect call rejected", "index", r.index, "kind", r.kind, "err", res.Err)
		default:
			report.DispatchFailed++
			report.Failures = append(report.Failures, DispatchFailure{Index: r.index, Kind: r.kind, Submitted: res.Submitted, Err: res.Err})
			logger.Warn("Indirect call dispatch failed", "index", r.index, "kind", r.kind, "submitted", res.Submitted, "err", res.Err)
		}
	}
	report.mark()
	logger.Trace("Block stage", "stage", StageCompleted)

	logFn := logger.Debug
	if report.Dispatched > 0 || report.Rejected > 0 || report.DispatchFailed > 0 {
		logFn = logger.Info
	}
	logFn("Processed parentchain block", "ignored", report.Ignored, "rejected", report.Rejected,
		"dispatched", report.Dispatched, "already", report.AlreadyProcessed, "failed", report.DispatchFailed,
		"calls", report.Calls, "elapsed", common.PrettyDuration(time.Since(start)))
	return report, nil
}

// prepare runs the pure stages for all extrinsics in parallel. Results keep
// the block's extrinsic order.
func (p *Processor) prepare(ctx context.Context, block *parentchain.Block, logger log.Logger) ([]prepared, error) {
	results := make([]prepared, len(block.Extrinsics))
	root := block.StateRoot()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for i := range block.Extrinsics {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := p.prepareOne(block, block.Extrinsics[i], root, logger)
			results[i] = r
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *Processor) prepareOne(block *parentchain.Block, ext parentchain.Extrinsic, root common.Hash, logger log.Logger) (prepared, error) {
	r := prepared{index: ext.Index}

	logger.Trace("Extrinsic stage", "index", ext.Index, "stage", StageClassifying)
	call, ok := p.classifier.Classify(ext)
	if !ok {
		r.outcome = outcomeIgnored
		return r, nil
	}
	r.kind = call.Kind()

	logger.Trace("Extrinsic stage", "index", ext.Index, "stage", StageValidating, "kind", r.kind)
	if err := p.validator.Validate(call, root); err != nil {
		r.outcome = outcomeRejected
		r.err = err
		return r, nil
	}

	logger.Trace("Extrinsic stage", "index", ext.Index, "stage", StageTranslating, "kind", r.kind)
	origin := CallOrigin{Block: block.Hash(), Height: block.Number(), Extrinsic: ext.Index}
	calls, err := p.translator.Translate(call, origin)
	if err != nil {
		if errors.Is(err, ErrTranslationImpossible) {
			return r, fmt.Errorf("%w: extrinsic %d: %w", ErrFatalConfig, ext.Index, err)
		}
		return r, err
	}
	r.outcome = outcomeReady
	r.calls = calls
	return r, nil
}
