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

// Package relay feeds parentchain blocks to the indirect-call processor in
// height order and redelivers blocks whose dispatch partly failed.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"

	"github.com/xchain/indirect-relay/indirect"
	"github.com/xchain/indirect-relay/parentchain"
)

var (
	ErrInvalidConfig       = errors.New("invalid relay driver configuration")
	ErrRedeliveryExhausted = errors.New("block still has failed dispatches after all redeliveries")

	redeliveryMeter = metrics.NewRegisteredMeter("relay/driver/redelivery", nil)
	heightGauge     = metrics.NewRegisteredGauge("relay/driver/height", nil)
)

// Config controls redelivery of blocks with retryable failures.
type Config struct {
	MaxRedeliveries   int `toml:"max_redeliveries"`
	RedeliveryDelayMs int `toml:"redelivery_delay_ms"`
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() *Config {
	return &Config{MaxRedeliveries: 5, RedeliveryDelayMs: 500}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.MaxRedeliveries < 0 || c.RedeliveryDelayMs < 0 {
		return fmt.Errorf("%w: negative redelivery settings", ErrInvalidConfig)
	}
	return nil
}

// BlockProcessor processes one block. It is satisfied by *indirect.Processor.
type BlockProcessor interface {
	Process(ctx context.Context, block *parentchain.Block) (*indirect.BlockReport, error)
}

// HeightStore persists the last completely processed height.
type HeightStore interface {
	ReadLastHeight() (uint64, bool, error)
	WriteLastHeight(height uint64) error
}

// Driver pulls blocks from a source, one at a time.
type Driver struct {
	config    *Config
	source    parentchain.BlockSource
	processor BlockProcessor
	heights   HeightStore

	// OnReport, if set, receives the final report of every block.
	OnReport func(report *indirect.BlockReport)

	log log.Logger
}

// NewDriver creates a driver.
func NewDriver(config *Config, source parentchain.BlockSource, processor BlockProcessor, heights HeightStore) (*Driver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Driver{
		config:    config,
		source:    source,
		processor: processor,
		heights:   heights,
		log:       log.New("module", "relay"),
	}, nil
}

// Run processes blocks until the source is exhausted, ctx is cancelled, a
// fatal configuration error occurs or a block exhausts its redeliveries.
// Blocks at or below the last completed height are skipped.
func (d *Driver) Run(ctx context.Context) error {
	last, started, err := d.heights.ReadLastHeight()
	if err != nil {
		return fmt.Errorf("failed to read last processed height: %w", err)
	}
	if started {
		d.log.Info("Resuming relay", "last", last)
	}
	for {
		block, err := d.source.Next(ctx)
		if errors.Is(err, io.EOF) {
			d.log.Info("Parentchain source exhausted", "last", last)
			return nil
		}
		if err != nil {
			return err
		}
		number := block.Number()
		if started && number <= last {
			d.log.Debug("Skipping completed block", "number", number, "hash", block.Hash())
			continue
		}
		if started && number > last+1 {
			d.log.Warn("Gap in parentchain heights", "last", last, "next", number)
		}

		report, err := d.processBlock(ctx, block)
		if report != nil && d.OnReport != nil {
			d.OnReport(report)
		}
		if err != nil {
			return err
		}
		if err := d.heights.WriteLastHeight(number); err != nil {
			return fmt.Errorf("failed to store processed height: %w", err)
		}
		last, started = number, true
		heightGauge.Update(int64(number))
	}
}

func (d *Driver) processBlock(ctx context.Context, block *parentchain.Block) (*indirect.BlockReport, error) {
	delay := time.Duration(d.config.RedeliveryDelayMs) * time.Millisecond
	for attempt := 0; ; attempt++ {
		start := time.Now()
		report, err := d.processor.Process(ctx, block)
		if err != nil {
			return report, err
		}
		if !report.Retryable() {
			d.log.Debug("Block completed", "number", block.Number(), "attempts", attempt+1, "elapsed", common.PrettyDuration(time.Since(start)))
			return report, nil
		}
		if attempt >= d.config.MaxRedeliveries {
			d.log.Error("Giving up on block", "number", block.Number(), "hash", block.Hash(), "failed", report.DispatchFailed)
			return report, fmt.Errorf("%w: block %d after %d attempts", ErrRedeliveryExhausted, block.Number(), attempt+1)
		}
		redeliveryMeter.Mark(1)
		d.log.Warn("Redelivering block", "number", block.Number(), "failed", report.DispatchFailed, "attempt", attempt+1, "delay", delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return report, ctx.Err()
		case <-timer.C:
		}
	}
}
