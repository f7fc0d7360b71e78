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

import "github.com/ethereum/go-ethereum/metrics"

var (
	blockTimer = metrics.NewRegisteredTimer("relay/block/process", nil)

	ignoredMeter    = metrics.NewRegisteredMeter("relay/extrinsic/ignored", nil)
	rejectedMeter   = metrics.NewRegisteredMeter("relay/extrinsic/rejected", nil)
	dispatchedMeter = metrics.NewRegisteredMeter("relay/extrinsic/dispatched", nil)
	duplicateMeter  = metrics.NewRegisteredMeter("relay/extrinsic/already", nil)
	failedMeter     = metrics.NewRegisteredMeter("relay/extrinsic/failed", nil)

	trustedCallCounter = metrics.NewRegisteredCounter("relay/trustedcalls", nil)
)

func (r *BlockReport) mark() {
	ignoredMeter.Mark(int64(r.Ignored))
	rejectedMeter.Mark(int64(r.Rejected))
	dispatchedMeter.Mark(int64(r.Dispatched))
	duplicateMeter.Mark(int64(r.AlreadyProcessed))
	failedMeter.Mark(int64(r.DispatchFailed))
	trustedCallCounter.Inc(int64(r.Calls))
}
