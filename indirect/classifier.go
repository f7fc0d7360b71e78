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
	"github.com/ethereum/go-ethereum/log"

	"github.com/xchain/indirect-relay/parentchain"
)

// Classifier recognizes indirect calls among parentchain extrinsics.
// Classification answers which shape an extrinsic has, not whether its fields
// are valid.
type Classifier struct {
	schema *Schema
	log    log.Logger
}

// NewClassifier creates a classifier over a static schema.
func NewClassifier(schema *Schema) *Classifier {
	return &Classifier{
		schema: schema,
		log:    log.New("module", "classifier", "schema", schema.Version()),
	}
}

// Classify decodes ext as one of the known indirect call variants. The second
// result is false when the extrinsic is not an indirect call, which is the
// expected outcome for most extrinsics.
func (c *Classifier) Classify(ext parentchain.Extrinsic) (IndirectCall, bool) {
	call, err := c.schema.Decode(ext.Raw)
	if err != nil {
		c.log.Trace("Extrinsic not applicable", "index", ext.Index, "size", len(ext.Raw), "reason", err)
		return nil, false
	}
	return call, true
}
