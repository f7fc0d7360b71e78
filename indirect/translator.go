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
	"github.com/holiman/uint256"
)

// Translator maps validated indirect calls to trusted calls. It only moves
// already authenticated data; balance and call semantics are checked by the
// execution layer.
type Translator struct{}

// NewTranslator creates a translator.
func NewTranslator() *Translator { return &Translator{} }

// Translate returns the trusted calls implied by call, in execution order.
// An error means the classifier produced a variant this translator does not
// know, which is a deployment error and wraps ErrTranslationImpossible.
func (t *Translator) Translate(call IndirectCall, origin CallOrigin) ([]*TrustedCall, error) {
	if batch, ok := call.(*BatchCall); ok {
		calls := make([]*TrustedCall, 0, len(batch.Calls))
		for i, inner := range batch.Calls {
			o := origin
			o.Position = uint32(i)
			tc, err := t.translateOne(inner, o)
			if err != nil {
				return nil, fmt.Errorf("batch position %d: %w", i, err)
			}
			calls = append(calls, tc)
		}
		return calls, nil
	}
	tc, err := t.translateOne(call, origin)
	if err != nil {
		return nil, err
	}
	return []*TrustedCall{tc}, nil
}

func (t *Translator) translateOne(call IndirectCall, origin CallOrigin) (*TrustedCall, error) {
	switch c := call.(type) {
	case *ShieldFunds:
		fact, err := factOf(c)
		if err != nil {
			return nil, err
		}
		return &TrustedCall{
			Shard:   c.Shard,
			Op:      OpShield,
			Account: common.CopyBytes(c.Account),
			Amount:  new(uint256.Int).Set(c.Amount),
			Fact:    fact,
			Origin:  origin,
		}, nil
	case *UnshieldFunds:
		fact, err := factOf(c)
		if err != nil {
			return nil, err
		}
		return &TrustedCall{
			Shard:   c.Shard,
			Op:      OpUnshield,
			Account: common.CopyBytes(c.Beneficiary),
			Amount:  new(uint256.Int).Set(c.Amount),
			Fact:    fact,
			Origin:  origin,
		}, nil
	case *InvokeCall:
		return &TrustedCall{
			Shard:   c.Shard,
			Op:      OpInvoke,
			Amount:  new(uint256.Int),
			Payload: common.CopyBytes(c.Payload),
			Origin:  origin,
		}, nil
	case *SetConfig:
		return &TrustedCall{
			Shard:   c.Shard,
			Op:      OpSetConfig,
			Amount:  new(uint256.Int),
			Key:     c.Key,
			Payload: common.CopyBytes(c.Value),
			Origin:  origin,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T (%s)", ErrTranslationImpossible, call, call.Kind())
	}
}

func factOf(call provenCall) (common.Hash, error) {
	leaf, err := call.ExpectedLeaf()
	if err != nil {
		return common.Hash{}, fmt.Errorf("%w: %s leaf: %v", ErrTranslationImpossible, call.Kind(), err)
	}
	return FactHash(leaf), nil
}
