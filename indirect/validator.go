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
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Validator checks the evidence and the fields of classified calls. It is a
// pure function of the call, the block's state root and the shard vaults.
type Validator struct {
	config   *Config
	verifier ProofVerifier
	vaults   VaultQuery
}

// NewValidator creates a validator using verifier for inclusion proofs and
// vaults to resolve the account a proven transfer must involve.
func NewValidator(config *Config, verifier ProofVerifier, vaults VaultQuery) *Validator {
	return &Validator{config: config, verifier: verifier, vaults: vaults}
}

// Validate returns nil when call may be translated, or a *RejectionError.
// Only stateRoot, the root committed by the block being processed, is
// accepted.
func (v *Validator) Validate(call IndirectCall, stateRoot common.Hash) error {
	if batch, ok := call.(*BatchCall); ok {
		return v.validateBatch(batch, stateRoot)
	}
	if err := v.checkFields(call); err != nil {
		return reject(call.Kind(), err)
	}
	if proven, ok := call.(provenCall); ok {
		if err := v.checkTransfer(proven); err != nil {
			return reject(call.Kind(), err)
		}
		if err := v.checkProof(proven, stateRoot); err != nil {
			return reject(call.Kind(), err)
		}
	}
	return nil
}

func (v *Validator) validateBatch(batch *BatchCall, stateRoot common.Hash) error {
	if len(batch.Calls) == 0 {
		return reject(KindBatch, ErrEmptyBatch)
	}
	if len(batch.Calls) > v.config.MaxBatchSize {
		return reject(KindBatch, ErrBatchTooLarge)
	}
	facts := make(map[common.Hash]struct{})
	for _, inner := range batch.Calls {
		if _, nested := inner.(*BatchCall); nested {
			return reject(KindBatch, ErrNestedBatch)
		}
		if err := v.Validate(inner, stateRoot); err != nil {
			// One bad element rejects the whole batch.
			return reject(KindBatch, err)
		}
		if proven, ok := inner.(provenCall); ok {
			fact := FactHash(proven.InclusionProof().Leaf)
			if _, dup := facts[fact]; dup {
				return reject(KindBatch, ErrDuplicateFact)
			}
			facts[fact] = struct{}{}
		}
	}
	return nil
}

func (v *Validator) checkFields(call IndirectCall) error {
	switch c := call.(type) {
	case *ShieldFunds:
		if len(c.Account) == 0 {
			return ErrEmptyAccount
		}
		if c.Amount == nil || c.Amount.IsZero() {
			return ErrZeroAmount
		}
	case *UnshieldFunds:
		if len(c.Beneficiary) == 0 {
			return ErrEmptyAccount
		}
		if c.Amount == nil || c.Amount.IsZero() {
			return ErrZeroAmount
		}
	case *InvokeCall:
		if len(c.Payload) == 0 {
			return ErrEmptyPayload
		}
		if len(c.Payload) > v.config.MaxPayloadSize {
			return ErrPayloadTooLarge
		}
	case *SetConfig:
		if len(c.Key) == 0 || len(c.Key) > v.config.MaxConfigKeyLen {
			return ErrInvalidConfigKey
		}
		if len(c.Value) > v.config.MaxPayloadSize {
			return ErrPayloadTooLarge
		}
	}
	return nil
}

// checkTransfer requires a transfer id and the shard vault as the other side
// of the transfer.
func (v *Validator) checkTransfer(call provenCall) error {
	if call.transferID() == (common.Hash{}) {
		return ErrMissingTransferID
	}
	shard, vault := call.shardVault()
	want, err := v.vaults.ShardVault(shard)
	if err != nil {
		if errors.Is(err, ErrVaultUndefined) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrVaultUndefined, err)
	}
	if len(want) == 0 {
		return ErrVaultUndefined
	}
	if !bytes.Equal(want, vault) {
		return ErrWrongVault
	}
	return nil
}

func (v *Validator) checkProof(call provenCall, stateRoot common.Hash) error {
	proof := call.InclusionProof()
	if proof == nil {
		return ErrMissingProof
	}
	if proof.Kind != ProofKindMerklePath && proof.Kind != ProofKindStorageTrie {
		return ErrUnknownProofKind
	}
	if proof.Depth() > v.config.MaxProofDepth {
		return ErrProofTooDeep
	}
	leaf, err := call.ExpectedLeaf()
	if err != nil || !bytes.Equal(leaf, proof.Leaf) {
		return ErrProofMismatch
	}
	if !v.verifier.VerifyProof(proof, stateRoot) {
		return ErrProofUnverified
	}
	return nil
}
