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
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/triedb"
	"github.com/holiman/uint256"
)

func newTestValidator() *Validator {
	return NewValidator(DefaultConfig(), NewMerkleVerifier(testHasher), defaultVaults())
}

func TestValidator_AcceptsProvenShield(t *testing.T) {
	shields, root := provenShields(t, 10, 20, 30)
	v := newTestValidator()
	for i, call := range shields {
		if err := v.Validate(call, root); err != nil {
			t.Errorf("shield %d: unexpected rejection: %v", i, err)
		}
	}
}

func TestValidator_RejectsBadProofs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(call *ShieldFunds)
		want   error
	}{
		{"missing proof", func(c *ShieldFunds) { c.Proof = nil }, ErrMissingProof},
		{"swapped sibling order", func(c *ShieldFunds) { c.Proof.Path[0].Left = !c.Proof.Path[0].Left }, ErrProofUnverified},
		{"altered sibling", func(c *ShieldFunds) { c.Proof.Path[1].Sibling[0] ^= 0x01 }, ErrProofUnverified},
		{"amount differs from proven fact", func(c *ShieldFunds) { c.Amount = uint256.NewInt(11) }, ErrProofMismatch},
		{"leaf of another fact", func(c *ShieldFunds) {
			leaf, _ := ShieldLeaf(c.Shard, c.Deposit, c.Vault, AccountID{0x01}, c.Amount)
			c.Proof.Leaf = leaf
		}, ErrProofMismatch},
		{"deposit differs from proven fact", func(c *ShieldFunds) { c.Deposit = common.HexToHash("0xd1ff") }, ErrProofMismatch},
		{"missing deposit id", func(c *ShieldFunds) { c.Deposit = common.Hash{} }, ErrMissingTransferID},
		{"transfer to another account", func(c *ShieldFunds) { c.Vault = AccountID{0x0b} }, ErrWrongVault},
		{"unknown proof kind", func(c *ShieldFunds) { c.Proof.Kind = 9 }, ErrUnknownProofKind},
		{"too deep", func(c *ShieldFunds) {
			c.Proof.Path = append(c.Proof.Path, make([]ProofNode, DefaultConfig().MaxProofDepth)...)
		}, ErrProofTooDeep},
	}

	v := newTestValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shields, root := provenShields(t, 10, 20, 30)
			call := shields[0]
			tt.mutate(call)

			err := v.Validate(call, root)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			var rejection *RejectionError
			if !errors.As(err, &rejection) || rejection.Kind != KindShieldFunds {
				t.Errorf("expected shield rejection, got %#v", err)
			}
		})
	}
}

func TestValidator_OnlyBlockStateRoot(t *testing.T) {
	shields, root := provenShields(t, 10, 20)
	_, otherRoot := provenShields(t, 10, 21)

	v := newTestValidator()
	if err := v.Validate(shields[0], root); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}
	if err := v.Validate(shields[0], otherRoot); !errors.Is(err, ErrProofUnverified) {
		t.Fatalf("proof must not verify against another root, got %v", err)
	}
}

func TestValidator_HasherMismatch(t *testing.T) {
	shields, root := provenShields(t, 10, 20)
	v := NewValidator(DefaultConfig(), NewMerkleVerifier(Keccak256Hasher{}), defaultVaults())
	if err := v.Validate(shields[0], root); !errors.Is(err, ErrProofUnverified) {
		t.Fatalf("expected unverified proof under keccak256, got %v", err)
	}
}

func TestValidator_FieldChecks(t *testing.T) {
	config := DefaultConfig()
	tests := []struct {
		name string
		call IndirectCall
		want error
	}{
		{"empty account", &ShieldFunds{Shard: testShard, Amount: uint256.NewInt(1)}, ErrEmptyAccount},
		{"zero amount", &ShieldFunds{Shard: testShard, Account: testAccount, Amount: uint256.NewInt(0)}, ErrZeroAmount},
		{"nil amount", &UnshieldFunds{Shard: testShard, Beneficiary: testAccount}, ErrZeroAmount},
		{"empty beneficiary", &UnshieldFunds{Shard: testShard, Amount: uint256.NewInt(1)}, ErrEmptyAccount},
		{"empty payload", &InvokeCall{Shard: testShard}, ErrEmptyPayload},
		{"payload too large", &InvokeCall{Shard: testShard, Payload: make([]byte, config.MaxPayloadSize+1)}, ErrPayloadTooLarge},
		{"empty config key", &SetConfig{Shard: testShard, Value: []byte{1}}, ErrInvalidConfigKey},
		{"long config key", &SetConfig{Shard: testShard, Key: strings.Repeat("k", config.MaxConfigKeyLen+1)}, ErrInvalidConfigKey},
	}

	v := NewValidator(config, NewMerkleVerifier(testHasher), defaultVaults())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := v.Validate(tt.call, common.Hash{}); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// failingVaults fails every vault lookup.
type failingVaults struct{ err error }

func (f failingVaults) ShardVault(common.Hash) (AccountID, error) { return nil, f.err }

func TestValidator_ShardVault(t *testing.T) {
	shields, root := provenShields(t, 10)
	tests := []struct {
		name   string
		vaults VaultQuery
		want   error
	}{
		{"undefined vault", testVaults{}, ErrVaultUndefined},
		{"empty vault", testVaults{testShard: AccountID{}}, ErrVaultUndefined},
		{"lookup failure", failingVaults{errors.New("state unavailable")}, ErrVaultUndefined},
		{"other shard vault", testVaults{testShard: AccountID{0x0c}}, ErrWrongVault},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewValidator(DefaultConfig(), NewMerkleVerifier(testHasher), tt.vaults)
			if err := v.Validate(shields[0], root); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if err := newTestValidator().Validate(shields[0], root); err != nil {
		t.Fatalf("unexpected rejection with the shard vault: %v", err)
	}
}

func TestValidator_UnprovenCallsNeedNoRoot(t *testing.T) {
	v := newTestValidator()
	if err := v.Validate(&InvokeCall{Shard: testShard, Payload: []byte{1, 2, 3}}, common.Hash{}); err != nil {
		t.Errorf("invoke: unexpected rejection: %v", err)
	}
	if err := v.Validate(&SetConfig{Shard: testShard, Key: "signing_key", Value: []byte{1}}, common.Hash{}); err != nil {
		t.Errorf("set_config: unexpected rejection: %v", err)
	}
}

func TestValidator_Batch(t *testing.T) {
	shields, root := provenShields(t, 1, 2, 3)
	v := newTestValidator()

	good := &BatchCall{Calls: []IndirectCall{shields[0], &InvokeCall{Shard: testShard, Payload: []byte{1}}, shields[2]}}
	if err := v.Validate(good, root); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	shields[1].Amount = uint256.NewInt(99)
	bad := &BatchCall{Calls: []IndirectCall{shields[0], shields[1], shields[2]}}
	err := v.Validate(bad, root)
	if !errors.Is(err, ErrProofMismatch) {
		t.Fatalf("one bad element must reject the batch, got %v", err)
	}
	var rejection *RejectionError
	if !errors.As(err, &rejection) || rejection.Kind != KindBatch {
		t.Errorf("expected batch rejection, got %v", err)
	}

	if err := v.Validate(&BatchCall{}, root); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected empty batch rejection, got %v", err)
	}
	if err := v.Validate(&BatchCall{Calls: []IndirectCall{&BatchCall{}}}, root); !errors.Is(err, ErrNestedBatch) {
		t.Errorf("expected nested batch rejection, got %v", err)
	}
	dup := &BatchCall{Calls: []IndirectCall{shields[0], shields[2], shields[0]}}
	if err := v.Validate(dup, root); !errors.Is(err, ErrDuplicateFact) {
		t.Errorf("expected duplicate fact rejection, got %v", err)
	}
	large := &BatchCall{Calls: make([]IndirectCall, DefaultConfig().MaxBatchSize+1)}
	if err := v.Validate(large, root); !errors.Is(err, ErrBatchTooLarge) {
		t.Errorf("expected batch too large, got %v", err)
	}
}

func TestValidator_StorageTrieProof(t *testing.T) {
	call := &UnshieldFunds{Shard: testShard, Release: common.HexToHash("0x4e1"), Vault: testVault, Beneficiary: testAccount, Amount: uint256.NewInt(500)}
	leaf, err := call.ExpectedLeaf()
	if err != nil {
		t.Fatalf("failed to encode leaf: %v", err)
	}

	tr := trie.NewEmpty(triedb.NewDatabase(rawdb.NewMemoryDatabase(), nil))
	key := crypto.Keccak256([]byte("vault/release/1"))
	tr.MustUpdate(key, leaf)
	tr.MustUpdate(crypto.Keccak256([]byte("vault/release/2")), []byte("other release record"))
	tr.MustUpdate(crypto.Keccak256([]byte("vault/release/3")), []byte("yet another release record"))
	root := tr.Hash()

	proofDb := memorydb.New()
	if err := tr.Prove(key, proofDb); err != nil {
		t.Fatalf("failed to build proof: %v", err)
	}
	var nodes [][]byte
	it := proofDb.NewIterator(nil, nil)
	for it.Next() {
		nodes = append(nodes, common.CopyBytes(it.Value()))
	}
	it.Release()

	call.Proof = &InclusionProof{Kind: ProofKindStorageTrie, Leaf: leaf, Key: key, Nodes: nodes}
	v := newTestValidator()
	if err := v.Validate(call, root); err != nil {
		t.Fatalf("unexpected rejection: %v", err)
	}

	// Same proof, wrong key.
	call.Proof.Key = crypto.Keccak256([]byte("vault/release/2"))
	if err := v.Validate(call, root); !errors.Is(err, ErrProofUnverified) {
		t.Errorf("expected unverified proof for wrong key, got %v", err)
	}

	// Garbage nodes never panic.
	call.Proof.Key = key
	call.Proof.Nodes = [][]byte{{0xc2, 0x80}, {0xff, 0xff, 0xff}}
	if err := v.Validate(call, root); !errors.Is(err, ErrProofUnverified) {
		t.Errorf("expected unverified proof for garbage nodes, got %v", err)
	}
}

func TestMerkleVerifier_SingleLeaf(t *testing.T) {
	leaf := []byte("only leaf")
	verifier := NewMerkleVerifier(Keccak256Hasher{})
	root := crypto.Keccak256Hash(leaf)
	if !verifier.VerifyProof(&InclusionProof{Leaf: leaf}, root) {
		t.Error("empty path must verify against the hashed leaf")
	}
	if verifier.VerifyProof(nil, root) {
		t.Error("nil proof must not verify")
	}
}
