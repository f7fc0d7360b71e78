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
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"github.com/xchain/indirect-relay/parentchain"
)

func TestClassifier_KnownVariants(t *testing.T) {
	shields, _ := provenShields(t, 100)
	tests := []struct {
		name string
		call IndirectCall
		kind CallKind
	}{
		{"shield", shields[0], KindShieldFunds},
		{"unshield", &UnshieldFunds{Shard: testShard, Beneficiary: testAccount, Amount: uint256.NewInt(7)}, KindUnshieldFunds},
		{"invoke", &InvokeCall{Shard: testShard, Payload: []byte{0xde, 0xad}}, KindInvokeCall},
		{"set_config", &SetConfig{Shard: testShard, Key: "signing_key", Value: []byte{1}}, KindSetConfig},
		{"batch", &BatchCall{Calls: []IndirectCall{
			&InvokeCall{Shard: testShard, Payload: []byte{1}},
			shields[0],
		}}, KindBatch},
	}

	c := NewClassifier(SchemaV1())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			call, ok := c.Classify(parentchain.Extrinsic{Index: 3, Raw: encodeCall(t, tt.call)})
			if !ok {
				t.Fatal("expected extrinsic to classify")
			}
			if call.Kind() != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, call.Kind())
			}
		})
	}
}

func TestClassifier_ShieldFieldsSurvive(t *testing.T) {
	shields, _ := provenShields(t, 5, 6, 7)
	want := shields[1]

	call, ok := NewClassifier(SchemaV1()).Classify(parentchain.Extrinsic{Raw: encodeCall(t, want)})
	if !ok {
		t.Fatal("expected extrinsic to classify")
	}
	got, isShield := call.(*ShieldFunds)
	if !isShield {
		t.Fatalf("expected *ShieldFunds, got %T", call)
	}
	if got.Shard != want.Shard || got.Deposit != want.Deposit || !bytes.Equal(got.Vault, want.Vault) ||
		!bytes.Equal(got.Account, want.Account) || got.Amount.Cmp(want.Amount) != 0 {
		t.Errorf("fields changed: got %+v want %+v", got, want)
	}
	if got.Proof == nil || len(got.Proof.Path) != len(want.Proof.Path) {
		t.Fatalf("proof not decoded: %+v", got.Proof)
	}
	for i := range got.Proof.Path {
		if got.Proof.Path[i] != want.Proof.Path[i] {
			t.Errorf("proof node %d differs", i)
		}
	}
}

func TestClassifier_NotApplicable(t *testing.T) {
	schema := SchemaV1()
	valid := encodeCall(t, &InvokeCall{Shard: testShard, Payload: []byte{1}})

	wrongVersion, _ := rlp.EncodeToBytes(&envelope{Version: 2, Pallet: PalletEnclaveBridge, Call: CallInvoke, Args: mustRLP(t, &InvokeCall{Payload: []byte{1}})})
	unknownCall, _ := rlp.EncodeToBytes(&envelope{Version: SchemaVersionV1, Pallet: PalletEnclaveBridge, Call: 0x7f, Args: mustRLP(t, []byte{1})})
	badArgs, _ := rlp.EncodeToBytes(&envelope{Version: SchemaVersionV1, Pallet: PalletEnclaveBridge, Call: CallShieldFunds, Args: mustRLP(t, uint64(9))})

	innerUnknown, _ := rlp.EncodeToBytes([]batchEntry{
		{Pallet: PalletEnclaveBridge, Call: CallInvoke, Args: mustRLP(t, &InvokeCall{Payload: []byte{1}})},
		{Pallet: 0x09, Call: 0x01, Args: mustRLP(t, []byte{})},
	})
	partialBatch, _ := rlp.EncodeToBytes(&envelope{Version: SchemaVersionV1, Pallet: PalletUtility, Call: CallBatch, Args: innerUnknown})

	nestedInner, _ := rlp.EncodeToBytes([]batchEntry{})
	nested, _ := rlp.EncodeToBytes([]batchEntry{{Pallet: PalletUtility, Call: CallBatch, Args: nestedInner}})
	nestedBatch, _ := rlp.EncodeToBytes(&envelope{Version: SchemaVersionV1, Pallet: PalletUtility, Call: CallBatch, Args: nested})

	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"garbage", []byte{0xff, 0x00, 0x13}},
		{"truncated", valid[:len(valid)-1]},
		{"trailing bytes", append(append([]byte{}, valid...), 0x01)},
		{"wrong version", wrongVersion},
		{"unknown call", unknownCall},
		{"args of wrong shape", badArgs},
		{"batch with unknown inner call", partialBatch},
		{"nested batch", nestedBatch},
	}

	c := NewClassifier(schema)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if call, ok := c.Classify(parentchain.Extrinsic{Raw: tt.raw}); ok {
				t.Fatalf("expected not applicable, got %s", call.Kind())
			}
		})
	}
}

func TestClassifier_DoesNotCheckFields(t *testing.T) {
	raw := encodeCall(t, &ShieldFunds{Shard: testShard, Account: AccountID{}, Amount: uint256.NewInt(0)})

	call, ok := NewClassifier(SchemaV1()).Classify(parentchain.Extrinsic{Raw: raw})
	if !ok {
		t.Fatal("zero-length account must still classify")
	}
	if call.Kind() != KindShieldFunds {
		t.Errorf("expected shield_funds, got %s", call.Kind())
	}
}

func mustRLP(t *testing.T, v interface{}) []byte {
	t.Helper()

	enc, err := rlp.EncodeToBytes(v)
	if err != nil {
		t.Fatalf("rlp encoding failed: %v", err)
	}
	return enc
}
