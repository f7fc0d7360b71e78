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

	"github.com/ethereum/go-ethereum/rlp"
)

// SchemaVersionV1 is the extrinsic envelope version understood by SchemaV1.
const SchemaVersionV1 uint8 = 1

// Call indices of the V1 schema.
const (
	PalletUtility       uint8 = 0x01
	PalletEnclaveBridge uint8 = 0x32

	CallBatch         uint8 = 0x00
	CallShieldFunds   uint8 = 0x00
	CallUnshieldFunds uint8 = 0x01
	CallInvoke        uint8 = 0x02
	CallSetConfig     uint8 = 0x03
)

// CallIndex addresses a call by pallet and call number.
type CallIndex struct {
	Pallet uint8
	Call   uint8
}

func (ci CallIndex) String() string { return fmt.Sprintf("%d/%d", ci.Pallet, ci.Call) }

// envelope is the RLP form of every extrinsic: the schema version, the call
// index and the call arguments.
type envelope struct {
	Version uint8
	Pallet  uint8
	Call    uint8
	Args    rlp.RawValue
}

// batchEntry is one inner call of a batch.
type batchEntry struct {
	Pallet uint8
	Call   uint8
	Args   rlp.RawValue
}

type decodeFunc func(args []byte) (IndirectCall, error)

type schemaEntry struct {
	kind   CallKind
	decode decodeFunc
}

var errNotInSchema = errors.New("call not in schema")

// Schema is a static, versioned table of the indirect calls the relay
// recognizes.
type Schema struct {
	version uint8
	entries map[CallIndex]schemaEntry
	indices map[CallKind]CallIndex
}

func newSchema(version uint8) *Schema {
	return &Schema{
		version: version,
		entries: make(map[CallIndex]schemaEntry),
		indices: make(map[CallKind]CallIndex),
	}
}

func (s *Schema) register(idx CallIndex, kind CallKind, decode decodeFunc) {
	s.entries[idx] = schemaEntry{kind: kind, decode: decode}
	s.indices[kind] = idx
}

// Version returns the envelope version of the schema.
func (s *Schema) Version() uint8 { return s.version }

// SchemaV1 returns the V1 call table.
func SchemaV1() *Schema {
	s := newSchema(SchemaVersionV1)
	s.register(CallIndex{PalletEnclaveBridge, CallShieldFunds}, KindShieldFunds, decodeInto[ShieldFunds])
	s.register(CallIndex{PalletEnclaveBridge, CallUnshieldFunds}, KindUnshieldFunds, decodeInto[UnshieldFunds])
	s.register(CallIndex{PalletEnclaveBridge, CallInvoke}, KindInvokeCall, decodeInto[InvokeCall])
	s.register(CallIndex{PalletEnclaveBridge, CallSetConfig}, KindSetConfig, decodeInto[SetConfig])
	s.register(CallIndex{PalletUtility, CallBatch}, KindBatch, s.decodeBatch)
	return s
}

// decodeInto decodes call arguments straight into a variant struct.
func decodeInto[T any, P interface {
	*T
	IndirectCall
}](args []byte) (IndirectCall, error) {
	call := P(new(T))
	if err := rlp.DecodeBytes(args, call); err != nil {
		return nil, err
	}
	return call, nil
}

func (s *Schema) decodeBatch(args []byte) (IndirectCall, error) {
	var entries []batchEntry
	if err := rlp.DecodeBytes(args, &entries); err != nil {
		return nil, err
	}
	batch := &BatchCall{Calls: make([]IndirectCall, 0, len(entries))}
	for i, e := range entries {
		entry, ok := s.entries[CallIndex{e.Pallet, e.Call}]
		if !ok {
			return nil, fmt.Errorf("batch entry %d: %w", i, errNotInSchema)
		}
		if entry.kind == KindBatch {
			return nil, fmt.Errorf("batch entry %d: %w", i, ErrNestedBatch)
		}
		inner, err := entry.decode(e.Args)
		if err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
		batch.Calls = append(batch.Calls, inner)
	}
	return batch, nil
}

// Decode classifies raw extrinsic bytes. It returns an error describing why
// the bytes are not a recognized indirect call.
func (s *Schema) Decode(raw []byte) (IndirectCall, error) {
	var env envelope
	if err := rlp.DecodeBytes(raw, &env); err != nil {
		return nil, err
	}
	if env.Version != s.version {
		return nil, fmt.Errorf("envelope version %d, schema version %d", env.Version, s.version)
	}
	entry, ok := s.entries[CallIndex{env.Pallet, env.Call}]
	if !ok {
		return nil, errNotInSchema
	}
	return entry.decode(env.Args)
}

// Encode produces the extrinsic bytes of call under this schema.
func (s *Schema) Encode(call IndirectCall) ([]byte, error) {
	idx, args, err := s.encodeArgs(call)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&envelope{Version: s.version, Pallet: idx.Pallet, Call: idx.Call, Args: args})
}

// EncodeOpaque wraps arbitrary arguments under a call index. It is used for
// extrinsics the relay does not care about.
func (s *Schema) EncodeOpaque(idx CallIndex, args interface{}) ([]byte, error) {
	enc, err := rlp.EncodeToBytes(args)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&envelope{Version: s.version, Pallet: idx.Pallet, Call: idx.Call, Args: enc})
}

func (s *Schema) encodeArgs(call IndirectCall) (CallIndex, []byte, error) {
	idx, ok := s.indices[call.Kind()]
	if !ok {
		return CallIndex{}, nil, fmt.Errorf("%s: %w", call.Kind(), errNotInSchema)
	}
	batch, ok := call.(*BatchCall)
	if !ok {
		args, err := rlp.EncodeToBytes(call)
		return idx, args, err
	}
	entries := make([]batchEntry, 0, len(batch.Calls))
	for _, inner := range batch.Calls {
		innerIdx, args, err := s.encodeArgs(inner)
		if err != nil {
			return CallIndex{}, nil, err
		}
		entries = append(entries, batchEntry{Pallet: innerIdx.Pallet, Call: innerIdx.Call, Args: args})
	}
	args, err := rlp.EncodeToBytes(entries)
	return idx, args, err
}
