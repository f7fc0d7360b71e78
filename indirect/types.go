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

// Package indirect turns parentchain extrinsics that carry indirect calls into
// signed trusted calls for the enclave's execution queue, exactly once per
// (block, extrinsic index).
package indirect

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
)

// AccountID is a parentchain account identifier. Its length depends on the
// parentchain runtime, so it is kept as raw bytes.
type AccountID []byte

func (a AccountID) String() string { return common.Bytes2Hex(a) }

// CallKind identifies an indirect call variant.
type CallKind uint8

const (
	KindShieldFunds CallKind = iota + 1
	KindUnshieldFunds
	KindInvokeCall
	KindSetConfig
	KindBatch
)

func (k CallKind) String() string {
	switch k {
	case KindShieldFunds:
		return "shield_funds"
	case KindUnshieldFunds:
		return "unshield_funds"
	case KindInvokeCall:
		return "invoke"
	case KindSetConfig:
		return "set_config"
	case KindBatch:
		return "batch"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// IndirectCall is the sum type over the indirect call variants the relay
// understands. The variant set is closed: only this package can add one.
type IndirectCall interface {
	Kind() CallKind
	indirectCall()
}

// provenCall is implemented by variants asserting a parentchain state fact.
// A fact moves funds through the shard vault and may be consumed once.
type provenCall interface {
	IndirectCall
	InclusionProof() *InclusionProof
	ExpectedLeaf() ([]byte, error)
	shardVault() (common.Hash, AccountID)
	transferID() common.Hash
}

// ShieldFunds moves a deposit made into the shard vault on the parentchain
// into the confidential balance of Account. Deposit is the parentchain's
// unique id of the transfer.
type ShieldFunds struct {
	Shard   common.Hash
	Deposit common.Hash
	Vault   AccountID
	Account AccountID
	Amount  *uint256.Int
	Proof   *InclusionProof `rlp:"nil"`
}

// UnshieldFunds confirms that the shard vault released Amount to
// Beneficiary, so the enclave can settle the pending unshield. Release is the
// parentchain's unique id of the transfer.
type UnshieldFunds struct {
	Shard       common.Hash
	Release     common.Hash
	Vault       AccountID
	Beneficiary AccountID
	Amount      *uint256.Int
	Proof       *InclusionProof `rlp:"nil"`
}

// InvokeCall forwards an encrypted trusted call submitted on the parentchain.
type InvokeCall struct {
	Shard   common.Hash
	Payload []byte
}

// SetConfig changes a shard setting, e.g. rotating the signing key.
type SetConfig struct {
	Shard common.Hash
	Key   string
	Value []byte
}

// BatchCall carries several indirect calls in one extrinsic. Inner calls are
// translated in declared order.
type BatchCall struct {
	Calls []IndirectCall
}

func (*ShieldFunds) Kind() CallKind   { return KindShieldFunds }
func (*UnshieldFunds) Kind() CallKind { return KindUnshieldFunds }
func (*InvokeCall) Kind() CallKind    { return KindInvokeCall }
func (*SetConfig) Kind() CallKind     { return KindSetConfig }
func (*BatchCall) Kind() CallKind     { return KindBatch }

func (*ShieldFunds) indirectCall()   {}
func (*UnshieldFunds) indirectCall() {}
func (*InvokeCall) indirectCall()    {}
func (*SetConfig) indirectCall()     {}
func (*BatchCall) indirectCall()     {}

// shieldFact and unshieldFact are the parentchain storage values a proof must
// commit to.
type shieldFact struct {
	Tag     string
	Shard   common.Hash
	Deposit common.Hash
	Vault   []byte
	Account []byte
	Amount  *uint256.Int
}

type unshieldFact struct {
	Tag         string
	Shard       common.Hash
	Release     common.Hash
	Vault       []byte
	Beneficiary []byte
	Amount      *uint256.Int
}

const (
	shieldFactTag   = "shielded"
	unshieldFactTag = "unshielded"
)

func (c *ShieldFunds) InclusionProof() *InclusionProof { return c.Proof }

// ExpectedLeaf returns the storage value proving the deposit.
func (c *ShieldFunds) ExpectedLeaf() ([]byte, error) {
	return ShieldLeaf(c.Shard, c.Deposit, c.Vault, c.Account, c.Amount)
}

func (c *ShieldFunds) shardVault() (common.Hash, AccountID) { return c.Shard, c.Vault }
func (c *ShieldFunds) transferID() common.Hash              { return c.Deposit }

func (c *UnshieldFunds) InclusionProof() *InclusionProof { return c.Proof }

// ExpectedLeaf returns the storage value proving the vault release.
func (c *UnshieldFunds) ExpectedLeaf() ([]byte, error) {
	return UnshieldLeaf(c.Shard, c.Release, c.Vault, c.Beneficiary, c.Amount)
}

func (c *UnshieldFunds) shardVault() (common.Hash, AccountID) { return c.Shard, c.Vault }
func (c *UnshieldFunds) transferID() common.Hash              { return c.Release }

// ShieldLeaf encodes the deposit record committed in parentchain state.
func ShieldLeaf(shard, deposit common.Hash, vault, account AccountID, amount *uint256.Int) ([]byte, error) {
	return rlp.EncodeToBytes(&shieldFact{Tag: shieldFactTag, Shard: shard, Deposit: deposit, Vault: vault, Account: account, Amount: nonNil(amount)})
}

// UnshieldLeaf encodes the vault release record committed in parentchain state.
func UnshieldLeaf(shard, release common.Hash, vault, beneficiary AccountID, amount *uint256.Int) ([]byte, error) {
	return rlp.EncodeToBytes(&unshieldFact{Tag: unshieldFactTag, Shard: shard, Release: release, Vault: vault, Beneficiary: beneficiary, Amount: nonNil(amount)})
}

// FactHash identifies a proven parentchain fact. It is what the dispatcher
// claims so a fact is consumed by one extrinsic only.
func FactHash(leaf []byte) common.Hash {
	return crypto.Keccak256Hash(leaf)
}

func nonNil(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}

// TrustedOp is the operation a trusted call asks the state transition
// function to perform.
type TrustedOp uint8

const (
	OpShield TrustedOp = iota + 1
	OpUnshield
	OpInvoke
	OpSetConfig
)

func (op TrustedOp) String() string {
	switch op {
	case OpShield:
		return "balance_shield"
	case OpUnshield:
		return "balance_unshield"
	case OpInvoke:
		return "invoke"
	case OpSetConfig:
		return "set_config"
	default:
		return fmt.Sprintf("op(%d)", uint8(op))
	}
}

// CallOrigin records where a trusted call came from on the parentchain.
type CallOrigin struct {
	Block     common.Hash
	Height    uint64
	Extrinsic uint32
	Position  uint32 // position inside a batch, 0 otherwise
}

// TrustedCall is the internal instruction handed to the execution layer.
type TrustedCall struct {
	Shard   common.Hash
	Op      TrustedOp
	Account AccountID
	Amount  *uint256.Int
	Key     string
	Payload []byte
	Fact    common.Hash // proven fact consumed by the call, zero if none
	Origin  CallOrigin
}

// Hash returns the keccak256 hash of the call's RLP encoding.
func (c *TrustedCall) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(c)
	if err != nil {
		panic(fmt.Sprintf("trusted call encoding failed: %v", err))
	}
	return crypto.Keccak256Hash(enc)
}

func (c *TrustedCall) String() string {
	return fmt.Sprintf("%s(shard=%s account=%s amount=%s origin=%d/%d/%d)",
		c.Op, c.Shard.TerminalString(), c.Account, nonNil(c.Amount), c.Origin.Height, c.Origin.Extrinsic, c.Origin.Position)
}

// SignedCall is a trusted call signed by the enclave, bound to the enclave
// measurement and the shard.
type SignedCall struct {
	Call      *TrustedCall
	Nonce     uint64
	MREnclave [32]byte
	Signer    common.Address
	Signature []byte
}

type signingPayload struct {
	Call      *TrustedCall
	Nonce     uint64
	MREnclave [32]byte
	Shard     common.Hash
}

// SigningDigest is the hash the enclave signs for a trusted call.
func SigningDigest(call *TrustedCall, nonce uint64, mrenclave [32]byte) (common.Hash, error) {
	enc, err := rlp.EncodeToBytes(&signingPayload{Call: call, Nonce: nonce, MREnclave: mrenclave, Shard: call.Shard})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(enc), nil
}

// Hash identifies a signed call.
func (s *SignedCall) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(s)
	if err != nil {
		panic(fmt.Sprintf("signed call encoding failed: %v", err))
	}
	return crypto.Keccak256Hash(enc)
}

// VerifySignature checks that the signature was produced by Signer.
func (s *SignedCall) VerifySignature() bool {
	digest, err := SigningDigest(s.Call, s.Nonce, s.MREnclave)
	if err != nil {
		return false
	}
	pub, err := crypto.SigToPub(digest[:], s.Signature)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == s.Signer
}
