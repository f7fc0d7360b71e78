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

// Package signer signs the trusted calls the enclave originates with a key
// derived from a sealed seed.
package signer

import (
	"bytes"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/crypto/hkdf"

	"github.com/xchain/indirect-relay/indirect"
	"github.com/xchain/indirect-relay/internal/sgx"
	"github.com/xchain/indirect-relay/storage"
)

const (
	seedSize     = 32
	hkdfInfo     = "indirect-relay/call-signing"
	maxKeyTrials = 16
)

var (
	ErrInvalidSeed   = errors.New("invalid sealed signing seed")
	ErrNoValidKey    = errors.New("could not derive a valid signing key")
	ErrQuoteMismatch = errors.New("attestation quote does not match the signer")
)

// NonceSource reports the nonce of the enclave account in the shard's state.
type NonceSource interface {
	AccountNonce(shard common.Hash, account common.Address) (uint64, error)
}

// PendingCounter reports how many signed calls of an account are queued but
// not yet executed.
type PendingCounter interface {
	PendingFor(shard common.Hash, account common.Address) uint64
}

// EnclaveSigner implements indirect.Signer and indirect.VaultQuery. Nonces are the account nonce in
// state plus the number of pending calls, so Sign and Submit must alternate
// for a given account. The indirect dispatcher does exactly that.
type EnclaveSigner struct {
	key       *ecdsa.PrivateKey
	address   common.Address
	mrenclave [32]byte
	attestor  sgx.Attestor

	nonces  NonceSource
	pending PendingCounter

	mu     sync.Mutex
	vaults VaultSource
}

// New loads the signing seed from the encrypted partition, creating it on
// first use, and derives the signing key bound to the enclave measurement.
// nonces may be nil for a fresh shard state.
func New(partition storage.EncryptedPartition, attestor sgx.Attestor, nonces NonceSource, pending PendingCounter) (*EnclaveSigner, error) {
	seed, err := loadOrCreateSeed(partition)
	if err != nil {
		return nil, err
	}
	mrenclave := sgx.MREnclave(attestor)
	key, err := deriveKey(seed, mrenclave)
	if err != nil {
		return nil, err
	}
	s := &EnclaveSigner{
		key:       key,
		address:   crypto.PubkeyToAddress(key.PublicKey),
		mrenclave: mrenclave,
		attestor:  attestor,
		nonces:    nonces,
		pending:   pending,
	}
	log.Info("Loaded enclave call signer", "address", s.address, "mrenclave", common.Bytes2Hex(mrenclave[:]))
	return s, nil
}

func loadOrCreateSeed(partition storage.EncryptedPartition) ([]byte, error) {
	seed, err := partition.ReadSecret(storage.SecretShieldingSeed)
	switch {
	case err == nil:
		if len(seed) != seedSize {
			return nil, fmt.Errorf("%w: %d bytes", ErrInvalidSeed, len(seed))
		}
		return seed, nil
	case errors.Is(err, storage.ErrSecretNotFound):
		seed = make([]byte, seedSize)
		if _, err := io.ReadFull(rand.Reader, seed); err != nil {
			return nil, fmt.Errorf("failed to generate seed: %w", err)
		}
		if err := partition.WriteSecret(storage.SecretShieldingSeed, seed); err != nil {
			return nil, fmt.Errorf("failed to seal seed: %w", err)
		}
		log.Warn("Generated new sealed signing seed")
		return seed, nil
	default:
		return nil, err
	}
}

// deriveKey expands seed into a secp256k1 key. Candidates outside the curve
// order are skipped.
func deriveKey(seed []byte, mrenclave [32]byte) (*ecdsa.PrivateKey, error) {
	kdf := hkdf.New(sha256.New, seed, mrenclave[:], []byte(hkdfInfo))
	candidate := make([]byte, 32)
	for i := 0; i < maxKeyTrials; i++ {
		if _, err := io.ReadFull(kdf, candidate); err != nil {
			return nil, err
		}
		if key, err := crypto.ToECDSA(candidate); err == nil {
			return key, nil
		}
	}
	return nil, ErrNoValidKey
}

// Address returns the account the signer signs for.
func (s *EnclaveSigner) Address() common.Address { return s.address }

// Sign implements indirect.Signer.
func (s *EnclaveSigner) Sign(call *indirect.TrustedCall) (*indirect.SignedCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nonce, err := s.nextNonce(call.Shard)
	if err != nil {
		return nil, err
	}
	digest, err := indirect.SigningDigest(call, nonce, s.mrenclave)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return nil, err
	}
	return &indirect.SignedCall{
		Call:      call,
		Nonce:     nonce,
		MREnclave: s.mrenclave,
		Signer:    s.address,
		Signature: sig,
	}, nil
}

func (s *EnclaveSigner) nextNonce(shard common.Hash) (uint64, error) {
	var nonce uint64
	if s.nonces != nil {
		n, err := s.nonces.AccountNonce(shard, s.address)
		if err != nil {
			return 0, fmt.Errorf("failed to read account nonce: %w", err)
		}
		nonce = n
	}
	if s.pending != nil {
		nonce += s.pending.PendingFor(shard, s.address)
	}
	return nonce, nil
}

// Quote returns an SGX quote whose report data commits to the signer
// address, so a verifier can tie signed calls to the enclave.
func (s *EnclaveSigner) Quote() ([]byte, error) {
	reportData := crypto.Keccak256(s.address.Bytes())
	raw, err := s.attestor.GenerateQuote(reportData)
	if err != nil {
		return nil, err
	}
	quote, err := sgx.ParseQuote(raw)
	if err != nil {
		return nil, err
	}
	if quote.MRENCLAVE != s.mrenclave {
		return nil, fmt.Errorf("%w: quote for %x, signer bound to %x", ErrQuoteMismatch, quote.MRENCLAVE, s.mrenclave)
	}
	if !bytes.Equal(quote.ReportData[:len(reportData)], reportData) {
		return nil, fmt.Errorf("%w: report data does not commit to %s", ErrQuoteMismatch, s.address)
	}
	return raw, nil
}
