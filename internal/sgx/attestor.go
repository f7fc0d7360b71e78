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

// Package sgx provides the enclave measurements and quotes the relay needs
// from Gramine, plus a mock for running outside an enclave.
package sgx

// Attestor gives access to the identity of the local enclave.
type Attestor interface {
	// GenerateQuote generates an SGX quote over reportData (at most 64 bytes).
	GenerateQuote(reportData []byte) ([]byte, error)

	// GetMREnclave returns the MRENCLAVE of the local enclave.
	GetMREnclave() []byte

	// GetMRSigner returns the MRSIGNER of the local enclave.
	GetMRSigner() []byte
}

// MREnclave returns the MRENCLAVE of a as a fixed size array.
func MREnclave(a Attestor) [32]byte {
	var out [32]byte
	copy(out[:], a.GetMREnclave())
	return out
}

// NewAttestor returns a Gramine attestor in SGX mode and a mock otherwise.
func NewAttestor(sgxMode bool) (Attestor, error) {
	if sgxMode {
		a, err := NewGramineAttestor(DefaultAttestationDir)
		if err != nil {
			return nil, err
		}
		return a, nil
	}
	return NewMockAttestor(), nil
}
