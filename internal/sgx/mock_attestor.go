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

package sgx

import "fmt"

// MockAttestor is an Attestor for running outside SGX. Its measurements are
// fixed and its quotes carry no signature.
type MockAttestor struct {
	mrenclave []byte
	mrsigner  []byte
}

// NewMockAttestor creates a mock attestor with deterministic measurements.
func NewMockAttestor() *MockAttestor {
	mrenclave := make([]byte, 32)
	mrsigner := make([]byte, 32)
	for i := range mrenclave {
		mrenclave[i] = byte(i)
		mrsigner[i] = byte(i + 32)
	}
	return &MockAttestor{mrenclave: mrenclave, mrsigner: mrsigner}
}

// NewMockAttestorWith creates a mock attestor reporting mrenclave.
func NewMockAttestorWith(mrenclave [32]byte) *MockAttestor {
	m := NewMockAttestor()
	copy(m.mrenclave, mrenclave[:])
	return m
}

// GenerateQuote returns a minimal DCAP shaped quote with the measurements and
// report data at their usual offsets.
func (m *MockAttestor) GenerateQuote(reportData []byte) ([]byte, error) {
	if len(reportData) > 64 {
		return nil, fmt.Errorf("reportData too long: max 64 bytes, got %d", len(reportData))
	}
	quote := make([]byte, quoteHeaderSize)
	quote[0] = 3 // version
	quote[2] = 2 // ECDSA-P256 attestation key
	copy(quote[offsetMREnclave:], m.mrenclave)
	copy(quote[offsetMRSigner:], m.mrsigner)
	quote[offsetISVSVN] = 1
	copy(quote[offsetReportData:], reportData)
	return quote, nil
}

// GetMREnclave implements Attestor.
func (m *MockAttestor) GetMREnclave() []byte {
	return append([]byte(nil), m.mrenclave...)
}

// GetMRSigner implements Attestor.
func (m *MockAttestor) GetMRSigner() []byte {
	return append([]byte(nil), m.mrsigner...)
}
