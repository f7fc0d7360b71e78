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

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// GramineAttestor implements Attestor on Gramine's /dev/attestation interface.
type GramineAttestor struct {
	dir       string
	mu        sync.Mutex // user_report_data and quote form one exchange
	mrenclave []byte
	mrsigner  []byte
}

// NewGramineAttestor reads the enclave measurement from the attestation
// directory. MRSIGNER is not exposed there and is taken from RA_TLS_MRSIGNER
// when the manifest sets it.
func NewGramineAttestor(dir string) (*GramineAttestor, error) {
	mrenclave, err := readMREnclave(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read MRENCLAVE: %w", err)
	}
	mrsigner, err := measurementFromEnv("RA_TLS_MRSIGNER")
	if err != nil {
		return nil, err
	}
	if mrsigner == nil {
		log.Info("MRSIGNER not exported by the manifest")
		mrsigner = make([]byte, 32)
	}
	if expected, err := measurementFromEnv("RA_TLS_MRENCLAVE"); err != nil {
		return nil, err
	} else if expected != nil && subtle.ConstantTimeCompare(expected, mrenclave) != 1 {
		return nil, fmt.Errorf("MRENCLAVE mismatch: device %x, manifest %x", mrenclave, expected)
	}
	log.Info("Loaded enclave measurement", "mrenclave", hex.EncodeToString(mrenclave))
	return &GramineAttestor{dir: dir, mrenclave: mrenclave, mrsigner: mrsigner}, nil
}

// measurementFromEnv decodes a hex measurement from the environment. It
// returns nil if the variable is unset.
func measurementFromEnv(key string) ([]byte, error) {
	value := strings.TrimPrefix(strings.TrimSpace(os.Getenv(key)), "0x")
	if value == "" {
		return nil, nil
	}
	m, err := hex.DecodeString(value)
	if err != nil || len(m) != 32 {
		return nil, fmt.Errorf("invalid %s: want 32 hex encoded bytes", key)
	}
	return m, nil
}

// GenerateQuote implements Attestor.
func (a *GramineAttestor) GenerateQuote(reportData []byte) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return generateQuoteViaGramine(a.dir, reportData)
}

// GetMREnclave implements Attestor.
func (a *GramineAttestor) GetMREnclave() []byte {
	return append([]byte(nil), a.mrenclave...)
}

// GetMRSigner implements Attestor.
func (a *GramineAttestor) GetMRSigner() []byte {
	return append([]byte(nil), a.mrsigner...)
}
