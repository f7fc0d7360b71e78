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
	"fmt"
	"os"
	"path/filepath"
)

// DefaultAttestationDir is Gramine's attestation pseudo-filesystem.
const DefaultAttestationDir = "/dev/attestation"

// readMREnclave reads the MRENCLAVE from my_target_info, whose first 32 bytes
// hold the measurement.
func readMREnclave(dir string) ([]byte, error) {
	targetInfo, err := os.ReadFile(filepath.Join(dir, "my_target_info"))
	if err != nil {
		return nil, fmt.Errorf("failed to read my_target_info: %w", err)
	}
	if len(targetInfo) < 32 {
		return nil, fmt.Errorf("target_info too short: got %d bytes, need at least 32", len(targetInfo))
	}
	mrenclave := make([]byte, 32)
	copy(mrenclave, targetInfo[:32])
	return mrenclave, nil
}

// generateQuoteViaGramine writes the padded report data to user_report_data
// and reads back the quote Gramine produced for it.
func generateQuoteViaGramine(dir string, reportData []byte) ([]byte, error) {
	if len(reportData) > 64 {
		return nil, fmt.Errorf("reportData too long: max 64 bytes, got %d", len(reportData))
	}
	padded := make([]byte, 64)
	copy(padded, reportData)

	if err := os.WriteFile(filepath.Join(dir, "user_report_data"), padded, 0600); err != nil {
		return nil, fmt.Errorf("failed to write user_report_data: %w", err)
	}
	quote, err := os.ReadFile(filepath.Join(dir, "quote"))
	if err != nil {
		return nil, fmt.Errorf("failed to read quote: %w", err)
	}
	return quote, nil
}
