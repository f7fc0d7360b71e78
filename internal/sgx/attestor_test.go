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
	"bytes"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestMockAttestor(t *testing.T) {
	attestor := NewMockAttestor()
	if len(attestor.GetMREnclave()) != 32 || len(attestor.GetMRSigner()) != 32 {
		t.Fatal("Mock measurements must be 32 bytes")
	}

	reportData := []byte("test report data")
	quote, err := attestor.GenerateQuote(reportData)
	if err != nil {
		t.Fatalf("GenerateQuote failed: %v", err)
	}
	parsed, err := ParseQuote(quote)
	if err != nil {
		t.Fatalf("Failed to parse quote: %v", err)
	}
	if parsed.Version != 3 || parsed.ISVSVN != 1 {
		t.Errorf("Unexpected quote header: %+v", parsed)
	}
	if !bytes.Equal(parsed.MRENCLAVE[:], attestor.GetMREnclave()) {
		t.Error("MRENCLAVE mismatch in quote")
	}
	if !bytes.Equal(parsed.ReportData[:len(reportData)], reportData) {
		t.Error("Report data mismatch in quote")
	}
	if _, err := attestor.GenerateQuote(make([]byte, 65)); err == nil {
		t.Error("Expected error for oversized report data")
	}

	// Returned slices are copies.
	attestor.GetMREnclave()[0] = 0xff
	if attestor.GetMREnclave()[0] == 0xff {
		t.Error("GetMREnclave exposes internal state")
	}
}

func TestMockAttestorWith(t *testing.T) {
	var m [32]byte
	m[31] = 7
	if got := MREnclave(NewMockAttestorWith(m)); got != m {
		t.Errorf("Expected %x, got %x", m, got)
	}
}

func fakeAttestationDir(t *testing.T, mrenclave []byte) string {
	t.Helper()

	dir := t.TempDir()
	targetInfo := append(append([]byte{}, mrenclave...), make([]byte, 480)...)
	if err := os.WriteFile(filepath.Join(dir, "my_target_info"), targetInfo, 0600); err != nil {
		t.Fatal(err)
	}
	quote, _ := NewMockAttestor().GenerateQuote(nil)
	if err := os.WriteFile(filepath.Join(dir, "quote"), quote, 0600); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestGramineAttestor(t *testing.T) {
	mrenclave := bytes.Repeat([]byte{0x5e}, 32)
	dir := fakeAttestationDir(t, mrenclave)
	t.Setenv("RA_TLS_MRENCLAVE", "")
	t.Setenv("RA_TLS_MRSIGNER", "0x"+hex.EncodeToString(bytes.Repeat([]byte{0x51}, 32)))

	attestor, err := NewGramineAttestor(dir)
	if err != nil {
		t.Fatalf("Failed to create attestor: %v", err)
	}
	if !bytes.Equal(attestor.GetMREnclave(), mrenclave) {
		t.Errorf("Unexpected MRENCLAVE %x", attestor.GetMREnclave())
	}
	if attestor.GetMRSigner()[0] != 0x51 {
		t.Errorf("Unexpected MRSIGNER %x", attestor.GetMRSigner())
	}

	if _, err := attestor.GenerateQuote([]byte{1, 2, 3}); err != nil {
		t.Fatalf("GenerateQuote failed: %v", err)
	}
	written, err := os.ReadFile(filepath.Join(dir, "user_report_data"))
	if err != nil {
		t.Fatalf("Report data not written: %v", err)
	}
	if len(written) != 64 || !bytes.Equal(written[:3], []byte{1, 2, 3}) {
		t.Errorf("Unexpected user_report_data %x", written)
	}
}

func TestGramineAttestor_ManifestMismatch(t *testing.T) {
	dir := fakeAttestationDir(t, bytes.Repeat([]byte{0x5e}, 32))
	t.Setenv("RA_TLS_MRSIGNER", "")
	t.Setenv("RA_TLS_MRENCLAVE", hex.EncodeToString(bytes.Repeat([]byte{0x11}, 32)))
	if _, err := NewGramineAttestor(dir); err == nil {
		t.Error("Expected MRENCLAVE mismatch error")
	}

	t.Setenv("RA_TLS_MRENCLAVE", "not-hex")
	if _, err := NewGramineAttestor(dir); err == nil {
		t.Error("Expected error for malformed RA_TLS_MRENCLAVE")
	}
}

func TestGramineAttestor_NoDevice(t *testing.T) {
	if _, err := NewGramineAttestor(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("Expected error without attestation device")
	}
	if _, err := NewAttestor(false); err != nil {
		t.Errorf("Mock attestor must always be available: %v", err)
	}
}

func TestParseQuote_TooShort(t *testing.T) {
	if _, err := ParseQuote(make([]byte, 100)); err != ErrQuoteTooShort {
		t.Errorf("Expected ErrQuoteTooShort, got %v", err)
	}
}
