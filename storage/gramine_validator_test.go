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

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func clearGramineEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{envEncryptedPaths, envSealedPath, envManifestHash, "IN_SGX", "GRAMINE_SGX", "RA_TLS_MRENCLAVE"} {
		t.Setenv(key, "")
	}
}

func TestVerifyGramineManifest(t *testing.T) {
	clearGramineEnv(t)
	if err := VerifyGramineManifest(); err != nil {
		t.Errorf("Expected no error outside SGX, got: %v", err)
	}

	t.Setenv("IN_SGX", "1")
	if err := VerifyGramineManifest(); err == nil {
		t.Error("Expected error without MRENCLAVE")
	}
	t.Setenv("RA_TLS_MRENCLAVE", "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef")
	if err := VerifyGramineManifest(); err == nil {
		t.Error("Expected error when manifest hash is missing")
	}
	t.Setenv(envManifestHash, "deadbeef")
	if err := VerifyGramineManifest(); err != nil {
		t.Errorf("Expected no error with complete SGX env, got: %v", err)
	}
}

func TestGramineEncryptionValidator_NoPaths(t *testing.T) {
	clearGramineEnv(t)
	if _, err := NewGramineEncryptionValidator(t.TempDir()); !errors.Is(err, ErrPathNotEncrypted) {
		t.Errorf("Expected ErrPathNotEncrypted, got %v", err)
	}
}

func TestGramineEncryptionValidator_EnvPaths(t *testing.T) {
	clearGramineEnv(t)
	a, b := t.TempDir(), t.TempDir()
	t.Setenv(envEncryptedPaths, a+" , "+b+",")

	v, err := NewGramineEncryptionValidator()
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	if paths := v.EncryptedPaths(); len(paths) != 2 {
		t.Fatalf("Expected 2 encrypted paths, got %v", paths)
	}

	tests := []struct {
		path string
		ok   bool
	}{
		{a, true},
		{filepath.Join(a, "sealed"), true},
		{filepath.Join(b, "x", "y"), true},
		{a + "-sibling", false},
		{filepath.Join(a, ".."), false},
		{"/tmp/plain", false},
	}
	for _, tt := range tests {
		err := v.ValidatePath(tt.path)
		if tt.ok && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.path, err)
		}
		if !tt.ok && !errors.Is(err, ErrPathNotEncrypted) {
			t.Errorf("%s: expected ErrPathNotEncrypted, got %v", tt.path, err)
		}
	}
}

func TestGramineEncryptionValidator_MarkerFile(t *testing.T) {
	clearGramineEnv(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, encryptedFSMarker), nil, 0600); err != nil {
		t.Fatal(err)
	}
	v, err := NewGramineEncryptionValidator(dir)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	if err := v.ValidatePath(filepath.Join(dir, "seed")); err != nil {
		t.Errorf("Expected marked directory to validate, got %v", err)
	}
}

func TestOpenSealedPartition(t *testing.T) {
	clearGramineEnv(t)
	path := filepath.Join(t.TempDir(), "sealed")

	partition, err := OpenSealedPartition(path, false)
	if err != nil {
		t.Fatalf("Failed to open partition: %v", err)
	}
	if err := partition.WriteSecret("k", []byte("v")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if _, err := OpenSealedPartition(path, true); !errors.Is(err, ErrPathNotEncrypted) {
		t.Errorf("Expected plain directory to be refused, got %v", err)
	}
	t.Setenv(envEncryptedPaths, path)
	if _, err := OpenSealedPartition(path, true); err != nil {
		t.Errorf("Expected encrypted mount to be accepted, got %v", err)
	}
}
