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
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Environment variables set by the Gramine manifest.
const (
	envEncryptedPaths = "GRAMINE_ENCRYPTED_PATHS" // comma separated encrypted mounts
	envSealedPath     = "RELAY_SEALED_PATH"
	envManifestHash   = "GRAMINE_MANIFEST_HASH"

	encryptedFSMarker = ".gramine_encrypted_fs"
)

// InSGX reports whether the process runs inside a Gramine SGX enclave.
func InSGX() bool {
	return os.Getenv("IN_SGX") == "1" || os.Getenv("GRAMINE_SGX") == "1"
}

// GramineEncryptionValidator checks that secrets only go to paths the
// manifest mounts as encrypted.
type GramineEncryptionValidator struct {
	encryptedPaths []string
}

// NewGramineEncryptionValidator collects the encrypted mounts announced by
// the manifest plus those candidates that carry the Gramine encrypted
// filesystem marker. It fails if no encrypted path is known.
func NewGramineEncryptionValidator(candidates ...string) (*GramineEncryptionValidator, error) {
	v := new(GramineEncryptionValidator)
	for _, path := range strings.Split(os.Getenv(envEncryptedPaths), ",") {
		v.add(strings.TrimSpace(path))
	}
	candidates = append(candidates, os.Getenv(envSealedPath))
	for _, path := range candidates {
		if path != "" && hasEncryptedFSMarker(path) {
			v.add(path)
		}
	}
	if len(v.encryptedPaths) == 0 {
		return nil, fmt.Errorf("%w: no encrypted mounts configured", ErrPathNotEncrypted)
	}
	return v, nil
}

func (v *GramineEncryptionValidator) add(path string) {
	if path == "" {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return
	}
	for _, p := range v.encryptedPaths {
		if p == abs {
			return
		}
	}
	v.encryptedPaths = append(v.encryptedPaths, abs)
}

func hasEncryptedFSMarker(path string) bool {
	_, err := os.Stat(filepath.Join(path, encryptedFSMarker))
	return err == nil
}

// ValidatePath returns nil if path is an encrypted mount or lies below one.
func (v *GramineEncryptionValidator) ValidatePath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	for _, enc := range v.encryptedPaths {
		rel, err := filepath.Rel(enc, abs)
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s, refusing to keep the signing seed there", ErrPathNotEncrypted, path)
}

// EncryptedPaths returns the known encrypted mounts.
func (v *GramineEncryptionValidator) EncryptedPaths() []string {
	paths := make([]string, len(v.encryptedPaths))
	copy(paths, v.encryptedPaths)
	return paths
}

// VerifyGramineManifest checks that an enclave run carries the measurement
// and manifest hash Gramine exports after verifying the signed manifest.
// Outside SGX there is nothing to check.
func VerifyGramineManifest() error {
	if !InSGX() {
		return nil
	}
	if os.Getenv("RA_TLS_MRENCLAVE") == "" {
		return fmt.Errorf("running in SGX mode but no MRENCLAVE exported by the manifest")
	}
	if os.Getenv(envManifestHash) == "" {
		return fmt.Errorf("manifest hash not found, manifest may not be properly signed")
	}
	return nil
}

// OpenSealedPartition opens the encrypted partition at path. In SGX mode the
// path must be on an encrypted mount.
func OpenSealedPartition(path string, requireEncrypted bool) (*EncryptedPartitionImpl, error) {
	if requireEncrypted {
		if err := VerifyGramineManifest(); err != nil {
			return nil, err
		}
		v, err := NewGramineEncryptionValidator(path)
		if err != nil {
			return nil, err
		}
		if err := v.ValidatePath(path); err != nil {
			return nil, err
		}
	}
	if err := os.MkdirAll(path, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sealed directory: %w", err)
	}
	return NewEncryptedPartition(path)
}
