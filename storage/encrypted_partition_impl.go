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
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// EncryptedPartitionImpl implements EncryptedPartition on a directory that the
// Gramine manifest mounts as encrypted. Outside an enclave it is a plain
// directory, which is what tests and dry runs use.
type EncryptedPartitionImpl struct {
	mu       sync.RWMutex
	basePath string
}

// NewEncryptedPartition opens the partition rooted at basePath. The directory
// must exist.
func NewEncryptedPartition(basePath string) (*EncryptedPartitionImpl, error) {
	info, err := os.Stat(basePath)
	if err != nil {
		return nil, fmt.Errorf("encrypted partition path unavailable: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("encrypted partition path is not a directory: %s", basePath)
	}
	return &EncryptedPartitionImpl{basePath: basePath}, nil
}

func (ep *EncryptedPartitionImpl) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".tmp-") {
		return "", fmt.Errorf("%w: %q", ErrInvalidSecretID, id)
	}
	return filepath.Join(ep.basePath, id), nil
}

// WriteSecret implements EncryptedPartition. The secret is written to a
// temporary file first and renamed into place.
func (ep *EncryptedPartitionImpl) WriteSecret(id string, data []byte) error {
	target, err := ep.path(id)
	if err != nil {
		return err
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	tmp, err := os.CreateTemp(ep.basePath, ".tmp-"+id+"-*")
	if err != nil {
		return fmt.Errorf("failed to create secret file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write secret: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync secret: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("failed to store secret: %w", err)
	}
	log.Debug("Stored sealed secret", "id", id, "size", len(data))
	return nil
}

// ReadSecret implements EncryptedPartition.
func (ep *EncryptedPartitionImpl) ReadSecret(id string) ([]byte, error) {
	target, err := ep.path(id)
	if err != nil {
		return nil, err
	}
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	data, err := os.ReadFile(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSecretNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	return data, nil
}

// DeleteSecret implements EncryptedPartition.
func (ep *EncryptedPartitionImpl) DeleteSecret(id string) error {
	target, err := ep.path(id)
	if err != nil {
		return err
	}
	ep.mu.Lock()
	defer ep.mu.Unlock()

	if err := secureDelete(target); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, id)
		}
		return err
	}
	return nil
}

// secureDelete overwrites a file with random data before removing it.
func secureDelete(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	file, err := os.OpenFile(path, os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := io.CopyN(file, rand.Reader, info.Size()); err != nil {
		file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return err
	}
	file.Close()
	return os.Remove(path)
}

// ListSecrets implements EncryptedPartition.
func (ep *EncryptedPartitionImpl) ListSecrets() ([]string, error) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	entries, err := os.ReadDir(ep.basePath)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ids = append(ids, entry.Name())
	}
	return ids, nil
}
