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
	"path/filepath"
)

// Config defines where the relay keeps its state.
type Config struct {
	DataDir    string `toml:"datadir"`     // marker database lives under DataDir/markers
	SealedPath string `toml:"sealed_path"` // encrypted partition holding the signing seed (manifest)
	Cache      int    `toml:"cache"`       // leveldb cache in MiB
	Handles    int    `toml:"handles"`     // leveldb open file handles
	InMemory   bool   `toml:"in_memory"`   // keep markers in memory only, for tests and dry runs
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() *Config {
	return &Config{
		DataDir: "relay-data",
		Cache:   16,
		Handles: 64,
	}
}

// MarkerPath returns the marker database directory.
func (c *Config) MarkerPath() string {
	return filepath.Join(c.DataDir, "markers")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.InMemory {
		return nil
	}
	if c.DataDir == "" {
		return fmt.Errorf("%w: empty data directory", ErrInvalidConfig)
	}
	if c.Cache < 0 || c.Handles < 0 {
		return fmt.Errorf("%w: negative cache or handles", ErrInvalidConfig)
	}
	return nil
}

// Names of the secrets kept in the encrypted partition.
const (
	SecretShieldingSeed = "shielding-seed"
)
