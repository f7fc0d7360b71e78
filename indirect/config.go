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

package indirect

import "fmt"

// Config holds the tunables of the block processor.
type Config struct {
	Workers         int    `toml:"workers"`          // parallel classify/validate/translate workers per block
	Hasher          string `toml:"hasher"`           // hash function of merkle path proofs
	MaxProofDepth   int    `toml:"max_proof_depth"`  // proofs deeper than this are rejected
	MaxPayloadSize  int    `toml:"max_payload_size"` // largest invoke payload or config value
	MaxBatchSize    int    `toml:"max_batch_size"`   // largest number of calls in a batch
	MaxConfigKeyLen int    `toml:"max_config_key_len"`
	MarkerCacheSize int    `toml:"marker_cache_size"` // recently recorded markers kept in memory
}

// DefaultConfig returns the default processor configuration.
func DefaultConfig() *Config {
	return &Config{
		Workers:         4,
		Hasher:          HasherBlake2b256,
		MaxProofDepth:   64,
		MaxPayloadSize:  64 * 1024,
		MaxBatchSize:    64,
		MaxConfigKeyLen: 64,
		MarkerCacheSize: 4096,
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("%w: workers must be positive", ErrInvalidConfig)
	}
	if c.MaxProofDepth <= 0 {
		return fmt.Errorf("%w: max proof depth must be positive", ErrInvalidConfig)
	}
	if c.MaxPayloadSize <= 0 {
		return fmt.Errorf("%w: max payload size must be positive", ErrInvalidConfig)
	}
	if c.MaxBatchSize <= 0 {
		return fmt.Errorf("%w: max batch size must be positive", ErrInvalidConfig)
	}
	if c.MaxConfigKeyLen <= 0 {
		return fmt.Errorf("%w: max config key length must be positive", ErrInvalidConfig)
	}
	if c.MarkerCacheSize < 0 {
		return fmt.Errorf("%w: negative marker cache size", ErrInvalidConfig)
	}
	if _, err := NewHasher(c.Hasher); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
