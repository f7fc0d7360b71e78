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

// Package config loads the relay configuration from a TOML file and applies
// the parameters fixed by the Gramine manifest.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/xchain/indirect-relay/indirect"
	"github.com/xchain/indirect-relay/relay"
	"github.com/xchain/indirect-relay/signer"
	"github.com/xchain/indirect-relay/storage"
	"github.com/xchain/indirect-relay/toppool"
)

// Config is the complete relay configuration.
type Config struct {
	SGX       bool              `toml:"sgx"`
	Vaults    map[string]string `toml:"vaults,omitempty"` // hex shard -> hex vault account
	Processor indirect.Config   `toml:"processor"`
	Storage   storage.Config    `toml:"storage"`
	Pool      toppool.Config    `toml:"pool"`
	Driver    relay.Config      `toml:"driver"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Processor: *indirect.DefaultConfig(),
		Storage:   *storage.DefaultConfig(),
		Pool:      *toppool.DefaultConfig(),
		Driver:    *relay.DefaultConfig(),
	}
}

// Load reads a TOML file over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if err := LoadFile(path, cfg, nil); err != nil {
		return nil, err
	}
	return cfg, nil
}

// pinnableKeys picks the manifest-pinnable keys out of a config file.
type pinnableKeys struct {
	Processor struct {
		Hasher *string `toml:"hasher"`
	} `toml:"processor"`
	Storage struct {
		DataDir    *string `toml:"datadir"`
		SealedPath *string `toml:"sealed_path"`
	} `toml:"storage"`
}

// LoadFile decodes a TOML file into cfg. Keys missing from the file keep the
// value already in cfg, so command line flags applied before stay in effect
// unless the file sets them. Pinnable keys present in the file are recorded
// in set, if not nil.
func LoadFile(path string, cfg *Config, set *Overrides) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return fmt.Errorf("%s: %s", path, strict.String())
		}
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			row, col := decodeErr.Position()
			return fmt.Errorf("%s:%d:%d: %v", path, row, col, decodeErr)
		}
		return fmt.Errorf("%s: %w", path, err)
	}
	if set != nil {
		var keys pinnableKeys
		if err := toml.Unmarshal(data, &keys); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if v := keys.Processor.Hasher; v != nil {
			set.Hasher = *v
		}
		if v := keys.Storage.DataDir; v != nil {
			set.DataDir = *v
		}
		if v := keys.Storage.SealedPath; v != nil {
			set.SealedPath = *v
		}
	}
	return nil
}

// ShardVaults parses the configured shard vaults.
func (c *Config) ShardVaults() (signer.Vaults, error) {
	return signer.ParseVaults(c.Vaults)
}

// Dump writes cfg as TOML.
func (c *Config) Dump(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Processor.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Pool.Validate(); err != nil {
		return err
	}
	if _, err := c.ShardVaults(); err != nil {
		return err
	}
	return c.Driver.Validate()
}
