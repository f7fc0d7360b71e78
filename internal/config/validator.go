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

package config

import (
	"fmt"
	"os"
)

// Manifest environment variables. Gramine sets them from the manifest's
// loader.env section, so they are covered by MRENCLAVE.
const (
	envSealedPath = "RELAY_SEALED_PATH"
	envHasher     = "RELAY_HASHER"
	envDataDir    = "RELAY_DATADIR"
)

// ManifestConfig holds the parameters fixed by the manifest. Empty fields
// are not fixed.
type ManifestConfig struct {
	SealedPath string
	Hasher     string
	DataDir    string
}

// LoadManifestConfig reads the manifest parameters from the environment.
func LoadManifestConfig() *ManifestConfig {
	return &ManifestConfig{
		SealedPath: os.Getenv(envSealedPath),
		Hasher:     os.Getenv(envHasher),
		DataDir:    os.Getenv(envDataDir),
	}
}

// Overrides records the manifest-pinnable values the operator set
// explicitly, by flag or config file. Empty fields were not set, so a
// default never conflicts with the manifest.
type Overrides struct {
	SealedPath string
	Hasher     string
	DataDir    string
}

// ApplyManifest enforces the priority manifest > file > command line. A
// value set both by the manifest and explicitly by the operator must agree,
// since the operator cannot override what the enclave measurement covers.
func ApplyManifest(cfg *Config, set *Overrides, manifest *ManifestConfig) error {
	if set == nil {
		set = new(Overrides)
	}
	if err := pin("sealed path", &cfg.Storage.SealedPath, set.SealedPath, manifest.SealedPath); err != nil {
		return err
	}
	if err := pin("hasher", &cfg.Processor.Hasher, set.Hasher, manifest.Hasher); err != nil {
		return err
	}
	return pin("data directory", &cfg.Storage.DataDir, set.DataDir, manifest.DataDir)
}

func pin(name string, value *string, explicit string, fixed string) error {
	if fixed == "" {
		return nil
	}
	if explicit != "" && explicit != fixed {
		return fmt.Errorf("%s mismatch: configured=%s, manifest=%s. Manifest parameters cannot be overridden", name, explicit, fixed)
	}
	*value = fixed
	return nil
}
