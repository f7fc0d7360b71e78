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

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
)

// OpenDatabase opens the key-value store backing the marker database.
func OpenDatabase(config *Config) (ethdb.KeyValueStore, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.InMemory {
		log.Warn("Using in-memory marker store, markers are lost on exit")
		return memorydb.New(), nil
	}
	db, err := leveldb.New(config.MarkerPath(), config.Cache, config.Handles, "relay/db/markers/", false)
	if err != nil {
		return nil, fmt.Errorf("failed to open marker database: %w", err)
	}
	log.Info("Opened marker database", "path", config.MarkerPath(), "cache", config.Cache, "handles", config.Handles)
	return db, nil
}
