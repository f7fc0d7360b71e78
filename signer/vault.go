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

package signer

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/xchain/indirect-relay/indirect"
)

// VaultSource looks up the vault account recorded for a shard.
type VaultSource interface {
	ReadVault(shard common.Hash) (indirect.AccountID, bool, error)
}

// Vaults is a fixed mapping from shard to vault account.
type Vaults map[common.Hash]indirect.AccountID

// ReadVault implements VaultSource.
func (v Vaults) ReadVault(shard common.Hash) (indirect.AccountID, bool, error) {
	vault, ok := v[shard]
	return vault, ok && len(vault) > 0, nil
}

// ParseVaults decodes hex shard identifiers and hex vault accounts.
func ParseVaults(spec map[string]string) (Vaults, error) {
	vaults := make(Vaults, len(spec))
	for shardHex, vaultHex := range spec {
		shard, err := hexutil.Decode(shardHex)
		if err != nil || len(shard) != common.HashLength {
			return nil, fmt.Errorf("invalid vault shard %q", shardHex)
		}
		vault, err := hexutil.Decode(vaultHex)
		if err != nil || len(vault) == 0 {
			return nil, fmt.Errorf("invalid vault account %q for shard %s", vaultHex, shardHex)
		}
		vaults[common.BytesToHash(shard)] = vault
	}
	return vaults, nil
}

// SetVaults sets where ShardVault looks up vault accounts.
func (s *EnclaveSigner) SetVaults(vaults VaultSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vaults = vaults
}

// ShardVault implements indirect.VaultQuery. A shard without a recorded vault
// fails with indirect.ErrVaultUndefined.
func (s *EnclaveSigner) ShardVault(shard common.Hash) (indirect.AccountID, error) {
	s.mu.Lock()
	vaults := s.vaults
	s.mu.Unlock()

	if vaults == nil {
		return nil, fmt.Errorf("%w: %s", indirect.ErrVaultUndefined, shard.TerminalString())
	}
	vault, ok, err := vaults.ReadVault(shard)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", indirect.ErrVaultUndefined, shard.TerminalString())
	}
	return vault, nil
}
