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

// indirect-relay feeds parentchain blocks through the indirect-call relay and
// inspects its processed markers.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/xchain/indirect-relay/indirect"
	"github.com/xchain/indirect-relay/internal/config"
	"github.com/xchain/indirect-relay/internal/sgx"
	"github.com/xchain/indirect-relay/signer"
	"github.com/xchain/indirect-relay/storage"
	"github.com/xchain/indirect-relay/toppool"
)

var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "Data directory for the marker database and the sealed partition",
	}
	hasherFlag = &cli.StringFlag{
		Name:  "hasher",
		Usage: "Hash function of merkle path proofs (blake2b256|keccak256)",
	}
	workersFlag = &cli.IntFlag{
		Name:  "workers",
		Usage: "Number of parallel validation workers per block",
	}
	sgxFlag = &cli.BoolFlag{
		Name:  "sgx",
		Usage: "Run inside a Gramine enclave: require an encrypted sealed path and real attestation",
	}
	inMemoryFlag = &cli.BoolFlag{
		Name:  "inmemory",
		Usage: "Keep processed markers in memory only",
	}
	vaultFlag = &cli.StringSliceFlag{
		Name:  "vault",
		Usage: "Shard vault account as <hex shard>=<hex account>, repeatable",
	}
)

func newApp() *cli.App {
	app := &cli.App{
		Name:  "indirect-relay",
		Usage: "parentchain indirect-call relay",
		Flags: append([]cli.Flag{
			configFileFlag,
			dataDirFlag,
			hasherFlag,
			workersFlag,
			sgxFlag,
			inMemoryFlag,
			vaultFlag,
		}, loggingFlags...),
		Commands: []*cli.Command{
			replayCommand,
			markersCommand,
			encodeShieldCommand,
			enclaveInfoCommand,
			dumpConfigCommand,
		},
		Before: setupLogging,
	}
	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig assembles the configuration. Flags are applied to the defaults
// first, the config file overrides them and the manifest overrides both.
// Only values the operator set can conflict with the manifest.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	var (
		cfg = config.Default()
		set = new(config.Overrides)
	)
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.Storage.DataDir = ctx.String(dataDirFlag.Name)
		set.DataDir = cfg.Storage.DataDir
	}
	if ctx.IsSet(hasherFlag.Name) {
		cfg.Processor.Hasher = ctx.String(hasherFlag.Name)
		set.Hasher = cfg.Processor.Hasher
	}
	if ctx.IsSet(workersFlag.Name) {
		cfg.Processor.Workers = ctx.Int(workersFlag.Name)
	}
	if ctx.IsSet(sgxFlag.Name) {
		cfg.SGX = ctx.Bool(sgxFlag.Name)
	}
	if ctx.IsSet(inMemoryFlag.Name) {
		cfg.Storage.InMemory = ctx.Bool(inMemoryFlag.Name)
	}
	for _, entry := range ctx.StringSlice(vaultFlag.Name) {
		shard, vault, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --%s %q, want <shard>=<account>", vaultFlag.Name, entry)
		}
		if cfg.Vaults == nil {
			cfg.Vaults = make(map[string]string)
		}
		cfg.Vaults[shard] = vault
	}
	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := config.LoadFile(file, cfg, set); err != nil {
			return nil, err
		}
	}
	if err := config.ApplyManifest(cfg, set, config.LoadManifestConfig()); err != nil {
		return nil, err
	}
	if cfg.Storage.SealedPath == "" {
		cfg.Storage.SealedPath = filepath.Join(cfg.Storage.DataDir, "sealed")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// relayNode bundles the components of a running relay.
type relayNode struct {
	db        ethdb.KeyValueStore
	markers   *storage.MarkerDB
	pool      *toppool.Pool
	signer    *signer.EnclaveSigner
	processor *indirect.Processor
}

func openRelay(cfg *config.Config) (*relayNode, error) {
	partition, err := storage.OpenSealedPartition(cfg.Storage.SealedPath, cfg.SGX)
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed partition: %w", err)
	}
	attestor, err := sgx.NewAttestor(cfg.SGX)
	if err != nil {
		return nil, err
	}
	vaults, err := cfg.ShardVaults()
	if err != nil {
		return nil, err
	}
	db, err := storage.OpenDatabase(&cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open marker database: %w", err)
	}
	markers := storage.NewMarkerDB(db)
	pool, err := toppool.NewWithNonces(&cfg.Pool, markers)
	if err != nil {
		db.Close()
		return nil, err
	}
	sig, err := signer.New(partition, attestor, pool, pool)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load enclave signer: %w", err)
	}
	sig.SetVaults(vaults)
	processor, err := indirect.NewProcessor(&cfg.Processor, markers, pool, sig, sig)
	if err != nil {
		db.Close()
		return nil, err
	}
	log.Debug("Relay components ready", "signer", sig.Address(), "sgx", cfg.SGX, "markers", cfg.Storage.MarkerPath())
	return &relayNode{db: db, markers: markers, pool: pool, signer: sig, processor: processor}, nil
}

func (n *relayNode) Close() error {
	return n.db.Close()
}
