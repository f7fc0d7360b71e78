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

package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/urfave/cli/v2"

	"github.com/xchain/indirect-relay/indirect"
	"github.com/xchain/indirect-relay/parentchain"
	"github.com/xchain/indirect-relay/relay"
	"github.com/xchain/indirect-relay/storage"
	"github.com/xchain/indirect-relay/toppool"
)

var (
	callsFlag = &cli.StringFlag{
		Name:  "calls",
		Usage: "File receiving the signed trusted calls as RLP. Without it the replay is a dry run with in-memory markers",
	}
	replayCommand = &cli.Command{
		Name:      "replay",
		Usage:     "Feed an RLP block file through the relay",
		ArgsUsage: "<blockfile>",
		Flags:     []cli.Flag{callsFlag},
		Action:    replay,
	}

	markerBlockFlag = &cli.StringFlag{
		Name:     "block",
		Usage:    "Hash of the parentchain block",
		Required: true,
	}
	markerIndexFlag = &cli.IntFlag{
		Name:  "index",
		Usage: "Extrinsic index, all markers of the block when negative",
		Value: -1,
	}
	markersCommand = &cli.Command{
		Name:   "markers",
		Usage:  "Show the processed markers of a block",
		Flags:  []cli.Flag{markerBlockFlag, markerIndexFlag},
		Action: showMarkers,
	}

	outFlag = &cli.StringFlag{
		Name:     "out",
		Usage:    "Block file to write",
		Required: true,
	}
	blocksFlag = &cli.IntFlag{
		Name:  "blocks",
		Usage: "Number of blocks",
		Value: 1,
	}
	shieldsFlag = &cli.IntFlag{
		Name:  "shields",
		Usage: "Proven shield extrinsics per block",
		Value: 2,
	}
	startFlag = &cli.Uint64Flag{
		Name:  "start",
		Usage: "Height of the first block",
		Value: 1,
	}
	amountFlag = &cli.Uint64Flag{
		Name:  "amount",
		Usage: "Amount of the first shield, later shields add one each",
		Value: 1000,
	}
	accountFlag = &cli.StringFlag{
		Name:  "account",
		Usage: "Hex account id credited by the shields",
		Value: "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d",
	}
	shardFlag = &cli.StringFlag{
		Name:  "shard",
		Usage: "Hex shard identifier",
		Value: "0x5ad0000000000000000000000000000000000000000000000000000000000001",
	}
	encodeShieldCommand = &cli.Command{
		Name:   "encode-shield",
		Usage:  "Write a demo block file with proven shield extrinsics",
		Flags:  []cli.Flag{outFlag, blocksFlag, shieldsFlag, startFlag, amountFlag, accountFlag, shardFlag},
		Action: encodeShield,
	}

	enclaveInfoCommand = &cli.Command{
		Name:   "enclave-info",
		Usage:  "Print the enclave signer address and its attestation quote",
		Action: enclaveInfo,
	}

	dumpConfigCommand = &cli.Command{
		Name:   "dumpconfig",
		Usage:  "Print the effective configuration as TOML",
		Action: dumpConfig,
	}
)

func replay(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return errors.New("usage: replay <blockfile>")
	}
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	callsFile := ctx.String(callsFlag.Name)
	if callsFile == "" && !cfg.Storage.InMemory {
		// Queued calls are dropped at exit, so nothing may be marked durably.
		log.Warn("No calls file given, replaying as a dry run with in-memory markers")
		cfg.Storage.InMemory = true
	}
	node, err := openRelay(cfg)
	if err != nil {
		return err
	}
	defer node.Close()

	source, err := parentchain.OpenFileSource(ctx.Args().First())
	if err != nil {
		return err
	}
	defer source.Close()

	driver, err := relay.NewDriver(&cfg.Driver, source, node.processor, node.markers)
	if err != nil {
		return err
	}
	out := ctx.App.Writer
	driver.OnReport = func(report *indirect.BlockReport) {
		fmt.Fprintln(out, report)
		for _, r := range report.Rejections {
			fmt.Fprintf(out, "  rejected #%d %s: %v\n", r.Index, r.Kind, r.Err)
		}
		for _, f := range report.Failures {
			fmt.Fprintf(out, "  failed #%d %s after %d calls: %v\n", f.Index, f.Kind, f.Submitted, f.Err)
		}
	}

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runErr := driver.Run(runCtx)

	// Hand over whatever was queued, also after a failed run.
	if callsFile != "" {
		n, err := drainCalls(node.pool, callsFile)
		if err != nil {
			return errors.Join(runErr, err)
		}
		fmt.Fprintf(out, "wrote %d signed calls to %s\n", n, callsFile)
	}
	if runErr != nil {
		return runErr
	}
	log.Info("Replay finished", "queued", node.pool.Len(), "signer", node.signer.Address())
	return nil
}

// drainCalls takes every queued call, recording the new nonces, and appends
// the calls to path as RLP.
func drainCalls(pool *toppool.Pool, path string) (int, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return 0, err
	}
	calls, err := pool.Take(pool.Len())
	if err != nil {
		f.Close()
		return 0, err
	}
	for _, call := range calls {
		if err := rlp.Encode(f, call); err != nil {
			f.Close()
			return 0, err
		}
	}
	return len(calls), f.Close()
}

func showMarkers(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	db, err := storage.OpenDatabase(&cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()
	markers := storage.NewMarkerDB(db)

	block, err := parseHash(ctx.String(markerBlockFlag.Name))
	if err != nil {
		return err
	}
	out := ctx.App.Writer

	if index := ctx.Int(markerIndexFlag.Name); index >= 0 {
		marker, err := markers.ReadMarker(block, uint32(index))
		if errors.Is(err, storage.ErrMarkerNotFound) {
			fmt.Fprintf(out, "%s/%d not processed\n", block.Hex(), index)
			return nil
		}
		if err != nil {
			return err
		}
		printMarker(ctx, marker)
		return nil
	}
	list, err := markers.BlockMarkers(block)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintf(out, "no markers for %s\n", block.Hex())
	}
	for _, marker := range list {
		printMarker(ctx, marker)
	}
	return nil
}

func parseHash(s string) (common.Hash, error) {
	b, err := hexutil.Decode(s)
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q", s)
	}
	return common.BytesToHash(b), nil
}

func printMarker(ctx *cli.Context, m *storage.Marker) {
	fmt.Fprintf(ctx.App.Writer, "%s/%d height=%d calls=%d recorded=%s\n",
		m.Block.Hex(), m.Index, m.Height, m.Calls, m.RecordedAt.UTC().Format("2006-01-02T15:04:05Z"))
}

func encodeShield(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	hasher, err := indirect.NewHasher(cfg.Processor.Hasher)
	if err != nil {
		return err
	}
	account := indirect.AccountID(common.FromHex(ctx.String(accountFlag.Name)))
	if len(account) == 0 {
		return errors.New("empty account")
	}
	shard, err := parseHash(ctx.String(shardFlag.Name))
	if err != nil {
		return err
	}
	vaults, err := cfg.ShardVaults()
	if err != nil {
		return err
	}
	vault, ok := vaults[shard]
	if !ok {
		return fmt.Errorf("no --%s for shard %s", vaultFlag.Name, shard.Hex())
	}
	var (
		schema = indirect.SchemaV1()
		amount = ctx.Uint64(amountFlag.Name)
		parent common.Hash
		blocks []*parentchain.Block
	)
	for i := 0; i < ctx.Int(blocksFlag.Name); i++ {
		n := ctx.Int(shieldsFlag.Name)
		calls := make([]*indirect.ShieldFunds, n)
		leaves := make([][]byte, n)
		for j := range calls {
			calls[j] = &indirect.ShieldFunds{
				Shard:   shard,
				Deposit: crypto.Keccak256Hash(shard[:], binary.BigEndian.AppendUint64(nil, amount)),
				Vault:   vault,
				Account: account,
				Amount:  uint256.NewInt(amount),
			}
			amount++
			if leaves[j], err = calls[j].ExpectedLeaf(); err != nil {
				return err
			}
		}
		root, paths := indirect.BuildMerkleTree(hasher, leaves)
		raws := make([][]byte, n)
		for j, call := range calls {
			call.Proof = &indirect.InclusionProof{Kind: indirect.ProofKindMerklePath, Leaf: leaves[j], Path: paths[j]}
			if raws[j], err = schema.Encode(call); err != nil {
				return err
			}
		}
		block := parentchain.NewBlockFromRaw(&parentchain.Header{
			ParentHash: parent,
			Number:     ctx.Uint64(startFlag.Name) + uint64(i),
			StateRoot:  root,
		}, raws)
		blocks = append(blocks, block)
		parent = block.Hash()
	}

	f, err := os.Create(ctx.String(outFlag.Name))
	if err != nil {
		return err
	}
	if err := parentchain.WriteBlocks(f, blocks...); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	for _, b := range blocks {
		fmt.Fprintf(ctx.App.Writer, "block %d %s extrinsics=%d\n", b.Number(), b.Hash().Hex(), len(b.Extrinsics))
	}
	return nil
}

func enclaveInfo(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	node, err := openRelay(cfg)
	if err != nil {
		return err
	}
	defer node.Close()

	quote, err := node.signer.Quote()
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "signer: %s\nquote: %x\n", node.signer.Address().Hex(), quote)
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	return cfg.Dump(ctx.App.Writer)
}
