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

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/xchain/indirect-relay/parentchain"
)

var (
	testShard   = common.HexToHash("0x5ad0000000000000000000000000000000000000000000000000000000000001")
	testAccount = AccountID(common.FromHex("0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"))
	testVault   = AccountID(common.FromHex("0x6d6f646c70792f74727372790000000000000000000000000000000000000000"))
	testHasher  = Blake2bHasher{}
)

// testVaults maps shards to their vault accounts.
type testVaults map[common.Hash]AccountID

func (v testVaults) ShardVault(shard common.Hash) (AccountID, error) {
	vault, ok := v[shard]
	if !ok {
		return nil, ErrVaultUndefined
	}
	return vault, nil
}

func defaultVaults() testVaults {
	return testVaults{testShard: testVault}
}

// depositID derives a distinct transfer id per amount.
func depositID(amount uint64) common.Hash {
	return common.Hash(uint256.NewInt(amount + 0xd000).Bytes32())
}

// provenShields returns shield calls for the given amounts, all proven under
// the returned root. Equal amounts yield equal deposits.
func provenShields(t *testing.T, amounts ...uint64) ([]*ShieldFunds, common.Hash) {
	t.Helper()

	calls := make([]*ShieldFunds, len(amounts))
	leaves := make([][]byte, len(amounts))
	for i, amount := range amounts {
		calls[i] = &ShieldFunds{Shard: testShard, Deposit: depositID(amount), Vault: testVault, Account: testAccount, Amount: uint256.NewInt(amount)}
		leaf, err := calls[i].ExpectedLeaf()
		if err != nil {
			t.Fatalf("failed to encode leaf: %v", err)
		}
		leaves[i] = leaf
	}
	root, paths := BuildMerkleTree(testHasher, leaves)
	for i := range calls {
		calls[i].Proof = &InclusionProof{Kind: ProofKindMerklePath, Leaf: leaves[i], Path: paths[i]}
	}
	return calls, root
}

func encodeCall(t *testing.T, call IndirectCall) []byte {
	t.Helper()

	raw, err := SchemaV1().Encode(call)
	if err != nil {
		t.Fatalf("failed to encode %s: %v", call.Kind(), err)
	}
	return raw
}

func opaqueExtrinsic(t *testing.T) []byte {
	t.Helper()

	raw, err := SchemaV1().EncodeOpaque(CallIndex{Pallet: 0x04, Call: 0x03}, []uint64{42})
	if err != nil {
		t.Fatalf("failed to encode opaque extrinsic: %v", err)
	}
	return raw
}

func newTestBlock(number uint64, root common.Hash, raws ...[]byte) *parentchain.Block {
	return parentchain.NewBlockFromRaw(&parentchain.Header{
		ParentHash: common.BytesToHash([]byte{byte(number), 0xff}),
		Number:     number,
		StateRoot:  root,
	}, raws)
}

// MockMarkerStore is an in-memory marker store with injectable failures.
type MockMarkerStore struct {
	mu       sync.Mutex
	markers  map[MarkerKey]int
	progress map[MarkerKey]int
	facts    map[common.Hash]MarkerKey
	hasErr   error
	putErr   error
	progErr  error
	reads    int
}

func NewMockMarkerStore() *MockMarkerStore {
	return &MockMarkerStore{
		markers:  make(map[MarkerKey]int),
		progress: make(map[MarkerKey]int),
		facts:    make(map[common.Hash]MarkerKey),
	}
}

func (m *MockMarkerStore) HasMarker(block common.Hash, index uint32) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads++
	if m.hasErr != nil {
		return false, m.hasErr
	}
	_, ok := m.markers[MarkerKey{block, index}]
	return ok, nil
}

func (m *MockMarkerStore) WriteMarker(block common.Hash, index uint32, height uint64, calls int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.putErr != nil {
		return m.putErr
	}
	key := MarkerKey{block, index}
	if _, ok := m.markers[key]; ok {
		return errors.New("marker exists")
	}
	m.markers[key] = calls
	delete(m.progress, key)
	return nil
}

func (m *MockMarkerStore) ReadProgress(block common.Hash, index uint32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasErr != nil {
		return 0, m.hasErr
	}
	return m.progress[MarkerKey{block, index}], nil
}

func (m *MockMarkerStore) WriteProgress(block common.Hash, index uint32, submitted int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.progErr != nil {
		return m.progErr
	}
	m.progress[MarkerKey{block, index}] = submitted
	return nil
}

func (m *MockMarkerStore) ClaimFacts(block common.Hash, index uint32, facts []common.Hash) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := MarkerKey{block, index}
	for _, fact := range facts {
		if owner, ok := m.facts[fact]; ok && owner != key {
			return false, nil
		}
	}
	for _, fact := range facts {
		m.facts[fact] = key
	}
	return true, nil
}

func (m *MockMarkerStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markers)
}

// MockExecutor records submitted calls. fail, if set, is consulted before a
// call is accepted.
type MockExecutor struct {
	mu        sync.Mutex
	submitted []*SignedCall
	fail      func(call *SignedCall) error
}

func (e *MockExecutor) Submit(ctx context.Context, call *SignedCall) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fail != nil {
		if err := e.fail(call); err != nil {
			return err
		}
	}
	e.submitted = append(e.submitted, call)
	return nil
}

func (e *MockExecutor) calls() []*TrustedCall {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*TrustedCall, len(e.submitted))
	for i, s := range e.submitted {
		out[i] = s.Call
	}
	return out
}

// MockSigner wraps calls without a signature and counts nonces.
type MockSigner struct {
	mu    sync.Mutex
	nonce uint64
	err   error
}

func (s *MockSigner) Sign(call *TrustedCall) (*SignedCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return nil, s.err
	}
	s.nonce++
	return &SignedCall{Call: call, Nonce: s.nonce}, nil
}

func newTestProcessor(t *testing.T, markers MarkerStore, executor Executor) *Processor {
	t.Helper()

	p, err := NewProcessor(DefaultConfig(), markers, executor, &MockSigner{}, defaultVaults())
	if err != nil {
		t.Fatalf("failed to create processor: %v", err)
	}
	return p
}
