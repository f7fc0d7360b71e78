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
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/trie"
)

// ProofKind selects how an inclusion proof is checked.
type ProofKind uint8

const (
	// ProofKindMerklePath is a binary merkle path of sibling hashes.
	ProofKindMerklePath ProofKind = iota
	// ProofKindStorageTrie is a Merkle-Patricia storage proof.
	ProofKindStorageTrie
)

// ProofNode is one step of a merkle path. Left reports that Sibling is the
// left operand when hashing the pair.
type ProofNode struct {
	Sibling common.Hash
	Left    bool
}

// InclusionProof is evidence that Leaf is committed under a state root.
// Path is used by merkle path proofs, Key and Nodes by storage trie proofs.
type InclusionProof struct {
	Kind  ProofKind
	Leaf  []byte
	Path  []ProofNode
	Key   []byte
	Nodes [][]byte
}

// Depth returns the number of proof elements.
func (p *InclusionProof) Depth() int {
	if p.Kind == ProofKindStorageTrie {
		return len(p.Nodes)
	}
	return len(p.Path)
}

// ProofVerifier checks an inclusion proof against a state root.
type ProofVerifier interface {
	VerifyProof(proof *InclusionProof, root common.Hash) bool
}

// MerkleVerifier verifies binary merkle paths with a Hasher and storage trie
// proofs with the parentchain trie rules.
type MerkleVerifier struct {
	hasher Hasher
}

// NewMerkleVerifier creates a verifier for the given hash function.
func NewMerkleVerifier(hasher Hasher) *MerkleVerifier {
	return &MerkleVerifier{hasher: hasher}
}

// VerifyProof implements ProofVerifier. Malformed proofs are reported as not
// verified.
func (v *MerkleVerifier) VerifyProof(proof *InclusionProof, root common.Hash) bool {
	if proof == nil {
		return false
	}
	switch proof.Kind {
	case ProofKindMerklePath:
		return v.MerkleRoot(proof.Leaf, proof.Path) == root
	case ProofKindStorageTrie:
		return verifyStorageProof(proof, root)
	default:
		return false
	}
}

// MerkleRoot folds a path from leaf to root. Sibling order is taken literally.
func (v *MerkleVerifier) MerkleRoot(leaf []byte, path []ProofNode) common.Hash {
	h := v.hasher.Hash(leaf)
	for _, node := range path {
		if node.Left {
			h = v.hasher.Hash(node.Sibling[:], h[:])
		} else {
			h = v.hasher.Hash(h[:], node.Sibling[:])
		}
	}
	return h
}

func verifyStorageProof(proof *InclusionProof, root common.Hash) (ok bool) {
	if len(proof.Key) == 0 || len(proof.Nodes) == 0 {
		return false
	}
	// Proof nodes are attacker supplied; a decoder panic is a failed proof.
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	db := memorydb.New()
	defer db.Close()
	for _, node := range proof.Nodes {
		if err := db.Put(crypto.Keccak256(node), node); err != nil {
			return false
		}
	}
	value, err := trie.VerifyProof(root, proof.Key, db)
	if err != nil || value == nil {
		return false
	}
	return bytes.Equal(value, proof.Leaf)
}

// BuildMerkleTree builds a binary merkle tree over leaves and returns the root
// and the path of every leaf. Odd levels are padded with a zero hash on the
// right.
func BuildMerkleTree(hasher Hasher, leaves [][]byte) (common.Hash, [][]ProofNode) {
	if len(leaves) == 0 {
		return common.Hash{}, nil
	}
	level := make([]common.Hash, len(leaves))
	for i, leaf := range leaves {
		level[i] = hasher.Hash(leaf)
	}
	paths := make([][]ProofNode, len(leaves))
	positions := make([]int, len(leaves))
	for i := range positions {
		positions[i] = i
	}
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, common.Hash{})
		}
		for i, pos := range positions {
			paths[i] = append(paths[i], ProofNode{Sibling: level[pos^1], Left: pos%2 == 1})
			positions[i] = pos / 2
		}
		next := make([]common.Hash, len(level)/2)
		for i := range next {
			next[i] = hasher.Hash(level[2*i][:], level[2*i+1][:])
		}
		level = next
	}
	return level[0], paths
}
