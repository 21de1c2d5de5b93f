// Copyright 2021 Hailiang Zhao <hliangzhao@zju.edu.cn>
// This file is part of the lightChain.
//
// The lightChain is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The lightChain is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the lightChain. If not, see <http://www.gnu.org/licenses/>.

// This file builds a Merkle tree over transaction ids for the block header,
// plus an inclusion proof/verify pair. The tree pairs adjacent nodes level by
// level; an odd leftover node at any level is promoted unchanged rather than
// duplicated.
package core

import (
	`bytes`
	`crypto/sha256`
	`fmt`
)

// MerkleTree holds the leaf hashes and computed root over a list of
// transaction ids.
type MerkleTree struct {
	leaves [][]byte // pre-hashed leaves, leaves[i] = SHA256(data[i])
	root   []byte
}

// NewMerkleTree builds the tree over data (one entry per transaction id). An
// empty input yields the all-zero root.
func NewMerkleTree(data [][]byte) *MerkleTree {
	if len(data) == 0 {
		return &MerkleTree{root: make([]byte, sha256.Size)}
	}
	leaves := make([][]byte, len(data))
	for i, d := range data {
		h := sha256.Sum256(d)
		leaves[i] = h[:]
	}
	return &MerkleTree{leaves: leaves, root: hashRange(leaves, 0, len(leaves))}
}

// Root returns the tree's root hash.
func (t *MerkleTree) Root() []byte {
	return t.root
}

// split returns the largest power of two strictly less than n (n > 1),
// the boundary used to recursively pair nodes the same way the bottom-up,
// level-by-level construction does: pairing adjacent nodes and promoting an
// odd leftover unchanged is equivalent to splitting the leaf range at this
// boundary and recursing on each half.
func split(n int) int {
	k := 1
	for k*2 < n {
		k *= 2
	}
	return k
}

// hashRange returns the Merkle hash of leaves[lo:hi]: the leaf hash itself
// for a single-element range, else SHA256(left || right) of the two
// recursively hashed halves.
func hashRange(leaves [][]byte, lo, hi int) []byte {
	n := hi - lo
	if n == 1 {
		return leaves[lo]
	}
	k := split(n)
	left := hashRange(leaves, lo, lo+k)
	right := hashRange(leaves, lo+k, hi)
	h := sha256.Sum256(append(append([]byte{}, left...), right...))
	return h[:]
}

// MerkleProof is an inclusion proof for the leaf at LeafIndex out of
// NumLeaves total leaves. Mask/Hashes are a parallel pre-order trace of the
// internal nodes on the path from the root to that leaf: true means "this
// node's subtree contains the target leaf, recurse into both children";
// false means "this sibling subtree is summarized by the accompanying hash".
// The target leaf's own hash is never carried in the trace — the verifier
// supplies it directly, since membership checks always start from a known
// candidate leaf value.
type MerkleProof struct {
	NumLeaves int
	LeafIndex int
	Mask      []bool
	Hashes    [][]byte
}

// Proof builds an inclusion proof for the leaf at index.
func (t *MerkleTree) Proof(index int) (*MerkleProof, error) {
	if index < 0 || index >= len(t.leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", index, len(t.leaves))
	}
	p := &MerkleProof{NumLeaves: len(t.leaves), LeafIndex: index}
	buildProof(t.leaves, 0, len(t.leaves), index, &p.Mask, &p.Hashes)
	return p, nil
}

func buildProof(leaves [][]byte, lo, hi, target int, mask *[]bool, hashes *[][]byte) {
	if hi-lo == 1 {
		return
	}
	k := split(hi - lo)
	*mask = append(*mask, true)
	if target < lo+k {
		buildProof(leaves, lo, lo+k, target, mask, hashes)
		*mask = append(*mask, false)
		*hashes = append(*hashes, hashRange(leaves, lo+k, hi))
	} else {
		*mask = append(*mask, false)
		*hashes = append(*hashes, hashRange(leaves, lo, lo+k))
		buildProof(leaves, lo+k, hi, target, mask, hashes)
	}
}

// VerifyProof reconstructs a root hash from proof and leafData, and reports
// whether it equals root. Fails if the mask/hash lists disagree in length
// with what the proof's shape demands.
func VerifyProof(root, leafData []byte, proof *MerkleProof) (bool, error) {
	leaf := sha256.Sum256(leafData)
	var maskIdx, hashIdx int
	got, err := reconstruct(proof, 0, proof.NumLeaves, leaf[:], &maskIdx, &hashIdx)
	if err != nil {
		return false, err
	}
	if maskIdx != len(proof.Mask) || hashIdx != len(proof.Hashes) {
		return false, fmt.Errorf("merkle: proof has unconsumed trace entries")
	}
	return bytes.Equal(got, root), nil
}

func reconstruct(proof *MerkleProof, lo, hi int, leafHash []byte, maskIdx, hashIdx *int) ([]byte, error) {
	n := hi - lo
	if n == 1 {
		return leafHash, nil
	}
	if *maskIdx >= len(proof.Mask) {
		return nil, fmt.Errorf("merkle: proof trace exhausted early")
	}
	isRecurse := proof.Mask[*maskIdx]
	*maskIdx++
	if !isRecurse {
		return nil, fmt.Errorf("merkle: expected a recurse marker on the path to the leaf")
	}

	k := split(n)
	var left, right []byte
	var err error
	if proof.LeafIndex < lo+k {
		left, err = reconstruct(proof, lo, lo+k, leafHash, maskIdx, hashIdx)
		if err != nil {
			return nil, err
		}
		if *maskIdx >= len(proof.Mask) || proof.Mask[*maskIdx] {
			return nil, fmt.Errorf("merkle: expected a summarized sibling marker")
		}
		*maskIdx++
		if *hashIdx >= len(proof.Hashes) {
			return nil, fmt.Errorf("merkle: proof hash list exhausted early")
		}
		right = proof.Hashes[*hashIdx]
		*hashIdx++
	} else {
		if *maskIdx >= len(proof.Mask) || proof.Mask[*maskIdx] {
			return nil, fmt.Errorf("merkle: expected a summarized sibling marker")
		}
		*maskIdx++
		if *hashIdx >= len(proof.Hashes) {
			return nil, fmt.Errorf("merkle: proof hash list exhausted early")
		}
		left = proof.Hashes[*hashIdx]
		*hashIdx++
		right, err = reconstruct(proof, lo+k, hi, leafHash, maskIdx, hashIdx)
		if err != nil {
			return nil, err
		}
	}
	h := sha256.Sum256(append(append([]byte{}, left...), right...))
	return h[:], nil
}
