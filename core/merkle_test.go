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

package core

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func leafData(n int) [][]byte {
	data := make([][]byte, n)
	for i := range data {
		data[i] = []byte{byte(i), byte(i >> 8)}
	}
	return data
}

func TestNewMerkleTree_EmptyRoot(t *testing.T) {
	tree := NewMerkleTree(nil)
	assert.Equal(t, make([]byte, sha256.Size), tree.Root())
}

func TestNewMerkleTree_SingleLeaf(t *testing.T) {
	data := [][]byte{[]byte("only leaf")}
	tree := NewMerkleTree(data)
	want := sha256.Sum256(data[0])
	assert.Equal(t, want[:], tree.Root())
}

func TestNewMerkleTree_Deterministic(t *testing.T) {
	data := leafData(5)
	t1 := NewMerkleTree(data)
	t2 := NewMerkleTree(data)
	assert.Equal(t, t1.Root(), t2.Root())
}

func TestNewMerkleTree_OddCountNoDuplication(t *testing.T) {
	// A duplicating implementation would give 3 leaves the same root as if a
	// 4th, duplicated leaf existed. Confirm the 3-leaf root differs from the
	// root obtained by actually duplicating the last leaf.
	data := leafData(3)
	odd := NewMerkleTree(data).Root()

	duplicated := append(append([][]byte{}, data...), data[2])
	withDup := NewMerkleTree(duplicated).Root()

	assert.NotEqual(t, odd, withDup)
}

func TestMerkleTree_ProofRoundTrip(t *testing.T) {
	for _, n := range []int{1, 2, 3, 4, 5, 7, 8, 13} {
		data := leafData(n)
		tree := NewMerkleTree(data)
		for idx := 0; idx < n; idx++ {
			proof, err := tree.Proof(idx)
			if !assert.NoError(t, err) {
				continue
			}
			ok, err := VerifyProof(tree.Root(), data[idx], proof)
			assert.NoError(t, err)
			assert.True(t, ok, "leaf %d of %d should verify", idx, n)
		}
	}
}

func TestMerkleTree_ProofRejectsWrongLeaf(t *testing.T) {
	data := leafData(6)
	tree := NewMerkleTree(data)
	proof, err := tree.Proof(2)
	assert.NoError(t, err)

	ok, err := VerifyProof(tree.Root(), []byte("not the real leaf"), proof)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestMerkleTree_ProofOutOfRange(t *testing.T) {
	tree := NewMerkleTree(leafData(4))
	_, err := tree.Proof(4)
	assert.Error(t, err)
	_, err = tree.Proof(-1)
	assert.Error(t, err)
}
