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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewGenesisBlock_IsValid(t *testing.T) {
	coinbase := mustCoinbase(t)

	block, err := NewGenesisBlock(coinbase, 8)
	assert.NoError(t, err)
	assert.True(t, block.IsGenesis())
	assert.True(t, block.Validate())
}

func mustCoinbase(t *testing.T) *Transaction {
	t.Helper()
	w, err := NewWallet()
	assert.NoError(t, err)
	tx, err := NewCoinbaseTx(w.Address(), "")
	assert.NoError(t, err)
	return tx
}

func TestBlock_SerializeRoundTrip(t *testing.T) {
	tx := mustCoinbase(t)
	block, err := NewBlock([]*Transaction{tx}, ZeroHash, 8)
	assert.NoError(t, err)

	data, err := block.Serialize()
	assert.NoError(t, err)
	got, err := DeserializeBlock(data)
	assert.NoError(t, err)

	assert.Equal(t, block.Hash, got.Hash)
	assert.Equal(t, block.MerkleRoot, got.MerkleRoot)
	assert.Equal(t, block.Nonce, got.Nonce)
	assert.Equal(t, len(block.Transactions), len(got.Transactions))
	assert.True(t, got.Validate())
}

func TestBlock_ValidateDetectsTamperedMerkleRoot(t *testing.T) {
	tx := mustCoinbase(t)
	block, err := NewBlock([]*Transaction{tx}, ZeroHash, 8)
	assert.NoError(t, err)

	block.MerkleRoot = ZeroHash
	assert.False(t, block.Validate())
}

func TestBlock_ValidateDetectsTamperedTransactions(t *testing.T) {
	tx := mustCoinbase(t)
	block, err := NewBlock([]*Transaction{tx}, ZeroHash, 8)
	assert.NoError(t, err)

	extra := mustCoinbase(t)
	block.Transactions = append(block.Transactions, extra)
	assert.False(t, block.Validate())
}

func TestIsGenesis_FalseForNonGenesisBlock(t *testing.T) {
	tx := mustCoinbase(t)
	block, err := NewBlock([]*Transaction{tx}, []byte("not the zero hash, 32 bytes!!!!!"), 8)
	assert.NoError(t, err)
	assert.False(t, block.IsGenesis())
}
