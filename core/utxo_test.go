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

func TestUTXOSet_FindSpendableOutputsAccumulatesUntilCovered(t *testing.T) {
	alice, err := NewWallet()
	assert.NoError(t, err)
	chain, _ := newTestChain(t, alice.Address())
	utxoSet := NewUTXOSet(chain)

	accumulated, unspent, err := utxoSet.FindSpendableOutputs(mustPKH(t, alice), 100)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, accumulated, uint64(100))
	assert.NotEmpty(t, unspent)
}

func TestUTXOSet_FindSpendableOutputsIgnoresOtherAddresses(t *testing.T) {
	alice, err := NewWallet()
	assert.NoError(t, err)
	bob, err := NewWallet()
	assert.NoError(t, err)
	chain, _ := newTestChain(t, alice.Address())
	utxoSet := NewUTXOSet(chain)

	accumulated, unspent, err := utxoSet.FindSpendableOutputs(mustPKH(t, bob), 1)
	assert.NoError(t, err)
	assert.Equal(t, uint64(0), accumulated)
	assert.Empty(t, unspent)
}

func TestUTXOSet_CountTransactions(t *testing.T) {
	alice, err := NewWallet()
	assert.NoError(t, err)
	chain, _ := newTestChain(t, alice.Address())
	utxoSet := NewUTXOSet(chain)

	n, err := utxoSet.CountTransactions()
	assert.NoError(t, err)
	assert.Equal(t, 1, n) // just the genesis coinbase

	bob, err := NewWallet()
	assert.NoError(t, err)
	tx, err := chain.NewUTXOTransaction(alice, bob.Address(), 10)
	assert.NoError(t, err)
	coinbase, err := NewCoinbaseTx(alice.Address(), "")
	assert.NoError(t, err)
	_, err = chain.MineBlock([]*Transaction{coinbase, tx})
	assert.NoError(t, err)

	n, err = utxoSet.CountTransactions()
	assert.NoError(t, err)
	assert.Equal(t, 2, n) // new coinbase entry + the spend tx's entry (payment + change)
}

func TestUTXOSet_RebuildIsIdempotent(t *testing.T) {
	alice, err := NewWallet()
	assert.NoError(t, err)
	chain, _ := newTestChain(t, alice.Address())
	utxoSet := NewUTXOSet(chain)

	before, err := utxoSet.FindUTXO(mustPKH(t, alice))
	assert.NoError(t, err)

	assert.NoError(t, utxoSet.Rebuild())

	after, err := utxoSet.FindUTXO(mustPKH(t, alice))
	assert.NoError(t, err)

	assert.Equal(t, before, after)
}
