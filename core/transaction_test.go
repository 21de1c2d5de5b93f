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
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewCoinbaseTx_IsCoinbase(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)
	tx, err := NewCoinbaseTx(w.Address(), "")
	assert.NoError(t, err)
	assert.True(t, tx.IsCoinbase())
	assert.Equal(t, uint64(Subsidy), tx.Vout[0].Value)
}

func TestNewCoinbaseTx_RejectsBadAddress(t *testing.T) {
	_, err := NewCoinbaseTx("not-a-valid-address", "")
	assert.Error(t, err)
}

func TestNewCoinbaseTx_DistinctMemoYieldsDistinctId(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)
	first, err := NewCoinbaseTx(w.Address(), "first")
	assert.NoError(t, err)
	second, err := NewCoinbaseTx(w.Address(), "second")
	assert.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)
}

func TestNewCoinbaseTx_EmptyMemoYieldsDistinctId(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)
	first, err := NewCoinbaseTx(w.Address(), "")
	assert.NoError(t, err)
	second, err := NewCoinbaseTx(w.Address(), "")
	assert.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)
}

func TestTransaction_SerializeRoundTrip(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)
	tx, err := NewCoinbaseTx(w.Address(), "")
	assert.NoError(t, err)

	data, err := tx.Serialize()
	assert.NoError(t, err)
	got, err := DeserializeTransaction(data)
	assert.NoError(t, err)
	assert.Equal(t, tx.Id, got.Id)
	assert.Equal(t, tx.Vout[0].Value, got.Vout[0].Value)
	assert.True(t, got.Vout[0].IsLockedWithKey(HashPubKey(w.PubKey)))
}

func TestTransaction_TrimmedCopyClearsScriptSig(t *testing.T) {
	in := TXInput{PrevTxID: []byte("some prev id"), Vout: 0}
	in.ScriptSig.PubKey[0] = 0xAB
	tx := &Transaction{Id: []byte("id"), Vin: []TXInput{in}}

	trimmed := tx.TrimmedCopy()
	assert.Equal(t, ScriptSig{}, trimmed.Vin[0].ScriptSig)
	assert.Equal(t, in.PrevTxID, trimmed.Vin[0].PrevTxID)
}

// spendScenario builds a coinbase-funded output locked to payer, then a
// transaction spending it to payee, ready for Sign/Verify.
func spendScenario(t *testing.T) (payer, payee *Wallet, fundTx *Transaction, spendTx *Transaction, prevTXs map[string]Transaction) {
	t.Helper()
	var err error
	payer, err = NewWallet()
	assert.NoError(t, err)
	payee, err = NewWallet()
	assert.NoError(t, err)

	fundTx, err = NewCoinbaseTx(payer.Address(), "")
	assert.NoError(t, err)

	out, err := NewTXOutput(Subsidy, payee.Address())
	assert.NoError(t, err)

	spendTx = &Transaction{
		Vin:  []TXInput{{PrevTxID: fundTx.Id, Vout: 0}},
		Vout: []TXOutput{*out},
	}
	id, err := spendTx.hash()
	assert.NoError(t, err)
	spendTx.Id = id

	prevTXs = map[string]Transaction{hex.EncodeToString(fundTx.Id): *fundTx}
	return payer, payee, fundTx, spendTx, prevTXs
}

func TestTransaction_SignThenVerify(t *testing.T) {
	payer, _, _, spendTx, prevTXs := spendScenario(t)

	assert.NoError(t, spendTx.Sign(payer, prevTXs))
	ok, err := spendTx.Verify(prevTXs)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestTransaction_VerifyFailsWithWrongSigner(t *testing.T) {
	_, _, _, spendTx, prevTXs := spendScenario(t)
	impostor, err := NewWallet()
	assert.NoError(t, err)

	assert.NoError(t, spendTx.Sign(impostor, prevTXs))
	ok, err := spendTx.Verify(prevTXs)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTransaction_VerifyFailsOnTamperedOutput(t *testing.T) {
	payer, _, _, spendTx, prevTXs := spendScenario(t)
	assert.NoError(t, spendTx.Sign(payer, prevTXs))

	spendTx.Vout[0].Value += 1
	ok, err := spendTx.Verify(prevTXs)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestTransaction_SignMissingPrevTx(t *testing.T) {
	payer, _, _, spendTx, _ := spendScenario(t)
	err := spendTx.Sign(payer, map[string]Transaction{})
	assert.True(t, errors.Is(err, ErrMissingPrevTx))
}

func TestTransaction_VerifyCoinbaseAlwaysTrue(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)
	tx, err := NewCoinbaseTx(w.Address(), "")
	assert.NoError(t, err)
	ok, err := tx.Verify(nil)
	assert.NoError(t, err)
	assert.True(t, ok)
}
