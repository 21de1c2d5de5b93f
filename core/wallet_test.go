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
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"lightChain/store"
)

func TestWallet_AddressRoundTrips(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)

	addr := w.Address()
	assert.True(t, ValidateAddress(addr))

	pkh, err := AddressToPKH(addr)
	assert.NoError(t, err)
	assert.Equal(t, HashPubKey(w.PubKey), pkh)
}

func TestWallet_FromSeedIsDeterministic(t *testing.T) {
	seed := []byte("a fixed seed for reproducible tests")
	w1 := FromSeed(seed)
	w2 := FromSeed(seed)
	assert.Equal(t, w1.PubKey, w2.PubKey)
	assert.Equal(t, w1.Address(), w2.Address())
}

func TestValidateAddress_RejectsTamperedChecksum(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)
	addr := []byte(w.Address())
	addr[len(addr)-1]++
	assert.False(t, ValidateAddress(string(addr)))
}

func TestValidateAddress_RejectsGarbage(t *testing.T) {
	assert.False(t, ValidateAddress("not a real address"))
}

func TestWallet_SignVerifyCompact(t *testing.T) {
	w, err := NewWallet()
	assert.NoError(t, err)
	digest := []byte("message to authenticate")
	sig, err := w.Sign(digest)
	assert.NoError(t, err)
	assert.True(t, VerifyCompact(w.PubKey, sig[:], digest))

	sig[10] ^= 0x01
	assert.False(t, VerifyCompact(w.PubKey, sig[:], digest))
}

func TestWalletManager_CreateAndPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.db")
	t.Cleanup(func() { _ = store.Close(path) })

	wm, err := OpenWalletManager(path)
	assert.NoError(t, err)
	addr, err := wm.CreateWallet()
	assert.NoError(t, err)
	assert.True(t, ValidateAddress(addr))
	assert.Contains(t, wm.Addresses(), addr)

	assert.NoError(t, store.Close(path))

	reopened, err := OpenWalletManager(path)
	assert.NoError(t, err)
	w, err := reopened.Get(addr)
	assert.NoError(t, err)
	assert.Equal(t, addr, w.Address())
}

func TestWalletManager_GetUnknownAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.db")
	t.Cleanup(func() { _ = store.Close(path) })

	wm, err := OpenWalletManager(path)
	assert.NoError(t, err)
	_, err = wm.Get("nonexistent")
	assert.Error(t, err)
}
