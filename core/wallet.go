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

// This file defines Wallet and WalletManager, with address derivation and
// on-disk persistence through the store package.
package core

import (
	`bytes`
	`crypto/ecdsa`
	`crypto/rand`
	`crypto/sha256`
	`encoding/gob`
	`errors`
	`fmt`
	`math/big`

	`github.com/btcsuite/btcd/btcec/v2`
	`golang.org/x/crypto/ripemd160`

	`lightChain/store`
	`lightChain/utils`
)

const (
	addressVersion  = byte(0x00)
	addrChecksumLen = 4
	walletsKey      = "wallets"
)

// Wallet holds a secp256k1 keypair. PrivKey/PubKey are the raw serialized
// forms (32 and 33 bytes respectively) so the struct round-trips through gob
// without depending on btcec's internal representation.
type Wallet struct {
	PrivKey []byte
	PubKey  []byte
}

// NewWallet generates a fresh secp256k1 keypair with a cryptographically
// secure RNG.
func NewWallet() (*Wallet, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate key: %w", err)
	}
	return &Wallet{
		PrivKey: priv.Serialize(),
		PubKey:  priv.PubKey().SerializeCompressed(),
	}, nil
}

// FromSeed deterministically derives a wallet from seed, padded with zeros to
// 32 bytes or truncated to the first 32 bytes. Reproducible, not for
// production key derivation.
func FromSeed(seed []byte) *Wallet {
	buf := make([]byte, 32)
	copy(buf, seed)
	priv := btcec.PrivKeyFromBytes(buf)
	return &Wallet{
		PrivKey: buf,
		PubKey:  priv.PubKey().SerializeCompressed(),
	}
}

// PrivateKey reconstructs the btcec private key from its raw serialization.
func (w *Wallet) PrivateKey() *btcec.PrivateKey {
	return btcec.PrivKeyFromBytes(w.PrivKey)
}

// Address applies VERSION || RIPEMD160(SHA256(pubkey)) || CHECKSUM through
// base58.
func (w *Wallet) Address() string {
	return string(addressFromPKH(HashPubKey(w.PubKey)))
}

// addressFromPKH renders a public key hash into its base58 address form.
func addressFromPKH(pkh []byte) []byte {
	versioned := append([]byte{addressVersion}, pkh...)
	full := append(versioned, checksum(versioned)...)
	return utils.Base58Encoding(full)
}

// HashPubKey returns RIPEMD160(SHA256(pubKey)), the 20-byte public key hash.
func HashPubKey(pubKey []byte) []byte {
	sha := sha256.Sum256(pubKey)
	hasher := ripemd160.New()
	_, _ = hasher.Write(sha[:]) // ripemd160.digest.Write never errors
	return hasher.Sum(nil)
}

// checksum returns the first addrChecksumLen bytes of SHA256(SHA256(payload)).
func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:addrChecksumLen]
}

// AddressToPKH decodes addr and returns its embedded public key hash,
// verifying the checksum.
func AddressToPKH(addr string) ([]byte, error) {
	full := utils.Base58Decoding([]byte(addr))
	if len(full) < 1+20+addrChecksumLen {
		return nil, errors.New("wallet: address too short")
	}
	version := full[0]
	pkh := full[1 : len(full)-addrChecksumLen]
	wantChecksum := full[len(full)-addrChecksumLen:]
	gotChecksum := checksum(append([]byte{version}, pkh...))
	if !bytes.Equal(wantChecksum, gotChecksum) {
		return nil, errors.New("wallet: invalid checksum")
	}
	if version != addressVersion {
		return nil, errors.New("wallet: unsupported address version")
	}
	return pkh, nil
}

// ValidateAddress reports whether addr decodes to a well-formed address.
func ValidateAddress(addr string) bool {
	_, err := AddressToPKH(addr)
	return err == nil
}

// Sign produces a 64-byte compact signature (r||s, each right-aligned into
// 32 bytes) over message using the wallet's private key.
func (w *Wallet) Sign(message []byte) ([64]byte, error) {
	var out [64]byte
	r, s, err := ecdsa.Sign(rand.Reader, w.PrivateKey().ToECDSA(), message)
	if err != nil {
		return out, fmt.Errorf("wallet: sign: %w", err)
	}
	r.FillBytes(out[0:32])
	s.FillBytes(out[32:64])
	return out, nil
}

// VerifyCompact checks a 64-byte compact signature over message against a
// 33-byte compressed public key.
func VerifyCompact(compressedPub []byte, sig64 []byte, message []byte) bool {
	pub, err := btcec.ParsePubKey(compressedPub)
	if err != nil || len(sig64) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig64[:32])
	s := new(big.Int).SetBytes(sig64[32:])
	return ecdsa.Verify(pub.ToECDSA(), message, r, s)
}

// WalletManager holds every wallet known locally, keyed by address, and
// persists the collection through a store.Store.
type WalletManager struct {
	store   *store.Store
	Wallets map[string]*Wallet
}

// OpenWalletManager loads the wallet collection at path (bucket "wallets",
// key "wallets"), or starts empty if none exists yet.
func OpenWalletManager(path string) (*WalletManager, error) {
	st, err := store.Open(path, "wallets")
	if err != nil {
		return nil, err
	}
	wm := &WalletManager{store: st, Wallets: make(map[string]*Wallet)}

	raw, err := st.Get([]byte(walletsKey))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return wm, nil
	}

	decoder := gob.NewDecoder(bytes.NewReader(raw))
	if err := decoder.Decode(&wm.Wallets); err != nil {
		return nil, fmt.Errorf("%w: decoding wallet collection: %v", ErrCorruptStore, err)
	}
	return wm, nil
}

// persist writes the full wallet collection back to the store in one
// transaction.
func (wm *WalletManager) persist() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(wm.Wallets); err != nil {
		return fmt.Errorf("wallet: encode collection: %w", err)
	}
	return wm.store.Put([]byte(walletsKey), buf.Bytes())
}

// Addresses returns every address known to the manager.
func (wm *WalletManager) Addresses() []string {
	addrs := make([]string, 0, len(wm.Wallets))
	for addr := range wm.Wallets {
		addrs = append(addrs, addr)
	}
	return addrs
}

// Get returns the wallet for addr.
func (wm *WalletManager) Get(addr string) (*Wallet, error) {
	w, ok := wm.Wallets[addr]
	if !ok {
		return nil, fmt.Errorf("wallet: address %q not found", addr)
	}
	return w, nil
}

// CreateWallet generates a new wallet, appends it to the collection and
// persists the updated map, returning the new address.
func (wm *WalletManager) CreateWallet() (string, error) {
	w, err := NewWallet()
	if err != nil {
		return "", err
	}
	addr := w.Address()
	wm.Wallets[addr] = w
	if err := wm.persist(); err != nil {
		return "", err
	}
	return addr, nil
}
