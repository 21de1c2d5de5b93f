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

// This file defines Transaction and its inputs/outputs, the UTXO model's
// unit of value transfer, plus coinbase issuance and trimmed-copy signing
// and verification against the locking scripts in script.go.
package core

import (
	`bytes`
	`crypto/sha256`
	`encoding/gob`
	`encoding/hex`
	`fmt`
	`strings`
	`time`
)

// sha256Sum is a small helper so call sites read as a single hashing step.
func sha256Sum(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}

// Subsidy is the fixed reward paid to a coinbase transaction's recipient.
// There is no halving schedule: every block pays the same subsidy.
const Subsidy = 5000

// TXInput references one output of an earlier transaction and supplies the
// data needed to unlock it. Memo is only meaningful on a coinbase input: it
// carries the caller-supplied (or time-derived) text that keeps two
// coinbases paying the same address from hashing to the same Id.
type TXInput struct {
	PrevTxID  []byte
	Vout      int64
	ScriptSig ScriptSig
	Memo      []byte
}

// UsesKey reports whether this input's signing key hashes to pubKeyHash.
func (in *TXInput) UsesKey(pubKeyHash []byte) bool {
	return bytes.Equal(HashPubKey(in.ScriptSig.PubKey[:]), pubKeyHash)
}

// TXOutput locks a Value to whatever script (ordinarily a P2PKH pay-to
// address) can satisfy ScriptPubKey.
type TXOutput struct {
	Value        uint64
	ScriptPubKey Script
}

// NewTXOutput builds an output paying value to address's P2PKH script.
func NewTXOutput(value uint64, address string) (*TXOutput, error) {
	pkh, err := AddressToPKH(address)
	if err != nil {
		return nil, fmt.Errorf("transaction: output address: %w", err)
	}
	return &TXOutput{Value: value, ScriptPubKey: PayToAddress(pkh)}, nil
}

// IsLockedWithKey reports whether pubKeyHash is the one committed in this
// output's locking script (true only for the canonical P2PKH shape).
func (out *TXOutput) IsLockedWithKey(pubKeyHash []byte) bool {
	if len(out.ScriptPubKey) != 5 {
		return false
	}
	el := out.ScriptPubKey[2]
	return el.PubKeyHash != nil && bytes.Equal(el.PubKeyHash, pubKeyHash)
}

// Transaction moves value from the outputs referenced by Vin to the newly
// created Vout.
type Transaction struct {
	Id   []byte
	Vin  []TXInput
	Vout []TXOutput
}

// IsCoinbase reports whether tx is a block-reward transaction: exactly one
// input, referencing ZeroHash at index -1.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Vin) == 1 && bytes.Equal(tx.Vin[0].PrevTxID, ZeroHash) && tx.Vin[0].Vout == -1
}

// Serialize returns the gob-encoded byte form of tx.
func (tx *Transaction) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(tx); err != nil {
		return nil, fmt.Errorf("transaction: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeTransaction decodes a transaction previously produced by
// Serialize.
func DeserializeTransaction(data []byte) (*Transaction, error) {
	var tx Transaction
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&tx); err != nil {
		return nil, fmt.Errorf("%w: decoding transaction: %v", ErrCorruptStore, err)
	}
	return &tx, nil
}

// NewCoinbaseTx builds the reward transaction a miner includes in a block it
// mines, paying Subsidy to to. memo is carried into the coinbase's sole
// input and contributes nothing to verification, but it is what keeps two
// coinbases paying the same address from serializing identically and
// colliding on Id: if memo is empty it defaults to a nanosecond-timestamped
// string unique to this call.
func NewCoinbaseTx(to, memo string) (*Transaction, error) {
	out, err := NewTXOutput(Subsidy, to)
	if err != nil {
		return nil, err
	}
	if memo == "" {
		memo = fmt.Sprintf("reward to %q at %d", to, time.Now().UnixNano())
	}
	tx := &Transaction{
		Vin:  []TXInput{{PrevTxID: ZeroHash, Vout: -1, Memo: []byte(memo)}},
		Vout: []TXOutput{*out},
	}
	id, err := tx.hash()
	if err != nil {
		return nil, err
	}
	tx.Id = id
	return tx, nil
}

// hash returns SHA256 of tx serialized with Id cleared: the value Id itself
// is set to.
func (tx *Transaction) hash() ([]byte, error) {
	txCopy := *tx
	txCopy.Id = nil
	data, err := txCopy.Serialize()
	if err != nil {
		return nil, err
	}
	h := sha256Sum(data)
	return h, nil
}

// TrimmedCopy returns a copy of tx with every input's ScriptSig cleared, the
// starting point for both signing and verifying.
func (tx *Transaction) TrimmedCopy() Transaction {
	vin := make([]TXInput, len(tx.Vin))
	for i, in := range tx.Vin {
		vin[i] = TXInput{PrevTxID: in.PrevTxID, Vout: in.Vout, Memo: in.Memo}
	}
	vout := make([]TXOutput, len(tx.Vout))
	copy(vout, tx.Vout)
	return Transaction{Id: tx.Id, Vin: vin, Vout: vout}
}

// sigHash computes the digest signed (and later verified) for input index,
// given the output it spends: a trimmed copy of tx with that one input's
// ScriptSig standing in for the referenced output's public key hash, hashed
// the same way a transaction id is computed.
func (tx *Transaction) sigHash(index int, prevOut TXOutput) ([]byte, error) {
	txCopy := tx.TrimmedCopy()
	pkh := pubKeyHashOf(prevOut)
	txCopy.Vin[index].ScriptSig = ScriptSig{}
	copy(txCopy.Vin[index].ScriptSig.PubKey[:], padTo33(pkh))
	txCopy.Id = nil
	data, err := txCopy.Serialize()
	if err != nil {
		return nil, err
	}
	return sha256Sum(data), nil
}

// pubKeyHashOf extracts the committed public key hash from a P2PKH output,
// or nil if out isn't shaped that way.
func pubKeyHashOf(out TXOutput) []byte {
	if len(out.ScriptPubKey) != 5 {
		return nil
	}
	return out.ScriptPubKey[2].PubKeyHash
}

// padTo33 right-pads or truncates b to 33 bytes; used only to give sigHash a
// fixed-width stand-in for the referenced output's 20-byte pubkey hash.
func padTo33(b []byte) []byte {
	out := make([]byte, 33)
	copy(out, b)
	return out
}

// Sign signs every non-coinbase input of tx with wallet's private key.
// prevTXs must map each referenced previous transaction's hex id to that
// transaction.
func (tx *Transaction) Sign(wallet *Wallet, prevTXs map[string]Transaction) error {
	if tx.IsCoinbase() {
		return nil
	}
	for _, in := range tx.Vin {
		if _, ok := prevTXs[hex.EncodeToString(in.PrevTxID)]; !ok {
			return ErrMissingPrevTx
		}
	}

	for i, in := range tx.Vin {
		prevTx := prevTXs[hex.EncodeToString(in.PrevTxID)]
		digest, err := tx.sigHash(i, prevTx.Vout[in.Vout])
		if err != nil {
			return err
		}
		sig, err := wallet.Sign(digest)
		if err != nil {
			return err
		}
		tx.Vin[i].ScriptSig = ScriptSig{Signature: sig}
		copy(tx.Vin[i].ScriptSig.PubKey[:], wallet.PubKey)
	}
	return nil
}

// Verify checks every non-coinbase input of tx against the locking script of
// the output it spends, running the stack machine in script.go.
func (tx *Transaction) Verify(prevTXs map[string]Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}
	for _, in := range tx.Vin {
		if _, ok := prevTXs[hex.EncodeToString(in.PrevTxID)]; !ok {
			return false, ErrMissingPrevTx
		}
	}

	for i, in := range tx.Vin {
		prevTx := prevTXs[hex.EncodeToString(in.PrevTxID)]
		prevOut := prevTx.Vout[in.Vout]
		digest, err := tx.sigHash(i, prevOut)
		if err != nil {
			return false, err
		}
		ok, err := Execute(prevOut.ScriptPubKey, &in.ScriptSig, digest)
		if err != nil {
			return false, fmt.Errorf("transaction: input %d: %w", i, err)
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// String renders tx for diagnostics.
func (tx *Transaction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transaction %x:\n", tx.Id)
	for i, in := range tx.Vin {
		fmt.Fprintf(&b, "  Input %d:\n", i)
		fmt.Fprintf(&b, "    PrevTxID: %x\n", in.PrevTxID)
		fmt.Fprintf(&b, "    Vout:     %d\n", in.Vout)
		fmt.Fprintf(&b, "    PubKey:   %x\n", in.ScriptSig.PubKey)
	}
	for i, out := range tx.Vout {
		fmt.Fprintf(&b, "  Output %d:\n", i)
		fmt.Fprintf(&b, "    Value: %d\n", out.Value)
	}
	return b.String()
}
