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

// This file implements the locking-script stack machine: a small Bitcoin-style
// interpreter over typed stack values, enough to express and execute a
// pay-to-public-key-hash output lock.
package core

import (
	`bytes`
	`crypto/ecdsa`
	`math/big`

	`github.com/btcsuite/btcd/btcec/v2`
)

// OpCode is a single script instruction.
type OpCode int

const (
	OpDup OpCode = iota
	OpHash160
	OpEqual
	OpEqualVerify
	OpCheckSig
	OpAdd
	// OpPush carries a literal value to push; the payload lives in the
	// ScriptElement that wraps it (Num or PubKeyHash, depending on kind).
	OpPush
)

// ScriptElement is one token of a Script: either an opcode with no payload,
// or a Push carrying a literal Value or PubKeyHash. A Push element is a
// PubKeyHash push iff PubKeyHash is non-nil; this is unambiguous since the
// two literal kinds are never combined on one element, and it keeps
// ScriptElement all-exported so it round-trips cleanly through gob.
type ScriptElement struct {
	Op         OpCode
	Num        uint32
	PubKeyHash []byte // 20 bytes, only meaningful when Op == OpPush && PubKeyHash != nil
}

// PushValue returns a literal Value(num) script element.
func PushValue(num uint32) ScriptElement {
	return ScriptElement{Op: OpPush, Num: num}
}

// PushPubKeyHash returns a literal PubKeyHash(pkh) script element.
func PushPubKeyHash(pkh []byte) ScriptElement {
	cp := append([]byte(nil), pkh...)
	return ScriptElement{Op: OpPush, PubKeyHash: cp}
}

// Script is an ordered list of script elements, e.g. a ScriptPubKey.
type Script []ScriptElement

// PayToAddress builds the canonical P2PKH locking script for pkh:
// OP_DUP OP_HASH160 <pkh> OP_EQUALVERIFY OP_CHECKSIG.
func PayToAddress(pkh []byte) Script {
	return Script{
		{Op: OpDup},
		{Op: OpHash160},
		PushPubKeyHash(pkh),
		{Op: OpEqualVerify},
		{Op: OpCheckSig},
	}
}

// ScriptSig supplies the initial stack contents a spender presents to unlock
// a ScriptPubKey: a signature and the public key it was produced with.
type ScriptSig struct {
	Signature [64]byte
	PubKey    [33]byte
}

// valueKind tags the dynamic type carried on the execution stack.
type valueKind int

const (
	kindValue valueKind = iota
	kindSignature
	kindPubKeyHash
	kindPubKey
)

type stackItem struct {
	kind valueKind
	num  uint32
	sig  []byte
	pkh  []byte
	pub  []byte
}

// Execute runs script against the optional scriptSig (providing the initial
// stack [Signature, PubKey]) and the optional 32-byte signing context used by
// OpCheckSig. It returns the program's boolean outcome, or ErrWrongValue if a
// type mismatch, an empty-stack pop, or residual stack values occur.
func Execute(script Script, sig *ScriptSig, signContext []byte) (bool, error) {
	var stack []stackItem
	if sig != nil {
		stack = append(stack, stackItem{kind: kindSignature, sig: sig.Signature[:]})
		stack = append(stack, stackItem{kind: kindPubKey, pub: sig.PubKey[:]})
	}

	pop := func() (stackItem, error) {
		if len(stack) == 0 {
			return stackItem{}, ErrWrongValue
		}
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return top, nil
	}

	outcome := false
	for _, el := range script {
		switch el.Op {
		case OpPush:
			if el.PubKeyHash != nil {
				stack = append(stack, stackItem{kind: kindPubKeyHash, pkh: el.PubKeyHash})
			} else {
				stack = append(stack, stackItem{kind: kindValue, num: el.Num})
			}

		case OpDup:
			if len(stack) == 0 {
				return false, ErrWrongValue
			}
			stack = append(stack, stack[len(stack)-1])

		case OpHash160:
			top, err := pop()
			if err != nil {
				return false, err
			}
			if top.kind != kindPubKey {
				return false, ErrWrongValue
			}
			stack = append(stack, stackItem{kind: kindPubKeyHash, pkh: HashPubKey(top.pub)})

		case OpAdd:
			a, err := pop()
			if err != nil {
				return false, err
			}
			b, err := pop()
			if err != nil {
				return false, err
			}
			if a.kind != kindValue || b.kind != kindValue {
				return false, ErrWrongValue
			}
			stack = append(stack, stackItem{kind: kindValue, num: a.num + b.num})

		case OpEqual:
			a, err := pop()
			if err != nil {
				return false, err
			}
			b, err := pop()
			if err != nil {
				return false, err
			}
			if a.kind != kindValue || b.kind != kindValue {
				return false, ErrWrongValue
			}
			outcome = a.num == b.num

		case OpEqualVerify:
			a, err := pop()
			if err != nil {
				return false, err
			}
			b, err := pop()
			if err != nil {
				return false, err
			}
			if a.kind != kindPubKeyHash || b.kind != kindPubKeyHash {
				return false, ErrWrongValue
			}
			if !bytes.Equal(a.pkh, b.pkh) {
				// A committed pubkey-hash that does not match the supplied
				// key must fail the whole program: a later OpCheckSig must
				// not be allowed to override this with an unrelated key's
				// valid signature.
				return false, nil
			}

		case OpCheckSig:
			pub, err := pop()
			if err != nil {
				return false, err
			}
			signature, err := pop()
			if err != nil {
				return false, err
			}
			if pub.kind != kindPubKey || signature.kind != kindSignature {
				return false, ErrWrongValue
			}
			ok, err := verifyCompactSignature(pub.pub, signature.sig, signContext)
			if err != nil {
				return false, err
			}
			outcome = ok

		default:
			return false, ErrWrongValue
		}
	}

	if len(stack) != 0 {
		return false, ErrWrongValue
	}
	return outcome, nil
}

// verifyCompactSignature checks a 64-byte (r||s, 32 bytes each) signature
// over digest, produced by a 33-byte compressed secp256k1 public key.
func verifyCompactSignature(compressedPub, sig64, digest []byte) (bool, error) {
	if len(compressedPub) != 33 || len(sig64) != 64 {
		return false, ErrWrongValue
	}
	pub, err := btcec.ParsePubKey(compressedPub)
	if err != nil {
		return false, ErrWrongValue
	}
	r := new(big.Int).SetBytes(sig64[:32])
	s := new(big.Int).SetBytes(sig64[32:])

	return ecdsa.Verify(pub.ToECDSA(), digest, r, s), nil
}
