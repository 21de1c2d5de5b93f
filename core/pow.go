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
	`bytes`
	`crypto/sha256`
	`math/big`

	`lightChain/utils`
)

// TargetBits is the fixed PoW difficulty: a block's hash, read as a 256-bit
// unsigned integer, must not exceed 1 << (256 - TargetBits).
const TargetBits = 15

// MaxNonce bounds the nonce search; mining fails with ErrIteration if no
// nonce in [0, MaxNonce] satisfies the target.
const MaxNonce = 1_000_000

// ProofOfWork searches for, or validates, a nonce against a block header
// pre-image: timestamp_le(8) || target_bits_le(8) || prev_hash(32) ||
// merkle_root(32) || nonce_le(8).
type ProofOfWork struct {
	timestamp  uint64
	targetBits uint64
	prevHash   []byte
	merkleRoot []byte
	target     *big.Int
}

// NewProofOfWork builds the PoW context for a candidate block header.
func NewProofOfWork(timestamp, targetBits uint64, prevHash, merkleRoot []byte) *ProofOfWork {
	return &ProofOfWork{
		timestamp:  timestamp,
		targetBits: targetBits,
		prevHash:   prevHash,
		merkleRoot: merkleRoot,
		target:     target(targetBits),
	}
}

// target returns 1 << (256 - targetBits).
func target(targetBits uint64) *big.Int {
	t := big.NewInt(1)
	t.Lsh(t, uint(256-targetBits))
	return t
}

// header returns the fixed pre-image hashed for candidate nonce.
func (pow *ProofOfWork) header(nonce uint64) []byte {
	return bytes.Join(
		[][]byte{
			utils.Uint64ToBytes(pow.timestamp),
			utils.Uint64ToBytes(pow.targetBits),
			pow.prevHash,
			pow.merkleRoot,
			utils.Uint64ToBytes(nonce),
		},
		[]byte{},
	)
}

// Run searches nonces starting at 0 until the resulting hash satisfies the
// target or MaxNonce is exhausted.
func (pow *ProofOfWork) Run() (nonce uint64, hash []byte, err error) {
	var hashInt big.Int
	var h [32]byte

	for nonce = 0; nonce <= MaxNonce; nonce++ {
		h = sha256.Sum256(pow.header(nonce))
		hashInt.SetBytes(h[:])
		if hashInt.Cmp(pow.target) <= 0 {
			return nonce, h[:], nil
		}
	}
	return 0, nil, ErrIteration
}

// Validate recomputes the hash for nonce and reports whether it satisfies
// the target and matches wantHash.
func (pow *ProofOfWork) Validate(nonce uint64, wantHash []byte) bool {
	var hashInt big.Int
	h := sha256.Sum256(pow.header(nonce))
	hashInt.SetBytes(h[:])
	return hashInt.Cmp(pow.target) <= 0 && bytes.Equal(h[:], wantHash)
}
