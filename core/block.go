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

// This file defines Block: a header (timestamp, difficulty, parent hash,
// merkle root, PoW hash and nonce) plus its ordered transaction list.
package core

import (
	`bytes`
	`crypto/sha256`
	`encoding/gob`
	`fmt`
	`time`
)

// ZeroHash is the 32-byte all-zero hash: the PrevBlockHash of genesis, and
// the coinbase input's synthetic previous-transaction id.
var ZeroHash = make([]byte, sha256.Size)

// Block is a mined header plus the transactions it commits to.
type Block struct {
	TimeStamp     uint64
	TargetBits    uint64
	PrevBlockHash []byte
	MerkleRoot    []byte
	Hash          []byte
	Nonce         uint64
	Transactions  []*Transaction
}

// txIDs returns the ordered transaction ids committed by txs.
func txIDs(txs []*Transaction) [][]byte {
	ids := make([][]byte, len(txs))
	for i, tx := range txs {
		ids[i] = tx.Id
	}
	return ids
}

// NewBlock mines a block over txs atop prevBlockHash at the given
// difficulty. Fails with ErrIteration if mining exhausts MaxNonce.
func NewBlock(txs []*Transaction, prevBlockHash []byte, targetBits uint64) (*Block, error) {
	timestamp := uint64(time.Now().Unix())
	merkleRoot := NewMerkleTree(txIDs(txs)).Root()

	pow := NewProofOfWork(timestamp, targetBits, prevBlockHash, merkleRoot)
	nonce, hash, err := pow.Run()
	if err != nil {
		return nil, fmt.Errorf("block: mine: %w", err)
	}

	return &Block{
		TimeStamp:     timestamp,
		TargetBits:    targetBits,
		PrevBlockHash: prevBlockHash,
		MerkleRoot:    merkleRoot,
		Hash:          hash,
		Nonce:         nonce,
		Transactions:  txs,
	}, nil
}

// NewGenesisBlock mines the chain's first block: its sole transaction is
// coinbaseTx and its parent hash is ZeroHash.
func NewGenesisBlock(coinbaseTx *Transaction, targetBits uint64) (*Block, error) {
	return NewBlock([]*Transaction{coinbaseTx}, ZeroHash, targetBits)
}

// IsGenesis reports whether b has no predecessor.
func (b *Block) IsGenesis() bool {
	return bytes.Equal(b.PrevBlockHash, ZeroHash)
}

// Validate recomputes b's merkle root and PoW hash and reports whether both
// still match what's stored.
func (b *Block) Validate() bool {
	if !bytes.Equal(NewMerkleTree(txIDs(b.Transactions)).Root(), b.MerkleRoot) {
		return false
	}
	pow := NewProofOfWork(b.TimeStamp, b.TargetBits, b.PrevBlockHash, b.MerkleRoot)
	return pow.Validate(b.Nonce, b.Hash)
}

// Serialize returns the gob-encoded byte form of b.
func (b *Block) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		return nil, fmt.Errorf("block: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeBlock decodes a block previously produced by Serialize.
func DeserializeBlock(data []byte) (*Block, error) {
	var b Block
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: decoding block: %v", ErrCorruptStore, err)
	}
	return &b, nil
}
