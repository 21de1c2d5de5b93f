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

// This file ties together blocks, transactions and the UTXO cache into a
// single append-only chain backed by a store.Store. There is no fork
// resolution: MineBlock always extends the current tip.
package core

import (
	`bytes`
	`encoding/hex`
	`fmt`
	`time`

	`lightChain/store`
	`lightChain/utils`
)

const blocksBucket = "blocks"

// Blockchain is the tip pointer plus the durable block store behind it.
type Blockchain struct {
	tip    []byte
	dbPath string
	chain  *store.Store
}

// CreateBlockchain mines the genesis block, paying its coinbase reward to
// addr, and persists it as the sole block of a brand new chain at dbPath.
// It fails if a chain already exists there.
func CreateBlockchain(dbPath, addr string) (*Blockchain, error) {
	if ok, _ := utils.FileExists(dbPath); ok {
		return nil, fmt.Errorf("chain: a chain already exists at %q", dbPath)
	}

	st, err := store.Open(dbPath, blocksBucket)
	if err != nil {
		return nil, err
	}

	genesisMemo := fmt.Sprintf("the genesis block of lightChain is created at %v", time.Now())
	coinbase, err := NewCoinbaseTx(addr, genesisMemo)
	if err != nil {
		return nil, err
	}
	genesis, err := NewGenesisBlock(coinbase, TargetBits)
	if err != nil {
		return nil, err
	}
	data, err := genesis.Serialize()
	if err != nil {
		return nil, err
	}
	if err := st.PutBatch(map[string][]byte{
		string(genesis.Hash): data,
		string(store.TipKey): genesis.Hash,
	}); err != nil {
		return nil, fmt.Errorf("chain: persist genesis: %w", err)
	}

	chain := &Blockchain{tip: genesis.Hash, dbPath: dbPath, chain: st}
	if err := NewUTXOSet(chain).Rebuild(); err != nil {
		return nil, err
	}
	return chain, nil
}

// OpenBlockchain loads an existing chain's tip from dbPath.
func OpenBlockchain(dbPath string) (*Blockchain, error) {
	if ok, _ := utils.FileExists(dbPath); !ok {
		return nil, fmt.Errorf("chain: no chain found at %q", dbPath)
	}
	st, err := store.Open(dbPath, blocksBucket)
	if err != nil {
		return nil, err
	}
	tip, err := st.Get(store.TipKey)
	if err != nil {
		return nil, err
	}
	if tip == nil {
		return nil, ErrNoParent
	}
	return &Blockchain{tip: tip, dbPath: dbPath, chain: st}, nil
}

// MineBlock verifies txs, mines a new block atop the current tip, persists
// it, advances the tip, and folds it into the UTXO cache.
func (chain *Blockchain) MineBlock(txs []*Transaction) (*Block, error) {
	for _, tx := range txs {
		ok, err := chain.VerifyTransaction(tx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrInvalidTx
		}
	}

	lastHash, err := chain.chain.Get(store.TipKey)
	if err != nil {
		return nil, err
	}

	block, err := NewBlock(txs, lastHash, TargetBits)
	if err != nil {
		return nil, err
	}
	data, err := block.Serialize()
	if err != nil {
		return nil, err
	}
	if err := chain.chain.PutBatch(map[string][]byte{
		string(block.Hash):   data,
		string(store.TipKey): block.Hash,
	}); err != nil {
		return nil, fmt.Errorf("chain: persist block: %w", err)
	}
	chain.tip = block.Hash

	if err := NewUTXOSet(chain).Update(block); err != nil {
		return nil, err
	}
	return block, nil
}

// ChainIterator walks blocks from the tip back to genesis.
type ChainIterator struct {
	curHash []byte
	chain   *store.Store
}

// Iterator starts a new walk from the current tip.
func (chain *Blockchain) Iterator() *ChainIterator {
	return &ChainIterator{curHash: chain.tip, chain: chain.chain}
}

// Next returns the current block and advances the iterator to its parent.
// Next returns ErrNoParent once called past genesis.
func (iter *ChainIterator) Next() (*Block, error) {
	if iter.curHash == nil {
		return nil, ErrNoParent
	}
	raw, err := iter.chain.Get(iter.curHash)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: block %x missing", ErrCorruptStore, iter.curHash)
	}
	block, err := DeserializeBlock(raw)
	if err != nil {
		return nil, err
	}
	if block.IsGenesis() {
		iter.curHash = nil
	} else {
		iter.curHash = block.PrevBlockHash
	}
	return block, nil
}

// BlocksCount returns the number of blocks currently on the chain.
func (chain *Blockchain) BlocksCount() (int64, error) {
	var n int64
	iter := chain.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return 0, err
		}
		n++
		if block.IsGenesis() {
			break
		}
	}
	return n, nil
}

// FindTransaction scans the chain for the transaction with the given id.
func (chain *Blockchain) FindTransaction(id []byte) (Transaction, error) {
	iter := chain.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return Transaction{}, err
		}
		for _, tx := range block.Transactions {
			if bytes.Equal(tx.Id, id) {
				return *tx, nil
			}
		}
		if block.IsGenesis() {
			break
		}
	}
	return Transaction{}, ErrTxNotFound
}

// FindAllUTXO scans every block once and returns, for each transaction that
// still has unspent outputs, those outputs. This is the ground truth the
// UTXO cache is rebuilt from.
func (chain *Blockchain) FindAllUTXO() (map[string]TXOutputs, error) {
	unspent := make(map[string]TXOutputs)
	spent := make(map[string]map[int64]bool)

	iter := chain.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return nil, err
		}
		for _, tx := range block.Transactions {
			txID := hex.EncodeToString(tx.Id)

			for idx, out := range tx.Vout {
				if spent[txID][int64(idx)] {
					continue
				}
				outs := unspent[txID]
				outs.Entries = append(outs.Entries, UTXOEntry{Vout: int64(idx), Output: out})
				unspent[txID] = outs
			}

			if !tx.IsCoinbase() {
				for _, in := range tx.Vin {
					inID := hex.EncodeToString(in.PrevTxID)
					if spent[inID] == nil {
						spent[inID] = make(map[int64]bool)
					}
					spent[inID][in.Vout] = true
				}
			}
		}
		if block.IsGenesis() {
			break
		}
	}
	return unspent, nil
}

// FindUnspentOutputs walks the chain newest-first and returns every output
// still unspent and locked to pubKeyHash. Unlike FindAllUTXO's global scan,
// the spent set tracked here is scoped to pubKeyHash alone: an input only
// marks its referenced output spent when that input actually uses the
// requested key (TXInput.UsesKey), i.e. when pubKeyHash's own wallet is the
// one that signed the spend. This is Balance's ground truth.
func (chain *Blockchain) FindUnspentOutputs(pubKeyHash []byte) ([]TXOutput, error) {
	var unspent []TXOutput
	spent := make(map[string]map[int64]bool)

	iter := chain.Iterator()
	for {
		block, err := iter.Next()
		if err != nil {
			return nil, err
		}
		for _, tx := range block.Transactions {
			txID := hex.EncodeToString(tx.Id)
			for idx, out := range tx.Vout {
				if spent[txID][int64(idx)] {
					continue
				}
				if out.IsLockedWithKey(pubKeyHash) {
					unspent = append(unspent, out)
				}
			}

			if !tx.IsCoinbase() {
				for _, in := range tx.Vin {
					if !in.UsesKey(pubKeyHash) {
						continue
					}
					inID := hex.EncodeToString(in.PrevTxID)
					if spent[inID] == nil {
						spent[inID] = make(map[int64]bool)
					}
					spent[inID][in.Vout] = true
				}
			}
		}
		if block.IsGenesis() {
			break
		}
	}
	return unspent, nil
}

// Balance sums every unspent output locked to address.
func (chain *Blockchain) Balance(address string) (uint64, error) {
	pkh, err := AddressToPKH(address)
	if err != nil {
		return 0, err
	}
	outs, err := chain.FindUnspentOutputs(pkh)
	if err != nil {
		return 0, err
	}
	var total uint64
	for _, out := range outs {
		total += out.Value
	}
	return total, nil
}

// NewUTXOTransaction builds and signs a transaction moving amount from
// wallet's address to the destination address, drawing on wallet's
// spendable outputs and returning any excess as change to wallet itself.
func (chain *Blockchain) NewUTXOTransaction(wallet *Wallet, to string, amount uint64) (*Transaction, error) {
	pkh := HashPubKey(wallet.PubKey)
	accumulated, unspent, err := NewUTXOSet(chain).FindSpendableOutputs(pkh, amount)
	if err != nil {
		return nil, err
	}
	if accumulated < amount {
		return nil, ErrNotEnoughMoney
	}

	var vin []TXInput
	for txID, outIdxs := range unspent {
		prevID, err := hex.DecodeString(txID)
		if err != nil {
			return nil, fmt.Errorf("chain: decode tx id %q: %w", txID, err)
		}
		for _, outIdx := range outIdxs {
			vin = append(vin, TXInput{PrevTxID: prevID, Vout: outIdx})
		}
	}

	toOut, err := NewTXOutput(amount, to)
	if err != nil {
		return nil, err
	}
	vout := []TXOutput{*toOut}
	if accumulated > amount {
		changeOut, err := NewTXOutput(accumulated-amount, wallet.Address())
		if err != nil {
			return nil, err
		}
		vout = append(vout, *changeOut)
	}

	tx := &Transaction{Vin: vin, Vout: vout}
	id, err := tx.hash()
	if err != nil {
		return nil, err
	}
	tx.Id = id

	prevTXs, err := chain.getPrevTXs(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Sign(wallet, prevTXs); err != nil {
		return nil, err
	}
	return tx, nil
}

// VerifyTransaction checks tx's signatures against the outputs it spends.
func (chain *Blockchain) VerifyTransaction(tx *Transaction) (bool, error) {
	if tx.IsCoinbase() {
		return true, nil
	}
	prevTXs, err := chain.getPrevTXs(tx)
	if err != nil {
		return false, err
	}
	return tx.Verify(prevTXs)
}

// getPrevTXs looks up, for every input of tx, the transaction it spends.
func (chain *Blockchain) getPrevTXs(tx *Transaction) (map[string]Transaction, error) {
	prevTXs := make(map[string]Transaction)
	for _, in := range tx.Vin {
		prevTx, err := chain.FindTransaction(in.PrevTxID)
		if err != nil {
			return nil, err
		}
		prevTXs[hex.EncodeToString(prevTx.Id)] = prevTx
	}
	return prevTXs, nil
}
