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

// This file maintains an optional, rebuildable cache of unspent outputs
// keyed by transaction id. It exists purely as a read-path accelerator: the
// balance and spendable-output answers it gives always agree with a full
// scan over the chain, and Rebuild recomputes it from that scan alone.
package core

import (
	`bytes`
	`encoding/gob`
	`encoding/hex`
	`fmt`

	`github.com/boltdb/bolt`

	`lightChain/store`
)

const utxoBucket = "utxo"

// UTXOEntry pairs a still-unspent output with its real vout index in the
// owning transaction. The index must be tracked explicitly: once an earlier
// output of a multi-output transaction is spent and the survivors are
// re-packed, a survivor's position in the list no longer equals its vout.
type UTXOEntry struct {
	Vout   int64
	Output TXOutput
}

// TXOutputs is the gob-serializable unit stored per transaction id: every
// output of that transaction still unspent, each tagged with its real vout.
type TXOutputs struct {
	Entries []UTXOEntry
}

// serialize returns the gob-encoded byte form of outs.
func (outs TXOutputs) serialize() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(outs); err != nil {
		return nil, fmt.Errorf("utxo: serialize outputs: %w", err)
	}
	return buf.Bytes(), nil
}

// deserializeOutputs decodes a value previously produced by serialize.
func deserializeOutputs(data []byte) (TXOutputs, error) {
	var outs TXOutputs
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&outs); err != nil {
		return TXOutputs{}, fmt.Errorf("%w: decoding utxo entry: %v", ErrCorruptStore, err)
	}
	return outs, nil
}

// UTXOSet is a cache over Blockchain's unspent outputs, persisted in its own
// bucket of the same store.
type UTXOSet struct {
	chain *Blockchain
}

// NewUTXOSet wraps chain's store with the UTXO cache view.
func NewUTXOSet(chain *Blockchain) *UTXOSet {
	return &UTXOSet{chain: chain}
}

func (u *UTXOSet) utxoStore() (*store.Store, error) {
	return store.Open(u.chain.dbPath, utxoBucket)
}

// FindSpendableOutputs scans the cache for outputs locked to pubKeyHash,
// accumulating until at least amount is covered.
func (u *UTXOSet) FindSpendableOutputs(pubKeyHash []byte, amount uint64) (uint64, map[string][]int64, error) {
	st, err := u.utxoStore()
	if err != nil {
		return 0, nil, err
	}

	unspent := make(map[string][]int64)
	var accumulated uint64

	err = st.Iterate(func(key, value []byte) error {
		if accumulated >= amount {
			return nil
		}
		outs, err := deserializeOutputs(value)
		if err != nil {
			return err
		}
		txID := hex.EncodeToString(key)
		for _, e := range outs.Entries {
			if e.Output.IsLockedWithKey(pubKeyHash) && accumulated < amount {
				accumulated += e.Output.Value
				unspent[txID] = append(unspent[txID], e.Vout)
			}
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return accumulated, unspent, nil
}

// FindUTXO returns every cached unspent output locked to pubKeyHash.
func (u *UTXOSet) FindUTXO(pubKeyHash []byte) ([]TXOutput, error) {
	st, err := u.utxoStore()
	if err != nil {
		return nil, err
	}

	var result []TXOutput
	err = st.Iterate(func(_, value []byte) error {
		outs, err := deserializeOutputs(value)
		if err != nil {
			return err
		}
		for _, e := range outs.Entries {
			if e.Output.IsLockedWithKey(pubKeyHash) {
				result = append(result, e.Output)
			}
		}
		return nil
	})
	return result, err
}

// CountTransactions returns the number of transactions with at least one
// cached unspent output.
func (u *UTXOSet) CountTransactions() (int, error) {
	st, err := u.utxoStore()
	if err != nil {
		return 0, err
	}
	count := 0
	err = st.Iterate(func(_, _ []byte) error {
		count++
		return nil
	})
	return count, err
}

// Rebuild discards the cache and recomputes it from a full scan of the
// chain's blocks.
func (u *UTXOSet) Rebuild() error {
	st, err := u.utxoStore()
	if err != nil {
		return err
	}
	if err := st.Reset(); err != nil {
		return fmt.Errorf("utxo: reset cache: %w", err)
	}

	unspent, err := u.chain.FindAllUTXO()
	if err != nil {
		return err
	}

	return st.Update(func(b *bolt.Bucket) error {
		for txID, outs := range unspent {
			key, err := hex.DecodeString(txID)
			if err != nil {
				return fmt.Errorf("utxo: decode tx id %q: %w", txID, err)
			}
			data, err := outs.serialize()
			if err != nil {
				return err
			}
			if err := b.Put(key, data); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update folds a newly mined block into the cache: inputs it spends are
// removed (or have one entry pruned), and its own outputs are added.
func (u *UTXOSet) Update(block *Block) error {
	st, err := u.utxoStore()
	if err != nil {
		return err
	}

	return st.Update(func(b *bolt.Bucket) error {
		for _, tx := range block.Transactions {
			if !tx.IsCoinbase() {
				for _, in := range tx.Vin {
					raw := b.Get(in.PrevTxID)
					if raw == nil {
						continue
					}
					outs, err := deserializeOutputs(raw)
					if err != nil {
						return err
					}
					remaining := TXOutputs{}
					for _, e := range outs.Entries {
						if e.Vout != in.Vout {
							remaining.Entries = append(remaining.Entries, e)
						}
					}
					if len(remaining.Entries) == 0 {
						if err := b.Delete(in.PrevTxID); err != nil {
							return err
						}
					} else {
						data, err := remaining.serialize()
						if err != nil {
							return err
						}
						if err := b.Put(in.PrevTxID, data); err != nil {
							return err
						}
					}
				}
			}

			entries := make([]UTXOEntry, len(tx.Vout))
			for idx, out := range tx.Vout {
				entries[idx] = UTXOEntry{Vout: int64(idx), Output: out}
			}
			newOuts := TXOutputs{Entries: entries}
			data, err := newOuts.serialize()
			if err != nil {
				return err
			}
			if err := b.Put(tx.Id, data); err != nil {
				return err
			}
		}
		return nil
	})
}
