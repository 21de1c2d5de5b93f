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

package store

import (
	`github.com/boltdb/bolt`
)

// TipKey is the reserved key under which the chain bucket stores the current
// tip block hash.
var TipKey = []byte("l")

// Store is a durable ordered map from byte-key to byte-blob, backed by a
// single bolt bucket. Multiple readers may run concurrently with a writer;
// readers observe a snapshot from before the writer commits.
type Store struct {
	db     *bolt.DB
	bucket string
	path   string
}

// EnsureBucket creates the store's bucket if it does not already exist.
func (s *Store) EnsureBucket() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(s.bucket))
		return err
	})
}

// Get returns the value stored at key, or nil if absent. Get runs in its own
// read transaction.
func (s *Store) Get(key []byte) ([]byte, error) {
	var val []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(s.bucket))
		if v := b.Get(key); v != nil {
			val = append([]byte(nil), v...)
		}
		return nil
	})
	return val, err
}

// Put writes key/value in its own write transaction, committed atomically.
func (s *Store) Put(key, value []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(s.bucket)).Put(key, value)
	})
}

// PutBatch writes every (key, value) pair in a single write transaction, so
// tip advancement (block insert + tip-key update) is all-or-nothing.
func (s *Store) PutBatch(pairs map[string][]byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(s.bucket))
		for k, v := range pairs {
			if err := b.Put([]byte(k), v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Iterate calls fn for every (key, value) pair in key order, inside a single
// read transaction. fn's byte slices are only valid for the duration of the
// call.
func (s *Store) Iterate(fn func(key, value []byte) error) error {
	return s.View(func(b *bolt.Bucket) error {
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if err := fn(k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// Reset deletes and recreates the bucket, used to rebuild a cache from
// scratch (the UTXO set's Rebuild).
func (s *Store) Reset() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(s.bucket)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(s.bucket))
		return err
	})
}

// Update runs fn inside a single bolt write transaction scoped to this
// store's bucket, for callers that need several dependent writes to commit
// atomically together (mirrors bolt's own Update, narrowed to one bucket).
func (s *Store) Update(fn func(b *bolt.Bucket) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(tx.Bucket([]byte(s.bucket)))
	})
}

// View runs fn inside a single bolt read transaction scoped to this store's
// bucket.
func (s *Store) View(fn func(b *bolt.Bucket) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		return fn(tx.Bucket([]byte(s.bucket)))
	})
}
