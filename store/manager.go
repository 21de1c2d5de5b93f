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

// Package store wraps boltdb as a durable, ordered key-value environment and
// enforces that at most one environment is ever opened per on-disk path.
package store

import (
	`fmt`
	`path/filepath`
	`sync`

	`github.com/boltdb/bolt`
)

// environment is one open bolt database, shared by every Store (one per
// bucket) opened against the same on-disk path.
type environment struct {
	db     *bolt.DB
	stores map[string]*Store
}

// manager is the process-wide registry of open environments, keyed by
// canonicalized path. It exists so independent callers (the chain, its UTXO
// cache, the wallet manager, CLI subcommands) that happen to open the same
// path get the same *bolt.DB instead of racing to open the file twice, while
// still letting each maintain its own bucket within it.
type manager struct {
	mu   sync.Mutex
	envs map[string]*environment
}

var global = &manager{envs: make(map[string]*environment)}

// Open returns the Store for (path, bucket), creating the on-disk
// environment on first open against that path and the bucket within it on
// first open of that bucket. Subsequent calls with the same canonicalized
// path and bucket return the same handle.
func Open(path, bucket string) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: resolve path %q: %w", path, err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	env, ok := global.envs[abs]
	if !ok {
		db, err := bolt.Open(abs, 0644, nil)
		if err != nil {
			return nil, fmt.Errorf("store: open %q: %w", abs, err)
		}
		env = &environment{db: db, stores: make(map[string]*Store)}
		global.envs[abs] = env
	}

	if s, ok := env.stores[bucket]; ok {
		return s, nil
	}

	s := &Store{db: env.db, bucket: bucket, path: abs}
	if err := s.EnsureBucket(); err != nil {
		return nil, err
	}
	env.stores[bucket] = s
	return s, nil
}

// Close closes the environment at path (all of its buckets) and removes it
// from the registry, so a later Open reopens the file from disk instead of
// reusing a stale handle.
func Close(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("store: resolve path %q: %w", path, err)
	}

	global.mu.Lock()
	defer global.mu.Unlock()

	env, ok := global.envs[abs]
	if !ok {
		return nil
	}
	delete(global.envs, abs)
	return env.db.Close()
}
