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

import `errors`

// Mining errors.
var (
	// ErrIteration is returned when no nonce in [0, MaxNonce] satisfies the
	// target. The caller must surface this; it is never retried silently.
	ErrIteration = errors.New("pow: exhausted max nonce without finding a solution")
	// ErrNoParent is returned when a tip is required but absent.
	ErrNoParent = errors.New("chain: no tip block found")
)

// Transaction errors.
var (
	ErrNotEnoughMoney = errors.New("transaction: not enough spendable balance")
	ErrMissingPrevTx  = errors.New("transaction: referenced previous transaction not found")
	ErrInvalidTx      = errors.New("transaction: failed verification")
)

// Script errors.
var (
	// ErrWrongValue is the sole script-execution error kind: a type
	// mismatch, a pop from an empty stack, or residual values left on the
	// stack once the program completes.
	ErrWrongValue = errors.New("script: wrong value")
)

// Store errors.
var (
	ErrCorruptStore = errors.New("store: unexpected value at a known key")
	ErrTxNotFound   = errors.New("chain: transaction not found")
)
