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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProofOfWork_RunFindsValidNonce(t *testing.T) {
	pow := NewProofOfWork(1_600_000_000, 8, ZeroHash, ZeroHash)
	nonce, hash, err := pow.Run()
	assert.NoError(t, err)
	assert.True(t, pow.Validate(nonce, hash))
}

func TestProofOfWork_ValidateRejectsWrongNonce(t *testing.T) {
	pow := NewProofOfWork(1_600_000_000, 8, ZeroHash, ZeroHash)
	nonce, hash, err := pow.Run()
	assert.NoError(t, err)
	assert.False(t, pow.Validate(nonce+1, hash))
}

func TestProofOfWork_ValidateRejectsMismatchedHash(t *testing.T) {
	pow := NewProofOfWork(1_600_000_000, 8, ZeroHash, ZeroHash)
	nonce, _, err := pow.Run()
	assert.NoError(t, err)
	assert.False(t, pow.Validate(nonce, ZeroHash))
}

func TestProofOfWork_RunExhaustsMaxNonce(t *testing.T) {
	// A target of 1<<(256-256) = 1 is unreachable by a SHA256 hash in
	// practice within MaxNonce iterations.
	pow := NewProofOfWork(1_600_000_000, 256, ZeroHash, ZeroHash)
	_, _, err := pow.Run()
	assert.True(t, errors.Is(err, ErrIteration))
}
