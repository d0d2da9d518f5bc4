// Package ctr decrypts AES-CTR ciphertext starting at an arbitrary byte
// offset of the stream.
//
// The stream is assumed to have been encrypted sequentially with the IV as
// the counter of block 0 and the whole 16-byte block used as a big-endian
// counter. Decrypting from byte n therefore starts from IV + floor(n/16) and
// discards the first n mod 16 bytes of that block's keystream.
package ctr

import (
	"errors"
	"fmt"
)

// BlockSize is the AES block size and the width of the counter block.
const BlockSize = 16

var ErrInvalidIV = errors.New("iv must be exactly one cipher block")

// AdvanceCounter returns iv + blocks, treating both as unsigned big-endian
// integers. The carry runs across all 16 bytes and wraps modulo 2^128.
func AdvanceCounter(iv []byte, blocks uint64) ([]byte, error) {
	if len(iv) != BlockSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidIV, len(iv))
	}

	counter := make([]byte, BlockSize)
	copy(counter, iv)

	carry := blocks
	for i := BlockSize - 1; i >= 0 && carry > 0; i-- {
		sum := uint64(counter[i]) + (carry & 0xff)
		counter[i] = byte(sum)
		carry = (carry >> 8) + (sum >> 8)
	}
	return counter, nil
}

// Position splits a byte offset into the number of whole blocks before it and
// the offset inside its block.
func Position(offset int64) (blocks uint64, skip int) {
	return uint64(offset / BlockSize), int(offset % BlockSize)
}

// incrementCounter adds one to counter in place.
func incrementCounter(counter []byte) {
	for i := len(counter) - 1; i >= 0; i-- {
		counter[i]++
		if counter[i] != 0 {
			return
		}
	}
}
