package ctr

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/sys/cpu"
)

var ErrUnavailable = errors.New("primitive unavailable")

// segmentSize bounds how much keystream is produced between context checks.
const segmentSize = 256 * 1024

// Primitive is one implementation of AES-CTR. XORKeyStream starts the
// keystream at counter, drops the first skip bytes of it and XORs the rest
// with src.
type Primitive interface {
	Name() string
	Available() bool
	XORKeyStream(ctx context.Context, key, counter []byte, skip int, src []byte) ([]byte, error)
}

func checkArgs(counter []byte, skip int) error {
	if len(counter) != BlockSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidIV, len(counter))
	}
	if skip < 0 || skip >= BlockSize {
		return fmt.Errorf("skip %d outside block", skip)
	}
	return nil
}

// Hardware uses the standard library's CTR stream, which runs on the CPU's
// AES instructions. It only reports itself available when those exist.
type Hardware struct{}

func (Hardware) Name() string { return "hardware" }

func (Hardware) Available() bool {
	return cpu.X86.HasAES || cpu.ARM64.HasAES
}

func (Hardware) XORKeyStream(ctx context.Context, key, counter []byte, skip int, src []byte) ([]byte, error) {
	if err := checkArgs(counter, skip); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	stream := cipher.NewCTR(block, counter)
	if skip > 0 {
		discard := make([]byte, skip)
		stream.XORKeyStream(discard, discard)
	}

	dst := make([]byte, len(src))
	for off := 0; off < len(src); off += segmentSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(off+segmentSize, len(src))
		stream.XORKeyStream(dst[off:end], src[off:end])
	}
	return dst, nil
}

// Software builds the keystream one block at a time from the raw block
// cipher, with its own counter arithmetic.
type Software struct{}

func (Software) Name() string { return "software" }

func (Software) Available() bool { return true }

func (Software) XORKeyStream(ctx context.Context, key, counter []byte, skip int, src []byte) ([]byte, error) {
	if err := checkArgs(counter, skip); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	ctr := append([]byte(nil), counter...)
	keystream := make([]byte, BlockSize)
	dst := make([]byte, len(src))

	for i, next := 0, 0; i < len(src); {
		if i >= next {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			next = i + segmentSize
		}
		block.Encrypt(keystream, ctr)
		n := subtle.XORBytes(dst[i:], src[i:], keystream[skip:])
		i += n
		skip = 0
		incrementCounter(ctr)
	}
	return dst, nil
}
