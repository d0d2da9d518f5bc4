package ctr

import (
	"context"
	"crypto/aes"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	ErrNoPrimitive = errors.New("no cryptographic primitive available")
	ErrInvalidKey  = errors.New("invalid decryption key")
)

// Decrypter tries its primitives in order and returns the first success.
type Decrypter struct {
	primitives []Primitive
	logger     *zap.Logger
}

func NewDecrypter(logger *zap.Logger, primitives ...Primitive) *Decrypter {
	if logger == nil {
		logger = zap.L()
	}
	return &Decrypter{
		primitives: primitives,
		logger:     logger.Named("ctr"),
	}
}

// NewDefaultDecrypter prefers the hardware path and falls back to software.
func NewDefaultDecrypter(logger *zap.Logger) *Decrypter {
	return NewDecrypter(logger, Hardware{}, Software{})
}

// Decrypt decrypts ciphertext that begins at byte start of the stream
// encrypted under key and iv. The result has the same length as ciphertext.
func (d *Decrypter) Decrypt(ctx context.Context, key, iv []byte, start int64, ciphertext []byte) ([]byte, error) {
	if start < 0 {
		return nil, fmt.Errorf("negative stream offset %d", start)
	}
	blocks, skip := Position(start)
	counter, err := AdvanceCounter(iv, blocks)
	if err != nil {
		return nil, err
	}
	// A bad key fails every primitive the same way.
	if _, err := aes.NewCipher(key); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	var errs []error
	for _, p := range d.primitives {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !p.Available() {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), ErrUnavailable))
			continue
		}

		plaintext, err := p.XORKeyStream(ctx, key, counter, skip, ciphertext)
		if err == nil {
			d.logger.Debug("decrypted chunk",
				zap.String("primitive", p.Name()),
				zap.Int64("start", start),
				zap.Int("length", len(plaintext)))
			return plaintext, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		d.logger.Warn("primitive failed, trying next", zap.String("primitive", p.Name()), zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}

	if len(errs) == 0 {
		return nil, ErrNoPrimitive
	}
	return nil, fmt.Errorf("%w: %w", ErrNoPrimitive, errors.Join(errs...))
}
