package ctr

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"testing"
)

// NIST SP 800-38A, F.5.1 CTR-AES128.Encrypt
const (
	nistKey     = "2b7e151628aed2a6abf7158809cf4f3c"
	nistCounter = "f0f1f2f3f4f5f6f7f8f9fafbfcfdfeff"
	nistPlain   = "6bc1bee22e409f96e93d7e117393172a" +
		"ae2d8a571e03ac9c9eb76fac45af8e51" +
		"30c81c46a35ce411e5fbc1191a0a52ef" +
		"f69f2445df4f9b17ad2b417be66c3710"
	nistCipher = "874d6191b620e3261bef6864990db6ce" +
		"9806f66b7970fdff8617187bb9fffdff" +
		"5ae4df3edbd5d35e5b4f09020db03eab" +
		"1e031dda2fbe03d1792170a0f3009cee"
)

// encryptStream is the reference: one sequential CTR pass from the iv.
func encryptStream(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCTR(block, iv).XORKeyStream(out, plaintext)
	return out
}

func allPrimitives() []Primitive {
	return []Primitive{Hardware{}, Software{}}
}

func TestPrimitives_NISTVector(t *testing.T) {
	key := mustHex(t, nistKey)
	iv := mustHex(t, nistCounter)
	plain := mustHex(t, nistPlain)
	ciphertext := mustHex(t, nistCipher)

	for _, p := range allPrimitives() {
		t.Run(p.Name(), func(t *testing.T) {
			// Whole vector from block 0
			got, err := p.XORKeyStream(context.Background(), key, iv, 0, ciphertext)
			if err != nil {
				t.Fatalf("XORKeyStream failed: %v", err)
			}
			if !bytes.Equal(got, plain) {
				t.Errorf("expected %x, got %x", plain, got)
			}

			// Blocks 1..3 alone, counter derived across the low-byte carry
			counter, _ := AdvanceCounter(iv, 1)
			got, err = p.XORKeyStream(context.Background(), key, counter, 0, ciphertext[16:])
			if err != nil {
				t.Fatalf("XORKeyStream failed: %v", err)
			}
			if !bytes.Equal(got, plain[16:]) {
				t.Errorf("expected %x, got %x", plain[16:], got)
			}
		})
	}
}

func TestDecrypter_CounterDeterminism(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)
	rand.Read(key)
	rand.Read(iv)

	plaintext := make([]byte, 64*BlockSize)
	rand.Read(plaintext)
	ciphertext := encryptStream(t, key, iv, plaintext)

	d := NewDefaultDecrypter(nil)

	first, err := d.Decrypt(context.Background(), key, iv, 0, ciphertext[:BlockSize])
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(first, plaintext[:BlockSize]) {
		t.Errorf("block 0 mismatch")
	}

	for _, n := range []int{1, 7, 16, 63} {
		start := n * BlockSize
		got, err := d.Decrypt(context.Background(), key, iv, int64(start), ciphertext[start:start+BlockSize])
		if err != nil {
			t.Fatalf("Decrypt block %d failed: %v", n, err)
		}
		if !bytes.Equal(got, plaintext[start:start+BlockSize]) {
			t.Errorf("block %d mismatch", n)
		}
	}
}

func TestDecrypter_UnalignedStart(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, 16)
	rand.Read(key)
	rand.Read(iv)

	plaintext := make([]byte, 1000)
	rand.Read(plaintext)
	ciphertext := encryptStream(t, key, iv, plaintext)

	for _, p := range allPrimitives() {
		d := NewDecrypter(nil, p)
		for _, start := range []int{1, 5, 15, 17, 333, 999} {
			got, err := d.Decrypt(context.Background(), key, iv, int64(start), ciphertext[start:])
			if err != nil {
				t.Fatalf("%s: Decrypt at %d failed: %v", p.Name(), start, err)
			}
			if !bytes.Equal(got, plaintext[start:]) {
				t.Errorf("%s: mismatch at start %d", p.Name(), start)
			}
		}
	}
}

func TestPrimitives_LargeInputAgree(t *testing.T) {
	key := make([]byte, 16)
	iv := bytes.Repeat([]byte{0xff}, 16)
	rand.Read(key)

	// Spans several context-check segments and wraps the counter
	src := make([]byte, 3*segmentSize+123)
	rand.Read(src)

	hw, err := Hardware{}.XORKeyStream(context.Background(), key, iv, 3, src)
	if err != nil {
		t.Fatal(err)
	}
	sw, err := Software{}.XORKeyStream(context.Background(), key, iv, 3, src)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(hw, sw) {
		t.Errorf("hardware and software keystreams differ")
	}
}

type fakePrimitive struct {
	name      string
	available bool
	err       error
	calls     int
}

func (f *fakePrimitive) Name() string    { return f.name }
func (f *fakePrimitive) Available() bool { return f.available }

func (f *fakePrimitive) XORKeyStream(ctx context.Context, key, counter []byte, skip int, src []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return Software{}.XORKeyStream(ctx, key, counter, skip, src)
}

func TestDecrypter_Fallback(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)
	plaintext := []byte("fallback keeps the stream playable")
	ciphertext := encryptStream(t, key, iv, plaintext)

	broken := &fakePrimitive{name: "broken", available: true, err: errors.New("boom")}
	missing := &fakePrimitive{name: "missing", available: false}
	working := &fakePrimitive{name: "working", available: true}

	d := NewDecrypter(nil, missing, broken, working)
	got, err := d.Decrypt(context.Background(), key, iv, 0, ciphertext)
	if err != nil {
		t.Fatalf("Decrypt failed: %v", err)
	}
	if !bytes.Equal(got, plaintext) {
		t.Errorf("expected %q, got %q", plaintext, got)
	}
	if missing.calls != 0 {
		t.Errorf("unavailable primitive was invoked")
	}
	if broken.calls != 1 || working.calls != 1 {
		t.Errorf("unexpected calls broken=%d working=%d", broken.calls, working.calls)
	}
}

func TestDecrypter_NoPrimitive(t *testing.T) {
	key := make([]byte, 16)
	iv := make([]byte, 16)

	// Nothing registered
	_, err := NewDecrypter(nil).Decrypt(context.Background(), key, iv, 0, []byte("x"))
	if !errors.Is(err, ErrNoPrimitive) {
		t.Errorf("expected ErrNoPrimitive, got %v", err)
	}

	// Everything unavailable
	d := NewDecrypter(nil, &fakePrimitive{name: "a"}, &fakePrimitive{name: "b"})
	_, err = d.Decrypt(context.Background(), key, iv, 0, []byte("x"))
	if !errors.Is(err, ErrNoPrimitive) || !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrNoPrimitive wrapping ErrUnavailable, got %v", err)
	}
}

func TestDecrypter_InvalidKey(t *testing.T) {
	iv := make([]byte, 16)
	working := &fakePrimitive{name: "working", available: true}
	d := NewDecrypter(nil, Hardware{}, Software{}, working)

	_, err := d.Decrypt(context.Background(), make([]byte, 5), iv, 0, []byte("x"))
	if !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected ErrInvalidKey, got %v", err)
	}
	if errors.Is(err, ErrNoPrimitive) {
		t.Errorf("a bad key is not a missing primitive: %v", err)
	}
	var sizeErr aes.KeySizeError
	if !errors.As(err, &sizeErr) || int(sizeErr) != 5 {
		t.Errorf("expected aes.KeySizeError(5), got %v", err)
	}
	if working.calls != 0 {
		t.Errorf("expected no primitive to run, got %d calls", working.calls)
	}
}

func TestDecrypter_Errors(t *testing.T) {
	d := NewDefaultDecrypter(nil)

	if _, err := d.Decrypt(context.Background(), make([]byte, 16), make([]byte, 8), 0, nil); !errors.Is(err, ErrInvalidIV) {
		t.Errorf("expected ErrInvalidIV, got %v", err)
	}
	if _, err := d.Decrypt(context.Background(), make([]byte, 16), make([]byte, 16), -1, nil); err == nil {
		t.Errorf("expected error for negative offset")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Decrypt(ctx, make([]byte, 16), make([]byte, 16), 0, []byte("x")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
