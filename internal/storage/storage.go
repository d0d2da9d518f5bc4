package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Storage holds immutable blobs keyed by the hex SHA-256 of their bytes.
// Encrypted episodes live here; a ranged read of a blob is the ciphertext
// source for the decryption proxy.
type Storage interface {
	Has(address string) bool
	Open(address string) (io.ReadSeekCloser, bool)
	Store(r io.Reader) (string, error)
	StoreAt(address string, r io.Reader) (bool, error)
	Size(address string) (int64, bool)
}

// AddressOf returns the content address of data.
func AddressOf(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
