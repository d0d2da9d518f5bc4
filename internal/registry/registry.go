package registry

import "errors"

var ErrNotFound = errors.New("resource configuration not found")

// DefaultMimeType is reported when a registration does not name a content type.
const DefaultMimeType = "video/mp4"

// Config holds the decryption parameters for a single encrypted resource.
// TotalSize is the ciphertext length, which equals the plaintext length for CTR.
type Config struct {
	Key       []byte
	IV        []byte
	OriginURL string
	TotalSize int64
	MimeType  string
}

// Registry maps resource identifiers to their decryption parameters.
// Implementations keep key material in memory only.
type Registry interface {
	Set(id string, cfg Config)
	Remove(id string)
	Get(id string) (Config, error)
	Clear()
	Len() int
}

func (c Config) clone() Config {
	c.Key = append([]byte(nil), c.Key...)
	c.IV = append([]byte(nil), c.IV...)
	return c
}
