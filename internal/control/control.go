package control

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

type MessageType string

const (
	SetEncryption    MessageType = "SET_ENCRYPTION"
	RemoveEncryption MessageType = "REMOVE_ENCRYPTION"
)

var (
	ErrUnknownType       = errors.New("unknown message type")
	ErrMissingResourceID = errors.New("missing resourceId")
)

// Bytes is raw key material. It decodes from a JSON array of numbers, as a
// page sends a Uint8Array, or from a base64 string. It encodes as an array.
type Bytes []byte

func (b Bytes) MarshalJSON() ([]byte, error) {
	ints := make([]int, len(b))
	for i, v := range b {
		ints[i] = int(v)
	}
	return json.Marshal(ints)
}

func (b *Bytes) UnmarshalJSON(data []byte) error {
	var encoded string
	if err := json.Unmarshal(data, &encoded); err == nil {
		raw, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return fmt.Errorf("invalid base64 bytes: %w", err)
		}
		*b = raw
		return nil
	}

	var ints []int
	if err := json.Unmarshal(data, &ints); err != nil {
		return fmt.Errorf("bytes must be an array of numbers or a base64 string: %w", err)
	}
	raw := make([]byte, len(ints))
	for i, v := range ints {
		if v < 0 || v > 255 {
			return fmt.Errorf("byte value %d at index %d out of range", v, i)
		}
		raw[i] = byte(v)
	}
	*b = raw
	return nil
}

// Message is a control message from the page that owns playback.
// VideoID is the field name older pages use for ResourceID.
type Message struct {
	Type        MessageType `json:"type"`
	ResourceID  string      `json:"resourceId,omitempty"`
	VideoID     string      `json:"videoId,omitempty"`
	Key         Bytes       `json:"key,omitempty"`
	IV          Bytes       `json:"iv,omitempty"`
	ResourceURL string      `json:"resourceUrl,omitempty"`
	TotalSize   int64       `json:"totalSize,omitempty"`
	MimeType    string      `json:"mimeType,omitempty"`
}

// ID returns the resource identifier, accepting either field name.
func (m Message) ID() string {
	if m.ResourceID != "" {
		return m.ResourceID
	}
	return m.VideoID
}

// Ack is the reply to every control message.
type Ack struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Envelope carries a message together with the channel its Ack goes to.
type Envelope struct {
	Message Message
	Reply   chan<- Ack
}
