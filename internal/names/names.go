package names

import "errors"

var (
	ErrNotFound           = errors.New("name not found")
	ErrPreconditionFailed = errors.New("precondition failed")
)

// Record is what a published name points at: the content address of the
// encrypted episode and the facts a player needs before the first byte.
type Record struct {
	Address  string `json:"address"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
}

// Names maps published names to records. Delete with a non-empty
// expectedAddress only succeeds while the name still points there.
type Names interface {
	Get(name string) (Record, error)
	Put(name string, record Record) error
	Delete(name string, expectedAddress string) error
}
