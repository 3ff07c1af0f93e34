package manifest

import "errors"

// ErrNotFound is returned when a filename has no manifest entry.
var ErrNotFound = errors.New("not found")

// ErrClosed is returned from mutations after a store has been closed.
var ErrClosed = errors.New("manifest store is closed")

// Entry is one persisted filename→label record.
type Entry struct {
	Filename string `json:"filename"`
	Label    Status `json:"label"`
}

// Store is the persisted filename→label map describing pipeline state.
// The file-backed implementation is the default; a SQLite implementation
// exists behind the same contract so the pipeline never depends on the
// storage format.
//
// All implementations serialize mutations: concurrent Upserts from parallel
// classification jobs are linearized, last-committed-wins per filename.
type Store interface {
	// ReadAll returns the full filename→label view.
	ReadAll() (map[string]Status, error)

	// List returns all entries in stable (filename-sorted) order.
	List() ([]Entry, error)

	// Upsert creates or replaces the entry for filename.
	Upsert(filename string, label Status) error

	// AppendIfMissing inserts filename with StatusPending only when absent
	// and returns the label now on record. Calling it twice for the same
	// filename never creates two entries and never downgrades a label.
	AppendIfMissing(filename string) (Status, error)

	// Remove deletes the entry for filename, reporting whether it existed.
	Remove(filename string) (bool, error)

	Close() error
}
