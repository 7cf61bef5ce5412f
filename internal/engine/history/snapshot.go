package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable encoded capture of the drawable surface.
type Snapshot struct {
	id   string
	data []byte
	at   time.Time
}

// NewSnapshot creates a snapshot holding a private copy of data.
func NewSnapshot(data []byte) Snapshot {
	buf := make([]byte, len(data))
	copy(buf, data)
	return Snapshot{
		id:   uuid.NewString(),
		data: buf,
		at:   time.Now(),
	}
}

// ID returns the snapshot identifier.
func (s Snapshot) ID() string {
	return s.id
}

// Bytes returns a copy of the encoded surface.
func (s Snapshot) Bytes() []byte {
	buf := make([]byte, len(s.data))
	copy(buf, s.data)
	return buf
}

// Size returns the encoded size in bytes.
func (s Snapshot) Size() int {
	return len(s.data)
}

// Time returns when the snapshot was captured.
func (s Snapshot) Time() time.Time {
	return s.at
}

// Surface is the drawable the history captures and restores.
type Surface interface {
	// Capture encodes the current surface content.
	Capture() (Snapshot, error)

	// Restore decodes a snapshot and paints it over the entire surface.
	Restore(ctx context.Context, snap Snapshot) error
}

// State is the observable state of the history.
type State struct {
	CanUndo bool
	CanRedo bool
	Len     int
	Cursor  int
}

// Listener is notified after every state-changing operation.
type Listener func(State)

// EntryInfo describes one log entry.
type EntryInfo struct {
	ID      string
	Label   string
	Time    time.Time
	Size    int
	Current bool
}
