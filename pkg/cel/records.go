package cel

import (
	"fmt"

	"github.com/eunmann/affxfusion/pkg/format"
)

// Records is the storage backend behind a File.
type Records interface {
	NumEntries() int
	Entry(i int) (Entry, error)
	Outliers() CellSet
	Masked() CellSet
	Close() error
}

// OwnedRecords holds a fully decoded intensity table.
type OwnedRecords struct {
	entries  []Entry
	outliers CellSet
	masked   CellSet
	closed   bool
}

// newOwnedRecords reserves room for capacity entries. Decoders append.
func newOwnedRecords(capacity int) *OwnedRecords {
	return &OwnedRecords{
		entries:  make([]Entry, 0, capacity),
		outliers: CellSet{},
		masked:   CellSet{},
	}
}

// NumEntries implements Records.
func (o *OwnedRecords) NumEntries() int { return len(o.entries) }

// Entry implements Records.
func (o *OwnedRecords) Entry(i int) (Entry, error) {
	if o.closed {
		return Entry{}, format.ErrClosed
	}
	if i < 0 || i >= len(o.entries) {
		return Entry{}, fmt.Errorf("cell %d of %d: %w", i, len(o.entries), format.ErrOutOfRange)
	}
	return o.entries[i], nil
}

// Outliers implements Records.
func (o *OwnedRecords) Outliers() CellSet { return o.outliers }

// Masked implements Records.
func (o *OwnedRecords) Masked() CellSet { return o.masked }

// Entries returns the decoded table in cell order.
func (o *OwnedRecords) Entries() []Entry { return o.entries }

// Close implements Records.
func (o *OwnedRecords) Close() error {
	o.closed = true
	o.entries = nil
	o.outliers = nil
	o.masked = nil
	return nil
}
