package history

import (
	"errors"
	"fmt"
)

// ErrRowMissing is returned when a row has never been written.
var ErrRowMissing = errors.New("row not written")

// MemoryRows is an in-process RowStorage.
type MemoryRows struct {
	rows map[int][]byte
}

// NewMemoryRows returns an empty in-memory row store.
func NewMemoryRows() *MemoryRows {
	return &MemoryRows{rows: make(map[int][]byte)}
}

// ReadRow copies len(buf) bytes at offset from the row.
func (m *MemoryRows) ReadRow(row, offset int, buf []byte) error {
	data, ok := m.rows[row]
	if !ok {
		return ErrRowMissing
	}
	if offset < 0 || offset+len(buf) > len(data) {
		return fmt.Errorf("row %d: read [%d:%d] out of range", row, offset, offset+len(buf))
	}
	copy(buf, data[offset:])
	return nil
}

// WriteRow stores buf at offset, growing the row as needed.
func (m *MemoryRows) WriteRow(row, offset int, buf []byte) error {
	if offset < 0 {
		return fmt.Errorf("row %d: negative offset", row)
	}
	data := m.rows[row]
	if need := offset + len(buf); need > len(data) {
		grown := make([]byte, need)
		copy(grown, data)
		data = grown
	}
	copy(data[offset:], buf)
	m.rows[row] = data
	return nil
}
