// Package history keeps the rolling 7-night sleep history in a storage row,
// repairs it on load and encodes it for export.
package history

import (
	"fmt"
	"time"

	"github.com/claude/phasewatch/internal/models"
)

const (
	// Row is the storage row holding the history blob.
	Row = 30

	maxNightMin       = 1440
	durationTolerance = 5
	futureLimit       = 365 * 24 * time.Hour
)

// RowStorage is a byte-addressable store keyed by row number.
type RowStorage interface {
	ReadRow(row int, offset int, buf []byte) error
	WriteRow(row int, offset int, buf []byte) error
}

// Store owns the in-memory history and its persisted row.
type Store struct {
	History models.History

	rows RowStorage
	now  func() time.Time
}

// NewStore returns a store backed by rows. A nil clock selects time.Now.
func NewStore(rows RowStorage, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{rows: rows, now: now}
}

// AddNight writes the night at the current slot, advances the write index
// and persists the history. The night goes through the same checks as a
// load, so a night that would not survive a reload is stored as invalid.
// The night as stored is returned.
func (s *Store) AddNight(n models.SleepNight) (models.SleepNight, error) {
	repairNight(&n, futureLimitFrom(s.now()))
	s.History.Nights[s.History.WriteIndex] = n
	s.History.WriteIndex = (s.History.WriteIndex + 1) % models.HistoryNights
	return n, s.Save()
}

// SetActiveHours records the user's waking window and persists it.
func (s *Store) SetActiveHours(start, end uint16) error {
	s.History.ActiveHoursStart = start
	s.History.ActiveHoursEnd = end
	return s.Save()
}

// Save writes the history row.
func (s *Store) Save() error {
	if err := s.rows.WriteRow(Row, 0, marshalRow(&s.History)); err != nil {
		return fmt.Errorf("writing history row: %w", err)
	}
	return nil
}

// Load reads the history row. An unreadable row or an out-of-range write
// index resets the history to empty and returns false. Otherwise every valid
// night is re-checked and invalidated in place if it fails.
func (s *Store) Load() bool {
	buf := make([]byte, RowBytes)
	if err := s.rows.ReadRow(Row, 0, buf); err != nil {
		s.History = models.History{}
		return false
	}

	var h models.History
	unmarshalRow(buf, &h)
	if h.WriteIndex >= models.HistoryNights {
		s.History = models.History{}
		return false
	}

	Repair(&h, s.now())
	s.History = h
	return true
}

// Repair invalidates nights that fail validation and clamps percentages on
// the ones that pass. Nights already invalid are left alone.
func Repair(h *models.History, now time.Time) {
	limit := futureLimitFrom(now)
	for i := range h.Nights {
		repairNight(&h.Nights[i], limit)
	}
}

func futureLimitFrom(now time.Time) uint64 {
	return uint64(now.Unix()) + uint64(futureLimit/time.Second)
}

func repairNight(n *models.SleepNight, limit uint64) {
	if !n.Valid {
		return
	}
	if !checkNight(*n, limit) {
		n.Valid = false
		return
	}
	if n.Efficiency > 100 {
		n.Efficiency = 100
	}
	if n.LightQuality > 100 {
		n.LightQuality = 100
	}
}

func checkNight(n models.SleepNight, limit uint64) bool {
	if n.Onset == 0 || n.Offset == 0 {
		return false
	}
	if uint64(n.Onset) > limit || uint64(n.Offset) > limit {
		return false
	}
	if n.Offset <= n.Onset {
		return false
	}
	if n.DurationMin > maxNightMin {
		return false
	}
	diff := int64(n.TimeInBedMin()) - int64(n.DurationMin)
	if diff < 0 {
		diff = -diff
	}
	return diff <= durationTolerance
}
