// Package nvram persists device state in a local SQLite file: flash-style
// rows for the sleep history and a small battery-backed register file for the
// metrics engine.
package nvram

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/claude/phasewatch/internal/history"
)

// Registers is the number of backup registers, ids 1 through Registers-1.
const Registers = 8

// Store is a RowStorage and register file backed by SQLite.
type Store struct {
	db *sql.DB

	mu      sync.Mutex
	claimed uint8
}

// Open opens (or creates) the device state database at dir/device.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}
	return OpenPath(filepath.Join(dir, "device.db"))
}

// OpenPath opens the database at path. ":memory:" gives a throwaway store.
func OpenPath(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening device db: %w", err)
	}
	// one connection so :memory: stays a single database
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS rows (
			row  INTEGER PRIMARY KEY,
			data BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS registers (
			reg   INTEGER PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating state tables: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ReadRow copies len(buf) bytes at offset from the row.
func (s *Store) ReadRow(row, offset int, buf []byte) error {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM rows WHERE row = ?`, row).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return history.ErrRowMissing
	}
	if err != nil {
		return fmt.Errorf("reading row %d: %w", row, err)
	}
	if offset < 0 || offset+len(buf) > len(data) {
		return fmt.Errorf("row %d: read [%d:%d] out of range", row, offset, offset+len(buf))
	}
	copy(buf, data[offset:])
	return nil
}

// WriteRow stores buf at offset, growing the row as needed.
func (s *Store) WriteRow(row, offset int, buf []byte) error {
	if offset < 0 {
		return fmt.Errorf("row %d: negative offset", row)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning row write: %w", err)
	}
	defer tx.Rollback()

	var data []byte
	err = tx.QueryRow(`SELECT data FROM rows WHERE row = ?`, row).Scan(&data)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("reading row %d: %w", row, err)
	}
	if need := offset + len(buf); need > len(data) {
		grown := make([]byte, need)
		copy(grown, data)
		data = grown
	}
	copy(data[offset:], buf)

	if _, err := tx.Exec(`INSERT OR REPLACE INTO rows (row, data) VALUES (?, ?)`, row, data); err != nil {
		return fmt.Errorf("writing row %d: %w", row, err)
	}
	return tx.Commit()
}

// ClaimRegister hands out the next free register id, or 0 when all are taken.
// Ids are assigned in a fixed order so a restarted process claims the same ones.
func (s *Store) ClaimRegister() uint8 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed+1 >= Registers {
		return 0
	}
	s.claimed++
	return s.claimed
}

// StoreBackup writes a register.
func (s *Store) StoreBackup(reg uint8, value uint32) error {
	if reg == 0 || reg >= Registers {
		return fmt.Errorf("invalid register %d", reg)
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO registers (reg, value) VALUES (?, ?)`, reg, int64(value))
	if err != nil {
		return fmt.Errorf("storing register %d: %w", reg, err)
	}
	return nil
}

// Backup reads a register. Registers never written read as zero.
func (s *Store) Backup(reg uint8) (uint32, error) {
	if reg == 0 || reg >= Registers {
		return 0, fmt.Errorf("invalid register %d", reg)
	}
	var v int64
	err := s.db.QueryRow(`SELECT value FROM registers WHERE reg = ?`, reg).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading register %d: %w", reg, err)
	}
	return uint32(v), nil
}
