package upload

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

// StateDB tracks which exports have been successfully uploaded to avoid re-sending.
type StateDB struct {
	db *sql.DB
}

// OpenStateDB opens (or creates) the SQLite state database at dir/state.db.
func OpenStateDB(dir string) (*StateDB, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "state.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS uploaded_exports (
		device      TEXT NOT NULL,
		hash        TEXT NOT NULL,
		export_id   TEXT NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (device, hash)
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating state table: %w", err)
	}

	return &StateDB{db: db}, nil
}

// IsUploaded checks if an export with this hash was already accepted for the device.
func (s *StateDB) IsUploaded(device, hash string) (bool, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM uploaded_exports WHERE device = ? AND hash = ?`,
		device, hash,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking upload state: %w", err)
	}
	return count > 0, nil
}

// MarkUploaded records that an export was successfully uploaded.
func (s *StateDB) MarkUploaded(device, hash, exportID string) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO uploaded_exports (device, hash, export_id) VALUES (?, ?, ?)`,
		device, hash, exportID,
	)
	if err != nil {
		return fmt.Errorf("recording upload: %w", err)
	}
	return nil
}

// Close closes the state database.
func (s *StateDB) Close() error {
	return s.db.Close()
}

// HashPayload computes the SHA-256 of a hex payload, ignoring case and
// whitespace so re-encodings of the same export hash alike.
func HashPayload(payload string) string {
	clean := strings.ToUpper(strings.Join(strings.Fields(payload), ""))
	sum := sha256.Sum256([]byte(clean))
	return hex.EncodeToString(sum[:])
}
