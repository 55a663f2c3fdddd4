package storage

import (
	"context"
	"fmt"
	"time"
)

// Device is an entry in a user's device allowlist.
type Device struct {
	Name      string    `json:"name"`
	Enabled   bool      `json:"enabled"`
	FirstSeen time.Time `json:"first_seen"`
}

// EnsureDevice registers a device on first sight and reports whether it may
// upload. New devices start enabled.
func (db *DB) EnsureDevice(ctx context.Context, userID int, name string) (bool, error) {
	var enabled bool
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO devices (user_id, name) VALUES ($1, $2)
		 ON CONFLICT (user_id, name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING enabled`,
		userID, name).Scan(&enabled)
	if err != nil {
		return false, fmt.Errorf("registering device %s: %w", name, err)
	}
	return enabled, nil
}

// SetDeviceEnabled allows or blocks uploads from a device.
func (db *DB) SetDeviceEnabled(ctx context.Context, userID int, name string, enabled bool) error {
	tag, err := db.Pool.Exec(ctx,
		`UPDATE devices SET enabled = $3 WHERE user_id = $1 AND name = $2`,
		userID, name, enabled)
	if err != nil {
		return fmt.Errorf("updating device %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetDevices returns every device registered for a user.
func (db *DB) GetDevices(ctx context.Context, userID int) ([]Device, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT name, enabled, first_seen FROM devices WHERE user_id = $1 ORDER BY name`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var result []Device
	for rows.Next() {
		var d Device
		if err := rows.Scan(&d.Name, &d.Enabled, &d.FirstSeen); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		result = append(result, d)
	}
	return result, rows.Err()
}
