package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UploadLog records the outcome of one export upload.
type UploadLog struct {
	ID             int64      `json:"id"`
	UserID         int        `json:"user_id"`
	CreatedAt      time.Time  `json:"created_at"`
	Device         string     `json:"device"`
	Status         string     `json:"status"`
	ExportID       *uuid.UUID `json:"export_id"`
	NightsReceived int        `json:"nights_received"`
	NightsInserted int64      `json:"nights_inserted"`
	DurationMs     *int       `json:"duration_ms"`
	ErrorMessage   *string    `json:"error_message"`
}

// InsertUploadLog creates a new upload log entry and returns its ID.
func (db *DB) InsertUploadLog(ctx context.Context, log UploadLog) (int64, error) {
	var id int64
	err := db.Pool.QueryRow(ctx,
		`INSERT INTO upload_logs (user_id, device, status, export_id, nights_received,
		 nights_inserted, duration_ms, error_message)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING id`,
		log.UserID, log.Device, log.Status, log.ExportID, log.NightsReceived,
		log.NightsInserted, log.DurationMs, log.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting upload log: %w", err)
	}
	return id, nil
}

// QueryUploadLogs returns the most recent upload logs for a user.
func (db *DB) QueryUploadLogs(ctx context.Context, userID, limit int) ([]UploadLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, created_at, device, status, export_id, nights_received,
		 nights_inserted, duration_ms, error_message
		 FROM upload_logs
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying upload logs: %w", err)
	}
	defer rows.Close()

	var result []UploadLog
	for rows.Next() {
		var l UploadLog
		if err := rows.Scan(&l.ID, &l.UserID, &l.CreatedAt, &l.Device, &l.Status, &l.ExportID,
			&l.NightsReceived, &l.NightsInserted, &l.DurationMs, &l.ErrorMessage); err != nil {
			return nil, fmt.Errorf("scanning upload log: %w", err)
		}
		result = append(result, l)
	}
	return result, rows.Err()
}
