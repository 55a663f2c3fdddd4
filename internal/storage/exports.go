package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/claude/phasewatch/internal/models"
)

const exportColumns = `id, user_id, device, payload, received_at,
	timing, duration, efficiency, compliance, light, overall, valid_nights`

// InsertExport stores an export and its nights in one transaction. Nights
// already archived for the same user, device and onset are skipped. Returns
// the number of new nights.
func (db *DB) InsertExport(ctx context.Context, export models.ExportRow, nights []models.NightRow) (int64, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning export tx: %w", err)
	}
	defer tx.Rollback(ctx)

	s := export.Score
	_, err = tx.Exec(ctx,
		`INSERT INTO exports (`+exportColumns+`)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		export.ID, export.UserID, export.Device, export.Payload, export.ReceivedAt,
		s.Timing, s.Duration, s.Efficiency, s.Compliance, s.Light, s.Overall, export.ValidNights)
	if err != nil {
		return 0, fmt.Errorf("inserting export: %w", err)
	}

	var inserted int64
	if len(nights) > 0 {
		batch := &pgx.Batch{}
		for _, n := range nights {
			batch.Queue(
				`INSERT INTO sleep_nights (user_id, export_id, device, sleep_onset, sleep_offset,
				 duration_min, efficiency, waso_min, awakenings, light_quality, quality, sleep_score)
				 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
				 ON CONFLICT (user_id, device, sleep_onset) DO NOTHING`,
				n.UserID, n.ExportID, n.Device, n.Onset, n.Offset,
				n.DurationMin, n.Efficiency, n.WASOMin, n.Awakenings, n.LightQuality, n.Quality, n.SleepScore)
		}
		br := tx.SendBatch(ctx, batch)
		for range nights {
			tag, err := br.Exec()
			if err != nil {
				br.Close()
				return 0, fmt.Errorf("inserting night: %w", err)
			}
			inserted += tag.RowsAffected()
		}
		if err := br.Close(); err != nil {
			return 0, fmt.Errorf("closing night batch: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing export: %w", err)
	}
	return inserted, nil
}

// GetExport retrieves one export by ID.
func (db *DB) GetExport(ctx context.Context, id uuid.UUID, userID int) (*models.ExportRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+exportColumns+` FROM exports WHERE id = $1 AND user_id = $2`,
		id, userID)
	return scanExport(row)
}

// LatestExport returns the most recently received export, optionally for one device.
func (db *DB) LatestExport(ctx context.Context, userID int, device string) (*models.ExportRow, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT `+exportColumns+` FROM exports
		 WHERE user_id = $1 AND ($2 = '' OR device = $2)
		 ORDER BY received_at DESC
		 LIMIT 1`,
		userID, device)
	return scanExport(row)
}

func scanExport(row pgx.Row) (*models.ExportRow, error) {
	var e models.ExportRow
	s := &e.Score
	err := row.Scan(&e.ID, &e.UserID, &e.Device, &e.Payload, &e.ReceivedAt,
		&s.Timing, &s.Duration, &s.Efficiency, &s.Compliance, &s.Light, &s.Overall, &e.ValidNights)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning export: %w", err)
	}
	return &e, nil
}
