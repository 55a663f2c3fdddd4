package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/claude/phasewatch/internal/models"
)

// QueryNights retrieves archived nights whose onset falls in [start, end),
// newest first. An empty device matches every device.
func (db *DB) QueryNights(ctx context.Context, start, end time.Time, userID int, device string) ([]models.NightRow, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT export_id, user_id, device, sleep_onset, sleep_offset, duration_min, efficiency,
		 waso_min, awakenings, light_quality, quality, sleep_score
		 FROM sleep_nights
		 WHERE sleep_onset >= $1 AND sleep_onset < $2 AND user_id = $3
		   AND ($4 = '' OR device = $4)
		 ORDER BY sleep_onset DESC`,
		start, end, userID, device)
	if err != nil {
		return nil, fmt.Errorf("querying nights: %w", err)
	}
	defer rows.Close()

	var result []models.NightRow
	for rows.Next() {
		var n models.NightRow
		if err := rows.Scan(&n.ExportID, &n.UserID, &n.Device, &n.Onset, &n.Offset,
			&n.DurationMin, &n.Efficiency, &n.WASOMin, &n.Awakenings, &n.LightQuality,
			&n.Quality, &n.SleepScore); err != nil {
			return nil, fmt.Errorf("scanning night: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
