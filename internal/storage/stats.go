package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's archive.
type DataStats struct {
	TotalExports  int64        `json:"total_exports"`
	TotalNights   int64        `json:"total_nights"`
	EarliestNight *time.Time   `json:"earliest_night"`
	LatestNight   *time.Time   `json:"latest_night"`
	Devices       []DeviceStat `json:"devices"`
}

// DeviceStat summarises one device's archived nights.
type DeviceStat struct {
	Device        string    `json:"device"`
	Nights        int64     `json:"nights"`
	AvgSleepScore float64   `json:"avg_sleep_score"`
	LastExport    time.Time `json:"last_export"`
}

// GetDataStats returns aggregate statistics for a user's archive.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exports WHERE user_id = $1`, userID,
	).Scan(&stats.TotalExports)
	if err != nil {
		return nil, fmt.Errorf("counting exports: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(sleep_onset), MAX(sleep_onset) FROM sleep_nights WHERE user_id = $1`, userID,
	).Scan(&stats.TotalNights, &stats.EarliestNight, &stats.LatestNight)
	if err != nil {
		return nil, fmt.Errorf("counting nights: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT e.device,
		        (SELECT COUNT(*) FROM sleep_nights n WHERE n.user_id = $1 AND n.device = e.device),
		        COALESCE((SELECT AVG(sleep_score) FROM sleep_nights n WHERE n.user_id = $1 AND n.device = e.device), 0)::float8,
		        MAX(e.received_at)
		 FROM exports e
		 WHERE e.user_id = $1
		 GROUP BY e.device
		 ORDER BY e.device`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying device stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d DeviceStat
		if err := rows.Scan(&d.Device, &d.Nights, &d.AvgSleepScore, &d.LastExport); err != nil {
			return nil, fmt.Errorf("scanning device stat: %w", err)
		}
		stats.Devices = append(stats.Devices, d)
	}
	return stats, rows.Err()
}
