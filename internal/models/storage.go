package models

import (
	"time"

	"github.com/google/uuid"
)

// ExportRow is a row ready for insertion into the exports table.
// One row per uploaded 112-byte history export.
type ExportRow struct {
	ID          uuid.UUID       `json:"id"`
	UserID      int             `json:"user_id"`
	Device      string          `json:"device"`
	Payload     string          `json:"payload"`
	ReceivedAt  time.Time       `json:"received_at"`
	Score       ScoreComponents `json:"score"`
	ValidNights int             `json:"valid_nights"`
}

// NightRow is a row ready for insertion into the sleep_nights table.
// Overlapping exports repeat nights; rows are keyed by (user, device, onset).
type NightRow struct {
	ExportID     uuid.UUID `json:"export_id"`
	UserID       int       `json:"user_id"`
	Device       string    `json:"device"`
	Onset        time.Time `json:"onset"`
	Offset       time.Time `json:"offset"`
	DurationMin  int       `json:"duration_min"`
	Efficiency   int       `json:"efficiency"`
	WASOMin      int       `json:"waso_min"`
	Awakenings   int       `json:"awakenings"`
	LightQuality int       `json:"light_quality"`
	Quality      int       `json:"quality"`
	SleepScore   int       `json:"sleep_score"`
}

// NightRowFrom converts a decoded night into an archive row.
func NightRowFrom(export *ExportRow, n SleepNight, quality, sleepScore uint8) NightRow {
	return NightRow{
		ExportID:     export.ID,
		UserID:       export.UserID,
		Device:       export.Device,
		Onset:        time.Unix(int64(n.Onset), 0).UTC(),
		Offset:       time.Unix(int64(n.Offset), 0).UTC(),
		DurationMin:  int(n.DurationMin),
		Efficiency:   int(n.Efficiency),
		WASOMin:      int(n.WASOMin),
		Awakenings:   int(n.Awakenings),
		LightQuality: int(n.LightQuality),
		Quality:      int(quality),
		SleepScore:   int(sleepScore),
	}
}
