// Package ingest turns uploaded history exports into scored archive rows.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/claude/phasewatch/internal/history"
	"github.com/claude/phasewatch/internal/models"
	"github.com/claude/phasewatch/internal/score"
)

var (
	// ErrInvalidExport is returned when the payload does not decode.
	ErrInvalidExport = errors.New("invalid export")

	// ErrDeviceDisabled is returned when uploads from the device are blocked.
	ErrDeviceDisabled = errors.New("device disabled")
)

// Store is the subset of the archive the provider writes to.
type Store interface {
	EnsureDevice(ctx context.Context, userID int, name string) (bool, error)
	InsertExport(ctx context.Context, export models.ExportRow, nights []models.NightRow) (int64, error)
}

// Upload is one export as received from a device.
type Upload struct {
	Device      string
	Payload     string
	ActiveStart uint16
	ActiveEnd   uint16
}

// Result holds the outcome of an ingest operation.
type Result struct {
	ExportID       uuid.UUID              `json:"export_id"`
	NightsReceived int                    `json:"nights_received"`
	NightsInvalid  int                    `json:"nights_invalid"`
	NightsInserted int64                  `json:"nights_inserted"`
	Score          models.ScoreComponents `json:"score"`
	Message        string                 `json:"message,omitempty"`
}

// Provider decodes, validates, scores and stores exports.
type Provider struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// NewProvider creates a new export ingest provider.
func NewProvider(store Store, log *slog.Logger) *Provider {
	return &Provider{store: store, log: log, now: time.Now}
}

// Decode parses a hex payload into a history with the nights in slot order,
// repaired against now, and returns the raw export bytes alongside. Active
// hours come from the uploader.
func Decode(u Upload, now time.Time) (*models.History, []byte, error) {
	raw, err := history.DecodeHex(u.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	nights, err := history.DecodeExport(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}

	h := &models.History{
		ActiveHoursStart: u.ActiveStart,
		ActiveHoursEnd:   u.ActiveEnd,
	}
	copy(h.Nights[:], nights)
	history.Repair(h, now)
	return h, raw, nil
}

// Ingest stores one export for a user and returns what was archived.
func (p *Provider) Ingest(ctx context.Context, userID int, u Upload) (*Result, error) {
	enabled, err := p.store.EnsureDevice(ctx, userID, u.Device)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, fmt.Errorf("%w: %s", ErrDeviceDisabled, u.Device)
	}

	now := p.now()
	h, raw, err := Decode(u, now)
	if err != nil {
		return nil, err
	}

	export := models.ExportRow{
		ID:          uuid.New(),
		UserID:      userID,
		Device:      u.Device,
		Payload:     history.EncodeHex(raw),
		ReceivedAt:  now.UTC(),
		Score:       score.Compute(h),
		ValidNights: h.ValidCount(),
	}

	result := &Result{ExportID: export.ID, Score: export.Score}
	var rows []models.NightRow
	for _, n := range h.Nights {
		if n.Onset == 0 && n.Offset == 0 && !n.Valid {
			continue
		}
		result.NightsReceived++
		if !n.Valid {
			result.NightsInvalid++
			continue
		}
		rows = append(rows, models.NightRowFrom(&export, n, history.Quality(n), score.SleepScore(n)))
	}

	inserted, err := p.store.InsertExport(ctx, export, rows)
	if err != nil {
		return result, fmt.Errorf("storing export: %w", err)
	}
	result.NightsInserted = inserted
	if result.NightsInvalid > 0 {
		result.Message = fmt.Sprintf("%d night(s) failed validation and were not archived", result.NightsInvalid)
	}

	p.log.Info("export ingested",
		"device", u.Device,
		"export_id", export.ID,
		"nights", len(rows),
		"inserted", inserted,
		"overall", export.Score.Overall,
	)
	return result, nil
}
