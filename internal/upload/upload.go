// Package upload sends device history exports to the companion server.
package upload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/claude/phasewatch/internal/ingest"
)

// Outcome reports what an upload run did.
type Outcome struct {
	Hash    string         `json:"hash"`
	Skipped bool           `json:"skipped"`
	DryRun  bool           `json:"dry_run"`
	Result  *ingest.Result `json:"result,omitempty"`
}

// Uploader sends exports once, remembering what the server has accepted.
type Uploader struct {
	client *Client
	state  *StateDB
	dryRun bool
	log    *slog.Logger
}

// New creates a new Uploader.
func New(client *Client, state *StateDB, dryRun bool, log *slog.Logger) *Uploader {
	return &Uploader{
		client: client,
		state:  state,
		dryRun: dryRun,
		log:    log,
	}
}

// Run uploads the export unless an identical one was already accepted for
// the same device.
func (u *Uploader) Run(ctx context.Context, export Export) (*Outcome, error) {
	out := &Outcome{Hash: HashPayload(export.Payload)}

	done, err := u.state.IsUploaded(export.Device, out.Hash)
	if err != nil {
		return out, err
	}
	if done {
		u.log.Info("export already uploaded", "device", export.Device, "hash", out.Hash[:12])
		out.Skipped = true
		return out, nil
	}

	if u.dryRun {
		u.log.Info("dry run: would upload export", "device", export.Device, "hash", out.Hash[:12])
		out.DryRun = true
		return out, nil
	}

	result, err := u.client.SendExport(ctx, export)
	if err != nil {
		return out, fmt.Errorf("uploading export: %w", err)
	}
	out.Result = result

	if err := u.state.MarkUploaded(export.Device, out.Hash, result.ExportID.String()); err != nil {
		return out, err
	}
	u.log.Info("export uploaded",
		"device", export.Device,
		"export_id", result.ExportID,
		"nights_inserted", result.NightsInserted,
		"overall", result.Score.Overall,
	)
	if result.Message != "" {
		u.log.Warn("server note", "message", result.Message)
	}
	return out, nil
}
