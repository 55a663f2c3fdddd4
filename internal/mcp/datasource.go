package mcp

import (
	"context"
	"time"

	"github.com/claude/phasewatch/internal/models"
	"github.com/claude/phasewatch/internal/storage"
)

// DataSource abstracts the archive for MCP tools. Both *storage.DB (local)
// and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	QueryNights(ctx context.Context, start, end time.Time, userID int, device string) ([]models.NightRow, error)
	LatestExport(ctx context.Context, userID int, device string) (*models.ExportRow, error)
	GetNightSummary(ctx context.Context, start, end time.Time, bucket string, userID int, loc *time.Location) ([]storage.NightSummaryPeriod, error)
}

// Compile-time check: *storage.DB satisfies DataSource.
var _ DataSource = (*storage.DB)(nil)
