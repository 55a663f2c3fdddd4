package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/phasewatch/internal/history"
	"github.com/claude/phasewatch/internal/models"
	"github.com/claude/phasewatch/internal/score"
	"github.com/claude/phasewatch/internal/storage"
)

// timeRange parses optional start/end strings. end defaults to now and start
// to end minus the given number of days.
func timeRange(startStr, endStr string, now time.Time, days int) (time.Time, time.Time, error) {
	var start, end time.Time
	var err error

	if endStr != "" {
		end, err = parseFlexTime(endStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		end = now
	}

	if startStr != "" {
		start, err = parseFlexTime(startStr)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
	} else {
		start = end.AddDate(0, 0, -days)
	}

	return start, end, nil
}

func parseFlexTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	t, err = time.Parse("2006-01-02", s)
	if err == nil {
		return t, nil
	}
	return time.Time{}, err
}

// --- Tool definitions ---

var toolGetNights = mcp.NewTool("get_nights",
	mcp.WithDescription("List archived nights: sleep onset and offset, minutes asleep, efficiency, minutes awake after onset, awakenings, light quality, a companion quality score and the per-night sleep score."),
	mcp.WithString("start", mcp.Description("Start date (ISO 8601 or YYYY-MM-DD). Defaults to 7 days ago.")),
	mcp.WithString("end", mcp.Description("End date (ISO 8601 or YYYY-MM-DD). Defaults to now.")),
	mcp.WithString("device", mcp.Description("Only nights uploaded by this device")),
)

var toolGetCircadianScore = mcp.NewTool("get_circadian_score",
	mcp.WithDescription("Circadian score of the most recent export: timing consistency, duration, efficiency, active-hours compliance and light exposure components plus the weighted overall score (0-100), with the nights it was computed from."),
	mcp.WithString("device", mcp.Description("Use the latest export of this device. Defaults to any device.")),
)

var toolGetSleepSummary = mcp.NewTool("get_sleep_summary",
	mcp.WithDescription("Aggregated night stats per period: duration, efficiency, awakenings, sleep score, and circular-mean bedtime/waketime with their consistency."),
	mcp.WithString("start", mcp.Description("Start date. Defaults to 90 days ago.")),
	mcp.WithString("end", mcp.Description("End date. Defaults to now.")),
	mcp.WithString("bucket", mcp.Description("Aggregation period. Defaults to '1 week'."), mcp.Enum("1 day", "1 week", "1 month")),
)

// exportNight is one decoded slot of an export.
type exportNight struct {
	Onset       time.Time `json:"onset"`
	Offset      time.Time `json:"offset"`
	DurationMin int       `json:"duration_min"`
	Efficiency  int       `json:"efficiency"`
	Quality     int       `json:"quality"`
	SleepScore  int       `json:"sleep_score"`
	Valid       bool      `json:"valid"`
}

// circadianScore is the get_circadian_score response.
type circadianScore struct {
	Device      string                 `json:"device"`
	ReceivedAt  time.Time              `json:"received_at"`
	Score       models.ScoreComponents `json:"score"`
	ValidNights int                    `json:"valid_nights"`
	Nights      []exportNight          `json:"nights"`
}

// --- Tool handlers ---

func (h *handlers) getNights(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), h.now(), 7)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	uid := UserIDFromContext(ctx)
	nights, err := h.ds.QueryNights(ctx, start, end, uid, req.GetString("device", ""))
	if err != nil {
		h.log.Error("mcp get_nights", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(nights)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getCircadianScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	uid := UserIDFromContext(ctx)
	export, err := h.ds.LatestExport(ctx, uid, req.GetString("device", ""))
	if errors.Is(err, storage.ErrNotFound) {
		return mcp.NewToolResultError("no exports have been uploaded yet"), nil
	}
	if err != nil {
		h.log.Error("mcp get_circadian_score", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	out := circadianScore{
		Device:      export.Device,
		ReceivedAt:  export.ReceivedAt,
		Score:       export.Score,
		ValidNights: export.ValidNights,
	}
	nights, err := decodeNights(export.Payload)
	if err != nil {
		h.log.Warn("mcp get_circadian_score: stored payload", "export_id", export.ID, "error", err)
	}
	out.Nights = nights

	result, err := mcp.NewToolResultJSON(out)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// decodeNights expands a stored hex payload into its non-empty slots.
func decodeNights(payload string) ([]exportNight, error) {
	raw, err := history.DecodeHex(payload)
	if err != nil {
		return nil, err
	}
	nights, err := history.DecodeExport(raw)
	if err != nil {
		return nil, err
	}
	var out []exportNight
	for _, n := range nights {
		if n.Onset == 0 && n.Offset == 0 {
			continue
		}
		out = append(out, exportNight{
			Onset:       time.Unix(int64(n.Onset), 0).UTC(),
			Offset:      time.Unix(int64(n.Offset), 0).UTC(),
			DurationMin: int(n.DurationMin),
			Efficiency:  int(n.Efficiency),
			Quality:     int(history.Quality(n)),
			SleepScore:  int(score.SleepScore(n)),
			Valid:       n.Valid,
		})
	}
	return out, nil
}

func (h *handlers) getSleepSummary(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	start, end, err := timeRange(req.GetString("start", ""), req.GetString("end", ""), h.now(), 90)
	if err != nil {
		return mcp.NewToolResultError("invalid date format: " + err.Error()), nil
	}

	bucket := req.GetString("bucket", "1 week")
	uid := UserIDFromContext(ctx)

	summary, err := h.ds.GetNightSummary(ctx, start, end, bucket, uid, h.loc)
	if err != nil {
		h.log.Error("mcp get_sleep_summary", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(summary)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}
