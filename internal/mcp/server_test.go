package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/phasewatch/internal/history"
	"github.com/claude/phasewatch/internal/models"
	"github.com/claude/phasewatch/internal/storage"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	export *models.ExportRow
	err    error

	gotUser   int
	gotDevice string
	gotStart  time.Time
	gotEnd    time.Time
	gotBucket string
	gotLoc    *time.Location
}

func (f *fakeSource) QueryNights(ctx context.Context, start, end time.Time, userID int, device string) ([]models.NightRow, error) {
	f.gotUser, f.gotDevice, f.gotStart, f.gotEnd = userID, device, start, end
	if f.err != nil {
		return nil, f.err
	}
	return []models.NightRow{{Device: device, DurationMin: 420, SleepScore: 90}}, nil
}

func (f *fakeSource) LatestExport(ctx context.Context, userID int, device string) (*models.ExportRow, error) {
	f.gotUser, f.gotDevice = userID, device
	if f.export == nil {
		return nil, storage.ErrNotFound
	}
	return f.export, nil
}

func (f *fakeSource) GetNightSummary(ctx context.Context, start, end time.Time, bucket string, userID int, loc *time.Location) ([]storage.NightSummaryPeriod, error) {
	f.gotStart, f.gotEnd, f.gotBucket, f.gotUser, f.gotLoc = start, end, bucket, userID, loc
	return []storage.NightSummaryPeriod{{Period: "2026-03-02", Nights: 6}}, nil
}

func newHandlers(ds DataSource) *handlers {
	return &handlers{ds: ds, loc: time.UTC, log: slog.New(slog.DiscardHandler), now: func() time.Time { return testNow }}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("content type %T, want text", res.Content[0])
	return ""
}

// TestUserIDFromContextDefault verifies the default user ID (1) when no value
// is set in the context.
func TestUserIDFromContextDefault(t *testing.T) {
	ctx := context.Background()
	if id := UserIDFromContext(ctx); id != 1 {
		t.Errorf("UserIDFromContext(empty) = %d, want 1", id)
	}
}

// TestUserIDFromContextSet verifies the user ID is extracted from context
// after being set by WithUserID.
func TestUserIDFromContextSet(t *testing.T) {
	ctx := WithUserID(context.Background(), 42)
	if id := UserIDFromContext(ctx); id != 42 {
		t.Errorf("UserIDFromContext = %d, want 42", id)
	}
}

// TestTimeRange verifies range defaults and parsing.
func TestTimeRange(t *testing.T) {
	start, end, err := timeRange("", "", testNow, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !end.Equal(testNow) || end.Sub(start) != 7*24*time.Hour {
		t.Errorf("default range = %v..%v, want 7 days ending now", start, end)
	}

	start, end, err = timeRange("2024-01-01", "2024-01-31", testNow, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Year() != 2024 || start.Month() != 1 || start.Day() != 1 {
		t.Errorf("start = %v, want 2024-01-01", start)
	}
	if end.Day() != 31 {
		t.Errorf("end = %v, want 2024-01-31", end)
	}

	start, _, err = timeRange("2024-06-15T10:30:00Z", "", testNow, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Hour() != 10 || start.Minute() != 30 {
		t.Errorf("start = %v, want 10:30", start)
	}

	if _, _, err = timeRange("not-a-date", "", testNow, 7); err == nil {
		t.Error("expected error for invalid date")
	}
}

// TestGetNights verifies the tool forwards the caller, device and range.
func TestGetNights(t *testing.T) {
	ds := &fakeSource{}
	h := newHandlers(ds)
	ctx := WithUserID(context.Background(), 7)

	res, err := h.getNights(ctx, callRequest(map[string]any{"device": "wrist", "start": "2026-03-01"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if ds.gotUser != 7 || ds.gotDevice != "wrist" {
		t.Errorf("user/device = %d/%q, want 7/wrist", ds.gotUser, ds.gotDevice)
	}
	if ds.gotStart.Day() != 1 || !ds.gotEnd.Equal(testNow) {
		t.Errorf("range = %v..%v", ds.gotStart, ds.gotEnd)
	}

	var nights []models.NightRow
	if err := json.Unmarshal([]byte(resultText(t, res)), &nights); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(nights) != 1 || nights[0].SleepScore != 90 {
		t.Errorf("nights = %+v", nights)
	}
}

// TestGetNightsErrors verifies bad dates and query failures become tool errors.
func TestGetNightsErrors(t *testing.T) {
	h := newHandlers(&fakeSource{})
	res, err := h.getNights(context.Background(), callRequest(map[string]any{"end": "soon"}))
	if err != nil || !res.IsError {
		t.Errorf("bad date: res=%+v err=%v, want tool error", res, err)
	}

	h = newHandlers(&fakeSource{err: errors.New("db down")})
	res, err = h.getNights(context.Background(), callRequest(nil))
	if err != nil || !res.IsError {
		t.Errorf("query failure: res=%+v err=%v, want tool error", res, err)
	}
}

// TestGetCircadianScore verifies the latest export is returned with its
// decoded nights, skipping empty slots.
func TestGetCircadianScore(t *testing.T) {
	onset := time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC)
	var hist models.History
	hist.Nights[0] = models.SleepNight{
		Onset:        uint32(onset.Unix()),
		Offset:       uint32(onset.Add(8 * time.Hour).Unix()),
		DurationMin:  480,
		Efficiency:   95,
		Awakenings:   1,
		LightQuality: 90,
		Valid:        true,
	}
	hist.WriteIndex = 1
	buf := make([]byte, history.ExportBytes)
	history.ExportBinary(&hist, buf)

	ds := &fakeSource{export: &models.ExportRow{
		Device:      "wrist",
		Payload:     history.EncodeHex(buf),
		Score:       models.ScoreComponents{Overall: 64},
		ValidNights: 1,
	}}
	h := newHandlers(ds)

	res, err := h.getCircadianScore(context.Background(), callRequest(map[string]any{"device": "wrist"}))
	if err != nil {
		t.Fatal(err)
	}
	var out circadianScore
	if err := json.Unmarshal([]byte(resultText(t, res)), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Score.Overall != 64 || out.ValidNights != 1 || ds.gotDevice != "wrist" {
		t.Errorf("score = %+v", out)
	}
	if len(out.Nights) != 1 {
		t.Fatalf("nights = %d, want 1", len(out.Nights))
	}
	n := out.Nights[0]
	if !n.Onset.Equal(onset) || n.DurationMin != 480 || !n.Valid || n.SleepScore == 0 {
		t.Errorf("night = %+v", n)
	}
}

// TestGetCircadianScoreNoExports verifies an empty archive is reported as a
// tool error rather than a protocol error.
func TestGetCircadianScoreNoExports(t *testing.T) {
	h := newHandlers(&fakeSource{})
	res, err := h.getCircadianScore(context.Background(), callRequest(nil))
	if err != nil {
		t.Fatal(err)
	}
	if !res.IsError || !strings.Contains(resultText(t, res), "no exports") {
		t.Errorf("result = %+v, want no-exports error", res)
	}
}

// TestGetSleepSummary verifies the 90-day default and bucket passthrough.
func TestGetSleepSummary(t *testing.T) {
	ds := &fakeSource{}
	h := newHandlers(ds)

	res, err := h.getSleepSummary(context.Background(), callRequest(map[string]any{"bucket": "1 month"}))
	if err != nil || res.IsError {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if ds.gotBucket != "1 month" || ds.gotLoc != time.UTC {
		t.Errorf("bucket/loc = %q/%v", ds.gotBucket, ds.gotLoc)
	}
	if got := ds.gotEnd.Sub(ds.gotStart); got != 90*24*time.Hour {
		t.Errorf("range = %v, want 90 days", got)
	}

	if _, err := h.getSleepSummary(context.Background(), callRequest(nil)); err != nil {
		t.Fatal(err)
	}
	if ds.gotBucket != "1 week" {
		t.Errorf("default bucket = %q, want 1 week", ds.gotBucket)
	}
}

// TestLatestExportResource verifies the resource serves the latest export as JSON.
func TestLatestExportResource(t *testing.T) {
	ds := &fakeSource{export: &models.ExportRow{Device: "wrist", ValidNights: 3}}
	h := newHandlers(ds)

	var req mcp.ReadResourceRequest
	req.Params.URI = "phasewatch://latest_export"
	contents, err := h.latestExport(WithUserID(context.Background(), 3), req)
	if err != nil {
		t.Fatal(err)
	}
	if ds.gotUser != 3 {
		t.Errorf("user = %d, want 3", ds.gotUser)
	}
	text, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents type %T", contents[0])
	}
	if text.URI != req.Params.URI || !strings.Contains(text.Text, `"valid_nights":3`) {
		t.Errorf("resource = %+v", text)
	}
}

// TestNewRegistersTools verifies the server builds with its tool set.
func TestNewRegistersTools(t *testing.T) {
	s := New(&fakeSource{}, "test", nil, slog.New(slog.DiscardHandler))
	if s == nil {
		t.Fatal("New returned nil")
	}
}
