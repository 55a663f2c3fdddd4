package upload

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/claude/phasewatch/internal/ingest"
)

var testPayload = strings.Repeat("AB", 112)

// fakeServer answers with the given status codes in turn and 200 afterwards.
func fakeServer(t *testing.T, statuses ...int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(calls.Add(1))
		if r.URL.Path != "/api/v1/exports" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("X-API-Key"); got != "key" {
			t.Errorf("api key = %q", got)
		}
		var body Export
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decoding body: %v", err)
		}
		if n <= len(statuses) && statuses[n-1] != http.StatusOK {
			w.WriteHeader(statuses[n-1])
			_, _ = w.Write([]byte(`{"error":"nope"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ingest.Result{ExportID: uuid.New(), NightsReceived: 2, NightsInserted: 2})
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func testClient(url string) *Client {
	c := NewClient(url, "key", 5*time.Second)
	c.backoff = time.Millisecond
	return c
}

// TestSendExportRetries verifies transient failures are retried and client
// errors are not.
func TestSendExportRetries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantErr   bool
		wantCalls int32
	}{
		{"first try", nil, false, 1},
		{"recovers after 5xx", []int{500, 503}, false, 3},
		{"rate limited", []int{429}, false, 2},
		{"gives up after 3", []int{500, 500, 500}, true, 3},
		{"bad request not retried", []int{400}, true, 1},
		{"forbidden not retried", []int{403}, true, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, calls := fakeServer(t, tt.statuses...)
			result, err := testClient(ts.URL).SendExport(context.Background(), Export{Device: "wrist", Payload: testPayload})
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && result.NightsInserted != 2 {
				t.Errorf("result = %+v", result)
			}
			if got := calls.Load(); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

// TestSendExportCancelled verifies a cancelled context stops the backoff loop.
func TestSendExportCancelled(t *testing.T) {
	ts, _ := fakeServer(t, 500, 500, 500)
	c := testClient(ts.URL)
	c.backoff = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.SendExport(ctx, Export{Device: "wrist", Payload: testPayload})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

// TestUploaderSkipsDuplicates verifies an accepted export is not sent twice,
// even when re-encoded in lower case.
func TestUploaderSkipsDuplicates(t *testing.T) {
	ts, calls := fakeServer(t)
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	u := New(testClient(ts.URL), state, false, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	out, err := u.Run(ctx, Export{Device: "wrist", Payload: testPayload})
	if err != nil {
		t.Fatal(err)
	}
	if out.Skipped || out.Result == nil {
		t.Fatalf("first run = %+v, want upload", out)
	}

	out, err = u.Run(ctx, Export{Device: "wrist", Payload: strings.ToLower(testPayload)})
	if err != nil {
		t.Fatal(err)
	}
	if !out.Skipped {
		t.Error("second run should be skipped")
	}

	out, err = u.Run(ctx, Export{Device: "other", Payload: testPayload})
	if err != nil {
		t.Fatal(err)
	}
	if out.Skipped {
		t.Error("a different device should upload")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

// TestUploaderDryRun verifies dry runs neither send nor record.
func TestUploaderDryRun(t *testing.T) {
	ts, calls := fakeServer(t)
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	u := New(testClient(ts.URL), state, true, slog.New(slog.DiscardHandler))
	out, err := u.Run(context.Background(), Export{Device: "wrist", Payload: testPayload})
	if err != nil {
		t.Fatal(err)
	}
	if !out.DryRun || calls.Load() != 0 {
		t.Errorf("out = %+v calls = %d, want dry run without requests", out, calls.Load())
	}
	done, err := state.IsUploaded("wrist", out.Hash)
	if err != nil || done {
		t.Errorf("IsUploaded = %v, %v; want false", done, err)
	}
}

// TestUploaderFailureNotRecorded verifies a rejected export can be retried later.
func TestUploaderFailureNotRecorded(t *testing.T) {
	ts, _ := fakeServer(t, 400)
	state, err := OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer state.Close()

	u := New(testClient(ts.URL), state, false, slog.New(slog.DiscardHandler))
	out, err := u.Run(context.Background(), Export{Device: "wrist", Payload: testPayload})
	if err == nil {
		t.Fatal("expected error")
	}
	if done, _ := state.IsUploaded("wrist", out.Hash); done {
		t.Error("failed upload must not be recorded")
	}
}

// TestHashPayload verifies hashing ignores case and whitespace.
func TestHashPayload(t *testing.T) {
	a := HashPayload("ab cd\nEF")
	b := HashPayload("ABCDEF")
	if a != b {
		t.Errorf("hashes differ: %s vs %s", a, b)
	}
	if a == HashPayload("ABCDEE") {
		t.Error("different payloads hash alike")
	}
}
