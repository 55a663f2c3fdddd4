package device

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// replayColumns is the expected CSV header. temp_c may be left empty.
var replayColumns = []string{"time", "x", "y", "z", "light_raw", "temp_c"}

// ReadReadings parses a CSV recording with one row per minute.
func ReadReadings(r io.Reader) ([]Reading, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(replayColumns)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	for i, col := range replayColumns {
		if strings.ToLower(strings.TrimSpace(header[i])) != col {
			return nil, fmt.Errorf("column %d is %q, want %q", i+1, header[i], col)
		}
	}

	var out []Reading
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(out)+2, err)
		}
		rd, err := parseReading(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(out)+2, err)
		}
		out = append(out, rd)
	}
	return out, nil
}

func parseReading(rec []string) (Reading, error) {
	var rd Reading
	t, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return rd, fmt.Errorf("parsing time: %w", err)
	}
	rd.Time = t

	axes := []*int16{&rd.X, &rd.Y, &rd.Z}
	for i, dst := range axes {
		v, err := strconv.ParseInt(rec[1+i], 10, 16)
		if err != nil {
			return rd, fmt.Errorf("parsing %s: %w", replayColumns[1+i], err)
		}
		*dst = int16(v)
	}

	light, err := strconv.ParseUint(rec[4], 10, 16)
	if err != nil {
		return rd, fmt.Errorf("parsing light_raw: %w", err)
	}
	rd.LightRaw = uint16(light)

	if s := strings.TrimSpace(rec[5]); s != "" {
		c, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return rd, fmt.Errorf("parsing temp_c: %w", err)
		}
		rd.TempC, rd.HasTemp = c, true
	}
	return rd, nil
}

// ReplayResult summarises a replay run.
type ReplayResult struct {
	Minutes int    `json:"minutes"`
	Nights  int    `json:"nights"`
	Status  Status `json:"status"`
}

// Replay feeds readings through the device in order, ticking the playlist
// once per reading. It stops early when ctx is cancelled.
func Replay(ctx context.Context, d *Device, readings []Reading) (ReplayResult, error) {
	var res ReplayResult
	before := d.History().WriteIndex
	for i, rd := range readings {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if i > 0 && !rd.Time.After(readings[i-1].Time) {
			return res, fmt.Errorf("reading %d at %s is not after the previous one", i+1, rd.Time.Format(time.RFC3339))
		}
		wasTracking := d.Tracking()
		if err := d.Minute(rd); err != nil {
			return res, fmt.Errorf("minute %s: %w", rd.Time.Format(time.RFC3339), err)
		}
		if wasTracking && !d.Tracking() && d.History().WriteIndex != before {
			res.Nights++
			before = d.History().WriteIndex
		}
		d.Tick()
		res.Minutes++
	}
	res.Status = d.Status()
	return res, nil
}
