// Package device runs the wearable side of phasewatch: it conditions sensor
// readings, classifies sleep minute by minute, commits finished nights to the
// persisted history and refreshes the phase score, metrics and face playlist.
package device

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/claude/phasewatch/internal/history"
	"github.com/claude/phasewatch/internal/homebase"
	"github.com/claude/phasewatch/internal/metrics"
	"github.com/claude/phasewatch/internal/models"
	"github.com/claude/phasewatch/internal/phase"
	"github.com/claude/phasewatch/internal/score"
	"github.com/claude/phasewatch/internal/tracker"
)

// TrendHours is the window used for the reported phase trend.
const TrendHours = 6

// Options configures a Device.
type Options struct {
	DeviceID       string
	Caps           models.Capabilities
	LightModifiers []int32

	// ActiveHours replaces the waking window stored in the history. Nil
	// keeps whatever the history holds.
	ActiveHours *ActiveHours

	// AutoSession starts a sleep session when the clock passes the end of
	// the active hours and ends it when the clock passes their start.
	AutoSession bool

	DwellTicks int
}

// ActiveHours is the waking window in minutes after midnight.
type ActiveHours struct {
	Start uint16
	End   uint16
}

// Reading is one minute of raw sensor input.
type Reading struct {
	Time     time.Time
	X, Y, Z  int16
	LightRaw uint16
	TempC    float64
	HasTemp  bool
}

// Status is a point-in-time view of everything the wearable would display.
type Status struct {
	Time           time.Time              `json:"time"`
	Tracking       bool                   `json:"tracking"`
	PhaseScore     uint16                 `json:"phase_score"`
	Trend          int16                  `json:"trend"`
	Recommendation string                 `json:"recommendation"`
	Zone           string                 `json:"zone"`
	Face           string                 `json:"face"`
	Metrics        models.MetricsSnapshot `json:"metrics"`
	Score          models.ScoreComponents `json:"score"`
	ValidNights    int                    `json:"valid_nights"`
}

// Device wires the sleep tracker, history, phase engine, metrics engine and
// playlist around a shared clock.
type Device struct {
	opts Options
	log  *slog.Logger

	clock time.Time

	sensors    *Sensors
	classifier *tracker.Classifier
	nightlog   *tracker.NightLog
	history    *history.Store
	metrics    *metrics.Engine
	phase      *phase.Engine
	playlist   *phase.Playlist
	table      *homebase.Table

	lastHour     int
	hourActivity uint32
	hourSamples  uint32
	sinceWake    uint16
}

// New builds a device over the given row storage and backup registers and
// restores the persisted history. table may be nil, in which case the phase
// score stays 0.
func New(opts Options, rows history.RowStorage, regs metrics.Registers, alloc metrics.RegisterAllocator, table *homebase.Table, log *slog.Logger) (*Device, error) {
	d := &Device{
		opts:       opts,
		log:        log,
		sensors:    NewSensors(opts.Caps),
		classifier: tracker.NewClassifier(opts.LightModifiers),
		phase:      phase.NewEngine(table),
		playlist:   phase.NewPlaylist(),
		table:      table,
		lastHour:   -1,
	}
	d.nightlog = tracker.NewNightLog(d.Now)
	d.history = history.NewStore(rows, d.Now)
	if opts.DwellTicks > 0 {
		d.playlist.SetDwellLimit(opts.DwellTicks)
	}

	if d.history.Load() {
		log.Info("sleep history restored", "valid_nights", d.history.History.ValidCount())
	} else {
		log.Info("starting with empty sleep history")
	}

	h := &d.history.History
	if w := opts.ActiveHours; w != nil && (h.ActiveHoursStart != w.Start || h.ActiveHoursEnd != w.End) {
		if err := d.history.SetActiveHours(w.Start, w.End); err != nil {
			return nil, fmt.Errorf("storing active hours: %w", err)
		}
	}

	d.metrics = metrics.NewEngine(regs, alloc, log)
	d.playlist.Refresh(d.metrics.Snapshot())
	return d, nil
}

// Now returns the time of the last reading, or the wall clock before the
// first one.
func (d *Device) Now() time.Time {
	if d.clock.IsZero() {
		return time.Now()
	}
	return d.clock
}

// History returns the current sleep history.
func (d *Device) History() *models.History {
	return &d.history.History
}

// Tracking reports whether a sleep session is open.
func (d *Device) Tracking() bool {
	return d.nightlog.Active()
}

// StartSession clears the classifier window and starts a new night.
func (d *Device) StartSession() {
	d.classifier.Reset()
	d.nightlog.Start()
	d.log.Info("sleep session started", "time", d.Now())
}

// EndSession closes the night, commits it to history when any sleep was
// detected and records the wake onset.
func (d *Device) EndSession() (models.SleepNight, error) {
	d.nightlog.End()
	night := d.nightlog.Night()

	now := d.Now()
	d.metrics.SetWakeOnset(uint8(now.Hour()), uint8(now.Minute()))
	d.sinceWake = 0
	if err := d.metrics.Save(); err != nil {
		d.log.Warn("saving wake onset", "error", err)
	}

	if night.DurationMin == 0 {
		d.log.Info("sleep session ended without sleep")
		return night, nil
	}
	night, err := d.history.AddNight(night)
	if err != nil {
		return night, fmt.Errorf("saving night: %w", err)
	}
	if !night.Valid {
		d.log.Warn("night recorded as invalid",
			"onset", night.Onset,
			"offset", night.Offset,
			"duration_min", night.DurationMin,
		)
	}
	d.log.Info("night recorded",
		"duration_min", night.DurationMin,
		"efficiency", night.Efficiency,
		"awakenings", night.Awakenings,
		"sleep_score", score.SleepScore(night),
	)
	d.refreshMetrics(now)
	d.playlist.Refresh(d.metrics.Snapshot())
	return night, nil
}

// Minute feeds one reading. It classifies the epoch while a session is open
// and runs the hourly update when the hour rolls over.
func (d *Device) Minute(r Reading) error {
	prev := d.clock
	d.clock = r.Time

	if d.opts.AutoSession {
		if err := d.autoSession(prev, r.Time); err != nil {
			return err
		}
	}

	d.sensors.Motion(r.X, r.Y, r.Z)
	d.sensors.Light(r.LightRaw)
	d.sensors.Temperature(r.TempC, r.HasTemp)

	if d.nightlog.Active() {
		asleep := d.classifier.Classify(d.sensors.Activity, LightLevel(d.sensors.LuxAvg))
		d.nightlog.Update(asleep, d.classifier.LastLightClass())
	}

	intensity := d.sensors.Intensity
	d.hourActivity += uint32(intensity)
	d.hourSamples++
	d.sinceWake = uint16(min(math.MaxUint16, uint32(d.sinceWake)+uint32(intensity)))

	if r.Time.Hour() != d.lastHour {
		d.hourly(r.Time)
	}
	return nil
}

func (d *Device) autoSession(prev, t time.Time) error {
	h := &d.history.History
	switch {
	case !d.nightlog.Active() && crossed(prev, t, h.ActiveHoursEnd):
		d.StartSession()
	case d.nightlog.Active() && crossed(prev, t, h.ActiveHoursStart):
		if _, err := d.EndSession(); err != nil {
			return err
		}
	}
	return nil
}

// crossed reports whether the clock reached minute-of-day m in (prev, t].
// Without a previous reading only t itself is checked.
func crossed(prev, t time.Time, m uint16) bool {
	if prev.IsZero() || !t.After(prev) {
		return uint16(t.Hour()*60+t.Minute()) == m
	}
	y, mo, day := prev.Date()
	next := time.Date(y, mo, day, int(m)/60, int(m)%60, 0, 0, prev.Location())
	if !next.After(prev) {
		next = next.AddDate(0, 0, 1)
	}
	return !next.After(t)
}

// hourly scores the phase from the mean intensity of the hour just finished
// and recomputes the metrics.
func (d *Device) hourly(t time.Time) {
	d.lastHour = t.Hour()

	var activity uint16
	if d.hourSamples > 0 {
		activity = uint16(min(1000, d.hourActivity/d.hourSamples))
	}
	d.hourActivity, d.hourSamples = 0, 0

	d.phase.Compute(t.Hour(), t.YearDay(), activity, d.sensors.TempC10, d.sensors.LuxAvg)
	d.refreshMetrics(t)

	d.log.Debug("hourly update",
		"hour", t.Hour(),
		"phase", d.phase.LastScore(),
		"zone", phase.ZoneFor(d.phase.LastScore()),
	)
}

func (d *Device) refreshMetrics(t time.Time) {
	d.metrics.Update(metrics.Inputs{
		Hour:               t.Hour(),
		Minute:             t.Minute(),
		DayOfYear:          uint16(t.YearDay()),
		PhaseScore:         d.phase.LastScore(),
		CumulativeActivity: d.sinceWake,
		RecentActivity:     d.sensors.Intensity,
		ActivityVariance:   d.sensors.Variance,
		TempC10:            d.sensors.TempC10,
		Lux:                d.sensors.LuxAvg,
		History:            &d.history.History,
		Baseline:           d.table.Entry(t.YearDay()),
		Caps:               d.opts.Caps,
	})
}

// Tick advances the face playlist by one display tick.
func (d *Device) Tick() {
	d.playlist.Update(d.phase.LastScore(), d.metrics.Snapshot())
}

// Face returns the metric currently on screen.
func (d *Device) Face() models.Metric {
	return d.playlist.Current()
}

// Next skips to the next face.
func (d *Device) Next() {
	d.playlist.Advance()
}

// Export encodes the sleep history as the 224-character hex payload.
func (d *Device) Export() (string, error) {
	buf := make([]byte, history.ExportBytes)
	if n := history.ExportBinary(&d.history.History, buf); n != history.ExportBytes {
		return "", fmt.Errorf("export wrote %d bytes, want %d", n, history.ExportBytes)
	}
	return history.EncodeHex(buf), nil
}

// Status reports the current display state.
func (d *Device) Status() Status {
	now := d.Now()
	ps := d.phase.LastScore()
	return Status{
		Time:           now,
		Tracking:       d.nightlog.Active(),
		PhaseScore:     ps,
		Trend:          d.phase.Trend(TrendHours),
		Recommendation: phase.Recommend(ps, now.Hour()).String(),
		Zone:           d.playlist.Zone().String(),
		Face:           d.playlist.Current().String(),
		Metrics:        d.metrics.Snapshot(),
		Score:          score.Compute(&d.history.History),
		ValidNights:    d.history.History.ValidCount(),
	}
}
