package metrics

import (
	"fmt"
	"log/slog"

	"github.com/claude/phasewatch/internal/homebase"
	"github.com/claude/phasewatch/internal/models"
)

// Registers is the battery-backed register file. Register 0 is never valid.
type Registers interface {
	StoreBackup(reg uint8, value uint32) error
	Backup(reg uint8) (uint32, error)
}

// RegisterAllocator hands out register ids. It returns 0 when none are left.
type RegisterAllocator interface {
	ClaimRegister() uint8
}

// Inputs is everything one metrics update consumes.
type Inputs struct {
	Hour               int
	Minute             int
	DayOfYear          uint16
	PhaseScore         uint16
	CumulativeActivity uint16
	RecentActivity     uint16
	ActivityVariance   uint16
	TempC10            int16
	Lux                uint16
	History            *models.History
	Baseline           *homebase.Entry
	Caps               models.Capabilities
}

// Engine owns the current snapshot and the small persisted state.
type Engine struct {
	snapshot models.MetricsSnapshot

	deficits   [3]uint8
	wakeHour   uint8
	wakeMinute uint8

	regs  Registers
	regSD uint8
	regWK uint8

	log *slog.Logger
}

// NewEngine claims two backup registers, starts from a neutral snapshot and,
// when both registers were granted, restores the persisted state.
func NewEngine(regs Registers, alloc RegisterAllocator, log *slog.Logger) *Engine {
	e := &Engine{
		snapshot: models.NeutralSnapshot(),
		regs:     regs,
		log:      log,
	}
	if alloc != nil && regs != nil {
		e.regSD = alloc.ClaimRegister()
		e.regWK = alloc.ClaimRegister()
	}
	if e.persistent() {
		if err := e.Load(); err != nil {
			log.Warn("metrics state not restored", "error", err)
		}
	} else {
		log.Warn("backup registers unavailable, metrics state will not persist")
	}
	return e
}

func (e *Engine) persistent() bool {
	return e.regs != nil && e.regSD != 0 && e.regWK != 0
}

// Snapshot returns a copy of the current metrics.
func (e *Engine) Snapshot() models.MetricsSnapshot {
	return e.snapshot
}

// Deficits returns the stored per-night sleep deficits, most recent first.
func (e *Engine) Deficits() [3]uint8 {
	return e.deficits
}

// WakeOnset returns the recorded wake time.
func (e *Engine) WakeOnset() (hour, minute uint8) {
	return e.wakeHour, e.wakeMinute
}

// SetWakeOnset records the time the wearer woke. Out-of-range values are ignored.
func (e *Engine) SetWakeOnset(hour, minute uint8) {
	if hour >= 24 || minute >= 60 {
		return
	}
	e.wakeHour = hour
	e.wakeMinute = minute
}

// MinutesAwake returns the minutes elapsed since the wake onset, wrapping at midnight.
func (e *Engine) MinutesAwake(hour, minute int) int {
	now := hour*60 + minute
	onset := int(e.wakeHour)*60 + int(e.wakeMinute)
	return ((now-onset)%1440 + 1440) % 1440
}

// Update recomputes every metric and persists the compact state.
func (e *Engine) Update(in Inputs) {
	e.snapshot.SleepDebt = SleepDebt(in.History, &e.deficits)
	e.snapshot.Comfort = Comfort(in.TempC10, in.Lux, in.Hour, in.Baseline)
	e.snapshot.WakeMomentum = WakeMomentum(e.MinutesAwake(in.Hour, in.Minute), in.CumulativeActivity, in.Caps.HasAccelerometer)
	e.snapshot.Energy = Energy(in.PhaseScore, e.snapshot.SleepDebt, in.RecentActivity, in.Hour, in.Caps.HasAccelerometer)
	e.snapshot.Emotional = Emotional(in.Hour, in.DayOfYear, in.ActivityVariance)

	if e.persistent() {
		if err := e.Save(); err != nil {
			e.log.Warn("saving metrics state", "error", err)
		}
	}
}

// Save packs the deficits and wake onset into the two registers.
func (e *Engine) Save() error {
	if !e.persistent() {
		return nil
	}
	sd := uint32(e.deficits[0]) | uint32(e.deficits[1])<<8 | uint32(e.deficits[2])<<16
	if err := e.regs.StoreBackup(e.regSD, sd); err != nil {
		return fmt.Errorf("storing sleep debt register: %w", err)
	}
	wk := uint32(e.wakeHour) | uint32(e.wakeMinute)<<8
	if err := e.regs.StoreBackup(e.regWK, wk); err != nil {
		return fmt.Errorf("storing wake register: %w", err)
	}
	return nil
}

// Load restores the registers, zeroing any value out of range.
func (e *Engine) Load() error {
	if !e.persistent() {
		return nil
	}
	sd, err := e.regs.Backup(e.regSD)
	if err != nil {
		return fmt.Errorf("reading sleep debt register: %w", err)
	}
	wk, err := e.regs.Backup(e.regWK)
	if err != nil {
		return fmt.Errorf("reading wake register: %w", err)
	}

	for i := range e.deficits {
		d := uint8(sd >> (8 * i))
		if d > maxStoredDeficit {
			d = 0
		}
		e.deficits[i] = d
	}
	e.wakeHour = uint8(wk)
	if e.wakeHour >= 24 {
		e.wakeHour = 0
	}
	e.wakeMinute = uint8(wk >> 8)
	if e.wakeMinute >= 60 {
		e.wakeMinute = 0
	}
	return nil
}
