package metrics

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/claude/phasewatch/internal/homebase"
	"github.com/claude/phasewatch/internal/models"
)

type fakeRegisters struct {
	values map[uint8]uint32
	next   uint8
	limit  uint8
	fail   bool
}

func newFakeRegisters(limit uint8) *fakeRegisters {
	return &fakeRegisters{values: make(map[uint8]uint32), limit: limit}
}

func (f *fakeRegisters) ClaimRegister() uint8 {
	if f.next >= f.limit {
		return 0
	}
	f.next++
	return f.next
}

func (f *fakeRegisters) StoreBackup(reg uint8, v uint32) error {
	if f.fail {
		return errors.New("register write failed")
	}
	f.values[reg] = v
	return nil
}

func (f *fakeRegisters) Backup(reg uint8) (uint32, error) {
	return f.values[reg], nil
}

func discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

// TestEngineStartsNeutral verifies a fresh engine reports 50 for every metric.
func TestEngineStartsNeutral(t *testing.T) {
	e := NewEngine(newFakeRegisters(4), newFakeRegisters(4), discard())
	if got := e.Snapshot(); got != models.NeutralSnapshot() {
		t.Errorf("Snapshot() = %+v, want all 50", got)
	}
}

// TestEngineUpdate verifies Update recomputes all five metrics from its inputs.
func TestEngineUpdate(t *testing.T) {
	regs := newFakeRegisters(4)
	e := NewEngine(regs, regs, discard())
	e.SetWakeOnset(7, 0)

	in := Inputs{
		Hour:               8,
		Minute:             0,
		DayOfYear:          29,
		PhaseScore:         70,
		CumulativeActivity: 1200,
		RecentActivity:     500,
		TempC10:            200,
		Lux:                300,
		History:            historyWith(420, 480, 600),
		Baseline:           &homebase.Entry{AvgTempC10: 200},
		Caps:               models.Capabilities{HasAccelerometer: true},
	}
	e.Update(in)

	want := models.MetricsSnapshot{
		SleepDebt:    30,
		Comfort:      100,
		WakeMomentum: 80, // 60 min -> 50, +30 bonus
		Energy:       70, // 70 - 30/3 + 500/50
		Emotional:    Emotional(8, 29, 0),
	}
	if got := e.Snapshot(); got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
}

// TestEnginePersistsAcrossRestart verifies deficits and wake onset survive a
// new engine built on the same registers.
func TestEnginePersistsAcrossRestart(t *testing.T) {
	regs := newFakeRegisters(4)
	e := NewEngine(regs, regs, discard())
	e.SetWakeOnset(6, 45)
	e.Update(Inputs{Hour: 9, History: historyWith(420, 380, 470)})

	if got := regs.values[1]; got != 60|100<<8|10<<16 {
		t.Errorf("SD register = %#x, want %#x", got, 60|100<<8|10<<16)
	}
	if got := regs.values[2]; got != 6|45<<8 {
		t.Errorf("WK register = %#x, want %#x", got, 6|45<<8)
	}

	regs.next = 0
	restored := NewEngine(regs, regs, discard())
	if got := restored.Deficits(); got != [3]uint8{60, 100, 10} {
		t.Errorf("restored deficits = %v", got)
	}
	if h, m := restored.WakeOnset(); h != 6 || m != 45 {
		t.Errorf("restored wake onset = %d:%d, want 6:45", h, m)
	}
}

// TestEngineLoadResetsOutOfRange verifies corrupt register contents are zeroed.
func TestEngineLoadResetsOutOfRange(t *testing.T) {
	regs := newFakeRegisters(4)
	regs.values[1] = 101 | 50<<8 | 255<<16
	regs.values[2] = 24 | 60<<8

	e := NewEngine(regs, regs, discard())
	if got := e.Deficits(); got != [3]uint8{0, 50, 0} {
		t.Errorf("deficits = %v, want [0 50 0]", got)
	}
	if h, m := e.WakeOnset(); h != 0 || m != 0 {
		t.Errorf("wake onset = %d:%d, want 0:0", h, m)
	}
}

// TestEngineWithoutRegisters verifies a failed claim disables persistence but
// leaves updates working.
func TestEngineWithoutRegisters(t *testing.T) {
	regs := newFakeRegisters(1)
	e := NewEngine(regs, regs, discard())
	e.Update(Inputs{Hour: 12, History: historyWith(420)})
	if len(regs.values) != 0 {
		t.Errorf("registers written without a full claim: %v", regs.values)
	}
	if e.Snapshot().SleepDebt != 30 {
		t.Errorf("SleepDebt = %d, want 30", e.Snapshot().SleepDebt)
	}
	if err := e.Save(); err != nil {
		t.Errorf("Save() without registers = %v, want nil", err)
	}
}

// TestEngineSaveError verifies register failures are reported by Save.
func TestEngineSaveError(t *testing.T) {
	regs := newFakeRegisters(4)
	e := NewEngine(regs, regs, discard())
	regs.fail = true
	if err := e.Save(); err == nil {
		t.Error("Save() error = nil, want register failure")
	}
}

// TestMinutesAwake verifies the elapsed time wraps past midnight.
func TestMinutesAwake(t *testing.T) {
	e := NewEngine(nil, nil, discard())
	e.SetWakeOnset(23, 30)
	if got := e.MinutesAwake(0, 15); got != 45 {
		t.Errorf("MinutesAwake(00:15) = %d, want 45", got)
	}
	e.SetWakeOnset(25, 0)
	if h, _ := e.WakeOnset(); h != 23 {
		t.Errorf("SetWakeOnset(25, 0) changed hour to %d", h)
	}
}
