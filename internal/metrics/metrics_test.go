package metrics

import (
	"testing"

	"github.com/claude/phasewatch/internal/homebase"
	"github.com/claude/phasewatch/internal/models"
)

// historyWith returns a history whose most recent nights, newest first, have
// the given durations. A zero duration marks the night invalid.
func historyWith(durations ...uint16) *models.History {
	h := &models.History{WriteIndex: uint8(len(durations) % models.HistoryNights)}
	for i, d := range durations {
		idx := (int(h.WriteIndex) - 1 - i + models.HistoryNights) % models.HistoryNights
		h.Nights[idx] = models.SleepNight{DurationMin: d, Valid: d > 0}
	}
	return h
}

// TestSleepDebtWeighting verifies the 420/480/600 example: deficits 60/0/0
// weighted to 30.
func TestSleepDebtWeighting(t *testing.T) {
	var deficits [3]uint8
	if got := SleepDebt(historyWith(420, 480, 600), &deficits); got != 30 {
		t.Errorf("SleepDebt = %d, want 30", got)
	}
	if deficits != [3]uint8{60, 0, 0} {
		t.Errorf("deficits = %v, want [60 0 0]", deficits)
	}
}

// TestSleepDebtClamps verifies stored deficits cap at 100 while the score uses
// the raw deficits, and invalid nights contribute nothing.
func TestSleepDebtClamps(t *testing.T) {
	var deficits [3]uint8
	// raw 300, 0 (invalid), 200 -> (15000 + 0 + 4000)/100 = 190 -> 100
	got := SleepDebt(historyWith(180, 0, 280), &deficits)
	if got != 100 {
		t.Errorf("SleepDebt = %d, want 100", got)
	}
	if deficits != [3]uint8{100, 0, 100} {
		t.Errorf("deficits = %v, want [100 0 100]", deficits)
	}

	// raw 120, 60, 30 -> (6000 + 1800 + 600)/100 = 84
	if got := SleepDebt(historyWith(360, 420, 450), &deficits); got != 84 {
		t.Errorf("SleepDebt = %d, want 84", got)
	}
}

// TestSleepDebtNoHistory verifies the neutral score and zeroed deficits.
func TestSleepDebtNoHistory(t *testing.T) {
	deficits := [3]uint8{9, 9, 9}
	if got := SleepDebt(nil, &deficits); got != 50 {
		t.Errorf("SleepDebt(nil) = %d, want 50", got)
	}
	if deficits != [3]uint8{} {
		t.Errorf("deficits = %v, want zero", deficits)
	}
}

// TestComfort covers the temperature penalty, both light regimes and the
// missing-baseline fallback.
func TestComfort(t *testing.T) {
	base := &homebase.Entry{AvgTempC10: 200}
	tests := []struct {
		name string
		temp int16
		lux  uint16
		hour int
		want uint8
	}{
		{"ideal day", 200, 500, 12, 100},
		{"ideal night", 200, 10, 23, 100},
		// temp dev 30 -> 90; light 100 lux by day -> 50; (5400+2000)/100 = 74
		{"dim day", 230, 100, 18, 74},
		// temp dev 301 -> 0; night 150 lux -> 50; 2000/100 = 20
		{"hot bright night", 501, 150, 5, 20},
		// temp dev 300 -> 0; night 400 lux -> penalty capped 100 -> 0
		{"floor", -100, 400, 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Comfort(tt.temp, tt.lux, tt.hour, base); got != tt.want {
				t.Errorf("Comfort = %d, want %d", got, tt.want)
			}
		})
	}
	if got := Comfort(200, 500, 12, nil); got != 50 {
		t.Errorf("Comfort(no baseline) = %d, want 50", got)
	}
}

// TestWakeMomentum covers both ramps, the activity bonus and the caps.
func TestWakeMomentum(t *testing.T) {
	tests := []struct {
		minutes  int
		activity uint16
		accel    bool
		want     uint8
	}{
		{0, 0, true, 0},
		{60, 0, true, 50},
		{60, 1000, true, 80},
		{100, 5000, true, 100},
		{300, 0, true, 100},
		{90, 5000, false, 50},
		{180, 0, false, 100},
	}
	for _, tt := range tests {
		if got := WakeMomentum(tt.minutes, tt.activity, tt.accel); got != tt.want {
			t.Errorf("WakeMomentum(%d, %d, %v) = %d, want %d", tt.minutes, tt.activity, tt.accel, got, tt.want)
		}
	}
}

// TestEnergy covers the activity bonus, the circadian fallback and clamping.
func TestEnergy(t *testing.T) {
	tests := []struct {
		name     string
		phase    uint16
		sd       uint8
		activity uint16
		hour     int
		accel    bool
		want     uint8
	}{
		{"activity bonus capped", 70, 30, 5000, 12, true, 80},
		{"small activity", 70, 30, 120, 12, true, 62},
		// lut[10] = -1000 -> bonus 20
		{"fallback peak", 70, 30, 0, 10, false, 80},
		// lut[22] = 1000 -> bonus 0
		{"fallback trough", 70, 30, 0, 22, false, 60},
		{"hour clamp", 70, 30, 0, 40, false, 60},
		{"floor", 10, 90, 0, 22, false, 0},
		{"ceiling", 100, 0, 5000, 12, true, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Energy(tt.phase, tt.sd, tt.activity, tt.hour, tt.accel); got != tt.want {
				t.Errorf("Energy = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestEmotional pins the blend for a few hour/day combinations.
func TestEmotional(t *testing.T) {
	tests := []struct {
		hour int
		doy  uint16
		want uint8
	}{
		// circ 100, lunar phase 0 -> 0: (4000 + 0 + 2000)/100 = 60
		{10, 29, 60},
		// circ 0, lunar phase 517 -> 97: (0 + 1940 + 2000)/100 = 39
		{22, 15, 39},
		// circ (259+1000)/20 = 62, lunar phase 34 -> 7: (2480 + 140 + 2000)/100 = 46
		{15, 1, 46},
	}
	for _, tt := range tests {
		for _, v := range []uint16{0, 1200, 65535} {
			if got := Emotional(tt.hour, tt.doy, v); got != tt.want {
				t.Errorf("Emotional(%d, %d, %d) = %d, want %d", tt.hour, tt.doy, v, got, tt.want)
			}
		}
	}
}
