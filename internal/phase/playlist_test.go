package phase

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/claude/phasewatch/internal/models"
)

var skewed = models.MetricsSnapshot{
	SleepDebt:    90,
	Emotional:    50,
	WakeMomentum: 20,
	Energy:       50,
	Comfort:      10,
}

// TestZoneFor checks the zone boundaries.
func TestZoneFor(t *testing.T) {
	tests := []struct {
		score uint16
		want  Zone
	}{
		{0, ZoneEmergence}, {25, ZoneEmergence},
		{26, ZoneMomentum}, {50, ZoneMomentum},
		{51, ZoneActive}, {75, ZoneActive},
		{76, ZoneDescent}, {100, ZoneDescent},
	}
	for _, tt := range tests {
		if got := ZoneFor(tt.score); got != tt.want {
			t.Errorf("ZoneFor(%d) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

// TestRefreshOrdersByRelevance verifies metrics near neutral are dropped and
// the rest sorted most relevant first.
func TestRefreshOrdersByRelevance(t *testing.T) {
	p := NewPlaylist()
	if len(p.Faces()) != 0 {
		t.Fatalf("new playlist has %d faces", len(p.Faces()))
	}
	if p.Current() != models.MetricSleepDebt {
		t.Errorf("empty Current = %v, want SD", p.Current())
	}

	// emergence: SD 24, WK 3, Comfort 24
	p.Refresh(skewed)
	want := []models.Metric{models.MetricSleepDebt, models.MetricComfort}
	if diff := cmp.Diff(want, p.Faces()); diff != "" {
		t.Errorf("faces mismatch (-want +got):\n%s", diff)
	}
}

// TestZoneHysteresis verifies a zone change needs three consecutive readings.
func TestZoneHysteresis(t *testing.T) {
	p := NewPlaylist()
	p.Refresh(skewed)

	p.Update(60, skewed)
	p.Update(60, skewed)
	if p.Zone() != ZoneEmergence {
		t.Fatalf("zone switched after two readings: %v", p.Zone())
	}
	p.Update(60, skewed)
	if p.Zone() != ZoneActive {
		t.Fatalf("zone = %v, want active", p.Zone())
	}

	// active: SD 12, WK 3, Comfort 16
	want := []models.Metric{models.MetricComfort, models.MetricSleepDebt}
	if diff := cmp.Diff(want, p.Faces()); diff != "" {
		t.Errorf("faces mismatch (-want +got):\n%s", diff)
	}
}

// TestZoneHysteresisInterrupted verifies a reading from another zone restarts
// the count.
func TestZoneHysteresisInterrupted(t *testing.T) {
	p := NewPlaylist()
	p.Update(60, skewed)
	p.Update(60, skewed)
	p.Update(40, skewed)
	p.Update(60, skewed)
	p.Update(60, skewed)
	if p.Zone() != ZoneEmergence {
		t.Fatalf("zone = %v, want emergence", p.Zone())
	}

	p.Update(10, skewed)
	p.Update(60, skewed)
	p.Update(60, skewed)
	if p.Zone() != ZoneEmergence {
		t.Fatalf("zone = %v after returning to emergence", p.Zone())
	}
	p.Update(60, skewed)
	if p.Zone() != ZoneActive {
		t.Errorf("zone = %v, want active", p.Zone())
	}
}

// TestDwellAdvances verifies faces rotate after the dwell limit and wrap.
func TestDwellAdvances(t *testing.T) {
	p := NewPlaylist()
	p.SetDwellLimit(3)
	p.Refresh(skewed)

	steps := []models.Metric{
		models.MetricSleepDebt, models.MetricSleepDebt, models.MetricComfort,
		models.MetricComfort, models.MetricComfort, models.MetricSleepDebt,
	}
	for i, want := range steps {
		p.Update(10, skewed)
		if got := p.Current(); got != want {
			t.Errorf("tick %d: Current = %v, want %v", i+1, got, want)
		}
	}
}

// TestAdvanceEmpty verifies advancing an empty rotation is a no-op.
func TestAdvanceEmpty(t *testing.T) {
	p := NewPlaylist()
	p.Refresh(models.NeutralSnapshot())
	p.Advance()
	if p.Current() != models.MetricSleepDebt || len(p.Faces()) != 0 {
		t.Errorf("Current = %v with %d faces", p.Current(), len(p.Faces()))
	}
}
