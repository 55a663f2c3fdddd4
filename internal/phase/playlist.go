package phase

import "github.com/claude/phasewatch/internal/models"

// Zone is the part of the day the phase score places the wearer in.
type Zone uint8

const (
	ZoneEmergence Zone = iota
	ZoneMomentum
	ZoneActive
	ZoneDescent
)

func (z Zone) String() string {
	switch z {
	case ZoneEmergence:
		return "emergence"
	case ZoneMomentum:
		return "momentum"
	case ZoneActive:
		return "active"
	case ZoneDescent:
		return "descent"
	}
	return "unknown"
}

const (
	// DefaultDwellLimit is the number of ticks each face is shown.
	DefaultDwellLimit = 30

	// ZoneHysteresis is the number of consecutive readings needed to switch zone.
	ZoneHysteresis = 3

	// MinRelevance excludes metrics sitting close to neutral.
	MinRelevance = 10
)

// zoneWeights has one row per zone; columns follow models.Metric order.
var zoneWeights = [4][models.MetricCount]int{
	{30, 25, 5, 10, 30},
	{20, 20, 30, 10, 20},
	{15, 20, 5, 40, 20},
	{10, 35, 0, 10, 45},
}

// ZoneFor maps a phase score to a zone.
func ZoneFor(score uint16) Zone {
	switch {
	case score <= 25:
		return ZoneEmergence
	case score <= 50:
		return ZoneMomentum
	case score <= 75:
		return ZoneActive
	default:
		return ZoneDescent
	}
}

// Relevance scales a metric's distance from neutral by its zone weight.
func Relevance(weight int, value uint8) int {
	dev := int(value) - 50
	if dev < 0 {
		dev = -dev
	}
	return weight * dev / 50
}

// Playlist is the rotation of metrics shown on the wearable.
type Playlist struct {
	zone       Zone
	faces      []models.Metric
	current    int
	dwell      int
	dwellLimit int

	pending     Zone
	consecutive int
}

// NewPlaylist starts in the emergence zone with an empty rotation.
func NewPlaylist() *Playlist {
	return &Playlist{
		zone:       ZoneEmergence,
		pending:    ZoneEmergence,
		dwellLimit: DefaultDwellLimit,
	}
}

// SetDwellLimit changes how many ticks each face stays on screen.
func (p *Playlist) SetDwellLimit(ticks int) {
	if ticks > 0 {
		p.dwellLimit = ticks
	}
}

// Zone returns the confirmed zone.
func (p *Playlist) Zone() Zone { return p.zone }

// Faces returns the current rotation, most relevant first.
func (p *Playlist) Faces() []models.Metric {
	return append([]models.Metric(nil), p.faces...)
}

// Update feeds one phase reading. A new zone only takes effect after
// ZoneHysteresis consecutive readings, at which point the rotation is rebuilt.
// Readings in the current zone advance the dwell timer.
func (p *Playlist) Update(score uint16, metrics models.MetricsSnapshot) {
	z := ZoneFor(score)
	if z != p.zone {
		if z == p.pending {
			p.consecutive++
			if p.consecutive >= ZoneHysteresis {
				p.zone = z
				p.consecutive = 0
				p.rebuild(metrics)
			}
		} else {
			p.pending = z
			p.consecutive = 1
		}
		return
	}

	p.pending = p.zone
	p.consecutive = 0

	p.dwell++
	if p.dwell >= p.dwellLimit {
		p.Advance()
	}
}

// Refresh rebuilds the rotation for the current zone.
func (p *Playlist) Refresh(metrics models.MetricsSnapshot) {
	p.rebuild(metrics)
}

func (p *Playlist) rebuild(metrics models.MetricsSnapshot) {
	var rel [models.MetricCount]int
	p.faces = p.faces[:0]
	for m := models.Metric(0); m < models.MetricCount; m++ {
		rel[m] = Relevance(zoneWeights[p.zone][m], metrics.Value(m))
		if rel[m] >= MinRelevance {
			p.faces = append(p.faces, m)
		}
	}

	for i := 0; i < len(p.faces)-1; i++ {
		for j := i + 1; j < len(p.faces); j++ {
			if rel[p.faces[j]] > rel[p.faces[i]] {
				p.faces[i], p.faces[j] = p.faces[j], p.faces[i]
			}
		}
	}

	p.current = 0
	p.dwell = 0
}

// Current returns the metric on screen. With an empty rotation it is sleep debt.
func (p *Playlist) Current() models.Metric {
	if len(p.faces) == 0 {
		return models.MetricSleepDebt
	}
	return p.faces[p.current]
}

// Advance moves to the next face, wrapping, and restarts the dwell timer.
func (p *Playlist) Advance() {
	if len(p.faces) == 0 {
		return
	}
	p.current = (p.current + 1) % len(p.faces)
	p.dwell = 0
}
