// Package phase scores how well the wearer's current activity, temperature
// and light line up with the expected circadian and seasonal pattern, and
// picks which derived metric to surface.
package phase

import (
	"math"

	"github.com/claude/phasewatch/internal/homebase"
)

// HistoryHours is the length of the hourly score history.
const HistoryHours = 24

// Recommendation is the suggested activity level.
type Recommendation uint8

const (
	Rest Recommendation = iota
	Moderate
	Active
	Peak
)

func (r Recommendation) String() string {
	switch r {
	case Rest:
		return "rest"
	case Moderate:
		return "moderate"
	case Active:
		return "active"
	case Peak:
		return "peak"
	}
	return "unknown"
}

// Engine keeps the last 24 phase scores.
type Engine struct {
	table *homebase.Table

	history    [HistoryHours]uint8
	index      int
	cumulative uint16

	lastScore uint16
	lastHour  int
	lastDay   int
}

// NewEngine returns an engine reading seasonal baselines from table.
func NewEngine(table *homebase.Table) *Engine {
	return &Engine{table: table}
}

// Compute scores the current hour and records it in the history. Invalid
// input or a missing baseline yields 0 and is not recorded.
func (e *Engine) Compute(hour, dayOfYear int, activity uint16, tempC10 int16, lux uint16) uint16 {
	if hour < 0 || hour > 23 || dayOfYear < 1 || dayOfYear > 366 {
		return 0
	}
	if activity > 1000 {
		return 0
	}
	baseline := e.table.Entry(dayOfYear)
	if baseline == nil {
		return 0
	}

	expected := int(baseline.SeasonalBaseline) * (1000 + int(homebase.CosineLUT[hour])) / 2000
	actDev := abs(int(activity)/10 - expected)

	tempDev := abs(int(tempC10) - int(baseline.AvgTempC10))
	if tempDev > 300 {
		tempDev = 30
	} else {
		tempDev /= 10
	}

	expectedLight := 50
	if hour >= 6 && hour < 18 {
		expectedLight = 500
	}
	lightDev := abs(int(lux) - expectedLight)
	if lightDev > 1000 {
		lightDev = 20
	} else {
		lightDev /= 50
	}

	score := uint16(max(0, min(100, 100-actDev/2-tempDev-lightDev)))

	e.lastScore = score
	e.lastHour = hour
	e.lastDay = dayOfYear
	e.record(uint8(score))
	return score
}

func (e *Engine) record(score uint8) {
	old := uint16(e.history[e.index])
	e.history[e.index] = score

	if e.cumulative >= old {
		e.cumulative -= old
	} else {
		e.cumulative = 0
	}
	if e.cumulative <= math.MaxUint16-uint16(score) {
		e.cumulative += uint16(score)
	} else {
		e.cumulative = math.MaxUint16
	}

	e.index = (e.index + 1) % HistoryHours
}

// LastScore returns the most recent computed score.
func (e *Engine) LastScore() uint16 { return e.lastScore }

// Cumulative returns the running sum of the score history.
func (e *Engine) Cumulative() uint16 { return e.cumulative }

// Trend compares the average of the newer half of the last hours scores with
// the older half, doubled and clamped to ±100.
func (e *Engine) Trend(hours int) int16 {
	if hours <= 0 || hours > HistoryHours {
		return 0
	}
	half := max(1, hours/2)

	var recentSum, olderSum, recentN, olderN int
	idx := (e.index - 1 + HistoryHours) % HistoryHours
	for i := range hours {
		if i < half {
			recentSum += int(e.history[idx])
			recentN++
		} else {
			olderSum += int(e.history[idx])
			olderN++
		}
		idx = (idx - 1 + HistoryHours) % HistoryHours
	}
	if recentN == 0 || olderN == 0 {
		return 0
	}

	trend := (recentSum/recentN - olderSum/olderN) * 2
	return int16(max(-100, min(100, trend)))
}

// Recommend maps a phase score to an activity level. At night (22:00-05:59)
// the advice never goes above moderate.
func Recommend(score uint16, hour int) Recommendation {
	if score < 30 {
		return Rest
	}
	if hour >= 22 || hour <= 5 {
		return Moderate
	}
	switch {
	case score < 50:
		return Moderate
	case score < 70:
		return Active
	default:
		return Peak
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
