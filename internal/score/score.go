// Package score computes the 7-night circadian score and the single-night sleep score.
package score

import (
	"github.com/claude/phasewatch/internal/models"
)

const (
	minutesPerDay = 1440

	durationOptimalLow  = 420
	durationOptimalHigh = 480
	durationFloor       = 360
	durationCeiling     = 540

	timingZeroAt     = 180
	complianceWindow = 60
	neutral          = 50
)

// Component weights for the overall score, in percent.
const (
	WeightTiming     = 35
	WeightDuration   = 30
	WeightEfficiency = 20
	WeightCompliance = 10
	WeightLight      = 5
)

// Compute returns every component and the weighted overall score.
func Compute(h *models.History) models.ScoreComponents {
	c := models.ScoreComponents{
		Timing:     Timing(h),
		Duration:   Duration(h),
		Efficiency: Efficiency(h),
		Compliance: Compliance(h),
		Light:      Light(h),
	}
	c.Overall = Overall(c.Timing, c.Duration, c.Efficiency, c.Compliance, c.Light)
	return c
}

// Overall blends the five components with fixed weights, truncating.
func Overall(timing, duration, efficiency, compliance, light uint8) uint8 {
	sum := uint32(timing)*WeightTiming +
		uint32(duration)*WeightDuration +
		uint32(efficiency)*WeightEfficiency +
		uint32(compliance)*WeightCompliance +
		uint32(light)*WeightLight
	return uint8(sum / 100)
}

// clockMinutes returns the UTC minute of day for a Unix timestamp.
func clockMinutes(ts uint32) int {
	return int(ts%86400) / 60
}

// circularDiff returns the absolute difference of two minute-of-day values,
// taking the short way around midnight.
func circularDiff(a, b int) int {
	d := a - b
	if d > minutesPerDay/2 {
		d -= minutesPerDay
	} else if d < -minutesPerDay/2 {
		d += minutesPerDay
	}
	if d < 0 {
		d = -d
	}
	return d
}

// Timing scores the night-to-night regularity of onset and offset times over
// consecutive valid slot pairs. Without a valid pair it is neutral.
func Timing(h *models.History) uint8 {
	var onsetTotal, offsetTotal, pairs int
	for i := 0; i < models.HistoryNights-1; i++ {
		a, b := h.Nights[i], h.Nights[i+1]
		if !a.Valid || !b.Valid {
			continue
		}
		onsetTotal += circularDiff(clockMinutes(b.Onset), clockMinutes(a.Onset))
		offsetTotal += circularDiff(clockMinutes(b.Offset), clockMinutes(a.Offset))
		pairs++
	}
	if pairs == 0 {
		return neutral
	}
	avg := (onsetTotal/pairs + offsetTotal/pairs) / 2
	if avg >= timingZeroAt {
		return 0
	}
	return uint8(100 - avg*100/timingZeroAt)
}

// DurationScore maps a sleep duration in minutes onto the asymmetric curve:
// 100 inside 7-8h, falling to 0 at 6h and to 50 at 9h.
func DurationScore(d int) uint8 {
	switch {
	case d >= durationOptimalLow && d <= durationOptimalHigh:
		return 100
	case d < durationOptimalLow:
		if d <= durationFloor {
			return 0
		}
		return uint8(100 - (durationOptimalLow-d)*100/(durationOptimalLow-durationFloor))
	default:
		if d >= durationCeiling {
			return 50
		}
		return uint8(100 - (d-durationOptimalHigh)*50/(durationCeiling-durationOptimalHigh))
	}
}

// Duration scores the average duration of valid nights; 0 with none.
func Duration(h *models.History) uint8 {
	total, n := 0, 0
	for _, night := range h.Nights {
		if night.Valid {
			total += int(night.DurationMin)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return DurationScore(total / n)
}

// Efficiency averages the efficiency of valid nights; 0 with none.
func Efficiency(h *models.History) uint8 {
	return average(h, func(n models.SleepNight) int { return int(n.Efficiency) })
}

// Light averages the light quality of valid nights; 0 with none.
func Light(h *models.History) uint8 {
	return average(h, func(n models.SleepNight) int { return int(n.LightQuality) })
}

func average(h *models.History, field func(models.SleepNight) int) uint8 {
	total, n := 0, 0
	for _, night := range h.Nights {
		if night.Valid {
			total += field(night)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return uint8(total / n)
}

// Compliance is the share of valid nights whose onset falls within an hour
// of the active-hours end and whose offset falls within an hour of its start.
func Compliance(h *models.History) uint8 {
	valid, compliant := 0, 0
	for _, n := range h.Nights {
		if !n.Valid {
			continue
		}
		valid++
		onsetOK := circularDiff(clockMinutes(n.Onset), int(h.ActiveHoursEnd)) <= complianceWindow
		offsetOK := circularDiff(clockMinutes(n.Offset), int(h.ActiveHoursStart)) <= complianceWindow
		if onsetOK && offsetOK {
			compliant++
		}
	}
	if valid == 0 {
		return 0
	}
	return uint8(compliant * 100 / valid)
}

// SleepScore rates a single night: 50% duration, 30% efficiency, 20% light.
// Invalid nights score 0.
func SleepScore(n models.SleepNight) uint8 {
	if !n.Valid {
		return 0
	}
	sum := uint32(DurationScore(int(n.DurationMin)))*50 +
		uint32(n.Efficiency)*30 +
		uint32(n.LightQuality)*20
	return uint8(sum / 100)
}
