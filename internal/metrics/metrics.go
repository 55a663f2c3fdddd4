// Package metrics derives the bounded wellbeing scores (sleep debt, comfort,
// wake momentum, energy, emotional) from sleep history, sensors and the
// seasonal baseline.
package metrics

import (
	"github.com/claude/phasewatch/internal/homebase"
	"github.com/claude/phasewatch/internal/models"
)

const (
	sleepTargetMin   = 480
	maxStoredDeficit = 100

	wkActivityThreshold = 1000
	wkRampNormal        = 120
	wkRampFallback      = 180
	wkActivityBonus     = 30

	energyActivityDivisor = 50
	energyMaxBonus        = 20

	// VarianceNeutral stands in for the activity-variance component of the
	// emotional score until zone-relative variance is modelled.
	VarianceNeutral = 50
)

// varianceScore maps the motion variance to the 0-100 variance component.
// Every variance scores VarianceNeutral for now.
func varianceScore(activityVariance uint16) int {
	return VarianceNeutral
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// SleepDebt weighs the deficits of the three most recent nights 50/30/20.
// The per-night deficits, clamped to 100, are written to deficits. With no
// history the deficits are zeroed and the score is neutral.
func SleepDebt(h *models.History, deficits *[3]uint8) uint8 {
	if h == nil {
		*deficits = [3]uint8{}
		return 50
	}
	var raw [3]int
	for i := range raw {
		n := h.Recent(i)
		if n.Valid {
			raw[i] = max(0, sleepTargetMin-int(n.DurationMin))
		}
		deficits[i] = uint8(min(raw[i], maxStoredDeficit))
	}
	weighted := (raw[0]*50 + raw[1]*30 + raw[2]*20) / 100
	return uint8(clamp(weighted, 0, 100))
}

// Comfort blends temperature deviation from the seasonal baseline (60%) with
// how well ambient light matches the time of day (40%).
func Comfort(tempC10 int16, lux uint16, hour int, baseline *homebase.Entry) uint8 {
	if baseline == nil {
		return 50
	}

	dev := int(tempC10) - int(baseline.AvgTempC10)
	if dev < 0 {
		dev = -dev
	}
	tempComfort := 0
	if dev <= 300 {
		tempComfort = 100 - dev/3
	}

	var lightComfort int
	if hour >= 6 && hour <= 18 {
		if lux >= 200 {
			lightComfort = 100
		} else {
			lightComfort = int(lux) * 100 / 200
		}
	} else {
		if lux <= 50 {
			lightComfort = 100
		} else {
			lightComfort = 100 - min(100, (int(lux)-50)/2)
		}
	}

	return uint8((tempComfort*60 + lightComfort*40) / 100)
}

// WakeMomentum ramps from 0 to 100 over the first two hours awake, with a
// flat bonus once enough activity has accumulated. Without an accelerometer
// the ramp takes three hours and there is no bonus.
func WakeMomentum(minutesAwake int, cumulativeActivity uint16, hasAccelerometer bool) uint8 {
	if !hasAccelerometer {
		return uint8(min(100, minutesAwake*100/wkRampFallback))
	}
	wk := min(100, minutesAwake*100/wkRampNormal)
	if cumulativeActivity >= wkActivityThreshold {
		wk += wkActivityBonus
	}
	return uint8(min(100, wk))
}

// circadianBonus maps the negated hourly curve onto [0, 2000/divisor].
func circadianBonus(hour, divisor int) int {
	return (-int(homebase.Curve(hour)) + 1000) / divisor
}

// Energy is the phase score minus a third of the sleep debt, plus either a
// recent-activity bonus or a time-of-day bonus when no accelerometer is fitted.
func Energy(phaseScore uint16, sleepDebt uint8, recentActivity uint16, hour int, hasAccelerometer bool) uint8 {
	energy := int(phaseScore) - int(sleepDebt)/3
	if hasAccelerometer {
		energy += min(energyMaxBonus, int(recentActivity)/energyActivityDivisor)
	} else {
		energy += circadianBonus(hour, 100)
	}
	return uint8(clamp(energy, 0, 100))
}

// Emotional blends a circadian component (40%), a 29-day lunar approximation
// (20%) and the activity-variance component (40%). The variance component is
// scored by varianceScore, which is where zone-relative variance plugs in.
func Emotional(hour int, dayOfYear uint16, activityVariance uint16) uint8 {
	circ := circadianBonus(hour, 20)

	lunarPhase := int(uint32(dayOfYear) * 1000 / 29 % 1000)
	lunarDev := lunarPhase - 500
	if lunarDev < 0 {
		lunarDev = -lunarDev
	}
	lunar := 100 - lunarDev/5

	variance := varianceScore(activityVariance)

	em := (circ*40 + lunar*20 + variance*40) / 100
	return uint8(min(100, em))
}
