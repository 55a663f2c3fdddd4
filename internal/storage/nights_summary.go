package storage

import (
	"context"
	"fmt"
	"math"
	"time"
)

// NightSummaryPeriod holds aggregated sleep stats for one time period.
type NightSummaryPeriod struct {
	Period                   string  `json:"period"`
	Nights                   int     `json:"nights"`
	AvgDurationHr            float64 `json:"avg_duration_hr"`
	AvgEfficiencyPct         float64 `json:"avg_efficiency_pct"`
	AvgWASOMin               float64 `json:"avg_waso_min"`
	AvgAwakenings            float64 `json:"avg_awakenings"`
	AvgLightQualityPct       float64 `json:"avg_light_quality_pct"`
	AvgQuality               float64 `json:"avg_quality"`
	AvgSleepScore            float64 `json:"avg_sleep_score"`
	AvgBedtime               string  `json:"avg_bedtime"`
	AvgWaketime              string  `json:"avg_waketime"`
	BedtimeConsistencyStdHr  float64 `json:"bedtime_consistency_stddev_hr"`
	WaketimeConsistencyStdHr float64 `json:"waketime_consistency_stddev_hr"`
}

// nightTimingRow holds raw onset/offset times for circular mean computation.
type nightTimingRow struct {
	period time.Time
	onset  time.Time
	offset time.Time
}

// GetNightSummary returns aggregated night stats per period with circular
// bedtime/waketime averages. Times of day are taken in loc.
func (db *DB) GetNightSummary(ctx context.Context, start, end time.Time, bucket string, userID int, loc *time.Location) ([]NightSummaryPeriod, error) {
	trunc := truncInterval(bucket)

	aggRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, sleep_onset) AS period,
		        COUNT(*)::int,
		        AVG(duration_min) / 60.0,
		        AVG(efficiency)::float8,
		        AVG(waso_min)::float8,
		        AVG(awakenings)::float8,
		        AVG(light_quality)::float8,
		        AVG(quality)::float8,
		        AVG(sleep_score)::float8
		 FROM sleep_nights
		 WHERE sleep_onset >= $2 AND sleep_onset < $3 AND user_id = $4
		 GROUP BY period
		 ORDER BY period DESC`,
		trunc, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying night summary: %w", err)
	}
	defer aggRows.Close()

	periodMap := make(map[string]*NightSummaryPeriod)
	var periodOrder []string

	for aggRows.Next() {
		var periodTime time.Time
		var sp NightSummaryPeriod
		if err := aggRows.Scan(&periodTime, &sp.Nights, &sp.AvgDurationHr, &sp.AvgEfficiencyPct,
			&sp.AvgWASOMin, &sp.AvgAwakenings, &sp.AvgLightQualityPct, &sp.AvgQuality,
			&sp.AvgSleepScore); err != nil {
			return nil, fmt.Errorf("scanning night summary: %w", err)
		}
		sp.Period = periodTime.Format("2006-01-02")
		periodMap[sp.Period] = &sp
		periodOrder = append(periodOrder, sp.Period)
	}
	if err := aggRows.Err(); err != nil {
		return nil, err
	}

	timingRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, sleep_onset) AS period, sleep_onset, sleep_offset
		 FROM sleep_nights
		 WHERE sleep_onset >= $2 AND sleep_onset < $3 AND user_id = $4
		 ORDER BY period, sleep_onset`,
		trunc, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying night timing: %w", err)
	}
	defer timingRows.Close()

	timingByPeriod := make(map[string][]nightTimingRow)
	for timingRows.Next() {
		var t nightTimingRow
		if err := timingRows.Scan(&t.period, &t.onset, &t.offset); err != nil {
			return nil, fmt.Errorf("scanning night timing: %w", err)
		}
		key := t.period.Format("2006-01-02")
		timingByPeriod[key] = append(timingByPeriod[key], t)
	}
	if err := timingRows.Err(); err != nil {
		return nil, err
	}

	for key, timings := range timingByPeriod {
		sp, ok := periodMap[key]
		if !ok {
			continue
		}
		onsets := make([]time.Time, 0, len(timings))
		offsets := make([]time.Time, 0, len(timings))
		for _, t := range timings {
			onsets = append(onsets, t.onset)
			offsets = append(offsets, t.offset)
		}
		applyTiming(sp, onsets, offsets, loc)
	}

	result := make([]NightSummaryPeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// applyTiming fills the circular bedtime/waketime fields of sp.
func applyTiming(sp *NightSummaryPeriod, onsets, offsets []time.Time, loc *time.Location) {
	if loc == nil {
		loc = time.UTC
	}
	bed := make([]float64, 0, len(onsets))
	for _, t := range onsets {
		bed = append(bed, timeToHourOfDay(t.In(loc)))
	}
	wake := make([]float64, 0, len(offsets))
	for _, t := range offsets {
		wake = append(wake, timeToHourOfDay(t.In(loc)))
	}

	avgBed, stdBed := circularMeanStd(bed)
	avgWake, stdWake := circularMeanStd(wake)

	sp.AvgBedtime = hoursToHHMM(avgBed)
	sp.AvgWaketime = hoursToHHMM(avgWake)
	sp.BedtimeConsistencyStdHr = math.Round(stdBed*100) / 100
	sp.WaketimeConsistencyStdHr = math.Round(stdWake*100) / 100
}

// truncInterval maps an aggregation bucket to a date_trunc field.
func truncInterval(bucket string) string {
	switch bucket {
	case "1 day":
		return "day"
	case "1 week":
		return "week"
	default:
		return "month"
	}
}

// timeToHourOfDay extracts fractional hour of day from a time.Time.
func timeToHourOfDay(t time.Time) float64 {
	return float64(t.Hour()) + float64(t.Minute())/60.0 + float64(t.Second())/3600.0
}

// circularMeanStd computes the circular mean and standard deviation for times
// expressed as hours (0–24). 23:00 and 01:00 average to 00:00, not 12:00.
func circularMeanStd(hours []float64) (mean, std float64) {
	if len(hours) == 0 {
		return 0, 0
	}

	var sinSum, cosSum float64
	for _, h := range hours {
		rad := h / 24.0 * 2 * math.Pi
		sinSum += math.Sin(rad)
		cosSum += math.Cos(rad)
	}

	n := float64(len(hours))
	sinAvg := sinSum / n
	cosAvg := cosSum / n

	meanRad := math.Atan2(sinAvg, cosAvg)
	if meanRad < 0 {
		meanRad += 2 * math.Pi
	}
	mean = meanRad / (2 * math.Pi) * 24.0

	// std = sqrt(-2 ln R), converted to hours
	r := min(1, math.Sqrt(sinAvg*sinAvg+cosAvg*cosAvg))
	if r > 0 {
		std = math.Sqrt(-2*math.Log(r)) / (2 * math.Pi) * 24.0
	}
	return mean, std
}

// hoursToHHMM formats fractional hours (0–24) as "HH:MM".
func hoursToHHMM(h float64) string {
	h = math.Mod(h, 24)
	if h < 0 {
		h += 24
	}
	hours := int(h)
	minutes := int(math.Round((h - float64(hours)) * 60))
	if minutes == 60 {
		hours++
		minutes = 0
	}
	if hours >= 24 {
		hours -= 24
	}
	return fmt.Sprintf("%02d:%02d", hours, minutes)
}
