package homebase

import (
	"fmt"
	"math"
)

// Generate builds a 365-day table for a location. Inputs are validated the
// same way the firmware build expects: year 2000-2099, latitude within
// ±90 and longitude within ±180.
func Generate(lat, lon float64, tzOffsetMin int, year int) (*Table, error) {
	if year < 2000 || year > 2099 {
		return nil, fmt.Errorf("year must be in range [2000, 2099], got %d", year)
	}
	if lat < -90 || lat > 90 {
		return nil, fmt.Errorf("latitude must be in range [-90, 90], got %g", lat)
	}
	if lon < -180 || lon > 180 {
		return nil, fmt.Errorf("longitude must be in range [-180, 180], got %g", lon)
	}

	baseTemp := 25 - math.Abs(lat)*0.4

	t := &Table{
		Metadata: Metadata{
			LatitudeE6:     int32(lat * 1_000_000),
			LongitudeE6:    int32(lon * 1_000_000),
			TimezoneOffset: int16(tzOffsetMin),
			Year:           uint16(year),
			EntryCount:     DaysPerYear,
		},
		Entries: make([]Entry, DaysPerYear),
	}
	for day := 1; day <= DaysPerYear; day++ {
		t.Entries[day-1] = Entry{
			DaylightMin:      DaylightMinutes(lat, day),
			AvgTempC10:       AvgTempC10(lat, day, baseTemp),
			SeasonalBaseline: SeasonalBaseline(lat, day),
		}
	}
	return t, nil
}

const (
	degToRad = float64(math.Pi) / 180
	radToDeg = 180 / float64(math.Pi)
)

func radians(deg float64) float64 { return deg * degToRad }

func degrees(rad float64) float64 { return rad * radToDeg }

// yearAngle is 360/365 * (day - shift) in radians.
func yearAngle(day int, shift float64) float64 {
	return radians(360.0 / 365.0 * (float64(day) - shift))
}

// DaylightMinutes estimates sunrise-to-sunset duration from the solar
// declination, clamped to [0, 1440].
func DaylightMinutes(lat float64, day int) uint16 {
	decl := -23.44 * math.Cos(yearAngle(day, -10))
	cosH := -math.Tan(radians(lat)) * math.Tan(radians(decl))
	cosH = math.Max(-1, math.Min(1, cosH))

	hours := 2 * degrees(math.Acos(cosH)) / 15
	minutes := int(hours * 60)
	return uint16(max(0, min(1440, minutes)))
}

// AvgTempC10 models the daily mean temperature in tenths of a degree as a
// sinusoid around baseTemp whose swing grows with latitude.
func AvgTempC10(lat float64, day int, baseTemp float64) int16 {
	shift := 200.0
	if lat < 0 {
		shift = 20
	}
	swing := 10 + math.Abs(lat)/3
	temp := baseTemp + swing*math.Sin(yearAngle(day, shift))
	return int16(temp * 10)
}

// SeasonalBaseline is the expected energy level (0-100): 65 ±35 on a yearly
// sinusoid whose phase is anchored on the local summer solstice.
func SeasonalBaseline(lat float64, day int) uint8 {
	shift := 172.0
	if lat < 0 {
		shift = 355
	}
	baseline := 65 + 35*math.Sin(yearAngle(day, shift))
	return uint8(math.Max(0, math.Min(100, baseline)))
}
