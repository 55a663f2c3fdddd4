// Package homebase holds the location-specific seasonal reference table and
// the hourly circadian curve shared by the phase and metrics engines.
package homebase

// DaysPerYear is the number of entries in a generated table.
const DaysPerYear = 365

// Entry is the expected environment for one day of the year.
type Entry struct {
	DaylightMin      uint16 `yaml:"daylight_min" json:"daylight_min"`
	AvgTempC10       int16  `yaml:"avg_temp_c10" json:"avg_temp_c10"`
	SeasonalBaseline uint8  `yaml:"seasonal_baseline" json:"seasonal_baseline"`
}

// Metadata records where and for which year a table was generated.
type Metadata struct {
	LatitudeE6     int32  `yaml:"latitude_e6" json:"latitude_e6"`
	LongitudeE6    int32  `yaml:"longitude_e6" json:"longitude_e6"`
	TimezoneOffset int16  `yaml:"timezone_offset" json:"timezone_offset"`
	Year           uint16 `yaml:"year" json:"year"`
	EntryCount     uint16 `yaml:"entry_count" json:"entry_count"`
}

// Table is a generated homebase table.
type Table struct {
	Metadata Metadata `yaml:"metadata" json:"metadata"`
	Entries  []Entry  `yaml:"entries" json:"entries"`
}

// Entry returns the entry for a 1-based day of year. Days outside the table
// fall back to the first entry. A nil or empty table has no entry.
func (t *Table) Entry(dayOfYear int) *Entry {
	if t == nil || len(t.Entries) == 0 {
		return nil
	}
	if dayOfYear < 1 || dayOfYear > len(t.Entries) {
		return &t.Entries[0]
	}
	return &t.Entries[dayOfYear-1]
}

// CosineLUT is cos(2*pi*h/24)*1000 rotated so index 0 is 866. Consumers negate
// it to get a daytime curve.
var CosineLUT = [24]int16{
	866, 707, 500, 259, 0, -259,
	-500, -707, -866, -966, -1000, -966,
	-866, -707, -500, -259, 0, 259,
	500, 707, 866, 966, 1000, 966,
}

// Curve returns CosineLUT for an hour, clamping hours above 23 to 23.
func Curve(hour int) int16 {
	if hour > 23 {
		hour = 23
	}
	if hour < 0 {
		hour = 0
	}
	return CosineLUT[hour]
}
