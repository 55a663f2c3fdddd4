package homebase

import (
	"fmt"
	"strconv"
	"strings"
)

var tzAbbrev = map[string]int{
	"PST": -480, "PDT": -420,
	"MST": -420, "MDT": -360,
	"CST": -360, "CDT": -300,
	"EST": -300, "EDT": -240,
	"UTC": 0, "GMT": 0,
}

// ParseTimezone converts a US abbreviation, "UTC+H"/"UTC-H" (fractional hours
// allowed) or a raw minute offset into minutes east of UTC.
func ParseTimezone(s string) (int, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	if off, ok := tzAbbrev[upper]; ok {
		return off, nil
	}
	if rest, ok := strings.CutPrefix(upper, "UTC"); ok {
		if hours, err := strconv.ParseFloat(rest, 64); err == nil {
			return int(hours * 60), nil
		}
	}
	if off, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		return off, nil
	}
	return 0, fmt.Errorf("unknown timezone format: %s", s)
}
