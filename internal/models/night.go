package models

// HistoryNights is the number of completed nights kept in the rolling history.
const HistoryNights = 7

// SleepNight summarizes one completed night as recorded on the device.
// Onset and Offset are Unix seconds.
type SleepNight struct {
	Onset        uint32 `json:"onset"`
	Offset       uint32 `json:"offset"`
	DurationMin  uint16 `json:"duration_min"`
	Efficiency   uint8  `json:"efficiency"`
	WASOMin      uint16 `json:"waso_min"`
	Awakenings   uint8  `json:"awakenings"`
	LightQuality uint8  `json:"light_quality"`
	Valid        bool   `json:"valid"`
}

// TimeInBedMin returns (Offset-Onset)/60, or 0 when the timestamps are not ordered.
func (n SleepNight) TimeInBedMin() uint32 {
	if n.Offset <= n.Onset {
		return 0
	}
	return (n.Offset - n.Onset) / 60
}

// History is the fixed 7-slot circular buffer of completed nights plus the
// user's active-hours window (minutes since midnight).
type History struct {
	Nights           [HistoryNights]SleepNight `json:"nights"`
	WriteIndex       uint8                     `json:"write_index"`
	ActiveHoursStart uint16                    `json:"active_hours_start"`
	ActiveHoursEnd   uint16                    `json:"active_hours_end"`
}

// Chronological returns the nights oldest to newest, starting at WriteIndex.
func (h *History) Chronological() []SleepNight {
	out := make([]SleepNight, 0, HistoryNights)
	for i := range HistoryNights {
		out = append(out, h.Nights[(int(h.WriteIndex)+i)%HistoryNights])
	}
	return out
}

// Recent returns the night k positions back from the newest (k=0 is the most recent).
func (h *History) Recent(k int) SleepNight {
	idx := (int(h.WriteIndex) - 1 - k + 2*HistoryNights) % HistoryNights
	return h.Nights[idx]
}

// ValidCount returns the number of nights marked valid.
func (h *History) ValidCount() int {
	n := 0
	for _, night := range h.Nights {
		if night.Valid {
			n++
		}
	}
	return n
}
