package history

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"github.com/claude/phasewatch/internal/models"
)

const (
	// NightBytes is the packed size of one night.
	NightBytes = 16

	// ExportBytes is the size of a full 7-night export.
	ExportBytes = models.HistoryNights * NightBytes

	// ExportHexLen is the length of an export in hex transport form.
	ExportHexLen = ExportBytes * 2

	// RowBytes is the size of the persisted history row: the nights in slot
	// order, the write index and the active-hours window.
	RowBytes = ExportBytes + 1 + 2 + 2
)

// putNight packs n little-endian into b[:NightBytes].
func putNight(b []byte, n models.SleepNight) {
	binary.LittleEndian.PutUint32(b[0:], n.Onset)
	binary.LittleEndian.PutUint32(b[4:], n.Offset)
	binary.LittleEndian.PutUint16(b[8:], n.DurationMin)
	b[10] = n.Efficiency
	binary.LittleEndian.PutUint16(b[11:], n.WASOMin)
	b[13] = n.Awakenings
	b[14] = n.LightQuality
	b[15] = 0
	if n.Valid {
		b[15] = 1
	}
}

func readNight(b []byte) models.SleepNight {
	return models.SleepNight{
		Onset:        binary.LittleEndian.Uint32(b[0:]),
		Offset:       binary.LittleEndian.Uint32(b[4:]),
		DurationMin:  binary.LittleEndian.Uint16(b[8:]),
		Efficiency:   b[10],
		WASOMin:      binary.LittleEndian.Uint16(b[11:]),
		Awakenings:   b[13],
		LightQuality: b[14],
		Valid:        b[15] != 0,
	}
}

// ExportBinary writes the 7 nights oldest to newest into buf and returns the
// number of bytes written, or 0 if buf is shorter than ExportBytes.
func ExportBinary(h *models.History, buf []byte) int {
	if len(buf) < ExportBytes {
		return 0
	}
	for i, n := range h.Chronological() {
		putNight(buf[i*NightBytes:], n)
	}
	return ExportBytes
}

// DecodeExport unpacks a 112-byte export into nights, oldest first.
func DecodeExport(b []byte) ([]models.SleepNight, error) {
	if len(b) != ExportBytes {
		return nil, fmt.Errorf("export is %d bytes, want %d", len(b), ExportBytes)
	}
	nights := make([]models.SleepNight, models.HistoryNights)
	for i := range nights {
		nights[i] = readNight(b[i*NightBytes:])
	}
	return nights, nil
}

// EncodeHex returns the export in uppercase hex.
func EncodeHex(b []byte) string {
	return strings.ToUpper(hex.EncodeToString(b))
}

// DecodeHex parses a hex export. Characters outside [0-9A-Fa-f] are ignored
// so payloads may carry spaces or line breaks; the remainder must be exactly
// ExportHexLen characters.
func DecodeHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
			return r
		}
		return -1
	}, s)
	if len(clean) != ExportHexLen {
		return nil, fmt.Errorf("invalid hex length: %d (expected %d)", len(clean), ExportHexLen)
	}
	b, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("decoding hex: %w", err)
	}
	return b, nil
}

// marshalRow packs the full history, slots in storage order.
func marshalRow(h *models.History) []byte {
	b := make([]byte, RowBytes)
	for i, n := range h.Nights {
		putNight(b[i*NightBytes:], n)
	}
	b[ExportBytes] = h.WriteIndex
	binary.LittleEndian.PutUint16(b[ExportBytes+1:], h.ActiveHoursStart)
	binary.LittleEndian.PutUint16(b[ExportBytes+3:], h.ActiveHoursEnd)
	return b
}

func unmarshalRow(b []byte, h *models.History) {
	for i := range h.Nights {
		h.Nights[i] = readNight(b[i*NightBytes:])
	}
	h.WriteIndex = b[ExportBytes]
	h.ActiveHoursStart = binary.LittleEndian.Uint16(b[ExportBytes+1:])
	h.ActiveHoursEnd = binary.LittleEndian.Uint16(b[ExportBytes+3:])
}

// Quality is the companion's per-night rating: efficiency 40%, duration band
// 30%, awakenings 20%, WASO 10%, rounded to the nearest point.
func Quality(n models.SleepNight) uint8 {
	if !n.Valid {
		return 0
	}
	hours := float64(n.DurationMin) / 60
	var dur float64
	switch {
	case hours >= 7 && hours <= 9:
		dur = 100
	case hours >= 6 && hours < 7, hours > 9 && hours <= 10:
		dur = 80
	default:
		dur = 60
	}
	awake := math.Max(0, 100-float64(n.Awakenings)*15)
	waso := math.Max(0, 100-float64(n.WASOMin)/2)

	q := float64(n.Efficiency)*0.4 + dur*0.3 + awake*0.2 + waso*0.1
	return uint8(math.Floor(q + 0.5))
}
