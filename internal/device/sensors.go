package device

import (
	"math"

	"github.com/claude/phasewatch/internal/models"
)

const (
	motionWindow = 5
	luxWindow    = 5

	// FallbackTempC10 is used when no thermistor reading is available.
	FallbackTempC10 = 200

	luxDivisor       = 6
	intensityDivisor = 32
	maxIntensity     = 1000

	// motionNoiseFloor is the sample-to-sample magnitude change (mg) treated
	// as sensor noise rather than movement.
	motionNoiseFloor = 64
)

// Sensors conditions raw accelerometer, light and temperature readings.
type Sensors struct {
	caps models.Capabilities

	motion      [motionWindow]uint16
	motionIdx   int
	motionCount int
	hasPrev     bool

	lux      [luxWindow]uint16
	luxIdx   int
	luxCount int

	Magnitude uint16
	Variance  uint16
	Intensity uint16
	// Activity is the per-minute activity count for the sleep classifier:
	// the change in magnitude since the previous sample above the noise
	// floor, so constant gravity contributes nothing.
	Activity  uint16
	LuxAvg    uint16
	TempC10   int16
}

// NewSensors returns conditioning state for the given hardware.
func NewSensors(caps models.Capabilities) *Sensors {
	return &Sensors{caps: caps, TempC10: FallbackTempC10}
}

// Motion folds one accelerometer reading into the magnitude window and the
// smoothed intensity. Without an accelerometer every motion value stays 0.
func (s *Sensors) Motion(x, y, z int16) {
	if !s.caps.HasAccelerometer {
		s.Magnitude, s.Variance, s.Intensity, s.Activity = 0, 0, 0, 0
		return
	}
	mag := min(math.MaxUint16, absInt(int(x))+absInt(int(y))+absInt(int(z)))
	s.Activity = 0
	if s.hasPrev {
		s.Activity = activityCount(absInt(mag - int(s.Magnitude)))
	}
	s.hasPrev = true
	s.Magnitude = uint16(mag)

	s.motion[s.motionIdx] = s.Magnitude
	s.motionIdx = (s.motionIdx + 1) % motionWindow
	if s.motionCount < motionWindow {
		s.motionCount++
	}

	s.Variance = variance(s.motion[:s.motionCount])
	s.Intensity = smooth(s.Magnitude, s.Intensity)
}

func variance(buf []uint16) uint16 {
	if len(buf) < 2 {
		return 0
	}
	var sum uint32
	for _, v := range buf {
		sum += uint32(v)
	}
	mean := int64(sum) / int64(len(buf))

	var sq int64
	for _, v := range buf {
		d := int64(v) - mean
		sq += d * d
	}
	return uint16(min(math.MaxUint16, sq/int64(len(buf))))
}

func activityCount(delta int) uint16 {
	if delta <= motionNoiseFloor {
		return 0
	}
	return uint16(min(maxIntensity, (delta-motionNoiseFloor)/intensityDivisor))
}

func smooth(mag, prev uint16) uint16 {
	scaled := min(maxIntensity, uint32(mag)/intensityDivisor)
	return uint16((uint32(prev)*3 + scaled) / 4)
}

// Light converts a raw ADC reading to lux and updates the rolling average.
// Boards without a light sensor report 0.
func (s *Sensors) Light(raw uint16) {
	if !s.caps.HasLightSensor {
		s.LuxAvg = 0
		return
	}
	s.lux[s.luxIdx] = raw / luxDivisor
	s.luxIdx = (s.luxIdx + 1) % luxWindow
	if s.luxCount < luxWindow {
		s.luxCount++
	}

	var sum uint32
	for _, v := range s.lux[:s.luxCount] {
		sum += uint32(v)
	}
	s.LuxAvg = uint16(sum / uint32(s.luxCount))
}

// Temperature records a thermistor reading in °C, rounded to 0.1 °C. A
// missing or non-finite reading falls back to 20.0 °C.
func (s *Sensors) Temperature(celsius float64, ok bool) {
	if !ok || math.IsNaN(celsius) || math.IsInf(celsius, 0) {
		s.TempC10 = FallbackTempC10
		return
	}
	v := math.Floor(celsius*10 + 0.5)
	s.TempC10 = int16(max(math.MinInt16, min(math.MaxInt16, v)))
}

// LightLevel squeezes lux into the classifier's 8-bit light level.
func LightLevel(lux uint16) uint8 {
	return uint8(min(math.MaxUint8, lux))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
