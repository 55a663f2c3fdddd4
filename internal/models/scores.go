package models

// ScoreComponents is the circadian score breakdown. Every field is in [0,100].
type ScoreComponents struct {
	Timing     uint8 `json:"timing"`
	Duration   uint8 `json:"duration"`
	Efficiency uint8 `json:"efficiency"`
	Compliance uint8 `json:"compliance"`
	Light      uint8 `json:"light"`
	Overall    uint8 `json:"overall"`
}

// Metric identifies one derived metric. The order matches the playlist weight columns.
type Metric uint8

const (
	MetricSleepDebt Metric = iota
	MetricEmotional
	MetricWakeMomentum
	MetricEnergy
	MetricComfort
)

// MetricCount is the number of derived metrics.
const MetricCount = 5

var metricNames = [MetricCount]string{"SD", "EM", "WK", "Energy", "Comfort"}

func (m Metric) String() string {
	if int(m) < MetricCount {
		return metricNames[m]
	}
	return "unknown"
}

// MetricsSnapshot holds the current derived metric values, each in [0,100].
type MetricsSnapshot struct {
	SleepDebt    uint8 `json:"sd"`
	Emotional    uint8 `json:"em"`
	WakeMomentum uint8 `json:"wk"`
	Energy       uint8 `json:"energy"`
	Comfort      uint8 `json:"comfort"`
}

// NeutralSnapshot returns a snapshot with every metric at 50.
func NeutralSnapshot() MetricsSnapshot {
	return MetricsSnapshot{SleepDebt: 50, Emotional: 50, WakeMomentum: 50, Energy: 50, Comfort: 50}
}

// Value returns the value of metric m.
func (s MetricsSnapshot) Value(m Metric) uint8 {
	switch m {
	case MetricSleepDebt:
		return s.SleepDebt
	case MetricEmotional:
		return s.Emotional
	case MetricWakeMomentum:
		return s.WakeMomentum
	case MetricEnergy:
		return s.Energy
	case MetricComfort:
		return s.Comfort
	}
	return 0
}

// Capabilities describes which sensors the host provides.
type Capabilities struct {
	HasAccelerometer bool `yaml:"has_accelerometer" toml:"has_accelerometer" json:"has_accelerometer"`
	HasLightSensor   bool `yaml:"has_light_sensor" toml:"has_light_sensor" json:"has_light_sensor"`
}
