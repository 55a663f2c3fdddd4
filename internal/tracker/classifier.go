// Package tracker turns per-minute motion and light samples into a sleep/wake
// series and accumulates the in-progress night.
package tracker

// WindowSize is the number of one-minute activity counts in the Cole-Kripke window.
const WindowSize = 11

// BaseThreshold is the sleep threshold in the same x1000 fixed-point scale as the weights.
const BaseThreshold = 1000

// Weights are the Cole-Kripke coefficients applied oldest-first over the window.
var Weights = [WindowSize]int32{404, 598, 326, 441, 1408, 598, 326, 441, 404, 598, 0}

// LightClass buckets ambient light on the 0-255 sensor scale.
type LightClass uint8

const (
	LightDark LightClass = iota
	LightDim
	LightModerate
	LightBright
)

func (c LightClass) String() string {
	switch c {
	case LightDark:
		return "dark"
	case LightDim:
		return "dim"
	case LightModerate:
		return "moderate"
	case LightBright:
		return "bright"
	}
	return "unknown"
}

const (
	lightThresholdDark     = 10
	lightThresholdDim      = 50
	lightThresholdModerate = 150
)

// DefaultLightModifiers shift the threshold per light class: darkness favours
// sleep, bright light favours wake.
var DefaultLightModifiers = [4]int32{-200, -50, 100, 400}

// ClassifyLight maps a raw light level to its class.
func ClassifyLight(level uint8) LightClass {
	switch {
	case level < lightThresholdDark:
		return LightDark
	case level < lightThresholdDim:
		return LightDim
	case level < lightThresholdModerate:
		return LightModerate
	default:
		return LightBright
	}
}

// Classifier holds the sliding activity window. The zero value is not ready;
// use NewClassifier.
type Classifier struct {
	window    [WindowSize]uint16
	index     int
	modifiers [4]int32
	lastLight LightClass
}

// NewClassifier returns a classifier with an empty window and the given
// light modifiers. A nil modifiers slice selects DefaultLightModifiers.
func NewClassifier(modifiers []int32) *Classifier {
	c := &Classifier{modifiers: DefaultLightModifiers}
	if len(modifiers) == len(c.modifiers) {
		copy(c.modifiers[:], modifiers)
	}
	return c
}

// Reset clears the activity window.
func (c *Classifier) Reset() {
	c.window = [WindowSize]uint16{}
	c.index = 0
	c.lastLight = LightDark
}

// Score returns the weighted activity sum over the current window.
func (c *Classifier) Score() int32 {
	var score int32
	for i := range WindowSize {
		score += Weights[i] * int32(c.window[(c.index+i)%WindowSize])
	}
	return score
}

// Threshold returns the sleep threshold for a light class.
func (c *Classifier) Threshold(class LightClass) int32 {
	return BaseThreshold + c.modifiers[class]
}

// Classify shifts one minute of activity into the window and reports whether
// the epoch is sleep.
func (c *Classifier) Classify(activity uint16, light uint8) bool {
	c.window[c.index] = activity
	c.index = (c.index + 1) % WindowSize

	c.lastLight = ClassifyLight(light)
	return c.Score() < c.Threshold(c.lastLight)
}

// LastLightClass returns the light class of the most recent epoch.
func (c *Classifier) LastLightClass() LightClass {
	return c.lastLight
}
