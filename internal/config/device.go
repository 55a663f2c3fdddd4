package config

import (
	"fmt"
	"time"

	"github.com/claude/phasewatch/internal/models"
)

// DeviceConfig configures the wearable runtime and its uploader.
type DeviceConfig struct {
	DeviceID       string              `yaml:"device_id" toml:"device_id"`
	StateDir       string              `yaml:"state_dir" toml:"state_dir"`
	Homebase       string              `yaml:"homebase" toml:"homebase"`
	ActiveHours    ActiveHours         `yaml:"active_hours" toml:"active_hours"`
	Capabilities   models.Capabilities `yaml:"capabilities" toml:"capabilities"`
	LightModifiers []int32             `yaml:"light_modifiers" toml:"light_modifiers"`
	DwellTicks     int                 `yaml:"dwell_ticks" toml:"dwell_ticks"`
	Companion      CompanionConfig     `yaml:"companion" toml:"companion"`
}

// ActiveHours is the waking window as "HH:MM" clock times.
type ActiveHours struct {
	Start string `yaml:"start" toml:"start"`
	End   string `yaml:"end" toml:"end"`
}

// CompanionConfig points the uploader at a phasewatch server.
type CompanionConfig struct {
	URL     string        `yaml:"url" toml:"url"`
	APIKey  string        `yaml:"api_key" toml:"api_key"`
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
}

// Minutes converts the window to minutes after midnight.
func (a ActiveHours) Minutes() (start, end uint16, err error) {
	s, err := clockMinutes(a.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("active_hours.start: %w", err)
	}
	e, err := clockMinutes(a.End)
	if err != nil {
		return 0, 0, fmt.Errorf("active_hours.end: %w", err)
	}
	return s, e, nil
}

func clockMinutes(s string) (uint16, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return uint16(t.Hour()*60 + t.Minute()), nil
}

// LoadDevice reads device config from a YAML (or .toml) file, then applies
// environment variable overrides:
//
//	PHASEWATCH_DEVICE_ID, PHASEWATCH_STATE_DIR, PHASEWATCH_HOMEBASE,
//	PHASEWATCH_COMPANION_URL, PHASEWATCH_COMPANION_API_KEY
func LoadDevice(path string) (*DeviceConfig, error) {
	cfg := &DeviceConfig{
		StateDir:    "phasewatch-state",
		ActiveHours: ActiveHours{Start: "07:00", End: "23:00"},
		Capabilities: models.Capabilities{
			HasAccelerometer: true,
		},
		DwellTicks: 30,
		Companion:  CompanionConfig{Timeout: 30 * time.Second},
	}
	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}

	envString("DEVICE_ID", &cfg.DeviceID)
	envString("STATE_DIR", &cfg.StateDir)
	envString("HOMEBASE", &cfg.Homebase)
	envString("COMPANION_URL", &cfg.Companion.URL)
	envString("COMPANION_API_KEY", &cfg.Companion.APIKey)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func (c *DeviceConfig) validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if c.StateDir == "" {
		return fmt.Errorf("state_dir is required")
	}
	if _, _, err := c.ActiveHours.Minutes(); err != nil {
		return err
	}
	if n := len(c.LightModifiers); n != 0 && n != 4 {
		return fmt.Errorf("light_modifiers needs 4 values (dark, dim, moderate, bright), got %d", n)
	}
	if c.DwellTicks < 0 {
		return fmt.Errorf("dwell_ticks must not be negative")
	}
	if c.Companion.URL != "" && c.Companion.APIKey == "" {
		return fmt.Errorf("companion.api_key is required when companion.url is set")
	}
	return nil
}
