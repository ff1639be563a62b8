package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"microarp/arp"
)

// TuningConfig holds the pitch reference the encoder works from
type TuningConfig struct {
	BaseFrequencyHz    float64 `json:"baseFrequencyHz,omitempty"`
	BendRangeSemitones float64 `json:"bendRangeSemitones,omitempty"`
}

// TransportConfig defines how MIDI leaves (and enters) the process
type TransportConfig struct {
	BridgeURL    string `json:"bridgeUrl,omitempty"`
	SerialDevice string `json:"serialDevice,omitempty"`
	SerialBaud   int    `json:"serialBaud,omitempty"`
	InputPort    string `json:"inputPort,omitempty"`
	OutputPort   string `json:"outputPort,omitempty"`
}

// Config is the main configuration structure
type Config struct {
	TempoBPM  float64         `json:"tempoBpm,omitempty"`
	Tuning    TuningConfig    `json:"tuning,omitempty"`
	Transport TransportConfig `json:"transport,omitempty"`
	Arp       arp.Config      `json:"arp"`
	Debug     bool            `json:"debug,omitempty"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		TempoBPM: 120,
		Tuning: TuningConfig{
			BaseFrequencyHz:    440,
			BendRangeSemitones: 12,
		},
		Transport: TransportConfig{
			SerialBaud: 115200,
		},
		Arp: arp.DefaultConfig(),
	}
}

// ConfigDir returns the config directory path
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "microarp"), nil
}

// ConfigPath returns the full path to config.json
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	path, err := ConfigPath()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate clamps every out-of-range value so the clock and the encoder
// always see playable input. A hand-edited config never crashes playback,
// it just gets nudged back into range.
func (c *Config) Validate() {
	if c.TempoBPM <= 0 {
		c.TempoBPM = 120
	}
	c.TempoBPM = clampFloat(c.TempoBPM, 20, 999)

	if c.Tuning.BaseFrequencyHz <= 0 {
		c.Tuning.BaseFrequencyHz = 440
	}
	if c.Tuning.BendRangeSemitones <= 0 {
		c.Tuning.BendRangeSemitones = 12
	}
	if c.Transport.SerialBaud <= 0 {
		c.Transport.SerialBaud = 115200
	}

	// A wholly absent arp section means defaults, not a pile of clamped
	// zeroes.
	if (c.Arp == arp.Config{}) {
		c.Arp = arp.DefaultConfig()
	}
	if !c.Arp.Direction.Valid() {
		c.Arp.Direction = arp.DirectionOrder
	}
	if !c.Arp.Division.Valid() {
		c.Arp.Division = arp.DivEighth
	}
	if c.Arp.OctaveSpan < 1 {
		c.Arp.OctaveSpan = 1
	}
	if c.Arp.OctaveSpan > 4 {
		c.Arp.OctaveSpan = 4
	}
	c.Arp.SwingPercent = clampFloat(c.Arp.SwingPercent, 0, 100)
	c.Arp.GateFraction = clampFloat(c.Arp.GateFraction, 0.1, 1.0)
	c.Arp.Probability = clampFloat(c.Arp.Probability, 0, 1)
	c.Arp.HumanizeMs = clampFloat(c.Arp.HumanizeMs, 0, 100)
	if c.Arp.PatternLength < 1 {
		c.Arp.PatternLength = 1
	}
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
