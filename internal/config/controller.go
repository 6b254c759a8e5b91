package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/units"
)

// DefaultConfigPath is the path to the checked-in controller parameters.
const DefaultConfigPath = "config/teleop.defaults.json"

const maxFileSize = 1 * 1024 * 1024 // 1MB

// ErrMissingParam is returned when a required parameter is absent. The
// controller cannot run with undefined limits or rates.
var ErrMissingParam = errors.New("required parameter missing")

// File is the on-disk controller configuration. Pointer fields distinguish an
// absent key from an explicit zero.
type File struct {
	// Assist trust at startup
	EnableAttitude *bool `json:"enable_attitude,omitempty"`
	EnableDepth    *bool `json:"enable_depth,omitempty"`

	// Tick rate [Hz]
	Rate *float64 `json:"rate,omitempty"`

	// Magnitude ceilings
	MaxRoll    *float64 `json:"max_roll_limit,omitempty"`  // [deg]
	MaxPitch   *float64 `json:"max_pitch_limit,omitempty"` // [deg]
	MaxXForce  *float64 `json:"max_x_force,omitempty"`
	MaxYForce  *float64 `json:"max_y_force,omitempty"`
	MaxZForce  *float64 `json:"max_z_force,omitempty"`
	MaxXMoment *float64 `json:"max_x_moment,omitempty"`
	MaxYMoment *float64 `json:"max_y_moment,omitempty"`
	MaxZMoment *float64 `json:"max_z_moment,omitempty"`
	MaxDepth   *float64 `json:"max_depth,omitempty"` // [m]

	// Nominal command rates
	RollRate  *float64 `json:"cmd_roll_rate,omitempty"`  // [deg/s]
	PitchRate *float64 `json:"cmd_pitch_rate,omitempty"` // [deg/s]
	YawRate   *float64 `json:"cmd_yaw_rate,omitempty"`   // [deg/s]
	DepthRate *float64 `json:"cmd_depth_rate,omitempty"` // [m/s]

	// Multiplier applied while the boost button is held. 1 means no boost.
	Boost *float64 `json:"boost,omitempty"`

	// Optional
	EnablePneumatics     *bool    `json:"enable_pneumatics,omitempty"`
	PneumaticsDurationMs *int     `json:"pneumatics_duration_ms,omitempty"`
	TriggerRestValue     *float64 `json:"trigger_rest_value,omitempty"`
	SettleDepthError     *float64 `json:"settle_depth_error,omitempty"`
	SettleYawError       *float64 `json:"settle_yaw_error,omitempty"`
	SettleDuration       *string  `json:"settle_duration,omitempty"` // duration string like "2s"
	LinkMinFrames        *int     `json:"link_min_frames,omitempty"`
	LinkWindow           *string  `json:"link_window,omitempty"` // duration string like "1s"
}

// ControllerConfig is the resolved, immutable parameter set consumed by the
// controller and its runner.
type ControllerConfig struct {
	EnableAttitude bool
	EnableDepth    bool

	Rate float64

	MaxRoll    float64
	MaxPitch   float64
	MaxXForce  float64
	MaxYForce  float64
	MaxZForce  float64
	MaxXMoment float64
	MaxYMoment float64
	MaxZMoment float64
	MaxDepth   float64

	RollRate  float64
	PitchRate float64
	YawRate   float64
	DepthRate float64

	Boost float64

	EnablePneumatics   bool
	PneumaticsDuration time.Duration
	TriggerRestValue   float64

	SettleDepthError float64
	SettleYawError   float64
	SettleDuration   time.Duration
	LinkMinFrames    int
	LinkWindow       time.Duration
}

// Period returns the tick period implied by Rate.
func (c ControllerConfig) Period() time.Duration {
	return time.Duration(float64(time.Second) / c.Rate)
}

// Load reads, validates and resolves the controller configuration at path.
func Load(path string) (ControllerConfig, error) {
	f, err := LoadFile(path)
	if err != nil {
		return ControllerConfig{}, err
	}
	return f.Resolve()
}

// LoadFile reads a File from a JSON document. The path must have a .json
// extension and the file must be under 1MB.
func LoadFile(path string) (*File, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	f := &File{}
	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	return f, nil
}

// MustLoadDefault loads DefaultConfigPath, searching up from the working
// directory. It panics on failure and is intended for tests.
func MustLoadDefault() ControllerConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Resolve validates every field and returns the immutable ControllerConfig.
// Errors for absent required keys wrap ErrMissingParam.
func (f *File) Resolve() (ControllerConfig, error) {
	var cfg ControllerConfig
	var err error

	if cfg.EnableAttitude, err = requireBool("enable_attitude", f.EnableAttitude); err != nil {
		return cfg, err
	}
	if cfg.EnableDepth, err = requireBool("enable_depth", f.EnableDepth); err != nil {
		return cfg, err
	}

	limits := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"rate", f.Rate, &cfg.Rate},
		{"max_roll_limit", f.MaxRoll, &cfg.MaxRoll},
		{"max_pitch_limit", f.MaxPitch, &cfg.MaxPitch},
		{"max_x_force", f.MaxXForce, &cfg.MaxXForce},
		{"max_y_force", f.MaxYForce, &cfg.MaxYForce},
		{"max_z_force", f.MaxZForce, &cfg.MaxZForce},
		{"max_x_moment", f.MaxXMoment, &cfg.MaxXMoment},
		{"max_y_moment", f.MaxYMoment, &cfg.MaxYMoment},
		{"max_z_moment", f.MaxZMoment, &cfg.MaxZMoment},
		{"max_depth", f.MaxDepth, &cfg.MaxDepth},
		{"cmd_roll_rate", f.RollRate, &cfg.RollRate},
		{"cmd_pitch_rate", f.PitchRate, &cfg.PitchRate},
		{"cmd_yaw_rate", f.YawRate, &cfg.YawRate},
		{"cmd_depth_rate", f.DepthRate, &cfg.DepthRate},
		{"boost", f.Boost, &cfg.Boost},
	}
	for _, l := range limits {
		if *l.dst, err = requireLimit(l.name, l.src); err != nil {
			return cfg, err
		}
	}
	if cfg.Rate <= 0 {
		return cfg, fmt.Errorf("rate must be > 0, got %f", cfg.Rate)
	}
	if cfg.Period() <= 0 {
		return cfg, fmt.Errorf("rate %g Hz is too high: tick period rounds to zero", cfg.Rate)
	}

	cfg.EnablePneumatics = f.EnablePneumatics != nil && *f.EnablePneumatics

	cfg.PneumaticsDuration = 250 * time.Millisecond
	if f.PneumaticsDurationMs != nil {
		if *f.PneumaticsDurationMs <= 0 {
			return cfg, fmt.Errorf("pneumatics_duration_ms must be positive, got %d", *f.PneumaticsDurationMs)
		}
		cfg.PneumaticsDuration = time.Duration(*f.PneumaticsDurationMs) * time.Millisecond
	}

	if f.TriggerRestValue != nil {
		if *f.TriggerRestValue < -1 || *f.TriggerRestValue > 1 {
			return cfg, fmt.Errorf("trigger_rest_value must be between -1 and 1, got %f", *f.TriggerRestValue)
		}
		cfg.TriggerRestValue = *f.TriggerRestValue
	}

	if cfg.SettleDepthError, err = optionalLimit("settle_depth_error", f.SettleDepthError, 0.1); err != nil {
		return cfg, err
	}
	if cfg.SettleYawError, err = optionalLimit("settle_yaw_error", f.SettleYawError, 3); err != nil {
		return cfg, err
	}
	if cfg.SettleDuration, err = optionalDuration("settle_duration", f.SettleDuration, 2*time.Second); err != nil {
		return cfg, err
	}
	if cfg.LinkWindow, err = optionalDuration("link_window", f.LinkWindow, time.Second); err != nil {
		return cfg, err
	}

	cfg.LinkMinFrames = 5
	if f.LinkMinFrames != nil {
		if *f.LinkMinFrames < 1 {
			return cfg, fmt.Errorf("link_min_frames must be at least 1, got %d", *f.LinkMinFrames)
		}
		cfg.LinkMinFrames = *f.LinkMinFrames
	}

	return cfg, nil
}

func requireBool(name string, v *bool) (bool, error) {
	if v == nil {
		return false, fmt.Errorf("%q: %w", name, ErrMissingParam)
	}
	return *v, nil
}

func requireLimit(name string, v *float64) (float64, error) {
	if v == nil {
		return 0, fmt.Errorf("%q: %w", name, ErrMissingParam)
	}
	if !units.IsFiniteNonNegative(*v) {
		return 0, fmt.Errorf("%s must be finite and non-negative, got %f", name, *v)
	}
	return *v, nil
}

func optionalLimit(name string, v *float64, def float64) (float64, error) {
	if v == nil {
		return def, nil
	}
	return requireLimit(name, v)
}

func optionalDuration(name string, v *string, def time.Duration) (time.Duration, error) {
	if v == nil || *v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s '%s': %w", name, *v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", name, *v)
	}
	return d, nil
}
