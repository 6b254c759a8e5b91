package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/subsea-teleop/internal/testutil"
)

func validFile() map[string]any {
	return map[string]any{
		"enable_attitude": true,
		"enable_depth":    false,
		"rate":            20.0,
		"max_roll_limit":  15.0,
		"max_pitch_limit": 20.0,
		"max_x_force":     40.0,
		"max_y_force":     41.0,
		"max_z_force":     30.0,
		"max_x_moment":    10.0,
		"max_y_moment":    11.0,
		"max_z_moment":    12.0,
		"max_depth":       5.0,
		"cmd_roll_rate":   10.0,
		"cmd_pitch_rate":  10.0,
		"cmd_yaw_rate":    30.0,
		"cmd_depth_rate":  0.3,
		"boost":           2.0,
	}
}

func writeConfig(t *testing.T, doc map[string]any) string {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "teleop.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestLoad_ValidFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, validFile()))
	require.NoError(t, err)

	assert.True(t, cfg.EnableAttitude)
	assert.False(t, cfg.EnableDepth)
	assert.Equal(t, 20.0, cfg.Rate)
	assert.Equal(t, 15.0, cfg.MaxRoll)
	assert.Equal(t, 41.0, cfg.MaxYForce)
	assert.Equal(t, 12.0, cfg.MaxZMoment)
	assert.Equal(t, 0.3, cfg.DepthRate)
	assert.Equal(t, 50*time.Millisecond, cfg.Period())

	// optional defaults
	assert.False(t, cfg.EnablePneumatics)
	assert.Equal(t, 250*time.Millisecond, cfg.PneumaticsDuration)
	assert.Equal(t, 0.0, cfg.TriggerRestValue)
	assert.Equal(t, 0.1, cfg.SettleDepthError)
	assert.Equal(t, 3.0, cfg.SettleYawError)
	assert.Equal(t, 2*time.Second, cfg.SettleDuration)
	assert.Equal(t, 5, cfg.LinkMinFrames)
	assert.Equal(t, time.Second, cfg.LinkWindow)
}

func TestLoad_EveryRequiredKeyIsFatalWhenMissing(t *testing.T) {
	for key := range validFile() {
		t.Run(key, func(t *testing.T) {
			doc := validFile()
			delete(doc, key)

			_, err := Load(writeConfig(t, doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingParam)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_RejectsMalformedValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"negative limit", "max_depth", -1.0},
		{"zero rate", "rate", 0.0},
		{"negative boost", "boost", -2.0},
		{"wrong type", "max_roll_limit", "fifteen"},
		{"bad settle duration", "settle_duration", "soon"},
		{"zero link frames", "link_min_frames", 0},
		{"rest value out of range", "trigger_rest_value", 2.0},
		{"non-positive pneumatics duration", "pneumatics_duration_ms", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := validFile()
			doc[tt.key] = tt.value
			_, err := Load(writeConfig(t, doc))
			assert.Error(t, err)
		})
	}
}

func TestLoad_OptionalOverrides(t *testing.T) {
	doc := validFile()
	doc["enable_pneumatics"] = true
	doc["pneumatics_duration_ms"] = 400
	doc["trigger_rest_value"] = 1.0
	doc["settle_duration"] = "500ms"
	doc["link_window"] = "250ms"
	doc["link_min_frames"] = 3

	cfg, err := Load(writeConfig(t, doc))
	require.NoError(t, err)
	assert.True(t, cfg.EnablePneumatics)
	assert.Equal(t, 400*time.Millisecond, cfg.PneumaticsDuration)
	assert.Equal(t, 1.0, cfg.TriggerRestValue)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleDuration)
	assert.Equal(t, 250*time.Millisecond, cfg.LinkWindow)
	assert.Equal(t, 3, cfg.LinkMinFrames)
}

func TestLoadFile_PathChecks(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "teleop.yaml"))
	assert.ErrorContains(t, err, ".json extension")

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.ErrorContains(t, err, "failed to stat")

	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	_, err = LoadFile(path)
	assert.ErrorContains(t, err, "failed to parse")
}

func TestMustLoadDefault(t *testing.T) {
	cfg := MustLoadDefault()
	assert.Greater(t, cfg.Rate, 0.0)
	assert.GreaterOrEqual(t, cfg.Boost, 1.0)
}

func TestResolve_DirectFile(t *testing.T) {
	f := &File{
		EnableAttitude: testutil.Bool(true),
		EnableDepth:    testutil.Bool(true),
		Rate:           testutil.Float64(40),
		MaxRoll:        testutil.Float64(15),
		MaxPitch:       testutil.Float64(20),
		MaxXForce:      testutil.Float64(40),
		MaxYForce:      testutil.Float64(40),
		MaxZForce:      testutil.Float64(30),
		MaxXMoment:     testutil.Float64(10),
		MaxYMoment:     testutil.Float64(10),
		MaxZMoment:     testutil.Float64(10),
		MaxDepth:       testutil.Float64(5),
		RollRate:       testutil.Float64(10),
		PitchRate:      testutil.Float64(10),
		YawRate:        testutil.Float64(30),
		DepthRate:      testutil.Float64(0.3),
		Boost:          testutil.Float64(2),
	}
	cfg, err := f.Resolve()
	testutil.AssertNoError(t, err)
	assert.Equal(t, 25*time.Millisecond, cfg.Period())
	testutil.AssertNear(t, "max depth", cfg.MaxDepth, 5)

	f.Rate = nil
	_, err = f.Resolve()
	testutil.AssertError(t, err)
	assert.ErrorIs(t, err, ErrMissingParam)
}

func TestLoad_RejectsRateWithZeroPeriod(t *testing.T) {
	doc := validFile()
	doc["rate"] = 2e9
	_, err := Load(writeConfig(t, doc))
	assert.ErrorContains(t, err, "period rounds to zero")

	doc["rate"] = 1e9
	cfg, err := Load(writeConfig(t, doc))
	require.NoError(t, err)
	assert.Equal(t, time.Nanosecond, cfg.Period())
}
