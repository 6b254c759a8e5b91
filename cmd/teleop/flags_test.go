package main

import (
	"testing"
	"time"

	"github.com/banshee-data/subsea-teleop/internal/config"
	"github.com/banshee-data/subsea-teleop/internal/serialmux"
)

// TestFlagDefaults verifies the defaults an unconfigured vehicle starts with.
func TestFlagDefaults(t *testing.T) {
	if *configPath != config.DefaultConfigPath {
		t.Errorf("expected config default %q, got %q", config.DefaultConfigPath, *configPath)
	}
	if *inputMode != inputSerial {
		t.Errorf("expected input default %q, got %q", inputSerial, *inputMode)
	}
	if *baud != serialmux.DefaultBaudRate {
		t.Errorf("expected baud default %d, got %d", serialmux.DefaultBaudRate, *baud)
	}
	if *udpPublish != "" {
		t.Errorf("command publishing should be off by default, got %q", *udpPublish)
	}
	if *dbPath == "" {
		t.Error("session recording should be on by default")
	}
	if *devInterval != 50*time.Millisecond {
		t.Errorf("expected dev interval 50ms, got %v", *devInterval)
	}
	if *showVersion {
		t.Error("version flag should default to false")
	}
}

func TestValidateInputMode(t *testing.T) {
	for _, mode := range []string{inputSerial, inputUDP, inputPCAP, inputDev, inputNone} {
		if err := validateInputMode(mode); err != nil {
			t.Errorf("mode %q rejected: %v", mode, err)
		}
	}
	for _, mode := range []string{"", "tcp", "Serial"} {
		if err := validateInputMode(mode); err == nil {
			t.Errorf("mode %q accepted", mode)
		}
	}
}
