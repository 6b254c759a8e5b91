// Package testutil provides shared test helpers and fixtures for the control
// packages.
package testutil

import (
	"math"
	"testing"
)

// FloatTolerance is the default tolerance for setpoint comparisons.
const FloatTolerance = 1e-9

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertNear fails the test if got and want differ by more than FloatTolerance.
func AssertNear(t testing.TB, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > FloatTolerance {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// Float64 returns a pointer to v, for building configs with optional fields.
func Float64(v float64) *float64 { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
