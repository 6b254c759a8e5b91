// Package config loads the controller parameter file. Every required key must
// be present; a missing or malformed value is fatal at startup.
package config
