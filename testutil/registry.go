package testutil

import (
	"time"

	"toolbridge"
)

// NewTestRegistry returns a Registry with a long timeout and panic recovery
// enabled, suitable for tests.
func NewTestRegistry(tools ...toolbridge.Tool) *toolbridge.Registry {
	reg := toolbridge.NewRegistry(
		toolbridge.WithDefaultTimeout(30*time.Second),
		toolbridge.WithRecoverPanics(true),
	)
	for _, t := range tools {
		reg.Register(t)
	}
	return reg
}
