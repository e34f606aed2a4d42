package main

import "time"

// Operational limits — named constants for values otherwise scattered
// across multiple source files.
const (
	// defaultAddr is the relay's default listen address (spec.md §6).
	defaultAddr = ":1302"

	// metricsInterval is how often RunMetrics logs connected-session stats.
	metricsInterval = 30 * time.Second
)
