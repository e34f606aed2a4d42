package main

import "muco/client/internal/config"

// Config holds the client's persistent local state (device id, known
// servers). Re-exported at package main scope so main.go can reference it
// without a qualified import.
type Config = config.Config

// ServerEntry is a saved relay address.
type ServerEntry = config.ServerEntry

// LoadConfig loads the config from disk, returning defaults on any error.
func LoadConfig() Config { return config.Load() }

// SaveConfig persists cfg to disk.
func SaveConfig(cfg Config) error { return config.Save(cfg) }
