// Package config manages persisted client preferences for the muco client
// binary. Settings are stored as JSON at os.UserConfigDir()/muco/config.json.
package config

import (
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
)

// Config holds the client's persistent local state: its stable device
// identity (sent in the connection prelude, spec.md §4.8) and the list of
// relays it knows about, shown in a server picker alongside whatever mDNS
// discovery (C10) finds live on the network.
type Config struct {
	DeviceId uint32        `json:"device_id"`
	Servers  []ServerEntry `json:"servers"`
}

// ServerEntry is a saved relay address, either entered manually or promoted
// from a discovered peer the user chose to remember.
type ServerEntry struct {
	Name string `json:"name"`
	Addr string `json:"addr"`
}

// Default returns a Config with a freshly generated device id and no saved
// servers — discovery (C10) is expected to populate the picker on first run.
func Default() Config {
	return Config{DeviceId: rand.Uint32()}
}

// Path returns the absolute path to the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "muco", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, a fresh default config is returned — never an error, since a
// missing config on first run is the expected case, not a failure.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	if cfg.DeviceId == 0 {
		cfg.DeviceId = rand.Uint32()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// AddServer appends entry to cfg's known-server list unless addr is already
// present, returning the updated config.
func (cfg Config) AddServer(entry ServerEntry) Config {
	for _, s := range cfg.Servers {
		if s.Addr == entry.Addr {
			return cfg
		}
	}
	cfg.Servers = append(cfg.Servers, entry)
	return cfg
}
