// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults applied when neither the file nor a flag sets a value.
const (
	DefaultTimeout  = 15 * time.Second
	DefaultTimezone = "Asia/Tokyo"
	DefaultListen   = ":8788"
	DefaultLogLevel = "info"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	API    APIConfig    `toml:"api"`
	Client ClientConfig `toml:"client"`
	Groups GroupsConfig `toml:"groups"`
	Relay  RelayConfig  `toml:"relay"`
	Log    LogConfig    `toml:"log"`
}

// APIConfig maps backend endpoint settings.
type APIConfig struct {
	Endpoint *string `toml:"endpoint"`
	Timeout  *string `toml:"timeout"`
}

// ClientConfig maps client-side presentation settings.
type ClientConfig struct {
	Timezone *string `toml:"timezone"`
}

// GroupsConfig maps the group selector.
type GroupsConfig struct {
	Prefix *string `toml:"prefix"`
	Count  *int    `toml:"count"`
}

// RelayConfig maps the relay server.
type RelayConfig struct {
	Listen  *string `toml:"listen"`
	Backend *string `toml:"backend"`
}

// LogConfig maps logger settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// Timeout parses [api] timeout, falling back to DefaultTimeout.
func (c FileConfig) Timeout() (time.Duration, error) {
	if c.API.Timeout == nil || *c.API.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(*c.API.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid api timeout %q: %w", *c.API.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("api timeout must be positive, got %s", d)
	}
	return d, nil
}

// Location loads [client] timezone, falling back to DefaultTimezone.
func (c FileConfig) Location() (*time.Location, error) {
	name := DefaultTimezone
	if c.Client.Timezone != nil && *c.Client.Timezone != "" {
		name = *c.Client.Timezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", name, err)
	}
	return loc, nil
}

// Template is written by "habit config" when no file exists yet.
const Template = `# habit configuration

[api]
# endpoint = "https://habit.example.pages.dev/api/gas"
timeout = "15s"

[client]
timezone = "Asia/Tokyo"

[groups]
prefix = "グループ"
count = 200

[relay]
listen = ":8788"
# backend = "https://script.google.com/macros/s/XXXX/exec"

[log]
level = "info"
# file = ""
`
