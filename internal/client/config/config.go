package config

import "time"

// Config holds runtime settings for the Guardline CLI.
//
// Fields:
//   - APIBaseURL: base URL of the Guardline identity API.
//   - DatabasePath: path of the local SQLite session database.
//   - RequestTimeout: per-request timeout for API calls.
//   - RefreshLeeway: how long before access token expiry a scheduled
//     refresh fires.
//
// Units: RequestTimeout and RefreshLeeway are time.Durations.
type Config struct {
	APIBaseURL     string
	DatabasePath   string
	RequestTimeout time.Duration
	RefreshLeeway  time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://127.0.0.1:8000"
	c.DatabasePath = "guardline.db"
	c.RequestTimeout = 15 * time.Second
	c.RefreshLeeway = 60 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
