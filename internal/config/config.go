package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config is the persistent application configuration
type Config struct {
	// Directory holding the database, logs and event log. Empty means ~/.rangefilter.
	DataDir string `json:"data_dir,omitempty"`

	// Filter engine tuning
	Filter FilterConfig `json:"filter"`

	// UI preferences
	UI UIConfig `json:"ui"`

	// Where the filter session is kept
	Session SessionConfig `json:"session"`

	// Observability toggles
	Events EventsConfig `json:"events"`
}

// FilterConfig tunes the chunked filter engine.
type FilterConfig struct {
	ChunkSize       int    `json:"chunk_size"`        // records applied per chunk
	InlineThreshold int    `json:"inline_threshold"`  // at or below this many records, apply in one chunk
	FrameIntervalMs int    `json:"frame_interval_ms"` // TUI frame tick between chunks
	ChunksPerSecond int    `json:"chunks_per_second"` // headless apply pacing, 0 = unpaced
	DefaultPreset   string `json:"default_preset,omitempty"`
}

// UIConfig holds UI preferences
type UIConfig struct {
	Theme       string `json:"theme"`
	ShowSummary bool   `json:"show_summary"`
}

// Session backends.
const (
	SessionSQLite = "sqlite" // kv table in the entries database
	SessionFile   = "file"   // one JSON file per key under SessionDir
)

// SessionConfig selects the session backend.
type SessionConfig struct {
	Backend string `json:"backend"`
}

// EventsConfig controls the JSONL event log.
type EventsConfig struct {
	Enabled  bool `json:"enabled"`
	RingSize int  `json:"ring_size"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Filter: FilterConfig{
			ChunkSize:       20,
			InlineThreshold: 50,
			FrameIntervalMs: 16,
			ChunksPerSecond: 0,
		},
		UI: UIConfig{
			Theme:       "dark",
			ShowSummary: true,
		},
		Session: SessionConfig{
			Backend: SessionSQLite,
		},
		Events: EventsConfig{
			Enabled:  true,
			RingSize: 1024,
		},
	}
}

// DefaultDataDir returns ~/.rangefilter.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".rangefilter")
}

// ConfigPath returns the path to the config file
func ConfigPath() string {
	if p := os.Getenv("RANGEFILTER_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(DefaultDataDir(), "config.json")
}

// Load reads config from disk, or returns defaults. A corrupt file yields
// defaults rather than an error so the tool always starts.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom is Load with an explicit path.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			cfg.ApplyEnv()
			cfg.normalize()
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		cfg = DefaultConfig()
	}
	cfg.ApplyEnv()
	cfg.normalize()
	return cfg, nil
}

// Save writes config to disk
func (c *Config) Save() error {
	return c.SaveTo(ConfigPath())
}

// SaveTo writes config to path, creating its directory.
func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overrides fields from RANGEFILTER_* environment variables.
func (c *Config) ApplyEnv() {
	if dir := os.Getenv("RANGEFILTER_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
	if n, err := strconv.Atoi(os.Getenv("RANGEFILTER_CHUNK_SIZE")); err == nil && n > 0 {
		c.Filter.ChunkSize = n
	}
	if p := os.Getenv("RANGEFILTER_PRESET"); p != "" {
		c.Filter.DefaultPreset = p
	}
	if b := os.Getenv("RANGEFILTER_SESSION"); b != "" {
		c.Session.Backend = b
	}
}

// normalize replaces out-of-range values with defaults.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Filter.ChunkSize <= 0 {
		c.Filter.ChunkSize = def.Filter.ChunkSize
	}
	if c.Filter.InlineThreshold < 0 {
		c.Filter.InlineThreshold = def.Filter.InlineThreshold
	}
	if c.Filter.FrameIntervalMs <= 0 {
		c.Filter.FrameIntervalMs = def.Filter.FrameIntervalMs
	}
	if c.Filter.ChunksPerSecond < 0 {
		c.Filter.ChunksPerSecond = 0
	}
	switch c.Session.Backend {
	case SessionSQLite, SessionFile:
	default:
		c.Session.Backend = def.Session.Backend
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.Events.RingSize <= 0 {
		c.Events.RingSize = def.Events.RingSize
	}
}

// Dir returns the effective data directory.
func (c *Config) Dir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

// DBPath returns the SQLite database path.
func (c *Config) DBPath() string {
	if p := os.Getenv("RANGEFILTER_DB"); p != "" {
		return p
	}
	return filepath.Join(c.Dir(), "rangefilter.db")
}

// LogDir returns the directory for the charmbracelet log file.
func (c *Config) LogDir() string {
	return filepath.Join(c.Dir(), "logs")
}

// SessionDir returns the directory of the file session backend.
func (c *Config) SessionDir() string {
	return filepath.Join(c.Dir(), "session")
}

// EventLogPath returns the JSONL event log path.
func (c *Config) EventLogPath() string {
	return filepath.Join(c.Dir(), "events.jsonl")
}

// FrameInterval returns the TUI frame tick as a duration.
func (c *Config) FrameInterval() time.Duration {
	return time.Duration(c.Filter.FrameIntervalMs) * time.Millisecond
}
