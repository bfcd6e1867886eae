// Package config provides configuration management for the GoPotluck hub.
// It supports JSON-based configuration loading with safe defaults suitable
// for a single-node deployment.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config holds all tunable parameters for the session hub.
// The struct is loaded once at startup and then shared across goroutines as
// a read-only value, making it inherently thread-safe after initialization.
type Config struct {
	// ListenAddr is the address the WebSocket endpoint listens on.
	ListenAddr string `json:"listen_addr"`

	// WSPath is the HTTP path clients dial to open a session connection.
	WSPath string `json:"ws_path"`

	// DashboardAddr is the address of the observability HTTP server.
	// Leave empty to disable the dashboard entirely.
	DashboardAddr string `json:"dashboard_addr"`

	// SessionTTL is how long a session may sit idle before the reaper
	// deletes it.  Any command that mutates a session resets the clock.
	// Encoded in JSON as nanoseconds, like all time.Duration fields.
	SessionTTL time.Duration `json:"session_ttl"`

	// ReapInterval is how often the reaper sweeps for expired sessions.
	ReapInterval time.Duration `json:"reap_interval"`

	// WriteTimeout bounds a single frame write to a peer.  A peer that
	// cannot accept a frame within this window is treated as dead.
	WriteTimeout time.Duration `json:"write_timeout"`

	// PongTimeout is how long a connection may go without answering a
	// ping before its read side is torn down.
	PongTimeout time.Duration `json:"pong_timeout"`

	// HandshakeTimeout bounds the WebSocket upgrade handshake.
	HandshakeTimeout time.Duration `json:"handshake_timeout"`

	// MaxMessageSize caps a single inbound frame in bytes.  Commands are
	// small JSON objects; recipe bodies are the largest payloads.
	MaxMessageSize int64 `json:"max_message_size"`

	// SendBuffer is the per-connection outbound queue depth.  When a
	// peer's buffer fills, further events to it are dropped and counted
	// rather than allowed to stall the whole session's fan-out.
	SendBuffer int `json:"send_buffer"`

	// ReaperWorkers is the size of the pool that fans out expiry
	// notifications.  Sessions expire independently, so notifications for
	// distinct sessions may run in parallel.
	ReaperWorkers int `json:"reaper_workers"`
}

// LoadConfig reads a JSON file at filename and deserialises it into a Config.
// It returns an error if the file cannot be opened or if the JSON is
// malformed.  Zero-value fields retain Go's zero values, so callers should
// apply defaults after loading; see WithDefaults.
func LoadConfig(filename string) (*Config, error) {
	f, err := os.Open(filename) // #nosec G304: filename is caller-provided config path
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", filename, err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields() // catch typos in config files early
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %q: %w", filename, err)
	}
	return &cfg, nil
}

// DefaultConfig returns a *Config pre-filled with production defaults: a 4 h
// idle TTL, a 30 min reap sweep, and socket tuning appropriate for small
// groups of collaborators per session.  Each call returns a fresh
// independent copy which callers may mutate before wiring.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:       ":8080",
		WSPath:           "/ws",
		DashboardAddr:    ":8081",
		SessionTTL:       4 * time.Hour,
		ReapInterval:     30 * time.Minute,
		WriteTimeout:     10 * time.Second,
		PongTimeout:      60 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		MaxMessageSize:   64 * 1024,
		SendBuffer:       64,
		ReaperWorkers:    4,
	}
}

// WithDefaults fills any zero-valued field of cfg from DefaultConfig and
// returns cfg.  It lets operators supply partial JSON files that override
// only the knobs they care about.
//
// DashboardAddr is the one exception: an empty value means "dashboard
// disabled", so a config file that omits it opts out instead of inheriting
// the default address.
func (cfg *Config) WithDefaults() *Config {
	def := DefaultConfig()
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = def.ListenAddr
	}
	if cfg.WSPath == "" {
		cfg.WSPath = def.WSPath
	}
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.ReapInterval == 0 {
		cfg.ReapInterval = def.ReapInterval
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = def.PongTimeout
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.MaxMessageSize == 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBuffer == 0 {
		cfg.SendBuffer = def.SendBuffer
	}
	if cfg.ReaperWorkers == 0 {
		cfg.ReaperWorkers = def.ReaperWorkers
	}
	return cfg
}
