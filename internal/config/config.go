// Package config provides configuration management for the Cutlist Agent.
// Configuration is loaded from environment variables with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// Default values
	DefaultPort      = 8797
	DefaultLogLevel  = "info"
	DefaultDataDir   = ".cutlist"
	DefaultThumbSize = "100x70"

	// Environment variable names
	EnvPort           = "CUTLIST_PORT"
	EnvLogLevel       = "CUTLIST_LOG_LEVEL"
	EnvDataDir        = "CUTLIST_DATA_DIR"
	EnvFFmpeg         = "CUTLIST_FFMPEG"
	EnvFFprobe        = "CUTLIST_FFPROBE"
	EnvThumbSize      = "CUTLIST_THUMB_SIZE"
	EnvBackendTimeout = "CUTLIST_BACKEND_TIMEOUT"
	EnvHeadless       = "CUTLIST_HEADLESS"
	EnvKeepStreams    = "CUTLIST_KEEP_STREAMS"

	// Database filename
	DBFilename = "cutlist.db"

	// Doctor probe timeout in seconds
	DefaultDoctorTimeout = 15
)

// Config defines the application configuration interface
type Config interface {
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	ThumbnailDir() string
	FFmpegPath() string
	FFprobePath() string
	ThumbSize() (int, int)
	BackendTimeout() time.Duration
	DoctorTimeout() time.Duration
	Headless() bool
	KeepAllStreams() bool
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	port     int
	logLevel string
	dataDir  string

	ffmpegPath     string
	ffprobePath    string
	thumbWidth     int
	thumbHeight    int
	backendTimeout time.Duration
	headless       bool
	keepStreams    bool
}

// New creates a new EnvConfig with defaults and environment variable overrides
func New() (*EnvConfig, error) {
	cfg := &EnvConfig{
		port:        DefaultPort,
		logLevel:    DefaultLogLevel,
		dataDir:     defaultDataDir(),
		keepStreams: true,
	}
	cfg.thumbWidth, cfg.thumbHeight, _ = ParseSize(DefaultThumbSize)

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	// Override log level from environment
	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	// Override data directory from environment
	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.ffmpegPath = os.Getenv(EnvFFmpeg)
	cfg.ffprobePath = os.Getenv(EnvFFprobe)

	if ts := os.Getenv(EnvThumbSize); ts != "" {
		w, h, err := ParseSize(ts)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvThumbSize, err)
		}
		cfg.thumbWidth, cfg.thumbHeight = w, h
	}

	if bt := os.Getenv(EnvBackendTimeout); bt != "" {
		d, err := time.ParseDuration(bt)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvBackendTimeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", EnvBackendTimeout)
		}
		cfg.backendTimeout = d
	}

	if h := os.Getenv(EnvHeadless); h != "" {
		v, err := strconv.ParseBool(h)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvHeadless, err)
		}
		cfg.headless = v
	}

	if ks := os.Getenv(EnvKeepStreams); ks != "" {
		v, err := strconv.ParseBool(ks)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvKeepStreams, err)
		}
		cfg.keepStreams = v
	}

	return cfg, nil
}

// ParseSize parses a WxH thumbnail size such as "100x70".
func ParseSize(s string) (int, int, error) {
	parts := strings.SplitN(strings.ToLower(strings.TrimSpace(s)), "x", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("size %q must be WIDTHxHEIGHT", s)
	}
	w, err := strconv.Atoi(parts[0])
	if err != nil || w <= 0 {
		return 0, 0, fmt.Errorf("size %q has invalid width", s)
	}
	h, err := strconv.Atoi(parts[1])
	if err != nil || h <= 0 {
		return 0, 0, fmt.Errorf("size %q has invalid height", s)
	}
	return w, h, nil
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// ThumbnailDir returns the directory clip thumbnails are written to
func (c *EnvConfig) ThumbnailDir() string {
	return filepath.Join(c.dataDir, "thumbnails")
}

// FFmpegPath returns the configured ffmpeg binary, empty for auto-detect
func (c *EnvConfig) FFmpegPath() string {
	return c.ffmpegPath
}

func (c *EnvConfig) FFprobePath() string {
	return c.ffprobePath
}

func (c *EnvConfig) ThumbSize() (int, int) {
	return c.thumbWidth, c.thumbHeight
}

// BackendTimeout bounds a single ffmpeg invocation. Zero means no limit.
func (c *EnvConfig) BackendTimeout() time.Duration {
	return c.backendTimeout
}

func (c *EnvConfig) DoctorTimeout() time.Duration {
	return time.Duration(DefaultDoctorTimeout) * time.Second
}

func (c *EnvConfig) Headless() bool {
	return c.headless
}

// KeepAllStreams reports whether cuts map every input stream (-map 0)
func (c *EnvConfig) KeepAllStreams() bool {
	return c.keepStreams
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
