// Package config provides configuration loading and management for clubflow.
//
// Configuration is loaded using Viper, supporting YAML config files and environment
// variable overrides. The defaults talk to a backend on localhost and use the
// five-stage university approval chain for both proposals and venue bookings,
// so the tool works out of the box without any configuration file.
//
// Key types:
//   - [Config] is the root configuration container with all settings
//   - [Loader] handles Viper-based configuration loading
//   - [WorkflowConfig] describes the approval chain of one subject kind
//   - [BackendConfig] contains REST backend connection settings
//
// Configuration priority (highest to lowest):
//  1. Environment variables (CLUBFLOW_ prefix)
//  2. Config file specified by CLUBFLOW_CONFIG_PATH
//  3. User config directory (platform-standard):
//     - Linux: ~/.config/clubflow/config.yaml
//     - macOS: ~/Library/Application Support/clubflow/config.yaml
//     - Windows: %APPDATA%\clubflow\config.yaml
//  4. ./clubflow.yaml
//  5. [DefaultConfig] defaults
package config

import (
	"time"

	"clubflow/internal/approval"
)

// Config represents the root configuration structure.
//
// This is the main configuration container loaded by [Loader] and used throughout
// the application. Use [DefaultConfig] to get sensible defaults.
type Config struct {
	// Backend contains REST backend connection settings.
	Backend BackendConfig `mapstructure:"backend"`

	// Workflows maps subject kinds to their approval chains.
	// Keys are backend collection names (e.g., "proposals", "bookings").
	Workflows map[string]WorkflowConfig `mapstructure:"workflows"`

	// ManifestPath points to an optional stage manifest CSV. When set, the
	// manifest replaces the stage lists declared in Workflows.
	ManifestPath string `mapstructure:"manifest_path"`

	// SnapshotPath is the default snapshot file used by show --snapshot
	// and show --save when no explicit path is given.
	SnapshotPath string `mapstructure:"snapshot_path"`

	// Approver is the default approver name recorded for approve/reject.
	// Can be overridden with CLUBFLOW_APPROVER or the --as flag.
	Approver string `mapstructure:"approver"`

	// Output contains terminal output formatting configuration.
	Output OutputConfig `mapstructure:"output"`

	// Log contains logging configuration.
	Log LogConfig `mapstructure:"log"`

	// Server contains settings for the serve command.
	Server ServerConfig `mapstructure:"server"`
}

// BackendConfig contains REST backend connection settings.
type BackendConfig struct {
	// BaseURL is the scheme and host of the backend, without a trailing slash.
	// Can be overridden with CLUBFLOW_BACKEND_URL.
	BaseURL string `mapstructure:"base_url"`

	// Token is forwarded as a bearer token when non-empty.
	// Can be overridden with CLUBFLOW_TOKEN.
	Token string `mapstructure:"token"`

	// Timeout bounds each backend request.
	// Default: 10s
	Timeout time.Duration `mapstructure:"timeout"`
}

// WorkflowConfig describes the approval chain of one subject kind.
type WorkflowConfig struct {
	// Title is the human-readable name of the kind (e.g., "Event Proposal").
	Title string `mapstructure:"title"`

	// Path is the backend collection path (e.g., "/api/proposals").
	Path string `mapstructure:"path"`

	// Stages is the ordered list of stage names.
	Stages []string `mapstructure:"stages"`

	// Roles lists the approver role per stage, parallel to Stages. Optional.
	Roles []string `mapstructure:"roles"`
}

// OutputConfig contains terminal output formatting configuration.
type OutputConfig struct {
	// ShowHistory prints the approval history under each stepper.
	// Default: false
	ShowHistory bool `mapstructure:"show_history"`

	// Compact renders the stepper on a single line.
	// Default: false
	Compact bool `mapstructure:"compact"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	// Level is a zerolog level name: "debug", "info", "warn", "error".
	// Default: "warn"
	Level string `mapstructure:"level"`

	// Format is "console" for human-readable output or "json".
	// Default: "console"
	Format string `mapstructure:"format"`
}

// ServerConfig contains settings for the HTTP façade started by serve.
type ServerConfig struct {
	// Addr is the listen address.
	// Default: ":8090"
	Addr string `mapstructure:"addr"`

	// AllowedOrigins lists CORS origins allowed to call the façade.
	// Default: ["*"]
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultRoles are the approver roles of the default chain, parallel to
// [approval.DefaultStageNames].
var DefaultRoles = []string{
	"club_president",
	"faculty_advisor",
	"student_council",
	"student_welfare",
	"security",
}

// DefaultConfig returns a new [Config] with sensible defaults.
//
// Both proposals and bookings use the five-stage university chain. The
// backend is expected at http://localhost:8000.
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			BaseURL: "http://localhost:8000",
			Timeout: 10 * time.Second,
		},
		Workflows: map[string]WorkflowConfig{
			"proposals": {
				Title:  "Event Proposal",
				Path:   "/api/proposals",
				Stages: append([]string(nil), approval.DefaultStageNames...),
				Roles:  append([]string(nil), DefaultRoles...),
			},
			"bookings": {
				Title:  "Venue Booking",
				Path:   "/api/bookings",
				Stages: append([]string(nil), approval.DefaultStageNames...),
				Roles:  append([]string(nil), DefaultRoles...),
			},
		},
		Output: OutputConfig{
			ShowHistory: false,
			Compact:     false,
		},
		Log: LogConfig{
			Level:  "warn",
			Format: "console",
		},
		Server: ServerConfig{
			Addr:            ":8090",
			AllowedOrigins:  []string{"*"},
			ShutdownTimeout: 15 * time.Second,
		},
	}
}
