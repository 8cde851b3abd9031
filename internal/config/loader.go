package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "CLUBFLOW"

// configFileName is the file looked up in the user config directory.
const configFileName = "config.yaml"

// localConfigFile is the fallback looked up in the working directory.
const localConfigFile = "clubflow.yaml"

// Loader loads [Config] values with Viper.
//
// Create with [NewLoader]. Each Loader owns a private Viper instance, so
// loaders do not share state and are safe to use in parallel tests.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a [Loader] with defaults and environment bindings applied.
func NewLoader() *Loader {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Short aliases for the settings operators touch most.
	_ = v.BindEnv("backend.base_url", "CLUBFLOW_BACKEND_URL", "CLUBFLOW_BACKEND_BASE_URL")
	_ = v.BindEnv("backend.token", "CLUBFLOW_TOKEN", "CLUBFLOW_BACKEND_TOKEN")

	return &Loader{v: v}
}

// Load resolves the config file (see package docs for the search order) and
// returns the merged configuration. A missing config file is not an error.
func (l *Loader) Load() (*Config, error) {
	if path := os.Getenv(EnvPrefix + "_CONFIG_PATH"); path != "" {
		return l.LoadFromFile(path)
	}

	for _, candidate := range []string{DefaultConfigPath(), localConfigFile} {
		if candidate == "" {
			continue
		}
		if _, err := os.Stat(candidate); err == nil {
			return l.LoadFromFile(candidate)
		}
	}

	return l.unmarshal()
}

// LoadFromFile reads the given YAML file on top of the defaults.
func (l *Loader) LoadFromFile(path string) (*Config, error) {
	l.v.SetConfigFile(path)
	l.v.SetConfigType("yaml")
	if err := l.v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return l.unmarshal()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// MustLoad loads configuration with a new [Loader] and panics on error.
func MustLoad() *Config {
	cfg, err := NewLoader().Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// ConfigDir returns the platform-standard clubflow config directory, or ""
// if the user config directory cannot be determined.
func ConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "clubflow")
}

// DefaultConfigPath returns the config file path inside [ConfigDir].
func DefaultConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, configFileName)
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("backend.base_url", cfg.Backend.BaseURL)
	v.SetDefault("backend.token", cfg.Backend.Token)
	v.SetDefault("backend.timeout", cfg.Backend.Timeout)

	for kind, wf := range cfg.Workflows {
		prefix := "workflows." + kind + "."
		v.SetDefault(prefix+"title", wf.Title)
		v.SetDefault(prefix+"path", wf.Path)
		v.SetDefault(prefix+"stages", wf.Stages)
		v.SetDefault(prefix+"roles", wf.Roles)
	}

	v.SetDefault("manifest_path", cfg.ManifestPath)
	v.SetDefault("snapshot_path", cfg.SnapshotPath)
	v.SetDefault("approver", cfg.Approver)

	v.SetDefault("output.show_history", cfg.Output.ShowHistory)
	v.SetDefault("output.compact", cfg.Output.Compact)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.allowed_origins", cfg.Server.AllowedOrigins)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
}
