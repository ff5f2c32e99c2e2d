// Package config provides configuration loading and management for taskgraph.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. TASKGRAPH_HTTP_ADDR.
const EnvPrefix = "TASKGRAPH"

// Config is the root configuration.
type Config struct {
	Database DatabaseConfig `json:"database" mapstructure:"database"`
	HTTP     HTTPConfig     `json:"http"     mapstructure:"http"`
	Tasks    TasksConfig    `json:"tasks"    mapstructure:"tasks"`
	Auth     AuthConfig     `json:"auth"     mapstructure:"auth"`
}

// DatabaseConfig locates and tunes the SQLite database.
type DatabaseConfig struct {
	Path        string        `json:"path"         mapstructure:"path"`
	BusyTimeout time.Duration `json:"busy_timeout" mapstructure:"busy_timeout"`
}

// HTTPConfig configures the API server.
type HTTPConfig struct {
	Addr            string        `json:"addr"             mapstructure:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout"     mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"    mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout"  mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// TasksConfig bounds task listings.
type TasksConfig struct {
	DefaultPageSize int `json:"default_page_size" mapstructure:"default_page_size"`
	MaxPageSize     int `json:"max_page_size"     mapstructure:"max_page_size"`
}

// AuthConfig tunes credential hashing and self-registration.
type AuthConfig struct {
	BcryptCost int `json:"bcrypt_cost" mapstructure:"bcrypt_cost"`

	// AllowManagerRegistration lets anonymous POST /register create managers.
	AllowManagerRegistration bool `json:"allow_manager_registration" mapstructure:"allow_manager_registration"`
}

// defaults holds every key with its default, in viper's dotted notation.
var defaults = map[string]any{
	"database.path":           ".taskgraph/taskgraph.db",
	"database.busy_timeout":   "5s",
	"http.addr":               ":8080",
	"http.read_timeout":       "10s",
	"http.write_timeout":      "10s",
	"http.request_timeout":    "5s",
	"http.shutdown_timeout":   "10s",
	"tasks.default_page_size": 15,
	"tasks.max_page_size":     100,
	"auth.bcrypt_cost":        10,

	"auth.allow_manager_registration": false,
}

// SetDefaults registers defaults and environment overrides on v.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// DefaultDocument returns the defaults as a nested document suitable for writing a config file.
func DefaultDocument() map[string]any {
	doc := map[string]any{}
	for key, value := range defaults {
		section, name, _ := strings.Cut(key, ".")
		inner, ok := doc[section].(map[string]any)
		if !ok {
			inner = map[string]any{}
			doc[section] = inner
		}
		inner[name] = value
	}
	return doc
}

// Load reads the config file at path into v, validates it and decodes the result.
// A missing file is not an error: defaults and environment overrides apply.
func Load(v *viper.Viper, path string) (Config, error) {
	SetDefaults(v)
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := validateFile(path); err != nil {
				return Config{}, err
			}
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("stat config: %w", err)
		}
	}

	var cfg Config
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validateFile checks the file's own settings against the schema, before
// defaults and environment values are merged in.
func validateFile(path string) error {
	raw := viper.New()
	raw.SetConfigFile(path)
	if err := raw.ReadInConfig(); err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return ValidateSettings(raw.AllSettings())
}

// Validate checks cross-field constraints the schema cannot express.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Tasks.DefaultPageSize <= 0 || c.Tasks.MaxPageSize <= 0 {
		return fmt.Errorf("tasks page sizes must be > 0")
	}
	if c.Tasks.DefaultPageSize > c.Tasks.MaxPageSize {
		return fmt.Errorf("tasks.default_page_size (%d) must not exceed tasks.max_page_size (%d)",
			c.Tasks.DefaultPageSize, c.Tasks.MaxPageSize)
	}
	return nil
}
