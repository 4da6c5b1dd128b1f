// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Production hosts and the fake backend's listen port.
const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com"
	DefaultServerPort         = 9099
)

// DefaultBreakerFailures is how many consecutive failures open a service's
// circuit when nothing else is configured.
const DefaultBreakerFailures = 5

// Config is the root configuration structure.
type Config struct {
	App       AppConfig        `koanf:"app"       validate:"required"`
	Server    ServerConfig     `koanf:"server"    validate:"required"`
	Log       LogConfig        `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig  `koanf:"telemetry"`
	Backend   BackendConfig    `koanf:"backend"   validate:"required"`
	Client    ClientConfig     `koanf:"client"    validate:"required"`
	Scenarios []ScenarioConfig `koanf:"scenarios" validate:"unique=Name,dive"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains settings of the fake backend HTTP server.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,url"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// BackendConfig identifies the identity backend and the calling application.
// The same values are sent by the client and expected by the fake backend.
type BackendConfig struct {
	APIKey             string `koanf:"api_key"              validate:"required"`
	AppID              string `koanf:"app_id"`
	TenantID           string `koanf:"tenant_id"`
	IdentityToolkitURL string `koanf:"identity_toolkit_url" validate:"required,url"`
	SecureTokenURL     string `koanf:"secure_token_url"     validate:"required,url"`
}

// ClientConfig contains HTTPS transport settings.
type ClientConfig struct {
	Timeout        time.Duration        `koanf:"timeout"         validate:"required,min=100ms"`
	CircuitBreaker CircuitBreakerConfig `koanf:"circuit_breaker" validate:"required"`
	Transport      TransportConfig      `koanf:"transport"       validate:"required"`
}

// CircuitBreakerConfig contains circuit breaker settings for the transport.
type CircuitBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"required,min=1"`
	Timeout       time.Duration `koanf:"timeout"         validate:"required,min=1s"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required,min=1"`
}

// TransportConfig contains HTTP transport pool settings.
type TransportConfig struct {
	MaxIdleConns        int           `koanf:"max_idle_conns"          validate:"required,min=1"`
	MaxIdleConnsPerHost int           `koanf:"max_idle_conns_per_host" validate:"required,min=1"`
	IdleConnTimeout     time.Duration `koanf:"idle_conn_timeout"       validate:"required,min=1s"`
}

// ScenarioConfig is one canned answer served by the fake backend.
// Body is returned as JSON; RawBody, when set, is returned verbatim instead.
// Remove lists dotted paths deleted from the body before it is served.
type ScenarioConfig struct {
	Name    string         `koanf:"name"     validate:"required"`
	Path    string         `koanf:"path"     validate:"required"`
	Status  int            `koanf:"status"   validate:"omitempty,min=200,max=599"`
	Body    map[string]any `koanf:"body"`
	RawBody string         `koanf:"raw_body"`
	Remove  []string       `koanf:"remove"   validate:"dive,required"`
	Delay   time.Duration  `koanf:"delay"    validate:"min=0"`
}

// defaults is the lowest-precedence layer, one nested map per section.
func defaults() map[string]any {
	return map[string]any{
		"app": map[string]any{"name": "authrpc", "version": "dev", "environment": "local"},
		"server": map[string]any{
			"host":             "127.0.0.1",
			"port":             DefaultServerPort,
			"read_timeout":     "10s",
			"write_timeout":    "10s",
			"idle_timeout":     "60s",
			"shutdown_timeout": "5s",
			"max_request_size": 1 << 20,
		},
		"log": map[string]any{
			"level":  "info",
			"format": "json",
			"file": map[string]any{
				"enabled":     false,
				"path":        "./logs/authrpc.log",
				"max_size":    100,
				"max_backups": 3,
				"max_age":     28,
				"compress":    true,
			},
		},
		"telemetry": map[string]any{"enabled": false, "service_name": "authrpc", "sampling_rate": 1.0},
		"backend": map[string]any{
			"api_key":              "fake-api-key",
			"identity_toolkit_url": DefaultIdentityToolkitURL,
			"secure_token_url":     DefaultSecureTokenURL,
		},
		"client": map[string]any{
			"timeout": "30s",
			"circuit_breaker": map[string]any{
				"max_failures":    DefaultBreakerFailures,
				"timeout":         "30s",
				"half_open_limit": 3,
			},
			"transport": map[string]any{
				"max_idle_conns":          100,
				"max_idle_conns_per_host": 10,
				"idle_conn_timeout":       "90s",
			},
		},
	}
}

// Load reads configs/base.yaml, then configs/<profile>.yaml, then APP_
// environment variables, each layer overriding the defaults and the layers
// before it.
func Load(profile string) (*Config, error) {
	return LoadFrom("configs", profile)
}

// LoadFrom is Load with an explicit config directory.
func LoadFrom(dir, profile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), ""), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if err := loadFileIfExists(k, filepath.Join(dir, "base.yaml")); err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		if err := loadFileIfExists(k, filepath.Join(dir, profile+".yaml")); err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	if err := k.Load(env.Provider("APP_", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envSections lists the top-level sections so that multi-word keys such as
// APP_BACKEND_API_KEY map to backend.api_key rather than backend.api.key.
var envSections = []string{"app", "server", "log", "telemetry", "backend", "client"}

// envKey maps APP_SECTION_KEY to section.key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, "APP_"))

	for _, section := range envSections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			return section + "." + nestedKey(section, rest)
		}
	}

	return strings.ReplaceAll(key, "_", ".")
}

// nestedKey restores the one level of nesting used by the log and client
// sections; every other section is flat.
func nestedKey(section, rest string) string {
	var groups []string

	switch section {
	case "log":
		groups = []string{"file"}
	case "client":
		groups = []string{"circuit_breaker", "transport"}
	}

	for _, g := range groups {
		if sub, ok := strings.CutPrefix(rest, g+"_"); ok {
			return g + "." + sub
		}
	}

	return rest
}

// loadFileIfExists skips missing files; read and parse failures are errors.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}
