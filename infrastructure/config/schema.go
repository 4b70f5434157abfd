// Package config provides configuration loading and parsing for the
// approval service.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Configuration errors.
var (
	// ErrConfigNotFound indicates the configuration file was not found.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrInvalidFormat indicates the configuration format is invalid.
	ErrInvalidFormat = errors.New("invalid configuration format")

	// ErrUnsupportedFormat indicates the file format is not supported.
	ErrUnsupportedFormat = errors.New("unsupported configuration format")

	// ErrValidationFailed indicates configuration validation failed.
	ErrValidationFailed = errors.New("configuration validation failed")

	// ErrMissingEnvVar indicates a required environment variable is not set.
	ErrMissingEnvVar = errors.New("missing environment variable")
)

// Config is the root configuration for the approval service.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Store   StoreConfig   `json:"store" yaml:"store"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	SMTP    SMTPConfig    `json:"smtp" yaml:"smtp"`
	Sweep   SweepConfig   `json:"sweep" yaml:"sweep"`
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// ServerConfig configures the callback HTTP server.
type ServerConfig struct {
	// Addr is the listen address, e.g. ":8086".
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"`
	// BaseURL is the externally reachable URL used in approval links.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// ReadTimeout bounds request reads.
	ReadTimeout Duration `json:"read_timeout,omitempty" yaml:"read_timeout,omitempty"`
	// WriteTimeout bounds response writes.
	WriteTimeout Duration `json:"write_timeout,omitempty" yaml:"write_timeout,omitempty"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
	// EnableCORS enables permissive CORS headers on the JSON endpoints.
	EnableCORS bool `json:"enable_cors,omitempty" yaml:"enable_cors,omitempty"`
}

// StoreConfig selects and configures the ticket store backend.
type StoreConfig struct {
	// Backend is one of "memory", "badger" or "sqlite".
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`
	// Dir is the badger data directory.
	Dir string `json:"dir,omitempty" yaml:"dir,omitempty"`
	// Path is the sqlite database path.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
	// SyncWrites forces fsync on every badger write.
	SyncWrites bool `json:"sync_writes,omitempty" yaml:"sync_writes,omitempty"`
}

// RuntimeConfig configures decision delivery to the agent runtime.
type RuntimeConfig struct {
	// BaseURL is the agent runtime base URL.
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	// AppName is the registered agent application name.
	AppName string `json:"app_name,omitempty" yaml:"app_name,omitempty"`
	// FunctionName is the long-running function being answered.
	FunctionName string `json:"function_name,omitempty" yaml:"function_name,omitempty"`
	// Timeout bounds each delivery attempt.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// SMTPConfig configures the approval email mailer.
type SMTPConfig struct {
	Host     string `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int    `json:"port,omitempty" yaml:"port,omitempty"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	// Password authenticates with the SMTP server. Leaving it empty puts
	// the mailer in demo mode.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
	From     string `json:"from,omitempty" yaml:"from,omitempty"`
}

// SweepConfig configures the background expiry and retention sweeps.
type SweepConfig struct {
	// Interval is how often the sweeper runs.
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
	// PendingTTL is how long a ticket may stay pending before timing out.
	PendingTTL Duration `json:"pending_ttl,omitempty" yaml:"pending_ttl,omitempty"`
	// Retention is how long terminal tickets are kept before deletion.
	Retention Duration `json:"retention,omitempty" yaml:"retention,omitempty"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level.
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// Format is "json" or "console".
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
}

// Default returns a configuration with sensible defaults for local use.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8086",
			BaseURL:         "http://localhost:8086",
			ReadTimeout:     Duration(10 * time.Second),
			WriteTimeout:    Duration(10 * time.Second),
			ShutdownTimeout: Duration(15 * time.Second),
		},
		Store: StoreConfig{
			Backend:    "badger",
			Dir:        "data/tickets",
			SyncWrites: true,
		},
		Runtime: RuntimeConfig{
			BaseURL:      "http://localhost:8000",
			AppName:      "insurance_agent",
			FunctionName: "request_human_approval",
			Timeout:      Duration(10 * time.Second),
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
			From: "noreply@insurance.com",
		},
		Sweep: SweepConfig{
			Interval:   Duration(1 * time.Minute),
			PendingTTL: Duration(24 * time.Hour),
			Retention:  Duration(7 * 24 * time.Hour),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks the configuration for inconsistencies. It returns all
// problems found joined into a single error.
func (c *Config) Validate() error {
	var problems []string

	switch c.Store.Backend {
	case "", "memory":
	case "badger":
		if c.Store.Dir == "" {
			problems = append(problems, "store.dir is required for the badger backend")
		}
	case "sqlite":
		if c.Store.Path == "" {
			problems = append(problems, "store.path is required for the sqlite backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("store.backend %q is not one of memory, badger, sqlite", c.Store.Backend))
	}

	if c.Server.Addr == "" {
		problems = append(problems, "server.addr is required")
	}
	if c.Server.BaseURL != "" && !strings.HasPrefix(c.Server.BaseURL, "http") {
		problems = append(problems, "server.base_url must be an http(s) URL")
	}
	if c.Runtime.BaseURL != "" && !strings.HasPrefix(c.Runtime.BaseURL, "http") {
		problems = append(problems, "runtime.base_url must be an http(s) URL")
	}
	if c.Sweep.Interval < 0 || c.Sweep.PendingTTL < 0 || c.Sweep.Retention < 0 {
		problems = append(problems, "sweep durations must not be negative")
	}
	if c.SMTP.Port < 0 || c.SMTP.Port > 65535 {
		problems = append(problems, "smtp.port is out of range")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

// Duration is a time.Duration that supports JSON/YAML string representation.
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
