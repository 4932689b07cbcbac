// Package config provides application configuration for the letsearch
// engine: environment variables, an optional .env file, and the defaults
// needed to locate the home directory, the HTTP bind address, and the
// model hub credential.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Default configuration values.
const (
	DefaultHome      = ".letsearch"
	DefaultHost      = "0.0.0.0"
	DefaultPort      = 8080
	DefaultLogLevel  = "INFO"
	DefaultLogFormat = "pretty"
	DefaultBatchSize = 32
)

// LogFormat is the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// EnvConfig holds environment-derived configuration. Field names map
// directly to environment variables; no prefix is applied, matching
// spec.md's LETSEARCH_HOME / HF_TOKEN contract.
type EnvConfig struct {
	// Home overrides the root directory for collections and models.
	// Env: LETSEARCH_HOME (default: ./.letsearch)
	Home string `envconfig:"LETSEARCH_HOME"`

	// HFToken is the fallback credential for the model hub.
	// Env: HF_TOKEN
	HFToken string `envconfig:"HF_TOKEN"`

	// Host is the HTTP server bind address.
	// Env: HOST (default: 0.0.0.0)
	Host string `envconfig:"HOST" default:"0.0.0.0"`

	// Port is the HTTP server bind port.
	// Env: PORT (default: 8080)
	Port int `envconfig:"PORT" default:"8080"`

	// LogLevel is the log verbosity.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`
}

// AppConfig is the resolved, ready-to-use configuration.
type AppConfig struct {
	home      string
	hfToken   string
	host      string
	port      int
	logLevel  string
	logFormat LogFormat
}

// Home returns the resolved home directory (absolute path).
func (c AppConfig) Home() string { return c.home }

// HFToken returns the hub credential fallback, possibly empty.
func (c AppConfig) HFToken() string { return c.hfToken }

// Addr returns the "host:port" HTTP bind address.
func (c AppConfig) Addr() string {
	port := c.port
	if port == 0 {
		port = DefaultPort
	}
	return c.host + ":" + strconv.Itoa(port)
}

// Host returns the configured bind host.
func (c AppConfig) Host() string { return c.host }

// Port returns the configured bind port.
func (c AppConfig) Port() int { return c.port }

// LogLevel returns the configured log level string.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the configured log output format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// CollectionsDir returns "<home>/collections".
func (c AppConfig) CollectionsDir() string { return filepath.Join(c.home, "collections") }

// ModelsDir returns "<home>/models".
func (c AppConfig) ModelsDir() string { return filepath.Join(c.home, "models") }

// EnsureHome creates the home directory tree if it does not exist.
func (c AppConfig) EnsureHome() error {
	if err := os.MkdirAll(c.CollectionsDir(), 0o755); err != nil {
		return err
	}
	return os.MkdirAll(c.ModelsDir(), 0o755)
}

// LoadConfig loads a .env file (if present) then environment variables.
// godotenv does not overwrite variables that are already set, so values
// from the process environment take precedence over the .env file.
func LoadConfig(envFile string) (AppConfig, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return AppConfig{}, err
		}
	}

	var envCfg EnvConfig
	if err := envconfig.Process("", &envCfg); err != nil {
		return AppConfig{}, err
	}

	home := envCfg.Home
	if home == "" {
		home = DefaultHome
	}
	absHome, err := filepath.Abs(home)
	if err != nil {
		return AppConfig{}, err
	}

	logFormat := LogFormatPretty
	if LogFormat(envCfg.LogFormat) == LogFormatJSON {
		logFormat = LogFormatJSON
	}

	return AppConfig{
		home:      absHome,
		hfToken:   envCfg.HFToken,
		host:      envCfg.Host,
		port:      envCfg.Port,
		logLevel:  envCfg.LogLevel,
		logFormat: logFormat,
	}, nil
}

// Option configures an AppConfig built via NewAppConfigWithOptions.
type Option func(*AppConfig)

// WithHost overrides the bind host.
func WithHost(host string) Option {
	return func(c *AppConfig) {
		if host != "" {
			c.host = host
		}
	}
}

// WithPort overrides the bind port.
func WithPort(port int) Option {
	return func(c *AppConfig) {
		if port != 0 {
			c.port = port
		}
	}
}

// WithLogLevel overrides the log level.
func WithLogLevel(level string) Option {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat overrides the log output format.
func WithLogFormat(format LogFormat) Option {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithHome overrides the home directory.
func WithHome(home string) Option {
	return func(c *AppConfig) {
		if home != "" {
			c.home = home
		}
	}
}

// NewAppConfigWithOptions builds an AppConfig from defaults plus the given
// options, primarily for tests and programmatic construction outside of
// LoadConfig's environment-driven path.
func NewAppConfigWithOptions(opts ...Option) AppConfig {
	c := AppConfig{
		home:      DefaultHome,
		host:      DefaultHost,
		port:      DefaultPort,
		logLevel:  DefaultLogLevel,
		logFormat: LogFormatPretty,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a copy of c with opts applied on top, for CLI flag
// overrides layered after LoadConfig's env-derived values.
func (c AppConfig) Apply(opts ...Option) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

