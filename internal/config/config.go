package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/vango-dev/vstore/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "vstore.json"

	// TOMLConfigFileName is the name of the TOML configuration file.
	TOMLConfigFileName = "vstore.toml"

	// DefaultAddress is the default devtools server address.
	DefaultAddress = "127.0.0.1:7600"

	// DefaultMetricsPath is the default path of the metrics endpoint.
	DefaultMetricsPath = "/metrics"

	// DefaultNamespace is the default metrics namespace.
	DefaultNamespace = "vstore"

	// DefaultTracerName is the default OpenTelemetry tracer name.
	DefaultTracerName = "vstore"

	// DefaultTimeout is the default transport timeout.
	DefaultTimeout = "30s"

	// DefaultRegion is the default S3 region.
	DefaultRegion = "us-east-1"
)

// Action kinds of declarative stores.
const (
	ActionHTTP = "http"
	ActionS3   = "s3"
)

// Config represents the complete vstore configuration.
type Config struct {
	// Server contains devtools server configuration.
	Server ServerConfig `json:"server" toml:"server"`

	// Log contains logging configuration.
	Log LogConfig `json:"log" toml:"log"`

	// Metrics contains Prometheus configuration.
	Metrics MetricsConfig `json:"metrics" toml:"metrics"`

	// Tracing contains OpenTelemetry configuration.
	Tracing TracingConfig `json:"tracing" toml:"tracing"`

	// Transport configures the HTTP client used by http actions.
	Transport TransportConfig `json:"transport" toml:"transport"`

	// S3 configures the bucket read by s3 actions.
	S3 S3Config `json:"s3" toml:"s3"`

	// Stores declares stores served by `vstore serve`.
	Stores map[string]StoreConfig `json:"stores,omitempty" toml:"stores,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig contains devtools server settings.
type ServerConfig struct {
	// Address is the listen address.
	Address string `json:"address,omitempty" toml:"address,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `json:"level,omitempty" toml:"level,omitempty"`

	// Format is text or json.
	Format string `json:"format,omitempty" toml:"format,omitempty"`
}

// MetricsConfig contains Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `json:"enabled,omitempty" toml:"enabled,omitempty"`
	Namespace string `json:"namespace,omitempty" toml:"namespace,omitempty"`
	Path      string `json:"path,omitempty" toml:"path,omitempty"`
}

// TracingConfig contains OpenTelemetry settings.
type TracingConfig struct {
	Enabled    bool   `json:"enabled,omitempty" toml:"enabled,omitempty"`
	TracerName string `json:"tracerName,omitempty" toml:"tracerName,omitempty"`
}

// TransportConfig contains HTTP client settings.
type TransportConfig struct {
	// BaseURL is prepended to http action paths.
	BaseURL string `json:"baseURL,omitempty" toml:"baseURL,omitempty"`

	// Timeout is a duration string (e.g., "30s").
	Timeout string `json:"timeout,omitempty" toml:"timeout,omitempty"`

	// Headers are sent with every request.
	Headers map[string]string `json:"headers,omitempty" toml:"headers,omitempty"`
}

// S3Config contains object store settings.
type S3Config struct {
	Region       string `json:"region,omitempty" toml:"region,omitempty"`
	Endpoint     string `json:"endpoint,omitempty" toml:"endpoint,omitempty"`
	Bucket       string `json:"bucket,omitempty" toml:"bucket,omitempty"`
	UsePathStyle bool   `json:"usePathStyle,omitempty" toml:"usePathStyle,omitempty"`
}

// StoreConfig declares a store.
type StoreConfig struct {
	// Values are the plain fields and their initial values.
	Values map[string]any `json:"values,omitempty" toml:"values,omitempty"`

	// Actions are the async actions backed by a transport.
	Actions map[string]ActionConfig `json:"actions,omitempty" toml:"actions,omitempty"`
}

// ActionConfig declares a transport-backed async action.
type ActionConfig struct {
	// Kind is "http" or "s3".
	Kind string `json:"kind" toml:"kind"`

	// Method is the HTTP method (default: GET).
	Method string `json:"method,omitempty" toml:"method,omitempty"`

	// Path is the HTTP path template; {0}, {1}, ... are dispatch arguments.
	Path string `json:"path,omitempty" toml:"path,omitempty"`

	// Key is the S3 object key template.
	Key string `json:"key,omitempty" toml:"key,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: DefaultAddress,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Namespace: DefaultNamespace,
			Path:      DefaultMetricsPath,
		},
		Tracing: TracingConfig{
			TracerName: DefaultTracerName,
		},
		Transport: TransportConfig{
			Timeout: DefaultTimeout,
		},
		S3: S3Config{
			Region: DefaultRegion,
		},
	}
}

// Load reads configuration from the specified directory. It looks for
// vstore.json, then vstore.toml.
func Load(dir string) (*Config, error) {
	for _, name := range []string{ConfigFileName, TOMLConfigFileName} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("V100").
		WithDetail("No " + ConfigFileName + " or " + TOMLConfigFileName + " found in " + dir).
		WithSuggestion("Create vstore.json or pass --config")
}

// LoadFile reads configuration from the specified file path. The format is
// chosen by extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("V100").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("V101").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, jsonError(path, data, err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, tomlError(path, err)
		}
	default:
		return nil, errors.New("V103").WithDetail("Cannot read " + path)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

func jsonError(path string, data []byte, err error) error {
	e := errors.New("V101").
		WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
		WithSuggestion("Check that the file is valid JSON").
		Wrap(err)
	var serr *json.SyntaxError
	if stderrors.As(err, &serr) {
		line, col := position(data, serr.Offset)
		e.WithLocation(path, line, col)
	}
	return e
}

func tomlError(path string, err error) error {
	e := errors.New("V101").
		WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
		WithSuggestion("Check that the file is valid TOML").
		Wrap(err)
	var derr *toml.DecodeError
	if stderrors.As(err, &derr) {
		line, col := derr.Position()
		e.WithLocation(path, line, col)
	}
	return e
}

// position converts a byte offset into a 1-based line and column.
func position(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	prefix := data[:offset]
	line := bytes.Count(prefix, []byte("\n")) + 1
	col := int(offset) - bytes.LastIndexByte(prefix, '\n')
	return line, col
}

// SaveTo writes the configuration to path, as TOML when path ends in
// .toml and as JSON otherwise.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		data, err = toml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("V101").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("V101").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the directory containing the config file.
func (c *Config) Dir() string {
	if c.configPath == "" {
		return ""
	}
	return filepath.Dir(c.configPath)
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = DefaultAddress
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultNamespace
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
	if c.Tracing.TracerName == "" {
		c.Tracing.TracerName = DefaultTracerName
	}
	if c.Transport.Timeout == "" {
		c.Transport.Timeout = DefaultTimeout
	}
	if c.S3.Region == "" {
		c.S3.Region = DefaultRegion
	}
	for name, st := range c.Stores {
		for action, a := range st.Actions {
			a.Kind = strings.ToLower(strings.TrimSpace(a.Kind))
			if a.Kind == ActionHTTP && a.Method == "" {
				a.Method = "GET"
			}
			a.Method = strings.ToUpper(a.Method)
			st.Actions[action] = a
		}
		c.Stores[name] = st
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level must be one of debug, info, warn, error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return invalid("log.format must be text or json, got %q", c.Log.Format)
	}
	if !strings.HasPrefix(c.Metrics.Path, "/") {
		return invalid("metrics.path must start with /, got %q", c.Metrics.Path)
	}
	if d, err := time.ParseDuration(c.Transport.Timeout); err != nil || d <= 0 {
		return invalid("transport.timeout must be a positive duration, got %q", c.Transport.Timeout)
	}

	for _, name := range c.StoreNames() {
		if strings.TrimSpace(name) == "" {
			return invalid("store names must not be empty")
		}
		st := c.Stores[name]
		for action, a := range st.Actions {
			if _, clash := st.Values[action]; clash {
				return invalid("stores.%s: %q is declared as both a value and an action", name, action)
			}
			switch a.Kind {
			case ActionHTTP:
				if a.Path == "" {
					return invalid("stores.%s.actions.%s: http actions need a path", name, action)
				}
				if c.Transport.BaseURL == "" {
					return invalid("stores.%s.actions.%s: http actions need transport.baseURL", name, action)
				}
			case ActionS3:
				if a.Key == "" {
					return invalid("stores.%s.actions.%s: s3 actions need a key", name, action)
				}
				if c.S3.Bucket == "" {
					return invalid("stores.%s.actions.%s: s3 actions need s3.bucket", name, action)
				}
			default:
				return invalid("stores.%s.actions.%s: kind must be http or s3, got %q", name, action, a.Kind)
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.New("V102").WithDetail(fmt.Sprintf(format, args...))
}

// StoreNames returns the declared store names in sorted order.
func (c *Config) StoreNames() []string {
	names := make([]string, 0, len(c.Stores))
	for name := range c.Stores {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TimeoutDuration returns the transport timeout, or the default when it
// cannot be parsed.
func (c *Config) TimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.Transport.Timeout)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(DefaultTimeout)
	}
	return d
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range []string{ConfigFileName, TOMLConfigFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the directory containing a
// config file.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("V100").
				WithDetail("No " + ConfigFileName + " or " + TOMLConfigFileName + " found in " + startDir + " or any parent directory").
				WithSuggestion("Create vstore.json or pass --config")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the current working directory
// or its nearest parent with a config file.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return nil, err
	}

	return Load(root)
}
