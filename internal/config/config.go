// Package config loads the service configuration once at start-up from
// defaults, an optional YAML file, a .env file and environment variables.
// The resulting Config is treated as read-only.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Services  ServicesConfig  `yaml:"services"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds inbound HTTP settings.
type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	// RequestTimeout bounds one ingest end to end, remote calls included.
	RequestTimeout  time.Duration `yaml:"requestTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
	MultipartMemory int64         `yaml:"multipartMemory"`
}

// ServicesConfig holds the remote service endpoints.
type ServicesConfig struct {
	PremisEndpoint        string        `yaml:"premisEndpoint"`
	MaterialsuiteEndpoint string        `yaml:"materialsuiteEndpoint"`
	AccsEndpoint          string        `yaml:"accsEndpoint"`
	Timeout               time.Duration `yaml:"timeout"`
}

// WorkspaceConfig controls where per-request workspaces are created.
type WorkspaceConfig struct {
	TempDir string `yaml:"tempDir"`
}

// LoggingConfig controls log level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ConfigFileEnv names the variable holding a config file path
const ConfigFileEnv = "INGRESS_CONFIG"

// Load builds a Config. The file at path is read when path is set,
// otherwise the file named by INGRESS_CONFIG, if any. Files ending in .yaml
// or .yml are YAML; anything else is read as KEY = "value" lines using the
// environment variable names. envFiles are loaded
// with godotenv before the environment is consulted; with none given a
// ./.env file is loaded when present. Variables already set take precedence
// over .env entries.
func Load(path string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		_ = godotenv.Load()
	} else if err := godotenv.Load(envFiles...); err != nil {
		return nil, fmt.Errorf("loading env files: %w", err)
	}

	cfg := defaultConfig()

	if path == "" {
		path = os.Getenv(ConfigFileEnv)
	}
	if path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := applyOverrides(cfg, os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   30 * time.Second,
			RequestTimeout:    30 * time.Minute,
			MaxUploadBytes:    8 << 30,
			MultipartMemory:   32 << 20,
		},
		Services: ServicesConfig{
			Timeout: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func loadFile(cfg *Config, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return nil
	default:
		vals, err := godotenv.Read(path)
		if err != nil {
			return fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := applyOverrides(cfg, func(key string) string { return vals[key] }); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return nil
	}
}

// applyOverrides sets every field whose variable lookup returns a value.
// PREMIS_ENDPOINT, MATERIALSUITE_ENDPOINT, ACCS_ENDPOINT, TEMPDIR and
// VERBOSITY keep the names used by existing deployments.
func applyOverrides(cfg *Config, lookup func(string) string) error {
	strs := map[string]*string{
		"PREMIS_ENDPOINT":        &cfg.Services.PremisEndpoint,
		"MATERIALSUITE_ENDPOINT": &cfg.Services.MaterialsuiteEndpoint,
		"ACCS_ENDPOINT":          &cfg.Services.AccsEndpoint,
		"TEMPDIR":                &cfg.Workspace.TempDir,
		"VERBOSITY":              &cfg.Logging.Level,
		"INGRESS_HTTP_ADDR":      &cfg.Server.Addr,
		"INGRESS_LOG_FORMAT":     &cfg.Logging.Format,
		"INGRESS_METRICS_PATH":   &cfg.Metrics.Path,
	}
	for key, dst := range strs {
		if v := lookup(key); v != "" {
			*dst = v
		}
	}

	durations := map[string]*time.Duration{
		"INGRESS_REQUEST_TIMEOUT":     &cfg.Server.RequestTimeout,
		"INGRESS_SHUTDOWN_TIMEOUT":    &cfg.Server.ShutdownTimeout,
		"INGRESS_HTTP_CLIENT_TIMEOUT": &cfg.Services.Timeout,
	}
	for key, dst := range durations {
		if v := lookup(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("parsing %s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := lookup("INGRESS_MAX_UPLOAD_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("parsing INGRESS_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.Server.MaxUploadBytes = n
	}
	if v := lookup("INGRESS_METRICS_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parsing INGRESS_METRICS_ENABLED: %w", err)
		}
		cfg.Metrics.Enabled = b
	}
	return nil
}

// Validate checks that the remote endpoints are usable URLs and that
// limits are positive.
func (c *Config) Validate() error {
	var errs []error
	endpoints := []struct {
		name, value string
	}{
		{"PREMIS_ENDPOINT", c.Services.PremisEndpoint},
		{"MATERIALSUITE_ENDPOINT", c.Services.MaterialsuiteEndpoint},
		{"ACCS_ENDPOINT", c.Services.AccsEndpoint},
	}
	for _, ep := range endpoints {
		if ep.value == "" {
			errs = append(errs, fmt.Errorf("%s is required", ep.name))
			continue
		}
		u, err := url.Parse(ep.value)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute http(s) URL, got %q", ep.name, ep.value))
		}
	}
	if c.Server.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max upload bytes must be positive"))
	}
	return errors.Join(errs...)
}
