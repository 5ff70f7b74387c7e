// Package appconfig loads relayd's layered configuration: a base YAML
// file, an environment-named overlay (RELAYD_ENV), and an optional local
// .env file for secrets that must never live in the committed YAML.
package appconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PullConfig is the PULL (ingest) socket's settings.
type PullConfig struct {
	Addr          string `yaml:"addr"`
	InboundBuffer int    `yaml:"inbound_buffer"`
	AcceptRatePS  int    `yaml:"accept_rate_per_sec"`
	AcceptBurst   int    `yaml:"accept_burst"`
}

// PubConfig is the PUB (broadcast) socket's settings.
type PubConfig struct {
	Addr string `yaml:"addr"`
}

// HTTPConfig is the REST + WebSocket surface's settings.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	CORSOrigins    []string `yaml:"cors_origins"`
	TLSCertFile    string   `yaml:"tls_cert_file"`
	TLSKeyFile     string   `yaml:"tls_key_file"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// StorageConfig holds the persistent store's settings.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SweeperConfig holds the timeout sweeper's settings.
type SweeperConfig struct {
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`
	Interval         time.Duration `yaml:"interval"`
}

// Config is the full layered configuration document.
type Config struct {
	Pull    PullConfig    `yaml:"pull"`
	Pub     PubConfig     `yaml:"pub"`
	HTTP    HTTPConfig    `yaml:"http"`
	Storage StorageConfig `yaml:"storage"`
	Logging LoggingConfig `yaml:"logging"`
	Sweeper SweeperConfig `yaml:"sweeper"`
}

// DefaultConfig returns sane defaults for local/dev use.
func DefaultConfig() *Config {
	return &Config{
		Pull: PullConfig{
			Addr:          "0.0.0.0:5555",
			InboundBuffer: 1024,
			AcceptRatePS:  50,
			AcceptBurst:   20,
		},
		Pub: PubConfig{
			Addr: "0.0.0.0:5556",
		},
		HTTP: HTTPConfig{
			Addr:         "0.0.0.0:8080",
			CORSOrigins:  []string{"*"},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Storage: StorageConfig{
			DataDir: "~/.relayd",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Sweeper: SweeperConfig{
			HeartbeatTimeout: 60 * time.Second,
			Interval:         12 * time.Second,
		},
	}
}

// BaseFileName is the always-present configuration file.
const BaseFileName = "config.base.yaml"

// EnvFileNameTemplate produces the per-environment overlay file name.
func EnvFileNameTemplate(env string) string {
	return fmt.Sprintf("config.%s.yaml", env)
}

// Load builds a Config by layering, in order:
//  1. built-in defaults
//  2. config.base.yaml in dir, if present
//  3. config.<env>.yaml in dir, if present (env defaults to RELAYD_ENV, "dev" if unset)
//  4. a local .env file in dir, loaded into the process environment only
//     (never merged into the struct directly — callers that need a secret
//     read it back via os.Getenv after Load returns)
func Load(dir, env string) (*Config, error) {
	dir = expandPath(dir)
	if env == "" {
		env = os.Getenv("RELAYD_ENV")
	}
	if env == "" {
		env = "dev"
	}

	cfg := DefaultConfig()

	if err := mergeYAMLFile(cfg, filepath.Join(dir, BaseFileName)); err != nil {
		return nil, err
	}
	if err := mergeYAMLFile(cfg, filepath.Join(dir, EnvFileNameTemplate(env))); err != nil {
		return nil, err
	}

	envFile := filepath.Join(dir, ".env")
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("appconfig: load .env: %w", err)
		}
	}

	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir)
	return cfg, nil
}

// mergeYAMLFile unmarshals path onto cfg if it exists; a missing file is
// not an error, since overlays are optional.
func mergeYAMLFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("appconfig: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("appconfig: parse %s: %w", path, err)
	}
	return nil
}

// Save writes cfg as the base file in dir, creating dir if needed.
func (c *Config) Save(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("appconfig: create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("appconfig: marshal: %w", err)
	}
	header := []byte("# relayd configuration\n# generated automatically on first run\n\n")
	path := filepath.Join(dir, BaseFileName)
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return fmt.Errorf("appconfig: write %s: %w", path, err)
	}
	return nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
