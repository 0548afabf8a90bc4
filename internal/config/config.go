package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"

	PrecisionSecond = "second"
	PrecisionMinute = "minute"
)

// Config models taskbot.yml.
type Config struct {
	Storage struct {
		Driver  string `yaml:"driver"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"storage"`
	Dialogue struct {
		Reminder  bool   `yaml:"reminder"`
		Precision string `yaml:"precision"`
	} `yaml:"dialogue"`
	Telegram struct {
		Enabled     bool          `yaml:"enabled"`
		Token       string        `yaml:"-"`
		PollTimeout time.Duration `yaml:"poll_timeout"`
		Debug       bool          `yaml:"debug"`
	} `yaml:"telegram"`
	HTTP struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads config from the given path without validating it, so callers
// can apply overrides first and then call Validate.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with taskbot config init", path)
		}
		return nil, err
	}
	return Decode(data)
}

// LoadOptional is Load, returning the default config if the file does not
// exist.
func LoadOptional(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return Decode(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverFile, DriverSQLite:
	default:
		return fmt.Errorf("config.storage.driver must be %q or %q, got %q", DriverFile, DriverSQLite, c.Storage.Driver)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("config.storage.data_dir is required")
	}
	switch c.Dialogue.Precision {
	case PrecisionSecond, PrecisionMinute:
	default:
		return fmt.Errorf("config.dialogue.precision must be %q or %q, got %q", PrecisionSecond, PrecisionMinute, c.Dialogue.Precision)
	}
	if c.Telegram.PollTimeout < 0 {
		return fmt.Errorf("config.telegram.poll_timeout must not be negative")
	}
	if c.HTTP.Enabled && c.HTTP.Addr == "" {
		return fmt.Errorf("config.http.addr is required when http is enabled")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config.log.level must be one of debug, info, warn, error")
	}
	if !c.Telegram.Enabled && !c.HTTP.Enabled {
		return fmt.Errorf("at least one of telegram or http must be enabled")
	}
	return nil
}

// RequireToken fails when the Telegram front end is enabled without a token.
func (c *Config) RequireToken() error {
	if c.Telegram.Enabled && c.Telegram.Token == "" {
		return fmt.Errorf("missing required config: Telegram bot token. " +
			"Set TASKBOT_TELEGRAM_TOKEN (or TELEGRAM_TOKEN in .env), or disable telegram in taskbot.yml")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskbot.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
}

// Decode parses raw YAML bytes over the defaults. Keys missing from data
// keep their default values.
func Decode(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	return cfg, nil
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	cfg, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultTemplate = `storage:
  # file keeps tasks.json in data_dir; sqlite keeps the same collection in taskbot.db
  driver: file
  data_dir: data

dialogue:
  # ask for a reminder time after the due date
  reminder: true
  # canonical precision of stored dates: second or minute
  precision: second

telegram:
  enabled: true
  poll_timeout: 60s
  debug: false

http:
  enabled: false
  addr: 127.0.0.1:8080

log:
  level: info
`
