package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Scraper  ScraperConfig  `yaml:"scraper" envconfig:"SCRAPER"`
	Quotes   QuotesConfig   `yaml:"quotes" envconfig:"QUOTES"`
	Schedule ScheduleConfig `yaml:"schedule" envconfig:"SCHEDULE"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"15s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// ScraperConfig contains the broker-branch scraper configuration.
type ScraperConfig struct {
	Headless        bool          `yaml:"headless" envconfig:"HEADLESS" default:"true"`
	PageLoadTimeout time.Duration `yaml:"page_load_timeout" envconfig:"PAGE_LOAD_TIMEOUT" default:"45s"`
	ScriptTimeout   time.Duration `yaml:"script_timeout" envconfig:"SCRIPT_TIMEOUT" default:"30s"`
	RequestDelay    time.Duration `yaml:"request_delay" envconfig:"REQUEST_DELAY" default:"4s"`
	MaxRetries      int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"3"`
	MinTableCount   int           `yaml:"min_table_count" envconfig:"MIN_TABLE_COUNT" default:"15"`
}

// QuotesConfig contains the TWSE quotes client configuration.
type QuotesConfig struct {
	RequestDelay time.Duration `yaml:"request_delay" envconfig:"REQUEST_DELAY" default:"3s"`
	HTTPTimeout  time.Duration `yaml:"http_timeout" envconfig:"HTTP_TIMEOUT" default:"30s"`
}

// ScheduleConfig drives the cron-based accumulative runs.
type ScheduleConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"ENABLED" default:"false"`
	Spec    string `yaml:"spec" envconfig:"SPEC" default:"0 30 16 * * 1-5"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// PathsConfig contains file system path configuration.
type PathsConfig struct {
	BaseDir string `yaml:"base_dir" envconfig:"BASE_DIR" default:"."`
}

// Load loads configuration from the optional YAML file and then the
// environment (TWB_* variables win over the file).
func Load() (*Config, error) {
	cfg := Default()

	if configFile := findConfigFile(); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process("TWB", cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// GetPaths returns the resolved path set for this configuration.
func (c *Config) GetPaths() *Paths {
	return NewPaths(c.Paths.BaseDir)
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Scraper.MaxRetries < 1 {
		return fmt.Errorf("scraper max_retries must be at least 1, got %d", c.Scraper.MaxRetries)
	}
	if c.Scraper.MinTableCount < 1 {
		return fmt.Errorf("scraper min_table_count must be positive, got %d", c.Scraper.MinTableCount)
	}
	if c.Scraper.RequestDelay < 0 {
		return fmt.Errorf("scraper request_delay must not be negative")
	}
	if c.Logging.Output != "stdout" && c.Logging.Output != "file" && c.Logging.Output != "both" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}
	return nil
}

func findConfigFile() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Scraper: ScraperConfig{
			Headless:        true,
			PageLoadTimeout: 45 * time.Second,
			ScriptTimeout:   30 * time.Second,
			RequestDelay:    4 * time.Second,
			MaxRetries:      3,
			MinTableCount:   15,
		},
		Quotes: QuotesConfig{
			RequestDelay: 3 * time.Second,
			HTTPTimeout:  30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Spec:    "0 30 16 * * 1-5",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{BaseDir: "."},
	}
}
