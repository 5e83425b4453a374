package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides, e.g. DIRSTAT_LOG_LEVEL
const EnvPrefix = "DIRSTAT"

// FilterConfig represents the filter worker configuration
type FilterConfig struct {
	// Command is the filter executable; empty runs the built-in sentence filter
	Command string `yaml:"command"`

	// Args are passed before the pattern character
	Args []string `yaml:"args"`

	// Timeout bounds the wait for the filter result (0 = unbounded)
	Timeout time.Duration `yaml:"timeout"`
}

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled records every run in the history database
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database
	DBPath string `yaml:"db_path"`
}

// Config represents dirstat configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs will be written
	LogDir string `yaml:"log_dir"`

	// SummaryFile receives one line per entry and the total
	SummaryFile string `yaml:"summary_file"`

	// ReportDir receives the <name>_stat.txt metadata records
	ReportDir string `yaml:"report_dir"`

	// Pattern is the single character sentences are filtered by
	Pattern string `yaml:"pattern"`

	// MaxConcurrency is the number of entry pipelines run at once
	MaxConcurrency int `yaml:"max_concurrency"`

	// ImageExtensions select the grayscale conversion topology
	ImageExtensions []string `yaml:"image_extensions"`

	// Exclude holds glob patterns of entry names to skip
	Exclude []string `yaml:"exclude"`

	// DryRun lists entries and their topology without spawning workers
	DryRun bool `yaml:"dry_run"`

	Filter  FilterConfig  `yaml:"filter"`
	History HistoryConfig `yaml:"history"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:        "info",
		LogDir:          ".dirstat/logs",
		SummaryFile:     "statistics.txt",
		ReportDir:       ".dirstat/reports",
		Pattern:         "",
		MaxConcurrency:  1,
		ImageExtensions: []string{".bmp"},
		Exclude:         []string{},
		DryRun:          false,
		Filter: FilterConfig{
			Command: "",
			Args:    []string{},
			Timeout: 0, // Unbounded
		},
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".dirstat/history.db",
		},
	}
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Durations are strings in YAML
	type yamlFilter struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args"`
		Timeout string   `yaml:"timeout"`
	}
	type yamlConfig struct {
		LogLevel        string        `yaml:"log_level"`
		LogDir          string        `yaml:"log_dir"`
		SummaryFile     string        `yaml:"summary_file"`
		ReportDir       string        `yaml:"report_dir"`
		Pattern         string        `yaml:"pattern"`
		MaxConcurrency  int           `yaml:"max_concurrency"`
		ImageExtensions []string      `yaml:"image_extensions"`
		Exclude         []string      `yaml:"exclude"`
		DryRun          bool          `yaml:"dry_run"`
		Filter          yamlFilter    `yaml:"filter"`
		History         HistoryConfig `yaml:"history"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.SummaryFile != "" {
		cfg.SummaryFile = yamlCfg.SummaryFile
	}
	if yamlCfg.ReportDir != "" {
		cfg.ReportDir = yamlCfg.ReportDir
	}
	if yamlCfg.Pattern != "" {
		cfg.Pattern = yamlCfg.Pattern
	}
	if yamlCfg.MaxConcurrency != 0 {
		cfg.MaxConcurrency = yamlCfg.MaxConcurrency
	}
	if yamlCfg.ImageExtensions != nil {
		cfg.ImageExtensions = yamlCfg.ImageExtensions
	}
	if yamlCfg.Exclude != nil {
		cfg.Exclude = yamlCfg.Exclude
	}
	if yamlCfg.DryRun {
		cfg.DryRun = yamlCfg.DryRun
	}
	if yamlCfg.Filter.Command != "" {
		cfg.Filter.Command = yamlCfg.Filter.Command
	}
	if yamlCfg.Filter.Args != nil {
		cfg.Filter.Args = yamlCfg.Filter.Args
	}
	if yamlCfg.Filter.Timeout != "" {
		timeout, err := time.ParseDuration(yamlCfg.Filter.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid filter.timeout format %q: %w", yamlCfg.Filter.Timeout, err)
		}
		cfg.Filter.Timeout = timeout
	}

	// history.enabled may be explicitly false, so check presence
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, exists := rawMap["history"]; exists && section != nil {
			historyMap, _ := section.(map[string]interface{})
			if _, exists := historyMap["enabled"]; exists {
				cfg.History.Enabled = yamlCfg.History.Enabled
			}
			if _, exists := historyMap["db_path"]; exists {
				cfg.History.DBPath = yamlCfg.History.DBPath
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .dirstat/config.yaml in the specified directory
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".dirstat", "config.yaml"))
}

// envOverrides mirrors the settings that may come from the environment.
// Fields are strings so unset variables can be told apart from zero values.
type envOverrides struct {
	LogLevel       string `envconfig:"LOG_LEVEL"`
	LogDir         string `envconfig:"LOG_DIR"`
	SummaryFile    string `envconfig:"SUMMARY_FILE"`
	ReportDir      string `envconfig:"REPORT_DIR"`
	Pattern        string `envconfig:"PATTERN"`
	MaxConcurrency string `envconfig:"MAX_CONCURRENCY"`
	FilterCommand  string `envconfig:"FILTER_COMMAND"`
	FilterTimeout  string `envconfig:"FILTER_TIMEOUT"`
	HistoryEnabled string `envconfig:"HISTORY_ENABLED"`
	HistoryDBPath  string `envconfig:"HISTORY_DB_PATH"`
}

// ApplyEnv overrides configuration values with DIRSTAT_* environment variables
func (c *Config) ApplyEnv() error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}

	if env.LogLevel != "" {
		c.LogLevel = env.LogLevel
	}
	if env.LogDir != "" {
		c.LogDir = env.LogDir
	}
	if env.SummaryFile != "" {
		c.SummaryFile = env.SummaryFile
	}
	if env.ReportDir != "" {
		c.ReportDir = env.ReportDir
	}
	if env.Pattern != "" {
		c.Pattern = env.Pattern
	}
	if env.MaxConcurrency != "" {
		n, err := strconv.Atoi(env.MaxConcurrency)
		if err != nil {
			return fmt.Errorf("invalid %s_MAX_CONCURRENCY %q: %w", EnvPrefix, env.MaxConcurrency, err)
		}
		c.MaxConcurrency = n
	}
	if env.FilterCommand != "" {
		c.Filter.Command = env.FilterCommand
	}
	if env.FilterTimeout != "" {
		d, err := time.ParseDuration(env.FilterTimeout)
		if err != nil {
			return fmt.Errorf("invalid %s_FILTER_TIMEOUT %q: %w", EnvPrefix, env.FilterTimeout, err)
		}
		c.Filter.Timeout = d
	}
	if env.HistoryEnabled != "" {
		b, err := strconv.ParseBool(env.HistoryEnabled)
		if err != nil {
			return fmt.Errorf("invalid %s_HISTORY_ENABLED %q: %w", EnvPrefix, env.HistoryEnabled, err)
		}
		c.History.Enabled = b
	}
	if env.HistoryDBPath != "" {
		c.History.DBPath = env.HistoryDBPath
	}
	return nil
}

// FlagOverrides carries CLI flag values; nil fields were not set
type FlagOverrides struct {
	SummaryFile    *string
	ReportDir      *string
	Pattern        *string
	FilterCommand  *string
	FilterTimeout  *time.Duration
	MaxConcurrency *int
	Exclude        []string
	LogDir         *string
	Verbose        *bool
	DryRun         *bool
	History        *bool
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(f FlagOverrides) {
	if f.SummaryFile != nil {
		c.SummaryFile = *f.SummaryFile
	}
	if f.ReportDir != nil {
		c.ReportDir = *f.ReportDir
	}
	if f.Pattern != nil {
		c.Pattern = *f.Pattern
	}
	if f.FilterCommand != nil {
		c.Filter.Command = *f.FilterCommand
	}
	if f.FilterTimeout != nil {
		c.Filter.Timeout = *f.FilterTimeout
	}
	if f.MaxConcurrency != nil {
		c.MaxConcurrency = *f.MaxConcurrency
	}
	if len(f.Exclude) > 0 {
		c.Exclude = append(c.Exclude, f.Exclude...)
	}
	if f.LogDir != nil {
		c.LogDir = *f.LogDir
	}
	if f.Verbose != nil && *f.Verbose {
		c.LogLevel = "debug"
	}
	if f.DryRun != nil {
		c.DryRun = *f.DryRun
	}
	if f.History != nil {
		c.History.Enabled = *f.History
	}
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if utf8.RuneCountInString(c.Pattern) != 1 {
		return fmt.Errorf("pattern must be exactly one character, got %q", c.Pattern)
	}

	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be >= 1, got %d", c.MaxConcurrency)
	}

	if c.SummaryFile == "" {
		return fmt.Errorf("summary_file cannot be empty")
	}
	if c.ReportDir == "" {
		return fmt.Errorf("report_dir cannot be empty")
	}

	if c.Filter.Timeout < 0 {
		return fmt.Errorf("filter.timeout must be >= 0, got %v", c.Filter.Timeout)
	}

	for _, ext := range c.ImageExtensions {
		if strings.TrimPrefix(ext, ".") == "" {
			return fmt.Errorf("image_extensions contains an empty extension")
		}
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}
