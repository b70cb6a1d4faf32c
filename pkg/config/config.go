// Package config loads the YAML configuration of the extraction engine
// and its batch front end.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"docextract/pkg/capability"
	"docextract/pkg/partition"
)

// Config holds the full docextract configuration.
type Config struct {
	Converter    ConverterConfig   `yaml:"converter"`
	Tools        map[string]string `yaml:"tools"` // tool name -> executable path
	TempDir      string            `yaml:"temp_dir"`
	PDFStrategy  string            `yaml:"pdf_strategy"` // auto | fast | hi_res | ocr_only
	OCRLanguages []string          `yaml:"ocr_languages"`
	ProbeTimeout int               `yaml:"probe_timeout_seconds"`
	ToolTimeout  int               `yaml:"tool_timeout_seconds"`

	Batch BatchConfig `yaml:"batch"`
}

// ConverterConfig configures the headless office converter.
type ConverterConfig struct {
	Binary  string `yaml:"binary"`
	Timeout int    `yaml:"timeout_seconds"`
}

// BatchConfig configures directory and share ingestion.
type BatchConfig struct {
	Threads    int      `yaml:"threads"`
	MaxDepth   int      `yaml:"max_depth"`
	MaxFileMB  int      `yaml:"max_file_mb"`
	Extensions []string `yaml:"extensions"`
	Excludes   []string `yaml:"exclude_patterns"`
	OutputDir  string   `yaml:"output_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Converter: ConverterConfig{
			Binary:  "soffice",
			Timeout: 120,
		},
		PDFStrategy:  string(partition.StrategyHiRes),
		OCRLanguages: []string{"eng"},
		ProbeTimeout: 10,
		ToolTimeout:  120,
		Batch: BatchConfig{
			Threads:   5,
			MaxDepth:  10,
			MaxFileMB: 100,
		},
	}
}

// Load reads path over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	if _, err := partition.ParseStrategy(c.PDFStrategy); err != nil {
		return err
	}
	if c.Converter.Timeout <= 0 {
		return fmt.Errorf("converter.timeout_seconds must be > 0")
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout_seconds must be > 0")
	}
	if c.ToolTimeout <= 0 {
		return fmt.Errorf("tool_timeout_seconds must be > 0")
	}
	if c.Batch.Threads <= 0 {
		return fmt.Errorf("batch.threads must be > 0")
	}
	if c.Batch.MaxFileMB < 0 {
		return fmt.Errorf("batch.max_file_mb must be >= 0")
	}
	for name := range c.Tools {
		if !knownTool(capability.Tool(name)) {
			return fmt.Errorf("tools: unknown tool %q", name)
		}
	}
	return nil
}

func knownTool(t capability.Tool) bool {
	for _, k := range capability.KnownTools {
		if k == t {
			return true
		}
	}
	return false
}

// Strategy returns the parsed PDF strategy.
func (c *Config) Strategy() partition.Strategy {
	s, err := partition.ParseStrategy(c.PDFStrategy)
	if err != nil {
		return partition.StrategyAuto
	}
	return s
}

// Binaries returns executable overrides keyed by tool. The converter
// binary is always included.
func (c *Config) Binaries() map[capability.Tool]string {
	out := make(map[capability.Tool]string, len(c.Tools)+1)
	for name, path := range c.Tools {
		out[capability.Tool(name)] = path
	}
	if c.Converter.Binary != "" {
		out[capability.Converter] = c.Converter.Binary
	}
	return out
}

func (c *Config) ConverterTimeout() time.Duration {
	return time.Duration(c.Converter.Timeout) * time.Second
}

func (c *Config) ProbeTimeoutDuration() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}

func (c *Config) ToolTimeoutDuration() time.Duration {
	return time.Duration(c.ToolTimeout) * time.Second
}

// MaxFileBytes returns the batch size limit in bytes, 0 for no limit.
func (c *Config) MaxFileBytes() int64 { return int64(c.Batch.MaxFileMB) * 1024 * 1024 }
