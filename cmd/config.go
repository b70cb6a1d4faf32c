package cmd

import (
	"github.com/spf13/cobra"

	"docextract/pkg/bridge"
	"docextract/pkg/capability"
	"docextract/pkg/config"
	"docextract/pkg/engine"
	"docextract/pkg/partition"
	"docextract/pkg/utils"
)

var (
	cfgFile     string
	verbose     bool
	quiet       bool
	logFile     string
	pdfStrategy string
	languages   []string
	sofficeBin  string
	convTimeout int
	tempDir     string
)

func setupLogging() error {
	utils.SetDebug(verbose)
	utils.SetQuiet(quiet)
	if logFile != "" {
		if err := utils.InitLogger(logFile); err != nil {
			return err
		}
	}
	return nil
}

// loadConfig reads --config (or the defaults) and lays explicitly set
// flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.Default()
	if cfgFile != "" {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return nil, err
		}
		utils.LogDebug("Loaded configuration from %s", cfgFile)
	}

	flags := cmd.Flags()
	if flags.Changed("strategy") {
		cfg.PDFStrategy = pdfStrategy
	}
	if flags.Changed("lang") {
		cfg.OCRLanguages = languages
	}
	if flags.Changed("soffice") {
		cfg.Converter.Binary = sofficeBin
	}
	if flags.Changed("timeout") {
		cfg.Converter.Timeout = convTimeout
	}
	if flags.Changed("temp-dir") {
		cfg.TempDir = tempDir
	}
	if flags.Changed("threads") {
		cfg.Batch.Threads = threads
	}
	if flags.Changed("maxdepth") {
		cfg.Batch.MaxDepth = maxDepth
	}
	if flags.Changed("max-size") {
		cfg.Batch.MaxFileMB = maxSizeMB
	}
	if flags.Changed("output-dir") {
		cfg.Batch.OutputDir = outputDir
	}
	if flags.Changed("extensions") {
		cfg.Batch.Extensions = extensions
	}
	if flags.Changed("exclude") {
		cfg.Batch.Excludes = append(cfg.Batch.Excludes, excludes...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func buildCapabilities(cfg *config.Config) *capability.Capabilities {
	return capability.New(&capability.ExecProber{
		Timeout:  cfg.ProbeTimeoutDuration(),
		Binaries: cfg.Binaries(),
	})
}

func buildEngine(cfg *config.Config) *engine.Engine {
	caps := buildCapabilities(cfg)

	p := partition.New(caps)
	p.Binaries = cfg.Binaries()
	p.TempRoot = cfg.TempDir
	p.Timeout = cfg.ToolTimeoutDuration()

	return engine.New(engine.Options{
		Capabilities: caps,
		Converter:    bridge.NewOffice(cfg.Converter.Binary, cfg.ConverterTimeout(), cfg.TempDir),
		Partitioner:  p,
		PDFStrategy:  cfg.Strategy(),
		Languages:    cfg.OCRLanguages,
	})
}
