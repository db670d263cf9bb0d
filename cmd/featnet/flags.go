package main

import (
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/featnet/internal/config"
	"github.com/born-ml/featnet/internal/logger"
)

var (
	configPath string
	backend    string
	seed       int64
	workers    int
	logLevel   string
	logFormat  string
	jsonOutput bool
)

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "path to YAML config (defaults are used when empty)",
			Destination: &configPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (cpu, webgpu)",
			Destination: &backend,
		},
		&cli.Int64Flag{
			Name:        "seed",
			Usage:       "seed for weight initialization and synthetic input",
			Destination: &seed,
		},
		&cli.IntFlag{
			Name:        "workers",
			Usage:       "CPU worker goroutines (0 = one per CPU)",
			Destination: &workers,
		},
		&cli.BoolFlag{
			Name:        "json",
			Usage:       "print machine-readable JSON",
			Destination: &jsonOutput,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (console, json)",
			Destination: &logFormat,
		},
	}
}

// loadConfig reads --config (or the defaults) and applies the flags the
// user set explicitly on top.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.IsSet("backend") {
		cfg.Backend = backend
	}
	if cmd.IsSet("seed") {
		cfg.Seed = seed
	}
	if cmd.IsSet("workers") {
		cfg.Workers = workers
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = logLevel
	}
	if cmd.IsSet("log-format") {
		cfg.LogFormat = logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return log, nil
}
