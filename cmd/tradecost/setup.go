package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/newthinker/tradecost/internal/app"
	"github.com/newthinker/tradecost/internal/config"
	"github.com/newthinker/tradecost/internal/logger"
)

// loadConfig reads --config, falling back to defaults plus environment overrides
func loadConfig() (*config.Config, bool, error) {
	if cfgFile == "" {
		return config.Defaults(), true, nil
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, false, fmt.Errorf("loading config: %w", err)
	}
	return cfg, false, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	return logger.NewWithOptions(logger.Options{
		Development: debug,
		Level:       level,
		File:        cfg.Log.File,
		MaxSizeMB:   cfg.Log.MaxSizeMB,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAgeDays:  cfg.Log.MaxAgeDays,
	})
}

// bootstrap loads configuration and builds the logger and application.
// Callers must Sync the logger and Close the app.
func bootstrap() (*config.Config, *zap.Logger, *app.App, error) {
	cfg, defaulted, err := loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	if defaulted {
		log.Warn("no config file specified, using defaults")
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, log, a, nil
}
