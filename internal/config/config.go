package config

import (
	"fmt"
	"math"
	"os"
	"strings"
	"time"

	"github.com/newthinker/tradecost/internal/alert"
	"github.com/newthinker/tradecost/internal/core"
	"github.com/spf13/viper"
)

type Config struct {
	Cost    CostConfig    `mapstructure:"cost"`
	Input   InputConfig   `mapstructure:"input"`
	Storage StorageConfig `mapstructure:"storage"`
	Report  ReportConfig  `mapstructure:"report"`
	Server  ServerConfig  `mapstructure:"server"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Log     LogConfig     `mapstructure:"log"`

	Notifiers []NotifierConfig `mapstructure:"notifiers"`
	Alerts    AlertsConfig     `mapstructure:"alerts"`
}

// CostConfig holds the commission model.
type CostConfig struct {
	CommissionRate float64 `mapstructure:"commission_rate"` // fraction of notional per leg
}

// InputConfig describes where trades come from.
type InputConfig struct {
	Path     string `mapstructure:"path"`     // CSV file; empty reads from the trade store
	Timezone string `mapstructure:"timezone"` // IANA name used for naive timestamps and date keys
}

type StorageConfig struct {
	Trades  TradeStoreConfig `mapstructure:"trades"`
	Archive ArchiveConfig    `mapstructure:"archive"`
}

// TradeStoreConfig selects the trade store backend.
type TradeStoreConfig struct {
	Driver string `mapstructure:"driver"` // "sqlite" or "postgres"
	DSN    string `mapstructure:"dsn"`    // file path for sqlite, connection string for postgres
}

type ArchiveConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// ReportConfig controls aggregation and rendering.
type ReportConfig struct {
	Formats        []string `mapstructure:"formats"`         // csv, md, json
	Metric         string   `mapstructure:"metric"`          // "pnl" or "return"
	Scale          float64  `mapstructure:"scale"`           // display multiplier
	Precision      int      `mapstructure:"precision"`       // display decimals
	InitialCapital float64  `mapstructure:"initial_capital"` // base for returns and drawdown percentages
	Workers        int      `mapstructure:"workers"`         // 0 uses every CPU
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LogConfig holds logger settings. File enables rotated file output.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// NotifierConfig is an endpoint told about every finished heatmap run.
type NotifierConfig struct {
	Type    string            `mapstructure:"type"` // "webhook"
	Name    string            `mapstructure:"name"`
	URL     string            `mapstructure:"url"`
	Headers map[string]string `mapstructure:"headers"`
}

// AlertsConfig holds rules checked after every heatmap run.
type AlertsConfig struct {
	Cooldown time.Duration `mapstructure:"cooldown"` // quiet period per rule
	Rules    []alert.Rule  `mapstructure:"rules"`
}

// Metrics reported by the aggregation pipeline.
const (
	MetricPnL    = "pnl"
	MetricReturn = "return"
)

// Load reads configuration from file on top of Defaults
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("reading config: %w", err))
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("unmarshaling config: %w", err))
	}

	return &cfg, nil
}

// setDefaults registers every default so env overrides apply to keys absent from the file
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("cost.commission_rate", d.Cost.CommissionRate)
	v.SetDefault("input.path", d.Input.Path)
	v.SetDefault("input.timezone", d.Input.Timezone)
	v.SetDefault("storage.trades.driver", d.Storage.Trades.Driver)
	v.SetDefault("storage.trades.dsn", d.Storage.Trades.DSN)
	v.SetDefault("storage.archive.type", d.Storage.Archive.Type)
	v.SetDefault("storage.archive.path", d.Storage.Archive.Path)
	v.SetDefault("storage.archive.s3.bucket", "")
	v.SetDefault("storage.archive.s3.endpoint", "")
	v.SetDefault("storage.archive.s3.region", d.Storage.Archive.S3.Region)
	v.SetDefault("storage.archive.s3.access_key", "")
	v.SetDefault("storage.archive.s3.secret_key", "")
	v.SetDefault("storage.archive.s3.prefix", "")
	v.SetDefault("report.formats", d.Report.Formats)
	v.SetDefault("report.metric", d.Report.Metric)
	v.SetDefault("report.scale", d.Report.Scale)
	v.SetDefault("report.precision", d.Report.Precision)
	v.SetDefault("report.initial_capital", d.Report.InitialCapital)
	v.SetDefault("report.workers", d.Report.Workers)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.api_key", "")
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.path", d.Metrics.Path)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
	v.SetDefault("alerts.cooldown", d.Alerts.Cooldown)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	return &Config{
		Cost: CostConfig{
			CommissionRate: 0.001,
		},
		Input: InputConfig{
			Timezone: "UTC",
		},
		Storage: StorageConfig{
			Trades: TradeStoreConfig{
				Driver: "sqlite",
				DSN:    "tradecost.db",
			},
			Archive: ArchiveConfig{
				Type: "localfs",
				Path: "archive",
				S3:   S3Config{Region: "us-east-1"},
			},
		},
		Report: ReportConfig{
			Formats:   []string{"csv", "md", "json"},
			Metric:    MetricReturn,
			Scale:     100,
			Precision: 2,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Alerts: AlertsConfig{
			Cooldown: 15 * time.Minute,
		},
	}
}

// Location resolves Input.Timezone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Input.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Input.Timezone)
	if err != nil {
		return nil, core.WrapError(core.ErrConfigInvalid, fmt.Errorf("input.timezone: %w", err))
	}
	return loc, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Cost.CommissionRate < 0 || c.Cost.CommissionRate > 1 || math.IsNaN(c.Cost.CommissionRate) {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("commission_rate must be between 0 and 1, got %v", c.Cost.CommissionRate))
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	switch c.Storage.Trades.Driver {
	case "sqlite", "postgres":
		if c.Storage.Trades.DSN == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.trades.dsn required for driver %s", c.Storage.Trades.Driver))
		}
	case "":
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage.trades.driver %q", c.Storage.Trades.Driver))
	}

	switch c.Storage.Archive.Type {
	case "", "localfs":
		if c.Storage.Archive.Type != "" && c.Storage.Archive.Path == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.archive.path required for localfs"))
		}
	case "s3":
		if c.Storage.Archive.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("storage.archive.s3.bucket required for s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("unknown storage.archive.type %q", c.Storage.Archive.Type))
	}

	if c.Report.Metric != MetricPnL && c.Report.Metric != MetricReturn {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("report.metric must be %q or %q, got %q", MetricPnL, MetricReturn, c.Report.Metric))
	}
	if c.Report.Workers < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("report.workers cannot be negative, got %d", c.Report.Workers))
	}
	if c.Report.Precision < -1 || c.Report.Precision > 15 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("report.precision must be between -1 and 15, got %d", c.Report.Precision))
	}
	if c.Report.InitialCapital < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("report.initial_capital cannot be negative, got %v", c.Report.InitialCapital))
	}

	names := make(map[string]bool)
	for i, n := range c.Notifiers {
		if n.Type != "" && n.Type != "webhook" {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("notifiers[%d]: unknown type %q", i, n.Type))
		}
		if n.URL == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("notifiers[%d]: url required", i))
		}
		name := n.Name
		if name == "" {
			name = "webhook"
		}
		if names[name] {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("notifiers[%d]: duplicate name %q", i, name))
		}
		names[name] = true
	}

	if c.Alerts.Cooldown < 0 {
		return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("alerts.cooldown cannot be negative"))
	}
	rules := make(map[string]bool)
	for i, r := range c.Alerts.Rules {
		if r.Name == "" {
			return core.WrapError(core.ErrConfigMissing, fmt.Errorf("alerts.rules[%d]: name required", i))
		}
		if rules[r.Name] {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("alerts.rules[%d]: duplicate name %q", i, r.Name))
		}
		rules[r.Name] = true
		if _, err := alert.ParseExpr(r.Expr); err != nil {
			return fmt.Errorf("alerts.rules[%d]: %w", i, err)
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("port must be between 1 and 65535, got %d", c.Server.Port))
	}

	return nil
}
