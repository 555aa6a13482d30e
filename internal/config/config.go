// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cranland/parcel-cli/internal/db"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Geocode GeocodeConfig `yaml:"geocode" mapstructure:"geocode"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	RunLog  RunLogConfig  `yaml:"runlog" mapstructure:"runlog"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string        `yaml:"database_url" mapstructure:"database_url"`
	Pool        db.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// APIConfig configures the upstream grower contract API.
type APIConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Token       string `yaml:"token" mapstructure:"token"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// GeocodeConfig configures the geocoding provider chain.
type GeocodeConfig struct {
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	CountryCode  string `yaml:"country_code" mapstructure:"country_code"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DelayMillis  int    `yaml:"delay_millis" mapstructure:"delay_millis"`
	NominatimURL string `yaml:"nominatim_url" mapstructure:"nominatim_url"`
	CensusURL    string `yaml:"census_url" mapstructure:"census_url"`
}

// ExportConfig configures feature collection output.
type ExportConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// RunLogConfig configures the local run journal.
type RunLogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServerConfig configures the read-only collections server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PARCEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("api.user_agent", "parcel-cli/1.0 (grower data sync)")
	v.SetDefault("api.timeout_secs", 30)
	v.SetDefault("geocode.user_agent", "parcel-cli/1.0 (farm address geocoder)")
	v.SetDefault("geocode.country_code", "us")
	v.SetDefault("geocode.timeout_secs", 10)
	v.SetDefault("geocode.delay_millis", 1100)
	v.SetDefault("geocode.nominatim_url", "https://nominatim.openstreetmap.org/search")
	v.SetDefault("geocode.census_url", "https://geocoding.geo.census.gov/geocoder/locations/onelineaddress")
	v.SetDefault("export.dir", "export")
	v.SetDefault("runlog.path", "parcel-runs.db")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
