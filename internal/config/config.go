package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Gazetteer GazetteerConfig `yaml:"gazetteer" mapstructure:"gazetteer"`
	Grids     GridsConfig     `yaml:"grids" mapstructure:"grids"`
	Query     QueryConfig     `yaml:"query" mapstructure:"query"`
	Forecast  ForecastConfig  `yaml:"forecast" mapstructure:"forecast"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// GazetteerConfig names the Natural Earth shapefiles and the alias file the
// name index is built from.
type GazetteerConfig struct {
	MarinePath    string `yaml:"marine_path" mapstructure:"marine_path"`
	CountriesPath string `yaml:"countries_path" mapstructure:"countries_path"`
	LakesPath     string `yaml:"lakes_path" mapstructure:"lakes_path"`
	AliasPath     string `yaml:"alias_path" mapstructure:"alias_path"`
}

// GridsConfig configures GRIB acquisition and decoding.
type GridsConfig struct {
	Dir              string  `yaml:"dir" mapstructure:"dir"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	CatalogPath      string  `yaml:"catalog_path" mapstructure:"catalog_path"`
	WGRIB2Path       string  `yaml:"wgrib2_path" mapstructure:"wgrib2_path"`
	PollIntervalMins int     `yaml:"poll_interval_mins" mapstructure:"poll_interval_mins"`
	MaxLookback      int     `yaml:"max_lookback" mapstructure:"max_lookback"`
	ForecastHour     int     `yaml:"forecast_hour" mapstructure:"forecast_hour"`
	RatePerSec       float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	UserAgent        string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// QueryConfig tunes region resolution and hazard matching.
type QueryConfig struct {
	PointHalfWidthDeg      float64 `yaml:"point_half_width_deg" mapstructure:"point_half_width_deg"`
	ValidTimeToleranceMins int     `yaml:"valid_time_tolerance_mins" mapstructure:"valid_time_tolerance_mins"`
}

// ForecastConfig configures the NWS text forecast client.
type ForecastConfig struct {
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MARINECAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("gazetteer.marine_path", "data/ne_10m_geography_marine_polys.shp")
	v.SetDefault("gazetteer.countries_path", "data/ne_110m_admin_0_countries.shp")
	v.SetDefault("gazetteer.lakes_path", "data/ne_10m_lakes.shp")
	v.SetDefault("gazetteer.alias_path", "")
	v.SetDefault("grids.dir", "data/grib")
	v.SetDefault("grids.base_url", "https://nomads.ncep.noaa.gov/pub/data/nccf/com/gfs/prod")
	v.SetDefault("grids.catalog_path", "data/catalog.db")
	v.SetDefault("grids.wgrib2_path", "wgrib2")
	v.SetDefault("grids.poll_interval_mins", 10)
	v.SetDefault("grids.max_lookback", 8)
	v.SetDefault("grids.forecast_hour", 0)
	v.SetDefault("grids.rate_per_sec", 0.5)
	v.SetDefault("grids.user_agent", "marinecast/1.0")
	v.SetDefault("query.point_half_width_deg", 1.0)
	v.SetDefault("query.valid_time_tolerance_mins", 90)
	v.SetDefault("forecast.base_url", "https://tgftp.nws.noaa.gov/data/forecasts/marine/coastal")
	v.SetDefault("forecast.timeout_secs", 15)

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
