package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/terramap-labs/tilescout/internal/imagery"
)

// Config holds the full application configuration.
type Config struct {
	Download DownloadConfig `yaml:"download" mapstructure:"download"`
	Detect   DetectConfig   `yaml:"detect" mapstructure:"detect"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Serve    ServeConfig    `yaml:"serve" mapstructure:"serve"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// DownloadConfig configures the tile download pipeline.
type DownloadConfig struct {
	TileURL     string  `yaml:"tile_url" mapstructure:"tile_url"`
	Zoom        int     `yaml:"zoom" mapstructure:"zoom"`
	Workers     int     `yaml:"workers" mapstructure:"workers"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	SkipEmpty   bool    `yaml:"skip_empty" mapstructure:"skip_empty"`
	OutputDir   string  `yaml:"output_dir" mapstructure:"output_dir"`
}

// DetectConfig configures the hosted detection model.
type DetectConfig struct {
	APIKey     string  `yaml:"api_key" mapstructure:"api_key"`
	Model      string  `yaml:"model" mapstructure:"model"`
	Confidence float64 `yaml:"confidence" mapstructure:"confidence"`
}

// StoreConfig configures the run manifest database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ServeConfig configures the preview server.
type ServeConfig struct {
	Port          int    `yaml:"port" mapstructure:"port"`
	BasemapURL    string `yaml:"basemap_url" mapstructure:"basemap_url"`
	BasemapFormat string `yaml:"basemap_format" mapstructure:"basemap_format"`
	CacheSize     int    `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTLSecs  int    `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
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
	v.SetEnvPrefix("TILESCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("download.tile_url", imagery.DefaultTileURL)
	v.SetDefault("download.zoom", 18)
	v.SetDefault("download.workers", 4)
	v.SetDefault("download.timeout_secs", 10)
	v.SetDefault("download.rate_per_sec", 0)
	v.SetDefault("download.skip_empty", false)
	v.SetDefault("download.output_dir", ".")
	// Empty defaults so environment-only keys still bind on Unmarshal.
	v.SetDefault("detect.api_key", "")
	v.SetDefault("detect.model", "")
	v.SetDefault("detect.confidence", 0.05)
	v.SetDefault("store.path", "tilescout.db")
	v.SetDefault("serve.port", 8080)
	v.SetDefault("serve.basemap_url", "https://tile.openstreetmap.org")
	v.SetDefault("serve.basemap_format", "png")
	v.SetDefault("serve.cache_size", 1000)
	v.SetDefault("serve.cache_ttl_secs", 3600)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

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
