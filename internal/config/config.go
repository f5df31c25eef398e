// Package config loads DSS configuration from config.yaml, .env and the
// environment, and initializes the global logger.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/schoolshare/dss-geo/internal/dataerr"
)

// Config holds the full application configuration.
type Config struct {
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Census     CensusConfig     `yaml:"census" mapstructure:"census"`
	Results    ResultsConfig    `yaml:"results" mapstructure:"results"`
	Quality    QualityConfig    `yaml:"quality" mapstructure:"quality"`
	Choropleth ChoroplethConfig `yaml:"choropleth" mapstructure:"choropleth"`
	Projection ProjectionConfig `yaml:"projection" mapstructure:"projection"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// PathsConfig holds the externally owned data locations. Empty values are
// derived from their parent: data from base, census and processed from data.
type PathsConfig struct {
	Base      string `yaml:"base" mapstructure:"base"`
	Data      string `yaml:"data" mapstructure:"data"`
	Census    string `yaml:"census" mapstructure:"census"`
	Processed string `yaml:"processed" mapstructure:"processed"`
}

// CensusConfig names the national CBG polygon file inside the census path.
type CensusConfig struct {
	CBGFile string `yaml:"cbg_file" mapstructure:"cbg_file"`
}

// ResultsConfig locates the optimization result batches.
type ResultsConfig struct {
	ArtsBatch      string `yaml:"arts_batch" mapstructure:"arts_batch"`
	HospitalBatch  string `yaml:"hospital_batch" mapstructure:"hospital_batch"`
	ActivationRate int    `yaml:"activation_rate" mapstructure:"activation_rate"`
}

// QualityConfig sets the acceptable-loss policy for row validation and joins.
type QualityConfig struct {
	MaxDropFraction float64 `yaml:"max_drop_fraction" mapstructure:"max_drop_fraction"`
}

// ChoroplethConfig sets composer defaults.
type ChoroplethConfig struct {
	Bins               int     `yaml:"bins" mapstructure:"bins"`
	Metric             string  `yaml:"metric" mapstructure:"metric"`
	CoverageThresholdM float64 `yaml:"coverage_threshold_m" mapstructure:"coverage_threshold_m"`
}

// ProjectionConfig names the projected CRS facility coordinates must use.
type ProjectionConfig struct {
	EPSG int `yaml:"epsg" mapstructure:"epsg"`
}

// CacheConfig configures cache warm-up.
type CacheConfig struct {
	WarmConcurrency int `yaml:"warm_concurrency" mapstructure:"warm_concurrency"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port      int      `yaml:"port" mapstructure:"port"`
	RateLimit float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Burst     int      `yaml:"burst" mapstructure:"burst"`
	Origins   []string `yaml:"origins" mapstructure:"origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// legacyEnv maps the deployment's original path variables onto config keys.
var legacyEnv = map[string]string{
	"paths.base":      "DSS_BASE_PATH",
	"paths.data":      "DSS_DATA_PATH",
	"paths.census":    "DSS_CENSUS_PATH",
	"paths.processed": "DSS_PROCESSED_PATH",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, "DSS_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

	v.SetDefault("paths.base", ".")
	v.SetDefault("census.cbg_file", "cbg_shapes_2020.gpkg")
	v.SetDefault("results.arts_batch", "raw/result_arts_250425")
	v.SetDefault("results.hospital_batch", "raw/result_hospital_250507")
	v.SetDefault("results.activation_rate", 25)
	v.SetDefault("quality.max_drop_fraction", 0.01)
	v.SetDefault("choropleth.bins", 5)
	v.SetDefault("choropleth.metric", "distance_reduction")
	v.SetDefault("choropleth.coverage_threshold_m", 10000.0)
	v.SetDefault("projection.epsg", 5070)
	v.SetDefault("cache.warm_concurrency", 4)
	v.SetDefault("server.port", 8501)
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("server.origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Resolve fills derived paths and checks that every configured location is
// usable. Failures are Configuration errors.
func (p PathsConfig) Resolve() (PathsConfig, error) {
	out := p
	if strings.TrimSpace(out.Base) == "" {
		return out, dataerr.NewConfiguration("config: resolve paths", "paths.base", eris.New("base path is empty"))
	}
	if out.Data == "" {
		out.Data = filepath.Join(out.Base, "data")
	}
	if out.Census == "" {
		out.Census = filepath.Join(out.Data, "census")
	}
	if out.Processed == "" {
		out.Processed = filepath.Join(out.Data, "processed")
	}

	for name, dir := range map[string]string{
		"paths.base":      out.Base,
		"paths.data":      out.Data,
		"paths.census":    out.Census,
		"paths.processed": out.Processed,
	} {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return out, dataerr.NewConfiguration("config: resolve paths", name, err)
		}
		// A path that does not exist yet is reported later by the loader as
		// unavailable data; a path that exists as a file is a config error.
		if info, err := os.Stat(abs); err == nil && !info.IsDir() {
			return out, dataerr.NewConfiguration("config: resolve paths", name, eris.Errorf("%s is not a directory", abs))
		}
	}

	return out, nil
}

// knownMetrics mirrors the display metrics the composer understands.
var knownMetrics = map[string]bool{
	"distance_reduction":     true,
	"pct_improvement":        true,
	"pop_weighted_reduction": true,
	"coverage_status":        true,
}

// Validate checks settings required by the given command mode ("compose" or
// "serve").
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Quality.MaxDropFraction < 0 || c.Quality.MaxDropFraction >= 1 {
		errs = append(errs, "quality.max_drop_fraction must be in [0, 1)")
	}
	if c.Choropleth.Bins < 1 || c.Choropleth.Bins > 20 {
		errs = append(errs, "choropleth.bins must be between 1 and 20")
	}
	if !knownMetrics[c.Choropleth.Metric] {
		errs = append(errs, "choropleth.metric "+c.Choropleth.Metric+" is not supported")
	}
	if c.Choropleth.CoverageThresholdM <= 0 {
		errs = append(errs, "choropleth.coverage_threshold_m must be > 0")
	}
	if c.Results.ActivationRate < 0 || c.Results.ActivationRate > 100 {
		errs = append(errs, "results.activation_rate must be between 0 and 100")
	}

	switch mode {
	case "compose":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.RateLimit <= 0 || c.Server.Burst <= 0 {
			errs = append(errs, "server.rate_limit and server.burst must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
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
