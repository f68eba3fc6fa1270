// Command builddistrictstore runs the offline build pipeline: it streams
// a school-district shapefile through GeometryNormalizer and writes a
// district store the online Engine can open read-only.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/akhenakh/geodistrict/internal/geomutil"
	"github.com/akhenakh/geodistrict/internal/shapefile"
	"github.com/akhenakh/geodistrict/internal/store"
)

type buildConfig struct {
	ShapefilePath string  `mapstructure:"shapefile_path"`
	OutputPath    string  `mapstructure:"output_path"`
	SchoolYear    string  `mapstructure:"school_year"`
	Tolerance     float64 `mapstructure:"tolerance"`
	LogLevel      string  `mapstructure:"log_level"`
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("build failed", zap.Error(err))
	}
}

// loadConfig layers defaults, an optional YAML config file, environment
// variables (GEODISTRICT_ prefix), and command-line flags, in increasing
// priority.
func loadConfig() (buildConfig, error) {
	viper.SetDefault("school_year", "2023-2024")
	viper.SetDefault("tolerance", 1e-4)
	viper.SetDefault("log_level", "info")
	// Registered so Unmarshal also picks these keys up from the environment.
	viper.SetDefault("shapefile_path", "")
	viper.SetDefault("output_path", "")
	viper.SetEnvPrefix("GEODISTRICT")
	viper.AutomaticEnv()

	configFile := flag.String("config", "", "optional YAML config file")
	shapefilePath := flag.String("shapefile", "", "path to the source .shp file (required)")
	outputPath := flag.String("output", "", "path to write the built store to (required)")
	schoolYear := flag.String("school-year", "", "school year identifier, e.g. 2023-2024")
	tolerance := flag.Float64("tolerance", 0, "Douglas-Peucker simplification tolerance in degrees")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	if *configFile != "" {
		viper.SetConfigFile(*configFile)
		if err := viper.ReadInConfig(); err != nil {
			return buildConfig{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	if *shapefilePath != "" {
		viper.Set("shapefile_path", *shapefilePath)
	}
	if *outputPath != "" {
		viper.Set("output_path", *outputPath)
	}
	if *schoolYear != "" {
		viper.Set("school_year", *schoolYear)
	}
	if *tolerance != 0 {
		viper.Set("tolerance", *tolerance)
	}
	if *logLevel != "" {
		viper.Set("log_level", *logLevel)
	}

	var cfg buildConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return buildConfig{}, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.ShapefilePath == "" {
		return buildConfig{}, fmt.Errorf("-shapefile is required")
	}
	if cfg.OutputPath == "" {
		return buildConfig{}, fmt.Errorf("-output is required")
	}
	return cfg, nil
}

func newLogger(level string) (*zap.Logger, error) {
	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		zapLevel = zap.InfoLevel
	}
	prodCfg := zap.NewProductionConfig()
	prodCfg.Level = zap.NewAtomicLevelAt(zapLevel)
	return prodCfg.Build()
}

func run(cfg buildConfig, logger *zap.Logger) error {
	start := time.Now()

	reader, err := shapefile.Open(cfg.ShapefilePath, logger)
	if err != nil {
		return fmt.Errorf("open shapefile: %w", err)
	}

	builder, err := store.NewBuilder(cfg.OutputPath, filepath.Base(cfg.ShapefilePath), cfg.SchoolYear, cfg.Tolerance, logger)
	if err != nil {
		return fmt.Errorf("new builder: %w", err)
	}

	var written, normalizeWarnings int
	var buildErr error
	reader.Each(func(rec shapefile.Record) bool {
		result, warnings, nerr := geomutil.Normalize(rec.Geometry, cfg.Tolerance)
		normalizeWarnings += len(warnings)
		for _, w := range warnings {
			logger.Warn("geometry normalization warning", zap.String("geoid", rec.GEOID), zap.String("detail", w))
		}
		if nerr != nil {
			logger.Warn("dropping district: no valid geometry after normalization",
				zap.String("geoid", rec.GEOID), zap.Error(nerr))
			return true
		}

		row := store.Row{
			DistrictID:   rec.GEOID,
			Name:         rec.Name,
			StateCode:    rec.StateFP,
			GradeLowest:  rec.LoGrade,
			GradeHighest: rec.HiGrade,
			LandAreaM2:   rec.ALandM2,
			WaterAreaM2:  rec.AWaterM2,
			SchoolYear:   rec.SchoolYear,
			BBox: store.BBox{
				MinLng: result.BBox.MinLng, MinLat: result.BBox.MinLat,
				MaxLng: result.BBox.MaxLng, MaxLat: result.BBox.MaxLat,
			},
			Centroid:     store.Centroid{Lng: result.Centroid.Lng, Lat: result.Centroid.Lat},
			GeometryBlob: result.GeometryBlob,
		}
		if aerr := builder.AddDistrict(row); aerr != nil {
			buildErr = fmt.Errorf("add district %s: %w", rec.GEOID, aerr)
			return false
		}
		written++
		return true
	})
	if buildErr != nil {
		builder.Abort()
		return buildErr
	}

	if err := builder.Finalize(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	logger.Info("build complete",
		zap.Int("districts_written", written),
		zap.Int("records_skipped", reader.Skipped()),
		zap.Int("normalization_warnings", normalizeWarnings),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}
