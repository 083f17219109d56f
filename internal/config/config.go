package config

import (
	"math"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"loopscan/domain/core"
	"loopscan/domain/echo"
	"loopscan/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Scan     ScanConfig     `yaml:"scan"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ScanConfig holds detection and validation parameters
type ScanConfig struct {
	PatchRadiusDeg  float64   `yaml:"patch_radius_deg" json:"patch_radius_deg"`
	TargetsDeg      []float64 `yaml:"targets_deg" json:"targets_deg"`
	ToleranceDeg    float64   `yaml:"tolerance_deg" json:"tolerance_deg"`
	Threshold       float64   `yaml:"threshold" json:"threshold"`
	AbsoluteMode    bool      `yaml:"absolute_mode" json:"absolute_mode"`
	GridNSide       int       `yaml:"grid_nside" json:"grid_nside"`
	MinCoverage     float64   `yaml:"min_coverage" json:"min_coverage"`
	EnsembleSize    int       `yaml:"ensemble_size" json:"ensemble_size"`
	Workers         int       `yaml:"workers" json:"workers"`
	Seed            int64     `yaml:"seed" json:"seed"`
	PValuePrecision float64   `yaml:"p_value_precision" json:"p_value_precision"`
	StrongThreshold float64   `yaml:"strong_threshold" json:"strong_threshold"`
	NullProvider    string    `yaml:"null_provider" json:"null_provider"`
	TopN            int       `yaml:"top_n" json:"top_n"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LoggingConfig selects the logger flavor and level
type LoggingConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

// Null providers accepted by ScanConfig.NullProvider
const (
	NullProviderNoise   = "noise"
	NullProviderShuffle = "shuffle"
)

// DefaultScan returns the default detection parameters.
func DefaultScan() ScanConfig {
	return ScanConfig{
		PatchRadiusDeg:  10,
		TargetsDeg:      []float64{90, 180, 270},
		ToleranceDeg:    5,
		Threshold:       0.2,
		GridNSide:       8,
		MinCoverage:     0.9,
		EnsembleSize:    100,
		Workers:         runtime.NumCPU(),
		Seed:            42,
		PValuePrecision: 0.01,
		StrongThreshold: 0.2,
		NullProvider:    NullProviderNoise,
		TopN:            10,
	}
}

// Default returns the complete default configuration.
func Default() *Config {
	return &Config{
		Scan:     DefaultScan(),
		Server:   ServerConfig{Port: "8080"},
		Logging:  LoggingConfig{Env: "dev", Level: "info"},
		Database: DatabaseConfig{},
	}
}

// Load reads .env, then the YAML file named by LOOPSCAN_CONFIG, then
// environment overrides, and validates the result.
func Load() (*Config, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	config := Default()
	if path := os.Getenv("LOOPSCAN_CONFIG"); path != "" {
		if err := config.mergeFile(path); err != nil {
			return nil, err
		}
	}
	config.applyEnv()

	if err := config.Scan.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

// LoadFile reads a YAML file over the defaults without consulting the
// environment.
func LoadFile(path string) (*Config, error) {
	config := Default()
	if err := config.mergeFile(path); err != nil {
		return nil, err
	}
	if err := config.Scan.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "read config file %s", path))
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.WithCode(errors.CodeConfigInvalid, errors.Wrapf(err, "parse config file %s", path))
	}
	return nil
}

func (c *Config) applyEnv() {
	s := &c.Scan
	s.PatchRadiusDeg = getEnvFloatOrDefault("LOOPSCAN_PATCH_RADIUS_DEG", s.PatchRadiusDeg)
	s.TargetsDeg = getEnvFloatsOrDefault("LOOPSCAN_TARGETS_DEG", s.TargetsDeg)
	s.ToleranceDeg = getEnvFloatOrDefault("LOOPSCAN_TOLERANCE_DEG", s.ToleranceDeg)
	s.Threshold = getEnvFloatOrDefault("LOOPSCAN_THRESHOLD", s.Threshold)
	s.AbsoluteMode = getEnvBoolOrDefault("LOOPSCAN_ABSOLUTE_MODE", s.AbsoluteMode)
	s.GridNSide = getEnvIntOrDefault("LOOPSCAN_GRID_NSIDE", s.GridNSide)
	s.MinCoverage = getEnvFloatOrDefault("LOOPSCAN_MIN_COVERAGE", s.MinCoverage)
	s.EnsembleSize = getEnvIntOrDefault("LOOPSCAN_ENSEMBLE_SIZE", s.EnsembleSize)
	s.Workers = getEnvIntOrDefault("LOOPSCAN_WORKERS", s.Workers)
	s.Seed = int64(getEnvIntOrDefault("LOOPSCAN_SEED", int(s.Seed)))
	s.PValuePrecision = getEnvFloatOrDefault("LOOPSCAN_PVALUE_PRECISION", s.PValuePrecision)
	s.StrongThreshold = getEnvFloatOrDefault("LOOPSCAN_STRONG_THRESHOLD", s.StrongThreshold)
	s.NullProvider = getEnvOrDefault("LOOPSCAN_NULL_PROVIDER", s.NullProvider)
	s.TopN = getEnvIntOrDefault("LOOPSCAN_TOP_N", s.TopN)

	c.Database.URL = getEnvOrDefault("DATABASE_URL", c.Database.URL)
	c.Server.Port = getEnvOrDefault("PORT", c.Server.Port)
	c.Logging.Env = getEnvOrDefault("LOG_ENV", c.Logging.Env)
	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
}

// Validate rejects parameter sets the engine cannot run. Every failure
// is an input error and is raised before any sampling.
func (s ScanConfig) Validate() error {
	if !finite(s.PatchRadiusDeg) || s.PatchRadiusDeg <= 0 || s.PatchRadiusDeg >= 90 {
		return core.NewConfigError("patch_radius_deg", "must be in (0, 90)")
	}
	if len(s.TargetsDeg) == 0 {
		return core.NewConfigError("targets_deg", "at least one target separation is required")
	}
	seen := make(map[float64]bool, len(s.TargetsDeg))
	for _, t := range s.TargetsDeg {
		if !finite(t) || t < 0 || t >= 360 {
			return core.NewConfigError("targets_deg", "targets must be in [0, 360)")
		}
		if seen[t] {
			return core.NewConfigError("targets_deg", "duplicate target "+strconv.FormatFloat(t, 'g', -1, 64))
		}
		seen[t] = true
	}
	if !finite(s.ToleranceDeg) || s.ToleranceDeg <= 0 {
		return core.NewConfigError("tolerance_deg", "must be positive")
	}
	if gap := echo.MinTargetGap(s.TargetsDeg); s.ToleranceDeg >= gap/2 {
		return core.NewConfigError("tolerance_deg",
			"must be below half the smallest gap between targets ("+strconv.FormatFloat(gap/2, 'g', -1, 64)+")")
	}
	if !finite(s.Threshold) || s.Threshold < -1 || s.Threshold > 1 {
		return core.NewConfigError("threshold", "must be in [-1, 1]")
	}
	if s.GridNSide < 1 || s.GridNSide > 1024 {
		return core.NewConfigError("grid_nside", "must be in [1, 1024]")
	}
	if !finite(s.MinCoverage) || s.MinCoverage <= 0 || s.MinCoverage > 1 {
		return core.NewConfigError("min_coverage", "must be in (0, 1]")
	}
	if s.EnsembleSize < 0 {
		return core.NewConfigError("ensemble_size", "must not be negative")
	}
	if s.Workers < 1 {
		return core.NewConfigError("workers", "must be at least 1")
	}
	if !finite(s.PValuePrecision) || s.PValuePrecision <= 0 || s.PValuePrecision >= 1 {
		return core.NewConfigError("p_value_precision", "must be in (0, 1)")
	}
	if !finite(s.StrongThreshold) || s.StrongThreshold < -1 || s.StrongThreshold > 1 {
		return core.NewConfigError("strong_threshold", "must be in [-1, 1]")
	}
	switch s.NullProvider {
	case NullProviderNoise, NullProviderShuffle:
	default:
		return core.NewConfigError("null_provider", "must be noise or shuffle")
	}
	if s.TopN < 0 {
		return core.NewConfigError("top_n", "must not be negative")
	}
	return nil
}

// Hash fingerprints the parameters that affect results. Workers and
// TopN are excluded: they change scheduling and presentation only.
func (s ScanConfig) Hash() core.Hash {
	targets := make([]string, len(s.TargetsDeg))
	for i, t := range s.TargetsDeg {
		targets[i] = strconv.FormatFloat(t, 'g', -1, 64)
	}
	absolute := int64(0)
	if s.AbsoluteMode {
		absolute = 1
	}
	return core.NewHasher().
		String("scan-config").
		Float(s.PatchRadiusDeg).
		String(strings.Join(targets, ",")).
		Float(s.ToleranceDeg).
		Float(s.Threshold).
		Int(absolute).
		Int(int64(s.GridNSide)).
		Float(s.MinCoverage).
		Int(int64(s.EnsembleSize)).
		Int(s.Seed).
		Float(s.StrongThreshold).
		String(s.NullProvider).
		Float(s.PValuePrecision).
		Sum()
}

// PatchRadius returns the patch radius in radians.
func (s ScanConfig) PatchRadius() float64 {
	return s.PatchRadiusDeg * math.Pi / 180
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvFloatsOrDefault parses a comma-separated list; any malformed
// element keeps the default.
func getEnvFloatsOrDefault(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]float64, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}
