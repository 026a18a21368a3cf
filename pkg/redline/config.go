package redline

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"github.com/benjaminschreck/go-redline/pkg/redline/anchor"
	"github.com/benjaminschreck/go-redline/pkg/redline/worddiff"
)

// Mode selects the form of a DOCX result.
type Mode string

const (
	// ModeSimple marks changes with coloured and struck-through runs.
	ModeSimple Mode = "simple"
	// ModeTracked emits native tracked changes.
	ModeTracked Mode = "tracked"
)

// Config contains all configuration options for the editor and the batch runner.
type Config struct {
	Mode Mode `yaml:"mode"`
	// IncludeComments attaches each change's motivation as a comment, or to the PDF highlight.
	IncludeComments bool `yaml:"include_comments"`
	// SimilarityThreshold is the minimum 0-100 score for a fuzzy match.
	SimilarityThreshold int `yaml:"similarity_threshold"`
	// NeighborRadius is how many units, or PDF lines, around the target are searched.
	NeighborRadius int `yaml:"neighbor_radius"`
	// MinFuzzyLength is the shortest old text eligible for fuzzy matching.
	MinFuzzyLength int `yaml:"min_fuzzy_length"`
	// Granularity is phrase or word.
	Granularity     string `yaml:"granularity"`
	Author          string `yaml:"author"`
	CommentInitials string `yaml:"comment_initials"`
	// TimeZone is the IANA zone revision and comment dates are written in.
	TimeZone  string `yaml:"time_zone"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
	// ScratchDir is where per-job working directories are created; empty uses the system temp dir.
	ScratchDir string `yaml:"scratch_dir"`
	// OutputDir receives results; empty writes next to the input document.
	OutputDir string `yaml:"output_dir"`
	// Concurrency is the number of documents a batch processes at once.
	Concurrency int `yaml:"concurrency"`
	// DedupeTolerance is the distance in points under which two PDF highlights are the same.
	DedupeTolerance float64 `yaml:"dedupe_tolerance"`
	// PDFSidecar also writes the PDF highlights as JSON next to the annotated copy.
	PDFSidecar bool `yaml:"pdf_sidecar"`
	// RedisAddr enables the Redis job store for batches.
	RedisAddr string        `yaml:"redis_addr"`
	JobTTL    time.Duration `yaml:"job_ttl"`
}

var (
	globalConfig      *Config
	globalConfigMutex sync.RWMutex
)

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Mode:                ModeSimple,
		SimilarityThreshold: 90,
		NeighborRadius:      2,
		MinFuzzyLength:      4,
		Granularity:         "phrase",
		Author:              "Redline",
		CommentInitials:     "RL",
		TimeZone:            "Europe/Stockholm",
		LogLevel:            "info",
		LogFormat:           "text",
		Concurrency:         4,
		DedupeTolerance:     5,
		JobTTL:              24 * time.Hour,
	}
}

// ConfigFromEnvironment creates a configuration from environment variables
func ConfigFromEnvironment() *Config {
	config := DefaultConfig()
	applyEnvironment(config)
	return config
}

// LoadConfig reads a YAML file over the defaults and applies environment overrides on top. An
// empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	applyEnvironment(config)
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnvironment(config *Config) {
	str := func(key string, dst *string) {
		if val := os.Getenv(key); val != "" {
			*dst = val
		}
	}
	num := func(key string, dst *int) {
		if val := os.Getenv(key); val != "" {
			if n, err := strconv.Atoi(val); err == nil {
				*dst = n
			}
		}
	}

	if val := os.Getenv("REDLINE_MODE"); val != "" {
		config.Mode = Mode(strings.ToLower(val))
	}
	if val := os.Getenv("REDLINE_INCLUDE_COMMENTS"); val != "" {
		config.IncludeComments = parseBool(val)
	}
	num("REDLINE_SIMILARITY_THRESHOLD", &config.SimilarityThreshold)
	num("REDLINE_NEIGHBOR_RADIUS", &config.NeighborRadius)
	num("REDLINE_MIN_FUZZY_LENGTH", &config.MinFuzzyLength)
	str("REDLINE_GRANULARITY", &config.Granularity)
	str("REDLINE_AUTHOR", &config.Author)
	str("REDLINE_COMMENT_INITIALS", &config.CommentInitials)
	str("REDLINE_TIME_ZONE", &config.TimeZone)
	str("REDLINE_LOG_LEVEL", &config.LogLevel)
	str("REDLINE_LOG_FORMAT", &config.LogFormat)
	str("REDLINE_SCRATCH_DIR", &config.ScratchDir)
	str("REDLINE_OUTPUT_DIR", &config.OutputDir)
	num("REDLINE_CONCURRENCY", &config.Concurrency)
	if val := os.Getenv("REDLINE_DEDUPE_TOLERANCE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			config.DedupeTolerance = f
		}
	}
	if val := os.Getenv("REDLINE_PDF_SIDECAR"); val != "" {
		config.PDFSidecar = parseBool(val)
	}
	str("REDLINE_REDIS_ADDR", &config.RedisAddr)
	if val := os.Getenv("REDLINE_JOB_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			config.JobTTL = d
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Mode != ModeSimple && c.Mode != ModeTracked {
		return fmt.Errorf("invalid mode %q: want simple or tracked", c.Mode)
	}
	if c.SimilarityThreshold < 1 || c.SimilarityThreshold > 100 {
		return errors.New("similarity threshold must be between 1 and 100")
	}
	if c.NeighborRadius < 0 {
		return errors.New("neighbor radius cannot be negative")
	}
	if c.MinFuzzyLength < 0 {
		return errors.New("min fuzzy length cannot be negative")
	}
	if _, ok := worddiff.ParseGranularity(c.Granularity); !ok {
		return errors.New("invalid granularity: " + c.Granularity)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, ok := logLevels[c.LogLevel]; !ok {
		return errors.New("invalid log level: " + c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.New("invalid log format: " + c.LogFormat)
	}
	if c.Concurrency <= 0 {
		return errors.New("concurrency must be positive")
	}
	if c.DedupeTolerance < 0 {
		return errors.New("dedupe tolerance cannot be negative")
	}
	if c.JobTTL < 0 {
		return errors.New("job TTL cannot be negative")
	}
	return nil
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// Resolver returns the anchor thresholds of the configuration.
func (c *Config) Resolver() anchor.Resolver {
	return anchor.Resolver{
		Threshold:      c.SimilarityThreshold,
		MinFuzzyLength: c.MinFuzzyLength,
		Radius:         c.NeighborRadius,
	}
}

func (c *Config) granularity() worddiff.Granularity {
	g, _ := worddiff.ParseGranularity(c.Granularity)
	return g
}

// GetGlobalConfig returns a copy of the global configuration
func GetGlobalConfig() *Config {
	globalConfigMutex.RLock()
	defer globalConfigMutex.RUnlock()

	if globalConfig == nil {
		return ConfigFromEnvironment()
	}
	configCopy := *globalConfig
	return &configCopy
}

// SetGlobalConfig sets the global configuration and rebuilds the default logger from it.
func SetGlobalConfig(config *Config) {
	globalConfigMutex.Lock()
	globalConfig = config
	globalConfigMutex.Unlock()

	SetLogger(NewLoggerFromConfig(config, os.Stderr))
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
