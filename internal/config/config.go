package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Sink kinds
const (
	SinkPostgres = "postgres"
	SinkParquet  = "parquet"
	SinkDiscard  = "discard"
)

// Config holds the configuration of one import pass
type Config struct {
	// Input settings
	InputFile string `yaml:"input"`

	// Spatial filter: polygon (inline WKT or file) takes precedence over bbox
	BBox        string `yaml:"bbox"`
	Polygon     string `yaml:"polygon"`
	PolygonFile string `yaml:"polygon_file"`

	// Output settings
	Sink          string `yaml:"sink"`
	OutputDir     string `yaml:"output_dir"`
	BatchSize     int    `yaml:"batch_size"`
	ChannelBuffer int    `yaml:"channel_buffer"`

	// Database settings
	DBHost     string `yaml:"db_host"`
	DBPort     int    `yaml:"db_port"`
	DBName     string `yaml:"db_name"`
	DBUser     string `yaml:"db_user"`
	DBPassword string `yaml:"db_password"`
	DBSchema   string `yaml:"db_schema"`

	// Processing settings
	Workers      int  `yaml:"workers"` // decoder goroutines
	DropExisting bool `yaml:"drop_existing"`
	SkipFinalize bool `yaml:"skip_finalize"`
	StrictOrder  bool `yaml:"strict_order"`

	// Logging and metrics
	Verbose         bool          `yaml:"verbose"`
	LogFile         string        `yaml:"log_file"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
	MetricsAddr     string        `yaml:"metrics_addr"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Sink:            SinkPostgres,
		OutputDir:       "./osm_data",
		BatchSize:       100000,
		ChannelBuffer:   10000,
		DBHost:          "localhost",
		DBPort:          5432,
		DBName:          "osm",
		DBUser:          "postgres",
		DBSchema:        "osm",
		Workers:         runtime.NumCPU(),
		DropExisting:    true,
		MetricsInterval: 30 * time.Second,
	}
}

// LoadFile reads a YAML configuration file over cfg. Keys missing from
// the file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string
func (c *Config) ConnectionString() string {
	connStr := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBName, c.DBUser,
	)
	if c.DBPassword != "" {
		connStr += fmt.Sprintf(" password=%s", c.DBPassword)
	}
	return connStr
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.InputFile == "" {
		return fmt.Errorf("input file is required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	if c.ChannelBuffer < 0 {
		return fmt.Errorf("channel buffer must not be negative")
	}
	switch c.Sink {
	case SinkPostgres:
		if c.DBSchema == "" {
			return fmt.Errorf("db schema is required")
		}
	case SinkParquet:
		if c.OutputDir == "" {
			return fmt.Errorf("output dir is required for the parquet sink")
		}
		if c.BatchSize < 1 {
			return fmt.Errorf("batch size must be at least 1")
		}
	case SinkDiscard:
	default:
		return fmt.Errorf("unknown sink %q (want %s, %s or %s)", c.Sink, SinkPostgres, SinkParquet, SinkDiscard)
	}
	if c.Polygon != "" && c.PolygonFile != "" {
		return fmt.Errorf("polygon and polygon file are mutually exclusive")
	}
	return nil
}
