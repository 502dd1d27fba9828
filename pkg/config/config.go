// Package config provides the configuration of hdfmast runs.
//
// The configuration is organized into logical sections:
//   - Input: chunk size, delimiter and character encoding of the CSV stream
//   - Store: compression, item-size hints, attribute name and lock timeout
//   - Observability: logging, metrics file and tracing
//
// Values are layered: Default, then an optional YAML file (Load), then
// HDFMAST_* environment variables and command-line flags (ApplyViper).
//
// Example usage:
//
//	cfg := config.Default()
//	cfg.ChunkSize = 50000
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"time"
	"unicode/utf8"

	"github.com/ajitpratap0/hdfmast/pkg/columnar"
	"github.com/ajitpratap0/hdfmast/pkg/compression"
	"github.com/ajitpratap0/hdfmast/pkg/errors"
	"github.com/ajitpratap0/hdfmast/pkg/logger"
	"github.com/ajitpratap0/hdfmast/pkg/source"
)

// DefaultAttrName is the attribute that receives the input column names.
const DefaultAttrName = "column_names"

// Config is the full configuration of an ingest run.
type Config struct {
	// ChunkSize is the number of rows read and partitioned at a time
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size" json:"chunk_size"`
	// Delimiter separates fields; a single character
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter" json:"delimiter"`
	// Encoding of the input bytes (iso-8859-1, windows-1252, utf-8)
	Encoding string `mapstructure:"encoding" yaml:"encoding" json:"encoding"`

	// Compression applied to new column blocks
	Compression CompressionConfig `mapstructure:"compression" yaml:"compression" json:"compression"`
	// Itemsize gives minimum column widths in bytes
	Itemsize columnar.ItemsizeHints `mapstructure:"itemsize" yaml:"itemsize" json:"itemsize"`
	// AttrName is the attribute holding the column names
	AttrName string `mapstructure:"attr_name" yaml:"attr_name" json:"attr_name"`
	// LockTimeout bounds the wait for another process's store lock
	LockTimeout time.Duration `mapstructure:"lock_timeout" yaml:"lock_timeout" json:"lock_timeout"`

	Log logger.Config `mapstructure:"log" yaml:"log" json:"log"`
	// MetricsFile receives run metrics in Prometheus text format
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file,omitempty" json:"metrics_file,omitempty"`
	// Trace prints run and chunk spans to stderr
	Trace bool `mapstructure:"trace" yaml:"trace" json:"trace"`
}

// CompressionConfig selects the block codec.
type CompressionConfig struct {
	Algorithm string `mapstructure:"algorithm" yaml:"algorithm" json:"algorithm"`
	Level     string `mapstructure:"level" yaml:"level" json:"level"`
}

// Default returns the settings a run uses when nothing is configured:
// one million row chunks of ISO-8859-1 comma separated input, stored with
// zlib at level 9.
func Default() *Config {
	return &Config{
		ChunkSize:   source.DefaultChunkSize,
		Delimiter:   ",",
		Encoding:    source.EncodingLatin1,
		Compression: CompressionConfig{Algorithm: string(compression.Zlib), Level: compression.Best.String()},
		Itemsize:    columnar.DefaultItemsizeHints(),
		AttrName:    DefaultAttrName,
		LockTimeout: time.Second,
		Log: logger.Config{
			Level:    "info",
			Encoding: "console",
		},
	}
}

// Validate checks the configuration for values a run cannot use.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New(errors.ErrorTypeConfig, "chunk_size must be positive").WithDetail("chunk_size", c.ChunkSize)
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return errors.Newf(errors.ErrorTypeConfig, "delimiter must be a single character, got %q", c.Delimiter)
	}
	if d := c.DelimiterRune(); d == '"' || d == '\n' || d == '\r' || d == utf8.RuneError {
		return errors.Newf(errors.ErrorTypeConfig, "invalid delimiter %q", c.Delimiter)
	}
	if _, err := source.LookupEncoding(c.Encoding); err != nil {
		return err
	}
	if _, err := c.CompressionConfig(); err != nil {
		return err
	}
	if c.Itemsize.Default < 1 {
		return errors.New(errors.ErrorTypeConfig, "itemsize.default must be positive").WithDetail("default", c.Itemsize.Default)
	}
	for name, w := range c.Itemsize.Overrides {
		if w < 1 {
			return errors.New(errors.ErrorTypeConfig, "itemsize override must be positive").
				WithDetail("column", name).WithDetail("itemsize", w)
		}
	}
	if c.AttrName == "" {
		return errors.New(errors.ErrorTypeConfig, "attr_name is required")
	}
	if c.LockTimeout < 0 {
		return errors.New(errors.ErrorTypeConfig, "lock_timeout must not be negative")
	}
	return nil
}

// DelimiterRune returns the delimiter as a rune.
func (c *Config) DelimiterRune() rune {
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// CompressionConfig parses the compression section.
func (c *Config) CompressionConfig() (*compression.Config, error) {
	algo, err := compression.ParseAlgorithm(c.Compression.Algorithm)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression algorithm")
	}
	level := compression.Best
	if c.Compression.Level != "" {
		if level, err = compression.ParseLevel(c.Compression.Level); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid compression level")
		}
	}
	return &compression.Config{Algorithm: algo, Level: level}, nil
}
