package config

import (
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ajitpratap0/hdfmast/pkg/errors"
)

// EnvPrefix prefixes every environment variable read by NewViper.
const EnvPrefix = "HDFMAST"

// Flag names bound to configuration keys.
var flagKeys = map[string]string{
	"chunk-size":   "chunk_size",
	"delimiter":    "delimiter",
	"encoding":     "encoding",
	"compression":  "compression.algorithm",
	"level":        "compression.level",
	"lock-timeout": "lock_timeout",
	"log-level":    "log.level",
	"log-format":   "log.encoding",
	"metrics-file": "metrics_file",
	"trace":        "trace",
}

// scalar keys that may be overridden by the environment or flags. Column
// item-size overrides are not among them: viper folds key case and column
// names are case sensitive.
var scalarKeys = []string{
	"chunk_size",
	"delimiter",
	"encoding",
	"compression.algorithm",
	"compression.level",
	"itemsize.default",
	"attr_name",
	"lock_timeout",
	"log.level",
	"log.encoding",
	"log.development",
	"metrics_file",
	"trace",
}

// NewViper returns a viper instance reading HDFMAST_* variables. Nested keys
// use underscores, so compression.level is HDFMAST_COMPRESSION_LEVEL.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	for _, key := range scalarKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// BindFlags binds the flags in flagKeys that exist in flags.
func BindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "failed to bind flag").WithDetail("flag", name)
		}
	}
	return nil
}

// ApplyViper copies every scalar key set in v, by environment or by a
// changed flag, onto cfg.
func ApplyViper(v *viper.Viper, cfg *Config) {
	for _, key := range scalarKeys {
		if !v.IsSet(key) {
			continue
		}
		switch key {
		case "chunk_size":
			cfg.ChunkSize = v.GetInt(key)
		case "delimiter":
			cfg.Delimiter = v.GetString(key)
		case "encoding":
			cfg.Encoding = v.GetString(key)
		case "compression.algorithm":
			cfg.Compression.Algorithm = v.GetString(key)
		case "compression.level":
			cfg.Compression.Level = v.GetString(key)
		case "itemsize.default":
			cfg.Itemsize.Default = v.GetInt(key)
		case "attr_name":
			cfg.AttrName = v.GetString(key)
		case "lock_timeout":
			cfg.LockTimeout = v.GetDuration(key)
		case "log.level":
			cfg.Log.Level = v.GetString(key)
		case "log.encoding":
			cfg.Log.Encoding = v.GetString(key)
		case "log.development":
			cfg.Log.Development = v.GetBool(key)
		case "metrics_file":
			cfg.MetricsFile = v.GetString(key)
		case "trace":
			cfg.Trace = v.GetBool(key)
		}
	}
}

// Resolve builds the effective configuration: defaults, then the YAML file
// at path when path is not empty, then whatever v holds. The result is
// validated.
func Resolve(v *viper.Viper, path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := Load(path, cfg); err != nil {
			return nil, err
		}
	}
	if v != nil {
		ApplyViper(v, cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
