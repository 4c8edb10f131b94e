// Package config loads Options defaults from an optional configuration
// file and environment variables, mirroring the teacher's
// internal/device.LoadDMGConfig: sensible built-in defaults, overridable
// by a config file if one is found, overridable again by environment
// variables. This is ambient embedder convenience, not part of the
// storage-engine core; nothing in internal/parsers or internal/resolve
// depends on this package.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-pff/internal/types"
)

// FileOptions is the subset of types.Options that can be set from a config
// file or environment, plus their raw names for clarity when inspected.
type FileOptions struct {
	TolerateChecksumErrors  bool  `mapstructure:"tolerate_checksum_errors"`
	TolerateIDMismatch      bool  `mapstructure:"tolerate_id_mismatch"`
	TolerateIndexCorruption bool  `mapstructure:"tolerate_index_corruption"`
	MaxCachedBytes          int64 `mapstructure:"max_cached_bytes"`
	MaxCachedEntries        int   `mapstructure:"max_cached_entries"`
}

// Load reads pff-config.yaml (or an environment override) from the usual
// search path and returns the resulting Options. A missing config file is
// not an error; defaults apply.
func Load() (types.Options, error) {
	v := viper.New()
	v.SetConfigName("pff-config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("$HOME/.pff")
	v.AddConfigPath("/etc/pff")

	v.SetDefault("tolerate_checksum_errors", false)
	v.SetDefault("tolerate_id_mismatch", false)
	v.SetDefault("tolerate_index_corruption", false)
	v.SetDefault("max_cached_bytes", types.DefaultMaxCachedBytes)
	v.SetDefault("max_cached_entries", types.DefaultMaxCachedEntries)

	v.SetEnvPrefix("PFF")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return types.Options{}, fmt.Errorf("config: reading config file: %w", err)
		}
	}

	var fo FileOptions
	if err := v.Unmarshal(&fo); err != nil {
		return types.Options{}, fmt.Errorf("config: unmarshaling config: %w", err)
	}

	return types.Options{
		TolerateChecksumErrors:  fo.TolerateChecksumErrors,
		TolerateIDMismatch:      fo.TolerateIDMismatch,
		TolerateIndexCorruption: fo.TolerateIndexCorruption,
		MaxCachedBytes:          uint64(fo.MaxCachedBytes),
		MaxCachedEntries:        fo.MaxCachedEntries,
	}.WithDefaults(), nil
}
