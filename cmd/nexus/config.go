package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

// CLIConfig is the on-disk nexus CLI configuration: index name, data
// directory, default field weights, and cache sizing. Decoded directly via
// BurntSushi/toml rather than through viper's own TOML support, then merged
// with environment-variable overrides read through viper (no flag is bound).
type CLIConfig struct {
	IndexName  string         `toml:"index_name"`
	DataDir    string         `toml:"data_dir"`
	CacheSize  int            `toml:"cache_size"`
	CacheTTLMs int            `toml:"cache_ttl_ms"`
	Fields     map[string]float64 `toml:"fields"`
}

func defaultCLIConfig() CLIConfig {
	return CLIConfig{
		IndexName:  "default",
		DataDir:    filepath.Join(os.Getenv("HOME"), ".nexus"),
		CacheSize:  1000,
		CacheTTLMs: 5 * 60 * 1000,
		Fields:     map[string]float64{"content": 1.0},
	}
}

// loadCLIConfig decodes path (default $HOME/.nexus/config.toml; skipped if
// it does not exist) over the defaults with BurntSushi/toml, then lets
// NEXUS_-prefixed environment variables override index_name, data_dir and
// cache_size through viper.
func loadCLIConfig(path string) (CLIConfig, error) {
	cfg := defaultCLIConfig()

	if path == "" {
		path = filepath.Join(os.Getenv("HOME"), ".nexus", "config.toml")
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	v := viper.New()
	v.SetEnvPrefix("NEXUS")
	v.AutomaticEnv()
	if v.IsSet("index_name") {
		cfg.IndexName = v.GetString("index_name")
	}
	if v.IsSet("data_dir") {
		cfg.DataDir = v.GetString("data_dir")
	}
	if v.IsSet("cache_size") {
		cfg.CacheSize = v.GetInt("cache_size")
	}
	return cfg, nil
}
