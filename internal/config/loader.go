package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "DAODASH"

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	v.SetDefault("indexer_url", "https://indexer.daodao.zone")
	v.SetDefault("indexer_fallback_urls", []string{})
	v.SetDefault("chain_id", "osmosis-1")
	v.SetDefault("dao_address", "osmo1sy9k228qzke0nd3k3vmxdvr68xdlqsu66h3xgm9ke3c4jhamusvsz98pre")
	v.SetDefault("poll_interval", "30s")
	v.SetDefault("request_timeout", "10s")
	v.SetDefault("rate_limit", 2.0)
	v.SetDefault("rate_burst", 4)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("http_port", 8080)
	v.SetDefault("treasury_report_status_errors", false)
	v.SetDefault("wallet.key_file", "")
	v.SetDefault("wallet.bech32_prefix", "osmo")

	// 2. Configure config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	// DAODASH_WALLET_KEY_FILE -> wallet.key_file
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 5. Unmarshal into struct
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.IndexerURL = strings.TrimRight(cfg.IndexerURL, "/")
	for i, u := range cfg.FallbackURLs {
		cfg.FallbackURLs[i] = strings.TrimRight(u, "/")
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = DefaultTokens()
	}

	// 6. Validate with validator
	validate := NewValidator()
	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}
