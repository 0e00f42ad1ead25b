package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath
}

func TestLoad(t *testing.T) {
	t.Run("defaults without config file content", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, ""))
		require.NoError(t, err)

		assert.Equal(t, "https://indexer.daodao.zone", cfg.IndexerURL)
		assert.Equal(t, "osmosis-1", cfg.ChainID)
		assert.Equal(t, "osmo1sy9k228qzke0nd3k3vmxdvr68xdlqsu66h3xgm9ke3c4jhamusvsz98pre", cfg.DAOAddress)
		assert.Equal(t, 30*time.Second, cfg.GetPollInterval())
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, 8080, cfg.HTTPPort)
		assert.Equal(t, "osmo", cfg.Wallet.Bech32Prefix)
		assert.False(t, cfg.TreasuryReportStatusErrors)
		assert.Equal(t, DefaultTokens(), cfg.Tokens)
	})

	t.Run("loads valid TOML config", func(t *testing.T) {
		configPath := writeConfig(t, `
indexer_url = "https://indexer.example.com/"
indexer_fallback_urls = ["https://backup.example.com/"]
chain_id = "osmo-test-5"
poll_interval = "1m"
log_level = "debug"
treasury_report_status_errors = true

[wallet]
bech32_prefix = "osmo"

[[tokens]]
denom = "uosmo"
display_name = "OSMO"
decimals = 6
`)

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "https://indexer.example.com", cfg.IndexerURL) // trailing slash trimmed
		assert.Equal(t, []string{"https://backup.example.com"}, cfg.FallbackURLs)
		assert.Equal(t, "osmo-test-5", cfg.ChainID)
		assert.Equal(t, time.Minute, cfg.GetPollInterval())
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.True(t, cfg.TreasuryReportStatusErrors)
		require.Len(t, cfg.Tokens, 1)
		assert.Equal(t, TokenConfig{Denom: "uosmo", DisplayName: "OSMO", Decimals: 6}, cfg.Tokens[0])
	})

	t.Run("environment variables override config file", func(t *testing.T) {
		configPath := writeConfig(t, `log_level = "info"`)

		os.Setenv("DAODASH_LOG_LEVEL", "debug")
		defer os.Unsetenv("DAODASH_LOG_LEVEL")
		os.Setenv("DAODASH_WALLET_BECH32_PREFIX", "juno")
		defer os.Unsetenv("DAODASH_WALLET_BECH32_PREFIX")

		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, "juno", cfg.Wallet.Bech32Prefix)
	})

	t.Run("validation fails for invalid dao address", func(t *testing.T) {
		configPath := writeConfig(t, `dao_address = "osmo1notavalidaddress"`)

		_, err := Load(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("validation fails for invalid fallback url", func(t *testing.T) {
		configPath := writeConfig(t, `indexer_fallback_urls = ["not a url"]`)

		_, err := Load(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("validation fails for invalid poll interval", func(t *testing.T) {
		configPath := writeConfig(t, `poll_interval = "every now and then"`)

		_, err := Load(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "validation")
	})

	t.Run("validation fails for missing key file", func(t *testing.T) {
		configPath := writeConfig(t, `
[wallet]
key_file = "/does/not/exist.key"
`)

		_, err := Load(configPath)
		assert.Error(t, err)
	})

	t.Run("malformed TOML is reported", func(t *testing.T) {
		configPath := writeConfig(t, `chain_id = "osmosis-1`)

		_, err := Load(configPath)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read config")
	})
}
