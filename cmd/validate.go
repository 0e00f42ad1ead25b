package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/matrixise/daodash/internal/config"
	"github.com/matrixise/daodash/internal/logger"
)

var validateCmd = &cobra.Command{
	Use:   "validate-config",
	Short: "Validate configuration file",
	Long:  `Validate the configuration file syntax and values without running the application.`,
	RunE:  validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateConfig(cmd *cobra.Command, args []string) error {
	logger.Setup(logLevel)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return err
	}

	slog.Info("✓ Configuration valid",
		"indexer_url", cfg.IndexerURL,
		"chain_id", cfg.ChainID,
		"dao_address", cfg.DAOAddress,
		"poll_interval", cfg.GetPollInterval(),
		"request_timeout", cfg.GetRequestTimeout(),
		"tokens", len(cfg.Tokens),
		"wallet_key_file_set", cfg.Wallet.KeyFile != "",
		"log_level", cfg.LogLevel,
	)

	return nil
}
