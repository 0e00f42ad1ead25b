package config

import (
	"time"

	"github.com/cosmos/btcutil/bech32"
	"github.com/go-playground/validator/v10"
)

// Config represents the application configuration
type Config struct {
	IndexerURL     string        `mapstructure:"indexer_url" validate:"required,url"`
	FallbackURLs   []string      `mapstructure:"indexer_fallback_urls" validate:"dive,url"`
	ChainID        string        `mapstructure:"chain_id" validate:"required,min=1,max=64"`
	DAOAddress     string        `mapstructure:"dao_address" validate:"required,bech32"`
	PollInterval   string        `mapstructure:"poll_interval" validate:"required,duration"`
	RequestTimeout string        `mapstructure:"request_timeout" validate:"omitempty,duration"`
	RateLimit      float64       `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst      int           `mapstructure:"rate_burst" validate:"gte=0"`
	LogLevel       string        `mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFormat      string        `mapstructure:"log_format" validate:"omitempty,oneof=text json"`
	HTTPPort       int           `mapstructure:"http_port" validate:"omitempty,min=1024,max=65535"`
	Tokens         []TokenConfig `mapstructure:"tokens" validate:"dive"`
	Wallet         WalletConfig  `mapstructure:"wallet"`

	// TreasuryReportStatusErrors surfaces non-OK indexer responses on the
	// treasury widget instead of silently keeping the last balances.
	TreasuryReportStatusErrors bool `mapstructure:"treasury_report_status_errors"`
}

// TokenConfig represents the display metadata of a single denom
type TokenConfig struct {
	Denom       string `mapstructure:"denom" validate:"required,min=1"`
	DisplayName string `mapstructure:"display_name" validate:"required,min=1,max=100"`
	Decimals    uint8  `mapstructure:"decimals" validate:"max=36"`
}

// WalletConfig configures the local key-file signer
type WalletConfig struct {
	KeyFile      string `mapstructure:"key_file" validate:"omitempty,file"`
	Bech32Prefix string `mapstructure:"bech32_prefix" validate:"required,alphanum,lowercase"`
}

// DefaultTokens is the token table used when the configuration lists none.
func DefaultTokens() []TokenConfig {
	return []TokenConfig{
		{Denom: "factory/osmo1s6ht8qrm8x0eg8xag5x3ckx9mse9g4se248yss/BERNESE", DisplayName: "BERNESE", Decimals: 6},
		{Denom: "factory/osmo1z6r6qdknhgsc0zeracktgpcxf43j6sekq07nw8sxduc9lg0qjjlqfu25e3/alloyed/allBTC", DisplayName: "allBTC", Decimals: 8},
		{Denom: "gamm/pool/1344", DisplayName: "GAMM-1344", Decimals: 6},
		{Denom: "ibc/23A62409E4AD8133116C249B1FA38EED30E500A115D7B153109462CD82C1CD99", DisplayName: "PAGE", Decimals: 8},
		{Denom: "ibc/75345531D87BD90BF108BE7240BD721CB2CB0A1F16D4EBA71B09EC3C43E15C8F", DisplayName: "nBTC", Decimals: 14},
	}
}

// GetPollInterval returns the parsed poll interval
func (c *Config) GetPollInterval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetRequestTimeout returns the parsed per-request timeout
func (c *Config) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// bech32Validator validates bech32 account and contract addresses
func bech32Validator(fl validator.FieldLevel) bool {
	_, _, err := bech32.Decode(fl.Field().String(), 1023)
	return err == nil
}

// durationValidator validates duration strings
func durationValidator(fl validator.FieldLevel) bool {
	d, err := time.ParseDuration(fl.Field().String())
	return err == nil && d > 0
}

// NewValidator creates a validator with custom validation rules
func NewValidator() *validator.Validate {
	validate := validator.New()
	validate.RegisterValidation("bech32", bech32Validator)
	validate.RegisterValidation("duration", durationValidator)
	return validate
}
