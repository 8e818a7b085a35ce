package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/PixelPet-dev/xlayerslot/logging"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Environment string         `mapstructure:"environment"`
	Server      ServerConfig   `mapstructure:"server"`
	Network     NetworkConfig  `mapstructure:"network"`
	Contracts   ContractConfig `mapstructure:"contracts"`
	Wallet      WalletConfig   `mapstructure:"wallet"`
	Game        GameConfig     `mapstructure:"game"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Kafka       KafkaConfig    `mapstructure:"kafka"`
	JWT         JWTConfig      `mapstructure:"jwt"`
	Logging     logging.Config `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	EnableCORS   bool          `mapstructure:"enable_cors"`
}

// NetworkConfig describes the required chain. Defaults target X Layer mainnet.
type NetworkConfig struct {
	ChainID           uint64        `mapstructure:"chain_id"`
	ChainName         string        `mapstructure:"chain_name"`
	CurrencyName      string        `mapstructure:"currency_name"`
	CurrencySymbol    string        `mapstructure:"currency_symbol"`
	CurrencyDecimals  int           `mapstructure:"currency_decimals"`
	RPCURLs           []string      `mapstructure:"rpc_urls"`
	BlockExplorerURLs []string      `mapstructure:"block_explorer_urls"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
}

// ContractConfig holds the deployed contract addresses
type ContractConfig struct {
	GameAddress  string `mapstructure:"game_address"`
	TokenAddress string `mapstructure:"token_address"`
}

// WalletConfig holds the signing key source for headless mode
type WalletConfig struct {
	// PrivateKey is a hex-encoded key; prefer setting via WALLET_PRIVATE_KEY
	PrivateKey string `mapstructure:"private_key"`
}

// GameConfig holds client-side tuning for the bet pipeline
type GameConfig struct {
	// ApproveMultiplier amortizes wallet prompts by approving a multiple of
	// the bet. UX/gas tradeoff, not a security boundary.
	ApproveMultiplier int64 `mapstructure:"approve_multiplier"`
	// ReceiptRetries and ReceiptInterval bound the confirmation wait.
	ReceiptRetries  int           `mapstructure:"receipt_retries"`
	ReceiptInterval time.Duration `mapstructure:"receipt_interval"`
	// ReplayWindow is the block lookback for the log-replay fallback.
	ReplayWindow uint64 `mapstructure:"replay_window"`
	// HistoryDepth caps the recent-outcomes list.
	HistoryDepth int `mapstructure:"history_depth"`
	// LogRangeLimit is the provider's max block range per log query.
	LogRangeLimit uint64 `mapstructure:"log_range_limit"`
	// BalancePollInterval drives the background balance refresh.
	BalancePollInterval time.Duration `mapstructure:"balance_poll_interval"`
}

// RedisConfig holds Redis connection configuration for the profile cache
type RedisConfig struct {
	Addr         string        `mapstructure:"addr"`
	Username     string        `mapstructure:"username"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	TTL          time.Duration `mapstructure:"ttl"`
}

// KafkaConfig holds the optional outcome feed configuration
type KafkaConfig struct {
	Brokers      []string `mapstructure:"brokers"`
	OutcomeTopic string   `mapstructure:"outcome_topic"`
}

// JWTConfig holds JWT configuration for the HTTP surface
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// Load loads configuration from a YAML file using Viper
func Load(filename string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(filename)
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

// LoadByEnv loads configuration based on environment using Viper
func LoadByEnv(configDir string) (*Config, error) {
	v := viper.New()

	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	env := os.Getenv("ENV")
	if env == "" {
		env = os.Getenv("APP_ENV")
	}
	if env == "" {
		env = "development"
	}

	v.SetConfigName(fmt.Sprintf("config-%s", env))
	v.SetConfigType("yaml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.setDefaults()

	return &config, nil
}

// Default returns a config pre-populated with the X Layer mainnet deployment.
func Default() *Config {
	c := &Config{}
	c.setDefaults()
	return c
}

// setDefaults sets default values for missing configuration
func (c *Config) setDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}

	if c.Network.ChainID == 0 {
		c.Network.ChainID = 196
	}
	if c.Network.ChainName == "" {
		c.Network.ChainName = "X Layer Mainnet"
	}
	if c.Network.CurrencyName == "" {
		c.Network.CurrencyName = "OKB"
	}
	if c.Network.CurrencySymbol == "" {
		c.Network.CurrencySymbol = "OKB"
	}
	if c.Network.CurrencyDecimals == 0 {
		c.Network.CurrencyDecimals = 18
	}
	if len(c.Network.RPCURLs) == 0 {
		c.Network.RPCURLs = []string{"https://rpc.xlayer.tech"}
	}
	if len(c.Network.BlockExplorerURLs) == 0 {
		c.Network.BlockExplorerURLs = []string{"https://www.oklink.com/xlayer"}
	}
	if c.Network.PollInterval == 0 {
		c.Network.PollInterval = 2 * time.Second
	}

	if c.Contracts.GameAddress == "" {
		c.Contracts.GameAddress = "0xF6637254Cceb1484Db01B57f90DdB0B6094e4407"
	}
	if c.Contracts.TokenAddress == "" {
		c.Contracts.TokenAddress = "0x798095d5BF06edeF0aEB82c10DCDa5a92f58834E"
	}

	if c.Game.ApproveMultiplier == 0 {
		c.Game.ApproveMultiplier = 10
	}
	if c.Game.ReceiptRetries == 0 {
		c.Game.ReceiptRetries = 10
	}
	if c.Game.ReceiptInterval == 0 {
		c.Game.ReceiptInterval = 2 * time.Second
	}
	if c.Game.ReplayWindow == 0 {
		c.Game.ReplayWindow = 5
	}
	if c.Game.HistoryDepth == 0 {
		c.Game.HistoryDepth = 10
	}
	if c.Game.LogRangeLimit == 0 {
		c.Game.LogRangeLimit = 100
	}
	if c.Game.BalancePollInterval == 0 {
		c.Game.BalancePollInterval = 10 * time.Second
	}

	if c.Redis.PoolSize == 0 {
		c.Redis.PoolSize = 10
	}
	if c.Redis.MinIdleConns == 0 {
		c.Redis.MinIdleConns = 5
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 30 * time.Second
	}

	if c.JWT.Expiration == 0 {
		c.JWT.Expiration = 24 * time.Hour
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
}

// PrimaryRPCURL returns the first configured RPC endpoint
func (c *NetworkConfig) PrimaryRPCURL() string {
	if len(c.RPCURLs) == 0 {
		return ""
	}
	return c.RPCURLs[0]
}

// IsDevelopment returns true if environment is development
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// IsProduction returns true if environment is production
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}
