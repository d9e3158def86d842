package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/tolelom/purgechain/game"
	"github.com/tolelom/purgechain/internal/logger"
)

// GenesisConfig describes the chain's initial state.
type GenesisConfig struct {
	ChainID   string            `json:"chain_id" validate:"required"`
	Alloc     map[string]uint64 `json:"alloc"`      // pubkey hex → initial native balance
	CoinAlloc map[string]uint64 `json:"coin_alloc"` // pubkey hex → initial game coin
}

// OracleConfig enables the in-process randomness oracle. The node key
// signs the answers, so the game's oracle address must be the node key.
type OracleConfig struct {
	Enabled bool `json:"enabled"`
	// Secret is mixed into every answer; hex, at least 32 bytes.
	Secret string `json:"secret" validate:"omitempty,min=64,hexadecimal"`
}

// KeeperConfig enables the auto-advance bot.
type KeeperConfig struct {
	Enabled    bool  `json:"enabled"`
	IntervalMs int64 `json:"interval_ms" validate:"gte=0"`
	BudgetHint int   `json:"budget_hint" validate:"gte=0"`
}

// Config holds all node configuration.
type Config struct {
	NodeID          string        `json:"node_id" validate:"required"`
	DataDir         string        `json:"data_dir" validate:"required"`
	KeyFile         string        `json:"key_file"`
	RPCPort         int           `json:"rpc_port" validate:"gt=0,lte=65535"`
	RPCCacheTTLMs   int64         `json:"rpc_cache_ttl_ms" validate:"gte=0"`
	RPCAuthToken    string        `json:"rpc_auth_token,omitempty"` // empty disables auth
	BlockIntervalMs int64         `json:"block_interval_ms" validate:"gte=100"`
	MaxBlockTxs     int           `json:"max_block_txs" validate:"gt=0"`
	Validators      []string      `json:"validators" validate:"dive,len=64,hexadecimal"` // authorised proposer pubkey hexes
	Genesis         GenesisConfig `json:"genesis"`
	Game            game.Params   `json:"game"`
	Log             logger.Config `json:"log"`
	Oracle          OracleConfig  `json:"oracle"`
	Keeper          KeeperConfig  `json:"keeper"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         "./data",
		KeyFile:         "./data/node.key",
		RPCPort:         8545,
		RPCCacheTTLMs:   2_000,
		BlockIntervalMs: 2_000,
		MaxBlockTxs:     500,
		Genesis: GenesisConfig{
			ChainID:   "purge-dev",
			Alloc:     map[string]uint64{},
			CoinAlloc: map[string]uint64{},
		},
		Game: game.DefaultParams(),
		Log:  logger.DefaultConfig(),
		Keeper: KeeperConfig{
			IntervalMs: 5_000,
		},
	}
}

var validate = validator.New()

// Load reads a JSON config file from path over the defaults, applies the
// environment overlay and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads .env if present and overrides fields from PURGE_*
// environment variables.
func (c *Config) ApplyEnv() error {
	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()

	c.DataDir = getEnv("PURGE_DATA_DIR", c.DataDir)
	c.KeyFile = getEnv("PURGE_KEY_FILE", c.KeyFile)
	c.Genesis.ChainID = getEnv("PURGE_CHAIN_ID", c.Genesis.ChainID)
	c.Log.Level = getEnv("PURGE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("PURGE_LOG_FORMAT", c.Log.Format)
	c.Oracle.Secret = getEnv("PURGE_ORACLE_SECRET", c.Oracle.Secret)
	c.RPCAuthToken = getEnv("PURGE_RPC_AUTH_TOKEN", c.RPCAuthToken)

	var err error
	if c.RPCPort, err = getEnvInt("PURGE_RPC_PORT", c.RPCPort); err != nil {
		return err
	}
	if c.Oracle.Enabled, err = getEnvBool("PURGE_ORACLE_ENABLED", c.Oracle.Enabled); err != nil {
		return err
	}
	if c.Keeper.Enabled, err = getEnvBool("PURGE_KEEPER_ENABLED", c.Keeper.Enabled); err != nil {
		return err
	}
	return nil
}

// Validate checks struct tags and the rules that span fields.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			e := verrs[0]
			return fmt.Errorf("invalid config: %s fails %q", e.Namespace(), e.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, ok := c.Genesis.Alloc[c.Game.Custody]; ok {
		return fmt.Errorf("invalid config: genesis alloc credits the custody account %q", c.Game.Custody)
	}
	if c.Oracle.Enabled && c.Oracle.Secret == "" {
		return errors.New("invalid config: oracle enabled without a secret")
	}
	if c.Keeper.Enabled && c.Keeper.IntervalMs < 100 {
		return fmt.Errorf("invalid config: keeper interval %dms below 100ms", c.Keeper.IntervalMs)
	}
	return nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s value: %w", key, err)
	}
	return b, nil
}
