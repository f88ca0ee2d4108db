// Package config loads the client and relay settings from a YAML file with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"

	"github.com/wojtekolesinski/onchain-battleships/codec"
)

var ErrInvalid = errors.New("invalid config")

// Duration is a time.Duration read from strings like "5s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config.Duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

type Chain struct {
	RPCURL       string `yaml:"rpc_url"`
	ChainID      int64  `yaml:"chain_id"`
	GenesisHash  string `yaml:"genesis_hash"`
	Contract     string `yaml:"contract"`
	PrivateKey   string `yaml:"private_key"`
	MoveEncoding string `yaml:"move_encoding"`
}

// Key is the namespace of relay documents for this chain.
func (c Chain) Key() string {
	if c.GenesisHash != "" {
		return strings.ToLower(c.GenesisHash)
	}
	return strconv.FormatInt(c.ChainID, 10)
}

type Cloud struct {
	RelayURL       string   `yaml:"relay_url"`
	EncryptPrivate bool     `yaml:"encrypt_private"`
	HitsDebounce   Duration `yaml:"hits_debounce"`
	AuthMessage    string   `yaml:"auth_message"`
}

// Game holds the parameters of games created from this client.
type Game struct {
	PollInterval Duration `yaml:"poll_interval"`
	BoardLength  int      `yaml:"board_length"`
	TotalRounds  int      `yaml:"total_rounds"`
	ShipLengths  []int    `yaml:"ship_lengths"`
	AutoPlay     bool     `yaml:"auto_play"`
}

// MaxBoardLength is the largest board the terminal client can draw.
const MaxBoardLength = 10

type Relay struct {
	Addr            string   `yaml:"addr"`
	Backend         string   `yaml:"backend"`
	DSN             string   `yaml:"dsn"`
	Retention       Duration `yaml:"retention"`
	CleanupSchedule string   `yaml:"cleanup_schedule"`
}

type Config struct {
	LogLevel string `yaml:"log_level"`
	Chain    Chain  `yaml:"chain"`
	Cloud    Cloud  `yaml:"cloud"`
	Game     Game   `yaml:"game"`
	Relay    Relay  `yaml:"relay"`
}

func Default() *Config {
	return &Config{
		LogLevel: "info",
		Chain: Chain{
			RPCURL:       "http://127.0.0.1:8545",
			ChainID:      31337,
			MoveEncoding: codec.EncodingBitmask.String(),
		},
		Cloud: Cloud{
			RelayURL:       "ws://127.0.0.1:11451/ws",
			EncryptPrivate: true,
			HitsDebounce:   Duration(2 * time.Second),
			AuthMessage:    "Sign in to on-chain battleships",
		},
		Game: Game{
			PollInterval: Duration(5 * time.Second),
			BoardLength:  10,
			TotalRounds:  20,
			ShipLengths:  []int{5, 4, 3, 3, 2},
		},
		Relay: Relay{
			Addr:            ":11451",
			Backend:         "memory",
			Retention:       Duration(30 * 24 * time.Hour),
			CleanupSchedule: "0 4 * * *",
		},
	}
}

// Load reads path (skipped when empty or missing) over the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Info("config [Load] no config file, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("config.Load: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config.Load: %w", err)
			}
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.Chain.RPCURL = getEnv("CHAIN_RPC_URL", c.Chain.RPCURL)
	c.Chain.ChainID = getEnvAsInt64("CHAIN_ID", c.Chain.ChainID)
	c.Chain.GenesisHash = getEnv("CHAIN_GENESIS_HASH", c.Chain.GenesisHash)
	c.Chain.Contract = getEnv("CHAIN_CONTRACT", c.Chain.Contract)
	c.Chain.PrivateKey = getEnv("CHAIN_PRIVATE_KEY", c.Chain.PrivateKey)
	c.Chain.MoveEncoding = getEnv("CHAIN_MOVE_ENCODING", c.Chain.MoveEncoding)

	c.Cloud.RelayURL = getEnv("CLOUD_RELAY_URL", c.Cloud.RelayURL)
	c.Cloud.EncryptPrivate = getEnvAsBool("CLOUD_ENCRYPT_PRIVATE", c.Cloud.EncryptPrivate)
	c.Cloud.HitsDebounce = getEnvAsDuration("CLOUD_HITS_DEBOUNCE", c.Cloud.HitsDebounce)

	c.Game.PollInterval = getEnvAsDuration("GAME_POLL_INTERVAL", c.Game.PollInterval)
	c.Game.AutoPlay = getEnvAsBool("GAME_AUTO_PLAY", c.Game.AutoPlay)

	c.Relay.Addr = getEnv("RELAY_ADDR", c.Relay.Addr)
	c.Relay.Backend = getEnv("RELAY_BACKEND", c.Relay.Backend)
	c.Relay.DSN = getEnv("RELAY_DSN", c.Relay.DSN)
	c.Relay.Retention = getEnvAsDuration("RELAY_RETENTION", c.Relay.Retention)
	c.Relay.CleanupSchedule = getEnv("RELAY_CLEANUP_SCHEDULE", c.Relay.CleanupSchedule)
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}
	if _, err := codec.ParseMoveEncoding(c.Chain.MoveEncoding); err != nil {
		return fmt.Errorf("%w: chain.move_encoding %q", ErrInvalid, c.Chain.MoveEncoding)
	}
	if c.Chain.GenesisHash == "" && c.Chain.ChainID <= 0 {
		return fmt.Errorf("%w: chain.chain_id or chain.genesis_hash required", ErrInvalid)
	}
	if c.Cloud.HitsDebounce < 0 {
		return fmt.Errorf("%w: cloud.hits_debounce must not be negative", ErrInvalid)
	}
	if c.Game.PollInterval <= 0 {
		return fmt.Errorf("%w: game.poll_interval must be positive", ErrInvalid)
	}
	if c.Game.BoardLength < 1 || c.Game.BoardLength > MaxBoardLength {
		return fmt.Errorf("%w: game.board_length must be between 1 and %d", ErrInvalid, MaxBoardLength)
	}
	if c.Game.TotalRounds < 1 || c.Game.TotalRounds > c.Game.BoardLength*c.Game.BoardLength {
		return fmt.Errorf("%w: game.total_rounds out of range", ErrInvalid)
	}
	if len(c.Game.ShipLengths) == 0 {
		return fmt.Errorf("%w: game.ship_lengths required", ErrInvalid)
	}
	for _, l := range c.Game.ShipLengths {
		if l < 1 || l > c.Game.BoardLength {
			return fmt.Errorf("%w: game.ship_lengths contains %d", ErrInvalid, l)
		}
	}
	switch c.Relay.Backend {
	case "memory":
	case "postgres", "sqlite":
		if c.Relay.DSN == "" {
			return fmt.Errorf("%w: relay.dsn required for %s backend", ErrInvalid, c.Relay.Backend)
		}
	default:
		return fmt.Errorf("%w: relay.backend %q", ErrInvalid, c.Relay.Backend)
	}
	return nil
}

// Level is the parsed log level.
func (c *Config) Level() log.Level {
	lvl, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvAsBool(key string, defaultValue bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return v
}

func getEnvAsDuration(key string, defaultValue Duration) Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return Duration(v)
}
