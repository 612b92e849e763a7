package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Cards    CardsConfig    `mapstructure:"cards"`
}

// ServerConfig holds transport and session tunables.
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	// GracePeriod keeps finished battles readable before eviction.
	GracePeriod time.Duration `mapstructure:"grace_period"`
	// AITurnTimeout bounds the wait for the external AI driver.
	AITurnTimeout time.Duration `mapstructure:"ai_turn_timeout"`
	// ReplayDir receives a replay file per finished battle; empty
	// disables replay persistence.
	ReplayDir string `mapstructure:"replay_dir"`
}

// WebSocketConfig configures the realtime endpoint.
type WebSocketConfig struct {
	Address        string   `mapstructure:"address"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

// DatabaseConfig configures optional battle-result persistence. An
// empty URL disables it.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// CardsConfig locates the card master data and deck lists.
type CardsConfig struct {
	Path                string  `mapstructure:"path"`
	DeckDir             string  `mapstructure:"deck_dir"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// Load reads configuration from the given file, with environment
// variable overrides (BATTLE_SERVER_SECTION_KEY).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("server.websocket.address", ":8081")
	v.SetDefault("server.grace_period", 5*time.Minute)
	v.SetDefault("server.ai_turn_timeout", 30*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("cards.path", "data/cards.yaml")
	v.SetDefault("cards.deck_dir", "data/decks")
	v.SetDefault("cards.confidence_threshold", 0.7)

	v.SetEnvPrefix("BATTLE_SERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.WebSocket.Address == "" {
		return fmt.Errorf("server.websocket.address must not be empty")
	}
	if c.Cards.Path == "" {
		return fmt.Errorf("cards.path must not be empty")
	}
	if c.Cards.ConfidenceThreshold < 0 || c.Cards.ConfidenceThreshold > 1 {
		return fmt.Errorf("cards.confidence_threshold must be within [0,1], got %f", c.Cards.ConfidenceThreshold)
	}
	return nil
}
