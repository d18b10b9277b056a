// Package config provides configuration management using viper.
// It supports loading from YAML files and environment variable overrides.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Admin     AdminConfig     `mapstructure:"admin"`
	Whitelist WhitelistConfig `mapstructure:"whitelist"`
	Economy   EconomyConfig   `mapstructure:"economy"`
	Games     GamesConfig     `mapstructure:"games"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
}

// BotConfig holds the platform connection configuration. The token also
// salts per-message session keys for the state codec.
type BotConfig struct {
	Token       string `mapstructure:"token"`
	StateSecret string `mapstructure:"state_secret"`
}

// SessionSecret returns the secret used to derive per-message codec keys.
// Falls back to the bot token when no dedicated secret is configured.
func (b *BotConfig) SessionSecret() string {
	if b.StateSecret != "" {
		return b.StateSecret
	}
	return b.Token
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	PoolSize        int           `mapstructure:"pool_size"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// AdminConfig holds admin user configuration.
type AdminConfig struct {
	IDs []int64 `mapstructure:"ids"`
}

// WhitelistConfig restricts which guilds the bot serves. An empty
// list serves every guild the bot was invited to.
type WhitelistConfig struct {
	Guilds []int64 `mapstructure:"guilds"`
}

// EconomyConfig holds economy-wide settings.
type EconomyConfig struct {
	WorkRewardMin        int64         `mapstructure:"work_reward_min"`
	WorkRewardMax        int64         `mapstructure:"work_reward_max"`
	RiskyWorkChance      float64       `mapstructure:"risky_work_chance"`
	RiskyWorkRewardMin   int64         `mapstructure:"risky_work_reward_min"`
	RiskyWorkRewardMax   int64         `mapstructure:"risky_work_reward_max"`
	RiskyWorkPenaltyMin  int64         `mapstructure:"risky_work_penalty_min"`
	RiskyWorkPenaltyMax  int64         `mapstructure:"risky_work_penalty_max"`
	WorkCooldown         time.Duration `mapstructure:"work_cooldown"`
	AuditScanDepth       int           `mapstructure:"audit_scan_depth"`
}

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	Crystal  CrystalConfig  `mapstructure:"crystal"`
	Climb    ClimbConfig    `mapstructure:"climb"`
	Candy    CandyConfig    `mapstructure:"candy"`
	Staring  StaringConfig  `mapstructure:"staring"`
	Roulette RouletteConfig `mapstructure:"roulette"`
}

// CrystalConfig holds the crystallization game configuration.
type CrystalConfig struct {
	InitialRisk       float64 `mapstructure:"initial_risk"`
	InitialMultMin    float64 `mapstructure:"initial_mult_min"`
	InitialMultMax    float64 `mapstructure:"initial_mult_max"`
	RiskIncrementMin  float64 `mapstructure:"risk_increment_min"`
	RiskIncrementMax  float64 `mapstructure:"risk_increment_max"`
	MultIncrementMin  float64 `mapstructure:"mult_increment_min"`
	MultIncrementMax  float64 `mapstructure:"mult_increment_max"`
	MaxBet            int64   `mapstructure:"max_bet"`
}

// ClimbConfig holds the cognitive climb game configuration. Risk is
// fixed per step; only the multiplier grows.
type ClimbConfig struct {
	Risk             float64 `mapstructure:"risk"`
	InitialMultMin   float64 `mapstructure:"initial_mult_min"`
	InitialMultMax   float64 `mapstructure:"initial_mult_max"`
	MultIncrementMin float64 `mapstructure:"mult_increment_min"`
	MultIncrementMax float64 `mapstructure:"mult_increment_max"`
	MaxBet           int64   `mapstructure:"max_bet"`
}

// CandyConfig holds the candy game configuration. Win multiplier keys
// are step counts; viper delivers YAML map keys as strings.
type CandyConfig struct {
	PreTakenWeights []float64          `mapstructure:"pre_taken_weights"`
	WinMultipliers  map[string]float64 `mapstructure:"win_multipliers"`
	MaxBet          int64              `mapstructure:"max_bet"`
}

// StepMultipliers converts the configured win multipliers to a table
// keyed by step count, skipping unparsable keys.
func (c *CandyConfig) StepMultipliers() map[int]float64 {
	out := make(map[int]float64, len(c.WinMultipliers))
	for k, v := range c.WinMultipliers {
		var step int
		if _, err := fmt.Sscanf(k, "%d", &step); err == nil {
			out[step] = v
		}
	}
	return out
}

// StaringConfig holds the staring contest configuration. Mode is
// either "sudden_death" (first round with a death ends the game) or
// "last_survivor" (rounds continue until at most one player remains).
type StaringConfig struct {
	MaxPlayers    int           `mapstructure:"max_players"`
	LobbyDuration time.Duration `mapstructure:"lobby_duration"`
	RoundDelay    time.Duration `mapstructure:"round_delay"`
	Mode          string        `mapstructure:"mode"`
	MaxBet        int64         `mapstructure:"max_bet"`
}

// RouletteConfig holds the pit roulette configuration.
type RouletteConfig struct {
	RoundDuration time.Duration `mapstructure:"round_duration"`
	MaxBet        int64         `mapstructure:"max_bet"`
}

// OutboxConfig holds settlement event outbox configuration.
type OutboxConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name,
	)
}

// Load reads configuration from file and environment variables.
// It looks for config.yaml in the config directory.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables use underscore separator and uppercase,
	// e.g. BOT_TOKEN, DATABASE_HOST.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK - env vars can provide all config.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "facility")
	v.SetDefault("database.name", "facility")
	v.SetDefault("database.pool_size", 20)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	// Economy defaults
	v.SetDefault("economy.work_reward_min", 150)
	v.SetDefault("economy.work_reward_max", 350)
	v.SetDefault("economy.risky_work_chance", 0.6)
	v.SetDefault("economy.risky_work_reward_min", 250)
	v.SetDefault("economy.risky_work_reward_max", 500)
	v.SetDefault("economy.risky_work_penalty_min", 200)
	v.SetDefault("economy.risky_work_penalty_max", 400)
	v.SetDefault("economy.work_cooldown", "4h")
	v.SetDefault("economy.audit_scan_depth", 100)

	// Game defaults
	v.SetDefault("games.crystal.initial_risk", 0.05)
	v.SetDefault("games.crystal.initial_mult_min", 0.90)
	v.SetDefault("games.crystal.initial_mult_max", 0.99)
	v.SetDefault("games.crystal.risk_increment_min", 0.07)
	v.SetDefault("games.crystal.risk_increment_max", 0.16)
	v.SetDefault("games.crystal.mult_increment_min", 0.11)
	v.SetDefault("games.crystal.mult_increment_max", 0.19)
	v.SetDefault("games.crystal.max_bet", 10000)

	v.SetDefault("games.climb.risk", 0.5)
	v.SetDefault("games.climb.initial_mult_min", 0.90)
	v.SetDefault("games.climb.initial_mult_max", 1.10)
	v.SetDefault("games.climb.mult_increment_min", 0.30)
	v.SetDefault("games.climb.mult_increment_max", 0.65)
	v.SetDefault("games.climb.max_bet", 10000)

	v.SetDefault("games.candy.pre_taken_weights", []float64{0.3, 0.5, 0.2})
	v.SetDefault("games.candy.win_multipliers", map[string]float64{"1": 1.25, "2": 2.99})
	v.SetDefault("games.candy.max_bet", 10000)

	v.SetDefault("games.staring.max_players", 6)
	v.SetDefault("games.staring.lobby_duration", "60s")
	v.SetDefault("games.staring.round_delay", "2s")
	v.SetDefault("games.staring.mode", "sudden_death")
	v.SetDefault("games.staring.max_bet", 100000)

	v.SetDefault("games.roulette.round_duration", "30s")
	v.SetDefault("games.roulette.max_bet", 10000)

	// Outbox defaults
	v.SetDefault("outbox.buffer_size", 256)
}

// IsAdmin checks if a user ID is in the admin list.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admin.IDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsGuildAllowed checks if a guild is whitelisted.
func (c *Config) IsGuildAllowed(guildID int64) bool {
	if len(c.Whitelist.Guilds) == 0 {
		return true
	}
	for _, id := range c.Whitelist.Guilds {
		if id == guildID {
			return true
		}
	}
	return false
}
