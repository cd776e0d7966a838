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
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Database DatabaseConfig `mapstructure:"database"`
	Games    GamesConfig    `mapstructure:"games"`
}

// ServerConfig holds the listener and engine settings.
type ServerConfig struct {
	ListenAddr   string        `mapstructure:"listen_addr"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
	MOTD         string        `mapstructure:"motd"`
}

// AdminConfig holds the admin user configuration.
type AdminConfig struct {
	Names []string `mapstructure:"names"`
}

// DatabaseConfig holds the PostgreSQL connection configuration for the
// table history ledger. The ledger is optional; when disabled the server
// runs without a database.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
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

// GamesConfig holds game-specific configuration.
type GamesConfig struct {
	RPS       RPSConfig       `mapstructure:"rps"`
	TicTacToe TicTacToeConfig `mapstructure:"tictactoe"`
	Dice      DiceConfig      `mapstructure:"dice"`

	// AdminOnly lists game keys that only admins may start tables for.
	AdminOnly []string `mapstructure:"admin_only"`
}

// RPSConfig holds rock-paper-scissors configuration.
type RPSConfig struct {
	WinScore int `mapstructure:"win_score"`
}

// TicTacToeConfig holds tic-tac-toe configuration.
type TicTacToeConfig struct {
	BoardSize int `mapstructure:"board_size"`
}

// DiceConfig holds dice duel configuration.
type DiceConfig struct {
	WinScore int `mapstructure:"win_score"`
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
	// e.g. SERVER_LISTEN_ADDR, DATABASE_HOST.
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
	v.SetDefault("server.listen_addr", ":4040")
	v.SetDefault("server.tick_interval", "1s")
	v.SetDefault("server.motd", "Welcome. Try: game list")

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "gameserver")
	v.SetDefault("database.name", "gameserver")
	v.SetDefault("database.pool_size", 10)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")

	v.SetDefault("games.rps.win_score", 3)
	v.SetDefault("games.tictactoe.board_size", 3)
	v.SetDefault("games.dice.win_score", 3)
}

// IsAdminName checks if a display name belongs to a configured admin.
func (c *Config) IsAdminName(name string) bool {
	for _, n := range c.Admin.Names {
		if strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

// IsAdminOnlyGame checks if a game key is restricted to admins.
func (c *Config) IsAdminOnlyGame(key string) bool {
	for _, k := range c.Games.AdminOnly {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
