package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aman-churiwal/quota-gateway/internal/models"
	"github.com/spf13/viper"
)

const envPrefix = "GATEWAY"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Users     []UserConfig    `mapstructure:"users"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	RoutePrefix     string        `mapstructure:"route_prefix"`
	MaxConnections  int           `mapstructure:"max_connections"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	TrustedProxies  []string      `mapstructure:"trusted_proxies"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "json" or "console"
}

type RateLimitConfig struct {
	Tiers           map[string]int `mapstructure:"tiers"`
	CleanupInterval time.Duration  `mapstructure:"cleanup_interval"`
}

// Request log sink. Disabled while DSN is empty.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	LogBufferSize   int           `mapstructure:"log_buffer_size"`
	BatchSize       int           `mapstructure:"batch_size"`
	FlushInterval   time.Duration `mapstructure:"flush_interval"`
}

type UserConfig struct {
	ID       string `mapstructure:"id"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Tier     string `mapstructure:"tier"`
}

// Load reads configuration from path, or from config.json in the working
// directory when path is empty. Environment variables prefixed with GATEWAY_
// override file values.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "5000")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.route_prefix", "")
	v.SetDefault("server.max_connections", 0)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 5*time.Second)
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	tiers := make(map[string]int)
	for _, tier := range models.DefaultRateLimitTiers() {
		tiers[tier.Name.String()] = tier.RequestsPerHour
	}
	v.SetDefault("rate_limit.tiers", tiers)
	v.SetDefault("rate_limit.cleanup_interval", 10*time.Minute)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.connect_timeout", 10*time.Second)
	v.SetDefault("database.log_buffer_size", 1000)
	v.SetDefault("database.batch_size", 100)
	v.SetDefault("database.flush_interval", 5*time.Second)

	v.SetDefault("users", []map[string]string{
		{"id": "u1", "username": "alice", "password": "pass123", "tier": "free"},
		{"id": "u2", "username": "bob", "password": "secret456", "tier": "premium"},
	})
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if c.Server.MaxConnections < 0 {
		return errors.New("server.max_connections must not be negative")
	}
	if c.Server.RoutePrefix != "" && !strings.HasPrefix(c.Server.RoutePrefix, "/") {
		return fmt.Errorf("server.route_prefix must start with '/': %q", c.Server.RoutePrefix)
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console: %q", c.Log.Format)
	}

	if c.RateLimit.CleanupInterval < 0 {
		return errors.New("rate_limit.cleanup_interval must not be negative")
	}
	if _, err := c.RateLimitTiers(); err != nil {
		return err
	}

	if c.Database.DSN != "" {
		if c.Database.LogBufferSize <= 0 || c.Database.BatchSize <= 0 {
			return errors.New("database.log_buffer_size and database.batch_size must be positive")
		}
		if c.Database.FlushInterval <= 0 {
			return errors.New("database.flush_interval must be positive")
		}
		if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
			return errors.New("database connection pool sizes must not be negative")
		}
	}

	if _, err := c.DirectoryUsers(); err != nil {
		return err
	}

	return nil
}

// RateLimitTiers merges configured limits over the built-in defaults.
// Every known tier ends up with a positive hourly limit.
func (c *Config) RateLimitTiers() ([]models.RateLimitTier, error) {
	for name := range c.RateLimit.Tiers {
		if _, err := models.ParseTier(name); err != nil {
			return nil, fmt.Errorf("rate_limit.tiers: %w", err)
		}
	}

	tiers := models.DefaultRateLimitTiers()
	for i := range tiers {
		if limit, ok := c.RateLimit.Tiers[tiers[i].Name.String()]; ok {
			tiers[i].RequestsPerHour = limit
		}
		if tiers[i].RequestsPerHour <= 0 {
			return nil, fmt.Errorf("rate_limit.tiers.%s must be positive", tiers[i].Name)
		}
	}

	return tiers, nil
}

// DirectoryUsers converts the configured users into directory records
func (c *Config) DirectoryUsers() ([]models.User, error) {
	users := make([]models.User, 0, len(c.Users))
	ids := make(map[string]bool)
	usernames := make(map[string]bool)

	for i, u := range c.Users {
		if u.ID == "" || u.Username == "" {
			return nil, fmt.Errorf("users[%d]: id and username are required", i)
		}
		if ids[u.ID] {
			return nil, fmt.Errorf("users[%d]: duplicate id %q", i, u.ID)
		}
		if usernames[u.Username] {
			return nil, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}

		tier, err := models.ParseTier(u.Tier)
		if err != nil {
			return nil, fmt.Errorf("users[%d]: %w", i, err)
		}

		ids[u.ID] = true
		usernames[u.Username] = true
		users = append(users, models.User{
			ID:       u.ID,
			Username: u.Username,
			Password: u.Password,
			Tier:     tier,
		})
	}

	return users, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
