package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Auction        AuctionConfig        `yaml:"auction"`
	Cache          CacheConfig          `yaml:"cache"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token         string `yaml:"token"`
	GuildID       string `yaml:"guild_id"`
	OwnerID       string `yaml:"owner_id"`        // only this user may toggle auctioneers
	LogsChannelID string `yaml:"logs_channel_id"` // finalized auctions are recorded here
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	Path     string `yaml:"path"`   // sqlite database file
	Driver   string `yaml:"driver"` // "postgres", "sqlite" or "memory"
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// MinCooldown is the shortest allowed re-auction blackout for an item.
const MinCooldown = 7 * 24 * time.Hour

// AuctionConfig holds auction engine settings.
type AuctionConfig struct {
	SweepInterval time.Duration `yaml:"sweep_interval"`
	Cooldown      time.Duration `yaml:"cooldown"` // at least MinCooldown
	DispatchQueue int           `yaml:"dispatch_queue"`
	StartRate     time.Duration `yaml:"start_rate"` // per-user spacing of auction-start
	EditRate      time.Duration `yaml:"edit_rate"`  // per-user spacing of auction-edit
}

// CacheConfig holds the optional Redis listing cache settings.
// An empty RedisAddr disables the cache.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	Password  string        `yaml:"password"`
	DB        int           `yaml:"db"`
	TTL       time.Duration `yaml:"ttl"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "auction_bot.db",
			Driver:  "postgres",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctionbot",
			ServiceVersion: "0.1.0",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctionbot-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Auction: AuctionConfig{
			SweepInterval: 60 * time.Second,
			Cooldown:      MinCooldown,
			DispatchQueue: 256,
			StartRate:     10 * time.Second,
			EditRate:      5 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 15 * time.Second,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite", "memory":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"postgres\", \"sqlite\" or \"memory\"", c.Database.Driver)
	}
	if c.Auction.SweepInterval <= 0 {
		return fmt.Errorf("auction.sweep_interval must be positive, got %s", c.Auction.SweepInterval)
	}
	if c.Auction.Cooldown < MinCooldown {
		return fmt.Errorf("auction.cooldown must be at least %s, got %s", MinCooldown, c.Auction.Cooldown)
	}
	if c.Auction.DispatchQueue <= 0 {
		return fmt.Errorf("auction.dispatch_queue must be positive, got %d", c.Auction.DispatchQueue)
	}
	return nil
}
