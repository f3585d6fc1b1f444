package config

import (
	"fmt"
	"time"
)

// Messaging definition messaging_service YAML structure
type Messaging struct {
	Port      string         `mapstructure:"port"`
	JWTSecret string         `mapstructure:"jwt_secret"`
	Pprof     bool           `mapstructure:"pprof"`
	Store     StoreConfig    `mapstructure:"store"`
	Postgres  DatabaseConfig `mapstructure:"pg"`
	Redis     RedisConfig    `mapstructure:"redis"`
	Relay     RelayConfig    `mapstructure:"relay"`
	Kafka     KafkaConfig    `mapstructure:"kafka"`
	Presence  PresenceConfig `mapstructure:"presence"`
}

// StoreConfig selects the message store driver.
type StoreConfig struct {
	// Driver postgres | sqlite
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RedisConfig definition redis setting. Addr wins over sentinel discovery.
type RedisConfig struct {
	Addr    string `mapstructure:"addr"`
	RedisDB int    `mapstructure:"redis_db"`
}

// RelayConfig pub/sub relay setting
type RelayConfig struct {
	// Backend redis | memory
	Backend        string        `mapstructure:"backend"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// KafkaConfig downstream message.sent sink; empty Brokers disables it
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// PresenceConfig heartbeat cadence
type PresenceConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// DSN postgres connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable", d.User, d.Password, d.Host, d.Port, d.Database)
}
