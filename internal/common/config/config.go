// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Engines       EnginesConfig       `mapstructure:"engines"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Audit         AuditConfig         `mapstructure:"audit"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Engine Configuration ---

type EnginesConfig struct {
	// Scopes lists the company partitions the scheduled runner sweeps.
	Scopes   []string       `mapstructure:"scopes"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Delivery DeliveryConfig `mapstructure:"delivery"`
}

// PipelineConfig bounds the apply step and schedules automation runs.
type PipelineConfig struct {
	ApplyLimit     int    `mapstructure:"apply_limit"`
	RebalanceLimit int    `mapstructure:"rebalance_limit"`
	CronSpec       string `mapstructure:"cron_spec"`
}

// DeliveryConfig controls the delivery job.
type DeliveryConfig struct {
	Timezone       string  `mapstructure:"timezone"` // IANA name used to resolve digest hours
	CronSpec       string  `mapstructure:"cron_spec"`
	ProviderRPS    float64 `mapstructure:"provider_rps"` // rate cap on external provider calls
	ProviderBurst  int     `mapstructure:"provider_burst"`
}

// NotificationConfig holds settings for the delivery channel providers.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	Push struct {
		Enabled  bool   `mapstructure:"enabled"`
		TopicARN string `mapstructure:"topic_arn"`
	} `mapstructure:"push"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// AuditConfig holds settings for the outbound audit emitter.
type AuditConfig struct {
	WebhookURL string `mapstructure:"webhook_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
