package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/whereabouts/internal/common"
)

// Recency policies for the frequent-location flag.
const (
	RecencyCurrent  = "current"
	RecencyPrevious = "previous"
)

// Fix store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config is the typed application configuration.
type Config struct {
	Database     DatabaseConfig
	Logging      LoggingConfig
	MQTT         MQTTConfig
	Redis        RedisConfig
	HTTP         HTTPConfig
	Location     LocationConfig
	Usage        UsageConfig
	Permissions  PermissionsConfig
	Registration RegistrationConfig
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level  string
	Format string
}

// MQTTConfig configures the host bridge connection.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// RedisConfig configures the shared fix store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// HTTPConfig configures the check API. With TLS set, a self-signed
// certificate covering TLSHosts is kept in CertDir.
type HTTPConfig struct {
	Addr     string
	CertDir  string
	TLSHosts []string
	TLS      bool
}

// LocationConfig configures fix acquisition.
type LocationConfig struct {
	Store     string
	CacheTTL  time.Duration
	MaxFixAge time.Duration
}

// UsageConfig configures the frequent-location updater.
type UsageConfig struct {
	RecencyPolicy string
}

// PermissionsConfig declares what the host has granted.
type PermissionsConfig struct {
	FineLocation       bool
	BackgroundLocation bool
	PlatformVersion    int
}

// RegistrationConfig makes the retry decision for host registration explicit.
// RetryAttempts <= 1 means at-most-once delivery.
type RegistrationConfig struct {
	RetryAttempts int
	RetryDelay    time.Duration
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "${XDG_DATA_HOME:-~/.local/share}/whereabouts/whereabouts.db")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.client_id", "whereabouts")
	v.SetDefault("mqtt.topic_prefix", "whereabouts")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("http.addr", "127.0.0.1:8484")
	v.SetDefault("http.tls", false)
	v.SetDefault("http.cert_dir", "${XDG_CONFIG_HOME:-~/.config}/whereabouts/certs")
	v.SetDefault("location.store", StoreMemory)
	v.SetDefault("location.cache_ttl", 30*time.Second)
	v.SetDefault("location.max_fix_age", 5*time.Minute)
	v.SetDefault("usage.recency_policy", RecencyCurrent)
	v.SetDefault("permissions.fine_location", true)
	v.SetDefault("permissions.background_location", false)
	v.SetDefault("permissions.platform_version", 34)
	v.SetDefault("registration.retry_attempts", 1)
	v.SetDefault("registration.retry_delay", 2*time.Second)
}

// Load reads the configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		MQTT: MQTTConfig{
			Broker:      v.GetString("mqtt.broker"),
			ClientID:    v.GetString("mqtt.client_id"),
			Username:    v.GetString("mqtt.username"),
			Password:    v.GetString("mqtt.password"),
			TopicPrefix: strings.TrimSuffix(v.GetString("mqtt.topic_prefix"), "/"),
			QoS:         byte(v.GetInt("mqtt.qos")),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		HTTP: HTTPConfig{
			Addr:     v.GetString("http.addr"),
			CertDir:  ExpandPath(v.GetString("http.cert_dir")),
			TLSHosts: v.GetStringSlice("http.tls_hosts"),
			TLS:      v.GetBool("http.tls"),
		},
		Location: LocationConfig{
			Store:     strings.ToLower(v.GetString("location.store")),
			CacheTTL:  v.GetDuration("location.cache_ttl"),
			MaxFixAge: v.GetDuration("location.max_fix_age"),
		},
		Usage: UsageConfig{
			RecencyPolicy: strings.ToLower(v.GetString("usage.recency_policy")),
		},
		Permissions: PermissionsConfig{
			FineLocation:       v.GetBool("permissions.fine_location"),
			BackgroundLocation: v.GetBool("permissions.background_location"),
			PlatformVersion:    v.GetInt("permissions.platform_version"),
		},
		Registration: RegistrationConfig{
			RetryAttempts: v.GetInt("registration.retry_attempts"),
			RetryDelay:    v.GetDuration("registration.retry_delay"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.HTTP.TLS && c.HTTP.CertDir == "" {
		return fmt.Errorf("%w: http.cert_dir is required with http.tls", common.ErrMissingConfig)
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("%w: mqtt.qos must be 0, 1 or 2", common.ErrInvalidConfig)
	}
	switch c.Location.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("%w: location.store %q", common.ErrInvalidConfig, c.Location.Store)
	}
	switch c.Usage.RecencyPolicy {
	case RecencyCurrent, RecencyPrevious:
	default:
		return fmt.Errorf("%w: usage.recency_policy %q", common.ErrInvalidConfig, c.Usage.RecencyPolicy)
	}
	if c.Location.CacheTTL < 0 || c.Location.MaxFixAge < 0 {
		return fmt.Errorf("%w: location durations must not be negative", common.ErrInvalidConfig)
	}
	return nil
}
