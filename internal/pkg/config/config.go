package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Valkey     ValkeyConfig     `mapstructure:"valkey"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
	Store      StoreConfig      `mapstructure:"store"`
	Geocoder   GeocoderConfig   `mapstructure:"geocoder"`
	Navigation NavigationConfig `mapstructure:"navigation"`
	Temporal   TemporalConfig   `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr   string `mapstructure:"addr"`
	Prefix string `mapstructure:"prefix"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// StoreConfig points a navigator at a remote task store.
type StoreConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

func (s StoreConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

type GeocoderConfig struct {
	BaseURL         string `mapstructure:"base_url"`
	UserAgent       string `mapstructure:"user_agent"`
	TimeoutMS       int    `mapstructure:"timeout_ms"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

func (g GeocoderConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutMS) * time.Millisecond
}

type NavigationConfig struct {
	SessionID      string  `mapstructure:"session_id"`
	ThresholdKm    float64 `mapstructure:"threshold_km"`
	SpeechCommand  string  `mapstructure:"speech_command"`
	SpeechDelayMS  int     `mapstructure:"speech_delay_ms"`
	DurableArrival bool    `mapstructure:"durable_arrival"`
	// ArrivalTimeoutMS bounds a durable arrival end to end.
	ArrivalTimeoutMS int `mapstructure:"arrival_timeout_ms"`
}

func (n NavigationConfig) SpeechDelay() time.Duration {
	return time.Duration(n.SpeechDelayMS) * time.Millisecond
}

func (n NavigationConfig) ArrivalTimeout() time.Duration {
	return time.Duration(n.ArrivalTimeoutMS) * time.Millisecond
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "taskpin")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "taskpin")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.prefix", "taskpin:")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("store.base_url", "http://localhost:8080")
	v.SetDefault("store.timeout_ms", 5000)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "taskpin/1.0")
	v.SetDefault("geocoder.timeout_ms", 10000)
	v.SetDefault("geocoder.cache_ttl_seconds", 3600)
	v.SetDefault("navigation.session_id", "default")
	v.SetDefault("navigation.threshold_km", 0.10)
	v.SetDefault("navigation.speech_command", "espeak")
	v.SetDefault("navigation.speech_delay_ms", 200)
	v.SetDefault("navigation.durable_arrival", false)
	v.SetDefault("navigation.arrival_timeout_ms", 30000)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "taskpin-arrivals")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: TASKPIN_NAVIGATION_THRESHOLD_KM → navigation.threshold_km
	v.SetEnvPrefix("TASKPIN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Store.BaseURL == "" {
		errs = append(errs, "store.base_url is required")
	}
	if c.Store.TimeoutMS <= 0 {
		errs = append(errs, "store.timeout_ms must be positive")
	}
	if c.Geocoder.TimeoutMS <= 0 {
		errs = append(errs, "geocoder.timeout_ms must be positive")
	}
	if c.Navigation.SessionID == "" || strings.ContainsAny(c.Navigation.SessionID, ".*> ") {
		errs = append(errs, fmt.Sprintf("navigation.session_id must be a single subject token, got %q", c.Navigation.SessionID))
	}
	if c.Navigation.ThresholdKm <= 0 || c.Navigation.ThresholdKm > 10 {
		errs = append(errs, fmt.Sprintf("navigation.threshold_km must be in (0, 10], got %g", c.Navigation.ThresholdKm))
	}
	if c.Navigation.SpeechDelayMS <= 0 {
		errs = append(errs, fmt.Sprintf("navigation.speech_delay_ms must be positive, got %d", c.Navigation.SpeechDelayMS))
	}
	if c.Navigation.DurableArrival && c.Navigation.ArrivalTimeoutMS <= 0 {
		errs = append(errs, fmt.Sprintf("navigation.arrival_timeout_ms must be positive, got %d", c.Navigation.ArrivalTimeoutMS))
	}
	if c.Navigation.DurableArrival && c.Temporal.HostPort == "" {
		errs = append(errs, "temporal.host_port is required when navigation.durable_arrival is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
