package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Redis  RedisConfig
	Auth   AuthConfig
	Bus    BusConfig
}

var (
	ConfigInstance *Config
	once           sync.Once
)

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
	MinIdleConns int
}

type AuthConfig struct {
	// ServiceURL is the base URL of the auth service used for remote token
	// verification. Local JWT verification with JWTSecret is the fallback.
	ServiceURL     string
	RequestTimeout time.Duration
	JWTSecret      string
	CacheTTL       time.Duration
}

type BusConfig struct {
	NotificationsChannel string
	TelemetryChannel     string
}

func LoadConfig() (*Config, error) {
	// Viper setup
	once.Do(func() {
		viper.SetDefault("REALTIME_HOST", "")
		viper.SetDefault("REALTIME_PORT", "8003")
		viper.SetDefault("REALTIME_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("REALTIME_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("REALTIME_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("AUTH_SERVICE_URL", "http://localhost:8000")
		viper.SetDefault("AUTH_REQUEST_TIMEOUT", 10*time.Second)
		viper.SetDefault("JWT_SECRET", "your-super-secret-jwt-key-change-in-production")
		viper.SetDefault("AUTH_CACHE_TTL", 5*time.Minute)
		viper.SetDefault("REDIS_HOST", "localhost")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("REDIS_MAX_RETRIES", 3)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("REDIS_MIN_IDLE_CONNS", 10)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("BUS_NOTIFICATIONS_CHANNEL", "system_notifications")
		viper.SetDefault("BUS_TELEMETRY_CHANNEL", "device_telemetry")
		viper.AutomaticEnv()

		ConfigInstance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("REALTIME_HOST"),
				Port:         viper.GetString("REALTIME_PORT"),
				ReadTimeout:  viper.GetDuration("REALTIME_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REALTIME_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("REALTIME_IDLE_TIMEOUT"),
			},
			Redis: RedisConfig{
				Host:         viper.GetString("REDIS_HOST"),
				Port:         viper.GetString("REDIS_PORT"),
				Password:     viper.GetString("REDIS_PASSWORD"),
				DB:           viper.GetInt("REDIS_DB"),
				MaxRetries:   viper.GetInt("REDIS_MAX_RETRIES"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
				MinIdleConns: viper.GetInt("REDIS_MIN_IDLE_CONNS"),
			},
			Auth: AuthConfig{
				ServiceURL:     viper.GetString("AUTH_SERVICE_URL"),
				RequestTimeout: viper.GetDuration("AUTH_REQUEST_TIMEOUT"),
				JWTSecret:      viper.GetString("JWT_SECRET"),
				CacheTTL:       viper.GetDuration("AUTH_CACHE_TTL"),
			},
			Bus: BusConfig{
				NotificationsChannel: viper.GetString("BUS_NOTIFICATIONS_CHANNEL"),
				TelemetryChannel:     viper.GetString("BUS_TELEMETRY_CHANNEL"),
			},
		}
	})

	return ConfigInstance, nil
}
