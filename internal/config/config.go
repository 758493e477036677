package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for the local store.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the GORM connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// LocationConfig holds the tunable location cache policy defaults.
type LocationConfig struct {
	StaleThreshold    time.Duration
	MaxAge            time.Duration
	UpdateInterval    time.Duration
	MinAccuracyMeters float64
	GPSTimeout        time.Duration

	// City-center fallback used when every acquisition tier fails.
	FallbackLatitude  float64
	FallbackLongitude float64
	FallbackCity      string
}

// ServiceConfig holds all configuration for the client-core agent.
type ServiceConfig struct {
	Port         string
	AppEnv       string
	APIBaseURL   string
	DBConfig     DatabaseConfig
	RedisAddr    string
	KafkaBrokers []string
	Location     LocationConfig
}

// Load reads configuration from environment variables with the HATID_ prefix.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("HATID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("PORT", ":8085")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("API_URL", "http://localhost:3000")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "hatid")
	v.SetDefault("DB_PASSWORD", "hatid")
	v.SetDefault("DB_NAME", "hatid_client")
	v.SetDefault("DB_SSLMODE", "disable")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("KAFKA_BROKERS", "")

	v.SetDefault("LOCATION_STALE_THRESHOLD", 5*time.Minute)
	v.SetDefault("LOCATION_MAX_AGE", 24*time.Hour)
	v.SetDefault("LOCATION_UPDATE_INTERVAL", 2*time.Minute)
	v.SetDefault("LOCATION_MIN_ACCURACY_METERS", 100.0)
	v.SetDefault("LOCATION_GPS_TIMEOUT", 5*time.Second)
	v.SetDefault("LOCATION_FALLBACK_LAT", 10.6772)
	v.SetDefault("LOCATION_FALLBACK_LON", 122.9547)
	v.SetDefault("LOCATION_FALLBACK_CITY", "Bacolod City")

	var brokers []string
	if raw := strings.TrimSpace(v.GetString("KAFKA_BROKERS")); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	cfg := &ServiceConfig{
		Port:       v.GetString("PORT"),
		AppEnv:     v.GetString("APP_ENV"),
		APIBaseURL: strings.TrimRight(v.GetString("API_URL"), "/"),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetInt("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		RedisAddr:    v.GetString("REDIS_ADDR"),
		KafkaBrokers: brokers,
		Location: LocationConfig{
			StaleThreshold:    v.GetDuration("LOCATION_STALE_THRESHOLD"),
			MaxAge:            v.GetDuration("LOCATION_MAX_AGE"),
			UpdateInterval:    v.GetDuration("LOCATION_UPDATE_INTERVAL"),
			MinAccuracyMeters: v.GetFloat64("LOCATION_MIN_ACCURACY_METERS"),
			GPSTimeout:        v.GetDuration("LOCATION_GPS_TIMEOUT"),
			FallbackLatitude:  v.GetFloat64("LOCATION_FALLBACK_LAT"),
			FallbackLongitude: v.GetFloat64("LOCATION_FALLBACK_LON"),
			FallbackCity:      v.GetString("LOCATION_FALLBACK_CITY"),
		},
	}

	if !strings.HasPrefix(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	return cfg, nil
}
