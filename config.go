package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/TaelanSakay/PlayGround/modules/api"
	"github.com/TaelanSakay/PlayGround/modules/storage"
)

// Config is the process configuration, read from the environment.
type Config struct {
	Port            string
	NATSPort        int
	NATSURL         string
	JetStreamDir    string
	StoreDriver     string
	Bucket          string
	DBPath          string
	DBDebug         bool
	DatabaseURL     string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	AllowedOrigins  string
	EventsPerSecond float64
	EventBurst      int
}

// LoadConfig reads the configuration from environment variables.
func LoadConfig() Config {
	natsPort := getEnvInt("NATS_PORT", 4222)
	return Config{
		Port:            getEnv("PORT", "3000"),
		NATSPort:        natsPort,
		NATSURL:         getEnv("NATS_URL", fmt.Sprintf("nats://localhost:%d", natsPort)),
		JetStreamDir:    getEnv("JETSTREAM_DIR", "/tmp/canvas-sync"),
		StoreDriver:     getEnv("STORE_DRIVER", storage.DriverJetStream),
		Bucket:          getEnv("NATS_BUCKET", storage.DefaultBucket),
		DBPath:          getEnv("DB_PATH", "/tmp/canvas-sync.db"),
		DBDebug:         getEnvBool("DB_DEBUG", false),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getEnvInt("REDIS_DB", 0),
		AllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", ""),
		EventsPerSecond: getEnvFloat("EVENTS_PER_SECOND", 60),
		EventBurst:      getEnvInt("EVENT_BURST", 120),
	}
}

// Storage returns the document store settings.
func (c Config) Storage() storage.Config {
	return storage.Config{
		Driver:        c.StoreDriver,
		NATSURL:       c.NATSURL,
		Bucket:        c.Bucket,
		RedisAddr:     c.RedisAddr,
		RedisPassword: c.RedisPassword,
		RedisDB:       c.RedisDB,
		DBPath:        c.DBPath,
		DBDebug:       c.DBDebug,
		DatabaseURL:   c.DatabaseURL,
	}
}

// API returns the HTTP server settings.
func (c Config) API() api.Config {
	return api.Config{
		Port:            c.Port,
		AllowedOrigins:  c.AllowedOrigins,
		EventsPerSecond: c.EventsPerSecond,
		EventBurst:      c.EventBurst,
	}
}

// getEnv returns environment variable value or default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns environment variable as int or default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		log.Printf("Warning: invalid int value for %s: %s, using default: %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
		log.Printf("Warning: invalid number for %s: %s, using default: %g", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		log.Printf("Warning: invalid bool value for %s: %s, using default: %t", key, value, defaultValue)
	}
	return defaultValue
}
