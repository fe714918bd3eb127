package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort       string
	DatabaseURL   string // empty: in-memory stores
	RedisAddr     string // empty: in-memory secret code pool, no HTTP rate limit
	RedisPassword string
	RedisDB       int
	JWTSecret     string // empty: anonymous connections only
	AllowedOrigin string

	LogLevel  string
	LogFormat string

	// Inbound event throttling per connection
	EventRate  float64
	EventBurst int

	APIRateLimit  int
	APIRateWindow int
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		AppPort:       getString("APP_PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),
		LogLevel:      getString("LOG_LEVEL", "info"),
		LogFormat:     getString("LOG_FORMAT", "text"),
		EventRate:     getFloat("WS_EVENT_RATE", 10),
		EventBurst:    getInt("WS_EVENT_BURST", 20),
		APIRateLimit:  getInt("API_RATE_LIMIT", 60),
		APIRateWindow: getInt("API_RATE_WINDOW_SECONDS", 60),
	}
}

func getString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
	}
	return def
}
