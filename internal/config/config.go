package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDriver       string
	DBHost         string
	DBPort         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBMaxOpenConns int
	DBMaxIdleConns int
	RedisHost      string
	RedisPort      string
	SessionSecret  string
	GinMode        string
	HTTPAddr       string
	CronSecret     string
	SMSAPIURL      string
	SMSAPIKey      string
	SMSSender      string
	SMSTimeout     time.Duration
	Timezone       string
	LogLevel       string
	Environment    string
}

func Load() *Config {
	// A missing .env is fine; real environment variables always win.
	_ = godotenv.Load()

	return &Config{
		DBDriver:       getEnv("DB_DRIVER", "mysql"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "3306"),
		DBUser:         getEnv("DB_USER", "taskuser"),
		DBPassword:     getEnv("DB_PASSWORD", "taskpassword"),
		DBName:         getEnv("DB_NAME", "task_management"),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 10),
		RedisHost:      getEnv("REDIS_HOST", "localhost"),
		RedisPort:      getEnv("REDIS_PORT", "6379"),
		SessionSecret:  getEnv("SESSION_SECRET", "default-secret-key-change-me"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		CronSecret:     getEnv("CRON_SECRET", ""),
		SMSAPIURL:      getEnv("SMS_API_URL", ""),
		SMSAPIKey:      getEnv("SMS_API_KEY", ""),
		SMSSender:      getEnv("SMS_SENDER", "GOREV"),
		SMSTimeout:     getEnvDuration("SMS_TIMEOUT", 10*time.Second),
		Timezone:       getEnv("APP_TIMEZONE", "Europe/Istanbul"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		Environment:    getEnv("ENVIRONMENT", "development"),
	}
}

// Location resolves the business timezone used for day and week boundaries.
// An unknown zone falls back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}
