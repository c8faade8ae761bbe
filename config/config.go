package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DBDriver   string
	SQLitePath string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	RedisAddr string
	HTTPAddr  string

	RulesPath     string
	LogLevel      string
	CSVOutputPath string

	RunRateLimitPerMin int
	MaxRetries         int
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DBDriver:   strings.ToLower(getEnv("DB_DRIVER", "sqlite")),
		SQLitePath: getEnv("SQLITE_PATH", "./yacht_platform.db"),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "yacht"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "yacht123"),
		PostgresDB:       getEnv("POSTGRES_DB", "yacht_platform"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),

		RulesPath:     getEnv("RULES_PATH", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/listings.csv"),

		RunRateLimitPerMin: getEnvInt("RUN_RATE_LIMIT_PER_MIN", 6),
		MaxRetries:         getEnvInt("MAX_RETRIES", 3),
	}
}

// DSN returns the data source name for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == "postgres" {
		return "host=" + c.PostgresHost +
			" port=" + c.PostgresPort +
			" user=" + c.PostgresUser +
			" password=" + c.PostgresPassword +
			" dbname=" + c.PostgresDB +
			" sslmode=" + c.PostgresSSLMode
	}
	return c.SQLitePath
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}
