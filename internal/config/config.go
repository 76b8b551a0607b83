package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	AppName string

	DatabaseURL    string
	DBHost         string
	DBUser         string
	DBPassword     string
	DBName         string
	DBPort         string
	DBSSLMode      string
	DBTimeZone     string
	DBMaxIdleConns int
	DBMaxOpenConns int
	DBConnLifetime time.Duration
	DBLogLevel     string
	RequestTimeout time.Duration
	TxMaxAttempts  int

	JWTSecret string
	JWTTTL    time.Duration

	RabbitMQURL   string
	OrderExchange string

	UploadDir       string
	UploadURLPrefix string
	MaxUploadBytes  int

	LowStockThreshold          int
	DashboardLowStockThreshold int
	ReportLocation             *time.Location

	AdminEmail    string
	AdminPassword string
	CORSOrigins   string
}

// Load reads .env when present and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only
func FromEnv() (*Config, error) {
	tz := getEnv("REPORT_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("REPORT_TIMEZONE %q: %w", tz, err)
	}

	cfg := &Config{
		Port:    getEnv("PORT", "3000"),
		AppName: getEnv("APP_NAME", "Inventra API v1.0"),

		DatabaseURL:    os.Getenv("DATABASE_URL"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", "postgres"),
		DBName:         getEnv("DB_NAME", "inventra"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBSSLMode:      getEnv("DB_SSLMODE", "disable"),
		DBTimeZone:     getEnv("DB_TIMEZONE", "UTC"),
		DBMaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 100),
		DBConnLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		DBLogLevel:     getEnv("DB_LOG_LEVEL", "warn"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		TxMaxAttempts:  getEnvInt("TX_MAX_ATTEMPTS", 3),

		JWTSecret: getEnv("JWT_SECRET", "your-super-secret-key-change-in-production"),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),

		RabbitMQURL:   os.Getenv("RABBITMQ_URL"),
		OrderExchange: getEnv("ORDER_EXCHANGE", "orders_exchange"),

		UploadDir:       getEnv("UPLOAD_DIR", "./uploads"),
		UploadURLPrefix: getEnv("UPLOAD_URL_PREFIX", "/uploads"),
		MaxUploadBytes:  getEnvInt("MAX_UPLOAD_BYTES", 5*1024*1024),

		LowStockThreshold:          getEnvInt("LOW_STOCK_THRESHOLD", 5),
		DashboardLowStockThreshold: getEnvInt("DASHBOARD_LOW_STOCK_THRESHOLD", 10),
		ReportLocation:             loc,

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@example.com"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		CORSOrigins:   getEnv("CORS_ORIGINS", "*"),
	}

	if cfg.TxMaxAttempts < 1 {
		return nil, fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1, got %d", cfg.TxMaxAttempts)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("REQUEST_TIMEOUT must be positive, got %s", cfg.RequestTimeout)
	}
	return cfg, nil
}

// DSN prefers DATABASE_URL and falls back to the DB_* parts
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode, c.DBTimeZone,
	)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: %s=%q is not a number, using %d", key, raw, defaultValue)
		return defaultValue
	}
	return n
}

// getEnvDuration accepts Go durations ("15s") or bare seconds ("15")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	log.Printf("Warning: %s=%q is not a duration, using %s", key, raw, defaultValue)
	return defaultValue
}
