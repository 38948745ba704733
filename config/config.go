package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds everything the service reads from the environment.
type Config struct {
	Port               string
	GinMode            string
	DBDriver           string
	DBDSN              string
	JWTSecret          string
	RedisAddr          string
	RedisPassword      string
	UploadDir          string
	PublicBaseURL      string
	ChangePollInterval time.Duration
	DefaultRestaurant  string
	CORSOrigin         string
	LogLevel           string
}

// Load reads .env (if present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:               getEnv("PORT", "8080"),
		GinMode:            getEnv("GIN_MODE", "debug"),
		DBDriver:           getEnv("DB_DRIVER", "sqlite"),
		DBDSN:              getEnv("DB_DSN", "restaurant.db"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		UploadDir:          getEnv("UPLOAD_DIR", "public/uploads"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		ChangePollInterval: 500 * time.Millisecond,
		DefaultRestaurant:  getEnv("DEFAULT_RESTAURANT_NAME", "Meu Restaurante"),
		CORSOrigin:         getEnv("CORS_ORIGIN", "http://127.0.0.1:5500"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}

	if v := os.Getenv("CHANGE_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid CHANGE_POLL_INTERVAL %q: %w", v, err)
		}
		cfg.ChangePollInterval = d
	}

	if cfg.JWTSecret == "" {
		if cfg.GinMode == "release" {
			return cfg, fmt.Errorf("JWT_SECRET is not set")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}

	switch cfg.DBDriver {
	case "mysql", "sqlite":
	default:
		return cfg, fmt.Errorf("unsupported DB_DRIVER: %s", cfg.DBDriver)
	}

	return cfg, nil
}

// InitDB opens the configured database. Duplicate-key errors are translated to
// gorm.ErrDuplicatedKey so callers can match them with errors.Is.
func InitDB(cfg Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "mysql":
		dialector = mysql.Open(cfg.DBDSN)
	default:
		dialector = sqlite.Open(cfg.DBDSN)
	}

	level := logger.Warn
	if cfg.GinMode == "release" {
		level = logger.Error
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBDriver, err)
	}
	return db, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
