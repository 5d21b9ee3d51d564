package config

import (
	"errors"
	"os"
	"strconv"
	"sync"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type BotConfig struct {
	TelegramToken   string
	TelegramDebug   bool
	BaseAdminChatID int64
	DatabaseURL     string

	KoboBaseURL  string
	KoboAssetUID string
	KoboToken    string
	KoboTimeout  time.Duration

	HTTPAddr     string
	APIJWTSecret string
	CatalogPath  string

	Location           *time.Location
	AlertHour          int
	AlertCheckInterval time.Duration
}

var instance *BotConfig
var once sync.Once

// GetBotConfig loads the configuration once and exits on error.
func GetBotConfig() *BotConfig {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			logrus.Warnf("no .env file loaded: %s", err.Error())
		}

		cfg, err := Load()
		if err != nil {
			logrus.Fatalf("invalid configuration: %s", err.Error())
		}
		instance = cfg
	})

	return instance
}

// Load reads the configuration from the environment.
func Load() (*BotConfig, error) {
	cfg := &BotConfig{
		TelegramToken:      getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramDebug:      getEnvAsBool("TELEGRAM_DEBUG", false),
		BaseAdminChatID:    getEnvAsInt("BASE_ADMIN_CHAT_ID", 0),
		DatabaseURL:        getEnv("DATABASE_URL", "timesheet.db"),
		KoboBaseURL:        getEnv("KOBO_BASE_URL", ""),
		KoboAssetUID:       getEnv("KOBO_ASSET_UID", ""),
		KoboToken:          getEnv("KOBO_TOKEN", ""),
		KoboTimeout:        getEnvAsDuration("KOBO_TIMEOUT", 30*time.Second),
		HTTPAddr:           getEnv("HTTP_ADDR", ""),
		APIJWTSecret:       getEnv("API_JWT_SECRET", ""),
		CatalogPath:        getEnv("CATALOG_PATH", ""),
		AlertHour:          int(getEnvAsInt("ALERT_HOUR", 10)),
		AlertCheckInterval: getEnvAsDuration("ALERT_CHECK_INTERVAL", 15*time.Minute),
	}

	if cfg.TelegramToken == "" {
		return nil, errors.New("could not get bot token")
	}
	if cfg.KoboBaseURL == "" || cfg.KoboAssetUID == "" || cfg.KoboToken == "" {
		return nil, errors.New("KOBO_BASE_URL, KOBO_ASSET_UID and KOBO_TOKEN are required")
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("could not get db url")
	}
	if cfg.HTTPAddr != "" && cfg.APIJWTSecret == "" {
		return nil, errors.New("API_JWT_SECRET is required when HTTP_ADDR is set")
	}
	if cfg.AlertHour < 0 || cfg.AlertHour > 23 {
		return nil, errors.New("ALERT_HOUR must be between 0 and 23")
	}

	loc, err := time.LoadLocation(getEnv("TIMEZONE", "America/Argentina/Buenos_Aires"))
	if err != nil {
		return nil, err
	}
	cfg.Location = loc

	return cfg, nil
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseInt(valStr, 10, 64); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsDuration(name string, defaultVal time.Duration) time.Duration {
	valStr := getEnv(name, "")
	if val, err := time.ParseDuration(valStr); err == nil {
		return val
	}

	return defaultVal
}
