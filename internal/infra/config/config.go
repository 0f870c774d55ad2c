package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`
	AdminToken  string `envconfig:"ADMIN_TOKEN"`

	CMS struct {
		BaseURL  string        `envconfig:"CMS_BASE_URL" default:"https://example-magazine.vn/wp-json/wp/v2"`
		Timeout  time.Duration `envconfig:"CMS_TIMEOUT" default:"8s"`
		Timezone string        `envconfig:"CMS_TIMEZONE" default:"Asia/Ho_Chi_Minh"`
	} `envconfig:""`

	Board struct {
		FeedURL  string        `envconfig:"BOARD_FEED_URL"`
		PageSize int           `envconfig:"BOARD_PAGE_SIZE" default:"20"`
		Timeout  time.Duration `envconfig:"BOARD_TIMEOUT" default:"8s"`
	} `envconfig:""`

	Translate struct {
		Endpoint string        `envconfig:"TRANSLATE_ENDPOINT" default:"https://translation.googleapis.com/language/translate/v2"`
		APIKey   string        `envconfig:"TRANSLATE_API_KEY"`
		BaseLang string        `envconfig:"TRANSLATE_BASE_LANG" default:"ko"`
		Timeout  time.Duration `envconfig:"TRANSLATE_TIMEOUT" default:"8s"`
	} `envconfig:""`

	SectionsFile string `envconfig:"SECTIONS_FILE"`

	KV struct {
		Backend    string `envconfig:"KV_BACKEND" default:"sqlite"`
		SQLitePath string `envconfig:"KV_SQLITE_PATH"`
	} `envconfig:""`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Queue struct {
		Backend   string `envconfig:"QUEUE_BACKEND" default:"rabbitmq"`
		RabbitURL string `envconfig:"RABBITMQ_URL"`
		ChatQueue string `envconfig:"CHAT_QUEUE_KEY" default:"chat_messages"`
	} `envconfig:""`

	Push struct {
		FCMEndpoint     string        `envconfig:"FCM_ENDPOINT" default:"https://fcm.googleapis.com/v1"`
		FCMProjectID    string        `envconfig:"FCM_PROJECT_ID"`
		FCMAccessToken  string        `envconfig:"FCM_ACCESS_TOKEN"`
		ExpoURL         string        `envconfig:"EXPO_PUSH_URL" default:"https://exp.host/--/api/v2/push/send"`
		ExpoAccessToken string        `envconfig:"EXPO_ACCESS_TOKEN"`
		Timeout         time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s"`
	} `envconfig:""`
}

// Parse читает .env (если есть) и окружение.
func Parse() (AppConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return AppConfig{}, fmt.Errorf("config: load .env: %w", err)
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("config: %w", err)
	}
	if cfg.KV.SQLitePath == "" {
		cfg.KV.SQLitePath = DefaultSQLitePath()
	}
	return cfg, nil
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// DefaultSQLitePath возвращает путь к локальному хранилищу в XDG cache.
func DefaultSQLitePath() string {
	return filepath.Join(xdg.CacheHome, "content-gateway", "kv.db")
}

// Location возвращает часовой пояс CMS.
func (c AppConfig) Location() (*time.Location, error) {
	name, err := normalizeTimezone(c.CMS.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: CMS_TIMEZONE %q: %w", c.CMS.Timezone, err)
	}
	return time.LoadLocation(name)
}
