package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR" default:":9090"`

	BookingAPI struct {
		BaseURL    string        `envconfig:"BOOKING_API_URL" default:"http://127.0.0.1:8000"`
		Timeout    time.Duration `envconfig:"BOOKING_API_TIMEOUT" default:"10s"`
		UserLookup string        `envconfig:"BOOKING_API_USER_LOOKUP" default:"id"`
	} `envconfig:""`

	Telegram struct {
		Token          string        `envconfig:"TG_BOT_TOKEN"`
		WebAppURL      string        `envconfig:"TG_WEBAPP_URL"`
		InitDataMaxAge time.Duration `envconfig:"TG_INIT_DATA_MAX_AGE" default:"24h"`
	} `envconfig:""`

	Sessions struct {
		TTL           time.Duration `envconfig:"SESSION_TTL" default:"30m"`
		SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1m"`
	} `envconfig:""`

	Submit struct {
		LockTTL time.Duration `envconfig:"SUBMIT_LOCK_TTL" default:"30s"`
	} `envconfig:""`

	RedisAddr string `envconfig:"REDIS_ADDR"`
	AMQPURL   string `envconfig:"AMQP_URL"`

	Events struct {
		QueueKey string `envconfig:"EVENTS_QUEUE_KEY" default:"booking_events"`
		Exchange string `envconfig:"EVENTS_EXCHANGE" default:"booking.events"`
	} `envconfig:""`
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}

// Parse читает конфиг из окружения и возвращает ошибку вместо завершения процесса.
func Parse() (AppConfig, error) {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
