package config

import (
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.BookingAPI.Timeout != 10*time.Second {
		t.Fatalf("ожидали таймаут 10s, получили %s", cfg.BookingAPI.Timeout)
	}
	if cfg.Submit.LockTTL != 30*time.Second {
		t.Fatalf("ожидали TTL блокировки 30s, получили %s", cfg.Submit.LockTTL)
	}
	if cfg.Events.QueueKey != "booking_events" {
		t.Fatalf("неожиданный ключ очереди: %s", cfg.Events.QueueKey)
	}
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("BOOKING_API_URL", "https://booking.example.com")
	t.Setenv("BOOKING_API_TIMEOUT", "3s")
	t.Setenv("BOOKING_API_USER_LOOKUP", "by-telegram-id")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cfg.BookingAPI.BaseURL != "https://booking.example.com" {
		t.Fatalf("неожиданный адрес: %s", cfg.BookingAPI.BaseURL)
	}
	if cfg.BookingAPI.Timeout != 3*time.Second {
		t.Fatalf("ожидали 3s, получили %s", cfg.BookingAPI.Timeout)
	}
	if cfg.BookingAPI.UserLookup != "by-telegram-id" || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("переменные окружения не применились: %+v", cfg)
	}
}

func TestParseInvalidDuration(t *testing.T) {
	t.Setenv("BOOKING_API_TIMEOUT", "скоро")
	if _, err := Parse(); err == nil {
		t.Fatal("ожидали ошибку для некорректной длительности")
	}
}
