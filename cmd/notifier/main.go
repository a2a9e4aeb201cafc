package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-booking-app/internal/adapters/bookingapi"
	"tg-booking-app/internal/adapters/bot"
	"tg-booking-app/internal/adapters/telegram"
	"tg-booking-app/internal/infra/config"
	"tg-booking-app/internal/infra/log"
	"tg-booking-app/internal/infra/metrics"
	"tg-booking-app/internal/infra/queue"
	"tg-booking-app/internal/usecase/store"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)
	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RedisAddr == "" {
		logger.Fatal().Msg("notifier: не указан адрес Redis (REDIS_ADDR)")
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()
	events := queue.NewRedisEventQueue(rdb, cfg.Events.QueueKey)

	client, err := bookingapi.New(cfg.BookingAPI.BaseURL,
		bookingapi.WithTimeout(cfg.BookingAPI.Timeout),
		bookingapi.WithLogger(log.Component(logger, "booking_api")),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: некорректный адрес сервиса бронирования")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("notifier: не удалось создать бота")
	}
	notifier := bot.NewNotifier(
		telegram.NewSender(botAPI, "notifier"),
		store.New(client, log.Component(logger, "catalog")),
		log.Component(logger, "notifier"),
	)

	metrics.StartServer(ctx, log.Component(logger, "metrics"), cfg.MetricsAddr)
	logger.Info().Msg("notifier: запуск обработки очереди")
	run(ctx, logger, events, notifier)
	logger.Info().Msg("notifier: остановлен")
}

func run(ctx context.Context, logger zerolog.Logger, events *queue.RedisEventQueue, notifier *bot.Notifier) {
	for {
		event, err := events.Pop(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error().Err(err).Msg("notifier: ошибка чтения очереди")
			time.Sleep(time.Second)
			continue
		}
		eventLog := logger.With().Str("event_id", event.ID).Str("type", string(event.Type)).Logger()
		if err := notifier.Notify(ctx, event); err != nil {
			eventLog.Error().Err(err).Msg("notifier: уведомление не отправлено")
			continue
		}
		eventLog.Debug().Msg("notifier: уведомление отправлено")
	}
}
