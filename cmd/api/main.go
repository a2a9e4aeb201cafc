package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"tg-booking-app/internal/adapters/bookingapi"
	"tg-booking-app/internal/adapters/webapp"
	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/infra/cache"
	"tg-booking-app/internal/infra/config"
	httpinfra "tg-booking-app/internal/infra/http"
	"tg-booking-app/internal/infra/log"
	"tg-booking-app/internal/infra/metrics"
	"tg-booking-app/internal/infra/queue"
	"tg-booking-app/internal/usecase/session"
)

func main() {
	cfg := config.Load()
	logger := log.NewLogger(cfg.AppEnv)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := bookingapi.New(cfg.BookingAPI.BaseURL,
		bookingapi.WithTimeout(cfg.BookingAPI.Timeout),
		bookingapi.WithUserLookup(bookingapi.UserLookup(cfg.BookingAPI.UserLookup)),
		bookingapi.WithLogger(log.Component(logger, "booking_api")),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: некорректный адрес сервиса бронирования")
	}

	var guard domain.SubmissionGuard = cache.NewMemoryGuard()
	publisher := queue.NewMultiPublisher().Add("log", queue.NewLogPublisher(log.Component(logger, "events")))
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Fatal().Err(err).Msg("api: Redis недоступен")
		}
		cancel()
		guard = cache.NewRedisGuard(rdb, log.Component(logger, "submit_guard"))
		publisher.Add("redis", queue.NewRedisEventQueue(rdb, cfg.Events.QueueKey))
	}
	if cfg.AMQPURL != "" {
		rabbit, err := queue.NewRabbitEventPublisher(cfg.AMQPURL, cfg.Events.Exchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("api: не удалось подключиться к RabbitMQ")
		}
		defer rabbit.Close()
		publisher.Add("rabbitmq", rabbit)
	}
	if cfg.Telegram.Token == "" {
		logger.Warn().Msg("api: TG_BOT_TOKEN не задан, подпись init_data не проверяется")
	}

	sessions := session.NewRegistry(client,
		session.WithGuard(guard),
		session.WithPublisher(publisher),
		session.WithTTL(cfg.Sessions.TTL),
		session.WithLockTTL(cfg.Submit.LockTTL),
		session.WithLogger(log.Component(logger, "session")),
	)
	go sessions.Run(ctx, cfg.Sessions.SweepInterval)

	srv := httpinfra.NewServer(log.Component(logger, "http"))
	webapp.NewHandler(sessions, log.Component(logger, "webapp")).
		Mount(srv.Router, httpinfra.WebAppAuthMiddleware(cfg.Telegram.Token, cfg.Telegram.InitDataMaxAge))

	metrics.StartServer(ctx, log.Component(logger, "metrics"), cfg.MetricsAddr)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("api: сервер остановлен")
			stop()
		}
	}()
	<-ctx.Done()
	shutdown(logger, srv)
}

func shutdown(logger zerolog.Logger, srv *httpinfra.Server) {
	logger.Info().Msg("api: остановка")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("api: остановка не завершена")
	}
}
