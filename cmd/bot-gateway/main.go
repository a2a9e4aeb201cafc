package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"

	"tg-booking-app/internal/adapters/bookingapi"
	"tg-booking-app/internal/adapters/bot"
	"tg-booking-app/internal/adapters/telegram"
	"tg-booking-app/internal/infra/config"
	httpinfra "tg-booking-app/internal/infra/http"
	"tg-booking-app/internal/infra/log"
	"tg-booking-app/internal/infra/metrics"
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
		logger.Fatal().Err(err).Msg("некорректный адрес сервиса бронирования")
	}

	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		logger.Fatal().Err(err).Msg("не удалось создать бота")
	}

	sessions := session.NewRegistry(client,
		session.WithTTL(cfg.Sessions.TTL),
		session.WithLogger(log.Component(logger, "session")),
	)
	go sessions.Run(ctx, cfg.Sessions.SweepInterval)

	h := bot.NewHandler(telegram.NewSender(botAPI, "telegram_bot"), sessions, cfg.Telegram.WebAppURL, log.Component(logger, "bot"))

	srv := httpinfra.NewServer(log.Component(logger, "http"))
	srv.Router.Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		var update tgbotapi.Update
		if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.HandleUpdate(r.Context(), update)
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		logger.Info().Msg("бот-гейтвей запущен")
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("HTTP сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("остановка бота")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
