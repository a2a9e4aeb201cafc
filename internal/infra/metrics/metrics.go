package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30, 60},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_commands_total",
		Help: "Команды оркестратора по результату",
	}, []string{"command", "outcome"})

	CollectionReloads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "store_collection_reloads_total",
		Help: "Перезагрузки коллекций в кэше клиента",
	}, []string{"collection", "status"})

	CollectionSize = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "store_collection_size",
		Help: "Размер последнего снимка коллекции",
	}, []string{"collection"})

	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sessions_active",
		Help: "Количество активных сессий мини-приложения",
	})

	EventsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_published_total",
		Help: "Опубликованные события",
	}, []string{"publisher", "type", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		CommandsTotal,
		CollectionReloads,
		CollectionSize,
		ActiveSessions,
		EventsPublished,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	shutdownCtx, cancel := context.WithCancel(context.Background())
	go func() {
		select {
		case <-ctx.Done():
		case <-shutdownCtx.Done():
		}
		shutdownTimeout, timeoutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer timeoutCancel()
		if err := srv.Shutdown(shutdownTimeout); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
		cancel()
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveCommand считает исход команды оркестратора.
func ObserveCommand(command, outcome string) {
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}

// ObserveReload считает перезагрузку коллекции и обновляет её размер при успехе.
func ObserveReload(collection string, size int, err error) {
	if err != nil {
		CollectionReloads.WithLabelValues(collection, "error").Inc()
		return
	}
	CollectionReloads.WithLabelValues(collection, "success").Inc()
	CollectionSize.WithLabelValues(collection).Set(float64(size))
}

// ObservePublish считает публикацию события.
func ObservePublish(publisher, eventType string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(publisher, eventType, status).Inc()
}
