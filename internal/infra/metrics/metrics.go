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
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 4, 8, 15, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	CacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Обращения к кэшу по результату",
	}, []string{"cache", "result"})

	DegradedReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "degraded_reads_total",
		Help: "Чтения, отданные в деградированном виде вместо ошибки",
	}, []string{"component", "operation"})

	PushSends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_sends_total",
		Help: "Отправки push-уведомлений по каналам",
	}, []string{"channel", "status"})

	TranslatedChars = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "translated_chars_total",
		Help: "Символы, отправленные во внешний сервис перевода",
	})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		CacheLookups,
		DegradedReads,
		PushSends,
		TranslatedChars,
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

// ObserveCacheLookup учитывает hit/miss/stale/corrupt.
func ObserveCacheLookup(cache, result string) {
	CacheLookups.WithLabelValues(cache, result).Inc()
}

// IncDegraded учитывает чтение, отданное без данных источника.
func IncDegraded(component, operation string) {
	DegradedReads.WithLabelValues(component, operation).Inc()
}

// ObservePushSend учитывает результат отправки в канал.
func ObservePushSend(channel string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	PushSends.WithLabelValues(channel, status).Inc()
}
