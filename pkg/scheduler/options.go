package scheduler

import (
	"log/slog"
	"time"
)

type options struct {
	logger            *slog.Logger
	store             InfoStore
	metrics           *Metrics
	allocationTimeout time.Duration
	sendTimeout       time.Duration
}

func defaultOptions() options {
	return options{
		logger:            slog.Default(),
		allocationTimeout: 32 * time.Second,
		sendTimeout:       32 * time.Second,
	}
}

// Option настройка планировщика и приемника
type Option func(*options)

// WithLogger задает журнал. По умолчанию slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithStore подключает хранилище описаний
func WithStore(store InfoStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithMetrics подключает метрики Prometheus
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithAllocationTimeout ограничивает ожидание ответа сервера. 0 без ограничения.
func WithAllocationTimeout(d time.Duration) Option {
	return func(o *options) {
		o.allocationTimeout = d
	}
}

// WithSendTimeout ограничивает отправку одного приглашения. 0 без ограничения.
func WithSendTimeout(d time.Duration) Option {
	return func(o *options) {
		o.sendTimeout = d
	}
}
