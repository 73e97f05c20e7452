package sipfocus

import (
	"log/slog"
	"time"
)

type options struct {
	logger         *slog.Logger
	inboundTimeout time.Duration
	onAccepted     AcceptedFunc
}

func defaultOptions() options {
	return options{
		logger:         slog.Default(),
		inboundTimeout: 5 * time.Second,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option настройка компонентов пакета
type Option func(*options)

// WithLogger задает журнал. По умолчанию slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithInboundTimeout ограничивает обработку одного входящего MESSAGE
func WithInboundTimeout(d time.Duration) Option {
	return func(o *options) {
		o.inboundTimeout = d
	}
}

// WithOnAccepted вызывается для каждого принятого входящего описания
func WithOnAccepted(fn AcceptedFunc) Option {
	return func(o *options) {
		o.onAccepted = fn
	}
}
