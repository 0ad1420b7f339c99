package storage

import (
	"log/slog"

	"stash/internal/config"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type remoteOptions struct {
	policy         RetryPolicy
	scheduler      Scheduler
	newTimer       func() backoff.Timer
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	onComplete     func(UploadResult)
}

type RemoteOption func(*remoteOptions)

func newRemoteOptions(opts []RemoteOption) remoteOptions {
	o := remoteOptions{
		policy:         DefaultRetryPolicy(config.DefaultRetries),
		logger:         slog.Default(),
		tracerProvider: otel.GetTracerProvider(),
		meterProvider:  otel.GetMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}
	if o.meterProvider == nil {
		o.meterProvider = otel.GetMeterProvider()
	}
	return o
}

// WithRetries keeps the default delays and sets the attempt budget.
func WithRetries(attempts int) RemoteOption {
	return func(o *remoteOptions) {
		o.policy.Attempts = attempts
	}
}

func WithRetryPolicy(policy RetryPolicy) RemoteOption {
	return func(o *remoteOptions) {
		o.policy = policy
	}
}

// WithScheduler runs uploads on s instead of a TaskGroup owned by the
// storage. The caller is then responsible for draining s.
func WithScheduler(s Scheduler) RemoteOption {
	return func(o *remoteOptions) {
		o.scheduler = s
	}
}

// WithTimer replaces the timer used for backoff sleeps. newTimer is called
// once per upload.
func WithTimer(newTimer func() backoff.Timer) RemoteOption {
	return func(o *remoteOptions) {
		o.newTimer = newTimer
	}
}

// WithLogger sets the logger for uploads; nil keeps slog.Default().
func WithLogger(logger *slog.Logger) RemoteOption {
	return func(o *remoteOptions) {
		o.logger = logger
	}
}

func WithTracerProvider(tp trace.TracerProvider) RemoteOption {
	return func(o *remoteOptions) {
		o.tracerProvider = tp
	}
}

func WithMeterProvider(mp metric.MeterProvider) RemoteOption {
	return func(o *remoteOptions) {
		o.meterProvider = mp
	}
}

// WithOnComplete registers a hook called with the result of every background
// upload, from the upload's own goroutine.
func WithOnComplete(fn func(UploadResult)) RemoteOption {
	return func(o *remoteOptions) {
		o.onComplete = fn
	}
}
