package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"stash/internal/objectstore"
	"stash/pkg/storage"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "stash/internal/storage"

// UploadResult describes how a background upload ended. It is only handed to
// observers; nothing feeds it back to the caller of Save.
type UploadResult struct {
	ID       string
	Key      string
	Attempts int
	Delays   []time.Duration
	Err      error
}

// Uploader runs single-key uploads against a Store with bounded retry.
type Uploader struct {
	store      objectstore.Store
	policy     RetryPolicy
	newTimer   func() backoff.Timer
	logger     *slog.Logger
	tracer     trace.Tracer
	metrics    uploadMetrics
	onComplete func(UploadResult)
}

func NewUploader(store objectstore.Store, opts ...RemoteOption) *Uploader {
	o := newRemoteOptions(opts)
	return newUploader(store, o)
}

func newUploader(store objectstore.Store, o remoteOptions) *Uploader {
	return &Uploader{
		store:      store,
		policy:     o.policy,
		newTimer:   o.newTimer,
		logger:     o.logger,
		tracer:     o.tracerProvider.Tracer(instrumentationName),
		metrics:    newUploadMetrics(o.meterProvider),
		onComplete: o.onComplete,
	}
}

// Run puts data under key, retrying failed attempts with the uploader's
// policy. It never returns an error and never panics on store failures; the
// outcome goes to the logger, the tracer, the meter and the completion hook.
func (u *Uploader) Run(ctx context.Context, key string, data []byte) UploadResult {
	result := UploadResult{ID: uuid.NewString(), Key: key}
	log := u.logger.With("upload_id", result.ID, "key", key, "size", len(data))

	ctx, span := u.tracer.Start(ctx, "stash.upload", trace.WithAttributes(
		attribute.String("stash.upload.id", result.ID),
		attribute.String("stash.key", key),
		attribute.Int("stash.size", len(data)),
		attribute.Int("stash.upload.max_attempts", u.policy.Attempts),
	))

	defer func() {
		span.SetAttributes(attribute.Int("stash.upload.attempts", result.Attempts))
		span.End()
		if u.onComplete != nil {
			u.onComplete(result)
		}
	}()

	if u.policy.Attempts <= 0 {
		log.Warn("Upload skipped, no attempts allowed")
		return result
	}

	operation := func() error {
		result.Attempts++
		u.metrics.attempts.Add(ctx, 1)

		err := u.store.PutObject(ctx, key, data)
		if err != nil {
			log.Debug("Upload attempt failed", "attempt", result.Attempts, "err", err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		result.Delays = append(result.Delays, next)
		span.AddEvent("retry", trace.WithAttributes(
			attribute.Int("stash.upload.attempt", result.Attempts),
			attribute.Int64("stash.upload.delay_ms", next.Milliseconds()),
		))
	}

	var timer backoff.Timer
	if u.newTimer != nil {
		timer = u.newTimer()
	}

	err := backoff.RetryNotifyWithTimer(operation, u.policy.backOff(ctx), notify, timer)
	if err == nil {
		u.metrics.succeeded.Add(ctx, 1)
		log.Debug("Upload stored", "attempts", result.Attempts)
		return result
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.Err = fmt.Errorf("upload of %q cancelled after %d attempts: %w", key, result.Attempts, ctxErr)
		u.metrics.cancelled.Add(ctx, 1)
	} else {
		result.Err = fmt.Errorf("%w: key %q after %d attempts: %w", storage.ErrRetryExhausted, key, result.Attempts, err)
		u.metrics.exhausted.Add(ctx, 1)
	}

	span.RecordError(result.Err)
	span.SetStatus(codes.Error, result.Err.Error())
	log.Error("Upload abandoned", "attempts", result.Attempts, "err", result.Err)
	return result
}

type uploadMetrics struct {
	attempts  metric.Int64Counter
	succeeded metric.Int64Counter
	exhausted metric.Int64Counter
	cancelled metric.Int64Counter
}

func newUploadMetrics(mp metric.MeterProvider) uploadMetrics {
	meter := mp.Meter(instrumentationName)
	return uploadMetrics{
		attempts:  int64Counter(meter, "stash.upload.attempts", "Put calls issued by background uploads."),
		succeeded: int64Counter(meter, "stash.upload.succeeded", "Background uploads that stored their blob."),
		exhausted: int64Counter(meter, "stash.upload.exhausted", "Background uploads that failed every attempt."),
		cancelled: int64Counter(meter, "stash.upload.cancelled", "Background uploads stopped by shutdown."),
	}
}

func int64Counter(meter metric.Meter, name string, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		slog.Warn("Failed to create counter", "name", name, "err", err)
		return noop.Int64Counter{}
	}
	return counter
}
