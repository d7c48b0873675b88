package blobstore

import (
	"context"
	"time"

	"github.com/gostratum/metricsx"
	"github.com/gostratum/tracingx"
)

// Instrumenter wraps storage operations with metrics and tracing. All
// methods are safe on a nil receiver and with nil metrics/tracer, so call
// sites never need to branch on whether observability is wired.
type Instrumenter struct {
	metrics metricsx.Metrics
	tracer  tracingx.Tracer
}

// NewInstrumenter creates a new instrumenter with optional metrics and tracing
func NewInstrumenter(metrics metricsx.Metrics, tracer tracingx.Tracer) *Instrumenter {
	return &Instrumenter{
		metrics: metrics,
		tracer:  tracer,
	}
}

// TraceOperation wraps an operation with tracing and metrics
func (i *Instrumenter) TraceOperation(ctx context.Context, operation, key string, fn func(ctx context.Context) error) error {
	if i == nil {
		return fn(ctx)
	}

	var span tracingx.Span
	if i.tracer != nil {
		ctx, span = i.tracer.Start(ctx, "blobstore."+operation,
			tracingx.WithSpanKind(tracingx.SpanKindClient),
			tracingx.WithAttributes(map[string]any{
				"blobstore.operation": operation,
				"blobstore.path":      key,
			}),
		)
		defer span.End()
	}

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start).Seconds()

	if i.metrics != nil {
		status := "success"
		if err != nil {
			status = "error"
		}

		i.metrics.Counter("blobstore_operations_total",
			metricsx.WithHelp("Total number of blob storage operations"),
			metricsx.WithLabels("operation", "status"),
		).Inc(operation, status)

		i.metrics.Histogram("blobstore_operation_duration_seconds",
			metricsx.WithHelp("Blob storage operation duration in seconds"),
			metricsx.WithLabels("operation"),
			metricsx.WithBuckets(.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10),
		).Observe(duration, operation)
	}

	if span != nil && err != nil {
		span.SetError(err)
	}

	return err
}

// RecordUpload increments the uploaded-blobs counter. It is called once per
// blob per successful PUT, from concurrently running uploads; the
// underlying counter must not lose updates.
func (i *Instrumenter) RecordUpload() {
	if i == nil || i.metrics == nil {
		return
	}
	i.metrics.Counter("blobstore_uploaded_blobs_total",
		metricsx.WithHelp("Total number of blobs successfully uploaded"),
	).Inc()
}

// RecordUploadFailure counts one failed upload attempt (before retry).
func (i *Instrumenter) RecordUploadFailure() {
	if i == nil || i.metrics == nil {
		return
	}
	i.metrics.Counter("blobstore_upload_failures_total",
		metricsx.WithHelp("Total number of failed blob upload attempts"),
	).Inc()
}

// RecordRetryRounds records how many attempt rounds a batch needed.
func (i *Instrumenter) RecordRetryRounds(rounds int) {
	if i == nil || i.metrics == nil {
		return
	}
	i.metrics.Histogram("blobstore_upload_retry_rounds",
		metricsx.WithHelp("Attempt rounds needed to store a batch"),
		metricsx.WithBuckets(1, 2, 3, 4, 5),
	).Observe(float64(rounds))
}

// RecordReadBytes records the payload size of a completed read.
func (i *Instrumenter) RecordReadBytes(n int64) {
	if i == nil || i.metrics == nil {
		return
	}
	i.metrics.Histogram("blobstore_read_bytes",
		metricsx.WithHelp("Blob read payload size in bytes"),
		metricsx.WithBuckets(1024, 10240, 102400, 1024000, 10240000, 104857600),
	).Observe(float64(n))
}
