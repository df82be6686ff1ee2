package filegate

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TraceAdmit returns an AdmitFunc that wraps next in a span. The validator
// itself knows nothing about tracing.
func TraceAdmit(tracer trace.Tracer, next AdmitFunc) AdmitFunc {
	return func(ctx context.Context, u Upload) (*Decision, error) {
		ctx, span := tracer.Start(ctx, "filegate.admit",
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("filegate.upload_id", u.ID),
				attribute.String("filegate.bucket", u.Bucket),
				attribute.String("filegate.key", u.Key),
			),
		)
		defer span.End()

		d, err := next(ctx, u)
		if d != nil {
			span.SetAttributes(
				attribute.String("filegate.status", string(d.Status)),
				attribute.String("filegate.location", d.Location.String()),
			)
			if r := d.Result; r != nil {
				span.SetAttributes(
					attribute.Bool("filegate.valid", r.IsValid),
					attribute.Int("filegate.errors", len(r.Errors)),
					attribute.Int("filegate.warnings", len(r.Warnings)),
					attribute.Int64("filegate.size", r.Size),
					attribute.String("filegate.detected_type", r.DetectedContentType),
				)
				if !r.IsValid {
					span.AddEvent("quarantined", trace.WithAttributes(
						attribute.StringSlice("filegate.rejections", r.Errors),
					))
				}
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return d, err
	}
}

// Tracing adapts TraceAdmit to a Middleware
func Tracing(tracer trace.Tracer) Middleware {
	return func(next AdmitFunc) AdmitFunc {
		return TraceAdmit(tracer, next)
	}
}

// MeterAdmit returns an AdmitFunc that counts decisions by status and
// records admission latency.
func MeterAdmit(meter metric.Meter, next AdmitFunc) (AdmitFunc, error) {
	decisions, err := meter.Int64Counter("filegate.admissions.total",
		metric.WithDescription("Admission decisions by status"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}
	failures, err := meter.Int64Counter("filegate.collaborator.errors.total",
		metric.WithDescription("Admissions with collaborator failures"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("filegate.admission.duration",
		metric.WithDescription("Admission duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	return func(ctx context.Context, u Upload) (*Decision, error) {
		start := time.Now()
		d, err := next(ctx, u)

		status := "error"
		if d != nil {
			status = string(d.Status)
		}
		attrs := metric.WithAttributes(
			attribute.String("bucket", u.Bucket),
			attribute.String("status", status),
		)
		decisions.Add(ctx, 1, attrs)
		duration.Record(ctx, time.Since(start).Seconds(), attrs)
		if err != nil {
			failures.Add(ctx, 1, metric.WithAttributes(attribute.String("bucket", u.Bucket)))
		}
		return d, err
	}, nil
}

// Metrics adapts MeterAdmit to a Middleware. Instrument creation errors
// leave next unwrapped.
func Metrics(meter metric.Meter) Middleware {
	return func(next AdmitFunc) AdmitFunc {
		wrapped, err := MeterAdmit(meter, next)
		if err != nil {
			return next
		}
		return wrapped
	}
}
