package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one outbound call and logs its outcome.
type Span struct {
	logger *slog.Logger
	start  time.Time
	err    error
}

// StartSpan derives a child span from ctx. The trace id is the request id when
// one is present so provider calls line up with the request log.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	parentSpanID := stringFrom(ctx, spanIDKey{})
	spanID := uuid.NewString()

	logger = logger.With(
		slog.String("span_id", spanID),
		slog.String("span_name", name),
	)
	if parentSpanID != "" {
		logger = logger.With(slog.String("parent_span_id", parentSpanID))
	}

	ctx = WithLogger(ctx, logger)
	ctx = withString(ctx, spanIDKey{}, spanID)

	return ctx, &Span{logger: logger, start: time.Now()}
}

// RecordError marks the span as failed.
func (s *Span) RecordError(err error) {
	if s == nil || err == nil {
		return
	}
	s.err = err
}

// End emits the completion entry: debug on success, warn on failure.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.err != nil {
		s.logger.Warn("span failed", elapsed, slog.String("error", s.err.Error()))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
