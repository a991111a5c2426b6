package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/trace"
)

// SpanRecorder keeps every exported span in memory so tests can assert on
// the calls a request made.
type SpanRecorder struct {
	mu    sync.RWMutex
	spans []trace.ReadOnlySpan
}

func NewSpanRecorder() *SpanRecorder {
	return &SpanRecorder{}
}

func (r *SpanRecorder) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, spans...)
	return nil
}

func (r *SpanRecorder) Shutdown(ctx context.Context) error {
	return nil
}

func (r *SpanRecorder) Spans() []trace.ReadOnlySpan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]trace.ReadOnlySpan, len(r.spans))
	copy(result, r.spans)
	return result
}

func (r *SpanRecorder) SpansByName(name string) []trace.ReadOnlySpan {
	return r.filter(func(span trace.ReadOnlySpan) bool {
		return span.Name() == name
	})
}

// SpansWithAttribute returns spans carrying key with the given string value.
func (r *SpanRecorder) SpansWithAttribute(key, value string) []trace.ReadOnlySpan {
	return r.filter(func(span trace.ReadOnlySpan) bool {
		for _, attr := range span.Attributes() {
			if attr.Key == attribute.Key(key) && attr.Value.AsString() == value {
				return true
			}
		}
		return false
	})
}

func (r *SpanRecorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = nil
}

func (r *SpanRecorder) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.spans)
}

func (r *SpanRecorder) filter(match func(trace.ReadOnlySpan) bool) []trace.ReadOnlySpan {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []trace.ReadOnlySpan
	for _, span := range r.spans {
		if match(span) {
			result = append(result, span)
		}
	}
	return result
}

// InitTestTracing installs a synchronous provider feeding recorder, so spans
// are visible as soon as they end.
func InitTestTracing(serviceName, serviceVersion string, recorder *SpanRecorder) *trace.TracerProvider {
	tp := trace.NewTracerProvider(
		trace.WithSyncer(recorder),
		trace.WithResource(serviceResource(serviceName, serviceVersion)),
	)
	otel.SetTracerProvider(tp)
	return tp
}
