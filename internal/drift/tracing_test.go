package drift

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var (
	spanRecorder  = tracetest.NewSpanRecorder()
	installTracer sync.Once
)

// recordSpans installs a recording provider once per test binary; the
// global provider only delegates on the first install.
func recordSpans() *tracetest.SpanRecorder {
	installTracer.Do(func() {
		otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spanRecorder)))
	})
	return spanRecorder
}

func spansFor(rec *tracetest.SpanRecorder, driftID string) []sdktrace.ReadOnlySpan {
	var out []sdktrace.ReadOnlySpan
	for _, span := range rec.Ended() {
		for _, kv := range span.Attributes() {
			if kv.Key == attribute.Key("drift.id") && kv.Value.AsString() == driftID {
				out = append(out, span)
				break
			}
		}
	}
	return out
}

func (s *ServiceSuite) TestSpans_RecordLifecycle() {
	rec := recordSpans()
	student := s.createStudent()

	nudge, err := s.svc.Generate(s.ctx, student.ID)
	s.Require().NoError(err)
	_, err = s.svc.Accept(s.ctx, nudge.ID, "")
	s.Require().NoError(err)
	_, err = s.svc.Accept(s.ctx, nudge.ID, "")
	s.Require().ErrorIs(err, ErrInvalidTransition)

	spans := spansFor(rec, nudge.ID)
	s.Require().Len(spans, 3)

	s.Equal("drift.Generate", spans[0].Name())
	s.Equal("drift.Accept", spans[1].Name())
	s.Equal(codes.Unset, spans[1].Status().Code)
	s.Equal("drift.Accept", spans[2].Name())
	s.Equal(codes.Error, spans[2].Status().Code)
}
