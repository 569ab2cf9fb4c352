package kafkax

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func tracedContext(t *testing.T) context.Context {
	t.Helper()
	traceID, err := trace.TraceIDFromHex("0af7651916cd43dd8448eb211c80319c")
	if err != nil {
		t.Fatalf("trace id: %v", err)
	}
	spanID, err := trace.SpanIDFromHex("b7ad6b7169203331")
	if err != nil {
		t.Fatalf("span id: %v", err)
	}
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestInjectTraceHeadersAppendsTraceparent(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	headers := InjectTraceHeaders(tracedContext(t), nil)
	if len(headers) == 0 {
		t.Fatalf("expected traceparent header, got none")
	}
	found := false
	for _, h := range headers {
		if h.Key == "traceparent" {
			found = true
		}
	}
	if !found {
		t.Fatalf("traceparent header missing: got %v", headers)
	}
}

func TestInjectTraceHeadersKeepsExisting(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	in := []kafka.Header{{Key: "event_type", Value: []byte("spa.booking.created.v1")}}
	headers := InjectTraceHeaders(tracedContext(t), in)
	if len(headers) < 2 {
		t.Fatalf("expected event_type plus trace headers, got %v", headers)
	}
	if headers[0].Key != "event_type" {
		t.Fatalf("existing header displaced: got %v", headers)
	}
}

func TestInjectTraceHeadersOverwritesStale(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	stale := []kafka.Header{{Key: "traceparent", Value: []byte("00-old-old-00")}}
	headers := InjectTraceHeaders(tracedContext(t), stale)
	count := 0
	for _, h := range headers {
		if h.Key == "traceparent" {
			count++
			if string(h.Value) == "00-old-old-00" {
				t.Fatalf("stale traceparent not replaced")
			}
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly one traceparent header, got %d", count)
	}
}
