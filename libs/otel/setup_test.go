package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func withEnv(t *testing.T, env map[string]string) {
	t.Helper()
	prev := lookupEnv
	lookupEnv = func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	t.Cleanup(func() { lookupEnv = prev })
}

func TestConfigFromEnv(t *testing.T) {
	withEnv(t, map[string]string{
		"OTEL_ENABLED":                "false",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "collector:4317",
		"OTEL_SAMPLING_RATIO":         "0.25",
	})
	cfg := ConfigFromEnv("booking-service")
	if cfg.Enabled || cfg.OTLPEndpoint != "collector:4317" || cfg.SampleRatio != 0.25 || cfg.ServiceName != "booking-service" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	withEnv(t, map[string]string{"OTEL_SAMPLING_RATIO": "7"})
	if cfg := ConfigFromEnv("x"); !cfg.Enabled || cfg.SampleRatio != 1 {
		t.Fatalf("expected defaults for out of range ratio, got %+v", cfg)
	}
}

func TestSetupDisabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{Enabled: false})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	tp, ts := TraceContextStrings(context.Background())
	if tp != "" || ts != "" {
		t.Fatalf("expected empty trace context without a span, got %q %q", tp, ts)
	}
}

func TestConfigFromEnvStandardKeys(t *testing.T) {
	withEnv(t, map[string]string{
		"OTEL_SDK_DISABLED":           "true",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "http://collector:4317",
		"DEPLOYMENT_ENV":              "staging",
	})
	cfg := ConfigFromEnv("notification-service")
	if cfg.Enabled || cfg.OTLPEndpoint != "collector:4317" || cfg.Environment != "staging" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{9, 9, 9},
		SpanID:     trace.SpanID{1, 1, 1},
		TraceFlags: trace.FlagsSampled,
	})
	tp, _ := TraceContextStrings(trace.ContextWithSpanContext(context.Background(), sc))
	if tp == "" {
		t.Fatal("expected a traceparent")
	}
	restored := trace.SpanContextFromContext(ContextWithTraceContext(context.Background(), tp, ""))
	if restored.TraceID() != sc.TraceID() || !restored.IsRemote() {
		t.Fatalf("restored span context %+v", restored)
	}
}
