package otelx

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("OTEL_SAMPLING_RATIO", "0.25")
	t.Setenv("SERVICE_VERSION", "1.4.0")
	t.Setenv("DEPLOY_ENV", "staging")
	cfg, err := ConfigFromEnv("scheduling-service")
	if err != nil {
		t.Fatalf("ConfigFromEnv: %v", err)
	}
	if cfg.Enabled {
		t.Fatal("expected tracing disabled")
	}
	if cfg.SampleRatio != 0.25 || cfg.ServiceVersion != "1.4.0" || cfg.Environment != "staging" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	shutdown, err := Setup(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestConfigFromEnvRejectsBadRatio(t *testing.T) {
	t.Setenv("OTEL_SAMPLING_RATIO", "2")
	if _, err := ConfigFromEnv("scheduling-service"); err == nil {
		t.Fatal("expected error for sampling ratio above 1")
	}
}

func TestResourceCarriesServiceAttributes(t *testing.T) {
	res, err := Resource(context.Background(), Config{
		ServiceName:    "scheduling-service",
		ServiceVersion: "1.4.0",
		Environment:    "staging",
	})
	if err != nil {
		t.Fatalf("Resource: %v", err)
	}
	set := res.Set()
	for key, want := range map[string]string{
		string(semconv.ServiceNameKey):           "scheduling-service",
		string(semconv.ServiceVersionKey):        "1.4.0",
		string(semconv.DeploymentEnvironmentKey): "staging",
	} {
		v, ok := set.Value(attribute.Key(key))
		if !ok || v.AsString() != want {
			t.Fatalf("%s = %q (present=%v), want %q", key, v.AsString(), ok, want)
		}
	}
}

func TestTraceContextRoundTrip(t *testing.T) {
	if _, err := Setup(context.Background(), Config{Enabled: false}); err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	parent := "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	ctx := ContextWithTraceContext(context.Background(), parent, "")
	got, _ := TraceContextStrings(ctx)
	if got != parent {
		t.Fatalf("expected %q, got %q", parent, got)
	}
}
