package server

import (
	"context"
	"testing"
	"time"

	"github.com/teemow/inboxtasks/internal/instrumentation"
)

func TestNewMetricsServer_RequiresProvider(t *testing.T) {
	_, err := NewMetricsServer(MetricsServerConfig{})
	if err == nil {
		t.Fatal("expected error for missing instrumentation provider")
	}
}

func TestNewMetricsServer_RequiresEnabledProvider(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName: "test",
		Enabled:     false,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	_, err = NewMetricsServer(MetricsServerConfig{InstrumentationProvider: provider})
	if err == nil {
		t.Fatal("expected error for disabled instrumentation provider")
	}
}

func TestNewMetricsServer_DefaultAddr(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provider, err := instrumentation.NewProvider(ctx, instrumentation.Config{
		ServiceName:     "test",
		Enabled:         true,
		MetricsExporter: instrumentation.ExporterPrometheus,
		TracingExporter: instrumentation.ExporterNone,
	})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}
	defer func() { _ = provider.Shutdown(ctx) }()

	srv, err := NewMetricsServer(MetricsServerConfig{InstrumentationProvider: provider})
	if err != nil {
		t.Fatalf("failed to create metrics server: %v", err)
	}

	if srv.Addr() != DefaultMetricsAddr {
		t.Errorf("expected default addr %q, got %q", DefaultMetricsAddr, srv.Addr())
	}
}
