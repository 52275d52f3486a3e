package otel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Strob0t/settingsd/internal/config"
)

func TestSetupWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.OTEL{}, "settingsd")
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestNewMetricsRecords(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetricsFrom(mp)
	if err != nil {
		t.Fatalf("NewMetricsFrom: %v", err)
	}
	ctx := context.Background()
	m.DndExpired.Add(ctx, 3)
	m.PassDuration.Record(ctx, 0.25)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	names := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			names[md.Name] = true
		}
	}
	for _, want := range []string{"settingsd.dnd.expired", "settingsd.expiry.pass_duration_seconds"} {
		if !names[want] {
			t.Errorf("expected metric %s, got %v", want, names)
		}
	}
}

func TestNewMetricsNoopProvider(t *testing.T) {
	if _, err := NewMetricsFrom(noop.NewMeterProvider()); err != nil {
		t.Fatalf("NewMetricsFrom: %v", err)
	}
}

func TestEndSpanRecordsError(t *testing.T) {
	_, span := StartBusinessSpan(context.Background(), "extend_dnd", "biz-1", "rep-1")
	EndSpan(span, errors.New("boom"))
	if span.IsRecording() {
		t.Fatal("span must be ended")
	}
}

func TestHTTPMiddlewarePassesThrough(t *testing.T) {
	h := HTTPMiddleware("settingsd")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
