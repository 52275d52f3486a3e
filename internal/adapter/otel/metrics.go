package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "settingsd"

// Metrics holds the settingsd metric instruments.
type Metrics struct {
	DndEnabled      metric.Int64Counter
	DndExtended     metric.Int64Counter
	DndExpired      metric.Int64Counter
	ExpiryFailures  metric.Int64Counter
	UpdateConflicts metric.Int64Counter
	PassDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return NewMetricsFrom(otel.GetMeterProvider())
}

// NewMetricsFrom creates the instruments on the given provider.
func NewMetricsFrom(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)
	m := &Metrics{}
	var err error

	m.DndEnabled, err = meter.Int64Counter("settingsd.dnd.enabled",
		metric.WithDescription("Number of DnD activations"))
	if err != nil {
		return nil, err
	}

	m.DndExtended, err = meter.Int64Counter("settingsd.dnd.extended",
		metric.WithDescription("Number of DnD extensions"))
	if err != nil {
		return nil, err
	}

	m.DndExpired, err = meter.Int64Counter("settingsd.dnd.expired",
		metric.WithDescription("Number of DnD windows expired automatically"))
	if err != nil {
		return nil, err
	}

	m.ExpiryFailures, err = meter.Int64Counter("settingsd.dnd.expiry_failures",
		metric.WithDescription("Number of records an expiry pass failed to expire"))
	if err != nil {
		return nil, err
	}

	m.UpdateConflicts, err = meter.Int64Counter("settingsd.update.conflicts",
		metric.WithDescription("Number of optimistic-lock conflicts seen on write"))
	if err != nil {
		return nil, err
	}

	m.PassDuration, err = meter.Float64Histogram("settingsd.expiry.pass_duration_seconds",
		metric.WithDescription("Expiry pass duration in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
