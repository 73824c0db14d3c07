package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	DocumentLoadsTotal  metric.Int64Counter
	DocumentHealsTotal  metric.Int64Counter
	RunsRecordedTotal   metric.Int64Counter
	RewardTriggersTotal metric.Int64Counter
	InviteActivations   metric.Int64Counter
	LockTimeoutsTotal   metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("runworld")
		var err error
		m := &AppMetrics{}

		m.HTTPRequestsTotal, err = meter.Int64Counter(
			"http_requests_total",
			metric.WithDescription("Total number of HTTP requests completed"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_requests_total: %v", err)
		}

		m.HTTPRequestDuration, err = meter.Float64Histogram(
			"http_request_duration_seconds",
			metric.WithDescription("Duration of HTTP requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create http_request_duration_seconds: %v", err)
		}

		m.DocumentLoadsTotal, err = meter.Int64Counter(
			"document_loads_total",
			metric.WithDescription("Total number of user documents loaded from the store"),
			metric.WithUnit("{document}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create document_loads_total: %v", err)
		}

		m.DocumentHealsTotal, err = meter.Int64Counter(
			"document_heals_total",
			metric.WithDescription("Total number of schema heal passes applied on load"),
			metric.WithUnit("{document}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create document_heals_total: %v", err)
		}

		m.RunsRecordedTotal, err = meter.Int64Counter(
			"runs_recorded_total",
			metric.WithDescription("Total number of run submissions recorded in the ledger"),
			metric.WithUnit("{run}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create runs_recorded_total: %v", err)
		}

		m.RewardTriggersTotal, err = meter.Int64Counter(
			"reward_triggers_total",
			metric.WithDescription("Total number of pro completions that opened a reward"),
			metric.WithUnit("{reward}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create reward_triggers_total: %v", err)
		}

		m.InviteActivations, err = meter.Int64Counter(
			"invite_activations_total",
			metric.WithDescription("Total number of successful invite activations"),
			metric.WithUnit("{activation}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create invite_activations_total: %v", err)
		}

		m.LockTimeoutsTotal, err = meter.Int64Counter(
			"lock_timeouts_total",
			metric.WithDescription("Total number of invite-registry lock acquisition timeouts"),
			metric.WithUnit("{timeout}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create lock_timeouts_total: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		// This indicates a programming error - InitAppMetrics must be called at startup.
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
