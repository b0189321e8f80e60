package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/casimir/freon/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

type AppMetrics struct {
	tokenValidationCounter metric.Int64Counter
	scopeRegistrationCount metric.Int64Counter
	repositoryOpCounter    metric.Int64Counter
	forwardCounter         metric.Int64Counter
	forwardDuration        metric.Float64Histogram
	sessionRefreshCounter  metric.Int64Counter
	rateLimitCounter       metric.Int64Counter
	controlSessionCounter  metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	meter := mp.Meter("freon")
	tokenValidation, err := meter.Int64Counter("auth.token.validations")
	if err != nil {
		return nil, err
	}
	scopeRegistration, err := meter.Int64Counter("auth.scope.registrations")
	if err != nil {
		return nil, err
	}
	repositoryOps, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	forwards, err := meter.Int64Counter("wallabag.forwards")
	if err != nil {
		return nil, err
	}
	forwardDuration, err := meter.Float64Histogram("wallabag.forward.duration", metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}
	refreshes, err := meter.Int64Counter("wallabag.session.refreshes")
	if err != nil {
		return nil, err
	}
	rateLimit, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	controlSession, err := meter.Int64Counter("control.session.validations")
	if err != nil {
		return nil, err
	}

	metricsMu.Lock()
	appMetrics = &AppMetrics{
		tokenValidationCounter: tokenValidation,
		scopeRegistrationCount: scopeRegistration,
		repositoryOpCounter:    repositoryOps,
		forwardCounter:         forwards,
		forwardDuration:        forwardDuration,
		sessionRefreshCounter:  refreshes,
		rateLimitCounter:       rateLimit,
		controlSessionCounter:  controlSession,
	}
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordTokenValidation(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.tokenValidationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordScopeRegistration(ctx context.Context, name, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.scopeRegistrationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", name),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordRepositoryOperation(ctx context.Context, entity, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("operation", operation),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordForward(ctx context.Context, method, statusClass string, exempt bool, elapsed time.Duration) {
	m := current()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status_class", statusClass),
		attribute.Bool("exempt", exempt),
	)
	m.forwardCounter.Add(ctx, 1, attrs)
	m.forwardDuration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
}

func RecordSessionRefresh(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(ctx context.Context, scope, decision, mode string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("decision", decision),
			attribute.String("mode", mode),
		),
	)
}

func RecordControlSessionValidation(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.controlSessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
