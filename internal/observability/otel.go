package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"resumeanalyzer/internal/config"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Metrics holds all custom metrics for the analysis service
type Metrics struct {
	// Pipeline metrics
	AnalysisDuration   metric.Float64Histogram
	AnalysisCount      metric.Int64Counter
	GenerationAttempts metric.Int64Histogram
	ValidationFailures metric.Int64Counter
	MockFallbacks      metric.Int64Counter

	// Billing metrics
	CreditsConsumed metric.Int64Counter
	PaymentRejected metric.Int64Counter

	// Infrastructure metrics
	RateLimitHits metric.Int64Counter
}

// Manager manages OpenTelemetry setup
type Manager struct {
	config           *config.Config
	tracerProvider   *trace.TracerProvider
	meterProvider    *sdkmetric.MeterProvider
	metrics          *Metrics
	shutdownFuncs    []func(context.Context) error
	prometheusServer *http.ServeMux
}

// NewManager creates a new observability manager
func NewManager(cfg *config.Config) (*Manager, error) {
	if !cfg.Observability.Enabled {
		return &Manager{config: cfg}, nil
	}

	m := &Manager{
		config:        cfg,
		shutdownFuncs: make([]func(context.Context) error, 0),
	}

	if err := m.initTracing(); err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	if err := m.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	return m, nil
}

func (m *Manager) newResource() (*resource.Resource, error) {
	return resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(m.config.Observability.ServiceName),
			semconv.ServiceVersion(m.config.Observability.ServiceVersion),
			attribute.String("service.instance.id", m.config.Observability.ServiceInstance),
		),
	)
}

// initTracing sets up OpenTelemetry tracing
func (m *Manager) initTracing() error {
	var exporter trace.SpanExporter
	var err error

	switch {
	case m.config.Observability.Console.Enabled:
		opts := []stdouttrace.Option{}
		if m.config.Observability.Console.PrettyPrint {
			opts = append(opts, stdouttrace.WithPrettyPrint())
		}
		exporter, err = stdouttrace.New(opts...)
	case m.config.Observability.OTLP.Enabled:
		exporter, err = m.createOTLPTraceExporter()
	default:
		exporter = &noOpSpanExporter{}
	}
	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := m.newResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
		trace.WithSampler(trace.TraceIDRatioBased(m.config.Observability.Tracing.SampleRate)),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	m.tracerProvider = tp
	m.shutdownFuncs = append(m.shutdownFuncs, tp.Shutdown)

	return nil
}

// initMetrics sets up OpenTelemetry metrics
func (m *Manager) initMetrics() error {
	var readers []sdkmetric.Reader

	if m.config.Observability.Console.Enabled {
		exporter, err := stdoutmetric.New()
		if err != nil {
			return fmt.Errorf("failed to create console metric exporter: %w", err)
		}
		readers = append(readers, sdkmetric.NewPeriodicReader(exporter,
			sdkmetric.WithInterval(m.config.Observability.Metrics.CollectionInterval)))
	}

	if m.config.Observability.OTLP.Enabled {
		reader, err := m.createOTLPMetricsReader()
		if err != nil {
			return fmt.Errorf("failed to create OTLP metrics reader: %w", err)
		}
		readers = append(readers, reader)
	}

	promConfig := GetPrometheusConfig(m.config)
	if promConfig.Enabled {
		prometheusReader, prometheusMux, err := SetupPrometheusExporter(promConfig)
		if err != nil {
			return fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		if prometheusReader != nil {
			readers = append(readers, prometheusReader)
			m.prometheusServer = prometheusMux
			if err := StartPrometheusServer(prometheusMux, promConfig.Port); err != nil {
				return fmt.Errorf("failed to start Prometheus server: %w", err)
			}
		}
	}

	if len(readers) == 0 {
		readers = append(readers, sdkmetric.NewManualReader())
	}

	res, err := m.newResource()
	if err != nil {
		return fmt.Errorf("failed to create resource: %w", err)
	}

	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
	for _, reader := range readers {
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	mp := sdkmetric.NewMeterProvider(opts...)
	otel.SetMeterProvider(mp)
	m.meterProvider = mp
	m.shutdownFuncs = append(m.shutdownFuncs, mp.Shutdown)

	return m.initCustomMetrics()
}

// initCustomMetrics creates the service's custom metrics
func (m *Manager) initCustomMetrics() error {
	meter := m.meterProvider.Meter(m.config.Observability.ServiceName)
	m.metrics = &Metrics{}

	var err error

	m.metrics.AnalysisDuration, err = meter.Float64Histogram(
		"resumeanalyzer_analysis_duration_seconds",
		metric.WithDescription("Time spent serving one analysis request"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis duration metric: %w", err)
	}

	m.metrics.AnalysisCount, err = meter.Int64Counter(
		"resumeanalyzer_analyses_total",
		metric.WithDescription("Total number of analysis requests"),
	)
	if err != nil {
		return fmt.Errorf("failed to create analysis count metric: %w", err)
	}

	m.metrics.GenerationAttempts, err = meter.Int64Histogram(
		"resumeanalyzer_generation_attempts",
		metric.WithDescription("Generation passes taken per successful analysis"),
	)
	if err != nil {
		return fmt.Errorf("failed to create generation attempts metric: %w", err)
	}

	m.metrics.ValidationFailures, err = meter.Int64Counter(
		"resumeanalyzer_validation_failures_total",
		metric.WithDescription("Total number of validation-exhausted analyses"),
	)
	if err != nil {
		return fmt.Errorf("failed to create validation failures metric: %w", err)
	}

	m.metrics.MockFallbacks, err = meter.Int64Counter(
		"resumeanalyzer_mock_fallbacks_total",
		metric.WithDescription("Total number of analyses served by mock content"),
	)
	if err != nil {
		return fmt.Errorf("failed to create mock fallbacks metric: %w", err)
	}

	m.metrics.CreditsConsumed, err = meter.Int64Counter(
		"resumeanalyzer_credits_consumed_total",
		metric.WithDescription("Total credits debited for completed analyses"),
	)
	if err != nil {
		return fmt.Errorf("failed to create credits consumed metric: %w", err)
	}

	m.metrics.PaymentRejected, err = meter.Int64Counter(
		"resumeanalyzer_payment_rejected_total",
		metric.WithDescription("Total requests rejected for lack of credits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create payment rejected metric: %w", err)
	}

	m.metrics.RateLimitHits, err = meter.Int64Counter(
		"resumeanalyzer_rate_limit_hits_total",
		metric.WithDescription("Total number of rate limit hits"),
	)
	if err != nil {
		return fmt.Errorf("failed to create rate limit hits metric: %w", err)
	}

	return nil
}

// GetMetrics returns the metrics instance
func (m *Manager) GetMetrics() *Metrics {
	if m.metrics == nil {
		return &Metrics{}
	}
	return m.metrics
}

// HTTPMiddleware returns HTTP middleware with OpenTelemetry instrumentation
func (m *Manager) HTTPMiddleware() func(http.Handler) http.Handler {
	if !m.config.Observability.Enabled {
		return func(h http.Handler) http.Handler { return h }
	}

	return otelhttp.NewMiddleware(
		m.config.Observability.ServiceName,
		otelhttp.WithTracerProvider(m.tracerProvider),
		otelhttp.WithMeterProvider(m.meterProvider),
	)
}

// Tracer returns a tracer for the service
func (m *Manager) Tracer(name string) oteltrace.Tracer {
	if !m.config.Observability.Enabled {
		return noop.NewTracerProvider().Tracer(name)
	}
	return otel.Tracer(name)
}

// Shutdown gracefully shuts down all observability components
func (m *Manager) Shutdown(ctx context.Context) error {
	for _, shutdown := range m.shutdownFuncs {
		if err := shutdown(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RecordAnalysis records the outcome of one analysis request
func (m *Metrics) RecordAnalysis(ctx context.Context, duration time.Duration, attempts int, success bool) {
	attrs := metric.WithAttributes(attribute.Bool("success", success))
	if m.AnalysisDuration != nil {
		m.AnalysisDuration.Record(ctx, duration.Seconds(), attrs)
	}
	if m.AnalysisCount != nil {
		m.AnalysisCount.Add(ctx, 1, attrs)
	}
	if success && m.GenerationAttempts != nil {
		m.GenerationAttempts.Record(ctx, int64(attempts))
	}
	if !success && m.ValidationFailures != nil {
		m.ValidationFailures.Add(ctx, 1)
	}
}

// RecordCreditConsumed records one debited credit
func (m *Metrics) RecordCreditConsumed(ctx context.Context) {
	if m.CreditsConsumed != nil {
		m.CreditsConsumed.Add(ctx, 1)
	}
}

// RecordPaymentRejected records one request turned away for lack of credits
func (m *Metrics) RecordPaymentRejected(ctx context.Context) {
	if m.PaymentRejected != nil {
		m.PaymentRejected.Add(ctx, 1)
	}
}

// RecordRateLimitHit records one rate-limited request
func (m *Metrics) RecordRateLimitHit(ctx context.Context, attrs ...attribute.KeyValue) {
	if m.RateLimitHits != nil {
		m.RateLimitHits.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

type noOpSpanExporter struct{}

func (n *noOpSpanExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	return nil
}

func (n *noOpSpanExporter) Shutdown(ctx context.Context) error {
	return nil
}

// createOTLPTraceExporter creates an OTLP HTTP trace exporter
func (m *Manager) createOTLPTraceExporter() (trace.SpanExporter, error) {
	otlpConfig := m.config.Observability.OTLP

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlptracehttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}
	return exporter, nil
}

// createOTLPMetricsReader creates an OTLP HTTP metrics reader
func (m *Manager) createOTLPMetricsReader() (sdkmetric.Reader, error) {
	otlpConfig := m.config.Observability.OTLP

	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpointURL(otlpConfig.Endpoint),
	}
	if otlpConfig.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if len(otlpConfig.Headers) > 0 {
		opts = append(opts, otlpmetrichttp.WithHeaders(otlpConfig.Headers))
	}

	exporter, err := otlpmetrichttp.New(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
	}

	return sdkmetric.NewPeriodicReader(exporter,
		sdkmetric.WithInterval(m.config.Observability.Metrics.CollectionInterval)), nil
}
