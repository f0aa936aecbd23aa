package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"

	"github.com/yungbote/neurobridge-tutor/internal/platform/envutil"
	"github.com/yungbote/neurobridge-tutor/internal/platform/logger"
)

const defaultTraceService = "neurobridge-tutor"

// OtelConfig names the service on exported spans. Tracing itself is gated by
// OTEL_ENABLED; spans go to OTEL_EXPORTER_OTLP_ENDPOINT when set, stdout
// otherwise.
type OtelConfig struct {
	ServiceName string
	Environment string
	Version     string
}

// traceSettings is the env-derived half of the tracing setup.
type traceSettings struct {
	Enabled     bool
	Endpoint    string
	Insecure    bool
	Headers     map[string]string
	SampleRatio float64
}

func loadTraceSettings() traceSettings {
	return traceSettings{
		Enabled:     envutil.Bool("OTEL_ENABLED", false),
		Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false),
		Headers:     parseHeaderList(envutil.CSV("OTEL_EXPORTER_OTLP_HEADERS", nil)),
		SampleRatio: clampRatio(envutil.Float("OTEL_SAMPLER_RATIO", 0.1)),
	}
}

var (
	traceOnce     sync.Once
	traceShutdown func(context.Context) error
)

// InitOTel installs the global tracer provider once per process. It returns
// nil when tracing is disabled.
func InitOTel(ctx context.Context, log *logger.Logger, cfg OtelConfig) func(context.Context) error {
	traceOnce.Do(func() {
		s := loadTraceSettings()
		if !s.Enabled {
			return
		}
		traceShutdown = installTracer(ctx, log, cfg, s)
	})
	return traceShutdown
}

func installTracer(ctx context.Context, log *logger.Logger, cfg OtelConfig, s traceSettings) func(context.Context) error {
	service := strings.TrimSpace(cfg.ServiceName)
	if service == "" {
		service = defaultTraceService
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceNameKey.String(service),
		semconv.ServiceVersionKey.String(strings.TrimSpace(cfg.Version)),
		attribute.String("deployment.environment", strings.TrimSpace(cfg.Environment)),
	))
	if err != nil && log != nil {
		log.Warn("trace resource incomplete", "error", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(s.SampleRatio))),
	}
	exporter, err := newSpanExporter(ctx, s)
	switch {
	case err != nil:
		// Spans are still created for propagation, just never exported.
		if log != nil {
			log.Warn("trace exporter unavailable", "error", err)
		}
	default:
		opts = append(opts, sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(5*time.Second)))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if log != nil {
		sink := s.Endpoint
		if sink == "" {
			sink = "stdout"
		}
		log.Info("Tracing enabled", "service", service, "sink", sink, "sample_ratio", s.SampleRatio)
	}
	return tp.Shutdown
}

func newSpanExporter(ctx context.Context, s traceSettings) (sdktrace.SpanExporter, error) {
	if s.Endpoint == "" {
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(s.Endpoint)}
	if s.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if len(s.Headers) > 0 {
		opts = append(opts, otlptracehttp.WithHeaders(s.Headers))
	}
	return otlptracehttp.New(ctx, opts...)
}

// parseHeaderList turns "k=v" items into a header map, skipping malformed
// entries.
func parseHeaderList(items []string) map[string]string {
	var out map[string]string
	for _, item := range items {
		k, v, ok := strings.Cut(item, "=")
		k, v = strings.TrimSpace(k), strings.TrimSpace(v)
		if !ok || k == "" || v == "" {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}

func clampRatio(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
