// Package tracing wires OpenTelemetry spans around sync passes, live events
// and outbound sends.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation scope of every span in the daemon.
const TracerName = "github.com/matheus3301/lnchat"

// Config selects where spans go. With Stdout false and a FilePath, spans
// are appended to that file as JSON.
type Config struct {
	Enabled        bool
	Stdout         bool
	FilePath       string
	ServiceVersion string
}

// Manager owns the tracer provider lifecycle.
type Manager struct {
	cfg      Config
	logger   *zap.Logger
	provider *sdktrace.TracerProvider
	out      io.Closer
}

// NewManager creates a manager. Nothing is exported until Initialize runs.
func NewManager(cfg Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, logger: logger}
}

// Initialize installs the global tracer provider when tracing is enabled.
func (m *Manager) Initialize(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.logger.Debug("tracing disabled")
		return nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String("lnchatd"),
			semconv.ServiceVersionKey.String(m.cfg.ServiceVersion),
		),
	)
	if err != nil {
		return fmt.Errorf("tracing resource: %w", err)
	}

	var w io.Writer = os.Stdout
	if !m.cfg.Stdout && m.cfg.FilePath != "" {
		f, err := os.OpenFile(m.cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		m.out = f
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return fmt.Errorf("stdout exporter: %w", err)
	}

	m.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(m.provider)
	m.logger.Info("tracing initialized", zap.Bool("stdout", m.cfg.Stdout), zap.String("file", m.cfg.FilePath))
	return nil
}

// Shutdown flushes pending spans.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.provider == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := m.provider.Shutdown(ctx)
	if m.out != nil {
		_ = m.out.Close()
	}
	if err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}

// StartSpan starts a span on the daemon tracer.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, oteltrace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name, oteltrace.WithAttributes(attrs...))
}

// End closes span, marking it failed when err is non-nil.
func End(span oteltrace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
