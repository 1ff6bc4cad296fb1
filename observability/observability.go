// Package observability provides structured logging and metrics collection
// for the policy audit backend. Loggers emit JSON lines suitable for log
// aggregation; metrics are Prometheus-compatible and exposed by the HTTP
// server on /metrics.
package observability

import (
	"context"
	"io"
	"sync"
)

// Fields represents structured logging fields as key-value pairs.
// Values can be any type that is JSON-serializable.
type Fields map[string]interface{}

// Logger defines the contract for structured logging.
// All methods are context-aware to support request correlation.
type Logger interface {
	// Info logs an informational message.
	Info(ctx context.Context, msg string, fields Fields)

	// Error logs an error message with the associated error.
	Error(ctx context.Context, msg string, err error, fields Fields)

	// Warn logs a warning message.
	Warn(ctx context.Context, msg string, fields Fields)

	// Debug logs a debug message. Typically filtered out in production.
	Debug(ctx context.Context, msg string, fields Fields)

	// WithFields returns a new Logger that includes the given fields
	// in every subsequent log entry.
	WithFields(fields Fields) Logger
}

// Metrics defines the contract for metrics collection.
type Metrics interface {
	// RecordSuccess increments the success counter for an operation type.
	RecordSuccess(operationType string)

	// RecordError increments the error counter for an operation and error type.
	RecordError(operationType string, errorType string)

	// RecordDuration records the duration of an operation in seconds.
	RecordDuration(operation string, duration float64)

	// RecordFileSize records the size of a processed file in bytes.
	RecordFileSize(fileType string, bytes int64)

	// StartOperation increments the in-progress gauge for an operation.
	// Must be paired with EndOperation.
	StartOperation(operation string)

	// EndOperation decrements the in-progress gauge for an operation.
	EndOperation(operation string)
}

// Config holds observability configuration for the provider.
type Config struct {
	ServiceName string
	Environment string
	LogLevel    string

	// LogOutput defaults to os.Stdout when nil.
	LogOutput io.Writer

	// AdditionalFields are included in every log entry.
	AdditionalFields Fields
}

// Provider manages Logger and Metrics instances per component.
// Repeated calls with the same component name return the same instances.
type Provider struct {
	cfg     Config
	mu      sync.Mutex
	loggers map[string]Logger
	metrics Metrics
}

// NewProvider creates a provider from the given configuration.
func NewProvider(cfg Config) *Provider {
	return &Provider{
		cfg:     cfg,
		loggers: make(map[string]Logger),
		metrics: NewPrometheusMetrics(sanitizeMetricName(cfg.ServiceName)),
	}
}

// Logger returns a Logger scoped to the given component.
func (p *Provider) Logger(component string) Logger {
	p.mu.Lock()
	defer p.mu.Unlock()

	if l, ok := p.loggers[component]; ok {
		return l
	}

	base := NewJSONLogger(p.cfg.ServiceName, p.cfg.Environment, p.cfg.LogLevel, p.cfg.LogOutput, p.cfg.AdditionalFields)
	l := base.WithFields(Fields{"component": component})
	p.loggers[component] = l
	return l
}

// Metrics returns the shared Metrics instance.
// Prometheus collectors are process-global, so components share one
// registry-backed instance and distinguish themselves by operation name.
func (p *Provider) Metrics(component string) Metrics {
	return p.metrics
}
