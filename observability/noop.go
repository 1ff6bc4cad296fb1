package observability

import "io"

// NoopMetrics is a Metrics implementation that discards everything.
// Useful for tests and for tools that run without a metrics endpoint.
type NoopMetrics struct{}

func (NoopMetrics) RecordSuccess(operationType string)                  {}
func (NoopMetrics) RecordError(operationType string, errorType string)  {}
func (NoopMetrics) RecordDuration(operation string, duration float64)   {}
func (NoopMetrics) RecordFileSize(fileType string, bytes int64)         {}
func (NoopMetrics) StartOperation(operation string)                     {}
func (NoopMetrics) EndOperation(operation string)                       {}

// NewDiscardLogger returns a logger that writes nowhere.
func NewDiscardLogger() Logger {
	return NewJSONLogger("test", "test", "error", io.Discard, nil)
}
