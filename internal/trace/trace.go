// Package trace wires optional Datadog tracing around provisioning.
// Tracing is off unless PYRITE_TRACE=1.
package trace

import (
	"context"
	"os"

	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

var parent *SpanContext

// MaybeTrace starts the tracer when PYRITE_TRACE=1 and returns whether
// it did. A parent span handed over through DD_TRACE_ID/DD_SPAN_ID is
// consumed so that it does not leak into helper processes.
func MaybeTrace(serviceVersion, logDir string) bool {
	if os.Getenv("PYRITE_TRACE") != "1" {
		return false
	}

	parent, _ = ParseParent(os.Getenv("DD_TRACE_ID"), os.Getenv("DD_SPAN_ID"))
	os.Unsetenv("DD_TRACE_ID")
	os.Unsetenv("DD_SPAN_ID")

	opts := []tracer.StartOption{
		tracer.WithService("pyrite"),
		tracer.WithServiceVersion(serviceVersion),
	}
	if logger, err := NewDatadogLogger(logDir); err == nil {
		opts = append(opts, tracer.WithLogger(logger))
	}
	tracer.Start(opts...)
	return true
}

// Stop flushes and stops the tracer.
func Stop() {
	tracer.Stop()
}

// StartRootSpan opens the span that covers one CLI command, attached
// to the inherited parent span when there is one.
func StartRootSpan(ctx context.Context, name string) (ddtrace.Span, context.Context) {
	if parent == nil {
		return tracer.StartSpanFromContext(ctx, name)
	}
	return tracer.StartSpanFromContext(ctx, name, tracer.ChildOf(parent))
}
