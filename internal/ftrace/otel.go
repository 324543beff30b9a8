package ftrace

import (
	"fmt"

	otelattr "go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	otpnoop "go.opentelemetry.io/otel/trace/noop"
)

// InstrumentationName is the name given to tracers
// obtained from a caller-supplied provider.
const InstrumentationName = "github.com/gordian-engine/ferry"

type TracerProvider = oteltrace.TracerProvider

type Tracer = oteltrace.Tracer

type KeyValueAttr = otelattr.KeyValue

// NopTracerProvider returns the otel no-op tracer provider.
// This is intended to use as a fallback when a nil tracer provider is given.
func NopTracerProvider() TracerProvider {
	return otpnoop.NewTracerProvider()
}

// TracerFrom returns the ferry tracer from tp,
// or a no-op tracer if tp is nil.
func TracerFrom(tp TracerProvider) Tracer {
	if tp == nil {
		tp = NopTracerProvider()
	}
	return tp.Tracer(InstrumentationName)
}

// WithAttributes is an alias to [oteltrace.WithAttributes]
// to allow consumers to only reference the ftrace package.
func WithAttributes(attrs ...KeyValueAttr) oteltrace.SpanStartEventOption {
	return oteltrace.WithAttributes(attrs...)
}

// SpanError sets the given span to error status,
// with detail from err.Error().
func SpanError(span oteltrace.Span, err error) {
	span.SetStatus(otelcodes.Error, err.Error())
}

// ErrorAttr returns an attribute with the key "err"
// and the lazily evaluated value of err's Error() method.
func ErrorAttr(err error) KeyValueAttr {
	return otelattr.Stringer("err", errStringer{err: err})
}

type errStringer struct {
	err error
}

func (e errStringer) String() string {
	return e.err.Error()
}

// FrameLenAttr records the byte length of the frame being handled.
func FrameLenAttr(n int) KeyValueAttr {
	return otelattr.Int("ferry.frame.len", n)
}

// RetryAttr records how many retries preceded the current attempt.
func RetryAttr(n int) KeyValueAttr {
	return otelattr.Int("ferry.frame.retry", n)
}

// OutcomeAttr records the classified result of a channel send.
func OutcomeAttr(o fmt.Stringer) KeyValueAttr {
	return otelattr.Stringer("ferry.send.outcome", o)
}
