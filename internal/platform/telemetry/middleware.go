package telemetry

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/quotebook/internal/platform/logging"
)

const instrumentationName = "github.com/jsamuelsen/quotebook/internal/platform/telemetry"

const (
	// HeaderTraceID is the response header carrying the request's trace ID.
	HeaderTraceID = "X-Trace-ID"

	// ContextKeyTraceID is the gin context key the trace ID is stored under.
	ContextKeyTraceID = "trace_id"

	// unmatchedRoute labels requests gin could not route, keeping 404 probes
	// from minting one series per path.
	unmatchedRoute = "unmatched"
)

// HTTPMetrics are the per-request instruments recorded by Middleware.
type HTTPMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// NewHTTPMetrics creates the instruments on meter.
func NewHTTPMetrics(meter metric.Meter) (*HTTPMetrics, error) {
	var (
		m   HTTPMetrics
		err error
	)

	if m.duration, err = meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("Duration of quote API requests."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	if m.requests, err = meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Quote API requests served."),
	); err != nil {
		return nil, err
	}

	if m.inFlight, err = meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Quote API requests in flight."),
	); err != nil {
		return nil, err
	}

	return &m, nil
}

// Tracing returns the otelgin middleware that starts a server span per request.
// It must run before Middleware.
func Tracing(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}

// Middleware uses instruments from the global meter provider.
func Middleware() gin.HandlerFunc {
	m, err := NewHTTPMetrics(otel.Meter(instrumentationName))
	if err != nil {
		otel.Handle(err)
	}

	return MiddlewareWithMetrics(m)
}

// MiddlewareWithMetrics puts the active trace ID on the response header, the
// gin context and the request logger, then records m for the request. A nil
// m records nothing.
func MiddlewareWithMetrics(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		exposeTraceID(c)

		if m == nil {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		base := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", routeOf(c)),
		}

		m.inFlight.Add(ctx, 1, metric.WithAttributes(base...))
		defer m.inFlight.Add(ctx, -1, metric.WithAttributes(base...))

		c.Next()

		done := metric.WithAttributes(append(base, attribute.Int("http.status_code", c.Writer.Status()))...)
		m.duration.Record(ctx, time.Since(start).Seconds(), done)
		m.requests.Add(ctx, 1, done)
	}
}

func exposeTraceID(c *gin.Context) {
	ctx := c.Request.Context()

	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return
	}

	id := sc.TraceID().String()
	c.Header(HeaderTraceID, id)
	c.Set(ContextKeyTraceID, id)
	c.Request = c.Request.WithContext(logging.WithTraceID(ctx, id))
}

func routeOf(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}

	return unmatchedRoute
}
