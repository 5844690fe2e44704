package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/medibook/medibook/internal/platform/apperr"
)

func newTracedEcho() (*echo.Echo, *tracetest.SpanRecorder) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	e := echo.New()
	e.Use(TracingWithProvider(tp))
	e.GET("/api/v1/appointments/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/api/v1/missing", func(c echo.Context) error {
		return apperr.NotFound("Appointment not found")
	})
	e.GET("/api/v1/boom", func(c echo.Context) error {
		return errors.New("boom")
	})
	return e, rec
}

func attr(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_SpanUsesRoutePattern(t *testing.T) {
	e, rec := newTracedEcho()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/appointments/abc", nil))

	spans := rec.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP GET /api/v1/appointments/:id" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if v, ok := attr(spans[0].Attributes(), "http.response.status_code"); !ok || v.AsInt64() != 200 {
		t.Errorf("expected status 200 attribute, got %v", v)
	}
}

func TestTracing_ClientErrorNotMarkedFailed(t *testing.T) {
	e, rec := newTracedEcho()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/missing", nil))

	span := rec.Ended()[0]
	if v, _ := attr(span.Attributes(), "http.response.status_code"); v.AsInt64() != 404 {
		t.Errorf("expected status 404, got %d", v.AsInt64())
	}
	if span.Status().Code == codes.Error {
		t.Error("expected 404 span not to be marked as error")
	}
}

func TestTracing_ServerErrorMarked(t *testing.T) {
	e, rec := newTracedEcho()
	e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil))

	span := rec.Ended()[0]
	if span.Status().Code != codes.Error {
		t.Errorf("expected error status, got %v", span.Status().Code)
	}
	if len(span.Events()) == 0 {
		t.Error("expected recorded error event")
	}
}

func TestTracing_ContinuesIncomingTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	defer otel.SetTextMapPropagator(prev)

	e, rec := newTracedEcho()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments/abc", nil)
	req.Header.Set("traceparent", "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01")
	e.ServeHTTP(httptest.NewRecorder(), req)

	span := rec.Ended()[0]
	if got := span.SpanContext().TraceID().String(); got != "4bf92f3577b34da6a3ce929d0e0e4736" {
		t.Errorf("expected incoming trace id, got %s", got)
	}
	if got := span.Parent().SpanID().String(); got != "00f067aa0ba902b7" {
		t.Errorf("expected remote parent span, got %s", got)
	}
}

func TestInitTracer_NoEndpoint(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), Config{ServiceName: "medibook"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown, got %v", err)
	}
}
