package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultTransport is the base transport used by the instrumented client.
var DefaultTransport = http.DefaultTransport

type contextKey string

const upstreamKey contextKey = "httpclient.upstream"

// WithUpstream names the remote service a request goes to, for span names
// and attributes.
func WithUpstream(ctx context.Context, upstream string) context.Context {
	return context.WithValue(ctx, upstreamKey, upstream)
}

// Upstream returns the name set by WithUpstream.
func Upstream(ctx context.Context) string {
	u, _ := ctx.Value(upstreamKey).(string)
	return u
}

// upstreamTransport tags the current span with the upstream name and marks
// transport errors and 4xx/5xx responses as span errors.
type upstreamTransport struct {
	base http.RoundTripper
}

func (t *upstreamTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	span := trace.SpanFromContext(req.Context())
	if u := Upstream(req.Context()); u != "" {
		span.SetAttributes(attribute.String("upstream", u))
	}
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP status %d", resp.StatusCode))
	}
	return resp, nil
}

// bearerTransport sets the Authorization header on every request.
type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.token == "" {
		return t.base.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(r)
}

func newOtelTransport(base http.RoundTripper) http.RoundTripper {
	return otelhttp.NewTransport(&upstreamTransport{base: base},
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			if u := Upstream(r.Context()); u != "" {
				return fmt.Sprintf("%s: %s %s", u, r.Method, r.URL.Path)
			}
			return fmt.Sprintf("%s %s", r.Method, r.URL.Path)
		}),
	)
}

// NewInstrumentedClient returns an http.Client with OpenTelemetry instrumentation and custom timeout.
func NewInstrumentedClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newOtelTransport(DefaultTransport),
		Timeout:   timeout,
	}
}

// NewBearerClient is NewInstrumentedClient that authenticates with token.
func NewBearerClient(token string, timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: newOtelTransport(&bearerTransport{base: DefaultTransport, token: token}),
		Timeout:   timeout,
	}
}
