// Package graphql is a small client for the Collabify GraphQL API: it posts
// a document with variables and decodes the data member of the response.
package graphql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/collabify/cachekit/internal/errors"
	"github.com/collabify/cachekit/internal/httpclient"
	"github.com/collabify/cachekit/internal/utils"
)

const upstreamName = "graphql"

// Error is a single entry of the response's errors array.
type Error struct {
	Message string         `json:"message"`
	Path    []any          `json:"path,omitempty"`
	Extras  map[string]any `json:"extensions,omitempty"`
}

// Errors is returned when the server answered with a non-empty errors array.
type Errors []Error

func (e Errors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Message)
	}
	return "graphql: " + strings.Join(msgs, "; ")
}

type request struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors Errors          `json:"errors"`
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	retry      utils.RetryConfig
}

type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithRetryConfig sets the retry policy used for queries.
func WithRetryConfig(cfg utils.RetryConfig) Option {
	return func(cl *Client) {
		cl.retry = cfg
	}
}

func NewClient(endpoint, token string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: httpclient.NewBearerClient(token, 30*time.Second),
		retry:      utils.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Execute sends a single request and decodes data into out (if non-nil).
func (c *Client) Execute(ctx context.Context, document string, variables map[string]any, out any) error {
	body, err := json.Marshal(request{Query: document, Variables: variables})
	if err != nil {
		return apperrors.NewSerializationError("graphql variables are not JSON-representable", "GRAPHQL_ENCODE_FAILED", err)
	}

	ctx = httpclient.WithUpstream(ctx, upstreamName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return apperrors.NewInternalError("failed to build graphql request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperrors.NewUpstreamError("graphql request failed", "GRAPHQL_TRANSPORT", http.StatusBadGateway, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.NewUpstreamError("failed to read graphql response", "GRAPHQL_TRANSPORT", http.StatusBadGateway, err)
	}

	var parsed response
	if jsonErr := json.Unmarshal(raw, &parsed); jsonErr != nil {
		if resp.StatusCode >= 300 {
			return apperrors.NewUpstreamError(
				fmt.Sprintf("graphql endpoint returned %d", resp.StatusCode),
				"GRAPHQL_STATUS", resp.StatusCode, fmt.Errorf("%s", truncate(raw, 200)))
		}
		return apperrors.NewUpstreamError("graphql response is not JSON", "GRAPHQL_DECODE", http.StatusBadGateway, jsonErr)
	}
	if len(parsed.Errors) > 0 {
		return parsed.Errors
	}
	if resp.StatusCode >= 300 {
		return apperrors.NewUpstreamError(
			fmt.Sprintf("graphql endpoint returned %d", resp.StatusCode),
			"GRAPHQL_STATUS", resp.StatusCode, nil)
	}

	if out == nil || len(parsed.Data) == 0 || string(parsed.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(parsed.Data, out); err != nil {
		return apperrors.NewUpstreamError("unexpected graphql data shape", "GRAPHQL_DECODE", http.StatusBadGateway, err)
	}
	return nil
}

// Query is Execute with retries on transient failures. Use it only for
// read-only documents.
func (c *Client) Query(ctx context.Context, document string, variables map[string]any, out any) error {
	_, err := utils.WithRetry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.Execute(ctx, document, variables, out)
	}, c.retry)
	return err
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
