package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/backend"

var tracer = otel.Tracer(instrumentationName)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrInvalidResponse = errors.New("invalid response from backend")
)

// Config holds the connection settings shared by every client
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// APIError is a non-2xx answer from the backend
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
}

// ServerMessage returns the message meant for the user
func (e *APIError) ServerMessage() string {
	return e.Message
}

// Is makes a 404 match ErrNotFound
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}

type envelope struct {
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Client performs authenticated JSON calls against the backend
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
	latency metric.Float64Histogram
}

// NewClient creates a backend client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("backend: base url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	latency, err := otel.GetMeterProvider().Meter(instrumentationName).Float64Histogram(
		"editor.backend.request.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Latency in milliseconds of calls to the catalog, media and AI services"),
	)
	if err != nil {
		logger.Warn("backend: unable to register latency metric", zap.Error(err))
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		latency: latency,
	}, nil
}

// doJSON sends body as JSON (when non-nil) and decodes the data envelope into out
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	return c.do(ctx, method, path, "application/json", reader, out)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out interface{}) error {
	ctx, span := tracer.Start(ctx, method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	)

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.recordLatency(ctx, method, path, time.Since(start), resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.logger.Error("Backend request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("Backend request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}

	if resp.StatusCode >= 300 {
		message := env.Message
		if message == "" {
			message = strings.TrimSpace(string(raw))
		}
		if message == "" {
			message = http.StatusText(resp.StatusCode)
		}
		apiErr := &APIError{Status: resp.StatusCode, Message: message}
		span.SetStatus(codes.Error, message)
		return apiErr
	}

	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrInvalidResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

func (c *Client) recordLatency(ctx context.Context, method, path string, d time.Duration, resp *http.Response) {
	if c.latency == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("http.request.method", method),
		attribute.String("url.path", path),
	}
	if resp != nil {
		attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
	}
	c.latency.Record(ctx, float64(d)/float64(time.Millisecond), metric.WithAttributes(attrs...))
}
