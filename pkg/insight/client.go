package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dimasfr/careerlink-api/internal/dto"
)

var (
	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "careerlink",
		Subsystem: "insight",
		Name:      "request_duration_seconds",
		Help:      "Duration of upstream insight service requests",
	}, []string{"operation"})

	upstreamFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "careerlink",
		Subsystem: "insight",
		Name:      "request_failures_total",
		Help:      "Number of failed upstream insight service requests",
	}, []string{"operation"})
)

// Config defines connection options for the insight service client.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client calls the upstream recommendation/analytics service. The relay
// only forwards; all scoring happens upstream.
type Client struct {
	baseURL string
	http    *http.Client
	tracer  trace.Tracer
	logger  zerolog.Logger
}

// New builds an insight client from the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("insight base url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer("github.com/dimasfr/careerlink-api/pkg/insight"),
		logger:  cfg.Logger.With().Str("component", "insight_client").Logger(),
	}, nil
}

type recommendationsRequest struct {
	UserID   string `json:"user_id"`
	Category string `json:"category"`
	Limit    int    `json:"limit,omitempty"`
}

// Recommendations fetches ranked suggestions for the given identity.
func (c *Client) Recommendations(parent context.Context, userID, category string, limit int) ([]dto.RecommendationItem, error) {
	ctx, span := c.tracer.Start(parent, "insight.recommendations", trace.WithAttributes(
		attribute.String("insight.category", category),
		attribute.Int("insight.limit", limit),
	))
	defer span.End()

	if category == "" {
		category = "all"
	}

	body, err := json.Marshal(recommendationsRequest{UserID: userID, Category: category, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("encode recommendations request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/recommendations", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build recommendations request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var payload struct {
		Items []dto.RecommendationItem `json:"items"`
	}
	if err := c.do(req, "recommendations", span, &payload); err != nil {
		return nil, err
	}

	return payload.Items, nil
}

// Analytics fetches the analytics snapshot for the given identity.
func (c *Client) Analytics(parent context.Context, userID string) (dto.AnalyticsEnvelope, error) {
	ctx, span := c.tracer.Start(parent, "insight.analytics", trace.WithAttributes(
		attribute.String("insight.user_id", userID),
	))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/analytics/"+userID, nil)
	if err != nil {
		return dto.AnalyticsEnvelope{}, fmt.Errorf("build analytics request: %w", err)
	}

	var envelope dto.AnalyticsEnvelope
	if err := c.do(req, "analytics", span, &envelope); err != nil {
		return dto.AnalyticsEnvelope{}, err
	}

	envelope.UserID = userID
	return envelope, nil
}

func (c *Client) do(req *http.Request, operation string, span trace.Span, out interface{}) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	upstreamDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	if err != nil {
		upstreamFailures.WithLabelValues(operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("insight %s: %w", operation, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		err := fmt.Errorf("insight %s: unexpected status %d", operation, resp.StatusCode)
		upstreamFailures.WithLabelValues(operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		upstreamFailures.WithLabelValues(operation).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("decode insight %s response: %w", operation, err)
	}

	return nil
}
