package ai

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	genai "github.com/google/generative-ai-go/genai"

	"customer-support-rag/internal/config"
	"customer-support-rag/internal/telemetry"
	"customer-support-rag/models"
)

// Client wraps the Gemini SDK for both embeddings and generation.
// A single rate limiter and circuit breaker guard every outbound call,
// so one misbehaving path cannot exhaust the API quota for the rest.
type Client struct {
	client      *genai.Client
	breaker     *gobreaker.CircuitBreaker
	rateLimiter *rate.Limiter
	metrics     *telemetry.Metrics

	embedModel  string
	genModel    string
	temperature float32
	maxTokens   int32
}

// NewClient builds the Gemini client. metrics may be nil for tools
// that run without telemetry.
func NewClient(cfg *config.Config, metrics *telemetry.Metrics) (*Client, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, err
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Printf("Circuit breaker %s: %s -> %s", name, from, to)
		},
		// A caller hanging up mid-stream is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	// RPM limit with some buffer
	rpm := cfg.GeminiRPM
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	rateLimiter := rate.NewLimiter(rate.Limit(float64(rpm)*0.9/60.0), burst)

	return &Client{
		client:      client,
		breaker:     breaker,
		rateLimiter: rateLimiter,
		metrics:     metrics,
		embedModel:  cfg.EmbeddingsModel,
		genModel:    cfg.GeminiModel,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxOutputTokens),
	}, nil
}

// execute runs fn behind the rate limiter and circuit breaker,
// translating an open breaker into the shared sentinel error.
func (c *Client) execute(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}

	result, err := c.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, models.ErrServiceUnavailable
		}
		return nil, err
	}
	return result, nil
}

// Close the underlying SDK client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
