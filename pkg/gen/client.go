// Package gen calls the one-shot generation endpoint used for exercise and
// writing-correction requests. Failures here are scoped to the single
// operation and never touch an in-progress conversation session.
package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rhazera/lingora/pkg/errorsx"
	"github.com/rhazera/lingora/pkg/logging"
	"github.com/rhazera/lingora/pkg/resilience"
)

type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	Timeout   time.Duration
	Retries   int
	BackoffMS int
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 2
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 200
	}
	return c
}

type Request struct {
	Prompt            string          `json:"prompt"`
	SystemInstruction string          `json:"systemInstruction,omitempty"`
	ResponseSchema    json.RawMessage `json:"responseSchema,omitempty"`
}

type Response struct {
	Text string `json:"text"`
}

type Client struct {
	cfg     Config
	http    *http.Client
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryPolicy
	logger  *slog.Logger
}

func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: resilience.NewCircuitBreaker(3, 30*time.Second),
		retry:   resilience.NewRetryPolicy(cfg.Retries, time.Duration(cfg.BackoffMS)*time.Millisecond),
		logger:  logging.NewComponentLogger(slog.Default(), "gen"),
	}
}

// Generate performs one request/response round trip.
func (c *Client) Generate(ctx context.Context, req Request) (Response, error) {
	if c.cfg.BaseURL == "" {
		return Response{}, errorsx.Wrap(errors.New("missing endpoint url"), errorsx.ReasonGenRequest)
	}
	if !c.breaker.Allow() {
		return Response{}, errorsx.Wrap(errors.New("generation circuit open"), errorsx.ReasonGenRateLimit)
	}

	body := struct {
		Model string `json:"model,omitempty"`
		Request
	}{Model: c.cfg.Model, Request: req}
	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, errorsx.Wrap(err, errorsx.ReasonGenRequest)
	}

	var out Response
	err = c.retry.Do(ctx, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("x-api-key", c.cfg.APIKey)
		}
		resp, err := c.http.Do(httpReq)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests {
			return resilience.RateLimitError{Provider: "gen", Message: resp.Status}
		}
		if resp.StatusCode != http.StatusOK {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("generation endpoint: %s: %s", resp.Status, bytes.TrimSpace(data))
		}
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	c.breaker.OnError(err)
	if err != nil {
		if resilience.IsRateLimit(err) {
			return Response{}, errorsx.Wrap(err, errorsx.ReasonGenRateLimit)
		}
		return Response{}, errorsx.Wrap(err, errorsx.ReasonGenRequest)
	}
	c.breaker.OnSuccess()
	return out, nil
}

// GenerateJSON runs a schema-constrained request and decodes the returned
// text as JSON. Decode failures surface as the operation's parse error.
func (c *Client) GenerateJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Generate(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(resp.Text), out); err != nil {
		c.logger.Warn("structured_response_parse_failed",
			slog.String("error", err.Error()))
		return errorsx.Wrap(err, errorsx.ReasonGenParse)
	}
	return nil
}
