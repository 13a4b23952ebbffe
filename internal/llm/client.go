// Package llm calls hosted chat models with retries and a fallback provider.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
)

type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
	Stage       string
}

type GenerateResponse struct {
	Content      string
	Model        string
	InputTokens  int
	OutputTokens int
	FinishReason string
}

type Provider interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
	Name() string
}

type Client struct {
	Primary       Provider
	Fallback      Provider
	FallbackModel string
	Tracer        trace.Tracer
	Metrics       *metrics.Metrics

	// RetryInitial is the first backoff interval; zero means one second.
	RetryInitial time.Duration
}

func (c *Client) tracer() trace.Tracer {
	if c.Tracer == nil {
		return noop.NewTracerProvider().Tracer("llm")
	}
	return c.Tracer
}

func (c *Client) GenerateOnce(ctx context.Context, provider Provider, req GenerateRequest) (*GenerateResponse, error) {
	ctx, span := c.tracer().Start(ctx, "gen_ai.chat "+req.Model)
	defer span.End()

	span.SetAttributes(
		attribute.String("gen_ai.operation.name", "chat"),
		attribute.String("gen_ai.provider.name", provider.Name()),
		attribute.String("gen_ai.request.model", req.Model),
		attribute.Int("gen_ai.request.max_tokens", req.MaxTokens),
	)
	if req.Stage != "" {
		span.SetAttributes(attribute.String("ecoroute.stage", req.Stage))
	}

	resp, err := provider.Generate(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String("error.type", fmt.Sprintf("%T", err)))
		c.Metrics.LLMCall(provider.Name(), metrics.OutcomeFailed)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.OutputTokens),
	)
	if resp.FinishReason != "" {
		span.SetAttributes(attribute.String("gen_ai.response.finish_reasons", resp.FinishReason))
	}
	c.Metrics.LLMCall(provider.Name(), metrics.OutcomeOK)
	return resp, nil
}

func (c *Client) GenerateWithRetry(ctx context.Context, provider Provider, req GenerateRequest) (*GenerateResponse, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	if c.RetryInitial > 0 {
		bo.InitialInterval = c.RetryInitial
	}
	bo.MaxInterval = 10 * time.Second

	return backoff.Retry(ctx, func() (*GenerateResponse, error) {
		return c.GenerateOnce(ctx, provider, req)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(3),
	)
}

// Generate tries the primary provider, then the fallback with its own model.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	resp, err := c.GenerateWithRetry(ctx, c.Primary, req)
	if err == nil {
		return resp, nil
	}

	if c.Fallback == nil || ctx.Err() != nil {
		return nil, fmt.Errorf("primary provider %s failed after retries: %w", c.Primary.Name(), err)
	}

	fallbackReq := req
	if c.FallbackModel != "" {
		fallbackReq.Model = c.FallbackModel
	}
	resp, ferr := c.GenerateWithRetry(ctx, c.Fallback, fallbackReq)
	if ferr != nil {
		return nil, fmt.Errorf("fallback provider %s failed after retries: %w", c.Fallback.Name(), ferr)
	}
	return resp, nil
}
