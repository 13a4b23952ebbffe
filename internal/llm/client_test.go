package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shiroonigami23-ui/ecoroute/internal/metrics"
)

type mockProvider struct {
	name      string
	calls     int
	failN     int
	resp      *GenerateResponse
	failErr   error
	lastModel string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	m.calls++
	m.lastModel = req.Model
	if m.calls <= m.failN {
		return nil, m.failErr
	}
	return m.resp, nil
}

func newTestClient(primary, fallback Provider) (*Client, *tracetest.InMemoryExporter, *metrics.Metrics) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	m := metrics.New("test")

	return &Client{
		Primary:       primary,
		Fallback:      fallback,
		FallbackModel: "claude-haiku-4-5-20251001",
		Tracer:        tp.Tracer("test"),
		Metrics:       m,
		RetryInitial:  time.Millisecond,
	}, exporter, m
}

func testReq() GenerateRequest {
	return GenerateRequest{
		Model:     "gpt-4.1-mini",
		System:    "You are a maritime logistics planner.",
		Prompt:    "Plan a route",
		MaxTokens: 100,
		Stage:     "route-planner",
	}
}

func okResponse(content string) *GenerateResponse {
	return &GenerateResponse{Content: content, Model: "gpt-4.1-mini", InputTokens: 10, OutputTokens: 5}
}

func TestGenerateOnceRecordsSpan(t *testing.T) {
	primary := &mockProvider{name: "openai", resp: okResponse("hello")}
	client, exporter, m := newTestClient(primary, nil)

	resp, err := client.GenerateOnce(context.Background(), primary, testReq())
	require.NoError(t, err)
	assert.Equal(t, "hello", resp.Content)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "gen_ai.chat gpt-4.1-mini", spans[0].Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("openai", metrics.OutcomeOK)))
}

func TestGenerateWithRetrySucceedsOnThirdTry(t *testing.T) {
	primary := &mockProvider{name: "openai", failN: 2, failErr: errors.New("rate limit"), resp: okResponse("ok")}
	client, _, m := newTestClient(primary, nil)

	resp, err := client.GenerateWithRetry(context.Background(), primary, testReq())
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMCalls.WithLabelValues("openai", metrics.OutcomeFailed)))
}

func TestGenerateWithRetryGivesUpAfterThree(t *testing.T) {
	primary := &mockProvider{name: "openai", failN: 10, failErr: errors.New("always fails")}
	client, _, _ := newTestClient(primary, nil)

	_, err := client.GenerateWithRetry(context.Background(), primary, testReq())
	assert.Error(t, err)
	assert.Equal(t, 3, primary.calls)
}

func TestGenerateFallsBackWithFallbackModel(t *testing.T) {
	primary := &mockProvider{name: "openai", failN: 10, failErr: errors.New("primary down")}
	fallback := &mockProvider{name: "anthropic", resp: okResponse("fallback")}
	client, _, _ := newTestClient(primary, fallback)

	resp, err := client.Generate(context.Background(), testReq())
	require.NoError(t, err)
	assert.Equal(t, "fallback", resp.Content)
	assert.Equal(t, 3, primary.calls)
	assert.Equal(t, 1, fallback.calls)
	assert.Equal(t, "claude-haiku-4-5-20251001", fallback.lastModel)
}

func TestGenerateWithoutFallbackReturnsError(t *testing.T) {
	primary := &mockProvider{name: "openai", failN: 10, failErr: errors.New("primary down")}
	client, _, _ := newTestClient(primary, nil)

	_, err := client.Generate(context.Background(), testReq())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary provider openai failed")
}

func TestOpenAICompatibleProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"model": "llama3",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "{\"options\": []}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL)
	assert.Equal(t, "ollama", p.Name())

	resp, err := p.Generate(context.Background(), GenerateRequest{Model: "llama3", System: "sys", Prompt: "hi", MaxTokens: 50})
	require.NoError(t, err)
	assert.Equal(t, `{"options": []}`, resp.Content)
	assert.Equal(t, 12, resp.InputTokens)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestAnthropicProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-haiku-4-5-20251001",
			"content": [{"type": "text", "text": "part one "}, {"type": "text", "text": "part two"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 7, "output_tokens": 3}
		}`))
	}))
	defer srv.Close()

	p := NewAnthropicProvider("test-key", option.WithBaseURL(srv.URL), option.WithMaxRetries(0))
	resp, err := p.Generate(context.Background(), GenerateRequest{
		Model:     "claude-haiku-4-5-20251001",
		System:    "sys",
		Prompt:    "hi",
		MaxTokens: 64,
	})
	require.NoError(t, err)
	assert.Equal(t, "part one part two", resp.Content)
	assert.Equal(t, 7, resp.InputTokens)
	assert.Equal(t, "end_turn", resp.FinishReason)
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2,0.3]}],"model":"text-embedding-3-small"}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedderWithBaseURL("k", "text-embedding-3-small", srv.URL)
	vec, err := e.Embed(context.Background(), "EU ETS")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
}
