package anthropic

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p, err := New(Config{
		APIKey:  "test-key",
		BaseURL: srv.URL,
		ProviderConfig: ai.ProviderConfig{
			MaxRetries:     3,
			RetryBaseDelay: time.Millisecond,
			RequestTimeout: 5 * time.Second,
		},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return p
}

func TestNew_RequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, slog.Default())
	assert.Error(t, err)
}

func TestGenerateText_Success(t *testing.T) {
	var got apiRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(apiResponse{
			Content: []apiContentOutput{
				{Type: "text", Text: "First paragraph."},
				{Type: "text", Text: "Second paragraph."},
			},
			Usage: apiUsage{InputTokens: 100, OutputTokens: 40},
		})
	})

	res, err := p.GenerateText(context.Background(), ai.GenerateParams{
		Tool:  "blog_creator",
		Input: "Write about sourdough",
	})
	require.NoError(t, err)

	assert.Equal(t, "First paragraph.\n\nSecond paragraph.", res.Text)
	assert.Equal(t, 100, res.Usage.InputTokens)
	assert.Equal(t, 40, res.Usage.OutputTokens)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	assert.Contains(t, got.System, "blog post")
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "Write about sourdough", got.Messages[0].Content[0].Text)
}

func TestGenerateText_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.NotEmpty(t, body, "each attempt must carry the full body")

		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(apiResponse{
			Content: []apiContentOutput{{Type: "text", Text: "ok"}},
		})
	})

	res, err := p.GenerateText(context.Background(), ai.GenerateParams{Tool: "ad_copy", Input: "shoes"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateText_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := p.GenerateText(context.Background(), ai.GenerateParams{Tool: "ad_copy", Input: "shoes"})
	assert.ErrorIs(t, err, ai.EAIRateLimit)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGenerateText_DoesNotRetryAuthErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := p.GenerateText(context.Background(), ai.GenerateParams{Tool: "ad_copy", Input: "shoes"})
	assert.ErrorIs(t, err, ai.EAIUnauthorized)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateText_ValidatesInput(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := p.GenerateText(context.Background(), ai.GenerateParams{Tool: "ad_copy", Input: "   "})
	assert.ErrorIs(t, err, ai.EAIInvalidRequest)
}

func TestMapHTTPError(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
	}{
		{http.StatusUnauthorized, "", ai.EAIUnauthorized},
		{http.StatusTooManyRequests, "", ai.EAIRateLimit},
		{http.StatusRequestTimeout, "", ai.EAITimeout},
		{http.StatusBadGateway, "", ai.EAIUnavailable},
		{529, "", ai.EAIUnavailable},
		{http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"max_tokens too large"}}`, ai.EAIInvalidRequest},
		{http.StatusBadRequest, `{"error":{"type":"invalid_request_error","message":"Output blocked by content policy"}}`, ai.EAIContentPolicy},
	}

	for _, tt := range tests {
		err := mapHTTPError(tt.status, []byte(tt.body))
		assert.ErrorIs(t, err, tt.want, "status %d", tt.status)
	}
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, basePrompt, systemPrompt("unknown"))
	assert.Contains(t, systemPrompt("email_generator"), "subject line")
}
