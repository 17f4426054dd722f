package mock

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aiwriterpros/aiwriter/internal/ai"
)

// Provider is a mock AI provider for testing and development
type Provider struct {
	logger *slog.Logger

	mu sync.Mutex

	// Configurable responses for testing
	GenerateTextResponse *ai.GenerateResult
	GenerateTextError    error

	// Call tracking for testing
	GenerateTextCalls int
	LastParams        ai.GenerateParams
}

// New creates a new mock AI provider
func New(logger *slog.Logger) *Provider {
	return &Provider{
		logger: logger,
	}
}

// GenerateText returns a canned response that echoes the tool and input
func (p *Provider) GenerateText(ctx context.Context, params ai.GenerateParams) (*ai.GenerateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.GenerateTextCalls++
	p.LastParams = params

	// If a custom response or error is set, use it
	if p.GenerateTextError != nil {
		return nil, p.GenerateTextError
	}
	if p.GenerateTextResponse != nil {
		return p.GenerateTextResponse, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Sample %s content based on: %s", strings.ReplaceAll(params.Tool, "_", " "), params.Input)
	return &ai.GenerateResult{
		Text: text,
		Usage: ai.UsageInfo{
			Model:        "mock-ai-v1",
			InputTokens:  len(strings.Fields(params.Input)) * 2,
			OutputTokens: len(strings.Fields(text)) * 2,
			Duration:     25 * time.Millisecond,
		},
	}, nil
}

// Calls returns the number of GenerateText calls so far
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.GenerateTextCalls
}

// Reset clears call counters and custom responses for testing
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateTextCalls = 0
	p.LastParams = ai.GenerateParams{}
	p.GenerateTextResponse = nil
	p.GenerateTextError = nil
}
