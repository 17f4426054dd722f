package mock

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/aiwriterpros/aiwriter/internal/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProvider_DefaultResponse(t *testing.T) {
	p := New(slog.Default())

	res, err := p.GenerateText(context.Background(), ai.GenerateParams{Tool: "ad_copy", Input: "running shoes"})
	require.NoError(t, err)
	assert.Equal(t, "Sample ad copy content based on: running shoes", res.Text)
	assert.Equal(t, 1, p.Calls())
	assert.Equal(t, "ad_copy", p.LastParams.Tool)
}

func TestProvider_ConfiguredError(t *testing.T) {
	p := New(slog.Default())
	p.GenerateTextError = ai.EAIUnavailable

	_, err := p.GenerateText(context.Background(), ai.GenerateParams{Input: "x"})
	assert.True(t, errors.Is(err, ai.EAIUnavailable))

	p.Reset()
	assert.Equal(t, 0, p.Calls())
	assert.NoError(t, p.GenerateTextError)
}
