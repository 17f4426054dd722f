package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/aiwriterpros/aiwriter/internal/ai"
	"github.com/aiwriterpros/aiwriter/internal/domain"
	"github.com/aiwriterpros/aiwriter/internal/metrics"
)

// MaxInputLength is the longest brief accepted for a generation, in bytes.
const MaxInputLength = 20_000

// GenerationService runs a writing tool on behalf of a user and charges the
// result against their quota.
type GenerationService interface {
	Generate(ctx context.Context, params domain.GenerateParams) (*domain.Generation, error)
}

type generationService struct {
	quota     QuotaService
	generator ai.TextGenerator
	logger    *slog.Logger
}

// NewGenerationService creates a new GenerationService instance.
func NewGenerationService(quota QuotaService, generator ai.TextGenerator, logger *slog.Logger) GenerationService {
	return &generationService{
		quota:     quota,
		generator: generator,
		logger:    logger,
	}
}

// Generate checks tool access and quota, calls the text generator, then
// records the words and the generation.
//
// Checks happen before the call and charges after it, so a single generation
// may push usage past the limit. The content is still returned in that case
// with Recorded set to false.
func (s *generationService) Generate(ctx context.Context, params domain.GenerateParams) (*domain.Generation, error) {
	const op = "generation.generate"

	if !params.Tool.IsValid() {
		return nil, domain.Invalid(op, "Unknown tool")
	}
	input := strings.TrimSpace(params.Input)
	if input == "" {
		return nil, domain.Invalid(op, "Input is required")
	}
	if len(input) > MaxInputLength {
		return nil, domain.Invalid(op, "Input is too long")
	}

	record, err := s.quota.Load(ctx, params.UserID)
	if err != nil {
		return nil, err
	}
	if !record.CanAccessTool(params.Tool) {
		return nil, domain.Forbidden(op, "This tool is not available on your plan")
	}
	if !record.CanGenerate() {
		metrics.QuotaChecked(false)
		return nil, quotaError(op, record)
	}
	metrics.QuotaChecked(true)

	result, err := s.generator.GenerateText(ctx, ai.GenerateParams{
		Tool:   string(params.Tool),
		Input:  input,
		UserID: params.UserID,
	})
	if err != nil {
		metrics.AIAPICalls.WithLabelValues("error").Inc()
		return nil, mapGeneratorError(op, err)
	}
	metrics.AIAPICalls.WithLabelValues("success").Inc()
	metrics.AITokensTotal.WithLabelValues("input").Add(float64(result.Usage.InputTokens))
	metrics.AITokensTotal.WithLabelValues("output").Add(float64(result.Usage.OutputTokens))

	gen := &domain.Generation{
		Tool:      params.Tool,
		Content:   result.Text,
		WordCount: domain.CountWords(result.Text),
	}
	gen.Recorded = s.charge(ctx, params, gen.WordCount)

	status, err := s.quota.Status(ctx, params.UserID)
	if err != nil {
		s.logger.Warn("usage status unavailable after generation", "user_id", params.UserID, "error", err)
	} else {
		gen.Usage = status
	}

	s.logger.Info("content generated",
		"user_id", params.UserID,
		"tool", params.Tool,
		"words", gen.WordCount,
		"recorded", gen.Recorded,
		"model", result.Usage.Model,
		"duration", result.Usage.Duration,
	)
	return gen, nil
}

// charge records the words and the generation. It reports whether both
// were accepted.
func (s *generationService) charge(ctx context.Context, params domain.GenerateParams, words int64) bool {
	wordsOK, err := s.quota.TrackWordUsage(ctx, params.UserID, words)
	if err != nil {
		s.logger.Error("failed to record word usage", "user_id", params.UserID, "words", words, "error", err)
		return false
	}
	if !wordsOK {
		s.logger.Warn("word usage not recorded, limit reached", "user_id", params.UserID, "words", words)
	}

	genOK, err := s.quota.TrackGeneration(ctx, params.UserID)
	if err != nil {
		s.logger.Error("failed to record generation", "user_id", params.UserID, "error", err)
		return false
	}
	if !genOK {
		s.logger.Warn("generation not recorded, daily limit reached", "user_id", params.UserID)
	}
	return wordsOK && genOK
}

// quotaError reports which allowance blocks the user.
func quotaError(op string, record *domain.UsageRecord) error {
	if record.GenerationLimit.Exceeded(record.GenerationsToday) {
		return domain.QuotaExceeded(op, domain.QuotaKindGenerations, record.GenerationsToday, record.GenerationLimit)
	}
	return domain.QuotaExceeded(op, domain.QuotaKindWords, record.WordsUsedThisMonth, record.WordLimit)
}

func mapGeneratorError(op string, err error) error {
	switch {
	case ai.IsRetryable(err):
		return domain.Unavailable(err, op, "The writing service is busy, please try again shortly")
	case errors.Is(err, ai.EAIContentPolicy):
		return domain.Invalid(op, "The input was rejected by the content policy")
	case errors.Is(err, ai.EAIInvalidRequest):
		return domain.Invalid(op, "The input could not be processed")
	default:
		return domain.Internal(err, op, "Generation failed")
	}
}
