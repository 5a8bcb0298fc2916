package app

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"riskscore/domain/credit"
	"riskscore/domain/report"
	"riskscore/internal"
	"riskscore/internal/errors"
	"riskscore/internal/metrics"
	"riskscore/internal/telemetry"
	"riskscore/ports"

	"go.opentelemetry.io/otel/attribute"
)

// ErrAdvisoryUnavailable is returned when no language model is configured
var ErrAdvisoryUnavailable error = errors.ConfigInvalid("language model advisory is not configured")

// AdvisoryConfig bounds one generation call
type AdvisoryConfig struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// DefaultAdvisoryConfig matches the short recommendation format of the prompt
func DefaultAdvisoryConfig() AdvisoryConfig {
	return AdvisoryConfig{MaxTokens: 120, Temperature: 0.2, Timeout: 30 * time.Second}
}

// AdvisoryService asks a hosted model for a short recommendation. It holds
// no scoring state, so its failures cannot reach caches, reports or exports.
type AdvisoryService struct {
	generator ports.TextGenerator
	cfg       AdvisoryConfig
	log       *internal.Logger
}

// NewAdvisoryService creates the service. A nil generator leaves the
// feature disabled.
func NewAdvisoryService(generator ports.TextGenerator, cfg AdvisoryConfig) *AdvisoryService {
	def := DefaultAdvisoryConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &AdvisoryService{generator: generator, cfg: cfg, log: internal.Component("Advisory")}
}

// Enabled reports whether a generator is configured
func (s *AdvisoryService) Enabled() bool {
	return s != nil && s.generator != nil
}

// Generate builds the localized prompt and returns the model's text
func (s *AdvisoryService) Generate(ctx context.Context, attrs credit.ClientAttributes, result credit.ScoringResult, lang report.Language) (text string, err error) {
	if !s.Enabled() {
		return "", ErrAdvisoryUnavailable
	}
	provider := s.generator.Provider()

	ctx, span := telemetry.StartSpan(ctx, "advisory.generate",
		attribute.String("llm.provider", provider),
		attribute.String("lang", string(lang)),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	resp, err := s.generator.Generate(ctx, ports.GenerationRequest{
		Prompt:      report.BuildPrompt(attrs, result, lang),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	})
	if err != nil {
		metrics.LLMRequests.WithLabelValues(provider, metrics.OutcomeError).Inc()
		s.log.Warn("%s generation failed: %v", provider, err)
		if stderrors.Is(err, context.DeadlineExceeded) {
			return "", errors.ExternalServiceError(provider, errors.Wrapf(err, "no answer within %s", s.cfg.Timeout))
		}
		return "", errors.ExternalServiceError(provider, err)
	}
	metrics.LLMRequests.WithLabelValues(provider, metrics.OutcomeSuccess).Inc()
	if resp.Usage != nil {
		metrics.LLMTokens.WithLabelValues(provider, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.LLMTokens.WithLabelValues(provider, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	text = strings.TrimSpace(resp.Content)
	if text == "" {
		err = errors.ExternalServiceError(provider, stderrors.New("empty completion"))
		return "", err
	}
	return text, nil
}
