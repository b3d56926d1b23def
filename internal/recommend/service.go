package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrRateLimited is reported in logs when the limiter refuses a request.
var ErrRateLimited = errors.New("recommendation rate limit exceeded")

// Service consults a Generator once per request and falls back to the fixed
// suggestion on any failure. A nil generator always serves the fallback.
type Service struct {
	gen     Generator
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewService creates a Service. rps <= 0 disables rate limiting.
func NewService(gen Generator, rps float64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	var lim *rate.Limiter
	if rps > 0 {
		burst := max(1, int(rps))
		lim = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return &Service{gen: gen, limiter: lim, logger: logger}
}

// Recommend validates req and returns a suggestion. Only validation failures
// produce an error.
func (s *Service) Recommend(ctx context.Context, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}

	sugg, err := s.generate(ctx, req)
	if err != nil {
		s.logger.Warn("recommendation fallback",
			zap.String("user_id", req.UserID),
			zap.Float64("score", req.Score),
			zap.Error(err))
		return Result{Suggestion: Fallback(), Fallback: true}, nil
	}
	return Result{Suggestion: sugg}, nil
}

func (s *Service) generate(ctx context.Context, req Request) (Suggestion, error) {
	if s.gen == nil {
		return Suggestion{}, errors.New("no generator configured")
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return Suggestion{}, ErrRateLimited
	}

	prompt, err := renderPrompt(req)
	if err != nil {
		return Suggestion{}, fmt.Errorf("render prompt: %w", err)
	}
	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return Suggestion{}, err
	}
	return parseSuggestion(text)
}

// parseSuggestion decodes generator output, tolerating a markdown code fence.
func parseSuggestion(text string) (Suggestion, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var sugg Suggestion
	if err := json.Unmarshal([]byte(text), &sugg); err != nil {
		return Suggestion{}, fmt.Errorf("parse suggestion: %w", err)
	}
	if strings.TrimSpace(sugg.Suggestion) == "" {
		return Suggestion{}, errors.New("parse suggestion: missing suggestion")
	}
	if sugg.ResourceLinks == nil {
		sugg.ResourceLinks = []string{}
	}
	return sugg, nil
}
