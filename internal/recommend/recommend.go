// Package recommend turns the learner's latest attention score and a free-text
// context into a study suggestion. The text comes from an external generator;
// any failure of that call is answered with a fixed suggestion instead.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxContextRunes bounds the free-text context accepted in a request.
const MaxContextRunes = 2000

var (
	// ErrInvalidScore is returned when the score is outside [0,1].
	ErrInvalidScore = errors.New("score must be between 0 and 1")
	// ErrEmptyContext is returned when the context is blank.
	ErrEmptyContext = errors.New("context is required")
	// ErrContextTooLong is returned when the context exceeds MaxContextRunes.
	ErrContextTooLong = fmt.Errorf("context must be at most %d characters", MaxContextRunes)
)

// Request is the input to a recommendation.
type Request struct {
	UserID  string  `json:"userId"`
	Score   float64 `json:"attentionScore"`
	Context string  `json:"context"`
}

// Validate checks the request fields. All failures are reported together.
func (r Request) Validate() error {
	var errs []error
	if math.IsNaN(r.Score) || r.Score < 0 || r.Score > 1 {
		errs = append(errs, ErrInvalidScore)
	}
	switch text := strings.TrimSpace(r.Context); {
	case text == "":
		errs = append(errs, ErrEmptyContext)
	case utf8.RuneCountInString(r.Context) > MaxContextRunes:
		errs = append(errs, ErrContextTooLong)
	}
	return errors.Join(errs...)
}

// Suggestion is the structured answer returned to the caller.
type Suggestion struct {
	Suggestion    string   `json:"suggestion"`
	Explanation   string   `json:"explanation"`
	ResourceLinks []string `json:"resourceLinks"`
}

// Fallback is the suggestion served whenever the generator cannot be used.
func Fallback() Suggestion {
	return Suggestion{
		Suggestion:    "Take a short break and review the material in smaller chunks.",
		Explanation:   "Your attention has been varying. Short breaks and focused review sessions help retention.",
		ResourceLinks: []string{},
	}
}

// Result wraps a suggestion with where it came from.
type Result struct {
	Suggestion
	Fallback bool `json:"fallback"`
}

// Generator produces raw JSON suggestion text for a rendered prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
