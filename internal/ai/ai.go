// Package ai holds the provider-neutral contracts of model-backed components.
package ai

import (
	"context"
	"errors"
)

const ProviderGemini = "gemini"

// ErrEmptyResponse is returned when a model answers with no usable text.
var ErrEmptyResponse = errors.New("model returned empty response")

// Generator produces text from a system instruction and a prompt.
type Generator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}
