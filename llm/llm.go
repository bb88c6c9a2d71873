package llm

import (
	"image"

	"github.com/necrophagism-spec/image-tagger/reasoning"
)

// Backend abstracts an inference provider used by the batch runner.
// Implementations must tolerate a configure or load call from one
// goroutine while Generate runs on another.
type Backend interface {
	// Ready reports whether a usable model or client is present.
	// It never panics and has no error to return.
	Ready() bool
	// Generate produces text for a single image request. It fails with
	// *NotReadyError when Ready is false and with *ProviderError for any
	// transport or model failure. The returned text is not yet trimmed.
	Generate(req Request) (string, error)
	// SourceName returns a short provider label for logs and status
	// reporting (e.g. "Gemini", "xAI", "Local").
	SourceName() string
}

// Request carries everything one generation needs. A fresh value is built
// for every image; requests are never persisted or reused.
type Request struct {
	Image        image.Image
	SystemPrompt string
	UserPrompt   string
	Sampling     Sampling
	Effort       reasoning.Effort
}

// Sampling is the shared generation parameter set. Each backend sends the
// subset its API supports.
type Sampling struct {
	Temperature   float64
	TopK          int
	TopP          float64
	MinP          float64
	RepeatPenalty float64
	MaxTokens     int
}

// DefaultSampling returns the application defaults for tagging runs.
func DefaultSampling() Sampling {
	return Sampling{
		Temperature:   0.4,
		TopK:          40,
		TopP:          0.9,
		MinP:          0.05,
		RepeatPenalty: 1.1,
		MaxTokens:     512,
	}
}
