package stubllm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/necrophagism-spec/image-tagger/encoder"
	"github.com/necrophagism-spec/image-tagger/llm"
)

// Stub is a deterministic, no-network backend intended for CI and local
// end-to-end runs. The same image and prompts always produce the same tag
// line, so sidecar contents are stable across runs.
type Stub struct{}

func NewStub() *Stub { return &Stub{} }

func (s *Stub) SourceName() string { return "Stub" }

// Ready always reports true; the stub needs no model or credentials.
func (s *Stub) Ready() bool { return true }

// Generate hashes the canonical image bytes together with the prompts and
// returns a stable tag line carrying a short fingerprint.
func (s *Stub) Generate(req llm.Request) (string, error) {
	imageData, err := encoder.PNG(req.Image)
	if err != nil {
		return "", &llm.ProviderError{Backend: s.SourceName(), Err: err}
	}

	input := append([]byte(req.SystemPrompt+req.UserPrompt), imageData...)
	sum := sha256.Sum256(input)
	short := hex.EncodeToString(sum[:8])

	bounds := req.Image.Bounds()
	return fmt.Sprintf("stub, ci run, fingerprint:%s, %dx%d", short, bounds.Dx(), bounds.Dy()), nil
}
