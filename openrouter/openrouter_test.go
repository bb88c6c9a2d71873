package openrouter

import (
	"encoding/json"
	"errors"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/necrophagism-spec/image-tagger/encoder"
	"github.com/necrophagism-spec/image-tagger/llm"
	"github.com/necrophagism-spec/image-tagger/reasoning"
)

type capturedRequest struct {
	path string
	auth string
	body []byte
}

func newTestServer(t *testing.T, captured *capturedRequest, responseText string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading request body: %v", err)
		}
		captured.path = r.URL.Path
		captured.auth = r.Header.Get("Authorization")
		captured.body = body

		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"choices": []any{
				map[string]any{
					"message": map[string]any{"content": responseText},
				},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testRequest(effort reasoning.Effort) llm.Request {
	return llm.Request{
		Image:        image.NewNRGBA(image.Rect(0, 0, 2, 2)),
		SystemPrompt: "You are a tagger.",
		UserPrompt:   encoder.Trigger,
		Sampling:     llm.DefaultSampling(),
		Effort:       effort,
	}
}

type wireBody struct {
	Model             string  `json:"model"`
	Temperature       float64 `json:"temperature"`
	TopK              int     `json:"top_k"`
	TopP              float64 `json:"top_p"`
	MinP              float64 `json:"min_p"`
	RepetitionPenalty float64 `json:"repetition_penalty"`
	MaxTokens         int     `json:"max_tokens"`
	Reasoning         *struct {
		Effort  string `json:"effort"`
		Exclude bool   `json:"exclude"`
	} `json:"reasoning"`
}

func TestGenerateNotConfigured(t *testing.T) {
	_, err := NewClient().Generate(testRequest(reasoning.EffortAuto))

	var notReady *llm.NotReadyError
	if !errors.As(err, &notReady) {
		t.Fatalf("Generate() error = %T, want *llm.NotReadyError", err)
	}
}

func TestConfigureRejectsEmptyKey(t *testing.T) {
	c := NewClient()
	err := c.Configure("", "", "")

	var confErr *llm.ConfigurationError
	if !errors.As(err, &confErr) {
		t.Fatalf("Configure() error = %T, want *llm.ConfigurationError", err)
	}
	if c.Ready() {
		t.Error("Ready() = true after rejected configuration")
	}
}

func TestGenerateWireFormat(t *testing.T) {
	var captured capturedRequest
	server := newTestServer(t, &captured, "scenery, outdoors, sky")
	defer server.Close()

	c := NewClient()
	if err := c.Configure("or-key", "", server.URL); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	text, err := c.Generate(testRequest(reasoning.EffortHigh))
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "scenery, outdoors, sky" {
		t.Errorf("Generate() = %q, want response text", text)
	}

	if captured.path != "/chat/completions" {
		t.Errorf("request path = %q, want /chat/completions", captured.path)
	}
	if captured.auth != "Bearer or-key" {
		t.Errorf("Authorization = %q, want bearer key", captured.auth)
	}

	var body wireBody
	if err := json.Unmarshal(captured.body, &body); err != nil {
		t.Fatalf("parsing captured body: %v", err)
	}

	if body.Model != DefaultModel {
		t.Errorf("model = %q, want default %q", body.Model, DefaultModel)
	}
	if body.Temperature != 0.4 || body.TopK != 40 || body.TopP != 0.9 {
		t.Errorf("sampling = {%v %v %v}, want defaults", body.Temperature, body.TopK, body.TopP)
	}
	if body.MinP != 0.05 || body.RepetitionPenalty != 1.1 || body.MaxTokens != 512 {
		t.Errorf("sampling extensions = {%v %v %v}, want defaults", body.MinP, body.RepetitionPenalty, body.MaxTokens)
	}

	if body.Reasoning == nil {
		t.Fatal("reasoning object missing for high effort")
	}
	if body.Reasoning.Effort != "high" {
		t.Errorf("reasoning.effort = %q, want high", body.Reasoning.Effort)
	}
	if !body.Reasoning.Exclude {
		t.Error("reasoning.exclude = false, want true")
	}
}

func TestGenerateReasoningObjectPerEffort(t *testing.T) {
	for _, effort := range []reasoning.Effort{
		reasoning.EffortNone,
		reasoning.EffortMinimal,
		reasoning.EffortLow,
		reasoning.EffortMedium,
		reasoning.EffortHigh,
	} {
		var captured capturedRequest
		server := newTestServer(t, &captured, "ok")

		c := NewClient()
		if err := c.Configure("or-key", "", server.URL); err != nil {
			t.Fatalf("Configure() error = %v", err)
		}
		if _, err := c.Generate(testRequest(effort)); err != nil {
			t.Fatalf("Generate(%q) error = %v", effort, err)
		}
		server.Close()

		var body wireBody
		if err := json.Unmarshal(captured.body, &body); err != nil {
			t.Fatalf("parsing captured body: %v", err)
		}
		if body.Reasoning == nil {
			t.Errorf("effort %q: reasoning object missing", effort)
			continue
		}
		if body.Reasoning.Effort != string(effort) {
			t.Errorf("effort %q: reasoning.effort = %q", effort, body.Reasoning.Effort)
		}
		if !body.Reasoning.Exclude {
			t.Errorf("effort %q: reasoning.exclude = false, want true", effort)
		}
	}
}

func TestGenerateAutoOmitsReasoning(t *testing.T) {
	var captured capturedRequest
	server := newTestServer(t, &captured, "ok")
	defer server.Close()

	c := NewClient()
	if err := c.Configure("or-key", "", server.URL); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if _, err := c.Generate(testRequest(reasoning.EffortAuto)); err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	if strings.Contains(string(captured.body), `"reasoning"`) {
		t.Error("auto effort request contains reasoning object")
	}
}

func TestGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient()
	if err := c.Configure("or-key", "", server.URL); err != nil {
		t.Fatalf("Configure() error = %v", err)
	}

	_, err := c.Generate(testRequest(reasoning.EffortAuto))
	var provErr *llm.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("Generate() error = %T, want *llm.ProviderError", err)
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Errorf("error = %q, want status in message", err)
	}
}
