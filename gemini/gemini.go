package gemini

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/necrophagism-spec/image-tagger/encoder"
	"github.com/necrophagism-spec/image-tagger/llm"
	"github.com/necrophagism-spec/image-tagger/reasoning"
)

const (
	// DefaultEndpoint is the Google Generative Language API base URL.
	DefaultEndpoint = "https://generativelanguage.googleapis.com"

	// DefaultModel is used when Configure receives no model name.
	DefaultModel = "gemini-2.0-flash"
)

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type thinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type generationConfig struct {
	Temperature     float64         `json:"temperature"`
	TopK            int             `json:"topK"`
	TopP            float64         `json:"topP"`
	MaxOutputTokens int             `json:"maxOutputTokens"`
	ThinkingConfig  *thinkingConfig `json:"thinkingConfig,omitempty"`
}

type generateRequest struct {
	SystemInstruction *content         `json:"systemInstruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text,omitempty"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Client talks to the Gemini generateContent API. The zero value is
// unconfigured; call Configure before Generate.
type Client struct {
	mu       sync.RWMutex
	apiKey   string
	model    string
	endpoint string

	http *http.Client
}

func NewClient() *Client {
	return &Client{
		http: &http.Client{},
	}
}

func (c *Client) SourceName() string {
	return "Gemini"
}

// Configure replaces the client's credentials and model in one step. An
// empty apiKey is rejected and the previous configuration stays in place.
// Empty model or endpoint select the defaults.
func (c *Client) Configure(apiKey, model, endpoint string) error {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return &llm.ConfigurationError{Backend: c.SourceName(), Reason: "api key is empty"}
	}
	if model == "" {
		model = DefaultModel
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	c.mu.Lock()
	c.apiKey = apiKey
	c.model = model
	c.endpoint = strings.TrimRight(endpoint, "/")
	c.mu.Unlock()
	return nil
}

func (c *Client) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

// Generate sends one image request and returns the model's text.
func (c *Client) Generate(req llm.Request) (string, error) {
	c.mu.RLock()
	apiKey, model, endpoint := c.apiKey, c.model, c.endpoint
	c.mu.RUnlock()

	if apiKey == "" {
		return "", &llm.NotReadyError{Backend: c.SourceName()}
	}

	imageData, err := encoder.PNG(req.Image)
	if err != nil {
		return "", &llm.ProviderError{Backend: c.SourceName(), Err: err}
	}

	config := generationConfig{
		Temperature:     req.Sampling.Temperature,
		TopK:            req.Sampling.TopK,
		TopP:            req.Sampling.TopP,
		MaxOutputTokens: req.Sampling.MaxTokens,
	}
	if budget, ok := reasoning.Budget(req.Effort); ok {
		config.ThinkingConfig = &thinkingConfig{ThinkingBudget: budget}
	}

	body := generateRequest{
		Contents: []content{
			{
				Role: "user",
				Parts: []part{
					{
						InlineData: &inlineData{
							MimeType: encoder.MIMEType,
							Data:     base64.StdEncoding.EncodeToString(imageData),
						},
					},
					{Text: req.UserPrompt},
				},
			},
		},
		GenerationConfig: config,
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &content{
			Parts: []part{
				{Text: req.SystemPrompt},
			},
		}
	}

	text, err := c.generateContent(endpoint, model, apiKey, body)
	if err != nil {
		return "", &llm.ProviderError{Backend: c.SourceName(), Err: err}
	}
	return text, nil
}

func (c *Client) generateContent(endpoint, model, apiKey string, body generateRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", endpoint, model)
	req, err := http.NewRequest("POST", url, bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var gr generateResponse
	if err := json.Unmarshal(respBody, &gr); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(gr.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	for _, p := range gr.Candidates[0].Content.Parts {
		if p.Text != "" {
			return p.Text, nil
		}
	}
	return "", fmt.Errorf("no text part in response")
}
