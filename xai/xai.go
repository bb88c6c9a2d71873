package xai

import (
	"bytes"
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
	// DefaultEndpoint is the xAI OpenAI-compatible API base URL.
	DefaultEndpoint = "https://api.x.ai/v1"

	// DefaultModel is used when Configure receives no model name.
	DefaultModel = "grok-4"
)

// xAI accepts a coarse reasoning_effort level but none of the
// llama-style sampling extensions, so TopK, MinP and RepeatPenalty are
// never sent.
type chatRequest struct {
	Model           string            `json:"model"`
	Messages        []encoder.Message `json:"messages"`
	Temperature     float64           `json:"temperature"`
	TopP            float64           `json:"top_p"`
	MaxTokens       int               `json:"max_tokens"`
	ReasoningEffort string            `json:"reasoning_effort,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Client talks to the xAI chat completions API. The zero value is
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
	return "xAI"
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

	body := chatRequest{
		Model:       model,
		Messages:    encoder.ChatMessages(req.SystemPrompt, encoder.DataURI(imageData), req.UserPrompt),
		Temperature: req.Sampling.Temperature,
		TopP:        req.Sampling.TopP,
		MaxTokens:   req.Sampling.MaxTokens,
	}
	if effort, ok := reasoning.Level(req.Effort); ok {
		body.ReasoningEffort = effort
	}

	text, err := c.chatCompletion(endpoint, apiKey, body)
	if err != nil {
		return "", &llm.ProviderError{Backend: c.SourceName(), Err: err}
	}
	return text, nil
}

func (c *Client) chatCompletion(endpoint, apiKey string, body chatRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", endpoint+"/chat/completions", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

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

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return chatResp.Choices[0].Message.Content, nil
}
