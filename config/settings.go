package config

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Settings is the saved-settings document. Every field is optional; absent
// fields leave the corresponding Config value alone. API keys are base64
// obfuscated on disk, which keeps them out of casual view but is not
// encryption.
type Settings struct {
	ImagesDir        string   `json:"images_dir,omitempty"`
	OutputDir        string   `json:"output_dir,omitempty"`
	Backend          string   `json:"backend,omitempty"`
	GeminiAPIKey     string   `json:"gemini_api_key,omitempty"`
	GeminiModel      string   `json:"gemini_model,omitempty"`
	XAIAPIKey        string   `json:"xai_api_key,omitempty"`
	XAIModel         string   `json:"xai_model,omitempty"`
	OpenRouterAPIKey string   `json:"openrouter_api_key,omitempty"`
	OpenRouterModel  string   `json:"openrouter_model,omitempty"`
	LocalModelPath   string   `json:"local_model_path,omitempty"`
	LocalMmprojPath  string   `json:"local_mmproj_path,omitempty"`
	Temperature      *float64 `json:"temperature,omitempty"`
	TopK             *int     `json:"top_k,omitempty"`
	TopP             *float64 `json:"top_p,omitempty"`
	MinP             *float64 `json:"min_p,omitempty"`
	RepeatPenalty    *float64 `json:"repeat_penalty,omitempty"`
	MaxTokens        *int     `json:"max_tokens,omitempty"`
	ReasoningEffort  string   `json:"reasoning_effort,omitempty"`
	PromptTemplate   string   `json:"selected_template,omitempty"`
	SystemPrompt     string   `json:"system_prompt,omitempty"`
}

// LoadSettings reads a saved settings document. A missing file is not an
// error; it just means nothing has been saved yet.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var s Settings
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	s.GeminiAPIKey = deobfuscate(s.GeminiAPIKey)
	s.XAIAPIKey = deobfuscate(s.XAIAPIKey)
	s.OpenRouterAPIKey = deobfuscate(s.OpenRouterAPIKey)
	return &s, nil
}

// Save writes the settings document, obfuscating API keys.
func (s *Settings) Save(path string) error {
	out := *s
	out.GeminiAPIKey = obfuscate(out.GeminiAPIKey)
	out.XAIAPIKey = obfuscate(out.XAIAPIKey)
	out.OpenRouterAPIKey = obfuscate(out.OpenRouterAPIKey)

	raw, err := json.MarshalIndent(&out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create settings directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0600); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// ApplySettings overlays saved settings onto the config. Environment
// variables win: any field whose env var is set keeps its env value, so the
// precedence is defaults, then settings file, then environment.
func (c *Config) ApplySettings(s *Settings) {
	if s == nil {
		return
	}

	applyString("IMAGES_DIR", s.ImagesDir, &c.ImagesDir)
	applyString("OUTPUT_DIR", s.OutputDir, &c.OutputDir)
	applyString("BACKEND", s.Backend, &c.Backend)
	applyString("GEMINI_API_KEY", s.GeminiAPIKey, &c.GeminiAPIKey)
	applyString("GEMINI_MODEL", s.GeminiModel, &c.GeminiModel)
	applyString("XAI_API_KEY", s.XAIAPIKey, &c.XAIAPIKey)
	applyString("XAI_MODEL", s.XAIModel, &c.XAIModel)
	applyString("OPENROUTER_API_KEY", s.OpenRouterAPIKey, &c.OpenRouterAPIKey)
	applyString("OPENROUTER_MODEL", s.OpenRouterModel, &c.OpenRouterModel)
	applyString("LOCAL_MODEL_PATH", s.LocalModelPath, &c.LocalModelPath)
	applyString("LOCAL_MMPROJ_PATH", s.LocalMmprojPath, &c.LocalMmprojPath)
	applyFloat("TEMPERATURE", s.Temperature, &c.Temperature)
	applyInt("TOP_K", s.TopK, &c.TopK)
	applyFloat("TOP_P", s.TopP, &c.TopP)
	applyFloat("MIN_P", s.MinP, &c.MinP)
	applyFloat("REPEAT_PENALTY", s.RepeatPenalty, &c.RepeatPenalty)
	applyInt("MAX_TOKENS", s.MaxTokens, &c.MaxTokens)
	applyString("REASONING_EFFORT", s.ReasoningEffort, &c.ReasoningEffort)
	applyString("PROMPT_TEMPLATE", s.PromptTemplate, &c.PromptTemplate)
	applyString("SYSTEM_PROMPT", s.SystemPrompt, &c.SystemPrompt)
}

func applyString(envKey, value string, dst *string) {
	if value == "" || os.Getenv(envKey) != "" {
		return
	}
	*dst = value
}

func applyInt(envKey string, value *int, dst *int) {
	if value == nil || os.Getenv(envKey) != "" {
		return
	}
	*dst = *value
}

func applyFloat(envKey string, value *float64, dst *float64) {
	if value == nil || os.Getenv(envKey) != "" {
		return
	}
	*dst = *value
}

// obfuscate base64-encodes an API key for storage.
func obfuscate(key string) string {
	if key == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(key))
}

// deobfuscate reverses obfuscate, tolerating values saved in the clear.
func deobfuscate(value string) string {
	if value == "" {
		return ""
	}
	if decoded, err := base64.StdEncoding.DecodeString(value); err == nil {
		return string(decoded)
	}
	return value
}
