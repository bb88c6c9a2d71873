package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the image tagger service
type Config struct {
	// Batch input/output configuration
	ImagesDir string
	OutputDir string

	// Backend selection: local, gemini, xai, openrouter or stub
	Backend string

	// Server configuration
	Port string

	// Gemini configuration
	GeminiAPIKey   string
	GeminiModel    string
	GeminiEndpoint string

	// xAI configuration
	XAIAPIKey   string
	XAIModel    string
	XAIEndpoint string

	// OpenRouter configuration
	OpenRouterAPIKey   string
	OpenRouterModel    string
	OpenRouterEndpoint string

	// Local llama-server configuration
	LlamaServerBin   string
	LlamaServerPort  int
	LocalModelPath   string
	LocalMmprojPath  string
	LocalArch        string
	LocalContextSize int
	LocalGPULayers   int
	LocalReasoning   bool
	LocalLoadTimeout time.Duration

	// Generation configuration
	Temperature     float64
	TopK            int
	TopP            float64
	MinP            float64
	RepeatPenalty   float64
	MaxTokens       int
	ReasoningEffort string

	// Prompt configuration
	SystemPrompt   string
	PromptTemplate string
	PromptsDir     string

	// Settings persistence
	SettingsFile string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables
func Load() *Config {
	config := &Config{
		// Batch defaults
		ImagesDir: getEnv("IMAGES_DIR", ""),
		OutputDir: getEnv("OUTPUT_DIR", ""),

		// Backend defaults
		Backend: getEnv("BACKEND", "gemini"),

		// Server defaults
		Port: getEnv("PORT", "8080"),

		// Gemini defaults
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiEndpoint: getEnv("GEMINI_ENDPOINT", ""),

		// xAI defaults
		XAIAPIKey:   getEnv("XAI_API_KEY", ""),
		XAIModel:    getEnv("XAI_MODEL", "grok-4"),
		XAIEndpoint: getEnv("XAI_ENDPOINT", ""),

		// OpenRouter defaults
		OpenRouterAPIKey:   getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:    getEnv("OPENROUTER_MODEL", "qwen/qwen-2.5-vl-72b-instruct"),
		OpenRouterEndpoint: getEnv("OPENROUTER_ENDPOINT", ""),

		// Local llama-server defaults
		LlamaServerBin:   getEnv("LLAMA_SERVER_BIN", "llama-server"),
		LlamaServerPort:  getIntEnv("LLAMA_SERVER_PORT", 8090),
		LocalModelPath:   getEnv("LOCAL_MODEL_PATH", ""),
		LocalMmprojPath:  getEnv("LOCAL_MMPROJ_PATH", ""),
		LocalArch:        getEnv("LOCAL_ARCH", "qwen3vl"),
		LocalContextSize: getIntEnv("LOCAL_CONTEXT_SIZE", 8192),
		LocalGPULayers:   getIntEnv("LOCAL_GPU_LAYERS", -1),
		LocalReasoning:   getBoolEnv("LOCAL_REASONING", false),
		LocalLoadTimeout: getDurationEnv("LOCAL_LOAD_TIMEOUT", 5*time.Minute),

		// Generation defaults
		Temperature:     getFloatEnv("TEMPERATURE", 0.4),
		TopK:            getIntEnv("TOP_K", 40),
		TopP:            getFloatEnv("TOP_P", 0.9),
		MinP:            getFloatEnv("MIN_P", 0.05),
		RepeatPenalty:   getFloatEnv("REPEAT_PENALTY", 1.1),
		MaxTokens:       getIntEnv("MAX_TOKENS", 512),
		ReasoningEffort: getEnv("REASONING_EFFORT", "auto"),

		// Prompt defaults
		SystemPrompt:   getEnv("SYSTEM_PROMPT", "You are an expert image tagger for anime, illustrations, and photographs."),
		PromptTemplate: getEnv("PROMPT_TEMPLATE", ""),
		PromptsDir:     getEnv("PROMPTS_DIR", "prompts"),

		// Settings persistence defaults
		SettingsFile: getEnv("SETTINGS_FILE", ""),

		// Logging defaults
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return config
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
