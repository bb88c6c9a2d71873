// Package localvlm runs a vision model through a llama-server subprocess
// owned by this process. Loading spawns the server and waits for its health
// probe; unloading kills it. Generation goes over the server's local
// OpenAI-compatible endpoint.
package localvlm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apex/log"

	"github.com/necrophagism-spec/image-tagger/encoder"
	"github.com/necrophagism-spec/image-tagger/llm"
)

// Architecture selects the model family llama-server is asked to run.
type Architecture string

const (
	ArchLLaVA   Architecture = "llava"
	ArchQwen3VL Architecture = "qwen3vl"
)

const (
	// DefaultBin is the llama-server executable resolved via PATH.
	DefaultBin = "llama-server"

	// DefaultPort is the local port the subprocess listens on.
	DefaultPort = 8090

	// DefaultContextSize matches the context window the supported vision
	// models are tuned for.
	DefaultContextSize = 8192

	// DefaultLoadTimeout bounds how long Load waits for the health probe.
	DefaultLoadTimeout = 5 * time.Minute

	healthPollInterval = 250 * time.Millisecond

	// Qwen3VL needs at least this much context to fit its image tokens.
	qwenContextFloor = 8192
)

// LoadParams describes one model load. GPULayers follows llama-server
// semantics: -1 offloads every layer, 0 keeps the model on CPU.
type LoadParams struct {
	ModelPath   string
	MMProjPath  string
	Arch        Architecture
	ContextSize int
	GPULayers   int
	Reasoning   bool
	LoadTimeout time.Duration
}

// Model owns at most one llama-server subprocess. Load and Unload are
// serialized; Ready and Generate may be called from other goroutines while
// a load is in flight.
type Model struct {
	bin  string
	port int

	loadMu sync.Mutex // serializes Load and Unload

	mu      sync.RWMutex // guards the fields below
	cmd     *exec.Cmd
	exited  *atomic.Bool // set by the reaper when the subprocess dies
	baseURL string

	http *http.Client
}

func NewModel(bin string, port int) *Model {
	if bin == "" {
		bin = DefaultBin
	}
	if port <= 0 {
		port = DefaultPort
	}
	return &Model{
		bin:  bin,
		port: port,
		http: &http.Client{},
	}
}

func (m *Model) SourceName() string {
	return "Local"
}

// Ready reports whether a subprocess is running and has not been observed
// to exit.
func (m *Model) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cmd != nil && !m.exited.Load()
}

// Load starts llama-server for the given model and blocks until its health
// probe answers. On any failure the subprocess is killed and no state is
// retained, so a half-initialized model is never reported ready. A loaded
// model must be explicitly unloaded before another load.
func (m *Model) Load(params LoadParams) error {
	switch params.Arch {
	case ArchLLaVA, ArchQwen3VL:
	default:
		return &llm.UnsupportedArchitectureError{Architecture: string(params.Arch)}
	}
	if params.ModelPath == "" {
		return &llm.LoadError{Err: errors.New("model path is empty")}
	}
	if params.MMProjPath == "" {
		return &llm.LoadError{Err: errors.New("mmproj path is empty")}
	}

	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.RLock()
	loaded := m.cmd != nil && !m.exited.Load()
	stale := m.cmd != nil && m.exited.Load()
	m.mu.RUnlock()

	if loaded {
		return &llm.LoadError{Err: errors.New("a model is already loaded, unload it first")}
	}
	if stale {
		// The previous subprocess died on its own; drop the dead handle.
		m.clear()
	}

	args := buildArgs(m.port, params)
	cmd := exec.Command(m.bin, args...)
	if err := cmd.Start(); err != nil {
		return &llm.LoadError{Err: err}
	}

	log.WithField("model", params.ModelPath).
		WithField("arch", string(params.Arch)).
		WithField("pid", cmd.Process.Pid).
		Info("llama-server started")

	exited := &atomic.Bool{}
	go func(pid int) {
		cmd.Wait()
		exited.Store(true)
		log.WithField("pid", pid).Info("llama-server exited")
	}(cmd.Process.Pid)

	timeout := params.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", m.port)
	if err := m.waitHealthy(baseURL, exited, timeout); err != nil {
		cmd.Process.Kill()
		return &llm.LoadError{Err: err}
	}

	m.mu.Lock()
	m.cmd = cmd
	m.exited = exited
	m.baseURL = baseURL
	m.mu.Unlock()
	return nil
}

// Unload kills the subprocess and clears all state. It is safe to call
// when nothing is loaded.
func (m *Model) Unload() {
	m.loadMu.Lock()
	defer m.loadMu.Unlock()

	m.mu.RLock()
	cmd := m.cmd
	exited := m.exited
	m.mu.RUnlock()

	if cmd == nil {
		return
	}
	if !exited.Load() {
		cmd.Process.Kill() // the reaper goroutine collects it
	}
	m.clear()
}

func (m *Model) clear() {
	m.mu.Lock()
	m.cmd = nil
	m.exited = nil
	m.baseURL = ""
	m.mu.Unlock()
}

func (m *Model) waitHealthy(baseURL string, exited *atomic.Bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if exited.Load() {
			return errors.New("llama-server exited during startup")
		}

		resp, err := m.http.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("llama-server not healthy after %s", timeout)
		}
		time.Sleep(healthPollInterval)
	}
}

func buildArgs(port int, params LoadParams) []string {
	ctxSize := params.ContextSize
	if ctxSize <= 0 {
		ctxSize = DefaultContextSize
	}
	if params.Arch == ArchQwen3VL && ctxSize < qwenContextFloor {
		ctxSize = qwenContextFloor
	}

	args := []string{
		"--model", params.ModelPath,
		"--mmproj", params.MMProjPath,
		"--ctx-size", strconv.Itoa(ctxSize),
		"--n-gpu-layers", strconv.Itoa(params.GPULayers),
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(port),
	}
	if params.Arch == ArchQwen3VL {
		args = append(args, "--swa-full")
	}
	if !params.Reasoning {
		// Suppress thinking output from reasoning-tuned models.
		args = append(args, "--reasoning-budget", "0")
	}
	return args
}

// llama-server accepts the full llama sampling surface.
type chatRequest struct {
	Messages      []encoder.Message `json:"messages"`
	Temperature   float64           `json:"temperature"`
	TopK          int               `json:"top_k"`
	TopP          float64           `json:"top_p"`
	MinP          float64           `json:"min_p"`
	RepeatPenalty float64           `json:"repeat_penalty"`
	MaxTokens     int               `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate sends one image request to the subprocess and returns the
// model's text.
func (m *Model) Generate(req llm.Request) (string, error) {
	m.mu.RLock()
	cmd, exited, baseURL := m.cmd, m.exited, m.baseURL
	m.mu.RUnlock()

	if cmd == nil || exited.Load() {
		return "", &llm.NotReadyError{Backend: m.SourceName()}
	}

	imageData, err := encoder.PNG(req.Image)
	if err != nil {
		return "", &llm.ProviderError{Backend: m.SourceName(), Err: err}
	}

	body := chatRequest{
		Messages:      encoder.ChatMessages(req.SystemPrompt, encoder.DataURI(imageData), req.UserPrompt),
		Temperature:   req.Sampling.Temperature,
		TopK:          req.Sampling.TopK,
		TopP:          req.Sampling.TopP,
		MinP:          req.Sampling.MinP,
		RepeatPenalty: req.Sampling.RepeatPenalty,
		MaxTokens:     req.Sampling.MaxTokens,
	}

	text, err := m.chatCompletion(baseURL, body)
	if err != nil {
		return "", &llm.ProviderError{Backend: m.SourceName(), Err: err}
	}
	return text, nil
}

func (m *Model) chatCompletion(baseURL string, body chatRequest) (string, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", baseURL+"/v1/chat/completions", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.http.Do(req)
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
