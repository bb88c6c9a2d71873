package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/necrophagism-spec/image-tagger/config"
	"github.com/necrophagism-spec/image-tagger/gemini"
	"github.com/necrophagism-spec/image-tagger/handlers"
	"github.com/necrophagism-spec/image-tagger/imagefiles"
	"github.com/necrophagism-spec/image-tagger/llm"
	"github.com/necrophagism-spec/image-tagger/localvlm"
	"github.com/necrophagism-spec/image-tagger/metrics"
	"github.com/necrophagism-spec/image-tagger/openrouter"
	"github.com/necrophagism-spec/image-tagger/prompts"
	"github.com/necrophagism-spec/image-tagger/reasoning"
	"github.com/necrophagism-spec/image-tagger/sidecar"
	"github.com/necrophagism-spec/image-tagger/stubllm"
	"github.com/necrophagism-spec/image-tagger/tagger"
	"github.com/necrophagism-spec/image-tagger/xai"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Merge the saved settings file, if one is configured
	if cfg.SettingsFile != "" {
		settings, err := config.LoadSettings(cfg.SettingsFile)
		if err != nil {
			log.Fatalf("Failed to load settings file: %v", err)
		}
		cfg.ApplySettings(settings)
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	// Validate required configuration
	if cfg.ImagesDir == "" {
		log.Fatal("IMAGES_DIR environment variable is required")
	}

	effort, err := reasoning.Parse(cfg.ReasoningEffort)
	if err != nil {
		log.Fatalf("Invalid REASONING_EFFORT: %v", err)
	}

	// Prompt templates; a selected template overrides SYSTEM_PROMPT
	store, err := prompts.NewStore(cfg.PromptsDir)
	if err != nil {
		log.Fatalf("Failed to open prompt templates: %v", err)
	}
	systemPrompt := cfg.SystemPrompt
	if cfg.PromptTemplate != "" {
		tmpl, err := store.Get(cfg.PromptTemplate)
		if err != nil {
			log.Fatalf("Failed to load prompt template %q: %v", cfg.PromptTemplate, err)
		}
		systemPrompt = tmpl.Prompt
	}

	// Discover the batch up front
	images, err := imagefiles.Discover(cfg.ImagesDir)
	if err != nil {
		log.Fatalf("Failed to scan images directory: %v", err)
	}

	// Construct and prepare the configured backend
	backend, cleanup, err := buildBackend(cfg)
	if err != nil {
		log.Fatalf("Failed to set up %s backend: %v", cfg.Backend, err)
	}
	defer cleanup()

	// Initialize metrics and handlers
	metrics.Register()
	tracker := &handlers.Tracker{}
	h := handlers.NewHandlers(tracker, store)

	// Setup HTTP server
	router := gin.Default()

	// API routes
	api := router.Group("/api/v1")
	{
		api.GET("/health", h.HealthCheck)
		api.GET("/status", h.GetStatus)
		api.GET("/templates", h.ListTemplates)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// SIGINT/SIGTERM stop the batch cooperatively: the image in flight
	// finishes and its sidecar is kept, then the run winds down.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-quit
		log.Infof("Received %s, stopping after the current image", sig)
		cancel()
	}()

	runner := &tagger.Runner{
		Backend:      backend,
		Store:        &sidecar.Store{OutputDir: cfg.OutputDir},
		SystemPrompt: systemPrompt,
		Sampling: llm.Sampling{
			Temperature:   cfg.Temperature,
			TopK:          cfg.TopK,
			TopP:          cfg.TopP,
			MinP:          cfg.MinP,
			RepeatPenalty: cfg.RepeatPenalty,
			MaxTokens:     cfg.MaxTokens,
		},
		Effort: effort,
	}

	runID := uuid.New().String()
	tracker.Start(runID, len(images))
	log.WithField("run_id", runID).
		Infof("Tagging %d images from %s with the %s backend", len(images), cfg.ImagesDir, backend.SourceName())

	processed := 0
	for ev := range runner.Run(ctx, images) {
		switch ev.Kind {
		case tagger.KindProgress:
			tracker.Progress(ev.Name)
		case tagger.KindTagged:
			tracker.Processed()
			log.WithField("image", ev.Name).Info("image tagged")
		case tagger.KindError:
			tracker.Failed(ev.Message)
		case tagger.KindDone:
			processed = ev.Processed
		}
	}
	tracker.Finish()

	if processed == 0 {
		log.Warn("Batch finished without tagging any images")
	} else {
		log.Infof("Batch finished: %d of %d images tagged", processed, len(images))
	}

	// Attempt graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}

// buildBackend constructs and prepares the backend selected by cfg.Backend.
// The returned cleanup releases whatever the backend holds; for the local
// backend that is the llama-server subprocess.
func buildBackend(cfg *config.Config) (llm.Backend, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case "gemini":
		client := gemini.NewClient()
		if err := client.Configure(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GeminiEndpoint); err != nil {
			return nil, noop, err
		}
		return client, noop, nil

	case "xai":
		client := xai.NewClient()
		if err := client.Configure(cfg.XAIAPIKey, cfg.XAIModel, cfg.XAIEndpoint); err != nil {
			return nil, noop, err
		}
		return client, noop, nil

	case "openrouter":
		client := openrouter.NewClient()
		if err := client.Configure(cfg.OpenRouterAPIKey, cfg.OpenRouterModel, cfg.OpenRouterEndpoint); err != nil {
			return nil, noop, err
		}
		return client, noop, nil

	case "local":
		model := localvlm.NewModel(cfg.LlamaServerBin, cfg.LlamaServerPort)
		params := localvlm.LoadParams{
			ModelPath:   cfg.LocalModelPath,
			MMProjPath:  cfg.LocalMmprojPath,
			Arch:        localvlm.Architecture(cfg.LocalArch),
			ContextSize: cfg.LocalContextSize,
			GPULayers:   cfg.LocalGPULayers,
			Reasoning:   cfg.LocalReasoning,
			LoadTimeout: cfg.LocalLoadTimeout,
		}
		if err := model.Load(params); err != nil {
			return nil, noop, err
		}
		return model, model.Unload, nil

	case "stub":
		return stubllm.NewStub(), noop, nil

	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}
