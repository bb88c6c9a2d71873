// Package tagger drives sequential batch tagging runs: one backend, one
// folder of images, one event stream per run.
package tagger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"github.com/necrophagism-spec/image-tagger/encoder"
	"github.com/necrophagism-spec/image-tagger/imagefiles"
	"github.com/necrophagism-spec/image-tagger/llm"
	"github.com/necrophagism-spec/image-tagger/metrics"
	"github.com/necrophagism-spec/image-tagger/reasoning"
	"github.com/necrophagism-spec/image-tagger/sidecar"
)

// Kind discriminates batch events.
type Kind string

const (
	// KindProgress announces that an image is about to be processed.
	KindProgress Kind = "progress"
	// KindTagged reports one successfully tagged and saved image.
	KindTagged Kind = "tagged"
	// KindError reports one failed image, or a failed readiness check when
	// Name is empty.
	KindError Kind = "error"
	// KindDone is always the final event of a run.
	KindDone Kind = "done"
)

// Event is one observation from a batch run. Fields are populated
// according to Kind.
type Event struct {
	Kind      Kind   `json:"kind"`
	Index     int    `json:"index,omitempty"`     // Progress: 1-based position
	Total     int    `json:"total,omitempty"`     // Progress: batch size
	Name      string `json:"name,omitempty"`      // Progress/Tagged/Error: image base name
	Text      string `json:"text,omitempty"`      // Tagged: trimmed annotation
	Message   string `json:"message,omitempty"`   // Error: failure description
	Processed int    `json:"processed,omitempty"` // Done: successfully tagged count
}

// Runner runs batches against one injected backend. The session fields are
// plain inputs: set them before Run and leave them unchanged while a run
// is active. A Runner is idle between runs and may be reused.
type Runner struct {
	Backend      llm.Backend
	Store        *sidecar.Store
	SystemPrompt string
	Sampling     llm.Sampling
	Effort       reasoning.Effort
}

// Run starts a batch over paths and returns its event stream. The channel
// is unbuffered and the caller must drain it until it closes; KindDone is
// always the final event, exactly once.
//
// Cancelling ctx stops the run cooperatively: the check happens between
// images only, so an in-flight generation always completes and its result
// is kept. A ctx cancelled before Run processes anything yields Done with
// zero processed images.
func (r *Runner) Run(ctx context.Context, paths []string) <-chan Event {
	events := make(chan Event)
	go r.run(ctx, paths, events)
	return events
}

func (r *Runner) run(ctx context.Context, paths []string, events chan<- Event) {
	defer close(events)

	logger := log.WithField("run_id", uuid.New().String())

	total := len(paths)
	if total == 0 {
		logger.Info("no images to process")
		events <- Event{Kind: KindDone}
		return
	}

	if !r.Backend.Ready() {
		msg := fmt.Sprintf("%s backend is not ready", r.Backend.SourceName())
		logger.Warn(msg)
		events <- Event{Kind: KindError, Message: msg}
		events <- Event{Kind: KindDone}
		return
	}

	logger.WithField("backend", r.Backend.SourceName()).
		WithField("total", total).
		Info("batch run started")

	metrics.BatchRunning.Set(1)
	defer func() {
		metrics.BatchRunning.Set(0)
		metrics.BatchesTotal.Inc()
		metrics.LastBatchTimestampSeconds.Set(metrics.NowUnixSeconds())
	}()

	processed := 0
	for i, path := range paths {
		if ctx.Err() != nil {
			logger.WithField("processed", processed).Info("batch run cancelled")
			break
		}

		name := filepath.Base(path)
		events <- Event{Kind: KindProgress, Index: i + 1, Total: total, Name: name}

		start := time.Now()
		text, err := r.processImage(path)
		if err != nil {
			metrics.ProcessedTotal.WithLabelValues("error").Inc()
			metrics.ProcessingDurationSeconds.WithLabelValues("error").Observe(time.Since(start).Seconds())
			logger.WithField("image", name).WithError(err).Error("failed to tag image")
			events <- Event{Kind: KindError, Name: name, Message: err.Error()}
			continue
		}

		metrics.ProcessedTotal.WithLabelValues("success").Inc()
		metrics.ProcessingDurationSeconds.WithLabelValues("success").Observe(time.Since(start).Seconds())
		processed++
		events <- Event{Kind: KindTagged, Name: name, Text: text}
	}

	logger.WithField("processed", processed).Info("batch run finished")
	events <- Event{Kind: KindDone, Processed: processed}
}

// processImage handles one image end to end: decode, generate, trim, save.
// Every request is built fresh from the current session fields.
func (r *Runner) processImage(path string) (string, error) {
	img, err := imagefiles.Decode(path)
	if err != nil {
		return "", err
	}

	req := llm.Request{
		Image:        img,
		SystemPrompt: r.SystemPrompt,
		UserPrompt:   encoder.Trigger,
		Sampling:     r.Sampling,
		Effort:       r.Effort,
	}

	text, err := r.Backend.Generate(req)
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if err := r.Store.Write(path, text); err != nil {
		return "", err
	}
	return text, nil
}
