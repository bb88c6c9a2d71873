package tagger

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jknair0/beforeeach"

	"github.com/necrophagism-spec/image-tagger/llm"
	"github.com/necrophagism-spec/image-tagger/sidecar"
	"github.com/necrophagism-spec/image-tagger/stubllm"
)

var (
	imagesDir  string
	imagePaths []string
)

func setUp() {
	dir, err := os.MkdirTemp("", "tagger-test-")
	if err != nil {
		panic(err)
	}
	imagesDir = dir
	imagePaths = nil
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		path := filepath.Join(dir, name)
		if err := writePNG(path); err != nil {
			panic(err)
		}
		imagePaths = append(imagePaths, path)
	}
}

func tearDown() {
	os.RemoveAll(imagesDir)
}

var it = beforeeach.Create(setUp, tearDown)

func writePNG(path string) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewNRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// scriptedBackend returns fixed text and can fail on a selected call or
// trigger cancellation from inside the first generation.
type scriptedBackend struct {
	text     string
	failCall int    // 1-based Generate call to fail, 0 = never
	cancel   func() // invoked during the first Generate when set
	calls    int
}

func (b *scriptedBackend) Ready() bool        { return true }
func (b *scriptedBackend) SourceName() string { return "Scripted" }

func (b *scriptedBackend) Generate(req llm.Request) (string, error) {
	b.calls++
	if b.cancel != nil && b.calls == 1 {
		b.cancel()
	}
	if b.failCall != 0 && b.calls == b.failCall {
		return "", &llm.ProviderError{Backend: "Scripted", Err: errors.New("synthetic failure")}
	}
	return b.text, nil
}

type offlineBackend struct{}

func (offlineBackend) Ready() bool        { return false }
func (offlineBackend) SourceName() string { return "Offline" }
func (offlineBackend) Generate(req llm.Request) (string, error) {
	return "", &llm.NotReadyError{Backend: "Offline"}
}

func newRunner(backend llm.Backend) *Runner {
	return &Runner{
		Backend:      backend,
		Store:        &sidecar.Store{},
		SystemPrompt: "You are a tagger.",
		Sampling:     llm.DefaultSampling(),
	}
}

func collect(events <-chan Event) []Event {
	var all []Event
	for e := range events {
		all = append(all, e)
	}
	return all
}

func readSidecar(t *testing.T, imagePath string) string {
	t.Helper()
	path := strings.TrimSuffix(imagePath, ".png") + ".txt"
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading sidecar for %s: %v", filepath.Base(imagePath), err)
	}
	return string(data)
}

func sidecarExists(imagePath string) bool {
	path := strings.TrimSuffix(imagePath, ".png") + ".txt"
	_, err := os.Stat(path)
	return err == nil
}

func TestRunTagsAllImages(t *testing.T) {
	it(func() {
		backend := &scriptedBackend{text: "  cat, animal  "}
		r := newRunner(backend)

		got := collect(r.Run(context.Background(), imagePaths[:2]))

		want := []Event{
			{Kind: KindProgress, Index: 1, Total: 2, Name: "a.png"},
			{Kind: KindTagged, Name: "a.png", Text: "cat, animal"},
			{Kind: KindProgress, Index: 2, Total: 2, Name: "b.png"},
			{Kind: KindTagged, Name: "b.png", Text: "cat, animal"},
			{Kind: KindDone, Processed: 2},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("events = %+v, want %+v", got, want)
		}

		for _, p := range imagePaths[:2] {
			if got := readSidecar(t, p); got != "cat, animal" {
				t.Errorf("sidecar for %s = %q, want trimmed text", filepath.Base(p), got)
			}
		}
	})
}

func TestRunEmptyList(t *testing.T) {
	it(func() {
		r := newRunner(&scriptedBackend{text: "cat"})

		got := collect(r.Run(context.Background(), nil))

		want := []Event{{Kind: KindDone}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("events = %+v, want a single Done", got)
		}
	})
}

func TestRunBackendNotReady(t *testing.T) {
	it(func() {
		r := newRunner(offlineBackend{})

		got := collect(r.Run(context.Background(), imagePaths))

		if len(got) != 2 {
			t.Fatalf("got %d events, want error + done", len(got))
		}
		if got[0].Kind != KindError || got[0].Name != "" {
			t.Errorf("events[0] = %+v, want batch-level error", got[0])
		}
		if !strings.Contains(got[0].Message, "not ready") {
			t.Errorf("error message = %q, want readiness message", got[0].Message)
		}
		if got[1].Kind != KindDone || got[1].Processed != 0 {
			t.Errorf("events[1] = %+v, want Done with zero processed", got[1])
		}

		for _, p := range imagePaths {
			if sidecarExists(p) {
				t.Errorf("sidecar written for %s despite not-ready backend", filepath.Base(p))
			}
		}
	})
}

func TestRunContinuesAfterFailure(t *testing.T) {
	it(func() {
		backend := &scriptedBackend{text: "cat", failCall: 2}
		r := newRunner(backend)

		got := collect(r.Run(context.Background(), imagePaths))

		want := []Event{
			{Kind: KindProgress, Index: 1, Total: 3, Name: "a.png"},
			{Kind: KindTagged, Name: "a.png", Text: "cat"},
			{Kind: KindProgress, Index: 2, Total: 3, Name: "b.png"},
			{Kind: KindError, Name: "b.png", Message: "Scripted: synthetic failure"},
			{Kind: KindProgress, Index: 3, Total: 3, Name: "c.png"},
			{Kind: KindTagged, Name: "c.png", Text: "cat"},
			{Kind: KindDone, Processed: 2},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("events = %+v, want %+v", got, want)
		}

		if sidecarExists(imagePaths[1]) {
			t.Error("sidecar written for the failed image")
		}
		if !sidecarExists(imagePaths[0]) || !sidecarExists(imagePaths[2]) {
			t.Error("sidecars missing for successful images")
		}
	})
}

func TestRunDecodeFailureIsPerImage(t *testing.T) {
	it(func() {
		badPath := filepath.Join(imagesDir, "bad.png")
		if err := os.WriteFile(badPath, []byte("not an image"), 0644); err != nil {
			t.Fatalf("writing corrupt image: %v", err)
		}

		r := newRunner(&scriptedBackend{text: "cat"})
		got := collect(r.Run(context.Background(), []string{badPath, imagePaths[0]}))

		if len(got) != 5 {
			t.Fatalf("got %d events, want 5: %+v", len(got), got)
		}
		if got[1].Kind != KindError || got[1].Name != "bad.png" {
			t.Errorf("events[1] = %+v, want decode error for bad.png", got[1])
		}
		if got[3].Kind != KindTagged || got[3].Name != "a.png" {
			t.Errorf("events[3] = %+v, want a.png tagged", got[3])
		}
		if got[4].Kind != KindDone || got[4].Processed != 1 {
			t.Errorf("events[4] = %+v, want Done with one processed", got[4])
		}
	})
}

func TestRunCancelledBeforeStart(t *testing.T) {
	it(func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		backend := &scriptedBackend{text: "cat"}
		r := newRunner(backend)

		got := collect(r.Run(ctx, imagePaths))

		want := []Event{{Kind: KindDone}}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("events = %+v, want a single Done", got)
		}
		if backend.calls != 0 {
			t.Errorf("backend called %d times, want 0", backend.calls)
		}
	})
}

func TestRunStopsAtNextBoundary(t *testing.T) {
	it(func() {
		ctx, cancel := context.WithCancel(context.Background())
		backend := &scriptedBackend{text: "cat", cancel: cancel}
		r := newRunner(backend)

		got := collect(r.Run(ctx, imagePaths))

		// Cancellation lands during the first generation: that image
		// completes and is kept, the rest of the batch is skipped.
		want := []Event{
			{Kind: KindProgress, Index: 1, Total: 3, Name: "a.png"},
			{Kind: KindTagged, Name: "a.png", Text: "cat"},
			{Kind: KindDone, Processed: 1},
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("events = %+v, want %+v", got, want)
		}

		if !sidecarExists(imagePaths[0]) {
			t.Error("sidecar missing for the completed image")
		}
		if sidecarExists(imagePaths[1]) {
			t.Error("sidecar written past the cancellation point")
		}
	})
}

func TestRunnerIsReusable(t *testing.T) {
	it(func() {
		r := newRunner(&scriptedBackend{text: "cat"})

		for i := 0; i < 2; i++ {
			got := collect(r.Run(context.Background(), imagePaths[:1]))
			if len(got) == 0 || got[len(got)-1].Kind != KindDone {
				t.Fatalf("run %d: events = %+v, want final Done", i+1, got)
			}
			if got[len(got)-1].Processed != 1 {
				t.Errorf("run %d: processed = %d, want 1", i+1, got[len(got)-1].Processed)
			}
		}
	})
}

func TestRunWithStubBackend(t *testing.T) {
	it(func() {
		r := newRunner(stubllm.NewStub())

		got := collect(r.Run(context.Background(), imagePaths[:1]))

		if len(got) != 3 {
			t.Fatalf("got %d events, want progress + tagged + done", len(got))
		}
		if got[1].Kind != KindTagged {
			t.Fatalf("events[1] = %+v, want tagged", got[1])
		}
		if !strings.Contains(got[1].Text, "fingerprint:") {
			t.Errorf("tagged text = %q, want stub fingerprint", got[1].Text)
		}
		if content := readSidecar(t, imagePaths[0]); content != got[1].Text {
			t.Errorf("sidecar = %q, event text = %q, want identical", content, got[1].Text)
		}
	})
}
