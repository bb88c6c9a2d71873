package handlers

import (
	"sync/atomic"
)

// Tracker holds batch progress shared between the event drain and the HTTP
// handlers. All fields are safe for concurrent use (best-effort snapshot).
type Tracker struct {
	running   atomic.Bool
	total     atomic.Int64
	processed atomic.Int64
	failed    atomic.Int64

	runID       atomic.Value // string
	currentFile atomic.Value // string
	lastError   atomic.Value // string
}

// Status is the JSON snapshot served by GetStatus.
type Status struct {
	Running     bool   `json:"running"`
	RunID       string `json:"run_id,omitempty"`
	Total       int64  `json:"total"`
	Processed   int64  `json:"processed"`
	Failed      int64  `json:"failed"`
	CurrentFile string `json:"current_file,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

// Start resets the tracker for a new batch.
func (t *Tracker) Start(runID string, total int) {
	t.runID.Store(runID)
	t.total.Store(int64(total))
	t.processed.Store(0)
	t.failed.Store(0)
	t.currentFile.Store("")
	t.lastError.Store("")
	t.running.Store(true)
}

// Progress records the file currently being processed.
func (t *Tracker) Progress(name string) {
	t.currentFile.Store(name)
}

// Processed counts one successfully tagged image.
func (t *Tracker) Processed() {
	t.processed.Add(1)
}

// Failed counts one failed image and keeps its error message.
func (t *Tracker) Failed(message string) {
	t.failed.Add(1)
	t.lastError.Store(message)
}

// Finish marks the batch as done.
func (t *Tracker) Finish() {
	t.running.Store(false)
	t.currentFile.Store("")
}

// Status returns a point-in-time snapshot.
func (t *Tracker) Status() Status {
	return Status{
		Running:     t.running.Load(),
		RunID:       loadString(&t.runID),
		Total:       t.total.Load(),
		Processed:   t.processed.Load(),
		Failed:      t.failed.Load(),
		CurrentFile: loadString(&t.currentFile),
		LastError:   loadString(&t.lastError),
	}
}

func loadString(v *atomic.Value) string {
	if s, ok := v.Load().(string); ok {
		return s
	}
	return ""
}
