package ctrl

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/store"
)

// recordingWriter records every message written to it.
type recordingWriter struct {
	mu   sync.Mutex
	msgs [][]byte
	fail func(msg []byte) error
}

func (w *recordingWriter) Write(msg []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		if err := w.fail(msg); err != nil {
			return err
		}
	}
	w.msgs = append(w.msgs, append([]byte(nil), msg...))
	return nil
}

func (w *recordingWriter) written() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.msgs...)
}

func (w *recordingWriter) reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.msgs = nil
}

// recordingPublisher records published events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) published() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// captureHandler keeps every record it handles.
type captureHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

// count returns how many records at level have msg.
func (h *captureHandler) count(level slog.Level, msg string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level && r.Message == msg {
			n++
		}
	}
	return n
}

func (h *captureHandler) countLevel(level slog.Level) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, r := range h.records {
		if r.Level == level {
			n++
		}
	}
	return n
}

func captureLogger() (*slog.Logger, *captureHandler) {
	h := &captureHandler{}
	return slog.New(h), h
}

// newShared loads a fresh state document in a temp dir.
func newShared(t *testing.T, supported codec.ModeSet) (*store.Shared, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asusd.toml")
	cfg := store.New(path)
	if err := cfg.Load(supported); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return store.NewShared(cfg), path
}

// mutate edits the shared document and writes it to disk.
func mutate(t *testing.T, shared *store.Shared, fn func(doc *store.Document)) {
	t.Helper()
	err := shared.Do(func(cfg *store.Config) error {
		fn(&cfg.Document)
		return cfg.Write()
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
}

// onDisk reads the document back from path.
func onDisk(t *testing.T, path string) store.Document {
	t.Helper()
	cfg := store.New(path)
	if err := cfg.Read(); err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	return cfg.Document
}
