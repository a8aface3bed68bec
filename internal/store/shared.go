package store

import (
	"sync"

	"github.com/smazurov/rogd/internal/codec"
)

// Shared guards one Config for every controller that touches it.
//
// Each mutation follows read-fresh, mutate-own-fields, write-whole. That
// tolerates writers touching disjoint fields, but nothing locks the file
// itself: another process editing it between Read and Write is overwritten.
type Shared struct {
	mu  sync.Mutex
	cfg *Config
}

// NewShared wraps cfg.
func NewShared(cfg *Config) *Shared {
	return &Shared{cfg: cfg}
}

// Do runs fn with exclusive access to the config.
func (s *Shared) Do(fn func(cfg *Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.cfg)
}

// TryDo runs fn only if the lock is free. ok is false when fn was skipped.
func (s *Shared) TryDo(fn func(cfg *Config) error) (ok bool, err error) {
	if !s.mu.TryLock() {
		return false, nil
	}
	defer s.mu.Unlock()
	return true, fn(s.cfg)
}

// Snapshot returns a copy of the in-memory document.
func (s *Shared) Snapshot() Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc := s.cfg.Document
	doc.KbdBacklightModes = append([]codec.Effect(nil), s.cfg.KbdBacklightModes...)
	return doc
}
