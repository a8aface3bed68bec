package device

import (
	"fmt"
	"os"
	"sync"
)

// Hidraw writes reports to a /dev/hidrawN node.
type Hidraw struct {
	path string
	mu   sync.Mutex
	f    *os.File
}

// OpenHidraw opens path for writing.
func OpenHidraw(path string) (*Hidraw, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open hidraw node %s: %w", path, err)
	}
	return &Hidraw{path: path, f: f}, nil
}

// Path returns the device node.
func (h *Hidraw) Path() string {
	return h.path
}

// Write sends msg as a single report.
func (h *Hidraw) Write(msg []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.f == nil {
		return fmt.Errorf("hidraw node %s is closed", h.path)
	}
	n, err := h.f.Write(msg)
	if err != nil {
		return fmt.Errorf("write to %s failed: %w", h.path, err)
	}
	if n != len(msg) {
		return fmt.Errorf("short write to %s: %d of %d bytes", h.path, n, len(msg))
	}
	return nil
}

// Close releases the node.
func (h *Hidraw) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.f == nil {
		return nil
	}
	err := h.f.Close()
	h.f = nil
	return err
}
