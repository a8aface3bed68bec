// Package store persists the daemon state document and guards it for
// concurrent controllers.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/rogd/internal/codec"
)

// DefaultPath is the system-wide state document.
const DefaultPath = "/etc/asusd/asusd.toml"

var (
	// ErrCorrupt is returned when the document exists but cannot be parsed.
	ErrCorrupt = errors.New("config document corrupt")
	// ErrMissing is returned by Read when the document vanished or is empty.
	ErrMissing = errors.New("config document missing")
)

// Config is the in-memory copy of the state document plus the file it lives in.
// It is not safe for concurrent use; share it through Shared.
type Config struct {
	Document
	path string
}

// New returns a Config for path holding an empty document. Call Load before use.
func New(path string) *Config {
	if path == "" {
		path = DefaultPath
	}
	return &Config{path: path}
}

// Path returns the backing file.
func (c *Config) Path() string {
	return c.path
}

// Load reads the document, creating it with defaults derived from the
// supported modes if the file is missing or empty. A present but
// unparsable file is ErrCorrupt.
func (c *Config) Load(supported codec.ModeSet) error {
	data, err := os.ReadFile(c.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read config %s: %w", c.path, err)
	}

	if len(data) == 0 {
		c.Document = DefaultDocument(supported)
		return c.Write()
	}

	doc, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, c.path, err)
	}
	c.Document = doc
	return nil
}

// LoadOrRecover behaves like Load but renames a corrupt file to "<path>-old"
// and starts again from defaults.
func (c *Config) LoadOrRecover(supported codec.ModeSet) (recovered bool, err error) {
	err = c.Load(supported)
	if !errors.Is(err, ErrCorrupt) {
		return false, err
	}
	old := c.path + "-old"
	if renameErr := os.Rename(c.path, old); renameErr != nil {
		return false, fmt.Errorf("could not rename corrupt config to %s: %w", old, renameErr)
	}
	c.Document = DefaultDocument(supported)
	return true, c.Write()
}

// Read replaces the in-memory document with the one on disk. It is called
// right before every mutation so the write carries fields other controllers changed.
func (c *Config) Read() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrMissing, c.path)
		}
		return fmt.Errorf("failed to read config %s: %w", c.path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("%w: %s is empty", ErrMissing, c.path)
	}
	doc, err := decode(data)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorrupt, c.path, err)
	}
	c.Document = doc
	return nil
}

// Update re-reads the document, applies fn and writes the result. A document
// deleted from disk is recreated from the in-memory copy.
func (c *Config) Update(fn func(doc *Document)) error {
	if err := c.Read(); err != nil && !errors.Is(err, ErrMissing) {
		return err
	}
	fn(&c.Document)
	return c.Write()
}

// Write serialises the full document and truncates the file with it.
func (c *Config) Write() error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c.Document)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// requiredKeys lists every key a document must carry. Saved effects may
// be absent on boards without keyboard LED modes.
var requiredKeys = []string{
	"power_profile",
	"bat_charge_limit",
	"kbd_boot_brightness",
	"kbd_backlight_mode",
	"power_profiles.normal.min_percentage",
	"power_profiles.normal.max_percentage",
	"power_profiles.normal.no_turbo",
	"power_profiles.boost.min_percentage",
	"power_profiles.boost.max_percentage",
	"power_profiles.boost.no_turbo",
	"power_profiles.silent.min_percentage",
	"power_profiles.silent.max_percentage",
	"power_profiles.silent.no_turbo",
}

// decode parses a complete document. Missing or unknown keys are errors so a
// hand-edited file never loads with zero values in place of settings.
func decode(data []byte) (Document, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Document{}, err
	}
	for _, key := range requiredKeys {
		if !hasKey(raw, strings.Split(key, ".")) {
			return Document{}, fmt.Errorf("missing key %q", key)
		}
	}

	var doc Document
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, err
	}
	if doc.KbdBacklightModes == nil {
		doc.KbdBacklightModes = []codec.Effect{}
	}
	return doc, nil
}

func hasKey(table map[string]any, path []string) bool {
	v, ok := table[path[0]]
	if !ok {
		return false
	}
	if len(path) == 1 {
		return true
	}
	sub, ok := v.(map[string]any)
	return ok && hasKey(sub, path[1:])
}
