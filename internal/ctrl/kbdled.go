package ctrl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/device"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/smazurov/rogd/internal/metrics"
	"github.com/smazurov/rogd/internal/store"
)

// LEDCommand is a keyboard LED command.
type LEDCommand interface {
	ledCommand()
}

// SetEffect applies an effect. PerKey effects carry pre-built rows.
type SetEffect struct {
	Effect codec.Effect
}

// SetBrightness sets the keyboard brightness, 0-3.
type SetBrightness struct {
	Level uint8
}

// StepBrightness moves brightness by Delta, clamped to 0-3.
type StepBrightness struct {
	Delta int
}

// StepMode cycles through the supported modes by Delta.
type StepMode struct {
	Delta int
}

func (SetEffect) ledCommand()      {}
func (SetBrightness) ledCommand()  {}
func (StepBrightness) ledCommand() {}
func (StepMode) ledCommand()       {}

// LEDState is the keyboard LED state as persisted.
type LEDState struct {
	Mode       codec.ModeID  `json:"mode"`
	Effect     codec.Effect  `json:"effect"`
	Brightness uint8         `json:"brightness"`
	Supported  codec.ModeSet `json:"supported"`
}

// KbdLED drives the keyboard backlight over hidraw.
type KbdLED struct {
	dev       device.Writer
	supported codec.ModeSet
	cfg       *store.Shared
	pub       Publisher
	logger    *slog.Logger
	queue     *queue[LEDCommand]

	// reverse flips after every complete per-key write.
	reverse bool
}

// NewKbdLED builds the controller on an already opened device.
func NewKbdLED(dev device.Writer, supported codec.ModeSet, cfg *store.Shared, pub Publisher) *KbdLED {
	c := &KbdLED{
		dev:       dev,
		supported: supported,
		cfg:       cfg,
		pub:       pub,
		logger:    logging.GetLogger("kbdled"),
	}
	c.queue = newQueue[LEDCommand](c.Name())
	return c
}

// OpenKbdLED finds the keyboard hidraw node by USB product id and opens it.
func OpenKbdLED(productIDs []string, supported codec.ModeSet, cfg *store.Shared, pub Publisher) (*KbdLED, error) {
	path, err := device.FindHidraw(productIDs...)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, fmt.Errorf("keyboard LED: %w: %w", ErrNotPresent, err)
		}
		return nil, err
	}
	dev, err := device.OpenHidraw(path)
	if err != nil {
		return nil, err
	}
	c := NewKbdLED(dev, supported, cfg, pub)
	c.logger.Info("Keyboard LED device found", "path", path, "modes", len(supported))
	return c, nil
}

// Name implements Controller.
func (c *KbdLED) Name() string { return "kbdled" }

// Supported returns the supported mode set.
func (c *KbdLED) Supported() codec.ModeSet { return c.supported }

// Start implements Controller.
func (c *KbdLED) Start(ctx context.Context, wg *sync.WaitGroup) {
	c.queue.serve(ctx, wg, c.logger, c.handle)
}

// Submit queues cmd and waits for it to be handled.
func (c *KbdLED) Submit(ctx context.Context, cmd LEDCommand) error {
	return c.queue.submit(ctx, cmd)
}

// State returns the persisted LED state.
func (c *KbdLED) State() LEDState {
	doc := c.cfg.Snapshot()
	effect, ok := doc.ModeData(doc.KbdBacklightMode)
	if !ok {
		effect = codec.DefaultEffect(doc.KbdBacklightMode)
	}
	return LEDState{
		Mode:       doc.KbdBacklightMode,
		Effect:     effect,
		Brightness: doc.KbdBootBrightness,
		Supported:  c.supported,
	}
}

// Close releases the device.
func (c *KbdLED) Close() error {
	if closer, ok := c.dev.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Reload writes the persisted brightness and mode. A persisted mode the
// board does not support is replaced by the first supported one, and saved
// parameters for unsupported modes are dropped; the correction is persisted.
func (c *KbdLED) Reload(_ context.Context) error {
	return c.cfg.Do(func(cfg *store.Config) error {
		if err := cfg.Read(); err != nil && !errors.Is(err, store.ErrMissing) {
			return err
		}

		if err := c.write(codec.BrightnessMessage(cfg.KbdBootBrightness)); err != nil {
			return err
		}
		metrics.SetKbdBrightness(cfg.KbdBootBrightness)

		modes := c.supported.Persistable()
		if len(modes) == 0 {
			c.logger.Warn("No keyboard LED modes supported on this board")
			return nil
		}

		dirty := false
		mode := cfg.KbdBacklightMode
		if !modes.Contains(mode) {
			c.logger.Warn("Persisted LED mode is not supported, falling back",
				"mode", mode, "fallback", modes[0])
			for _, saved := range append([]codec.Effect(nil), cfg.KbdBacklightModes...) {
				if !modes.Contains(saved.Mode) {
					cfg.RemoveMode(saved.Mode)
				}
			}
			mode = modes[0]
			cfg.KbdBacklightMode = mode
			dirty = true
		}

		effect, ok := cfg.ModeData(mode)
		if !ok {
			effect = codec.DefaultEffect(mode)
			cfg.SetModeData(effect)
			dirty = true
		}

		if err := c.writeMode(effect); err != nil {
			return err
		}
		if dirty {
			if err := cfg.Write(); err != nil {
				return err
			}
		}
		c.logger.Info("Reloaded keyboard LED", "mode", mode, "brightness", cfg.KbdBootBrightness)
		return nil
	})
}

func (c *KbdLED) handle(cmd LEDCommand) error {
	switch cmd := cmd.(type) {
	case SetEffect:
		return c.setEffect(cmd.Effect)
	case SetBrightness:
		return c.setBrightness(cmd.Level)
	case StepBrightness:
		return c.stepBrightness(cmd.Delta)
	case StepMode:
		return c.stepMode(cmd.Delta)
	}
	return fmt.Errorf("unknown LED command %T", cmd)
}

func (c *KbdLED) setEffect(e codec.Effect) error {
	if e.Mode == codec.ModePerKey {
		return c.writePerKey(e.Rows)
	}

	var applied *codec.Effect
	err := c.cfg.Do(func(cfg *store.Config) error {
		var err error
		applied, err = c.applyEffect(cfg, e)
		return err
	})
	if err != nil {
		return err
	}
	if applied != nil {
		c.notifyMode(*applied)
	}
	return nil
}

// applyEffect writes e and persists it. The guard must be held. It returns
// nil without error when the mode was dropped as unsupported.
func (c *KbdLED) applyEffect(cfg *store.Config, e codec.Effect) (*codec.Effect, error) {
	if err := c.writeMode(e); err != nil {
		return nil, err
	}
	if !c.supported.Contains(e.Mode) {
		return nil, nil
	}

	e = e.Normalize()
	e.Rows = nil
	err := cfg.Update(func(doc *store.Document) {
		doc.KbdBacklightMode = e.Mode
		doc.SetModeData(e)
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Keyboard LED mode set", "mode", e.Mode)
	return &e, nil
}

// writeMode sends the mode message(s) followed by SET and APPLY. Modes the
// board does not support are dropped silently; SET and APPLY still go out.
func (c *KbdLED) writeMode(e codec.Effect) error {
	if c.supported.Contains(e.Mode) {
		msgs, err := codec.EncodeEffect(e)
		if err != nil {
			return err
		}
		for _, msg := range msgs {
			if err := c.write(msg); err != nil {
				return err
			}
		}
	} else {
		c.logger.Debug("Dropping unsupported LED mode", "mode", e.Mode)
	}

	if err := c.write(codec.SetMessage()); err != nil {
		return err
	}
	return c.write(codec.ApplyMessage())
}

// writePerKey sends the rows, alternating order on every call. No rows
// sends the per-key init message instead.
func (c *KbdLED) writePerKey(rows [][]byte) error {
	if len(rows) == 0 {
		return c.write(codec.PerKeyInitMessage())
	}

	for i := range rows {
		row := rows[i]
		if c.reverse {
			row = rows[len(rows)-1-i]
		}
		if err := c.write(row); err != nil {
			return err
		}
	}
	c.reverse = !c.reverse
	return nil
}

func (c *KbdLED) setBrightness(level uint8) error {
	if level > codec.MaxBrightness {
		return fmt.Errorf("%w: brightness %d (max %d)", ErrUnsupported, level, codec.MaxBrightness)
	}
	err := c.cfg.Do(func(cfg *store.Config) error {
		return c.applyBrightness(cfg, level)
	})
	if err != nil {
		return err
	}
	c.notifyBrightness(level)
	return nil
}

func (c *KbdLED) stepBrightness(delta int) error {
	var level uint8
	err := c.cfg.Do(func(cfg *store.Config) error {
		if err := cfg.Read(); err != nil && !errors.Is(err, store.ErrMissing) {
			return err
		}
		next := int(cfg.KbdBootBrightness) + delta
		level = uint8(min(max(next, 0), codec.MaxBrightness))
		return c.applyBrightness(cfg, level)
	})
	if err != nil {
		return err
	}
	c.notifyBrightness(level)
	return nil
}

func (c *KbdLED) applyBrightness(cfg *store.Config, level uint8) error {
	if err := c.write(codec.BrightnessMessage(level)); err != nil {
		return err
	}
	err := cfg.Update(func(doc *store.Document) {
		doc.KbdBootBrightness = level
	})
	if err != nil {
		return err
	}
	metrics.SetKbdBrightness(level)
	c.logger.Info("Keyboard brightness set", "level", level)
	return nil
}

func (c *KbdLED) stepMode(delta int) error {
	modes := c.supported.Persistable()
	if len(modes) == 0 {
		return fmt.Errorf("%w: no keyboard LED modes supported", ErrUnsupported)
	}

	var applied *codec.Effect
	err := c.cfg.Do(func(cfg *store.Config) error {
		if err := cfg.Read(); err != nil && !errors.Is(err, store.ErrMissing) {
			return err
		}
		idx := modes.Index(cfg.KbdBacklightMode)
		if idx < 0 {
			idx = 0
		} else {
			n := len(modes)
			idx = ((idx+delta)%n + n) % n
		}

		next := modes[idx]
		effect, ok := cfg.ModeData(next)
		if !ok {
			effect = codec.DefaultEffect(next)
		}
		var err error
		applied, err = c.applyEffect(cfg, effect)
		return err
	})
	if err != nil {
		return err
	}
	if applied != nil {
		c.notifyMode(*applied)
	}
	return nil
}

func (c *KbdLED) write(msg []byte) error {
	if err := c.dev.Write(msg); err != nil {
		return absorbTimeout(c.logger, c.Name(), fmt.Errorf("keyboard LED write: %w", err))
	}
	return nil
}

func (c *KbdLED) notifyMode(e codec.Effect) {
	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("Failed to encode LED mode notification", "error", err)
		return
	}
	notify(c.logger, c.pub, events.LEDModeChangedEvent{
		Effect:    data,
		Timestamp: timestamp(),
	})
}

func (c *KbdLED) notifyBrightness(level uint8) {
	notify(c.logger, c.pub, events.BrightnessChangedEvent{
		Level:     level,
		Timestamp: timestamp(),
	})
}
