package ctrl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/device"
	"github.com/smazurov/rogd/internal/logging"
)

// AnimeCommand is an AniMe matrix command.
type AnimeCommand interface {
	animeCommand()
}

// WriteImage sends two pre-built panes and latches them.
type WriteImage struct {
	Panes [][]byte
}

// AnimeSet selects the built-in animation.
type AnimeSet struct{}

// AnimeApply applies the built-in animation selected with AnimeSet.
type AnimeApply struct{}

func (WriteImage) animeCommand() {}
func (AnimeSet) animeCommand()   {}
func (AnimeApply) animeCommand() {}

// Anime drives the AniMe LED matrix over USB control transfers.
type Anime struct {
	dev    device.Writer
	logger *slog.Logger
	queue  *queue[AnimeCommand]

	// initialised is set once the handshake was sent. Only the command task touches it.
	initialised bool
}

// NewAnime builds the controller on an already opened device.
func NewAnime(dev device.Writer) *Anime {
	c := &Anime{
		dev:    dev,
		logger: logging.GetLogger("anime"),
	}
	c.queue = newQueue[AnimeCommand](c.Name())
	return c
}

// OpenAnime opens the AniMe matrix by vendor and product id.
func OpenAnime() (*Anime, error) {
	dev, err := device.OpenUSBControl(device.AsusVendorID, device.AnimeProductID)
	if err != nil {
		if errors.Is(err, device.ErrNotFound) {
			return nil, fmt.Errorf("anime matrix: %w: %w", ErrNotPresent, err)
		}
		return nil, err
	}
	c := NewAnime(dev)
	c.logger.Info("AniMe matrix device found")
	return c, nil
}

// Name implements Controller.
func (c *Anime) Name() string { return "anime" }

// Reload implements Controller. The matrix keeps no persisted state.
func (c *Anime) Reload(_ context.Context) error { return nil }

// Start implements Controller.
func (c *Anime) Start(ctx context.Context, wg *sync.WaitGroup) {
	c.queue.serve(ctx, wg, c.logger, c.handle)
}

// Submit queues cmd and waits for it to be handled.
func (c *Anime) Submit(ctx context.Context, cmd AnimeCommand) error {
	return c.queue.submit(ctx, cmd)
}

// Close releases the device.
func (c *Anime) Close() error {
	if closer, ok := c.dev.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Anime) handle(cmd AnimeCommand) error {
	switch cmd := cmd.(type) {
	case WriteImage:
		return c.writeImage(cmd.Panes)
	case AnimeSet:
		return c.send(codec.AnimeSetPacket())
	case AnimeApply:
		return c.send(codec.AnimeApplyPacket())
	}
	return fmt.Errorf("unknown anime command %T", cmd)
}

func (c *Anime) writeImage(panes [][]byte) error {
	if err := codec.ValidatePanes(panes); err != nil {
		return err
	}
	if err := c.ensureInit(); err != nil {
		return err
	}
	for _, pane := range panes {
		if err := c.write(pane); err != nil {
			return err
		}
	}
	return c.write(codec.AnimeFlushPacket())
}

func (c *Anime) send(packet []byte) error {
	if err := c.ensureInit(); err != nil {
		return err
	}
	return c.write(packet)
}

// ensureInit sends the identification and INIT packets before the first write.
func (c *Anime) ensureInit() error {
	if c.initialised {
		return nil
	}
	for _, packet := range codec.AnimeInitPackets() {
		if err := c.write(packet); err != nil {
			return fmt.Errorf("anime handshake: %w", err)
		}
	}
	c.initialised = true
	c.logger.Debug("AniMe matrix initialised")
	return nil
}

func (c *Anime) write(packet []byte) error {
	if err := c.dev.Write(packet); err != nil {
		return absorbTimeout(c.logger, c.Name(), fmt.Errorf("anime write: %w", err))
	}
	return nil
}
