package ctrl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/device"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/smazurov/rogd/internal/metrics"
	"github.com/smazurov/rogd/internal/store"
)

// ChargeLimitPath is the battery charge threshold node.
const ChargeLimitPath = "/sys/class/power_supply/BAT0/charge_control_end_threshold"

// ChargeCommand is a battery charge command.
type ChargeCommand interface {
	chargeCommand()
}

// SetChargeLimit sets the charge end threshold in percent.
type SetChargeLimit struct {
	Limit uint8
}

func (SetChargeLimit) chargeCommand() {}

// Charge controls the battery charge limit.
type Charge struct {
	path   string
	cfg    *store.Shared
	pub    Publisher
	logger *slog.Logger
	queue  *queue[ChargeCommand]
}

// NewCharge probes the threshold node at path.
func NewCharge(path string, cfg *store.Shared, pub Publisher) (*Charge, error) {
	if path == "" {
		path = ChargeLimitPath
	}
	if !device.Exists(path) {
		return nil, fmt.Errorf("charge control: %w: %s", ErrNotPresent, path)
	}
	c := &Charge{
		path:   path,
		cfg:    cfg,
		pub:    pub,
		logger: logging.GetLogger("charge"),
	}
	c.queue = newQueue[ChargeCommand](c.Name())
	c.logger.Info("Battery charge limit control found", "path", path)
	return c, nil
}

// Name implements Controller.
func (c *Charge) Name() string { return "charge" }

// Start implements Controller.
func (c *Charge) Start(ctx context.Context, wg *sync.WaitGroup) {
	c.queue.serve(ctx, wg, c.logger, c.handle)
}

// Submit queues cmd and waits for it to be handled.
func (c *Charge) Submit(ctx context.Context, cmd ChargeCommand) error {
	return c.queue.submit(ctx, cmd)
}

// Limit returns the persisted charge limit.
func (c *Charge) Limit() uint8 {
	return c.cfg.Snapshot().BatChargeLimit
}

// Reload writes the persisted limit.
func (c *Charge) Reload(_ context.Context) error {
	return c.cfg.Do(func(cfg *store.Config) error {
		if err := cfg.Read(); err != nil && !errors.Is(err, store.ErrMissing) {
			return err
		}
		if err := c.writeLimit(cfg.BatChargeLimit); err != nil {
			return err
		}
		metrics.SetChargeLimit(cfg.BatChargeLimit)
		c.logger.Info("Reloaded battery charge limit", "limit", cfg.BatChargeLimit)
		return nil
	})
}

func (c *Charge) handle(cmd ChargeCommand) error {
	switch cmd := cmd.(type) {
	case SetChargeLimit:
		return c.setLimit(cmd.Limit)
	}
	return fmt.Errorf("unknown charge command %T", cmd)
}

func (c *Charge) setLimit(limit uint8) error {
	err := c.cfg.Do(func(cfg *store.Config) error {
		if err := c.writeLimit(limit); err != nil {
			return err
		}
		return cfg.Update(func(doc *store.Document) {
			doc.BatChargeLimit = limit
		})
	})
	if err != nil {
		return err
	}

	metrics.SetChargeLimit(limit)
	c.logger.Info("Battery charge limit set", "limit", limit)
	notify(c.logger, c.pub, events.ChargeLimitChangedEvent{
		Limit:     limit,
		Timestamp: timestamp(),
	})
	return nil
}

// writeLimit writes limit as given. Out-of-range values are only warned
// about; the firmware clamps them.
func (c *Charge) writeLimit(limit uint8) error {
	if !codec.ChargeLimitInRange(limit) {
		c.logger.Warn("Charge limit out of range, writing anyway",
			"limit", limit, "min", codec.ChargeLimitMin, "max", codec.ChargeLimitMax)
	}
	return device.WriteAttr(c.path, codec.EncodeChargeLimit(limit))
}
