package ctrl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/device"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/smazurov/rogd/internal/metrics"
	"github.com/smazurov/rogd/internal/store"
)

// DriftInterval is how often the fan node is compared with the persisted level.
const DriftInterval = 500 * time.Millisecond

// FanPaths are the sysfs nodes the fan/CPU controller may use.
type FanPaths struct {
	// Policy and BoostMode are alternative fan nodes; the first that exists wins.
	Policy    string
	BoostMode string
	// CPUBoost is the generic cpufreq boost switch.
	CPUBoost string
	// IntelPstate is the intel_pstate directory.
	IntelPstate string
}

// DefaultFanPaths returns the kernel's standard locations.
func DefaultFanPaths() FanPaths {
	return FanPaths{
		Policy:      "/sys/devices/platform/asus-nb-wmi/throttle_thermal_policy",
		BoostMode:   "/sys/devices/platform/asus-nb-wmi/fan_boost_mode",
		CPUBoost:    "/sys/devices/system/cpu/cpufreq/boost",
		IntelPstate: "/sys/devices/system/cpu/intel_pstate",
	}
}

// FanCommand is a fan/CPU command.
type FanCommand interface {
	fanCommand()
}

// SetFanLevel switches the fan level and the CPU power state tied to it.
type SetFanLevel struct {
	Level codec.FanLevel
}

func (SetFanLevel) fanCommand() {}

// powerState applies the CPU settings of a fan level.
type powerState interface {
	apply(s codec.CPUSettings) error
	name() string
}

// intelPstate writes min/max performance and no_turbo.
type intelPstate struct {
	dir string
}

func (p intelPstate) name() string { return "intel_pstate" }

func (p intelPstate) apply(s codec.CPUSettings) error {
	writes := []struct {
		attr  string
		value []byte
	}{
		{"min_perf_pct", codec.EncodePercent(s.MinPercentage)},
		{"max_perf_pct", codec.EncodePercent(s.MaxPercentage)},
		{"no_turbo", codec.EncodeNoTurbo(s.NoTurbo)},
	}
	for _, w := range writes {
		if err := device.WriteAttr(filepath.Join(p.dir, w.attr), w.value); err != nil {
			return err
		}
	}
	return nil
}

// cpuBoost writes the generic cpufreq boost switch, whose sense is the
// inverse of no_turbo.
type cpuBoost struct {
	path string
}

func (p cpuBoost) name() string { return "cpufreq_boost" }

func (p cpuBoost) apply(s codec.CPUSettings) error {
	return device.WriteAttr(p.path, codec.EncodeBoost(s.NoTurbo))
}

// FanCPU controls the fan level and reconciles it with firmware changes.
type FanCPU struct {
	path   string
	power  powerState
	cfg    *store.Shared
	pub    Publisher
	logger *slog.Logger
	queue  *queue[FanCommand]
}

// NewFanCPU resolves the fan node and the CPU power strategy once.
func NewFanCPU(paths FanPaths, cfg *store.Shared, pub Publisher) (*FanCPU, error) {
	c := &FanCPU{
		cfg:    cfg,
		pub:    pub,
		logger: logging.GetLogger("fancpu"),
	}
	c.queue = newQueue[FanCommand](c.Name())

	switch {
	case device.Exists(paths.Policy):
		c.path = paths.Policy
	case device.Exists(paths.BoostMode):
		c.path = paths.BoostMode
	default:
		return nil, fmt.Errorf("fan control: %w: neither %s nor %s exists", ErrNotPresent, paths.Policy, paths.BoostMode)
	}

	if paths.IntelPstate != "" && device.Exists(paths.IntelPstate) {
		c.power = intelPstate{dir: paths.IntelPstate}
	} else {
		c.power = cpuBoost{path: paths.CPUBoost}
	}

	c.logger.Info("Fan control found", "path", c.path, "cpu_power", c.power.name())
	return c, nil
}

// Name implements Controller.
func (c *FanCPU) Name() string { return "fancpu" }

// Path returns the fan node in use.
func (c *FanCPU) Path() string { return c.path }

// Start implements Controller. It also starts the drift poll.
func (c *FanCPU) Start(ctx context.Context, wg *sync.WaitGroup) {
	c.queue.serve(ctx, wg, c.logger, c.handle)
	poll(ctx, wg, DriftInterval, c.checkDrift)
}

// Submit queues cmd and waits for it to be handled.
func (c *FanCPU) Submit(ctx context.Context, cmd FanCommand) error {
	return c.queue.submit(ctx, cmd)
}

// Level returns the persisted fan level.
func (c *FanCPU) Level() codec.FanLevel {
	return codec.FanLevel(c.cfg.Snapshot().PowerProfile)
}

// Profiles returns the persisted CPU settings per fan level.
func (c *FanCPU) Profiles() store.PowerProfiles {
	return c.cfg.Snapshot().PowerProfiles
}

// Reload writes the persisted fan level and its power state. An invalid
// persisted level falls back to normal and the correction is persisted.
func (c *FanCPU) Reload(_ context.Context) error {
	return c.cfg.Do(func(cfg *store.Config) error {
		if err := cfg.Read(); err != nil && !errors.Is(err, store.ErrMissing) {
			return err
		}

		level := codec.FanLevel(cfg.PowerProfile)
		if !level.Valid() {
			c.logger.Warn("Persisted fan level is not supported, falling back", "level", cfg.PowerProfile, "fallback", codec.FanNormal)
			level = codec.FanNormal
			cfg.PowerProfile = uint8(level)
			if err := cfg.Write(); err != nil {
				return err
			}
		}

		if err := device.WriteAttr(c.path, codec.EncodeFanLevel(level)); err != nil {
			return err
		}
		if err := c.applyPower(cfg.PowerProfiles.For(level)); err != nil {
			return err
		}
		metrics.SetFanLevel(uint8(level))
		c.logger.Info("Reloaded fan level", "level", level)
		return nil
	})
}

func (c *FanCPU) handle(cmd FanCommand) error {
	switch cmd := cmd.(type) {
	case SetFanLevel:
		return c.setFanLevel(cmd.Level)
	}
	return fmt.Errorf("unknown fan command %T", cmd)
}

func (c *FanCPU) setFanLevel(level codec.FanLevel) error {
	if !level.Valid() {
		return fmt.Errorf("%w: fan level %d", ErrUnsupported, level)
	}

	err := c.cfg.Do(func(cfg *store.Config) error {
		if err := cfg.Read(); err != nil && !errors.Is(err, store.ErrMissing) {
			return err
		}
		if err := device.WriteAttr(c.path, codec.EncodeFanLevel(level)); err != nil {
			return err
		}
		// The saved level only moves once the CPU follows it.
		if err := c.applyPower(cfg.PowerProfiles.For(level)); err != nil {
			c.logger.Warn("Fan level written but CPU power state failed, saved level unchanged",
				"level", level, "saved", cfg.PowerProfile, "error", err)
			return err
		}
		return cfg.Update(func(doc *store.Document) {
			doc.PowerProfile = uint8(level)
		})
	})
	if err != nil {
		return err
	}

	metrics.SetFanLevel(uint8(level))
	c.logger.Info("Fan level set", "level", level)
	c.notifyLevel(level, events.SourceCommand)
	return nil
}

// checkDrift reconciles the persisted level with the fan node. It never
// blocks on the guard: a busy guard skips the cycle.
func (c *FanCPU) checkDrift() {
	var changed bool
	var level codec.FanLevel

	ok, err := c.cfg.TryDo(func(cfg *store.Config) error {
		b, err := device.ReadAttrByte(c.path)
		if err != nil {
			return err
		}
		level, err = codec.DecodeFanLevel(b)
		if err != nil {
			metrics.IncPollSkip("parse")
			return err
		}
		if uint8(level) == cfg.PowerProfile {
			return nil
		}

		err = cfg.Update(func(doc *store.Document) {
			doc.PowerProfile = uint8(level)
		})
		if err != nil {
			return err
		}
		if err := c.applyPower(cfg.PowerProfiles.For(level)); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if !ok {
		metrics.IncPollSkip("busy")
		return
	}
	if err != nil {
		c.logger.Warn("Fan level check failed", "error", err)
		return
	}
	if changed {
		metrics.IncDriftReconciliation()
		metrics.SetFanLevel(uint8(level))
		c.logger.Info("Fan level changed by firmware", "level", level)
		c.notifyLevel(level, events.SourceFirmware)
	}
}

func (c *FanCPU) applyPower(s codec.CPUSettings) error {
	if err := c.power.apply(s); err != nil {
		return fmt.Errorf("%s: %w", c.power.name(), err)
	}
	c.logger.Debug("CPU power state applied", "strategy", c.power.name(),
		"min", s.MinPercentage, "max", s.MaxPercentage, "turbo", !s.NoTurbo)
	return nil
}

func (c *FanCPU) notifyLevel(level codec.FanLevel, source string) {
	notify(c.logger, c.pub, events.FanLevelChangedEvent{
		Level:     uint8(level),
		Name:      level.String(),
		Source:    source,
		Timestamp: timestamp(),
	})
}
