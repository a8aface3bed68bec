package ctrl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/device"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/logging"
	"github.com/smazurov/rogd/internal/process"
)

// BIOSPaths are the EFI variables and tools the BIOS controller uses.
type BIOSPaths struct {
	GfxVar        string
	PostSoundVar  string
	InitramfsTool string
	Dracut        string
	ModulesFile   string
	Chattr        string
}

// DefaultBIOSPaths returns the standard locations.
func DefaultBIOSPaths() BIOSPaths {
	return BIOSPaths{
		GfxVar:        "/sys/firmware/efi/efivars/AsusSwitchGraphicMode-607005d5-3f75-4b2e-98f0-85ba66797a3e",
		PostSoundVar:  "/sys/firmware/efi/efivars/AsusPostLogoSound-607005d5-3f75-4b2e-98f0-85ba66797a3e",
		InitramfsTool: "/usr/sbin/update-initramfs",
		Dracut:        "/usr/bin/dracut",
		ModulesFile:   "/etc/initramfs-tools/modules",
		Chattr:        "/usr/bin/chattr",
	}
}

// BIOSCommand is a BIOS setting command.
type BIOSCommand interface {
	biosCommand()
}

// SetDedicatedGfx switches between dedicated and hybrid graphics. It takes
// effect on the next boot and regenerates the initramfs.
type SetDedicatedGfx struct {
	Dedicated bool
}

// SetPostSound turns the POST boot sound on or off.
type SetPostSound struct {
	Enabled bool
}

func (SetDedicatedGfx) biosCommand() {}
func (SetPostSound) biosCommand()    {}

// BIOSSupport reports which BIOS toggles the machine exposes.
type BIOSSupport struct {
	DedicatedGfx bool `json:"dedicated_gfx"`
	PostSound    bool `json:"post_sound"`
}

// BIOS controls the firmware settings stored in EFI variables.
type BIOS struct {
	paths   BIOSPaths
	support BIOSSupport
	run     process.Runner
	pub     Publisher
	logger  *slog.Logger
	queue   *queue[BIOSCommand]
}

// NewBIOS probes the EFI variables and makes the present ones writable.
// run executes helper commands; nil runs them for real.
func NewBIOS(ctx context.Context, paths BIOSPaths, run process.Runner, pub Publisher) (*BIOS, error) {
	c := &BIOS{
		paths: paths,
		support: BIOSSupport{
			DedicatedGfx: device.Exists(paths.GfxVar),
			PostSound:    device.Exists(paths.PostSoundVar),
		},
		run:    run,
		pub:    pub,
		logger: logging.GetLogger("bios"),
	}
	if c.run == nil {
		c.run = func(ctx context.Context, name string, args ...string) error {
			return process.Run(ctx, c.logger, name, args...)
		}
	}
	c.queue = newQueue[BIOSCommand](c.Name())

	if !c.support.DedicatedGfx && !c.support.PostSound {
		return nil, fmt.Errorf("bios settings: %w: no EFI variables", ErrNotPresent)
	}

	for _, v := range []struct {
		present bool
		path    string
		what    string
	}{
		{c.support.DedicatedGfx, paths.GfxVar, "dedicated graphics switch"},
		{c.support.PostSound, paths.PostSoundVar, "POST boot sound switch"},
	} {
		if !v.present {
			c.logger.Info("Not detected", "feature", v.what)
			continue
		}
		if err := c.makeMutable(ctx, v.path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// makeMutable clears the immutable attribute the kernel sets on EFI variables.
func (c *BIOS) makeMutable(ctx context.Context, path string) error {
	err := c.run(ctx, c.paths.Chattr, "-i", path)
	var exitErr *process.ExitError
	if errors.As(err, &exitErr) {
		c.logger.Warn("Could not make EFI variable writable", "path", path, "status", exitErr.Code)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run %s on %s: %w", c.paths.Chattr, path, err)
	}
	c.logger.Debug("EFI variable writable", "path", path)
	return nil
}

// Name implements Controller.
func (c *BIOS) Name() string { return "bios" }

// Reload implements Controller. EFI variables persist on their own.
func (c *BIOS) Reload(_ context.Context) error { return nil }

// Start implements Controller.
func (c *BIOS) Start(ctx context.Context, wg *sync.WaitGroup) {
	c.queue.serve(ctx, wg, c.logger, func(cmd BIOSCommand) error {
		return c.handle(ctx, cmd)
	})
}

// Submit queues cmd and waits for it to be handled.
func (c *BIOS) Submit(ctx context.Context, cmd BIOSCommand) error {
	return c.queue.submit(ctx, cmd)
}

// Supported returns the toggles this machine has.
func (c *BIOS) Supported() BIOSSupport { return c.support }

// DedicatedGfx reports whether dedicated graphics is selected for next boot.
func (c *BIOS) DedicatedGfx() (bool, error) {
	if !c.support.DedicatedGfx {
		return false, fmt.Errorf("dedicated graphics: %w", ErrNotPresent)
	}
	return readEFIBool(c.paths.GfxVar)
}

// PostSound reports whether the POST boot sound is on.
func (c *BIOS) PostSound() (bool, error) {
	if !c.support.PostSound {
		return false, fmt.Errorf("post sound: %w", ErrNotPresent)
	}
	return readEFIBool(c.paths.PostSoundVar)
}

func (c *BIOS) handle(ctx context.Context, cmd BIOSCommand) error {
	switch cmd := cmd.(type) {
	case SetDedicatedGfx:
		return c.setDedicatedGfx(ctx, cmd.Dedicated)
	case SetPostSound:
		return c.setPostSound(cmd.Enabled)
	}
	return fmt.Errorf("unknown bios command %T", cmd)
}

func (c *BIOS) setDedicatedGfx(ctx context.Context, dedicated bool) error {
	if !c.support.DedicatedGfx {
		return fmt.Errorf("dedicated graphics: %w", ErrNotPresent)
	}
	if err := writeEFIBool(c.paths.GfxVar, dedicated); err != nil {
		return err
	}
	if dedicated {
		c.logger.Info("Set system-level graphics mode", "mode", "dedicated")
	} else {
		c.logger.Info("Set system-level graphics mode", "mode", "hybrid")
	}

	if err := c.updateInitramfs(ctx, dedicated); err != nil {
		return err
	}
	notify(c.logger, c.pub, events.GfxModeChangedEvent{
		Dedicated: dedicated,
		Timestamp: timestamp(),
	})
	return nil
}

func (c *BIOS) setPostSound(enabled bool) error {
	if !c.support.PostSound {
		return fmt.Errorf("post sound: %w", ErrNotPresent)
	}
	if err := writeEFIBool(c.paths.PostSoundVar, enabled); err != nil {
		return err
	}
	c.logger.Info("Set POST boot sound", "enabled", enabled)
	notify(c.logger, c.pub, events.PostSoundChangedEvent{
		Enabled:   enabled,
		Timestamp: timestamp(),
	})
	return nil
}

// updateInitramfs regenerates the initramfs so the nvidia modules are present
// (or absent) at boot. update-initramfs takes a module list file; dracut
// takes the drivers on its command line.
func (c *BIOS) updateInitramfs(ctx context.Context, dedicated bool) error {
	var name string
	var args []string

	switch {
	case device.Exists(c.paths.InitramfsTool):
		if err := c.editModules(dedicated); err != nil {
			return err
		}
		name, args = c.paths.InitramfsTool, []string{"-u"}
	case device.Exists(c.paths.Dracut):
		name, args = c.paths.Dracut, []string{"-f", "-q"}
		if dedicated {
			args = append(args, "--add-drivers", strings.Join(codec.NvidiaModules, " "))
		}
	default:
		c.logger.Warn("No initramfs tool found, skipping regeneration")
		return nil
	}

	c.logger.Info("Updating initramfs", "tool", name)
	if err := c.run(ctx, name, args...); err != nil {
		return fmt.Errorf("initramfs update failed: %w", err)
	}
	c.logger.Info("Successfully updated initramfs")
	return nil
}

func (c *BIOS) editModules(dedicated bool) error {
	data, err := os.ReadFile(c.paths.ModulesFile)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to read %s: %w", c.paths.ModulesFile, err)
	}

	list := string(data)
	if dedicated {
		list = codec.AddModules(list, codec.NvidiaModules)
	} else {
		list = codec.RemoveModules(list, codec.NvidiaModules)
	}
	if err := os.WriteFile(c.paths.ModulesFile, []byte(list), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.paths.ModulesFile, err)
	}
	return nil
}

func readEFIBool(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return codec.EFIBool(data)
}

func writeEFIBool(path string, on bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	data, err = codec.SetEFIBool(data, on)
	if err != nil {
		return err
	}
	return device.WriteVar(path, data)
}
