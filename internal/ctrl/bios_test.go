package ctrl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/process"
)

type recordedRun struct {
	name string
	args []string
}

type recordingRunner struct {
	mu   sync.Mutex
	runs []recordedRun
	err  error
}

func (r *recordingRunner) run(_ context.Context, name string, args ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, recordedRun{name: name, args: args})
	return r.err
}

func (r *recordingRunner) calls() []recordedRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRun(nil), r.runs...)
}

// efiVar is a 4-byte attribute header followed by the value byte.
var efiVar = []byte{0x07, 0x00, 0x00, 0x00, 0x00}

type biosFixture struct {
	paths BIOSPaths
}

func newBIOSFixture(t *testing.T, gfx, sound bool) biosFixture {
	t.Helper()
	dir := t.TempDir()
	f := biosFixture{paths: BIOSPaths{
		GfxVar:        filepath.Join(dir, "AsusSwitchGraphicMode"),
		PostSoundVar:  filepath.Join(dir, "AsusPostLogoSound"),
		InitramfsTool: filepath.Join(dir, "update-initramfs"),
		Dracut:        filepath.Join(dir, "dracut"),
		ModulesFile:   filepath.Join(dir, "modules"),
		Chattr:        "/usr/bin/chattr",
	}}
	if gfx {
		writeFile(t, f.paths.GfxVar, string(efiVar))
	}
	if sound {
		writeFile(t, f.paths.PostSoundVar, string(efiVar))
	}
	return f
}

func newTestBIOS(t *testing.T, f biosFixture) (*BIOS, *recordingRunner, *recordingPublisher) {
	t.Helper()
	runner := &recordingRunner{}
	pub := &recordingPublisher{}
	c, err := NewBIOS(context.Background(), f.paths, runner.run, pub)
	if err != nil {
		t.Fatalf("NewBIOS() error = %v", err)
	}
	c.logger, _ = captureLogger()
	runner.runs = nil
	return c, runner, pub
}

func TestNewBIOS_Probe(t *testing.T) {
	tests := []struct {
		name       string
		gfx, sound bool
		wantChattr int
		wantErr    error
	}{
		{"both", true, true, 2, nil},
		{"gfx only", true, false, 1, nil},
		{"sound only", false, true, 1, nil},
		{"none", false, false, 0, ErrNotPresent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBIOSFixture(t, tt.gfx, tt.sound)
			runner := &recordingRunner{}

			c, err := NewBIOS(context.Background(), f.paths, runner.run, nil)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewBIOS() error = %v, want %v", err, tt.wantErr)
			}
			calls := runner.calls()
			if len(calls) != tt.wantChattr {
				t.Fatalf("chattr ran %d times, want %d", len(calls), tt.wantChattr)
			}
			for _, call := range calls {
				if call.name != f.paths.Chattr || call.args[0] != "-i" {
					t.Errorf("ran %s %v", call.name, call.args)
				}
			}
			if err == nil && (c.Supported().DedicatedGfx != tt.gfx || c.Supported().PostSound != tt.sound) {
				t.Errorf("Supported() = %+v", c.Supported())
			}
		})
	}
}

func TestNewBIOS_ChattrFailures(t *testing.T) {
	f := newBIOSFixture(t, true, false)

	runner := &recordingRunner{err: &process.ExitError{Command: "chattr -i", Code: 1}}
	if _, err := NewBIOS(context.Background(), f.paths, runner.run, nil); err != nil {
		t.Errorf("non-zero chattr exit should only warn, got %v", err)
	}

	runner = &recordingRunner{err: errors.New("exec: not found")}
	if _, err := NewBIOS(context.Background(), f.paths, runner.run, nil); err == nil {
		t.Error("chattr that cannot start should fail construction")
	}
}

func TestBIOS_SetDedicatedGfxUpdateInitramfs(t *testing.T) {
	f := newBIOSFixture(t, true, false)
	writeFile(t, f.paths.InitramfsTool, "")
	writeFile(t, f.paths.ModulesFile, "# modules\nloop\n")
	c, runner, pub := newTestBIOS(t, f)
	ctx := context.Background()

	if err := c.handle(ctx, SetDedicatedGfx{Dedicated: true}); err != nil {
		t.Fatalf("handle() error = %v", err)
	}

	data, _ := os.ReadFile(f.paths.GfxVar)
	if !bytes.Equal(data, []byte{0x07, 0, 0, 0, 1}) {
		t.Errorf("gfx var = % x, want only last byte set", data)
	}
	on, err := c.DedicatedGfx()
	if err != nil || !on {
		t.Errorf("DedicatedGfx() = %v, %v", on, err)
	}
	modules := readFile(t, f.paths.ModulesFile)
	for _, m := range []string{"loop", "nvidia", "nvidia-drm", "nvidia-modeset", "nvidia-uvm"} {
		if !strings.Contains(modules, m+"\n") {
			t.Errorf("modules file missing %s:\n%s", m, modules)
		}
	}
	calls := runner.calls()
	if len(calls) != 1 || calls[0].name != f.paths.InitramfsTool || strings.Join(calls[0].args, " ") != "-u" {
		t.Errorf("ran %+v, want update-initramfs -u", calls)
	}
	if evs := pub.published(); len(evs) != 1 || !evs[0].(events.GfxModeChangedEvent).Dedicated {
		t.Errorf("published %+v", evs)
	}

	if err := c.handle(ctx, SetDedicatedGfx{Dedicated: false}); err != nil {
		t.Fatal(err)
	}
	modules = readFile(t, f.paths.ModulesFile)
	if strings.Contains(modules, "nvidia") || !strings.Contains(modules, "loop") {
		t.Errorf("modules file after switching back:\n%s", modules)
	}
}

func TestBIOS_SetDedicatedGfxDracut(t *testing.T) {
	tests := []struct {
		dedicated bool
		want      string
	}{
		{true, "-f -q --add-drivers nvidia nvidia-drm nvidia-modeset nvidia-uvm"},
		{false, "-f -q"},
	}

	for _, tt := range tests {
		f := newBIOSFixture(t, true, false)
		writeFile(t, f.paths.Dracut, "")
		c, runner, _ := newTestBIOS(t, f)

		if err := c.handle(context.Background(), SetDedicatedGfx{Dedicated: tt.dedicated}); err != nil {
			t.Fatalf("handle() error = %v", err)
		}
		calls := runner.calls()
		if len(calls) != 1 || calls[0].name != f.paths.Dracut {
			t.Fatalf("ran %+v", calls)
		}
		if got := strings.Join(calls[0].args, " "); got != tt.want {
			t.Errorf("dracut args = %q, want %q", got, tt.want)
		}
		if len(calls[0].args) == 4 && calls[0].args[3] != "nvidia nvidia-drm nvidia-modeset nvidia-uvm" {
			t.Error("drivers must be passed as one argument")
		}
	}
}

func TestBIOS_InitramfsFailure(t *testing.T) {
	f := newBIOSFixture(t, true, false)
	writeFile(t, f.paths.Dracut, "")
	c, runner, pub := newTestBIOS(t, f)
	runner.err = &process.ExitError{Command: "dracut", Code: 1}

	if err := c.handle(context.Background(), SetDedicatedGfx{Dedicated: true}); err == nil {
		t.Fatal("handle() succeeded with a failing initramfs update")
	}
	if len(pub.published()) != 0 {
		t.Error("failed switch was notified")
	}
}

func TestBIOS_PostSound(t *testing.T) {
	f := newBIOSFixture(t, false, true)
	c, runner, pub := newTestBIOS(t, f)

	if err := c.handle(context.Background(), SetPostSound{Enabled: true}); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	on, err := c.PostSound()
	if err != nil || !on {
		t.Errorf("PostSound() = %v, %v", on, err)
	}
	if len(runner.calls()) != 0 {
		t.Error("POST sound change ran a helper")
	}
	if evs := pub.published(); len(evs) != 1 || !evs[0].(events.PostSoundChangedEvent).Enabled {
		t.Errorf("published %+v", evs)
	}

	if err := c.handle(context.Background(), SetDedicatedGfx{Dedicated: true}); !errors.Is(err, ErrNotPresent) {
		t.Errorf("gfx on a machine without it: %v", err)
	}
	if _, err := c.DedicatedGfx(); !errors.Is(err, ErrNotPresent) {
		t.Errorf("DedicatedGfx() error = %v", err)
	}
}
