package ctrl

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/rogd/internal/codec"
	"github.com/smazurov/rogd/internal/events"
	"github.com/smazurov/rogd/internal/store"
)

type fanFixture struct {
	dir   string
	paths FanPaths
}

// newFanFixture lays out a fake sysfs. intel adds an intel_pstate directory.
func newFanFixture(t *testing.T, intel bool) fanFixture {
	t.Helper()
	dir := t.TempDir()
	f := fanFixture{
		dir: dir,
		paths: FanPaths{
			Policy:      filepath.Join(dir, "throttle_thermal_policy"),
			BoostMode:   filepath.Join(dir, "fan_boost_mode"),
			CPUBoost:    filepath.Join(dir, "boost"),
			IntelPstate: filepath.Join(dir, "intel_pstate"),
		},
	}
	writeFile(t, f.paths.Policy, "0\n")
	writeFile(t, f.paths.CPUBoost, "x")
	if intel {
		if err := os.Mkdir(f.paths.IntelPstate, 0o755); err != nil {
			t.Fatal(err)
		}
		for _, attr := range []string{"min_perf_pct", "max_perf_pct", "no_turbo"} {
			writeFile(t, filepath.Join(f.paths.IntelPstate, attr), "x")
		}
	}
	return f
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func newTestFanCPU(t *testing.T, f fanFixture) (*FanCPU, *recordingPublisher, string) {
	t.Helper()
	shared, path := newShared(t, testModes)
	pub := &recordingPublisher{}
	c, err := NewFanCPU(f.paths, shared, pub)
	if err != nil {
		t.Fatalf("NewFanCPU() error = %v", err)
	}
	c.logger, _ = captureLogger()
	return c, pub, path
}

func TestNewFanCPU_ResolvesPathOnce(t *testing.T) {
	dir := t.TempDir()
	policy := filepath.Join(dir, "throttle_thermal_policy")
	boost := filepath.Join(dir, "fan_boost_mode")

	tests := []struct {
		name    string
		files   []string
		want    string
		wantErr error
	}{
		{"policy wins", []string{policy, boost}, policy, nil},
		{"boost mode", []string{boost}, boost, nil},
		{"none", nil, "", ErrNotPresent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Remove(policy)
			os.Remove(boost)
			for _, f := range tt.files {
				writeFile(t, f, "0\n")
			}
			shared, _ := newShared(t, testModes)

			c, err := NewFanCPU(FanPaths{Policy: policy, BoostMode: boost}, shared, nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("NewFanCPU() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if c.Path() != tt.want {
				t.Errorf("Path() = %s, want %s", c.Path(), tt.want)
			}
		})
	}
}

func TestFanCPU_PowerStateTranslation(t *testing.T) {
	tests := []struct {
		name      string
		intel     bool
		noTurbo   bool
		wantBoost string
		wantIntel string
	}{
		{"intel no turbo", true, true, "x", "1"},
		{"intel turbo", true, false, "x", "0"},
		{"amd no turbo", false, true, "0", ""},
		{"amd turbo", false, false, "1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFanFixture(t, tt.intel)
			c, _, _ := newTestFanCPU(t, f)
			mutate(t, c.cfg, func(doc *store.Document) {
				doc.PowerProfiles.Boost = codec.CPUSettings{MinPercentage: 10, MaxPercentage: 90, NoTurbo: tt.noTurbo}
			})

			if err := c.handle(SetFanLevel{Level: codec.FanBoost}); err != nil {
				t.Fatalf("handle() error = %v", err)
			}

			if got := readFile(t, f.paths.CPUBoost); got != tt.wantBoost {
				t.Errorf("boost = %q, want %q", got, tt.wantBoost)
			}
			if tt.intel {
				pstate := f.paths.IntelPstate
				if got := readFile(t, filepath.Join(pstate, "no_turbo")); got != tt.wantIntel {
					t.Errorf("no_turbo = %q, want %q", got, tt.wantIntel)
				}
				if got := readFile(t, filepath.Join(pstate, "min_perf_pct")); got != "10" {
					t.Errorf("min_perf_pct = %q", got)
				}
				if got := readFile(t, filepath.Join(pstate, "max_perf_pct")); got != "90" {
					t.Errorf("max_perf_pct = %q", got)
				}
			}
		})
	}
}

func TestFanCPU_SetFanLevel(t *testing.T) {
	f := newFanFixture(t, false)
	c, pub, path := newTestFanCPU(t, f)

	if err := c.handle(SetFanLevel{Level: codec.FanSilent}); err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if got := readFile(t, f.paths.Policy); got != "2\n" {
		t.Errorf("fan node = %q", got)
	}
	if got := onDisk(t, path).PowerProfile; got != 2 {
		t.Errorf("persisted level = %d", got)
	}
	evs := pub.published()
	if len(evs) != 1 {
		t.Fatalf("published %d events", len(evs))
	}
	if ev := evs[0].(events.FanLevelChangedEvent); ev.Source != events.SourceCommand || ev.Name != "silent" {
		t.Errorf("event = %+v", ev)
	}

	if err := c.handle(SetFanLevel{Level: 3}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("level 3 error = %v, want ErrUnsupported", err)
	}
}

func TestFanCPU_SetFanLevelPowerFailure(t *testing.T) {
	f := newFanFixture(t, false)
	c, pub, path := newTestFanCPU(t, f)
	logger, logs := captureLogger()
	c.logger = logger

	// The cpufreq boost switch disappears after the strategy was chosen.
	if err := os.Remove(f.paths.CPUBoost); err != nil {
		t.Fatal(err)
	}

	if err := c.handle(SetFanLevel{Level: codec.FanBoost}); err == nil {
		t.Fatal("handle() succeeded with a failing CPU power write")
	}
	if got := onDisk(t, path).PowerProfile; got != 0 {
		t.Errorf("persisted level = %d, want 0 after a failed power write", got)
	}
	if n := len(pub.published()); n != 0 {
		t.Errorf("published %d events for a failed command", n)
	}
	if n := logs.count(slog.LevelWarn, "Fan level written but CPU power state failed, saved level unchanged"); n != 1 {
		t.Errorf("partial state warnings = %d, want 1", n)
	}
}

func TestFanCPU_DriftReconciliation(t *testing.T) {
	f := newFanFixture(t, false)
	c, pub, path := newTestFanCPU(t, f)
	mutate(t, c.cfg, func(doc *store.Document) {
		doc.PowerProfile = uint8(codec.FanNormal)
		doc.PowerProfiles.Boost.NoTurbo = true
	})

	// Firmware hotkey switched to boost.
	writeFile(t, f.paths.Policy, "1\n")
	c.checkDrift()

	if got := onDisk(t, path).PowerProfile; got != uint8(codec.FanBoost) {
		t.Errorf("persisted level = %d, want boost", got)
	}
	if got := readFile(t, f.paths.CPUBoost); got != "0" {
		t.Errorf("boost power state = %q, want \"0\"", got)
	}
	evs := pub.published()
	if len(evs) != 1 || evs[0].(events.FanLevelChangedEvent).Source != events.SourceFirmware {
		t.Fatalf("published %+v, want one firmware event", evs)
	}

	// Nothing changed since: the power state is not written again.
	writeFile(t, f.paths.CPUBoost, "x")
	c.checkDrift()
	if got := readFile(t, f.paths.CPUBoost); got != "x" {
		t.Errorf("power state rewritten without drift: %q", got)
	}
	if len(pub.published()) != 1 {
		t.Error("second cycle published again")
	}
}

func TestFanCPU_DriftParseFailureSkips(t *testing.T) {
	f := newFanFixture(t, false)
	c, pub, path := newTestFanCPU(t, f)
	logger, h := captureLogger()
	c.logger = logger

	for _, content := range []string{"z\n", "7\n"} {
		writeFile(t, f.paths.Policy, content)
		c.checkDrift()
	}

	if got := onDisk(t, path).PowerProfile; got != 0 {
		t.Errorf("persisted level = %d after malformed reads", got)
	}
	if len(pub.published()) != 0 {
		t.Error("malformed read published an event")
	}
	if h.count(slog.LevelWarn, "Fan level check failed") != 2 {
		t.Error("parse failures not logged")
	}
}

func TestFanCPU_DriftSkipsWhenBusy(t *testing.T) {
	f := newFanFixture(t, false)
	c, _, _ := newTestFanCPU(t, f)
	writeFile(t, f.paths.Policy, "2\n")

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = c.cfg.Do(func(*store.Config) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	done := make(chan struct{})
	go func() {
		c.checkDrift()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("checkDrift blocked on a held guard")
	}
	close(release)

	if got := c.cfg.Snapshot().PowerProfile; got != 0 {
		t.Errorf("level = %d, want skipped cycle", got)
	}
}

func TestFanCPU_ReloadInvalidLevelFallsBack(t *testing.T) {
	f := newFanFixture(t, false)
	c, _, path := newTestFanCPU(t, f)
	mutate(t, c.cfg, func(doc *store.Document) {
		doc.PowerProfile = 7
	})

	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := onDisk(t, path).PowerProfile; got != 0 {
		t.Errorf("persisted level = %d, want normal", got)
	}
	if got := readFile(t, f.paths.Policy); got != "0\n" {
		t.Errorf("fan node = %q", got)
	}
	if got := readFile(t, f.paths.CPUBoost); got != "1" {
		t.Errorf("boost = %q, want normal profile applied", got)
	}
}
