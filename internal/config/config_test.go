package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/cobra"
)

type testOptions struct {
	Config string

	Listen      string   `toml:"server.listen" env:"LISTEN"`
	Recover     bool     `toml:"store.recover" env:"RECOVER"`
	Workers     int      `toml:"server.workers" env:"WORKERS"`
	Brightness  uint8    `toml:"led.boot_brightness" env:"BOOT_BRIGHTNESS"`
	AllowedIPs  []string `toml:"server.allowed" env:"ALLOWED"`
	StatePath   string   `toml:"store.path" env:"STATE_PATH"`
	DMIRoot     string   `name:"dmi-root" toml:"hardware.dmi_root"`
	unexported  string   `toml:"server.listen"`
}

const testSettings = `
[server]
listen = ":9000"
workers = 4
allowed = ["127.0.0.1", "::1"]

[store]
recover = true
path = "/tmp/state.toml"

[led]
boot_brightness = 2
`

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rogd.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	opts := &testOptions{Config: writeSettings(t, testSettings)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	want := testOptions{
		Config:     opts.Config,
		Listen:     ":9000",
		Recover:    true,
		Workers:    4,
		Brightness: 2,
		AllowedIPs: []string{"127.0.0.1", "::1"},
		StatePath:  "/tmp/state.toml",
	}
	if !reflect.DeepEqual(*opts, want) {
		t.Errorf("LoadConfig() = %+v, want %+v", *opts, want)
	}
}

func TestLoadConfigEnvOverridesTOML(t *testing.T) {
	t.Setenv("ROGD_LISTEN", ":7000")
	t.Setenv("ROGD_RECOVER", "false")
	t.Setenv("ROGD_BOOT_BRIGHTNESS", "3")
	t.Setenv("ROGD_ALLOWED", "10.0.0.1, 10.0.0.2")

	opts := &testOptions{Config: writeSettings(t, testSettings)}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if opts.Listen != ":7000" || opts.Recover || opts.Brightness != 3 {
		t.Errorf("env did not override: %+v", opts)
	}
	if !reflect.DeepEqual(opts.AllowedIPs, []string{"10.0.0.1", "10.0.0.2"}) {
		t.Errorf("AllowedIPs = %v", opts.AllowedIPs)
	}
	if opts.Workers != 4 {
		t.Errorf("Workers = %d, want TOML value 4", opts.Workers)
	}
}

func TestLoadConfigCLIWins(t *testing.T) {
	t.Setenv("ROGD_LISTEN", ":7000")

	opts := &testOptions{Config: writeSettings(t, testSettings)}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "")
	if err := cmd.Flags().Parse([]string{"--listen", ":6000"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Listen != ":6000" {
		t.Errorf("Listen = %s, want CLI value", opts.Listen)
	}
	if opts.StatePath != "/tmp/state.toml" {
		t.Errorf("StatePath = %s, want TOML value", opts.StatePath)
	}
}

func TestLoadConfigCLIWinsWithNameTag(t *testing.T) {
	opts := &testOptions{Config: writeSettings(t, "[hardware]\ndmi_root = \"/from/file\"\n")}
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&opts.DMIRoot, "dmi-root", "", "")
	if err := cmd.Flags().Parse([]string{"--dmi-root", "/from/cli"}); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(opts, cmd); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.DMIRoot != "/from/cli" {
		t.Errorf("DMIRoot = %s, want CLI value", opts.DMIRoot)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &testOptions{
		Config: filepath.Join(t.TempDir(), "absent.toml"),
		Listen: ":8080",
	}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if opts.Listen != ":8080" {
		t.Errorf("default overwritten: %s", opts.Listen)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	opts := &testOptions{Config: writeSettings(t, "[server\nlisten=")}
	if err := LoadConfig(opts, nil); err == nil {
		t.Error("LoadConfig() accepted invalid TOML")
	}
}

func TestSetFieldValueOverflow(t *testing.T) {
	var opts testOptions
	field := reflect.ValueOf(&opts).Elem().FieldByName("Brightness")

	setFieldValue(field, int64(300))
	if opts.Brightness != 0 {
		t.Errorf("overflowing value applied: %d", opts.Brightness)
	}
	setFieldValueFromString(field, "-1")
	if opts.Brightness != 0 {
		t.Errorf("negative value applied: %d", opts.Brightness)
	}
}

func TestFieldNameToFlag(t *testing.T) {
	tests := map[string]string{
		"Listen":        "listen",
		"ConfigRecover": "config-recover",
		"LoggingLevel":  "logging-level",
	}
	for in, want := range tests {
		if got := fieldNameToFlag(in); got != want {
			t.Errorf("fieldNameToFlag(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]string
		level   string
	}{
		{
			name: "modules table",
			content: `[logging]
level = "debug"
format = "json"
[logging.modules]
kbdled = "warn"
fancpu = "error"
`,
			level: "debug",
			want:  map[string]string{"kbdled": "warn", "fancpu": "error"},
		},
		{
			name: "flat keys",
			content: `[logging]
level = "warn"
api = "debug"
`,
			level: "warn",
			want:  map[string]string{"api": "debug"},
		},
		{
			name:    "no logging table",
			content: `listen = ":1"`,
			level:   "info",
			want:    map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadLoggingConfig(writeSettings(t, tt.content))
			if cfg.Level != tt.level {
				t.Errorf("Level = %s, want %s", cfg.Level, tt.level)
			}
			if !reflect.DeepEqual(cfg.Modules, tt.want) {
				t.Errorf("Modules = %v, want %v", cfg.Modules, tt.want)
			}
		})
	}

	if cfg := LoadLoggingConfig(""); cfg.Level != "info" || cfg.Format != "text" {
		t.Errorf("defaults = %+v", cfg)
	}
	if _, err := ReadLoggingConfig(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("ReadLoggingConfig() on a missing file returned no error")
	}
}
