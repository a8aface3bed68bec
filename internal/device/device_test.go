package device

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/gousb"
)

func TestHidraw_WritesWholeMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hidraw0")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	h, err := OpenHidraw(path)
	if err != nil {
		t.Fatalf("OpenHidraw() error = %v", err)
	}

	first := []byte{0x5d, 0xb5}
	second := []byte{0x5d, 0xb4}
	for _, msg := range [][]byte{first, second} {
		if err := h.Write(msg); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	got, _ := os.ReadFile(path)
	if want := append(first, second...); !bytes.Equal(got, want) {
		t.Errorf("file = % x, want % x", got, want)
	}

	if err := h.Write(first); err == nil {
		t.Error("Write() after Close() succeeded")
	}
}

func TestOpenHidraw_Missing(t *testing.T) {
	if _, err := OpenHidraw(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("OpenHidraw() on missing node succeeded")
	}
}

func TestSysfsAttr(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "throttle_thermal_policy")
	if err := os.WriteFile(path, []byte("0\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteAttr(path, []byte("2\n")); err != nil {
		t.Fatalf("WriteAttr() error = %v", err)
	}
	b, err := ReadAttrByte(path)
	if err != nil || b != '2' {
		t.Errorf("ReadAttrByte() = %q, %v", b, err)
	}

	if err := WriteAttr(filepath.Join(dir, "missing"), []byte("1")); err == nil {
		t.Error("WriteAttr() created a missing attribute")
	}
	if !Exists(path) || Exists(filepath.Join(dir, "missing")) {
		t.Error("Exists() mismatch")
	}
}

func TestWriteVar(t *testing.T) {
	path := filepath.Join(t.TempDir(), "AsusPostLogoSound")
	if err := os.WriteFile(path, []byte{0x07, 0, 0, 0, 0}, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := WriteVar(path, []byte{0x07, 0, 0, 0, 1}); err != nil {
		t.Fatalf("WriteVar() error = %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, []byte{0x07, 0, 0, 0, 1}) {
		t.Errorf("file = % x", got)
	}

	if err := WriteVar(filepath.Join(t.TempDir(), "missing"), []byte{1}); err == nil {
		t.Error("WriteVar() created a missing variable")
	}
}

func TestClassifyUSB(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		timeout bool
	}{
		{"nil", nil, false},
		{"timeout", gousb.ErrorTimeout, true},
		{"busy", gousb.ErrorBusy, true},
		{"pipe", gousb.ErrorPipe, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyUSB(tt.err)
			if tt.err == nil {
				if got != nil {
					t.Errorf("classifyUSB(nil) = %v", got)
				}
				return
			}
			if IsTimeout(got) != tt.timeout {
				t.Errorf("IsTimeout(%v) = %v, want %v", got, IsTimeout(got), tt.timeout)
			}
			if !errors.Is(got, tt.err) {
				t.Errorf("classifyUSB lost the cause: %v", got)
			}
		})
	}
}

func TestMatchProduct(t *testing.T) {
	ids := []string{"1866", "19B6"}
	if !matchProduct("19b6\n", ids) || matchProduct("1234", ids) {
		t.Error("matchProduct() mismatch")
	}
}
