package codec

import (
	"fmt"
	"strings"
)

// NvidiaModules are the driver modules needed in the initramfs for dedicated graphics.
var NvidiaModules = []string{"nvidia", "nvidia-drm", "nvidia-modeset", "nvidia-uvm"}

// EFIBool returns the effective boolean stored in the last byte of an EFI variable.
func EFIBool(data []byte) (bool, error) {
	if len(data) == 0 {
		return false, fmt.Errorf("%w: empty EFI variable", ErrShortMessage)
	}
	return data[len(data)-1] != 0, nil
}

// SetEFIBool returns a copy of data with only the last byte set to 0 or 1.
func SetEFIBool(data []byte, on bool) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty EFI variable", ErrShortMessage)
	}
	out := make([]byte, len(data))
	copy(out, data)
	if on {
		out[len(out)-1] = 1
	} else {
		out[len(out)-1] = 0
	}
	return out, nil
}

// AddModules appends the missing modules to an initramfs module list.
func AddModules(list string, modules []string) string {
	present := make(map[string]bool)
	for _, line := range strings.Split(list, "\n") {
		present[strings.TrimSpace(line)] = true
	}
	var b strings.Builder
	b.WriteString(list)
	if list != "" && !strings.HasSuffix(list, "\n") {
		b.WriteByte('\n')
	}
	for _, m := range modules {
		if !present[m] {
			b.WriteString(m)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// RemoveModules drops every line naming one of modules.
func RemoveModules(list string, modules []string) string {
	drop := make(map[string]bool, len(modules))
	for _, m := range modules {
		drop[m] = true
	}
	lines := strings.Split(list, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !drop[strings.TrimSpace(line)] {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
