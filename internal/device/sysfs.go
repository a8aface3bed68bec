package device

import (
	"fmt"
	"os"
)

// WriteAttr writes value to a sysfs attribute. The attribute must exist.
func WriteAttr(path string, value []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(value); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadAttrByte returns the first byte of a sysfs attribute.
func ReadAttrByte(path string) (byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, 1)
	if _, err := f.Read(buf); err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf[0], nil
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// WriteVar writes data in one write call without truncating the file first.
// efivarfs rejects truncation and partial writes.
func WriteVar(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	n, err := f.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if n != len(data) {
		return fmt.Errorf("short write to %s: %d of %d bytes", path, n, len(data))
	}
	return nil
}
