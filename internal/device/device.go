// Package device talks to the raw hardware endpoints: hidraw nodes, USB
// control transfers and sysfs attribute files.
package device

import (
	"errors"
)

var (
	// ErrTimeout is returned when a USB transfer does not complete in time.
	// Callers treat it as non-fatal.
	ErrTimeout = errors.New("transfer timed out")
	// ErrNotFound is returned when no matching device node exists.
	ErrNotFound = errors.New("device not found")
)

// Writer sends one complete message to a device.
type Writer interface {
	Write(msg []byte) error
}

// IsTimeout reports whether err is a transfer timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
