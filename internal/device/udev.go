package device

import (
	"fmt"
	"strings"

	"github.com/jochenvg/go-udev"
)

// FindHidraw returns the /dev/hidrawN node whose parent USB device has one of
// the given product ids (lowercase hex, e.g. "1866").
func FindHidraw(productIDs ...string) (string, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("hidraw"); err != nil {
		return "", fmt.Errorf("udev match failed: %w", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return "", fmt.Errorf("udev enumerate failed: %w", err)
	}

	for _, dev := range devices {
		parent := dev.ParentWithSubsystemDevtype("usb", "usb_device")
		if parent == nil {
			continue
		}
		if matchProduct(parent.SysattrValue("idProduct"), productIDs) && dev.Devnode() != "" {
			return dev.Devnode(), nil
		}
	}
	return "", fmt.Errorf("%w: no hidraw node for products %s", ErrNotFound, strings.Join(productIDs, ","))
}

func matchProduct(id string, productIDs []string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, want := range productIDs {
		if id == strings.ToLower(want) {
			return true
		}
	}
	return false
}
