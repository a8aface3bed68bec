package device

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

// ControlTimeout bounds every USB control transfer.
const ControlTimeout = 200 * time.Millisecond

const (
	hidSetReport    = 0x09
	hidRequestType  = 0x21 // host-to-device, class, interface
	animeReportWVal = 0x035e
)

// USB vendor and product ids of the AniMe matrix.
const (
	AsusVendorID   gousb.ID = 0x0b05
	AnimeProductID gousb.ID = 0x193b
)

// USBControl writes HID SET_REPORT control transfers to an open USB device.
type USBControl struct {
	ctx   *gousb.Context
	dev   *gousb.Device
	done  func()
	value uint16
}

// OpenUSBControl opens the first device matching vid:pid, detaches any kernel
// driver and claims the default interface.
func OpenUSBControl(vid, pid gousb.ID) (*USBControl, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("failed to open usb device %s:%s: %w", vid, pid, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: usb %s:%s", ErrNotFound, vid, pid)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to detach kernel driver: %w", err)
	}

	_, done, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("failed to claim interface: %w", err)
	}

	dev.ControlTimeout = ControlTimeout
	return &USBControl{ctx: ctx, dev: dev, done: done, value: animeReportWVal}, nil
}

// Write sends msg as a SET_REPORT control transfer.
func (u *USBControl) Write(msg []byte) error {
	_, err := u.dev.Control(hidRequestType, hidSetReport, u.value, 0, msg)
	return classifyUSB(err)
}

// Close releases the interface, device and libusb context.
func (u *USBControl) Close() error {
	u.done()
	err := u.dev.Close()
	if cerr := u.ctx.Close(); err == nil {
		err = cerr
	}
	return err
}

func classifyUSB(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gousb.ErrorTimeout) || errors.Is(err, gousb.ErrorBusy) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return fmt.Errorf("usb control transfer failed: %w", err)
}
