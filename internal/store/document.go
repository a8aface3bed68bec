package store

import (
	"github.com/smazurov/rogd/internal/codec"
)

// DefaultChargeLimit is seeded into a fresh document.
const DefaultChargeLimit = 100

// Document is the complete persisted daemon state. It is always written whole.
type Document struct {
	PowerProfile      uint8          `toml:"power_profile" json:"power_profile"`
	BatChargeLimit    uint8          `toml:"bat_charge_limit" json:"bat_charge_limit"`
	KbdBootBrightness uint8          `toml:"kbd_boot_brightness" json:"kbd_boot_brightness"`
	KbdBacklightMode  codec.ModeID   `toml:"kbd_backlight_mode" json:"kbd_backlight_mode"`
	KbdBacklightModes []codec.Effect `toml:"kbd_backlight_modes" json:"kbd_backlight_modes"`
	PowerProfiles     PowerProfiles  `toml:"power_profiles" json:"power_profiles"`
}

// PowerProfiles holds the CPU settings applied for each fan level.
type PowerProfiles struct {
	Normal codec.CPUSettings `toml:"normal" json:"normal"`
	Boost  codec.CPUSettings `toml:"boost" json:"boost"`
	Silent codec.CPUSettings `toml:"silent" json:"silent"`
}

// For returns the CPU settings for a fan level. Unknown levels use Normal.
func (p PowerProfiles) For(level codec.FanLevel) codec.CPUSettings {
	switch level {
	case codec.FanBoost:
		return p.Boost
	case codec.FanSilent:
		return p.Silent
	default:
		return p.Normal
	}
}

// DefaultDocument builds the first-run document, seeding one saved effect per
// supported mode. Per-key effects are never saved.
func DefaultDocument(supported codec.ModeSet) Document {
	doc := Document{
		BatChargeLimit:    DefaultChargeLimit,
		KbdBacklightModes: make([]codec.Effect, 0, len(supported)),
		PowerProfiles: PowerProfiles{
			Normal: codec.DefaultCPUSettings(),
			Boost:  codec.DefaultCPUSettings(),
			Silent: codec.DefaultCPUSettings(),
		},
	}
	for _, mode := range supported {
		if mode == codec.ModePerKey {
			continue
		}
		doc.KbdBacklightModes = append(doc.KbdBacklightModes, codec.DefaultEffect(mode))
	}
	if modes := supported.Persistable(); len(modes) > 0 {
		doc.KbdBacklightMode = modes[0]
	}
	return doc
}

// SetModeData replaces the saved parameters for the effect's mode, adding an
// entry if none exists. Other modes keep their saved parameters.
func (d *Document) SetModeData(e codec.Effect) {
	e.Rows = nil
	for i := range d.KbdBacklightModes {
		if d.KbdBacklightModes[i].Mode == e.Mode {
			d.KbdBacklightModes[i] = e
			return
		}
	}
	d.KbdBacklightModes = append(d.KbdBacklightModes, e)
}

// ModeData returns the saved parameters for a mode.
func (d Document) ModeData(id codec.ModeID) (codec.Effect, bool) {
	for _, e := range d.KbdBacklightModes {
		if e.Mode == id {
			return e, true
		}
	}
	return codec.Effect{}, false
}

// RemoveMode drops the saved parameters for a mode.
func (d *Document) RemoveMode(id codec.ModeID) bool {
	for i, e := range d.KbdBacklightModes {
		if e.Mode == id {
			d.KbdBacklightModes = append(d.KbdBacklightModes[:i], d.KbdBacklightModes[i+1:]...)
			return true
		}
	}
	return false
}
