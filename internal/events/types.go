package events

import "encoding/json"

// Event type constants for kelindar/event.
const (
	TypeLEDModeChanged uint32 = iota + 1
	TypeBrightnessChanged
	TypeFanLevelChanged
	TypeChargeLimitChanged
	TypeGfxModeChanged
	TypePostSoundChanged
	TypeConnected
)

// Sources of a fan level change.
const (
	SourceCommand  = "command"
	SourceFirmware = "firmware"
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// LEDModeChangedEvent is published after a keyboard LED effect was written.
type LEDModeChangedEvent struct {
	Effect    json.RawMessage `json:"effect" doc:"The applied effect as JSON"`
	Timestamp string          `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for LEDModeChangedEvent.
func (e LEDModeChangedEvent) Type() uint32 { return TypeLEDModeChanged }

// BrightnessChangedEvent is published after the keyboard brightness was set.
type BrightnessChangedEvent struct {
	Level     uint8  `json:"level" example:"2" doc:"Brightness level 0-3"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for BrightnessChangedEvent.
func (e BrightnessChangedEvent) Type() uint32 { return TypeBrightnessChanged }

// FanLevelChangedEvent is published when the fan level changes, either by
// command or because firmware changed it behind the daemon.
type FanLevelChangedEvent struct {
	Level     uint8  `json:"level" example:"1" doc:"Fan level ordinal"`
	Name      string `json:"name" example:"boost" doc:"Fan level name"`
	Source    string `json:"source" example:"firmware" doc:"command or firmware"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for FanLevelChangedEvent.
func (e FanLevelChangedEvent) Type() uint32 { return TypeFanLevelChanged }

// ChargeLimitChangedEvent is published after the battery charge limit was written.
type ChargeLimitChangedEvent struct {
	Limit     uint8  `json:"limit" example:"80" doc:"Charge limit percent"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ChargeLimitChangedEvent.
func (e ChargeLimitChangedEvent) Type() uint32 { return TypeChargeLimitChanged }

// GfxModeChangedEvent is published after the dedicated graphics flag was written.
// The change takes effect on the next boot.
type GfxModeChangedEvent struct {
	Dedicated bool   `json:"dedicated" example:"true" doc:"Dedicated graphics enabled"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for GfxModeChangedEvent.
func (e GfxModeChangedEvent) Type() uint32 { return TypeGfxModeChanged }

// PostSoundChangedEvent is published after the POST boot sound flag was written.
type PostSoundChangedEvent struct {
	Enabled   bool   `json:"enabled" example:"false" doc:"POST sound enabled"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for PostSoundChangedEvent.
func (e PostSoundChangedEvent) Type() uint32 { return TypePostSoundChanged }

// ConnectedEvent is sent once to each new SSE client so headers flush before
// the first hardware notification.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Connection status"`
	Version   string `json:"version" example:"1.0.0" doc:"Daemon version"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// Type returns the event type identifier for ConnectedEvent.
func (e ConnectedEvent) Type() uint32 { return TypeConnected }
