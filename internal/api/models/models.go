// Package models holds the request and response bodies of the HTTP API.
package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"dev" doc:"Daemon version"`
	GitCommit string `json:"git_commit" example:"abc123" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2026-10-01T12:00:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.11" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// EffectData is a keyboard LED effect. Parameters the mode does not use are ignored.
type EffectData struct {
	Mode      string   `json:"mode" example:"breathe" doc:"LED mode name"`
	Colour1   string   `json:"colour1,omitempty" example:"#ff0000" doc:"Primary colour"`
	Colour2   string   `json:"colour2,omitempty" example:"#0000ff" doc:"Secondary colour"`
	Speed     string   `json:"speed,omitempty" enum:"low,med,high" doc:"Animation speed"`
	Direction string   `json:"direction,omitempty" enum:"right,left,up,down" doc:"Animation direction"`
	Zones     []string `json:"zones,omitempty" maxItems:"4" doc:"Zone colours for multi-static"`
	Rows      [][]byte `json:"rows,omitempty" doc:"Pre-built per-key row messages, per-key mode only"`
}

type EffectRequest struct {
	Body EffectData
}

type BrightnessRequest struct {
	Body struct {
		Level uint8 `json:"level" example:"2" doc:"Brightness level 0-3"`
	}
}

type StepRequest struct {
	Body struct {
		Delta int `json:"delta" example:"1" doc:"Steps to move, negative to go back"`
	}
}

// LEDData is the persisted keyboard LED state.
type LEDData struct {
	Mode       string     `json:"mode" example:"static" doc:"Current mode"`
	Effect     EffectData `json:"effect" doc:"Saved parameters of the current mode"`
	Brightness uint8      `json:"brightness" example:"2" doc:"Brightness level 0-3"`
	Supported  []string   `json:"supported" doc:"Modes this keyboard supports"`
}

type LEDResponse struct {
	Body LEDData
}

type AnimeImageRequest struct {
	Body struct {
		Panes [][]byte `json:"panes" minItems:"2" maxItems:"2" doc:"Two pre-built 640-byte panes, base64"`
	}
}

type FanRequest struct {
	Body struct {
		Level string `json:"level" enum:"normal,boost,silent" example:"boost" doc:"Fan level"`
	}
}

type CPUProfileData struct {
	MinPercentage uint8 `json:"min_percentage" example:"0"`
	MaxPercentage uint8 `json:"max_percentage" example:"100"`
	NoTurbo       bool  `json:"no_turbo" example:"false"`
}

type FanData struct {
	Level    string                    `json:"level" example:"normal" doc:"Current fan level"`
	Ordinal  uint8                     `json:"ordinal" example:"0" doc:"Fan level as written to sysfs"`
	Profiles map[string]CPUProfileData `json:"profiles" doc:"CPU settings per fan level"`
}

type FanResponse struct {
	Body FanData
}

type ChargeRequest struct {
	Body struct {
		Limit uint8 `json:"limit" example:"80" doc:"Charge limit percent, the firmware accepts 20-100"`
	}
}

type ChargeData struct {
	Limit uint8 `json:"limit" example:"80" doc:"Charge limit percent"`
}

type ChargeResponse struct {
	Body ChargeData
}

type GfxRequest struct {
	Body struct {
		Dedicated bool `json:"dedicated" doc:"Use dedicated graphics from next boot"`
	}
}

type PostSoundRequest struct {
	Body struct {
		Enabled bool `json:"enabled" doc:"Play the POST boot sound"`
	}
}

// BIOSData reports the BIOS toggles. Values are absent when unsupported.
type BIOSData struct {
	DedicatedGfx *bool `json:"dedicated_gfx,omitempty" doc:"Dedicated graphics selected for next boot"`
	PostSound    *bool `json:"post_sound,omitempty" doc:"POST boot sound enabled"`
}

type BIOSResponse struct {
	Body BIOSData
}

// SupportedData lists what this machine supports.
type SupportedData struct {
	BoardName     string   `json:"board_name" example:"GA401IV"`
	ProductFamily string   `json:"product_family" example:"ROG Zephyrus G14"`
	Matched       bool     `json:"matched" doc:"Board found in the LED support table"`
	KbdLED        bool     `json:"kbd_led"`
	KbdModes      []string `json:"kbd_modes"`
	Anime         bool     `json:"anime"`
	FanCPU        bool     `json:"fan_cpu"`
	Charge        bool     `json:"charge"`
	DedicatedGfx  bool     `json:"dedicated_gfx"`
	PostSound     bool     `json:"post_sound"`
}

type SupportedResponse struct {
	Body SupportedData
}
