package nats

import (
	"encoding/json"
	"fmt"
)

// Subject prefixes for NATS topics.
const (
	SubjectCommandPrefix = "rogd.cmd"
	SubjectNotifyPrefix  = "rogd.notify"
)

// Command subjects.
const (
	SubjectLEDEffect         = SubjectCommandPrefix + ".led.effect"
	SubjectLEDBrightness     = SubjectCommandPrefix + ".led.brightness"
	SubjectLEDBrightnessStep = SubjectCommandPrefix + ".led.brightness.step"
	SubjectLEDModeStep       = SubjectCommandPrefix + ".led.mode.step"
	SubjectAnimeImage        = SubjectCommandPrefix + ".anime.image"
	SubjectAnimeSet          = SubjectCommandPrefix + ".anime.set"
	SubjectAnimeApply        = SubjectCommandPrefix + ".anime.apply"
	SubjectFanLevel          = SubjectCommandPrefix + ".fan.level"
	SubjectChargeLimit       = SubjectCommandPrefix + ".charge.limit"
	SubjectBIOSGfx           = SubjectCommandPrefix + ".bios.gfx"
	SubjectBIOSPostSound     = SubjectCommandPrefix + ".bios.post_sound"
)

// Notification kinds, the last token of a notify subject.
const (
	NotifyLEDMode     = "led_mode"
	NotifyBrightness  = "brightness"
	NotifyFanLevel    = "fan_level"
	NotifyChargeLimit = "charge_limit"
	NotifyGfxMode     = "gfx_mode"
	NotifyPostSound   = "post_sound"
)

// SubjectNotify returns the full NATS subject for a notification kind.
func SubjectNotify(kind string) string {
	return fmt.Sprintf("%s.%s", SubjectNotifyPrefix, kind)
}

// LevelMessage carries an absolute brightness level.
type LevelMessage struct {
	Level uint8 `json:"level"`
}

// StepMessage carries a relative step.
type StepMessage struct {
	Delta int `json:"delta"`
}

// ImageMessage carries two pre-built AniMe panes.
type ImageMessage struct {
	Panes [][]byte `json:"panes"`
}

// FanMessage selects a fan level by name.
type FanMessage struct {
	Level string `json:"level"`
}

// ChargeMessage sets the battery charge limit.
type ChargeMessage struct {
	Limit uint8 `json:"limit"`
}

// GfxMessage selects the graphics mode for the next boot.
type GfxMessage struct {
	Dedicated bool `json:"dedicated"`
}

// PostSoundMessage toggles the POST boot sound.
type PostSoundMessage struct {
	Enabled bool `json:"enabled"`
}

// Reply answers every command request.
type Reply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Marshal serializes the reply to JSON.
func (r Reply) Marshal() ([]byte, error) {
	return json.Marshal(r)
}

// UnmarshalReply deserializes a Reply from JSON.
func UnmarshalReply(data []byte) (Reply, error) {
	var r Reply
	err := json.Unmarshal(data, &r)
	return r, err
}

// decode unmarshals a request body. An empty body leaves v zero.
func decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
