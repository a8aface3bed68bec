// Package codec converts logical hardware commands into the exact byte
// buffers and sysfs payloads the devices expect, and back.
//
// Everything here is pure: no file or USB I/O happens in this package.
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// LEDMessageLen is the length of every keyboard LED message except per-key rows.
const LEDMessageLen = 17

// PerKeyMessageLen is the length of a per-key row message and the per-key init message.
const PerKeyMessageLen = 64

const (
	ledPage       = 0x5d
	ledModeCmd    = 0xb3
	ledApplyCmd   = 0xb4
	ledSetCmd     = 0xb5
	ledPerKeyCmd  = 0xbc
	multiZoneSize = 4
)

var (
	// ErrShortMessage is returned when a buffer is too short to decode.
	ErrShortMessage = errors.New("message too short")
	// ErrUnknownMode is returned for mode ids with no known encoding.
	ErrUnknownMode = errors.New("unknown LED mode")
	// ErrBadHeader is returned when a message does not start with the expected page and selector.
	ErrBadHeader = errors.New("unexpected message header")
)

// ModeID is the stable numeric identifier of a keyboard LED mode. It is the
// byte written at offset 3 of a mode message.
type ModeID uint8

// Keyboard LED modes.
const (
	ModeStatic      ModeID = 0x00
	ModeBreathe     ModeID = 0x01
	ModeStrobe      ModeID = 0x02
	ModeRainbow     ModeID = 0x03
	ModeStar        ModeID = 0x04
	ModeRain        ModeID = 0x05
	ModeHighlight   ModeID = 0x06
	ModeLaser       ModeID = 0x07
	ModeRipple      ModeID = 0x08
	ModePulse       ModeID = 0x0a
	ModeComet       ModeID = 0x0b
	ModeFlash       ModeID = 0x0c
	ModeMultiStatic ModeID = 0x0d
	ModePerKey      ModeID = 0xff
)

// params describes which parameters a mode carries.
type params struct {
	name      string
	colour1   bool
	colour2   bool
	speed     bool
	direction bool
}

var modeParams = map[ModeID]params{
	ModeStatic:      {name: "static", colour1: true},
	ModeBreathe:     {name: "breathe", colour1: true, colour2: true, speed: true},
	ModeStrobe:      {name: "strobe", speed: true},
	ModeRainbow:     {name: "rainbow", speed: true, direction: true},
	ModeStar:        {name: "star", colour1: true, colour2: true, speed: true},
	ModeRain:        {name: "rain", speed: true},
	ModeHighlight:   {name: "highlight", colour1: true, speed: true},
	ModeLaser:       {name: "laser", colour1: true, speed: true},
	ModeRipple:      {name: "ripple", colour1: true, speed: true},
	ModePulse:       {name: "pulse", colour1: true},
	ModeComet:       {name: "comet", colour1: true},
	ModeFlash:       {name: "flash", colour1: true},
	ModeMultiStatic: {name: "multi-static"},
	ModePerKey:      {name: "per-key"},
}

// String returns the mode name.
func (m ModeID) String() string {
	if p, ok := modeParams[m]; ok {
		return p.name
	}
	return fmt.Sprintf("mode(0x%02x)", uint8(m))
}

// Known reports whether the mode has an encoding.
func (m ModeID) Known() bool {
	_, ok := modeParams[m]
	return ok
}

// ParseMode resolves a mode by name.
func ParseMode(name string) (ModeID, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for id, p := range modeParams {
		if p.name == name {
			return id, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMode, name)
}

// ModeSet is the hardware-probed list of supported modes. The first entry is
// the fallback when persisted state names an unsupported mode.
type ModeSet []ModeID

// Contains reports whether id is supported.
func (s ModeSet) Contains(id ModeID) bool {
	for _, m := range s {
		if m == id {
			return true
		}
	}
	return false
}

// Persistable returns the modes that can be the saved current mode: all of
// them except PerKey, whose rows are never stored.
func (s ModeSet) Persistable() ModeSet {
	out := make(ModeSet, 0, len(s))
	for _, m := range s {
		if m != ModePerKey {
			out = append(out, m)
		}
	}
	return out
}

// Index returns the position of id in the set, or -1.
func (s ModeSet) Index(id ModeID) int {
	for i, m := range s {
		if m == id {
			return i
		}
	}
	return -1
}

// Colour is an RGB triple, serialised as "#rrggbb".
type Colour struct {
	R, G, B uint8
}

// MarshalText implements encoding.TextMarshaler.
func (c Colour) MarshalText() ([]byte, error) {
	return []byte(fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Colour) UnmarshalText(text []byte) error {
	s := strings.TrimPrefix(strings.TrimSpace(string(text)), "#")
	if len(s) != 6 {
		return fmt.Errorf("invalid colour %q", string(text))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid colour %q: %w", string(text), err)
	}
	c.R, c.G, c.B = b[0], b[1], b[2]
	return nil
}

// Speed is the animation speed byte.
type Speed uint8

// Animation speeds.
const (
	SpeedLow  Speed = 0xe1
	SpeedMed  Speed = 0xeb
	SpeedHigh Speed = 0xf5
)

func (s Speed) String() string {
	switch s {
	case SpeedLow:
		return "low"
	case SpeedMed:
		return "med"
	case SpeedHigh:
		return "high"
	}
	return fmt.Sprintf("speed(0x%02x)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Speed) MarshalText() ([]byte, error) {
	switch s {
	case SpeedLow, SpeedMed, SpeedHigh:
		return []byte(s.String()), nil
	}
	return nil, fmt.Errorf("invalid speed 0x%02x", uint8(s))
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Speed) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "low":
		*s = SpeedLow
	case "med", "medium":
		*s = SpeedMed
	case "high":
		*s = SpeedHigh
	default:
		return fmt.Errorf("invalid speed %q", string(text))
	}
	return nil
}

// Direction is the animation direction byte.
type Direction uint8

// Animation directions.
const (
	DirectionRight Direction = iota
	DirectionLeft
	DirectionUp
	DirectionDown
)

var directionNames = [...]string{"right", "left", "up", "down"}

func (d Direction) String() string {
	if int(d) < len(directionNames) {
		return directionNames[d]
	}
	return fmt.Sprintf("direction(%d)", uint8(d))
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	if int(d) >= len(directionNames) {
		return nil, fmt.Errorf("invalid direction %d", uint8(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	for i, name := range directionNames {
		if strings.EqualFold(name, string(text)) {
			*d = Direction(i)
			return nil
		}
	}
	return fmt.Errorf("invalid direction %q", string(text))
}

// Effect is one keyboard LED mode with the parameters it uses. Fields not
// meaningful to Mode are left zero and omitted when serialised.
type Effect struct {
	Mode      ModeID     `toml:"mode" json:"mode"`
	Colour1   *Colour    `toml:"colour1,omitempty" json:"colour1,omitempty"`
	Colour2   *Colour    `toml:"colour2,omitempty" json:"colour2,omitempty"`
	Speed     *Speed     `toml:"speed,omitempty" json:"speed,omitempty"`
	Direction *Direction `toml:"direction,omitempty" json:"direction,omitempty"`
	Zones     []Colour   `toml:"zones,omitempty" json:"zones,omitempty"`

	// Rows holds pre-built per-key row messages. Only used with ModePerKey and never persisted.
	Rows [][]byte `toml:"-" json:"rows,omitempty"`
}

// DefaultEffect returns the effect seeded into a fresh config for mode.
func DefaultEffect(mode ModeID) Effect {
	e := Effect{Mode: mode}
	p, ok := modeParams[mode]
	if !ok {
		return e
	}
	if p.colour1 {
		e.Colour1 = &Colour{R: 0xff}
	}
	if p.colour2 {
		e.Colour2 = &Colour{}
	}
	if p.speed {
		s := SpeedMed
		e.Speed = &s
	}
	if p.direction {
		d := DirectionRight
		e.Direction = &d
	}
	if mode == ModeMultiStatic {
		e.Zones = []Colour{{R: 0xff}, {R: 0xff, G: 0xff}, {G: 0xff}, {B: 0xff}}
	}
	return e
}

// Normalize drops parameters the mode does not carry and fills in defaults
// for the ones it does.
func (e Effect) Normalize() Effect {
	p, ok := modeParams[e.Mode]
	if !ok {
		return e
	}
	def := DefaultEffect(e.Mode)
	out := Effect{Mode: e.Mode, Rows: e.Rows}
	if p.colour1 {
		out.Colour1 = pick(e.Colour1, def.Colour1)
	}
	if p.colour2 {
		out.Colour2 = pick(e.Colour2, def.Colour2)
	}
	if p.speed {
		out.Speed = pick(e.Speed, def.Speed)
	}
	if p.direction {
		out.Direction = pick(e.Direction, def.Direction)
	}
	if e.Mode == ModeMultiStatic {
		out.Zones = make([]Colour, multiZoneSize)
		copy(out.Zones, def.Zones)
		copy(out.Zones, e.Zones)
	}
	return out
}

func pick[T any](v, def *T) *T {
	if v != nil {
		c := *v
		return &c
	}
	return def
}

// EncodeEffect builds the mode message(s) for a built-in effect. Plain modes
// produce one message, MultiStatic produces four (zones 1..4) that must be
// sent in order. SET and APPLY are not included.
func EncodeEffect(e Effect) ([][]byte, error) {
	if e.Mode == ModePerKey {
		return nil, fmt.Errorf("%w: per-key effects are written as rows", ErrUnknownMode)
	}
	if !e.Mode.Known() {
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownMode, uint8(e.Mode))
	}
	e = e.Normalize()

	if e.Mode == ModeMultiStatic {
		msgs := make([][]byte, multiZoneSize)
		for i := range msgs {
			msg := ledModeHeader()
			msg[2] = byte(i + 1)
			msg[3] = byte(ModeStatic)
			putColour(msg[4:7], e.Zones[i])
			msgs[i] = msg
		}
		return msgs, nil
	}

	msg := ledModeHeader()
	msg[3] = byte(e.Mode)
	if e.Colour1 != nil {
		putColour(msg[4:7], *e.Colour1)
	}
	if e.Speed != nil {
		msg[7] = byte(*e.Speed)
	}
	if e.Direction != nil {
		msg[8] = byte(*e.Direction)
	}
	if e.Colour2 != nil {
		putColour(msg[10:13], *e.Colour2)
	}
	if e.Mode == ModeStar {
		msg[9] = 0x24
	}
	return [][]byte{msg}, nil
}

// DecodeEffect parses a single plain mode message.
func DecodeEffect(msg []byte) (Effect, error) {
	if len(msg) < LEDMessageLen {
		return Effect{}, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(msg))
	}
	if msg[0] != ledPage || msg[1] != ledModeCmd {
		return Effect{}, fmt.Errorf("%w: % x", ErrBadHeader, msg[:2])
	}
	mode := ModeID(msg[3])
	p, ok := modeParams[mode]
	if !ok || mode == ModeMultiStatic || mode == ModePerKey {
		return Effect{}, fmt.Errorf("%w: 0x%02x", ErrUnknownMode, msg[3])
	}
	e := Effect{Mode: mode}
	if p.colour1 {
		c := Colour{R: msg[4], G: msg[5], B: msg[6]}
		e.Colour1 = &c
	}
	if p.speed {
		s := Speed(msg[7])
		e.Speed = &s
	}
	if p.direction {
		d := Direction(msg[8])
		e.Direction = &d
	}
	if p.colour2 {
		c := Colour{R: msg[10], G: msg[11], B: msg[12]}
		e.Colour2 = &c
	}
	return e, nil
}

// SetMessage returns the SET message.
func SetMessage() []byte {
	msg := make([]byte, LEDMessageLen)
	msg[0], msg[1] = ledPage, ledSetCmd
	return msg
}

// ApplyMessage returns the APPLY message. The device ignores mode changes until it is sent.
func ApplyMessage() []byte {
	msg := make([]byte, LEDMessageLen)
	msg[0], msg[1] = ledPage, ledApplyCmd
	return msg
}

// BrightnessMessage encodes a keyboard brightness level (0-3).
func BrightnessMessage(level uint8) []byte {
	msg := make([]byte, LEDMessageLen)
	copy(msg, []byte{0x5a, 0xba, 0xc5, 0xc4})
	msg[4] = level
	return msg
}

// MaxBrightness is the highest keyboard brightness level.
const MaxBrightness = 3

// PerKeyInitMessage is sent in place of an empty per-key effect.
func PerKeyInitMessage() []byte {
	msg := make([]byte, PerKeyMessageLen)
	msg[0], msg[1] = ledPage, ledPerKeyCmd
	return msg
}

func ledModeHeader() []byte {
	msg := make([]byte, LEDMessageLen)
	msg[0], msg[1] = ledPage, ledModeCmd
	return msg
}

func putColour(dst []byte, c Colour) {
	dst[0], dst[1], dst[2] = c.R, c.G, c.B
}
