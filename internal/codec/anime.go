package codec

import (
	"errors"
	"fmt"
)

// AnimePacketSize is the fixed size of every AniMe Matrix packet.
const AnimePacketSize = 640

// AnimePaneCount is the number of panes that make up one frame.
const AnimePaneCount = 2

const (
	animePage    = 0x5e
	animeWrite   = 0xc0
	animeInit    = 0xc2
	animeApply   = 0xc3
	animeSet     = 0xc4
	animeVendor  = "ASUS Tech.Inc."
	animeFlushID = 0x03
)

// ErrInvalidImage is returned when an image is not exactly two full panes.
var ErrInvalidImage = errors.New("invalid anime image")

// AnimeInitPackets returns the one-time handshake: the vendor identification
// packet followed by the INIT packet.
func AnimeInitPackets() [][]byte {
	ident := make([]byte, AnimePacketSize)
	ident[0] = animePage
	copy(ident[1:], animeVendor)

	init := make([]byte, AnimePacketSize)
	init[0] = animePage
	init[1] = animeInit

	return [][]byte{ident, init}
}

// AnimeFlushPacket makes the device latch the panes written before it.
func AnimeFlushPacket() []byte {
	p := make([]byte, AnimePacketSize)
	p[0], p[1], p[2] = animePage, animeWrite, animeFlushID
	return p
}

// AnimeSetPacket selects the previously set built-in mode.
func AnimeSetPacket() []byte {
	return animeModePacket(animeSet)
}

// AnimeApplyPacket applies the previously set built-in mode.
func AnimeApplyPacket() []byte {
	return animeModePacket(animeApply)
}

func animeModePacket(cmd byte) []byte {
	p := make([]byte, AnimePacketSize)
	p[0], p[1], p[2], p[3] = animePage, cmd, 0x01, 0x80
	return p
}

// ValidatePanes checks an image is two pre-built packets of the right size.
// Pane layout and brightness scaling are the caller's responsibility.
func ValidatePanes(panes [][]byte) error {
	if len(panes) != AnimePaneCount {
		return fmt.Errorf("%w: want %d panes, got %d", ErrInvalidImage, AnimePaneCount, len(panes))
	}
	for i, pane := range panes {
		if len(pane) != AnimePacketSize {
			return fmt.Errorf("%w: pane %d is %d bytes, want %d", ErrInvalidImage, i, len(pane), AnimePacketSize)
		}
	}
	return nil
}
