package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is returned when sysfs content cannot be parsed.
var ErrParse = errors.New("parse failure")

// FanLevel is the fan/thermal policy ordinal written to sysfs.
type FanLevel uint8

// Fan levels as exposed by throttle_thermal_policy and fan_boost_mode.
const (
	FanNormal FanLevel = 0
	FanBoost  FanLevel = 1
	FanSilent FanLevel = 2
)

// FanLevels lists every valid level in ordinal order.
var FanLevels = []FanLevel{FanNormal, FanBoost, FanSilent}

func (l FanLevel) String() string {
	switch l {
	case FanNormal:
		return "normal"
	case FanBoost:
		return "boost"
	case FanSilent:
		return "silent"
	}
	return fmt.Sprintf("fan(%d)", uint8(l))
}

// Valid reports whether l is a known level.
func (l FanLevel) Valid() bool {
	return l <= FanSilent
}

// ParseFanLevelName resolves "normal", "boost" or "silent".
func ParseFanLevelName(name string) (FanLevel, error) {
	for _, l := range FanLevels {
		if strings.EqualFold(l.String(), strings.TrimSpace(name)) {
			return l, nil
		}
	}
	return 0, fmt.Errorf("%w: fan level %q", ErrParse, name)
}

// EncodeFanLevel returns the sysfs payload for a fan level.
func EncodeFanLevel(l FanLevel) []byte {
	return []byte(strconv.Itoa(int(l)) + "\n")
}

// DecodeFanLevel parses the first byte read from the fan sysfs node.
func DecodeFanLevel(b byte) (FanLevel, error) {
	if b < '0' || b > '9' {
		return 0, fmt.Errorf("%w: fan level byte %q is not a digit", ErrParse, b)
	}
	l := FanLevel(b - '0')
	if !l.Valid() {
		return 0, fmt.Errorf("%w: fan level %d out of range", ErrParse, l)
	}
	return l, nil
}

// CPUSettings is the CPU power state tied to one fan level.
type CPUSettings struct {
	MinPercentage uint8 `toml:"min_percentage" json:"min_percentage"`
	MaxPercentage uint8 `toml:"max_percentage" json:"max_percentage"`
	NoTurbo       bool  `toml:"no_turbo" json:"no_turbo"`
}

// DefaultCPUSettings leaves the CPU unrestricted.
func DefaultCPUSettings() CPUSettings {
	return CPUSettings{MinPercentage: 0, MaxPercentage: 100}
}

// EncodePercent formats a pstate percentage.
func EncodePercent(pct uint8) []byte {
	return []byte(strconv.Itoa(int(pct)))
}

// EncodeNoTurbo is the intel_pstate no_turbo payload: "1" disables turbo.
func EncodeNoTurbo(noTurbo bool) []byte {
	if noTurbo {
		return []byte("1")
	}
	return []byte("0")
}

// EncodeBoost is the cpufreq boost payload. Its sense is inverted relative
// to no_turbo: turbo disabled is boost "0".
func EncodeBoost(noTurbo bool) []byte {
	if noTurbo {
		return []byte("0")
	}
	return []byte("1")
}
