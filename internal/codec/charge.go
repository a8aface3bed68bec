package codec

import "strconv"

// Battery charge limit bounds accepted by the firmware.
const (
	ChargeLimitMin = 20
	ChargeLimitMax = 100
)

// ChargeLimitInRange reports whether limit is within 20-100 inclusive.
func ChargeLimitInRange(limit uint8) bool {
	return limit >= ChargeLimitMin && limit <= ChargeLimitMax
}

// EncodeChargeLimit returns the decimal ASCII payload for the threshold node.
func EncodeChargeLimit(limit uint8) []byte {
	return []byte(strconv.Itoa(int(limit)))
}
