package address

import (
	"fmt"
	"strconv"
)

// BridgeID is the 64-bit spanning-tree identity of a switch.
// A lower value means a higher priority in root election.
type BridgeID uint64

// ParseBridgeID parses a decimal bridge priority as written in switch configuration files
func ParseBridgeID(s string) (BridgeID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid bridge id %q: %w", s, err)
	}
	return BridgeID(v), nil
}

// String returns the decimal form of the bridge id
func (b BridgeID) String() string {
	return strconv.FormatUint(uint64(b), 10)
}

// Compare returns -1, 0, or 1 if the receiver is less than, equal to, or greater than other
func (b BridgeID) Compare(other BridgeID) int {
	switch {
	case b < other:
		return -1
	case b > other:
		return 1
	default:
		return 0
	}
}

// Better reports whether b wins root election against other
func (b BridgeID) Better(other BridgeID) bool {
	return b < other
}
