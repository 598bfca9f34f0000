// Package address provides the link-layer identities used by the switch
package address

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	// MACLength is the byte length of a MAC address
	MACLength = 6
)

// MAC represents an Ethernet MAC address. It is a value type so it can key maps.
type MAC [MACLength]byte

// BroadcastMAC is ff:ff:ff:ff:ff:ff
var BroadcastMAC = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// BridgeGroupMAC is the reserved bridge-group multicast address BPDUs are sent to
var BridgeGroupMAC = MAC{0x01, 0x80, 0xc2, 0x00, 0x00, 0x00}

// NewMACFromString creates a MAC address from a string
func NewMACFromString(s string) (MAC, error) {
	// Supports formats like: 00:11:22:33:44:55 or 001122334455
	s = strings.ReplaceAll(s, ":", "")
	s = strings.ReplaceAll(s, "-", "")
	if len(s) != MACLength*2 {
		return MAC{}, errors.New("invalid MAC address length")
	}

	bytes, err := hex.DecodeString(s)
	if err != nil {
		return MAC{}, err
	}

	var mac MAC
	copy(mac[:], bytes)
	return mac, nil
}

// NewMACFromBytes creates a MAC address from a byte slice
func NewMACFromBytes(b []byte) (MAC, error) {
	if len(b) != MACLength {
		return MAC{}, errors.New("invalid MAC address length")
	}

	var mac MAC
	copy(mac[:], b)
	return mac, nil
}

// Bytes returns the byte representation of the MAC address
func (m MAC) Bytes() []byte {
	b := make([]byte, MACLength)
	copy(b, m[:])
	return b
}

// String returns the string representation of the MAC address (xx:xx:xx:xx:xx:xx)
func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		m[0], m[1], m[2], m[3], m[4], m[5])
}

// IsBroadcast checks if this is the broadcast MAC address
func (m MAC) IsBroadcast() bool {
	return m == BroadcastMAC
}

// IsMulticast checks if the group bit is set. Broadcast is also multicast.
func (m MAC) IsMulticast() bool {
	return (m[0] & 0x01) == 0x01
}

// IsUnicast is the complement of IsMulticast
func (m MAC) IsUnicast() bool {
	return !m.IsMulticast()
}

// Compare compares two MAC addresses
func (m MAC) Compare(other MAC) int {
	for i := 0; i < MACLength; i++ {
		if m[i] < other[i] {
			return -1
		}
		if m[i] > other[i] {
			return 1
		}
	}
	return 0
}
