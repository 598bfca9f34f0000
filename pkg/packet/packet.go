// Package packet decodes and rewrites Ethernet frames and spanning-tree BPDUs
package packet

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/stella/l2switch/pkg/address"
)

// Ethernet header field index constants
const (
	// Destination MAC address
	FrameIdxDest = 0
	// Source MAC address
	FrameIdxSrc = 6
	// EtherType, or tag protocol id when the frame carries a VLAN tag
	FrameIdxEtherType = 12
	// Tag control information of a tagged frame
	FrameIdxTCI = 14
	// Real EtherType of a tagged frame
	FrameIdxTaggedEtherType = 16

	// Minimum length of an untagged header
	HeaderLength = 14
	// Minimum length of a tagged header
	TaggedHeaderLength = 18
	// Size of the VLAN tag inserted after the MAC addresses
	VlanTagLength = 4
)

// VLAN tag constants
const (
	// TagProtocolID marks a tagged frame. The switches of this network use 0x8200
	// rather than the 802.1Q 0x8100, and must keep doing so to interoperate.
	TagProtocolID uint16 = 0x8200
	// VlanIDMask selects the 12-bit VLAN id from the TCI
	VlanIDMask uint16 = 0x0fff
	// NoVlan is reported for untagged frames
	NoVlan = -1
)

// Sentinel errors
var (
	// ErrMalformedFrame is returned for frames shorter than their header
	ErrMalformedFrame = errors.New("stella: malformed frame")
	// ErrMalformedBPDU is returned for BPDUs shorter than the fixed layout
	ErrMalformedBPDU = errors.New("stella: malformed bpdu")
)

// Header is the decoded Ethernet header of a frame
type Header struct {
	Dst       address.MAC
	Src       address.MAC
	EtherType uint16
	// VlanID is the 12-bit id carried in the tag, or NoVlan
	VlanID int
}

// Tagged reports whether the frame carried a VLAN tag
func (h Header) Tagged() bool {
	return h.VlanID != NoVlan
}

// DecodeHeader decodes the Ethernet header of a raw frame
func DecodeHeader(data []byte) (Header, error) {
	if len(data) < HeaderLength {
		return Header{}, fmt.Errorf("%w: %d bytes, minimum is %d", ErrMalformedFrame, len(data), HeaderLength)
	}

	var h Header
	copy(h.Dst[:], data[FrameIdxDest:FrameIdxSrc])
	copy(h.Src[:], data[FrameIdxSrc:FrameIdxEtherType])
	h.EtherType = binary.BigEndian.Uint16(data[FrameIdxEtherType:FrameIdxTCI])
	h.VlanID = NoVlan

	if h.EtherType == TagProtocolID {
		if len(data) < TaggedHeaderLength {
			return Header{}, fmt.Errorf("%w: tagged frame of %d bytes, minimum is %d",
				ErrMalformedFrame, len(data), TaggedHeaderLength)
		}
		tci := binary.BigEndian.Uint16(data[FrameIdxTCI:FrameIdxTaggedEtherType])
		h.VlanID = int(tci & VlanIDMask)
		h.EtherType = binary.BigEndian.Uint16(data[FrameIdxTaggedEtherType:TaggedHeaderLength])
	}

	return h, nil
}

// VlanTag builds the 4-byte tag for a VLAN id. Only the low 12 bits are used.
func VlanTag(vlanID uint16) []byte {
	tag := make([]byte, VlanTagLength)
	binary.BigEndian.PutUint16(tag[0:2], TagProtocolID)
	binary.BigEndian.PutUint16(tag[2:4], vlanID&VlanIDMask)
	return tag
}

// AddVlanTag returns a copy of the frame with a tag inserted after the MAC addresses
func AddVlanTag(data []byte, vlanID uint16) []byte {
	if len(data) < FrameIdxEtherType {
		return append([]byte(nil), data...)
	}

	out := make([]byte, 0, len(data)+VlanTagLength)
	out = append(out, data[:FrameIdxEtherType]...)
	out = append(out, VlanTag(vlanID)...)
	out = append(out, data[FrameIdxEtherType:]...)
	return out
}

// RemoveVlanTag returns a copy of the frame without the 4 bytes following the MAC addresses
func RemoveVlanTag(data []byte) []byte {
	if len(data) < FrameIdxTaggedEtherType {
		return append([]byte(nil), data...)
	}

	out := make([]byte, 0, len(data)-VlanTagLength)
	out = append(out, data[:FrameIdxEtherType]...)
	out = append(out, data[FrameIdxTaggedEtherType:]...)
	return out
}
