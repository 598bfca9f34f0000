package packet

import (
	"fmt"
	"strings"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Describe renders a frame for debug logs. gopacket does not know the 0x8200
// tag, so tagged frames are untagged first and the VLAN id is printed separately.
func Describe(data []byte) string {
	h, err := DecodeHeader(data)
	if err != nil {
		return fmt.Sprintf("malformed(%d bytes)", len(data))
	}
	if IsBPDUDestination(h.Dst) {
		if bpdu, err := ParseBPDU(data); err == nil {
			return bpdu.String()
		}
	}

	inner := data
	if h.Tagged() {
		inner = RemoveVlanTag(data)
	}

	pkt := gopacket.NewPacket(inner, layers.LayerTypeEthernet, gopacket.NoCopy)

	var b strings.Builder
	fmt.Fprintf(&b, "dst=%s src=%s type=0x%04x", h.Dst, h.Src, h.EtherType)
	if h.Tagged() {
		fmt.Fprintf(&b, " vlan=%d", h.VlanID)
	}
	fmt.Fprintf(&b, " len=%d", len(data))

	names := make([]string, 0, 4)
	for _, l := range pkt.Layers() {
		names = append(names, l.LayerType().String())
	}
	if len(names) > 0 {
		fmt.Fprintf(&b, " layers=%s", strings.Join(names, "/"))
	}
	return b.String()
}
