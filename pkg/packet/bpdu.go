package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/stella/l2switch/pkg/address"
)

// BPDU field index constants
const (
	// Bridge-group destination address
	BpduIdxDest = 0
	// 64-bit id of the sending bridge
	BpduIdxSenderBridgeID = 6
	// 32-bit path cost of the sender towards the root
	BpduIdxSenderPathCost = 14
	// 64-bit id of the root the sender believes in
	BpduIdxRootBridgeID = 18
	// Total BPDU length
	BpduLength = 26
)

// PathCostIncrement is added to the sender's cost for every hop
const PathCostIncrement = 10

// Bpdu is a decoded bridge protocol data unit
type Bpdu struct {
	SenderBridgeID address.BridgeID
	SenderPathCost uint32
	RootBridgeID   address.BridgeID
}

// IsBPDUDestination reports whether a frame addressed to mac is a BPDU
func IsBPDUDestination(mac address.MAC) bool {
	return mac == address.BridgeGroupMAC
}

// ParseBPDU decodes a BPDU frame
func ParseBPDU(data []byte) (Bpdu, error) {
	if len(data) < BpduLength {
		return Bpdu{}, fmt.Errorf("%w: %d bytes, expected %d", ErrMalformedBPDU, len(data), BpduLength)
	}

	return Bpdu{
		SenderBridgeID: address.BridgeID(binary.BigEndian.Uint64(data[BpduIdxSenderBridgeID:BpduIdxSenderPathCost])),
		SenderPathCost: binary.BigEndian.Uint32(data[BpduIdxSenderPathCost:BpduIdxRootBridgeID]),
		RootBridgeID:   address.BridgeID(binary.BigEndian.Uint64(data[BpduIdxRootBridgeID:BpduLength])),
	}, nil
}

// Marshal encodes the BPDU into its 26-byte wire form
func (b Bpdu) Marshal() []byte {
	data := make([]byte, BpduLength)
	copy(data[BpduIdxDest:BpduIdxSenderBridgeID], address.BridgeGroupMAC[:])
	binary.BigEndian.PutUint64(data[BpduIdxSenderBridgeID:BpduIdxSenderPathCost], uint64(b.SenderBridgeID))
	binary.BigEndian.PutUint32(data[BpduIdxSenderPathCost:BpduIdxRootBridgeID], b.SenderPathCost)
	binary.BigEndian.PutUint64(data[BpduIdxRootBridgeID:BpduLength], uint64(b.RootBridgeID))
	return data
}

// String returns a compact representation for logs
func (b Bpdu) String() string {
	return fmt.Sprintf("BPDU{sender=%s cost=%d root=%s}", b.SenderBridgeID, b.SenderPathCost, b.RootBridgeID)
}
