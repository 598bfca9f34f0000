package switcher

import (
	"fmt"
)

// 端口VLAN模式枚举
type VlanMode int

const (
	// Access端口模式 - 只能属于一个VLAN，收发不带标签的帧
	VlanModeAccess VlanMode = iota
	// Trunk端口模式 - 交换机之间的链路，帧带VLAN标签
	VlanModeTrunk
)

// String returns the mode name as written in status output
func (m VlanMode) String() string {
	switch m {
	case VlanModeAccess:
		return "access"
	case VlanModeTrunk:
		return "trunk"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// 最小与最大VLAN ID
const (
	MinVlanID = 1
	MaxVlanID = 4094
)

// ValidateVlanID checks that id can be assigned to an access port
func ValidateVlanID(id int) error {
	if id < MinVlanID || id > MaxVlanID {
		return fmt.Errorf("invalid VLAN ID %d, must be between %d and %d", id, MinVlanID, MaxVlanID)
	}
	return nil
}

// VlanMembers groups access ports by VLAN. Trunk ports carry every VLAN and are listed under each.
func VlanMembers(ports []Port) map[uint16][]int {
	members := make(map[uint16][]int)
	var trunks []int
	for _, p := range ports {
		if p.IsTrunk() {
			trunks = append(trunks, p.Index)
			continue
		}
		members[p.AccessVlanID] = append(members[p.AccessVlanID], p.Index)
	}
	for vlan := range members {
		members[vlan] = append(members[vlan], trunks...)
	}
	return members
}
