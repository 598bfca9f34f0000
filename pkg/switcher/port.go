package switcher

import (
	"errors"
	"fmt"
)

// 端口STP状态枚举
type PortState int

const (
	// 阻塞状态：不转发数据帧
	PortStateBlocking PortState = iota
	// 监听状态：可以转发数据帧
	PortStateListening
)

// String returns the state name
func (s PortState) String() string {
	switch s {
	case PortStateBlocking:
		return "blocking"
	case PortStateListening:
		return "listening"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// NoPort marks the absence of a root port
const NoPort = -1

// 端口结构体. Ports are built once from configuration and never change;
// the STP state of a port is owned by the STPEngine.
type Port struct {
	// 端口索引，与传输层一致 (0..N-1)
	Index int
	Name  string

	// VLAN配置
	VlanMode     VlanMode // 端口VLAN模式
	AccessVlanID uint16   // Access模式下的VLAN ID
}

// NewAccessPort creates an access port carrying untagged frames of one VLAN
func NewAccessPort(index int, name string, vlanID int) (Port, error) {
	if err := ValidateVlanID(vlanID); err != nil {
		return Port{}, fmt.Errorf("port %s: %w", name, err)
	}
	return Port{
		Index:        index,
		Name:         name,
		VlanMode:     VlanModeAccess,
		AccessVlanID: uint16(vlanID),
	}, nil
}

// NewTrunkPort creates a trunk port
func NewTrunkPort(index int, name string) Port {
	return Port{
		Index:    index,
		Name:     name,
		VlanMode: VlanModeTrunk,
	}
}

// IsTrunk reports whether the port is a trunk
func (p Port) IsTrunk() bool {
	return p.VlanMode == VlanModeTrunk
}

// String returns "name(trunk)" or "name(vlan N)"
func (p Port) String() string {
	if p.IsTrunk() {
		return fmt.Sprintf("%s(trunk)", p.Name)
	}
	return fmt.Sprintf("%s(vlan %d)", p.Name, p.AccessVlanID)
}

// validatePorts checks that indices are dense and in order
func validatePorts(ports []Port) error {
	if len(ports) == 0 {
		return errors.New("switch needs at least one port")
	}
	for i, p := range ports {
		if p.Index != i {
			return fmt.Errorf("port %q has index %d, expected %d", p.Name, p.Index, i)
		}
		if !p.IsTrunk() {
			if err := ValidateVlanID(int(p.AccessVlanID)); err != nil {
				return fmt.Errorf("port %s: %w", p.Name, err)
			}
		}
	}
	return nil
}
