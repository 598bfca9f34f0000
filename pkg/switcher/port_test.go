package switcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessPort(t *testing.T) {
	p, err := NewAccessPort(0, "eth0", 7)
	require.NoError(t, err)
	assert.False(t, p.IsTrunk())
	assert.Equal(t, uint16(7), p.AccessVlanID)
	assert.Equal(t, "eth0(vlan 7)", p.String())

	for _, vlan := range []int{0, 4095, -1} {
		_, err := NewAccessPort(0, "eth0", vlan)
		assert.Error(t, err, "vlan %d", vlan)
	}

	trunk := NewTrunkPort(1, "eth1")
	assert.True(t, trunk.IsTrunk())
	assert.Equal(t, "eth1(trunk)", trunk.String())
}

func TestValidatePorts(t *testing.T) {
	assert.Error(t, validatePorts(nil))
	assert.Error(t, validatePorts([]Port{NewTrunkPort(1, "eth1")}))
	assert.Error(t, validatePorts([]Port{{Index: 0, Name: "bad", VlanMode: VlanModeAccess}}))
	assert.NoError(t, validatePorts([]Port{access(t, 0, "eth0", 1), NewTrunkPort(1, "eth1")}))
}

func TestVlanMembers(t *testing.T) {
	ports := []Port{
		access(t, 0, "h1", 10),
		access(t, 1, "h2", 20),
		NewTrunkPort(2, "up"),
		access(t, 3, "h3", 10),
	}
	members := VlanMembers(ports)
	assert.Equal(t, []int{0, 3, 2}, members[10])
	assert.Equal(t, []int{1, 2}, members[20])
	assert.Len(t, members, 2)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "blocking", PortStateBlocking.String())
	assert.Equal(t, "listening", PortStateListening.String())
	assert.Equal(t, "trunk", VlanModeTrunk.String())
	assert.Equal(t, "RUNNING", StateRunning.String())
}
