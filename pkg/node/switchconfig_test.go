package node

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella/l2switch/pkg/address"
	"github.com/stella/l2switch/pkg/switcher"
)

func TestParseSwitchConfig(t *testing.T) {
	sc, err := ParseSwitchConfig(strings.NewReader("14\nr-0 1\n\nr-1 2\nrr-0-1 T\n"))
	require.NoError(t, err)
	assert.Equal(t, address.BridgeID(14), sc.BridgeID)
	assert.Equal(t, []PortEntry{
		{Name: "r-0", VlanID: 1},
		{Name: "r-1", VlanID: 2},
		{Name: "rr-0-1", Trunk: true},
	}, sc.Entries)
}

func TestParseSwitchConfigErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"bad priority", "high\n"},
		{"negative priority", "-1\n"},
		{"missing field", "1\neth0\n"},
		{"extra field", "1\neth0 1 2\n"},
		{"vlan zero", "1\neth0 0\n"},
		{"vlan too large", "1\neth0 4095\n"},
		{"vlan not a number", "1\neth0 t\n"},
		{"duplicate port", "1\neth0 1\neth0 T\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSwitchConfig(strings.NewReader(tt.input))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoadSwitchConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "switch1.cfg")
	require.NoError(t, os.WriteFile(path, []byte("5\neth0 7\neth1 T\n"), 0o644))

	sc, err := LoadSwitchConfig(path)
	require.NoError(t, err)
	assert.Equal(t, address.BridgeID(5), sc.BridgeID)

	_, err = LoadSwitchConfig(filepath.Join(t.TempDir(), "missing.cfg"))
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestSwitchConfigPorts(t *testing.T) {
	sc, err := ParseSwitchConfig(strings.NewReader("5\neth1 T\neth0 7\n"))
	require.NoError(t, err)

	// Port indices follow the transport order, not the file order
	ports, err := sc.Ports([]string{"eth0", "eth1"})
	require.NoError(t, err)
	require.Len(t, ports, 2)
	assert.Equal(t, 0, ports[0].Index)
	assert.Equal(t, switcher.VlanModeAccess, ports[0].VlanMode)
	assert.Equal(t, uint16(7), ports[0].AccessVlanID)
	assert.Equal(t, 1, ports[1].Index)
	assert.True(t, ports[1].IsTrunk())

	_, err = sc.Ports([]string{"eth0", "eth1", "eth2"})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}
