package node

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/stella/l2switch/pkg/address"
	"github.com/stella/l2switch/pkg/switcher"
)

// ErrInvalidConfig wraps every switch configuration error
var ErrInvalidConfig = errors.New("stella: invalid switch configuration")

// trunkMarker in place of a VLAN id declares a trunk port
const trunkMarker = "T"

// PortEntry is one port line of a switch configuration
type PortEntry struct {
	Name   string
	Trunk  bool
	VlanID int
}

// SwitchConfig is the static configuration of one switch: its bridge priority
// and the VLAN role of every port, keyed by interface name
type SwitchConfig struct {
	BridgeID address.BridgeID
	Entries  []PortEntry
}

// LoadSwitchConfig reads a switch configuration file
func LoadSwitchConfig(path string) (*SwitchConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	defer f.Close()
	return ParseSwitchConfig(f)
}

// ParseSwitchConfig parses the line format: the bridge priority on the first
// line, then "<portName> <T|vlanId>" per port. Blank lines are ignored.
func ParseSwitchConfig(r io.Reader) (*SwitchConfig, error) {
	scanner := bufio.NewScanner(r)
	cfg := &SwitchConfig{}
	seen := make(map[string]bool)
	havePriority := false
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if !havePriority {
			id, err := address.ParseBridgeID(line)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidConfig, lineNo, err)
			}
			cfg.BridgeID = id
			havePriority = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: line %d: expected \"<port> <T|vlan>\", got %q", ErrInvalidConfig, lineNo, line)
		}

		entry := PortEntry{Name: fields[0]}
		if seen[entry.Name] {
			return nil, fmt.Errorf("%w: line %d: duplicate port %s", ErrInvalidConfig, lineNo, entry.Name)
		}
		seen[entry.Name] = true

		if fields[1] == trunkMarker {
			entry.Trunk = true
		} else {
			vlan, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad VLAN %q", ErrInvalidConfig, lineNo, fields[1])
			}
			if err := switcher.ValidateVlanID(vlan); err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidConfig, lineNo, err)
			}
			entry.VlanID = vlan
		}
		cfg.Entries = append(cfg.Entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if !havePriority {
		return nil, fmt.Errorf("%w: missing bridge priority", ErrInvalidConfig)
	}
	return cfg, nil
}

// Ports builds the port table for a transport whose ports are named names,
// in transport index order. Every transport port must be configured.
func (c *SwitchConfig) Ports(names []string) ([]switcher.Port, error) {
	byName := make(map[string]PortEntry, len(c.Entries))
	for _, e := range c.Entries {
		byName[e.Name] = e
	}

	ports := make([]switcher.Port, 0, len(names))
	for i, name := range names {
		e, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: port %s is not configured", ErrInvalidConfig, name)
		}
		if e.Trunk {
			ports = append(ports, switcher.NewTrunkPort(i, name))
			continue
		}
		p, err := switcher.NewAccessPort(i, name, e.VlanID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		ports = append(ports, p)
	}
	return ports, nil
}
