package switcher

import (
	"sort"
	"sync"

	"github.com/stella/l2switch/pkg/address"
)

// MAC表项结构
type MACEntry struct {
	MAC    address.MAC
	PortID int
}

// MAC表结构. Entries never age out; a MAC seen on a new port simply moves.
type MACTable struct {
	entries map[address.MAC]int
	mutex   sync.RWMutex
}

// 创建新的MAC表
func NewMACTable() *MACTable {
	return &MACTable{
		entries: make(map[address.MAC]int),
	}
}

// 学习MAC地址，覆盖旧的端口映射
func (m *MACTable) Learn(mac address.MAC, portID int) {
	m.mutex.Lock()
	m.entries[mac] = portID
	m.mutex.Unlock()
}

// 查找MAC地址对应的端口
func (m *MACTable) Lookup(mac address.MAC) (int, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	port, ok := m.entries[mac]
	return port, ok
}

// Len returns the number of learned addresses
func (m *MACTable) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.entries)
}

// Entries returns a snapshot sorted by MAC
func (m *MACTable) Entries() []MACEntry {
	m.mutex.RLock()
	out := make([]MACEntry, 0, len(m.entries))
	for mac, port := range m.entries {
		out = append(out, MACEntry{MAC: mac, PortID: port})
	}
	m.mutex.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].MAC.Compare(out[j].MAC) < 0
	})
	return out
}
