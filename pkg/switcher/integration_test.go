// Copyright 2023 The Stella Authors
// SPDX-License-Identifier: Apache-2.0

package switcher_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella/l2switch/pkg/address"
	"github.com/stella/l2switch/pkg/packet"
	"github.com/stella/l2switch/pkg/switcher"
	"github.com/stella/l2switch/pkg/transport"
)

const helloInterval = 10 * time.Millisecond

// lab 是一组通过内存传输连接的交换机
type lab struct {
	t        *testing.T
	switches map[string]*switcher.Switcher
	links    map[string]*transport.MemoryTransport
}

func newLab(t *testing.T) *lab {
	return &lab{
		t:        t,
		switches: make(map[string]*switcher.Switcher),
		links:    make(map[string]*transport.MemoryTransport),
	}
}

// add 创建交换机，names 与 vlans 一一对应，vlan 为 0 表示trunk
func (l *lab) add(name string, bridgeID uint64, names []string, vlans []int) {
	l.t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	ports := make([]switcher.Port, len(names))
	for i, n := range names {
		if vlans[i] == 0 {
			ports[i] = switcher.NewTrunkPort(i, n)
			continue
		}
		p, err := switcher.NewAccessPort(i, n, vlans[i])
		require.NoError(l.t, err)
		ports[i] = p
	}

	tr := transport.NewMemoryTransport(names...)
	sw, err := switcher.NewSwitcher(name, address.BridgeID(bridgeID), ports, tr,
		switcher.WithLogger(log), switcher.WithHelloInterval(helloInterval))
	require.NoError(l.t, err)

	l.switches[name] = sw
	l.links[name] = tr
}

func (l *lab) cable(a string, pa int, b string, pb int) {
	l.t.Helper()
	require.NoError(l.t, transport.Connect(l.links[a], pa, l.links[b], pb))
}

func (l *lab) start() {
	l.t.Helper()
	for _, sw := range l.switches {
		require.NoError(l.t, sw.Start(context.Background()))
	}
	l.t.Cleanup(func() {
		for _, sw := range l.switches {
			sw.Stop()
		}
	})
}

func (l *lab) root(name string) address.BridgeID {
	return l.switches[name].STP().Status().RootBridgeID
}

// TestTwoSwitchRootElection 测试两台交换机选出较小的桥ID为根
func TestTwoSwitchRootElection(t *testing.T) {
	l := newLab(t)
	l.add("a", 1, []string{"a-h", "a-b"}, []int{10, 0})
	l.add("b", 2, []string{"b-h", "b-a"}, []int{10, 0})
	l.cable("a", 1, "b", 1)
	l.start()

	require.Eventually(t, func() bool {
		return l.root("a") == 1 && l.root("b") == 1
	}, 2*time.Second, helloInterval)

	a := l.switches["a"].STP().Status()
	b := l.switches["b"].STP().Status()
	assert.True(t, a.IsRoot)
	assert.Equal(t, uint64(10), b.RootPathCost)
	assert.Equal(t, 1, b.RootPort)
	assert.Equal(t, switcher.PortStateListening, b.PortStates[1])
	assert.Equal(t, 0, l.switches["b"].Scheduler().Tick(), "non-root switches do not send hellos")
}

// TestTriangleBlocksRedundantTrunk 测试三角拓扑中冗余链路被阻塞
func TestTriangleBlocksRedundantTrunk(t *testing.T) {
	l := newLab(t)
	// Port 0 towards the lower id neighbour, port 1 towards the higher one
	l.add("a", 1, []string{"a-b", "a-c", "a-h"}, []int{0, 0, 10})
	l.add("b", 2, []string{"b-a", "b-c", "b-h"}, []int{0, 0, 10})
	l.add("c", 3, []string{"c-a", "c-b", "c-h"}, []int{0, 0, 10})
	l.cable("a", 0, "b", 0)
	l.cable("a", 1, "c", 0)
	l.cable("b", 1, "c", 1)
	l.start()

	require.Eventually(t, func() bool {
		return l.root("a") == 1 && l.root("b") == 1 && l.root("c") == 1
	}, 2*time.Second, helloInterval)

	a := l.switches["a"].STP().Status()
	for i, s := range a.PortStates {
		assert.Equal(t, switcher.PortStateListening, s, "root port %d", i)
	}

	for _, name := range []string{"b", "c"} {
		st := l.switches[name].STP().Status()
		assert.Equal(t, 0, st.RootPort, "%s reaches the root directly", name)
		assert.Equal(t, uint64(10), st.RootPathCost, name)
		assert.Equal(t, switcher.PortStateListening, st.PortStates[0], name)
	}

	// b gave up being root while its link to c was open, so that link is cut on b's side
	assert.Equal(t, switcher.PortStateBlocking, l.switches["b"].STP().PortState(1))
}

// TestVlanIsolationAcrossTrunk 测试跨trunk的VLAN隔离
func TestVlanIsolationAcrossTrunk(t *testing.T) {
	l := newLab(t)
	l.add("a", 1, []string{"a-h10", "a-h20", "a-b"}, []int{10, 20, 0})
	l.add("b", 2, []string{"b-h10", "b-h20", "b-a"}, []int{10, 20, 0})
	l.cable("a", 2, "b", 2)
	l.start()

	require.Eventually(t, func() bool { return l.root("b") == 1 }, 2*time.Second, helloInterval)

	src, err := address.NewMACFromString("02:00:00:00:10:01")
	require.NoError(t, err)
	frame := make([]byte, 60)
	copy(frame, address.BroadcastMAC[:])
	copy(frame[6:], src[:])
	frame[12], frame[13] = 0x08, 0x06

	require.NoError(t, l.links["a"].Inject(0, frame))

	// Uncabled access ports keep what was sent to them
	var delivered [][]byte
	require.Eventually(t, func() bool {
		delivered = append(delivered, l.links["b"].Drain(0)...)
		return len(delivered) > 0
	}, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, [][]byte{frame}, delivered, "VLAN 10 host on b gets the untagged frame")
	assert.Empty(t, l.links["b"].Drain(1), "VLAN 20 host on b gets nothing")
	assert.Empty(t, l.links["a"].Drain(1), "VLAN 20 host on a gets nothing")

	port, _ := l.switches["b"].MACTable().Lookup(src)
	assert.Equal(t, 2, port)

	hdr, err := packet.DecodeHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, packet.NoVlan, hdr.VlanID)
}
