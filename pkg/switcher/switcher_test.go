package switcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella/l2switch/pkg/address"
	"github.com/stella/l2switch/pkg/packet"
	"github.com/stella/l2switch/pkg/transport"
)

func edgePorts(t *testing.T) []Port {
	return []Port{
		access(t, 0, "h1", 10),
		access(t, 1, "h2", 10),
		access(t, 2, "h3", 20),
		NewTrunkPort(3, "up"),
	}
}

// TestSwitcherCreation 测试交换机创建
func TestSwitcherCreation(t *testing.T) {
	s, _ := newTestSwitch(t, "sw-create", 5, edgePorts(t))
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "sw-create", s.Name)
	assert.Equal(t, StateStopped, s.GetState())
	assert.Len(t, s.Ports(), 4)
	assert.Equal(t, address.BridgeID(5), s.STP().OwnBridgeID())

	tr := transport.NewMemoryTransport("only-one")
	_, err := NewSwitcher("bad", 1, edgePorts(t), tr)
	assert.Error(t, err, "port count must match the transport")

	_, err = NewSwitcher("", 1, edgePorts(t), transport.NewMemoryTransport("a", "b", "c", "d"))
	assert.Error(t, err)
	_, err = NewSwitcher("bad", 1, edgePorts(t), nil)
	assert.Error(t, err)
}

// TestHandleFrameFloodsUnknown 测试未知单播泛洪，遵守VLAN隔离
func TestHandleFrameFloodsUnknown(t *testing.T) {
	s, tr := newTestSwitch(t, "sw-flood", 5, edgePorts(t))
	frame := ethFrame(mustMAC(t, "02:00:00:00:00:99"), mustMAC(t, "02:00:00:00:00:01"), 46)

	s.HandleFrame(0, frame)

	assert.Empty(t, tr.Drain(0), "never back out of the ingress port")
	assert.Equal(t, [][]byte{frame}, tr.Drain(1))
	assert.Empty(t, tr.Drain(2), "VLAN 20 is isolated from VLAN 10")
	up := tr.Drain(3)
	require.Len(t, up, 1)
	assert.Equal(t, packet.AddVlanTag(frame, 10), up[0])

	port, ok := s.MACTable().Lookup(mustMAC(t, "02:00:00:00:00:01"))
	assert.True(t, ok)
	assert.Equal(t, 0, port)
}

// TestHandleFrameBroadcast 测试广播帧
func TestHandleFrameBroadcast(t *testing.T) {
	s, tr := newTestSwitch(t, "sw-bcast", 5, edgePorts(t))
	frame := ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:03"), 46)

	s.HandleFrame(2, frame)

	assert.Empty(t, tr.Drain(0))
	assert.Empty(t, tr.Drain(1))
	up := tr.Drain(3)
	require.Len(t, up, 1)
	hdr, err := packet.DecodeHeader(up[0])
	require.NoError(t, err)
	assert.Equal(t, 20, hdr.VlanID)
}

// TestHandleFrameKnownUnicast 测试已学习的单播只发往一个端口
func TestHandleFrameKnownUnicast(t *testing.T) {
	s, tr := newTestSwitch(t, "sw-unicast", 5, edgePorts(t))
	h1 := mustMAC(t, "02:00:00:00:00:01")
	h2 := mustMAC(t, "02:00:00:00:00:02")

	s.HandleFrame(1, ethFrame(address.BroadcastMAC, h2, 46))
	tr.Drain(0)
	tr.Drain(3)

	reply := ethFrame(h2, h1, 46)
	s.HandleFrame(0, reply)

	assert.Equal(t, [][]byte{reply}, tr.Drain(1))
	assert.Empty(t, tr.Drain(2))
	assert.Empty(t, tr.Drain(3))

	// A destination learned on the ingress port goes back out of that port
	hairpin := ethFrame(h2, mustMAC(t, "02:00:00:00:00:07"), 46)
	s.HandleFrame(1, hairpin)
	assert.Equal(t, [][]byte{hairpin}, tr.Drain(1))
	assert.Empty(t, tr.Drain(0))
	assert.Empty(t, tr.Drain(2))
	assert.Empty(t, tr.Drain(3))
}

// TestHandleFrameFromTrunk 测试trunk进入的带标签帧
func TestHandleFrameFromTrunk(t *testing.T) {
	s, tr := newTestSwitch(t, "sw-trunk", 5, edgePorts(t))
	untagged := ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:42"), 46)

	s.HandleFrame(3, packet.AddVlanTag(untagged, 20))

	assert.Empty(t, tr.Drain(0))
	assert.Empty(t, tr.Drain(1))
	assert.Equal(t, [][]byte{untagged}, tr.Drain(2))

	port, ok := s.MACTable().Lookup(mustMAC(t, "02:00:00:00:00:42"))
	assert.True(t, ok)
	assert.Equal(t, 3, port)
}

// TestHandleFrameMalformed 测试过短的帧被丢弃
func TestHandleFrameMalformed(t *testing.T) {
	s, tr := newTestSwitch(t, "sw-malformed", 5, edgePorts(t))

	s.HandleFrame(0, []byte{1, 2, 3})
	// Tagged marker without room for the tag
	short := make([]byte, 14)
	short[12], short[13] = 0x82, 0x00
	s.HandleFrame(0, short)
	s.HandleFrame(9, ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:01"), 46))

	for i := 0; i < 4; i++ {
		assert.Empty(t, tr.Drain(i))
	}
	assert.Equal(t, 0, s.MACTable().Len())
}

// TestHandleFrameScenario 测试BPDU驱动的根选举
func TestHandleFrameScenario(t *testing.T) {
	ports := []Port{access(t, 0, "host", 7), NewTrunkPort(1, "uplink")}
	s, tr := newTestSwitch(t, "sw-scenario", 5, ports)

	s.HandleFrame(1, bpduFrame(2, 0, 2))

	st := s.Status().STP
	assert.Equal(t, address.BridgeID(2), st.RootBridgeID)
	assert.Equal(t, uint64(10), st.RootPathCost)
	assert.Equal(t, 1, st.RootPort)
	assert.Equal(t, PortStateListening, st.PortStates[1])
	assert.Empty(t, tr.Drain(0), "BPDUs are never forwarded as data")
	assert.Equal(t, 0, s.MACTable().Len(), "BPDUs are not learned")

	// Truncated BPDU is ignored
	s.HandleFrame(1, bpduFrame(1, 0, 1)[:20])
	assert.Equal(t, address.BridgeID(2), s.STP().Status().RootBridgeID)
}

// TestHandleFrameBlockedTrunk 测试阻塞的trunk端口丢弃数据帧但仍处理BPDU.
// BPDUs are classified before the blocking check, so a better root heard on a
// blocked trunk is adopted. Dropping them first would keep the old root instead.
func TestHandleFrameBlockedTrunk(t *testing.T) {
	ports := []Port{access(t, 0, "host", 1), NewTrunkPort(1, "t1"), NewTrunkPort(2, "t2")}
	s, tr := newTestSwitch(t, "sw-blocked", 5, ports)

	s.HandleFrame(1, bpduFrame(2, 0, 2))
	require.Equal(t, PortStateBlocking, s.STP().PortState(2))
	// Re-announcement on the other trunk
	reann := tr.Drain(2)
	require.Len(t, reann, 1)
	got, err := packet.ParseBPDU(reann[0])
	require.NoError(t, err)
	assert.Equal(t, address.BridgeID(5), got.SenderBridgeID)

	// Data on the blocked trunk is neither learned nor forwarded
	s.HandleFrame(2, packet.AddVlanTag(ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:05"), 46), 1))
	assert.Empty(t, tr.Drain(0))
	assert.Empty(t, tr.Drain(1))
	assert.Equal(t, 0, s.MACTable().Len())

	// Flooding from the access port skips the blocked trunk
	s.HandleFrame(0, ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:06"), 46))
	assert.Len(t, tr.Drain(1), 1)
	assert.Empty(t, tr.Drain(2))

	// A BPDU on the blocked trunk is still processed
	s.HandleFrame(2, bpduFrame(7, 20, 2))
	assert.Equal(t, PortStateListening, s.STP().PortState(2))
}

// TestHandleFrameBetterRootOnBlockedTrunk 测试阻塞trunk上收到更优根时切换根端口
func TestHandleFrameBetterRootOnBlockedTrunk(t *testing.T) {
	ports := []Port{access(t, 0, "host", 1), NewTrunkPort(1, "t0"), NewTrunkPort(2, "t1")}
	s, _ := newTestSwitch(t, "sw-better-root", 5, ports)

	s.HandleFrame(1, bpduFrame(2, 0, 2))
	require.Equal(t, PortStateBlocking, s.STP().PortState(2))

	s.HandleFrame(2, bpduFrame(1, 0, 1))

	st := s.STP().Status()
	assert.Equal(t, address.BridgeID(1), st.RootBridgeID)
	assert.Equal(t, 2, st.RootPort)
	assert.Equal(t, uint64(10), st.RootPathCost)
	assert.Equal(t, PortStateListening, st.PortStates[2])
	assert.Equal(t, PortStateListening, st.PortStates[1])
}

// TestSwitcherLifecycle 测试启动与停止
func TestSwitcherLifecycle(t *testing.T) {
	s, tr := newTestSwitch(t, "sw-life", 5, edgePorts(t))

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, tr.Inject(0, ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:01"), 46)))
	assert.Eventually(t, func() bool { return s.MACTable().Len() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.Equal(t, StateStopped, s.GetState())
	assert.ErrorIs(t, s.Stop(), ErrNotRunning)
	assert.NoError(t, s.Err())
}

// TestSwitcherRunEndsOnClose 测试传输关闭时Run返回
func TestSwitcherRunEndsOnClose(t *testing.T) {
	s, tr := newTestSwitch(t, "sw-run", 5, edgePorts(t))

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()

	assert.Eventually(t, s.IsRunning, time.Second, time.Millisecond)
	require.NoError(t, tr.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the transport closed")
	}
	assert.Equal(t, StateStopped, s.GetState())
}

// memoryRecorder 记录抓包回调
type memoryRecorder struct {
	mu     sync.Mutex
	frames map[int]int
}

func (m *memoryRecorder) Record(port int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames[port]++
	if port == 2 {
		return errors.New("disk full")
	}
	return nil
}

func (m *memoryRecorder) count(port int) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frames[port]
}

// TestSwitcherRecorder 测试接收的帧交给抓包记录器
func TestSwitcherRecorder(t *testing.T) {
	rec := &memoryRecorder{frames: make(map[int]int)}
	ports := edgePorts(t)
	tr := transport.NewMemoryTransport("h1", "h2", "h3", "up")
	s, err := NewSwitcher("sw-rec", 5, ports, tr, WithLogger(quietLog()), WithRecorder(rec))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.NoError(t, tr.Inject(0, ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:01"), 46)))
	require.NoError(t, tr.Inject(2, ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:03"), 46)))

	assert.Eventually(t, func() bool {
		return rec.count(0) == 1 && rec.count(2) == 1
	}, time.Second, 5*time.Millisecond)
	// A failing recorder does not stop forwarding
	assert.Eventually(t, func() bool { return s.MACTable().Len() == 2 }, time.Second, 5*time.Millisecond)
}

// TestSwitcherStatus 测试状态快照
func TestSwitcherStatus(t *testing.T) {
	s, _ := newTestSwitch(t, "sw-status", 5, edgePorts(t))
	s.HandleFrame(0, ethFrame(address.BroadcastMAC, mustMAC(t, "02:00:00:00:00:01"), 46))

	st := s.Status()
	assert.Equal(t, "sw-status", st.Name)
	assert.Equal(t, StateStopped, st.State)
	assert.True(t, st.STP.IsRoot)
	assert.Len(t, st.Ports, 4)
	require.Len(t, st.MACEntries, 1)
	assert.Equal(t, 0, st.MACEntries[0].PortID)
}
