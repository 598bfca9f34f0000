// Package capture records switch traffic to pcap files
package capture

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DefaultSnapLen is the capture length used when none is configured
const DefaultSnapLen = 65535

// ErrClosed is returned by Record after Close
var ErrClosed = errors.New("stella: capture closed")

// Config configures a Recorder
type Config struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
	SnapLen int    `mapstructure:"snaplen" yaml:"snaplen"`
	// Ports restricts capture to these port indices; empty means all ports
	Ports []int `mapstructure:"ports" yaml:"ports"`
}

// Recorder writes every received frame as one Ethernet pcap record.
// The ingress port index is stored in the record's interface index.
type Recorder struct {
	mu      sync.Mutex
	w       *pcapgo.Writer
	buf     *bufio.Writer
	closer  io.Closer
	ports   map[int]bool
	snapLen int
	count   uint64
	closed  bool
	now     func() time.Time
}

// NewRecorder creates the capture file and writes the pcap header
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.Path == "" {
		return nil, errors.New("capture path cannot be empty")
	}
	f, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	r, err := NewWriterRecorder(f, cfg.SnapLen, cfg.Ports)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewWriterRecorder writes the capture to w. Closing the recorder flushes
// but does not close w.
func NewWriterRecorder(w io.Writer, snapLen int, ports []int) (*Recorder, error) {
	if snapLen <= 0 {
		snapLen = DefaultSnapLen
	}
	buf := bufio.NewWriter(w)
	pw := pcapgo.NewWriter(buf)
	if err := pw.WriteFileHeader(uint32(snapLen), layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("failed to write pcap header: %w", err)
	}

	r := &Recorder{
		w:       pw,
		buf:     buf,
		snapLen: snapLen,
		now:     time.Now,
	}
	if len(ports) > 0 {
		r.ports = make(map[int]bool, len(ports))
		for _, p := range ports {
			r.ports[p] = true
		}
	}
	return r, nil
}

// Record appends one frame received on port
func (r *Recorder) Record(port int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.ports != nil && !r.ports[port] {
		return nil
	}

	captured := data
	if len(captured) > r.snapLen {
		captured = captured[:r.snapLen]
	}
	ci := gopacket.CaptureInfo{
		Timestamp:      r.now(),
		CaptureLength:  len(captured),
		Length:         len(data),
		InterfaceIndex: port,
	}
	if err := r.w.WritePacket(ci, captured); err != nil {
		return err
	}
	r.count++
	return nil
}

// Count returns the number of frames written
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Close flushes buffered records and closes the file
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := r.buf.Flush()
	if r.closer != nil {
		if cerr := r.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
