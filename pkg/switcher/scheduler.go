package switcher

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultHelloInterval is the period of root bridge hellos
const DefaultHelloInterval = time.Second

// BPDUScheduler emits hello BPDUs on every trunk while the switch is root.
// Non-root switches stay silent and only re-announce on root changes.
type BPDUScheduler struct {
	stp      *STPEngine
	send     func(out []Outbound)
	interval time.Duration
	log      logrus.FieldLogger
}

// NewBPDUScheduler creates a scheduler; send is called with each tick's BPDUs
func NewBPDUScheduler(stp *STPEngine, interval time.Duration, send func(out []Outbound), log logrus.FieldLogger) *BPDUScheduler {
	if interval <= 0 {
		interval = DefaultHelloInterval
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &BPDUScheduler{
		stp:      stp,
		send:     send,
		interval: interval,
		log:      log,
	}
}

// Tick runs one heartbeat and reports how many BPDUs were emitted
func (s *BPDUScheduler) Tick() int {
	out := s.stp.Heartbeat()
	if len(out) > 0 {
		s.send(out)
	}
	return len(out)
}

// Run ticks until ctx is done
func (s *BPDUScheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.WithField("interval", s.interval).Debug("BPDU scheduler started")

	for {
		select {
		case <-ticker.C:
			if n := s.Tick(); n > 0 {
				s.log.WithField("count", n).Trace("sent hello BPDUs")
			}
		case <-ctx.Done():
			s.log.Debug("BPDU scheduler stopped")
			return
		}
	}
}
