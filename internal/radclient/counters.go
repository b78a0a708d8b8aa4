package radclient

import (
	"sync"
	"time"
)

// Counters tracks packet-level statistics for a client. A nil *Counters is
// valid and records nothing.
type Counters struct {
	mu          sync.Mutex
	startedAt   time.Time
	packetsSent int64
	packetsRecv int64
	bytesSent   int64
	bytesRecv   int64
	timeouts    int64
	failures    int64
}

// NewCounters creates counters with the clock started now.
func NewCounters() *Counters {
	return &Counters{startedAt: time.Now()}
}

func (m *Counters) sent(bytes int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packetsSent++
	m.bytesSent += bytes
}

func (m *Counters) received(bytes int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packetsRecv++
	m.bytesRecv += bytes
}

func (m *Counters) timedOut() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeouts++
}

func (m *Counters) failed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

// CounterSnapshot is a point-in-time copy of Counters.
type CounterSnapshot struct {
	Elapsed         time.Duration `json:"-"`
	PacketsSent     int64         `json:"packets_sent"`
	PacketsReceived int64         `json:"packets_received"`
	BytesSent       int64         `json:"bytes_sent"`
	BytesReceived   int64         `json:"bytes_received"`
	Timeouts        int64         `json:"timeouts"`
	Failures        int64         `json:"failures"`
}

// Lost is the number of requests that never got a reply.
func (s CounterSnapshot) Lost() int64 {
	if lost := s.PacketsSent - s.PacketsReceived; lost > 0 {
		return lost
	}
	return 0
}

// Snapshot returns a consistent copy of all counters.
func (m *Counters) Snapshot() CounterSnapshot {
	if m == nil {
		return CounterSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var elapsed time.Duration
	if !m.startedAt.IsZero() {
		elapsed = time.Since(m.startedAt)
	}
	return CounterSnapshot{
		Elapsed:         elapsed,
		PacketsSent:     m.packetsSent,
		PacketsReceived: m.packetsRecv,
		BytesSent:       m.bytesSent,
		BytesReceived:   m.bytesRecv,
		Timeouts:        m.timeouts,
		Failures:        m.failures,
	}
}

// Reset zeroes every counter and restarts the clock.
func (m *Counters) Reset() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startedAt = time.Now()
	m.packetsSent, m.packetsRecv = 0, 0
	m.bytesSent, m.bytesRecv = 0, 0
	m.timeouts, m.failures = 0, 0
}
