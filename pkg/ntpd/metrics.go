package ntpd

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type ClientCount struct {
	ClientIP string `json:"client_ip"`
	Count    uint64 `json:"count"`
}

// Snapshot is a point-in-time view of the in-memory counters, used by
// the daemon's periodic status log.
type Snapshot struct {
	StartedAt      time.Time     `json:"started_at"`
	TotalDatagrams uint64        `json:"total_datagrams"`
	TotalResponses uint64        `json:"total_responses"`
	TotalDropped   uint64        `json:"total_dropped"`
	LastClientAt   time.Time     `json:"last_client_at"`
	LastClientIP   string        `json:"last_client_ip"`
	UniqueClients  int           `json:"unique_clients"`
	TopClients     []ClientCount `json:"top_clients"`
}

type metrics struct {
	startedAt atomic.Value // time.Time

	totalDatagrams atomic.Uint64
	totalResponses atomic.Uint64
	totalDropped   atomic.Uint64

	lastClientAt atomic.Value // time.Time
	lastClientIP atomic.Value // string

	mu   sync.Mutex
	byIP map[string]uint64
}

func newMetrics() *metrics {
	m := &metrics{byIP: make(map[string]uint64)}
	m.startedAt.Store(time.Time{})
	m.lastClientAt.Store(time.Time{})
	m.lastClientIP.Store("")
	return m
}

func (m *metrics) reset(startedAt time.Time) {
	m.totalDatagrams.Store(0)
	m.totalResponses.Store(0)
	m.totalDropped.Store(0)
	m.startedAt.Store(startedAt)
	m.lastClientAt.Store(time.Time{})
	m.lastClientIP.Store("")
	m.mu.Lock()
	m.byIP = make(map[string]uint64)
	m.mu.Unlock()
}

func (m *metrics) incDatagram(ip string, at time.Time) {
	m.totalDatagrams.Add(1)
	m.lastClientAt.Store(at)
	m.lastClientIP.Store(ip)
	if ip == "" {
		return
	}
	m.mu.Lock()
	m.byIP[ip]++
	m.mu.Unlock()
}

func (m *metrics) incResponse() { m.totalResponses.Add(1) }
func (m *metrics) incDropped()  { m.totalDropped.Add(1) }

func (m *metrics) snapshot() Snapshot {
	startedAt, _ := m.startedAt.Load().(time.Time)
	lastAt, _ := m.lastClientAt.Load().(time.Time)
	lastIP, _ := m.lastClientIP.Load().(string)

	m.mu.Lock()
	counts := make([]ClientCount, 0, len(m.byIP))
	for ip, c := range m.byIP {
		counts = append(counts, ClientCount{ClientIP: ip, Count: c})
	}
	unique := len(m.byIP)
	m.mu.Unlock()

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count == counts[j].Count {
			return counts[i].ClientIP < counts[j].ClientIP
		}
		return counts[i].Count > counts[j].Count
	})
	if len(counts) > 10 {
		counts = counts[:10]
	}

	return Snapshot{
		StartedAt:      startedAt,
		TotalDatagrams: m.totalDatagrams.Load(),
		TotalResponses: m.totalResponses.Load(),
		TotalDropped:   m.totalDropped.Load(),
		LastClientAt:   lastAt,
		LastClientIP:   lastIP,
		UniqueClients:  unique,
		TopClients:     counts,
	}
}
