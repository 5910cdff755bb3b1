package ntpd

import (
	"sync"
	"time"
)

// DatagramEvent records the outcome of one received datagram, for
// monitoring and tests. It is published after the datagram has been
// fully handled.
type DatagramEvent struct {
	At         time.Time `json:"at"`
	ClientAddr string    `json:"client_addr"`
	ClientIP   string    `json:"client_ip"`
	ClientPort int       `json:"client_port"`
	RawLen     int       `json:"raw_len"`
	Version    uint8     `json:"version"`
	Mode       uint8     `json:"mode"`
	Responded  bool      `json:"responded"`
	// DropReason is empty for answered datagrams. Non-request traffic
	// carries DropNotRequest; it is dropped silently, not an error.
	DropReason string `json:"drop_reason,omitempty"`
}

// Drop reasons shared by events and the prometheus drop counter.
const (
	DropTooShort    = "too_short"
	DropBadVersion  = "bad_version"
	DropNotRequest  = "not_request"
	DropRateLimited = "rate_limited"
	DropSendError   = "send_error"
)

// eventHub fans events out to subscribers and keeps a bounded history
// of the most recent ones.
type eventHub struct {
	mu   sync.RWMutex
	subs map[chan DatagramEvent]struct{}

	history []DatagramEvent
	next    int
	full    bool
}

func newEventHub(historySize int) *eventHub {
	if historySize <= 0 {
		historySize = 500
	}
	return &eventHub{
		subs:    make(map[chan DatagramEvent]struct{}),
		history: make([]DatagramEvent, historySize),
	}
}

func (h *eventHub) publish(ev DatagramEvent) {
	h.mu.Lock()
	h.history[h.next] = ev
	h.next++
	if h.next == len(h.history) {
		h.next = 0
		h.full = true
	}
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Drop if subscriber is slow.
		}
	}
	h.mu.Unlock()
}

func (h *eventHub) subscribe(buffer int) (<-chan DatagramEvent, func()) {
	if buffer <= 0 {
		buffer = 128
	}
	ch := make(chan DatagramEvent, buffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// snapshotHistory returns retained events, oldest first.
func (h *eventHub) snapshotHistory() []DatagramEvent {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.full {
		out := make([]DatagramEvent, h.next)
		copy(out, h.history[:h.next])
		return out
	}
	out := make([]DatagramEvent, 0, len(h.history))
	out = append(out, h.history[h.next:]...)
	out = append(out, h.history[:h.next]...)
	return out
}
