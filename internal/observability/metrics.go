package observability

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu           sync.Mutex
	requestCount map[string]int64
	errorCount   map[string]int64
	chatEvents   map[string]int64
	chatErrors   map[string]int64

	openConnections atomic.Int64
	totalConnects   atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	Requests        map[string]int64 `json:"requests"`
	Errors          map[string]int64 `json:"errors"`
	ChatEvents      map[string]int64 `json:"chat_events"`
	ChatErrors      map[string]int64 `json:"chat_errors"`
	OpenConnections int64            `json:"open_connections"`
	TotalConnects   int64            `json:"total_connects"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount: make(map[string]int64),
		errorCount:   make(map[string]int64),
		chatEvents:   make(map[string]int64),
		chatErrors:   make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// ConnectionOpened tracks an authenticated websocket connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.openConnections.Add(1)
	m.totalConnects.Add(1)
}

// ConnectionClosed tracks a websocket disconnect.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.openConnections.Add(-1)
}

// RecordChatEvent counts an inbound gateway event by name.
func (m *Metrics) RecordChatEvent(event string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatEvents[event]++
}

// RecordChatError counts an error reported to a chat client.
func (m *Metrics) RecordChatError(event, errType string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatErrors[event+"|"+errType]++
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return MetricsSnapshot{
		Requests:        copyCounts(m.requestCount),
		Errors:          copyCounts(m.errorCount),
		ChatEvents:      copyCounts(m.chatEvents),
		ChatErrors:      copyCounts(m.chatErrors),
		OpenConnections: m.openConnections.Load(),
		TotalConnects:   m.totalConnects.Load(),
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
