package observability

import (
	"strconv"
	"sync"
	"time"
)

// Notification outcomes counted by RecordNotification.
const (
	NotificationSent     = "sent"
	NotificationNoToken  = "no_token"
	NotificationFailed   = "failed"
	NotificationRecorded = "recorded"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	started       time.Time
	requestCount  map[string]int64
	errorCount    map[string]int64
	latencyTotal  map[string]time.Duration
	notifications map[string]int64
	watches       int64
}

// MetricsSnapshot is a point-in-time copy of the counters.
type MetricsSnapshot struct {
	UptimeSeconds int64            `json:"uptimeSeconds"`
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	AvgLatencyMs  map[string]int64 `json:"avgLatencyMs"`
	Notifications map[string]int64 `json:"notifications"`
	ActiveStreams int64            `json:"activeStreams"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		started:       time.Now(),
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		latencyTotal:  make(map[string]time.Duration),
		notifications: make(map[string]int64),
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
	m.latencyTotal[key] += duration
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

// RecordNotification counts the outcome of one notification attempt.
func (m *Metrics) RecordNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications[kind+"|"+outcome]++
}

// StreamOpened tracks a live server-sent event stream; call the returned
// func when it ends.
func (m *Metrics) StreamOpened() func() {
	if m == nil {
		return func() {}
	}
	m.mu.Lock()
	m.watches++
	m.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.watches--
			m.mu.Unlock()
		})
	}
}

// Snapshot copies the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := MetricsSnapshot{
		UptimeSeconds: int64(time.Since(m.started).Seconds()),
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		AvgLatencyMs:  make(map[string]int64, len(m.latencyTotal)),
		Notifications: copyCounts(m.notifications),
		ActiveStreams: m.watches,
	}
	for key, total := range m.latencyTotal {
		if n := m.requestCount[key]; n > 0 {
			snap.AvgLatencyMs[key] = (total / time.Duration(n)).Milliseconds()
		}
	}
	return snap
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
