package pipeline

import (
	"sync"
	"sync/atomic"

	"tradeflow/internal/domain"
)

// Metrics counts orders through the pipeline. Safe for concurrent use.
type Metrics struct {
	received atomic.Int64
	executed atomic.Int64
	rejected atomic.Int64
	errored  atomic.Int64

	mu         sync.Mutex
	byWorkflow map[domain.Workflow]int64
}

// MetricsSnapshot is the JSON shape served by the metrics endpoint.
type MetricsSnapshot struct {
	Received   int64            `json:"orders_received"`
	Executed   int64            `json:"orders_executed"`
	Rejected   int64            `json:"orders_rejected"`
	Errored    int64            `json:"orders_errored"`
	ByWorkflow map[string]int64 `json:"by_workflow"`
}

// NewMetrics returns zeroed counters.
func NewMetrics() *Metrics {
	return &Metrics{byWorkflow: make(map[domain.Workflow]int64)}
}

func (m *Metrics) recordReceived() {
	m.received.Add(1)
}

func (m *Metrics) recordOutcome(outcome *domain.OrderOutcome) {
	switch outcome.Status {
	case domain.StatusExecuted:
		m.executed.Add(1)
	case domain.StatusRejected:
		m.rejected.Add(1)
	case domain.StatusError:
		m.errored.Add(1)
	}

	m.mu.Lock()
	m.byWorkflow[outcome.Workflow]++
	m.mu.Unlock()
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		Received:   m.received.Load(),
		Executed:   m.executed.Load(),
		Rejected:   m.rejected.Load(),
		Errored:    m.errored.Load(),
		ByWorkflow: make(map[string]int64),
	}
	m.mu.Lock()
	for w, n := range m.byWorkflow {
		snap.ByWorkflow[string(w)] = n
	}
	m.mu.Unlock()
	return snap
}
