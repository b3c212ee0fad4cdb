// Package health tracks liveness of the system's moving parts: source
// adapters report successes and failures as they poll, and registered probes
// (e.g. the task store) are checked on a sweep. A component that falls silent
// degrades, then goes down; it never disappears from the report.
package health

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/taskvault/taskvault/internal/clock"
	"github.com/taskvault/taskvault/service/source"
)

// State is the coarse liveness classification of a component.
type State string

const (
	StateHealthy  State = "healthy"
	StateDegraded State = "degraded"
	StateDown     State = "down"
)

// Silence multipliers: a component with no success for degradedAfter times
// its interval is degraded, for downAfter times it is down.
const (
	degradedAfter = 3
	downAfter     = 10
)

// Status is a point-in-time snapshot of one component.
type Status struct {
	Component    string        `json:"component"`
	State        State         `json:"state"`
	LastSuccess  time.Time     `json:"lastSuccess,omitempty"`
	LastFailure  time.Time     `json:"lastFailure,omitempty"`
	Failures     int           `json:"failures,omitempty"`
	LastError    string        `json:"lastError,omitempty"`
	Interval     time.Duration `json:"interval"`
}

// Probe checks a passive component on demand.
type Probe func(ctx context.Context) error

type entry struct {
	interval    time.Duration
	probe       Probe
	lastSuccess time.Time
	lastFailure time.Time
	failures    int
	lastError   string
	down        bool
}

// Monitor aggregates component liveness. It implements source.Reporter so
// the adapter runner can feed it directly.
type Monitor struct {
	mux     sync.Mutex
	entries map[string]*entry
}

var _ source.Reporter = (*Monitor)(nil)

// New creates an empty monitor.
func New() *Monitor {
	return &Monitor{entries: make(map[string]*entry)}
}

// Register announces an active component that will report on its own. The
// interval is its expected reporting cadence.
func (m *Monitor) Register(component string, interval time.Duration) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.entries[component] = &entry{interval: interval, lastSuccess: clock.Now()}
}

// RegisterProbe announces a passive component checked during Sweep.
func (m *Monitor) RegisterProbe(component string, interval time.Duration, probe Probe) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.entries[component] = &entry{interval: interval, probe: probe, lastSuccess: clock.Now()}
}

// ReportSuccess records a successful cycle and clears any failure streak.
func (m *Monitor) ReportSuccess(component string) {
	m.mux.Lock()
	defer m.mux.Unlock()
	e := m.entry(component)
	e.lastSuccess = clock.Now()
	e.failures = 0
	e.lastError = ""
	e.down = false
}

// ReportFailure records a failed cycle.
func (m *Monitor) ReportFailure(component string, err error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	e := m.entry(component)
	e.lastFailure = clock.Now()
	e.failures++
	if err != nil {
		e.lastError = err.Error()
	}
}

// MarkDown forces the component down until its next success.
func (m *Monitor) MarkDown(component string, err error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	e := m.entry(component)
	e.lastFailure = clock.Now()
	e.failures++
	e.down = true
	if err != nil {
		e.lastError = err.Error()
	}
	log.Printf("[health] %s marked down: %v", component, err)
}

// Sweep runs every registered probe and refreshes its status.
func (m *Monitor) Sweep(ctx context.Context) {
	m.mux.Lock()
	probes := make(map[string]Probe)
	for name, e := range m.entries {
		if e.probe != nil {
			probes[name] = e.probe
		}
	}
	m.mux.Unlock()

	for name, probe := range probes {
		if err := probe(ctx); err != nil {
			m.ReportFailure(name, err)
		} else {
			m.ReportSuccess(name)
		}
	}
}

// Check returns the current status of every registered component.
func (m *Monitor) Check() map[string]Status {
	m.mux.Lock()
	defer m.mux.Unlock()
	now := clock.Now()
	report := make(map[string]Status, len(m.entries))
	for name, e := range m.entries {
		report[name] = Status{
			Component:   name,
			State:       e.state(now),
			LastSuccess: e.lastSuccess,
			LastFailure: e.lastFailure,
			Failures:    e.failures,
			LastError:   e.lastError,
			Interval:    e.interval,
		}
	}
	return report
}

// Healthy reports whether no component is down.
func (m *Monitor) Healthy() bool {
	for _, status := range m.Check() {
		if status.State == StateDown {
			return false
		}
	}
	return true
}

func (m *Monitor) entry(component string) *entry {
	e, ok := m.entries[component]
	if !ok {
		e = &entry{interval: time.Minute}
		m.entries[component] = e
	}
	return e
}

func (e *entry) state(now time.Time) State {
	if e.down {
		return StateDown
	}
	silence := now.Sub(e.lastSuccess)
	switch {
	case silence > time.Duration(downAfter)*e.interval:
		return StateDown
	case silence > time.Duration(degradedAfter)*e.interval:
		return StateDegraded
	}
	return StateHealthy
}
