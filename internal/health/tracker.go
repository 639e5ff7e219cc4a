package health

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/samber/lo"
)

type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelOK:
		return "ok"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(l))
	}
}

// Component names reported by the panel server.
const (
	ComponentHTTP   = "http"
	ComponentAssets = "assets"
	ComponentMDNS   = "mdns"
)

type Status struct {
	Level     Level          `json:"level"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Tracker maintains a thread-safe collection of component health statuses.
type Tracker struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

func NewTracker() *Tracker {
	return &Tracker{statuses: make(map[string]Status)}
}

func (t *Tracker) Set(name string, status Status) {
	if status.UpdatedAt.IsZero() {
		status.UpdatedAt = time.Now().UTC()
	}
	t.mu.Lock()
	t.statuses[name] = status
	t.mu.Unlock()
}

func (t *Tracker) Setf(name string, level Level, format string, args ...any) {
	t.Set(name, Status{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (t *Tracker) Status(name string) (Status, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.statuses[name]
	return s, ok
}

func (t *Tracker) Snapshot() map[string]Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return lo.Assign(t.statuses)
}

// Names returns the tracked component names in sorted order.
func (t *Tracker) Names() []string {
	names := lo.Keys(t.Snapshot())
	sort.Strings(names)
	return names
}

// Overall is the worst level across all components.
func (t *Tracker) Overall() Level {
	snapshot := t.Snapshot()
	return lo.Reduce(lo.Values(snapshot), func(worst Level, st Status, _ int) Level {
		if st.Level > worst {
			return st.Level
		}
		return worst
	}, LevelOK)
}

// Ready reports whether every required component exists at LevelOK.
func (t *Tracker) Ready(required ...string) (bool, map[string]Status) {
	snapshot := t.Snapshot()
	ok := lo.EveryBy(required, func(name string) bool {
		st, exists := snapshot[name]
		return exists && st.Level == LevelOK
	})
	return ok, snapshot
}
