package supervisor

import (
	"context"
	"fmt"
	"log"
	"sync"
)

// Component represents a unit of work managed by the supervisor.
type Component interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Supervisor coordinates the lifecycle of the panel's background components
// (asset watcher, mDNS advertiser).
type Supervisor struct {
	mu         sync.Mutex
	components []Component
	started    []Component
	running    bool
}

func New() *Supervisor {
	return &Supervisor{}
}

// Register adds a component. Registration is only allowed before Start.
func (s *Supervisor) Register(c Component) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		panic("supervisor: cannot register component after start")
	}
	s.components = append(s.components, c)
}

// Start invokes Start on each component in registration order. If one fails,
// the ones already started are stopped in reverse order and the error is
// returned with the component name attached.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	comps := append([]Component(nil), s.components...)
	s.mu.Unlock()

	started := make([]Component, 0, len(comps))
	for _, c := range comps {
		if err := c.Start(ctx); err != nil {
			for i := len(started) - 1; i >= 0; i-- {
				if stopErr := started[i].Stop(ctx); stopErr != nil {
					log.Printf("WARN: rollback stop of %s failed: %v", started[i].Name(), stopErr)
				}
			}
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}
		log.Printf("INFO: component %s started", c.Name())
		started = append(started, c)
	}

	s.mu.Lock()
	s.started = started
	s.mu.Unlock()
	return nil
}

// Stop stops started components in reverse order and returns the first
// error. It is safe to call even if Start was never invoked.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	comps := s.started
	s.started = nil
	s.running = false
	s.mu.Unlock()

	var firstErr error
	for i := len(comps) - 1; i >= 0; i-- {
		if err := comps[i].Stop(ctx); err != nil {
			log.Printf("WARN: component %s stop failed: %v", comps[i].Name(), err)
			if firstErr == nil {
				firstErr = fmt.Errorf("stop %s: %w", comps[i].Name(), err)
			}
		}
	}
	return firstErr
}
