package mdns

import (
	"log"
	"strings"
	"time"
)

// NewManager creates an advertiser for name. A trailing ".local" is
// accepted and an empty name falls back to DefaultName.
func NewManager(name string) *Manager {
	m := &Manager{
		interfaces:       make(map[string]*InterfaceState),
		name:             normalizeName(name),
		stopCh:           make(chan struct{}),
		announceInterval: 60 * time.Second,
		rescanInterval:   10 * time.Second,
	}
	m.socketFactory = m.createIPv4Socket
	return m
}

func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".")
	name = strings.TrimSuffix(name, ".local")
	if name == "" {
		return DefaultName
	}
	return name
}

// Hostname is the advertised name, e.g. "matrix.local".
func (m *Manager) Hostname() string {
	return m.name + ".local"
}

func (m *Manager) fqdn() string {
	return m.name + ".local."
}

// Start discovers LAN interfaces and begins answering queries. Having no
// usable interface yet is not an error: the periodic rescan picks them up.
func (m *Manager) Start() error {
	if err := m.discoverInterfaces(); err != nil {
		return err
	}

	m.wg.Add(1)
	go m.networkMonitor()

	m.wg.Add(1)
	go m.announcer()

	log.Printf("INFO: mDNS advertising %s on %d interfaces", m.Hostname(), m.InterfaceCount())
	return nil
}

// Stop sends goodbye packets, closes every socket and waits for the
// responders to exit.
func (m *Manager) Stop() error {
	m.stopOnce.Do(func() {
		close(m.stopCh)

		m.mutex.Lock()
		for name, state := range m.interfaces {
			if state.Conn == nil {
				continue
			}
			m.sendAnnouncement(name, state, 0)
			state.Conn.Close()
		}
		m.mutex.Unlock()

		m.wg.Wait()
		log.Printf("INFO: mDNS advertiser stopped")
	})
	return nil
}

// InterfaceCount returns how many interfaces currently carry the name.
func (m *Manager) InterfaceCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.interfaces)
}

func (m *Manager) stopping() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}
