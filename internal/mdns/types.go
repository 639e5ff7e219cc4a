package mdns

import (
	"net"
	"sync"
	"time"
)

const (
	// DefaultName is advertised as "<name>.local".
	DefaultName = "matrix"

	mdnsPort      = 5353
	recordTTL     = 120
	maxPacketSize = 1500

	// Top bit of the class field: cache-flush in answers, unicast-response
	// requested in questions.
	classTopBit = 1 << 15
)

var mdnsGroupIPv4 = net.IPv4(224, 0, 0, 251)

// InterfaceState tracks one LAN interface the name is advertised on.
type InterfaceState struct {
	Interface *net.Interface
	IPv4      net.IP
	Conn      *net.UDPConn

	Active   bool
	LastSeen time.Time

	QueryCount uint64
	ErrorCount uint64
}

// Manager advertises the panel host name over multicast DNS.
type Manager struct {
	interfaces map[string]*InterfaceState
	mutex      sync.RWMutex

	name     string
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	announceInterval time.Duration
	rescanInterval   time.Duration

	// Socket factory (overrideable for tests)
	socketFactory func(*net.Interface) (*net.UDPConn, error)
}
