package mdns

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/net/ipv4"
	"golang.org/x/sys/unix"

	"matrixpanel/internal/netinfo"
)

var (
	listNetworkInterfaces = net.Interfaces
	interfaceAddrs        = func(iface *net.Interface) ([]net.Addr, error) {
		return iface.Addrs()
	}
)

var errUnsuitableInterface = errors.New("interface not suitable for mDNS")

// discoverInterfaces sets up every suitable interface. Per-interface
// failures are logged and skipped.
func (m *Manager) discoverInterfaces() error {
	interfaces, err := listNetworkInterfaces()
	if err != nil {
		return fmt.Errorf("list network interfaces: %w", err)
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()

	active := 0
	for _, iface := range interfaces {
		ifaceCopy := iface
		if err := m.setupInterface(&ifaceCopy); err != nil {
			if !errors.Is(err, errUnsuitableInterface) {
				log.Printf("WARN: mDNS setup on %s failed: %v", iface.Name, err)
			}
			continue
		}
		active++
	}
	if active == 0 {
		log.Printf("WARN: No LAN interface available for mDNS yet")
	}
	return nil
}

// setupInterface opens a multicast socket on iface and starts its
// responder. Callers hold m.mutex.
func (m *Manager) setupInterface(iface *net.Interface) error {
	if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagMulticast == 0 {
		return fmt.Errorf("%w: %s", errUnsuitableInterface, iface.Name)
	}

	addrs, err := interfaceAddrs(iface)
	if err != nil {
		return err
	}
	ip := netinfo.FirstIPv4(addrs)
	if ip == nil {
		return fmt.Errorf("%w: %s has no IPv4 address", errUnsuitableInterface, iface.Name)
	}

	conn, err := m.socketFactory(iface)
	if err != nil {
		return err
	}

	state := &InterfaceState{
		Interface: iface,
		IPv4:      ip,
		Conn:      conn,
		Active:    true,
		LastSeen:  time.Now(),
	}
	m.interfaces[iface.Name] = state

	m.wg.Add(1)
	go m.responder(state)

	log.Printf("INFO: mDNS ready on %s (%s)", iface.Name, ip)
	return nil
}

// createIPv4Socket binds 0.0.0.0:5353 on iface and joins the mDNS group.
func (m *Manager) createIPv4Socket(iface *net.Interface) (*net.UDPConn, error) {
	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
				if sockErr != nil {
					return
				}
				if err := unix.SetsockoptString(int(fd), unix.SOL_SOCKET, unix.SO_BINDTODEVICE, iface.Name); err != nil {
					log.Printf("WARN: Failed to bind mDNS socket to device %s: %v", iface.Name, err)
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	pc, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort(net.IPv4zero.String(), strconv.Itoa(mdnsPort)))
	if err != nil {
		return nil, fmt.Errorf("bind udp4 :%d on %s: %w", mdnsPort, iface.Name, err)
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, fmt.Errorf("unexpected packet conn type %T", pc)
	}

	p := ipv4.NewPacketConn(conn)
	if err := p.JoinGroup(iface, &net.UDPAddr{IP: mdnsGroupIPv4}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("join mDNS group on %s: %w", iface.Name, err)
	}
	if err := p.SetMulticastInterface(iface); err != nil {
		log.Printf("WARN: Failed to set multicast interface %s: %v", iface.Name, err)
	}
	if err := p.SetMulticastTTL(255); err != nil {
		log.Printf("WARN: Failed to set multicast TTL on %s: %v", iface.Name, err)
	}
	return conn, nil
}

func (m *Manager) networkMonitor() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.rescanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.checkInterfaceChanges()
		}
	}
}

// checkInterfaceChanges adds new interfaces, reconfigures ones whose IPv4
// address moved and drops the ones that disappeared.
func (m *Manager) checkInterfaceChanges() {
	interfaces, err := listNetworkInterfaces()
	if err != nil {
		log.Printf("WARN: Failed to check interfaces: %v", err)
		return
	}

	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.stopping() {
		return
	}

	seen := make(map[string]bool, len(interfaces))
	for _, iface := range interfaces {
		ifaceCopy := iface
		seen[ifaceCopy.Name] = true

		existing, exists := m.interfaces[ifaceCopy.Name]
		if exists && !m.hasIPChanged(&ifaceCopy, existing) {
			existing.Active = true
			existing.LastSeen = time.Now()
			continue
		}
		if exists {
			log.Printf("INFO: Address changed on %s, reconfiguring mDNS", ifaceCopy.Name)
			m.dropInterface(ifaceCopy.Name, existing)
		}
		if err := m.setupInterface(&ifaceCopy); err != nil && !errors.Is(err, errUnsuitableInterface) {
			log.Printf("WARN: mDNS setup on %s failed: %v", ifaceCopy.Name, err)
		}
	}

	for name, state := range m.interfaces {
		if !seen[name] {
			log.Printf("INFO: Interface %s gone, removing from mDNS", name)
			m.dropInterface(name, state)
		}
	}
}

// dropInterface closes the socket of an interface. Callers hold m.mutex.
func (m *Manager) dropInterface(name string, state *InterfaceState) {
	if state.Conn != nil {
		state.Conn.Close()
	}
	delete(m.interfaces, name)
}

func (m *Manager) hasIPChanged(iface *net.Interface, state *InterfaceState) bool {
	addrs, err := interfaceAddrs(iface)
	if err != nil {
		return true
	}
	return !state.IPv4.Equal(netinfo.FirstIPv4(addrs))
}
