package mdns

import (
	"net"
	"sync"
	"testing"
)

type stubNetwork struct {
	mu     sync.Mutex
	ifaces []net.Interface
	addrs  map[string][]net.Addr
}

func (s *stubNetwork) set(ifaces []net.Interface, addrs map[string][]net.Addr) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ifaces = ifaces
	s.addrs = addrs
}

func lanIP(a, b, c, d byte) []net.Addr {
	return []net.Addr{&net.IPNet{IP: net.IPv4(a, b, c, d), Mask: net.CIDRMask(24, 32)}}
}

// newStubbedManager swaps interface enumeration for env and gives every
// interface a loopback UDP socket instead of a real 5353 multicast socket.
func newStubbedManager(t *testing.T, env *stubNetwork) *Manager {
	t.Helper()

	origList := listNetworkInterfaces
	origAddrs := interfaceAddrs
	t.Cleanup(func() {
		listNetworkInterfaces = origList
		interfaceAddrs = origAddrs
	})

	listNetworkInterfaces = func() ([]net.Interface, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		return append([]net.Interface(nil), env.ifaces...), nil
	}
	interfaceAddrs = func(iface *net.Interface) ([]net.Addr, error) {
		env.mu.Lock()
		defer env.mu.Unlock()
		return env.addrs[iface.Name], nil
	}

	m := NewManager("")
	m.socketFactory = func(*net.Interface) (*net.UDPConn, error) {
		return net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	}
	t.Cleanup(func() { m.Stop() })
	return m
}

func defaultStubNetwork() *stubNetwork {
	env := &stubNetwork{}
	env.set(
		[]net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagLoopback | net.FlagMulticast},
			{Name: "eth0", Flags: net.FlagUp | net.FlagMulticast},
			{Name: "wlan0", Flags: net.FlagUp | net.FlagMulticast},
			{Name: "tun0", Flags: net.FlagUp | net.FlagPointToPoint},
		},
		map[string][]net.Addr{
			"lo":    lanIP(127, 0, 0, 1),
			"eth0":  lanIP(192, 168, 1, 40),
			"wlan0": {&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)}},
			"tun0":  lanIP(10, 8, 0, 2),
		},
	)
	return env
}
