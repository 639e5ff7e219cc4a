package netinfo

import (
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func stubInterfaces(t *testing.T, ifaces []net.Interface, addrs map[string][]net.Addr) {
	t.Helper()
	origList := listNetworkInterfaces
	origAddrs := interfaceAddrs
	t.Cleanup(func() {
		listNetworkInterfaces = origList
		interfaceAddrs = origAddrs
	})

	listNetworkInterfaces = func() ([]net.Interface, error) {
		return ifaces, nil
	}
	interfaceAddrs = func(iface *net.Interface) ([]net.Addr, error) {
		a, ok := addrs[iface.Name]
		if !ok {
			return nil, errors.New("no such interface")
		}
		return a, nil
	}
}

func ipNet(a, b, c, d byte) *net.IPNet {
	return &net.IPNet{IP: net.IPv4(a, b, c, d), Mask: net.CIDRMask(24, 32)}
}

func TestResolveLocalIPv4_SkipsLoopbackInterface(t *testing.T) {
	stubInterfaces(t,
		[]net.Interface{
			{Name: "lo", Flags: net.FlagUp | net.FlagRunning | net.FlagLoopback},
			{Name: "wlan0", Flags: net.FlagUp | net.FlagRunning | net.FlagMulticast},
		},
		map[string][]net.Addr{
			"lo":    {ipNet(127, 0, 0, 1)},
			"wlan0": {ipNet(192, 168, 1, 23)},
		})

	require.Equal(t, "192.168.1.23", ResolveLocalIPv4())
}

func TestResolveLocalIPv4_SkipsIPv6AndLoopbackAddresses(t *testing.T) {
	stubInterfaces(t,
		[]net.Interface{{Name: "eth0", Flags: net.FlagUp | net.FlagRunning}},
		map[string][]net.Addr{
			"eth0": {
				&net.IPNet{IP: net.ParseIP("fe80::1"), Mask: net.CIDRMask(64, 128)},
				ipNet(127, 0, 0, 1),
				&net.IPAddr{IP: net.IPv4(10, 0, 0, 7)},
			},
		})

	require.Equal(t, "10.0.0.7", ResolveLocalIPv4())
}

func TestResolveLocalIPv4_FirstFoundWins(t *testing.T) {
	stubInterfaces(t,
		[]net.Interface{
			{Name: "eth0", Flags: net.FlagUp | net.FlagRunning},
			{Name: "wlan0", Flags: net.FlagUp | net.FlagRunning},
		},
		map[string][]net.Addr{
			"eth0":  {ipNet(172, 16, 0, 4)},
			"wlan0": {ipNet(192, 168, 1, 23)},
		})

	require.Equal(t, "172.16.0.4", ResolveLocalIPv4())
	require.Len(t, LANAddresses(), 2)
}

func TestResolveLocalIPv4_SkipsDownInterfaces(t *testing.T) {
	stubInterfaces(t,
		[]net.Interface{
			{Name: "eth1", Flags: net.FlagMulticast},
			{Name: "docker0", Flags: net.FlagUp | net.FlagMulticast},
			{Name: "wlan0", Flags: net.FlagUp | net.FlagRunning | net.FlagMulticast},
		},
		map[string][]net.Addr{
			"eth1":    {ipNet(10, 1, 1, 1)},
			"docker0": {ipNet(172, 17, 0, 1)},
			"wlan0":   {ipNet(192, 168, 1, 23)},
		})

	require.Equal(t, "192.168.1.23", ResolveLocalIPv4())
	require.Len(t, LANAddresses(), 1)
}

func TestResolveLocalIPv4_FallbackWhenOnlyLoopback(t *testing.T) {
	stubInterfaces(t,
		[]net.Interface{{Name: "lo", Flags: net.FlagUp | net.FlagRunning | net.FlagLoopback}},
		map[string][]net.Addr{"lo": {ipNet(127, 0, 0, 1)}})

	require.Equal(t, FallbackIPv4, ResolveLocalIPv4())
}

func TestResolveLocalIPv4_SkipsUnreadableInterface(t *testing.T) {
	stubInterfaces(t,
		[]net.Interface{
			{Name: "broken0", Flags: net.FlagUp | net.FlagRunning},
			{Name: "eth0", Flags: net.FlagUp | net.FlagRunning},
		},
		map[string][]net.Addr{"eth0": {ipNet(192, 168, 0, 10)}})

	require.Equal(t, "192.168.0.10", ResolveLocalIPv4())
}

func TestResolveLocalIPv4_ListFailure(t *testing.T) {
	origList := listNetworkInterfaces
	t.Cleanup(func() { listNetworkInterfaces = origList })
	listNetworkInterfaces = func() ([]net.Interface, error) {
		return nil, errors.New("netlink unavailable")
	}

	require.Equal(t, FallbackIPv4, ResolveLocalIPv4())
}

func TestFirstIPv4(t *testing.T) {
	ip := FirstIPv4([]net.Addr{
		&net.IPNet{IP: net.ParseIP("fe80::2"), Mask: net.CIDRMask(64, 128)},
		ipNet(127, 0, 0, 1),
		ipNet(192, 168, 4, 2),
	})
	require.Equal(t, "192.168.4.2", ip.String())
	require.Nil(t, FirstIPv4(nil))
	require.Nil(t, FirstIPv4([]net.Addr{ipNet(127, 0, 0, 1)}))
}
