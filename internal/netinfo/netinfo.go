// Package netinfo answers "which address can a phone on the LAN use to reach
// this host". The answer is diagnostic only and is computed on demand.
package netinfo

import (
	"log"
	"net"

	"github.com/samber/lo"
)

// FallbackIPv4 is returned when no LAN-facing IPv4 address exists.
const FallbackIPv4 = "127.0.0.1"

var (
	listNetworkInterfaces = net.Interfaces
	interfaceAddrs        = func(iface *net.Interface) ([]net.Addr, error) {
		return iface.Addrs()
	}
)

// ResolveLocalIPv4 returns the first IPv4 address that belongs to an up,
// running, non-loopback interface and is not itself a loopback address. Interfaces are
// visited in the order the OS reports them. FallbackIPv4 is returned when
// nothing qualifies.
func ResolveLocalIPv4() string {
	addrs := LANAddresses()
	if len(addrs) == 0 {
		return FallbackIPv4
	}
	return addrs[0].String()
}

// LANAddresses lists every LAN-facing IPv4 address in discovery order.
func LANAddresses() []net.IP {
	interfaces, err := listNetworkInterfaces()
	if err != nil {
		log.Printf("WARN: Failed to list network interfaces: %v", err)
		return nil
	}

	candidates := lo.Filter(interfaces, func(iface net.Interface, _ int) bool {
		return iface.Flags&net.FlagLoopback == 0 &&
			iface.Flags&net.FlagUp != 0 &&
			iface.Flags&net.FlagRunning != 0
	})

	var out []net.IP
	for i := range candidates {
		iface := &candidates[i]
		addrs, err := interfaceAddrs(iface)
		if err != nil {
			log.Printf("WARN: Failed to read addresses of %s: %v", iface.Name, err)
			continue
		}
		out = append(out, lo.FilterMap(addrs, func(addr net.Addr, _ int) (net.IP, bool) {
			ip := ipv4Of(addr)
			return ip, ip != nil && !ip.IsLoopback()
		})...)
	}
	return out
}

// FirstIPv4 returns the first non-loopback IPv4 address in addrs, or nil.
func FirstIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		if ip := ipv4Of(addr); ip != nil && !ip.IsLoopback() {
			return ip
		}
	}
	return nil
}

func ipv4Of(addr net.Addr) net.IP {
	var ip net.IP
	switch v := addr.(type) {
	case *net.IPNet:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return nil
	}
	return ip.To4()
}
