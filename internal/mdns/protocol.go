package mdns

import (
	"errors"
	"log"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
	"github.com/samber/lo"
)

// responder reads queries from one interface socket until Stop.
func (m *Manager) responder(state *InterfaceState) {
	defer m.wg.Done()

	name := state.Interface.Name
	buffer := make([]byte, maxPacketSize+1)

	for {
		if m.stopping() {
			return
		}

		state.Conn.SetReadDeadline(time.Now().Add(1 * time.Second))
		n, clientAddr, err := state.Conn.ReadFromUDP(buffer)
		if err != nil {
			if m.stopping() || errors.Is(err, net.ErrClosed) {
				return
			}
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			log.Printf("WARN: mDNS read error on %s: %v", name, err)
			atomic.AddUint64(&state.ErrorCount, 1)
			continue
		}

		m.handleQuery(buffer[:n], clientAddr, state)
	}
}

// handleQuery answers a single packet. Queries from port 5353 get a
// multicast answer unless they ask for unicast; anything else is a legacy
// unicast resolver and gets a direct reply echoing its ID and question.
func (m *Manager) handleQuery(data []byte, clientAddr *net.UDPAddr, state *InterfaceState) {
	atomic.AddUint64(&state.QueryCount, 1)

	if len(data) > maxPacketSize {
		atomic.AddUint64(&state.ErrorCount, 1)
		return
	}

	var query dns.Msg
	if err := query.Unpack(data); err != nil {
		atomic.AddUint64(&state.ErrorCount, 1)
		return
	}

	response := m.buildResponse(&query, state.IPv4)
	if response == nil {
		return
	}

	legacy := clientAddr.Port != mdnsPort
	unicast := legacy || lo.SomeBy(query.Question, func(q dns.Question) bool {
		return q.Qclass&classTopBit != 0
	})

	dest := clientAddr
	if !legacy {
		// Multicast DNS responses carry no ID and no question section.
		response.Id = 0
		response.Question = nil
	}
	if !unicast {
		dest = &net.UDPAddr{IP: mdnsGroupIPv4, Port: mdnsPort}
	}

	packed, err := response.Pack()
	if err != nil {
		log.Printf("WARN: mDNS pack failed: %v", err)
		return
	}
	if _, err := state.Conn.WriteToUDP(packed, dest); err != nil {
		atomic.AddUint64(&state.ErrorCount, 1)
		log.Printf("WARN: [%s] mDNS reply to %s failed: %v", state.Interface.Name, dest, err)
	}
}

// buildResponse returns the answer to query for an interface whose address
// is ip, or nil when the query is not about our name.
func (m *Manager) buildResponse(query *dns.Msg, ip net.IP) *dns.Msg {
	if query.Response || query.Opcode != dns.OpcodeQuery || ip == nil {
		return nil
	}

	fqdn := m.fqdn()
	var answers []dns.RR
	for _, q := range query.Question {
		class := q.Qclass &^ classTopBit
		if class != dns.ClassINET && class != dns.ClassANY {
			continue
		}
		if !strings.EqualFold(q.Name, fqdn) {
			continue
		}
		if q.Qtype != dns.TypeA && q.Qtype != dns.TypeANY {
			continue
		}
		answers = append(answers, aRecord(fqdn, ip, recordTTL))
	}
	if len(answers) == 0 {
		return nil
	}

	response := new(dns.Msg)
	response.SetReply(query)
	response.Authoritative = true
	response.RecursionAvailable = false
	response.Answer = answers
	return response
}

func aRecord(name string, ip net.IP, ttl uint32) *dns.A {
	return &dns.A{
		Hdr: dns.RR_Header{
			Name:   name,
			Rrtype: dns.TypeA,
			Class:  dns.ClassINET | classTopBit,
			Ttl:    ttl,
		},
		A: ip.To4(),
	}
}

// announcer sends unsolicited announcements: three at startup, then one per
// announceInterval.
func (m *Manager) announcer() {
	defer m.wg.Done()

	for _, delay := range []time.Duration{0, 1 * time.Second, 2 * time.Second} {
		select {
		case <-m.stopCh:
			return
		case <-time.After(delay):
			m.sendAnnouncements()
		}
	}

	ticker := time.NewTicker(m.announceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.sendAnnouncements()
		}
	}
}

func (m *Manager) sendAnnouncements() {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	for name, state := range m.interfaces {
		if state.Active && state.Conn != nil {
			m.sendAnnouncement(name, state, recordTTL)
		}
	}
}

// sendAnnouncement multicasts our A record. A ttl of 0 is a goodbye.
func (m *Manager) sendAnnouncement(name string, state *InterfaceState, ttl uint32) {
	msg := new(dns.Msg)
	msg.Response = true
	msg.Authoritative = true
	msg.Opcode = dns.OpcodeQuery
	msg.Answer = []dns.RR{aRecord(m.fqdn(), state.IPv4, ttl)}

	data, err := msg.Pack()
	if err != nil {
		return
	}
	dest := &net.UDPAddr{IP: mdnsGroupIPv4, Port: mdnsPort}
	if _, err := state.Conn.WriteToUDP(data, dest); err != nil {
		atomic.AddUint64(&state.ErrorCount, 1)
		log.Printf("WARN: mDNS announcement on %s failed: %v", name, err)
	}
}
