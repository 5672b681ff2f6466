// Package flow aggregates a filtered packet sequence into protocol
// histograms, bidirectional conversation records, and per-address endpoint
// totals.
package flow

import (
	"fmt"
	"sort"

	"pcapscope/internal/models"
)

// maxConversations bounds the returned conversation list to the largest
// flows by byte count.
const maxConversations = 50

// ProtocolBreakdown groups packets by their most specific protocol label and
// computes each label's share of the set's total bytes. When the total is
// zero every percentage is zero. Sorted descending by bytes.
func ProtocolBreakdown(pkts []models.ParsedPacket) []models.ProtocolStats {
	byProto := make(map[models.Protocol]*models.ProtocolStats)
	var totalBytes int64
	for i := range pkts {
		top := pkts[i].Top()
		st, ok := byProto[top]
		if !ok {
			st = &models.ProtocolStats{Protocol: top}
			byProto[top] = st
		}
		st.Packets++
		st.Bytes += int64(pkts[i].Length)
		totalBytes += int64(pkts[i].Length)
	}

	out := make([]models.ProtocolStats, 0, len(byProto))
	for _, st := range byProto {
		if totalBytes > 0 {
			st.Percent = 100 * float64(st.Bytes) / float64(totalBytes)
		}
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Bytes != out[j].Bytes {
			return out[i].Bytes > out[j].Bytes
		}
		return out[i].Protocol < out[j].Protocol
	})
	return out
}

// Conversations merges both directions of each transport 4-tuple into a
// single record. Only packets carrying both ports participate. The lookup
// tries the canonical key first, then the reversed key, and inserts under
// the canonical key, so the recorded direction is that of the first packet
// seen. Returns at most maxConversations records, largest by bytes first.
func Conversations(pkts []models.ParsedPacket) []models.ConversationStats {
	convs := make(map[string]*models.ConversationStats)
	var order []string

	for i := range pkts {
		pkt := &pkts[i]
		if !pkt.HasPorts {
			continue
		}
		proto := transportLabel(pkt)
		key := conversationKey(proto, pkt.SrcAddr, pkt.SrcPort, pkt.DstAddr, pkt.DstPort)
		reversed := conversationKey(proto, pkt.DstAddr, pkt.DstPort, pkt.SrcAddr, pkt.SrcPort)

		c, ok := convs[key]
		if !ok {
			c, ok = convs[reversed]
		}
		if !ok {
			c = &models.ConversationStats{
				Protocol:  proto,
				SrcAddr:   pkt.SrcAddr,
				SrcPort:   pkt.SrcPort,
				DstAddr:   pkt.DstAddr,
				DstPort:   pkt.DstPort,
				StartTime: pkt.Timestamp,
				EndTime:   pkt.Timestamp,
			}
			convs[key] = c
			order = append(order, key)
		}

		c.Packets++
		c.Bytes += int64(pkt.Length)
		c.EndTime = pkt.Timestamp
		c.Duration = c.EndTime.Sub(c.StartTime)
	}

	out := make([]models.ConversationStats, 0, len(order))
	for _, key := range order {
		out = append(out, *convs[key])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bytes > out[j].Bytes })
	if len(out) > maxConversations {
		out = out[:maxConversations]
	}
	return out
}

// Endpoints accumulates per-address totals: each packet counts once for its
// source address and once for its destination address. The port set records
// the source port on the source entry and the destination port on the
// destination entry. Sorted descending by bytes.
func Endpoints(pkts []models.ParsedPacket) []models.EndpointStats {
	type endpoint struct {
		stats models.EndpointStats
		ports map[uint16]struct{}
	}
	byAddr := make(map[string]*endpoint)
	var order []string

	touch := func(addr string, length int, port uint16, hasPort bool) {
		if addr == "" {
			return
		}
		ep, ok := byAddr[addr]
		if !ok {
			ep = &endpoint{
				stats: models.EndpointStats{Addr: addr},
				ports: make(map[uint16]struct{}),
			}
			byAddr[addr] = ep
			order = append(order, addr)
		}
		ep.stats.Packets++
		ep.stats.Bytes += int64(length)
		if hasPort {
			ep.ports[port] = struct{}{}
		}
	}

	for i := range pkts {
		pkt := &pkts[i]
		touch(pkt.SrcAddr, pkt.Length, pkt.SrcPort, pkt.HasPorts)
		touch(pkt.DstAddr, pkt.Length, pkt.DstPort, pkt.HasPorts)
	}

	out := make([]models.EndpointStats, 0, len(order))
	for _, addr := range order {
		ep := byAddr[addr]
		ep.stats.Ports = sortedPorts(ep.ports)
		out = append(out, ep.stats)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Bytes > out[j].Bytes })
	return out
}

// transportLabel picks the transport-layer protocol for conversation keying.
// Application labels (HTTP, DNS) ride on top and must not split the flow.
func transportLabel(pkt *models.ParsedPacket) models.Protocol {
	for _, proto := range pkt.Stack {
		if proto == models.ProtoTCP || proto == models.ProtoUDP {
			return proto
		}
	}
	return pkt.Top()
}

func conversationKey(proto models.Protocol, srcAddr string, srcPort uint16, dstAddr string, dstPort uint16) string {
	return fmt.Sprintf("%s:%s:%d-%s:%d", proto, srcAddr, srcPort, dstAddr, dstPort)
}

func sortedPorts(set map[uint16]struct{}) []uint16 {
	if len(set) == 0 {
		return nil
	}
	ports := make([]uint16, 0, len(set))
	for p := range set {
		ports = append(ports, p)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i] < ports[j] })
	return ports
}
