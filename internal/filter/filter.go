// Package filter implements the display filter: a pure predicate over parsed
// packets used to narrow the working set before aggregation.
package filter

import "pcapscope/internal/models"

// DisplayFilter combines its criteria with AND semantics. Zero values mean
// "no constraint": empty strings for addresses and the protocol label, zero
// for ports (port 0 never appears in dissected traffic).
type DisplayFilter struct {
	Protocol string
	SrcAddr  string
	DstAddr  string
	SrcPort  int
	DstPort  int
	// Port matches when either the source or the destination port equals it.
	Port int
}

// IsEmpty reports whether the filter has no criteria at all.
func (f *DisplayFilter) IsEmpty() bool {
	return f.Protocol == "" && f.SrcAddr == "" && f.DstAddr == "" &&
		f.SrcPort == 0 && f.DstPort == 0 && f.Port == 0
}

// Match reports whether the packet satisfies every present criterion.
func (f *DisplayFilter) Match(pkt *models.ParsedPacket) bool {
	if f.Protocol != "" && !pkt.Has(f.Protocol) {
		return false
	}
	if f.SrcAddr != "" && pkt.SrcAddr != f.SrcAddr {
		return false
	}
	if f.DstAddr != "" && pkt.DstAddr != f.DstAddr {
		return false
	}
	if f.SrcPort != 0 && (!pkt.HasPorts || int(pkt.SrcPort) != f.SrcPort) {
		return false
	}
	if f.DstPort != 0 && (!pkt.HasPorts || int(pkt.DstPort) != f.DstPort) {
		return false
	}
	if f.Port != 0 && (!pkt.HasPorts || (int(pkt.SrcPort) != f.Port && int(pkt.DstPort) != f.Port)) {
		return false
	}
	return true
}

// Apply returns the packets matching the filter, preserving file order. A nil
// or empty filter returns the input unchanged.
func Apply(f *DisplayFilter, pkts []models.ParsedPacket) []models.ParsedPacket {
	if f == nil || f.IsEmpty() {
		return pkts
	}
	out := make([]models.ParsedPacket, 0, len(pkts))
	for i := range pkts {
		if f.Match(&pkts[i]) {
			out = append(out, pkts[i])
		}
	}
	return out
}
