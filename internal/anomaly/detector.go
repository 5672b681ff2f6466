// Package anomaly applies stateless heuristics over an already-aggregated
// packet set and produces human-readable alert strings.
package anomaly

import (
	"fmt"
	"sort"

	"pcapscope/internal/models"
)

// Config holds the detection thresholds and the suspicious-port list.
// Injected rather than global so tests can substitute alternates.
type Config struct {
	// PortScanThreshold is the number of distinct destination ports one
	// source may contact on a single destination before an alert fires.
	PortScanThreshold int
	// DNSFloodThreshold is the DNS packet count above which high DNS
	// activity is reported.
	DNSFloodThreshold int
	// HTTPCleartextThreshold is the HTTP packet count above which cleartext
	// traffic is reported.
	HTTPCleartextThreshold int
	// SuspiciousPorts are ports commonly tied to backdoors and IRC botnets.
	SuspiciousPorts []uint16
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PortScanThreshold:      20,
		DNSFloodThreshold:      100,
		HTTPCleartextThreshold: 10,
		SuspiciousPorts:        []uint16{4444, 5555, 31337, 12345, 6666, 6667},
	}
}

// Detector runs the heuristic rules. Stateless across Scan calls.
type Detector struct {
	cfg        Config
	suspicious map[uint16]struct{}
}

// NewDetector creates a detector with the given configuration.
func NewDetector(cfg Config) *Detector {
	d := &Detector{cfg: cfg, suspicious: make(map[uint16]struct{}, len(cfg.SuspiciousPorts))}
	for _, p := range cfg.SuspiciousPorts {
		d.suspicious[p] = struct{}{}
	}
	return d
}

// Scan applies every rule to the packet set and returns the deduplicated
// alert list in emission order.
func (d *Detector) Scan(pkts []models.ParsedPacket) []string {
	var alerts []string
	alerts = append(alerts, d.detectPortScans(pkts)...)
	alerts = append(alerts, d.detectDNSFlood(pkts)...)
	alerts = append(alerts, d.detectSuspiciousPorts(pkts)...)
	alerts = append(alerts, d.detectCleartextHTTP(pkts)...)
	return dedupe(alerts)
}

// detectPortScans groups packets by source/destination address pair and
// counts the distinct destination ports each pair touched. The rule is
// deliberately pairwise: one source fanning out across many destinations on
// a single port stays invisible to it.
func (d *Detector) detectPortScans(pkts []models.ParsedPacket) []string {
	pairPorts := make(map[string]map[uint16]struct{})
	for i := range pkts {
		pkt := &pkts[i]
		if !pkt.HasPorts || pkt.SrcAddr == "" || pkt.DstAddr == "" {
			continue
		}
		pair := pkt.SrcAddr + "->" + pkt.DstAddr
		ports, ok := pairPorts[pair]
		if !ok {
			ports = make(map[uint16]struct{})
			pairPorts[pair] = ports
		}
		ports[pkt.DstPort] = struct{}{}
	}

	pairs := make([]string, 0, len(pairPorts))
	for pair := range pairPorts {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	var alerts []string
	for _, pair := range pairs {
		if n := len(pairPorts[pair]); n > d.cfg.PortScanThreshold {
			alerts = append(alerts, fmt.Sprintf("Possible port scan: %s contacted %d distinct ports", pair, n))
		}
	}
	return alerts
}

func (d *Detector) detectDNSFlood(pkts []models.ParsedPacket) []string {
	count := 0
	for i := range pkts {
		if pkts[i].Has(string(models.ProtoDNS)) {
			count++
		}
	}
	if count > d.cfg.DNSFloodThreshold {
		return []string{fmt.Sprintf("High DNS activity: %d DNS packets", count)}
	}
	return nil
}

func (d *Detector) detectSuspiciousPorts(pkts []models.ParsedPacket) []string {
	var alerts []string
	for i := range pkts {
		pkt := &pkts[i]
		if !pkt.HasPorts {
			continue
		}
		if _, ok := d.suspicious[pkt.SrcPort]; ok {
			alerts = append(alerts, fmt.Sprintf("Suspicious port %d used by %s", pkt.SrcPort, pkt.SrcAddr))
		}
		if _, ok := d.suspicious[pkt.DstPort]; ok {
			alerts = append(alerts, fmt.Sprintf("Suspicious port %d contacted on %s", pkt.DstPort, pkt.DstAddr))
		}
	}
	return alerts
}

func (d *Detector) detectCleartextHTTP(pkts []models.ParsedPacket) []string {
	count := 0
	for i := range pkts {
		if pkts[i].Has(string(models.ProtoHTTP)) {
			count++
		}
	}
	if count > d.cfg.HTTPCleartextThreshold {
		return []string{fmt.Sprintf("Unencrypted HTTP traffic: %d packets", count)}
	}
	return nil
}

func dedupe(alerts []string) []string {
	if len(alerts) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(alerts))
	out := alerts[:0]
	for _, a := range alerts {
		if _, ok := seen[a]; ok {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	return out
}
