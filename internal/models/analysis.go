package models

import "time"

// ProtocolStats is the aggregate traffic share of one top-level protocol
// across the filtered packet set.
type ProtocolStats struct {
	Protocol Protocol `json:"protocol"`
	Packets  int      `json:"packets"`
	Bytes    int64    `json:"bytes"`
	Percent  float64  `json:"percent"`
}

// ConversationStats is a bidirectional flow keyed by transport 4-tuple and
// protocol. Src/Dst reflect the direction of the first packet seen.
type ConversationStats struct {
	Protocol  Protocol      `json:"protocol"`
	SrcAddr   string        `json:"srcAddr"`
	SrcPort   uint16        `json:"srcPort"`
	DstAddr   string        `json:"dstAddr"`
	DstPort   uint16        `json:"dstPort"`
	Packets   int           `json:"packets"`
	Bytes     int64         `json:"bytes"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
}

// EndpointStats holds per-address traffic totals, independent of direction.
type EndpointStats struct {
	Addr    string   `json:"addr"`
	Packets int      `json:"packets"`
	Bytes   int64    `json:"bytes"`
	Ports   []uint16 `json:"ports,omitempty"`
}

// DNSQuery is one extracted DNS question.
type DNSQuery struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	SrcAddr   string    `json:"srcAddr"`
}

// HTTPRequest is one extracted cleartext HTTP request.
type HTTPRequest struct {
	Method    string    `json:"method"`
	Host      string    `json:"host"`
	Path      string    `json:"path"`
	UserAgent string    `json:"userAgent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	SrcAddr   string    `json:"srcAddr"`
}

// PcapAnalysis is the complete result of analyzing one capture file. It is
// assembled once and handed to the caller; report renderers only format it.
type PcapAnalysis struct {
	Filename     string        `json:"filename"`
	FileSize     int64         `json:"fileSize"`
	LinkType     uint32        `json:"linkType"`
	TotalPackets int           `json:"totalPackets"`
	TotalBytes   int64         `json:"totalBytes"`
	CaptureStart time.Time     `json:"captureStart"`
	CaptureEnd   time.Time     `json:"captureEnd"`
	Duration     time.Duration `json:"duration"`

	Protocols     []ProtocolStats     `json:"protocols"`
	Conversations []ConversationStats `json:"conversations"`
	Endpoints     []EndpointStats     `json:"endpoints"`
	DNSQueries    []DNSQuery          `json:"dnsQueries"`
	HTTPRequests  []HTTPRequest       `json:"httpRequests"`
	Alerts        []string            `json:"alerts"`

	// Packets is populated only when the caller asked for the full list.
	Packets []ParsedPacket `json:"packets,omitempty"`
}
