package models

import (
	"strings"
	"time"
)

// Protocol identifies one entry in a packet's decoded protocol stack.
type Protocol string

const (
	ProtoEthernet Protocol = "Ethernet"
	ProtoIPv4     Protocol = "IPv4"
	ProtoIPv6     Protocol = "IPv6"
	ProtoARP      Protocol = "ARP"
	ProtoTCP      Protocol = "TCP"
	ProtoUDP      Protocol = "UDP"
	ProtoICMP     Protocol = "ICMP"
	ProtoDNS      Protocol = "DNS"
	ProtoHTTP     Protocol = "HTTP"
	ProtoInvalid  Protocol = "INVALID"
)

// LinkDetect records how the decoder settled on a link-layer framing.
// Anything other than DetectConfident means the container declared a link
// type the decoder does not know and the frame was classified by probing.
type LinkDetect string

const (
	DetectConfident         LinkDetect = "confident"
	DetectHeuristicEthernet LinkDetect = "heuristic-ethernet"
	DetectHeuristicRawIPv4  LinkDetect = "heuristic-raw-ipv4"
	DetectUnknown           LinkDetect = "unknown"
)

// ParsedPacket is one decoded frame. It is immutable after decoding; the raw
// bytes and the transport payload slice are retained so application-layer
// extractors never recompute header offsets.
type ParsedPacket struct {
	Number    int        `json:"number"`
	Timestamp time.Time  `json:"timestamp"`
	Length    int        `json:"length"`
	Stack     []Protocol `json:"protocols"`
	SrcAddr   string     `json:"srcAddr,omitempty"`
	DstAddr   string     `json:"dstAddr,omitempty"`
	SrcPort   uint16     `json:"srcPort,omitempty"`
	DstPort   uint16     `json:"dstPort,omitempty"`
	HasPorts  bool       `json:"hasPorts"`
	Info      string     `json:"info"`
	Detect    LinkDetect `json:"detect,omitempty"`

	// Data is the captured frame; Payload is the transport payload within it
	// (nil when the packet has no dissected transport layer).
	Data    []byte `json:"-"`
	Payload []byte `json:"-"`
}

// Top returns the most specific protocol label of the packet.
func (p *ParsedPacket) Top() Protocol {
	if len(p.Stack) == 0 {
		return ProtoInvalid
	}
	return p.Stack[len(p.Stack)-1]
}

// Has reports whether the stack contains the given label, case-insensitively.
func (p *ParsedPacket) Has(label string) bool {
	for _, proto := range p.Stack {
		if strings.EqualFold(string(proto), label) {
			return true
		}
	}
	return false
}
