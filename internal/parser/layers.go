package parser

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"strings"

	"github.com/google/gopacket/layers"

	"pcapscope/internal/models"
)

const (
	ipv4MinHeaderLen = 20
	ipv6HeaderLen    = 40
	arpBodyLen       = 28
	tcpMinHeaderLen  = 20
	udpHeaderLen     = 8

	// httpSniffLen bounds how much payload the TCP dissector inspects when
	// deciding whether to tag a packet as HTTP.
	httpSniffLen = 100

	dnsPort = 53
)

var httpPrefixes = [][]byte{
	[]byte("HTTP/"),
	[]byte("GET "),
	[]byte("POST "),
	[]byte("PUT "),
	[]byte("DELETE "),
}

func (d *Decoder) decodeIPv4(pkt *models.ParsedPacket, data []byte, offset int) {
	if len(data) < offset+ipv4MinHeaderLen {
		invalidate(pkt, fmt.Sprintf("IPv4 header truncated (%d bytes past offset %d)", len(data)-offset, offset))
		return
	}
	headerLen := int(data[offset]&0x0F) * 4
	if headerLen < ipv4MinHeaderLen {
		invalidate(pkt, fmt.Sprintf("IPv4 IHL %d below minimum", headerLen))
		return
	}
	if len(data) < offset+headerLen {
		invalidate(pkt, "IPv4 options truncated")
		return
	}

	proto := data[offset+9]
	pkt.SrcAddr = net.IP(data[offset+12 : offset+16]).String()
	pkt.DstAddr = net.IP(data[offset+16 : offset+20]).String()
	pkt.Stack = append(pkt.Stack, models.ProtoIPv4)

	transport := offset + headerLen
	switch layers.IPProtocol(proto) {
	case layers.IPProtocolTCP:
		d.decodeTCP(pkt, data, transport)
	case layers.IPProtocolUDP:
		d.decodeUDP(pkt, data, transport)
	case layers.IPProtocolICMPv4:
		d.decodeICMP(pkt, data, transport)
	default:
		pkt.Info = fmt.Sprintf("%s -> %s IP protocol %d", pkt.SrcAddr, pkt.DstAddr, proto)
	}
}

// decodeIPv6 dissects the fixed 40-byte header only; transport dissection
// under IPv6 is out of scope for this engine.
func (d *Decoder) decodeIPv6(pkt *models.ParsedPacket, data []byte, offset int) {
	if len(data) < offset+ipv6HeaderLen {
		invalidate(pkt, fmt.Sprintf("IPv6 header truncated (%d bytes past offset %d)", len(data)-offset, offset))
		return
	}
	nextHeader := data[offset+6]
	pkt.SrcAddr = formatIPv6(data[offset+8 : offset+24])
	pkt.DstAddr = formatIPv6(data[offset+24 : offset+40])
	pkt.Stack = append(pkt.Stack, models.ProtoIPv6)
	pkt.Info = fmt.Sprintf("%s -> %s next header %d", pkt.SrcAddr, pkt.DstAddr, nextHeader)
}

func (d *Decoder) decodeARP(pkt *models.ParsedPacket, data []byte, offset int) {
	if len(data) < offset+arpBodyLen {
		invalidate(pkt, fmt.Sprintf("ARP body truncated (%d bytes past offset %d)", len(data)-offset, offset))
		return
	}
	opcode := binary.BigEndian.Uint16(data[offset+6 : offset+8])
	senderMAC := formatMAC(data[offset+8 : offset+14])
	senderIP := net.IP(data[offset+14 : offset+18]).String()
	targetIP := net.IP(data[offset+24 : offset+28]).String()

	pkt.SrcAddr = senderIP
	pkt.DstAddr = targetIP
	pkt.Stack = append(pkt.Stack, models.ProtoARP)

	switch opcode {
	case 1:
		pkt.Info = fmt.Sprintf("Who has %s? Tell %s", targetIP, senderIP)
	case 2:
		pkt.Info = fmt.Sprintf("%s is at %s", senderIP, senderMAC)
	default:
		pkt.Info = fmt.Sprintf("ARP opcode %d", opcode)
	}
}

func (d *Decoder) decodeTCP(pkt *models.ParsedPacket, data []byte, offset int) {
	if len(data) < offset+tcpMinHeaderLen {
		invalidate(pkt, fmt.Sprintf("TCP header truncated (%d bytes past offset %d)", len(data)-offset, offset))
		return
	}
	pkt.SrcPort = binary.BigEndian.Uint16(data[offset : offset+2])
	pkt.DstPort = binary.BigEndian.Uint16(data[offset+2 : offset+4])
	pkt.HasPorts = true
	pkt.Stack = append(pkt.Stack, models.ProtoTCP)

	flags := tcpFlagString(data[offset+13])
	dataOffset := int(data[offset+12]>>4) * 4
	if dataOffset >= tcpMinHeaderLen && offset+dataOffset <= len(data) {
		pkt.Payload = data[offset+dataOffset:]
	}
	pkt.Info = fmt.Sprintf("%d -> %d [%s] Len=%d", pkt.SrcPort, pkt.DstPort, flags, len(pkt.Payload))

	if line, ok := sniffHTTP(pkt.Payload); ok {
		pkt.Stack = append(pkt.Stack, models.ProtoHTTP)
		pkt.Info = line
	}
}

func (d *Decoder) decodeUDP(pkt *models.ParsedPacket, data []byte, offset int) {
	if len(data) < offset+udpHeaderLen {
		invalidate(pkt, fmt.Sprintf("UDP header truncated (%d bytes past offset %d)", len(data)-offset, offset))
		return
	}
	pkt.SrcPort = binary.BigEndian.Uint16(data[offset : offset+2])
	pkt.DstPort = binary.BigEndian.Uint16(data[offset+2 : offset+4])
	pkt.HasPorts = true
	pkt.Stack = append(pkt.Stack, models.ProtoUDP)
	pkt.Payload = data[offset+udpHeaderLen:]
	pkt.Info = fmt.Sprintf("%d -> %d Len=%d", pkt.SrcPort, pkt.DstPort, len(pkt.Payload))

	if pkt.SrcPort == dnsPort || pkt.DstPort == dnsPort {
		pkt.Stack = append(pkt.Stack, models.ProtoDNS)
		if len(pkt.Payload) >= 4 {
			if binary.BigEndian.Uint16(pkt.Payload[2:4])&0x8000 != 0 {
				pkt.Info = "Standard query response"
			} else {
				pkt.Info = "Standard query"
			}
		}
	}
}

func (d *Decoder) decodeICMP(pkt *models.ParsedPacket, data []byte, offset int) {
	if len(data) < offset+2 {
		invalidate(pkt, fmt.Sprintf("ICMP header truncated (%d bytes past offset %d)", len(data)-offset, offset))
		return
	}
	icmpType := data[offset]
	icmpCode := data[offset+1]
	pkt.Stack = append(pkt.Stack, models.ProtoICMP)

	switch icmpType {
	case 0:
		pkt.Info = "Echo (ping) reply"
	case 8:
		pkt.Info = "Echo (ping) request"
	default:
		pkt.Info = fmt.Sprintf("Type %d Code %d", icmpType, icmpCode)
	}
}

// tcpFlagString renders the flag byte as a comma-joined list, or NONE.
func tcpFlagString(flags byte) string {
	var parts []string
	if flags&0x02 != 0 {
		parts = append(parts, "SYN")
	}
	if flags&0x10 != 0 {
		parts = append(parts, "ACK")
	}
	if flags&0x01 != 0 {
		parts = append(parts, "FIN")
	}
	if flags&0x04 != 0 {
		parts = append(parts, "RST")
	}
	if flags&0x08 != 0 {
		parts = append(parts, "PSH")
	}
	if flags&0x20 != 0 {
		parts = append(parts, "URG")
	}
	if len(parts) == 0 {
		return "NONE"
	}
	return strings.Join(parts, ",")
}

// sniffHTTP checks the leading payload bytes for an HTTP request or status
// signature and returns the first line for the packet's info string.
func sniffHTTP(payload []byte) (string, bool) {
	if len(payload) == 0 {
		return "", false
	}
	sniff := payload
	if len(sniff) > httpSniffLen {
		sniff = sniff[:httpSniffLen]
	}
	matched := false
	for _, prefix := range httpPrefixes {
		if bytes.HasPrefix(sniff, prefix) {
			matched = true
			break
		}
	}
	if !matched {
		return "", false
	}
	line := payload
	if idx := bytes.Index(payload, []byte("\r\n")); idx >= 0 {
		line = payload[:idx]
	}
	return string(line), true
}

func formatMAC(b []byte) string {
	return net.HardwareAddr(b).String()
}

// formatIPv6 renders eight colon-separated lowercase hex groups without
// zero-compression.
func formatIPv6(b []byte) string {
	groups := make([]string, 8)
	for i := 0; i < 8; i++ {
		groups[i] = fmt.Sprintf("%x", binary.BigEndian.Uint16(b[2*i:2*i+2]))
	}
	return strings.Join(groups, ":")
}
