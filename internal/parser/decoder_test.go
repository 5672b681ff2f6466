package parser

import (
	"bytes"
	"encoding/binary"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"pcapscope/internal/capture"
	"pcapscope/internal/models"
)

var (
	testSrcMAC = net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}
	testDstMAC = net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB}
)

func serialize(t *testing.T, ls ...gopacket.SerializableLayer) []byte {
	t.Helper()
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	return buf.Bytes()
}

func record(data []byte) *capture.Record {
	return &capture.Record{
		Timestamp:      time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		CaptureLength:  len(data),
		OriginalLength: len(data),
		Data:           data,
	}
}

func tcpFrame(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16, syn, ack bool, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.ParseIP(srcIP),
		DstIP:    net.ParseIP(dstIP),
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		SYN:     syn,
		ACK:     ack,
		Window:  65535,
	}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	return serialize(t, eth, ip, tcp, gopacket.Payload(payload))
}

func udpFrame(t *testing.T, srcIP, dstIP string, srcPort, dstPort uint16, payload []byte) []byte {
	t.Helper()
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.ParseIP(srcIP),
		DstIP:    net.ParseIP(dstIP),
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(srcPort), DstPort: layers.UDPPort(dstPort)}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	return serialize(t, eth, ip, udp, gopacket.Payload(payload))
}

// dnsQueryMessage builds a minimal DNS query for the given labels.
func dnsQueryMessage(labels []string, response bool) []byte {
	msg := make([]byte, 12)
	binary.BigEndian.PutUint16(msg[0:2], 0x1234)
	if response {
		binary.BigEndian.PutUint16(msg[2:4], 0x8180)
	} else {
		binary.BigEndian.PutUint16(msg[2:4], 0x0100)
	}
	binary.BigEndian.PutUint16(msg[4:6], 1)
	for _, label := range labels {
		msg = append(msg, byte(len(label)))
		msg = append(msg, label...)
	}
	msg = append(msg, 0x00)
	msg = append(msg, 0x00, 0x01, 0x00, 0x01)
	return msg
}

func stackOf(pkt models.ParsedPacket) string {
	parts := make([]string, len(pkt.Stack))
	for i, p := range pkt.Stack {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func TestDecodeTCPSyn(t *testing.T) {
	data := tcpFrame(t, "10.0.0.5", "93.184.216.34", 51000, 80, true, false, nil)
	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data), 1)

	if got := stackOf(pkt); got != "Ethernet,IPv4,TCP" {
		t.Errorf("stack = %s, want Ethernet,IPv4,TCP", got)
	}
	if pkt.SrcAddr != "10.0.0.5" || pkt.DstAddr != "93.184.216.34" {
		t.Errorf("addrs = %s -> %s", pkt.SrcAddr, pkt.DstAddr)
	}
	if !pkt.HasPorts || pkt.SrcPort != 51000 || pkt.DstPort != 80 {
		t.Errorf("ports = %d -> %d (hasPorts=%v)", pkt.SrcPort, pkt.DstPort, pkt.HasPorts)
	}
	if !strings.Contains(pkt.Info, "[SYN]") {
		t.Errorf("info = %q, want SYN flag", pkt.Info)
	}
	if pkt.Detect != models.DetectConfident {
		t.Errorf("detect = %s, want confident", pkt.Detect)
	}
}

func TestDecodeTCPNoFlags(t *testing.T) {
	data := tcpFrame(t, "10.0.0.5", "10.0.0.6", 1024, 2048, false, false, nil)
	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data), 1)
	if !strings.Contains(pkt.Info, "[NONE]") {
		t.Errorf("info = %q, want NONE flags", pkt.Info)
	}
}

func TestDecodeHTTPRequest(t *testing.T) {
	payload := []byte("GET /index.html HTTP/1.1\r\nHost: example.com\r\n\r\n")
	data := tcpFrame(t, "10.0.0.5", "93.184.216.34", 51000, 80, false, true, payload)
	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data), 1)

	if got := stackOf(pkt); got != "Ethernet,IPv4,TCP,HTTP" {
		t.Errorf("stack = %s, want Ethernet,IPv4,TCP,HTTP", got)
	}
	if pkt.Info != "GET /index.html HTTP/1.1" {
		t.Errorf("info = %q, want request line", pkt.Info)
	}
	if !bytes.Equal(pkt.Payload, payload) {
		t.Error("cached payload mismatch")
	}
}

func TestDecodeDNS(t *testing.T) {
	query := udpFrame(t, "192.168.1.10", "8.8.8.8", 33000, 53, dnsQueryMessage([]string{"www", "example", "com"}, false))
	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(query), 1)
	if got := stackOf(pkt); got != "Ethernet,IPv4,UDP,DNS" {
		t.Errorf("stack = %s, want Ethernet,IPv4,UDP,DNS", got)
	}
	if pkt.Info != "Standard query" {
		t.Errorf("info = %q, want Standard query", pkt.Info)
	}

	resp := udpFrame(t, "8.8.8.8", "192.168.1.10", 53, 33000, dnsQueryMessage([]string{"www", "example", "com"}, true))
	pkt = NewDecoder(layers.LinkTypeEthernet).Decode(record(resp), 2)
	if pkt.Info != "Standard query response" {
		t.Errorf("info = %q, want Standard query response", pkt.Info)
	}
}

func TestDecodeICMPEcho(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv4}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IPv4(10, 0, 0, 5),
		DstIP:    net.IPv4(10, 0, 0, 1),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(8, 0)}
	data := serialize(t, eth, ip, icmp)

	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data), 1)
	if got := stackOf(pkt); got != "Ethernet,IPv4,ICMP" {
		t.Errorf("stack = %s, want Ethernet,IPv4,ICMP", got)
	}
	if pkt.Info != "Echo (ping) request" {
		t.Errorf("info = %q", pkt.Info)
	}
}

func TestDecodeARPRequest(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: net.HardwareAddr{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPRequest,
		SourceHwAddress:   []byte(testSrcMAC),
		SourceProtAddress: []byte{10, 0, 0, 5},
		DstHwAddress:      make([]byte, 6),
		DstProtAddress:    []byte{10, 0, 0, 1},
	}
	data := serialize(t, eth, arp)

	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data), 1)
	if got := stackOf(pkt); got != "Ethernet,ARP" {
		t.Errorf("stack = %s, want Ethernet,ARP", got)
	}
	if pkt.Info != "Who has 10.0.0.1? Tell 10.0.0.5" {
		t.Errorf("info = %q", pkt.Info)
	}
	if pkt.SrcAddr != "10.0.0.5" || pkt.DstAddr != "10.0.0.1" {
		t.Errorf("addrs = %s -> %s", pkt.SrcAddr, pkt.DstAddr)
	}
}

func TestDecodeARPReply(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeARP}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   []byte(testSrcMAC),
		SourceProtAddress: []byte{10, 0, 0, 1},
		DstHwAddress:      []byte(testDstMAC),
		DstProtAddress:    []byte{10, 0, 0, 5},
	}
	data := serialize(t, eth, arp)

	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data), 1)
	if pkt.Info != "10.0.0.1 is at 00:11:22:33:44:55" {
		t.Errorf("info = %q", pkt.Info)
	}
}

func TestDecodeIPv6AddressFormat(t *testing.T) {
	eth := &layers.Ethernet{SrcMAC: testSrcMAC, DstMAC: testDstMAC, EthernetType: layers.EthernetTypeIPv6}
	ip6 := &layers.IPv6{
		Version:    6,
		NextHeader: layers.IPProtocolTCP,
		HopLimit:   64,
		SrcIP:      net.ParseIP("2001:db8::1"),
		DstIP:      net.ParseIP("fe80::abcd"),
	}
	data := serialize(t, eth, ip6)

	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data), 1)
	if got := stackOf(pkt); got != "Ethernet,IPv6" {
		t.Errorf("stack = %s, want Ethernet,IPv6", got)
	}
	if pkt.SrcAddr != "2001:db8:0:0:0:0:0:1" {
		t.Errorf("src = %q, want uncompressed hex groups", pkt.SrcAddr)
	}
	if pkt.DstAddr != "fe80:0:0:0:0:0:0:abcd" {
		t.Errorf("dst = %q, want uncompressed hex groups", pkt.DstAddr)
	}
}

func TestDecodeUnknownEtherType(t *testing.T) {
	frame := make([]byte, 20)
	copy(frame[0:6], testDstMAC)
	copy(frame[6:12], testSrcMAC)
	binary.BigEndian.PutUint16(frame[12:14], 0x88CC) // LLDP
	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(frame), 1)

	if got := stackOf(pkt); got != "Ethernet" {
		t.Errorf("stack = %s, want Ethernet", got)
	}
	if !strings.Contains(pkt.Info, "0x88cc") {
		t.Errorf("info = %q, want EtherType", pkt.Info)
	}
	if pkt.SrcAddr != testSrcMAC.String() {
		t.Errorf("src = %q, want MAC fallback", pkt.SrcAddr)
	}
}

func TestDecodeTruncatedFrame(t *testing.T) {
	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(make([]byte, 10)), 1)
	if got := stackOf(pkt); got != "INVALID" {
		t.Errorf("stack = %s, want INVALID", got)
	}
	if pkt.Info == "" {
		t.Error("want descriptive info for truncated frame")
	}
}

func TestDecodeTruncatedIPv4(t *testing.T) {
	data := tcpFrame(t, "10.0.0.5", "10.0.0.6", 1, 2, false, false, nil)
	pkt := NewDecoder(layers.LinkTypeEthernet).Decode(record(data[:20]), 1)
	if got := stackOf(pkt); got != "INVALID" {
		t.Errorf("stack = %s, want INVALID", got)
	}
}

func TestDecodeRawIPLinkType(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(172, 16, 0, 1),
		DstIP:    net.IPv4(172, 16, 0, 2),
	}
	tcp := &layers.TCP{SrcPort: 4000, DstPort: 5000, ACK: true, Window: 1024}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	data := serialize(t, ip, tcp)

	pkt := NewDecoder(layers.LinkTypeRaw).Decode(record(data), 1)
	if got := stackOf(pkt); got != "IPv4,TCP" {
		t.Errorf("stack = %s, want IPv4,TCP", got)
	}
	if pkt.SrcAddr != "172.16.0.1" {
		t.Errorf("src = %q", pkt.SrcAddr)
	}
}

func TestDecodeLinuxSLL(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4(10, 1, 1, 1),
		DstIP:    net.IPv4(10, 1, 1, 2),
	}
	udp := &layers.UDP{SrcPort: 500, DstPort: 600}
	if err := udp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	inner := serialize(t, ip, udp)

	frame := make([]byte, sllHeaderLen+len(inner))
	binary.BigEndian.PutUint16(frame[14:16], 0x0800)
	copy(frame[sllHeaderLen:], inner)

	pkt := NewDecoder(layers.LinkTypeLinuxSLL).Decode(record(frame), 1)
	if got := stackOf(pkt); got != "IPv4,UDP" {
		t.Errorf("stack = %s, want IPv4,UDP", got)
	}
	if pkt.SrcPort != 500 || pkt.DstPort != 600 {
		t.Errorf("ports = %d -> %d", pkt.SrcPort, pkt.DstPort)
	}
}

func TestHeuristicEthernet(t *testing.T) {
	data := tcpFrame(t, "10.0.0.5", "10.0.0.6", 1111, 2222, true, false, nil)
	pkt := NewDecoder(0).Decode(record(data), 1)
	if pkt.Detect != models.DetectHeuristicEthernet {
		t.Errorf("detect = %s, want heuristic-ethernet", pkt.Detect)
	}
	if got := stackOf(pkt); got != "Ethernet,IPv4,TCP" {
		t.Errorf("stack = %s", got)
	}
}

func TestHeuristicRawIPv4(t *testing.T) {
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolICMPv4,
		SrcIP:    net.IPv4(10, 0, 0, 9),
		DstIP:    net.IPv4(10, 0, 0, 10),
	}
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(0, 0)}
	data := serialize(t, ip, icmp)

	pkt := NewDecoder(0).Decode(record(data), 1)
	if pkt.Detect != models.DetectHeuristicRawIPv4 {
		t.Errorf("detect = %s, want heuristic-raw-ipv4", pkt.Detect)
	}
	if got := stackOf(pkt); got != "IPv4,ICMP" {
		t.Errorf("stack = %s", got)
	}
}

func TestHeuristicUnknown(t *testing.T) {
	pkt := NewDecoder(0).Decode(record([]byte{0x01, 0x02, 0x03}), 1)
	if pkt.Detect != models.DetectUnknown {
		t.Errorf("detect = %s, want unknown", pkt.Detect)
	}
	if got := stackOf(pkt); got != "INVALID" {
		t.Errorf("stack = %s, want INVALID", got)
	}
}
