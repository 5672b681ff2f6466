package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/google/gopacket/layers"

	"pcapscope/internal/capture"
	"pcapscope/internal/models"
)

const (
	ethernetHeaderLen = 14
	sllHeaderLen      = 16
)

// Decoder dissects raw capture records into ParsedPackets. The link-layer
// type comes from the container's global header and is shared, read-only
// state, so a Decoder is safe for concurrent use.
type Decoder struct {
	linkType layers.LinkType
}

// NewDecoder creates a decoder for the given link-layer type.
func NewDecoder(linkType layers.LinkType) *Decoder {
	return &Decoder{linkType: linkType}
}

// Decode dissects one record. It never fails: any structural inconsistency
// produces a packet whose stack is [INVALID] with a descriptive info string,
// so aggregation can continue over the rest of the capture.
func (d *Decoder) Decode(rec *capture.Record, number int) models.ParsedPacket {
	pkt := models.ParsedPacket{
		Number:    number,
		Timestamp: rec.Timestamp,
		Length:    rec.OriginalLength,
		Data:      rec.Data,
		Detect:    models.DetectConfident,
	}

	switch d.linkType {
	case layers.LinkTypeEthernet:
		d.decodeEthernet(&pkt, rec.Data)
	case layers.LinkTypeRaw:
		d.decodeRawIP(&pkt, rec.Data)
	case layers.LinkTypeLinuxSLL:
		d.decodeLinuxSLL(&pkt, rec.Data)
	default:
		d.decodeHeuristic(&pkt, rec.Data)
	}
	return pkt
}

func (d *Decoder) decodeEthernet(pkt *models.ParsedPacket, data []byte) {
	if len(data) < ethernetHeaderLen {
		invalidate(pkt, fmt.Sprintf("Ethernet header truncated (%d bytes)", len(data)))
		return
	}
	pkt.Stack = append(pkt.Stack, models.ProtoEthernet)
	// MAC addresses as a fallback until a network layer provides IPs.
	pkt.DstAddr = formatMAC(data[0:6])
	pkt.SrcAddr = formatMAC(data[6:12])

	etherType := binary.BigEndian.Uint16(data[12:14])
	d.decodeNetwork(pkt, etherType, data, ethernetHeaderLen, true)
}

// decodeLinuxSLL handles the 16-byte Linux cooked-capture pseudo header.
// The EtherType-compatible protocol field sits at offset 14.
func (d *Decoder) decodeLinuxSLL(pkt *models.ParsedPacket, data []byte) {
	if len(data) < sllHeaderLen {
		invalidate(pkt, fmt.Sprintf("Linux cooked header truncated (%d bytes)", len(data)))
		return
	}
	etherType := binary.BigEndian.Uint16(data[14:16])
	d.decodeNetwork(pkt, etherType, data, sllHeaderLen, false)
}

// decodeRawIP handles link type 101: no link header, the IP version nibble
// of the first byte picks the network layer.
func (d *Decoder) decodeRawIP(pkt *models.ParsedPacket, data []byte) {
	if len(data) < 1 {
		invalidate(pkt, "empty raw IP frame")
		return
	}
	switch data[0] >> 4 {
	case 4:
		d.decodeIPv4(pkt, data, 0)
	case 6:
		d.decodeIPv6(pkt, data, 0)
	default:
		invalidate(pkt, fmt.Sprintf("raw IP frame with version %d", data[0]>>4))
	}
}

// decodeHeuristic is the best-effort path for link-type codes the container
// declares but the decoder does not know. An EtherType probe wins over a raw
// IPv4 probe; anything else is INVALID.
func (d *Decoder) decodeHeuristic(pkt *models.ParsedPacket, data []byte) {
	if len(data) >= ethernetHeaderLen {
		switch layers.EthernetType(binary.BigEndian.Uint16(data[12:14])) {
		case layers.EthernetTypeIPv4, layers.EthernetTypeIPv6, layers.EthernetTypeARP:
			pkt.Detect = models.DetectHeuristicEthernet
			d.decodeEthernet(pkt, data)
			return
		}
	}
	if len(data) >= ipv4MinHeaderLen && data[0]>>4 == 4 {
		pkt.Detect = models.DetectHeuristicRawIPv4
		d.decodeIPv4(pkt, data, 0)
		return
	}
	pkt.Detect = models.DetectUnknown
	invalidate(pkt, fmt.Sprintf("unknown link type %d", d.linkType))
}

func (d *Decoder) decodeNetwork(pkt *models.ParsedPacket, etherType uint16, data []byte, offset int, fromEthernet bool) {
	switch layers.EthernetType(etherType) {
	case layers.EthernetTypeIPv4:
		d.decodeIPv4(pkt, data, offset)
	case layers.EthernetTypeIPv6:
		d.decodeIPv6(pkt, data, offset)
	case layers.EthernetTypeARP:
		if fromEthernet {
			d.decodeARP(pkt, data, offset)
			return
		}
		pkt.Info = "ARP outside Ethernet framing"
	default:
		pkt.Info = fmt.Sprintf("EtherType 0x%04x", etherType)
	}
}

// invalidate downgrades the packet to the INVALID outcome. Whatever was
// decoded before the inconsistency is discarded so downstream consumers see
// a single consistent label.
func invalidate(pkt *models.ParsedPacket, reason string) {
	pkt.Stack = []models.Protocol{models.ProtoInvalid}
	pkt.SrcPort = 0
	pkt.DstPort = 0
	pkt.HasPorts = false
	pkt.Payload = nil
	pkt.Info = reason
}
