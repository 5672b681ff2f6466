// Package extract pulls application-layer artifacts out of packets already
// tagged by the frame decoder. Extraction is best-effort: a payload that
// does not match the expected layout is skipped, never an error.
package extract

import (
	"encoding/binary"
	"strings"

	"pcapscope/internal/models"
)

const (
	dnsHeaderLen   = 12
	dnsMaxLabelLen = 63
)

// DNSQueries returns one artifact per DNS-tagged query packet. Responses
// (QR bit set) are skipped. The question name is read from the length-
// prefixed labels following the 12-byte message header; compression
// pointers are unsupported and simply stop the name.
func DNSQueries(pkts []models.ParsedPacket) []models.DNSQuery {
	var out []models.DNSQuery
	for i := range pkts {
		pkt := &pkts[i]
		if !pkt.Has(string(models.ProtoDNS)) {
			continue
		}
		msg := pkt.Payload
		if len(msg) < dnsHeaderLen+1 {
			continue
		}
		if binary.BigEndian.Uint16(msg[2:4])&0x8000 != 0 {
			continue
		}
		name := questionName(msg, dnsHeaderLen)
		if name == "" {
			continue
		}
		out = append(out, models.DNSQuery{
			Name:      name,
			Type:      "A",
			Timestamp: pkt.Timestamp,
			SrcAddr:   pkt.SrcAddr,
		})
	}
	return out
}

// questionName walks the label sequence starting at offset. A zero length
// ends the name; a length above 63 is a compression pointer and ends it too.
func questionName(msg []byte, offset int) string {
	var labels []string
	for offset < len(msg) {
		length := int(msg[offset])
		if length == 0 || length > dnsMaxLabelLen {
			break
		}
		offset++
		if offset+length > len(msg) {
			break
		}
		labels = append(labels, string(msg[offset:offset+length]))
		offset += length
	}
	return strings.Join(labels, ".")
}
