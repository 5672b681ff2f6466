package extract

import (
	"strings"

	"pcapscope/internal/models"
)

var httpMethods = map[string]struct{}{
	"GET":     {},
	"POST":    {},
	"PUT":     {},
	"DELETE":  {},
	"HEAD":    {},
	"OPTIONS": {},
	"PATCH":   {},
}

// HTTPRequests returns one artifact per HTTP-tagged packet whose payload
// carries a well-formed request line. Header lines are scanned
// case-insensitively for Host and User-Agent; a missing Host falls back to
// the packet's destination address.
func HTTPRequests(pkts []models.ParsedPacket) []models.HTTPRequest {
	var out []models.HTTPRequest
	for i := range pkts {
		pkt := &pkts[i]
		if !pkt.Has(string(models.ProtoHTTP)) || len(pkt.Payload) == 0 {
			continue
		}
		req, ok := parseRequest(string(pkt.Payload))
		if !ok {
			continue
		}
		req.Timestamp = pkt.Timestamp
		req.SrcAddr = pkt.SrcAddr
		if req.Host == "" {
			req.Host = pkt.DstAddr
		}
		out = append(out, req)
	}
	return out
}

func parseRequest(payload string) (models.HTTPRequest, bool) {
	lines := strings.Split(payload, "\r\n")
	fields := strings.Fields(lines[0])
	if len(fields) < 3 || !strings.HasPrefix(fields[2], "HTTP/") {
		return models.HTTPRequest{}, false
	}
	if _, ok := httpMethods[fields[0]]; !ok {
		return models.HTTPRequest{}, false
	}

	req := models.HTTPRequest{Method: fields[0], Path: fields[1]}
	for _, line := range lines[1:] {
		if line == "" {
			break
		}
		lower := strings.ToLower(line)
		switch {
		case strings.HasPrefix(lower, "host:"):
			req.Host = strings.TrimSpace(line[len("host:"):])
		case strings.HasPrefix(lower, "user-agent:"):
			req.UserAgent = strings.TrimSpace(line[len("user-agent:"):])
		}
	}
	return req, true
}
