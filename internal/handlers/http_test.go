package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"pcapscope/internal/engine"
	"pcapscope/internal/models"
)

func testCapture(t *testing.T) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    net.IPv4(10, 0, 0, 5),
		DstIP:    net.IPv4(93, 184, 216, 34),
	}
	tcp := &layers.TCP{SrcPort: 51000, DstPort: 80, SYN: true, Window: 65535}
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		t.Fatalf("checksum layer: %v", err)
	}
	sb := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(sb, opts, eth, ip, tcp); err != nil {
		t.Fatalf("serialize: %v", err)
	}
	frame := sb.Bytes()

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	if err := w.WriteFileHeader(65535, layers.LinkTypeEthernet); err != nil {
		t.Fatalf("write header: %v", err)
	}
	ci := gopacket.CaptureInfo{
		Timestamp:     time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
		CaptureLength: len(frame),
		Length:        len(frame),
	}
	if err := w.WritePacket(ci, frame); err != nil {
		t.Fatalf("write packet: %v", err)
	}
	return buf.Bytes()
}

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	srv := engine.NewServer(engine.New(engine.Options{}, nil), nil)
	mux := http.NewServeMux()
	RegisterRoutes(mux, srv, 10<<20)
	return mux
}

func uploadRequest(t *testing.T, capture []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "upload.pcap")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := fw.Write(capture); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestAnalyzeUpload(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, testCapture(t)))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}

	var analysis models.PcapAnalysis
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if analysis.Filename != "upload.pcap" {
		t.Errorf("filename = %q", analysis.Filename)
	}
	if analysis.TotalPackets != 1 {
		t.Errorf("totalPackets = %d", analysis.TotalPackets)
	}
}

func TestAnalyzeRejectsGet(t *testing.T) {
	mux := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analyze", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestAnalyzeMissingFile(t *testing.T) {
	mux := newTestMux(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAnalyzeBadCapture(t *testing.T) {
	mux := newTestMux(t)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, []byte("definitely not a pcap")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLastAnalysisLifecycle(t *testing.T) {
	mux := newTestMux(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status before upload = %d, want 404", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, testCapture(t)))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/analysis", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status after upload = %d, want 200", rec.Code)
	}
	var analysis models.PcapAnalysis
	if err := json.Unmarshal(rec.Body.Bytes(), &analysis); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if analysis.TotalPackets != 1 {
		t.Errorf("totalPackets = %d", analysis.TotalPackets)
	}
}
