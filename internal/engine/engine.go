// Package engine drives the analysis pipeline: container reading, per-frame
// decoding, display filtering, aggregation, extraction, and anomaly
// detection, assembled into a single PcapAnalysis result.
package engine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"pcapscope/internal/anomaly"
	"pcapscope/internal/capture"
	"pcapscope/internal/extract"
	"pcapscope/internal/filter"
	"pcapscope/internal/flow"
	"pcapscope/internal/models"
	"pcapscope/internal/parser"
)

// Options configures one analysis run. The zero value analyzes everything.
type Options struct {
	// Filter narrows the working set before aggregation.
	Filter *filter.DisplayFilter
	// MaxPackets caps the working set after filtering; 0 means unlimited.
	MaxPackets int
	// IncludePackets retains the full decoded packet list in the result.
	IncludePackets bool
	// Anomaly overrides the detector thresholds; zero value uses defaults.
	Anomaly anomaly.Config
}

// Analyzer runs the pipeline. Safe for repeated use; each Analyze call is
// independent.
type Analyzer struct {
	opts Options
	log  *zap.SugaredLogger
}

// New creates an Analyzer. A nil logger disables logging.
func New(opts Options, log *zap.SugaredLogger) *Analyzer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	// A zero port-scan threshold would flag every flow; treat the zero
	// value as "use defaults".
	if opts.Anomaly.PortScanThreshold == 0 {
		opts.Anomaly = anomaly.DefaultConfig()
	}
	return &Analyzer{opts: opts, log: log}
}

// Analyze reads the capture at path and produces the complete analysis.
// Only container-level failures (unreadable file, bad global header) return
// an error; malformed frames become INVALID packets and the run continues.
func (a *Analyzer) Analyze(path string) (*models.PcapAnalysis, error) {
	reader, err := capture.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var fileSize int64
	if fi, statErr := os.Stat(path); statErr == nil {
		fileSize = fi.Size()
	}

	a.log.Infow("analyzing capture",
		"file", path,
		"linkType", reader.Network(),
		"snapLen", reader.Header().SnapLen)

	decoder := parser.NewDecoder(reader.LinkType())

	var (
		packets     []models.ParsedPacket
		firstSeen   time.Time
		lastSeen    time.Time
		recordsRead int
	)
	for {
		rec, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Mid-stream corruption: analyze what was read so far.
			a.log.Warnw("record stream ended early", "error", err, "records", recordsRead)
			break
		}
		recordsRead++
		if firstSeen.IsZero() {
			firstSeen = rec.Timestamp
		}
		lastSeen = rec.Timestamp

		pkt := decoder.Decode(rec, recordsRead)
		if pkt.Top() == models.ProtoInvalid {
			a.log.Debugw("invalid frame", "number", pkt.Number, "reason", pkt.Info)
		}
		packets = append(packets, pkt)
	}

	working := filter.Apply(a.opts.Filter, packets)
	if a.opts.MaxPackets > 0 && len(working) > a.opts.MaxPackets {
		working = working[:a.opts.MaxPackets]
	}

	var totalBytes int64
	for i := range working {
		totalBytes += int64(working[i].Length)
	}

	// Capture times come from the raw record stream, not the filtered set,
	// so duration reflects the whole file.
	if firstSeen.IsZero() {
		now := time.Now()
		firstSeen, lastSeen = now, now
	}

	analysis := &models.PcapAnalysis{
		Filename:      filepath.Base(path),
		FileSize:      fileSize,
		LinkType:      reader.Network(),
		TotalPackets:  len(working),
		TotalBytes:    totalBytes,
		CaptureStart:  firstSeen,
		CaptureEnd:    lastSeen,
		Duration:      lastSeen.Sub(firstSeen),
		Protocols:     flow.ProtocolBreakdown(working),
		Conversations: flow.Conversations(working),
		Endpoints:     flow.Endpoints(working),
		DNSQueries:    extract.DNSQueries(working),
		HTTPRequests:  extract.HTTPRequests(working),
		Alerts:        anomaly.NewDetector(a.opts.Anomaly).Scan(working),
	}
	if a.opts.IncludePackets {
		analysis.Packets = working
	}

	a.log.Infow("analysis complete",
		"file", analysis.Filename,
		"records", recordsRead,
		"packets", analysis.TotalPackets,
		"bytes", analysis.TotalBytes,
		"alerts", len(analysis.Alerts))
	return analysis, nil
}

// Summary renders a one-line digest of an analysis for logs.
func Summary(a *models.PcapAnalysis) string {
	return fmt.Sprintf("%s: %d packets, %d bytes, %d conversations, %d alerts",
		a.Filename, a.TotalPackets, a.TotalBytes, len(a.Conversations), len(a.Alerts))
}
