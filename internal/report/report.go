// Package report formats a PcapAnalysis for humans and machines. Renderers
// only format what the engine computed; no statistic is re-derived here.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"pcapscope/internal/models"
)

// Format selects the output rendering.
type Format string

const (
	FormatTerminal Format = "terminal"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// ParseFormat resolves a format string, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "terminal", "text", "":
		return FormatTerminal, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported format %q (supported: terminal, json, csv, markdown)", s)
	}
}

// Render writes the analysis to w in the given format.
func Render(a *models.PcapAnalysis, format Format, w io.Writer) error {
	switch format {
	case FormatTerminal:
		return renderTerminal(a, w)
	case FormatJSON:
		return renderJSON(a, w)
	case FormatCSV:
		return renderCSV(a, w)
	case FormatMarkdown:
		return renderMarkdown(a, w)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// WriteFile renders the analysis into a file.
func WriteFile(a *models.PcapAnalysis, format Format, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file %q: %w", path, err)
	}
	defer f.Close()
	return Render(a, format, f)
}

func renderJSON(a *models.PcapAnalysis, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(a)
}

// renderCSV emits the conversation table, the statistic most usable in
// spreadsheet form.
func renderCSV(a *models.PcapAnalysis, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"protocol", "src_addr", "src_port", "dst_addr", "dst_port", "packets", "bytes", "start", "end", "duration_s"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, c := range a.Conversations {
		row := []string{
			string(c.Protocol),
			c.SrcAddr,
			strconv.Itoa(int(c.SrcPort)),
			c.DstAddr,
			strconv.Itoa(int(c.DstPort)),
			strconv.Itoa(c.Packets),
			strconv.FormatInt(c.Bytes, 10),
			c.StartTime.Format(time.RFC3339Nano),
			c.EndTime.Format(time.RFC3339Nano),
			fmt.Sprintf("%.6f", c.Duration.Seconds()),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}

func renderMarkdown(a *models.PcapAnalysis, w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Capture Analysis: %s\n\n", a.Filename)
	fmt.Fprintf(&sb, "- **File size:** %s\n", formatBytes(a.FileSize))
	fmt.Fprintf(&sb, "- **Packets:** %d (%s)\n", a.TotalPackets, formatBytes(a.TotalBytes))
	fmt.Fprintf(&sb, "- **Capture window:** %s to %s (%.3fs)\n\n",
		a.CaptureStart.Format(time.RFC3339), a.CaptureEnd.Format(time.RFC3339), a.Duration.Seconds())

	sb.WriteString("## Protocols\n\n| Protocol | Packets | Bytes | Share |\n|---|---|---|---|\n")
	for _, p := range a.Protocols {
		fmt.Fprintf(&sb, "| %s | %d | %d | %.1f%% |\n", p.Protocol, p.Packets, p.Bytes, p.Percent)
	}

	sb.WriteString("\n## Top Conversations\n\n| Protocol | A | B | Packets | Bytes |\n|---|---|---|---|---|\n")
	for _, c := range a.Conversations {
		fmt.Fprintf(&sb, "| %s | %s:%d | %s:%d | %d | %d |\n",
			c.Protocol, c.SrcAddr, c.SrcPort, c.DstAddr, c.DstPort, c.Packets, c.Bytes)
	}

	if len(a.DNSQueries) > 0 {
		sb.WriteString("\n## DNS Queries\n\n")
		for _, q := range a.DNSQueries {
			fmt.Fprintf(&sb, "- `%s` (%s) from %s\n", q.Name, q.Type, q.SrcAddr)
		}
	}
	if len(a.HTTPRequests) > 0 {
		sb.WriteString("\n## HTTP Requests\n\n")
		for _, r := range a.HTTPRequests {
			fmt.Fprintf(&sb, "- %s %s%s from %s\n", r.Method, r.Host, r.Path, r.SrcAddr)
		}
	}

	sb.WriteString("\n## Alerts\n\n")
	if len(a.Alerts) == 0 {
		sb.WriteString("No anomalies detected.\n")
	} else {
		for _, alert := range a.Alerts {
			fmt.Fprintf(&sb, "- %s\n", alert)
		}
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
