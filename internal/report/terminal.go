package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"pcapscope/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#5F5FD7")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#87D7FF"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1).
			Margin(0, 1)

	alertStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F5F"))
)

func renderTerminal(a *models.PcapAnalysis, w io.Writer) error {
	var sections []string

	sections = append(sections, titleStyle.Render("pcapscope: "+a.Filename))

	summary := fmt.Sprintf("Packets: %d\nBytes: %s\nFile size: %s\nWindow: %s -> %s (%.3fs)",
		a.TotalPackets,
		formatBytes(a.TotalBytes),
		formatBytes(a.FileSize),
		a.CaptureStart.Format(time.TimeOnly),
		a.CaptureEnd.Format(time.TimeOnly),
		a.Duration.Seconds())
	sections = append(sections, boxStyle.Render(summary))

	var protoLines []string
	for _, p := range a.Protocols {
		protoLines = append(protoLines, fmt.Sprintf("%-10s %6d pkts %10s %5.1f%%",
			p.Protocol, p.Packets, formatBytes(p.Bytes), p.Percent))
	}
	if len(protoLines) == 0 {
		protoLines = append(protoLines, "no packets")
	}
	sections = append(sections,
		boxStyle.Render(sectionStyle.Render("Protocols")+"\n"+strings.Join(protoLines, "\n")))

	var convLines []string
	for _, c := range a.Conversations {
		convLines = append(convLines, fmt.Sprintf("%-4s %s:%d <-> %s:%d  %d pkts  %s",
			c.Protocol, c.SrcAddr, c.SrcPort, c.DstAddr, c.DstPort, c.Packets, formatBytes(c.Bytes)))
	}
	if len(convLines) > 0 {
		sections = append(sections,
			boxStyle.Render(sectionStyle.Render("Top Conversations")+"\n"+strings.Join(convLines, "\n")))
	}

	if len(a.DNSQueries) > 0 {
		var lines []string
		for _, q := range a.DNSQueries {
			lines = append(lines, fmt.Sprintf("%s %s (from %s)", q.Type, q.Name, q.SrcAddr))
		}
		sections = append(sections,
			boxStyle.Render(sectionStyle.Render("DNS Queries")+"\n"+strings.Join(lines, "\n")))
	}

	if len(a.HTTPRequests) > 0 {
		var lines []string
		for _, r := range a.HTTPRequests {
			lines = append(lines, fmt.Sprintf("%s %s%s (from %s)", r.Method, r.Host, r.Path, r.SrcAddr))
		}
		sections = append(sections,
			boxStyle.Render(sectionStyle.Render("HTTP Requests")+"\n"+strings.Join(lines, "\n")))
	}

	if len(a.Alerts) > 0 {
		var lines []string
		for _, alert := range a.Alerts {
			lines = append(lines, alertStyle.Render("! "+alert))
		}
		sections = append(sections,
			boxStyle.Render(sectionStyle.Render("Alerts")+"\n"+strings.Join(lines, "\n")))
	}

	out := lipgloss.JoinVertical(lipgloss.Left, sections...)
	_, err := io.WriteString(w, out+"\n")
	return err
}
