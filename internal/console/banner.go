// Package console renders the startup banner shown to whoever launched the
// panel server.
package console

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const ruleWidth = 50

// Banner is what the operator needs to open the panel.
type Banner struct {
	Port       int
	LANAddress string
	// MDNSHost is the advertised name (for example "matrix.local"); empty
	// when nothing is advertised.
	MDNSHost  string
	AssetRoot string
}

func LocalURL(port int) string {
	return LANURL("localhost", port)
}

func LANURL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Print writes the banner to w. Colours are dropped when w is not a terminal.
func Print(w io.Writer, b Banner) error {
	r := lipgloss.NewRenderer(w)
	title := r.NewStyle().Bold(true).Foreground(lipgloss.Color("#5fd75f"))
	label := r.NewStyle().Foreground(lipgloss.Color("#bcbcbc")).Width(8)
	link := r.NewStyle().Foreground(lipgloss.Color("#5f5fd7"))
	dim := r.NewStyle().Foreground(lipgloss.Color("#585858"))

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n")
	sb.WriteString(" " + title.Render("8x8 matrix panel is up!") + "\n")
	sb.WriteString(strings.Repeat("-", ruleWidth) + "\n")
	sb.WriteString(" " + label.Render("Local:") + link.Render(LocalURL(b.Port)) + "\n")
	sb.WriteString(" " + label.Render("LAN:") + link.Render(LANURL(b.LANAddress, b.Port)) + "\n")
	if b.MDNSHost != "" {
		sb.WriteString(" " + label.Render("mDNS:") + link.Render(LANURL(b.MDNSHost, b.Port)) + "\n")
	}
	if b.AssetRoot != "" {
		sb.WriteString(" " + dim.Render("Serving "+b.AssetRoot) + "\n")
	}
	sb.WriteString(strings.Repeat("=", ruleWidth) + "\n\n")

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("write banner: %w", err)
	}
	return nil
}
