// Package summary renders the end-of-run report: one line per dispatched
// component, in declaration order, followed by totals. Users see the full
// picture of a run even when components failed along the way.
package summary

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/vk/envgate/internal/dispatch"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true)
	executedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	wouldRunStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

func statusStyle(status dispatch.Status) lipgloss.Style {
	switch status {
	case dispatch.StatusExecuted:
		return executedStyle
	case dispatch.StatusWouldRun:
		return wouldRunStyle
	case dispatch.StatusFailed:
		return failedStyle
	default:
		return skippedStyle
	}
}

// Render writes the run summary for the given results to w.
func Render(w io.Writer, source string, results []dispatch.Result) {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Run summary"))
	b.WriteString("\n")
	if source != "" {
		fmt.Fprintf(&b, "environment: %s\n", source)
	} else {
		b.WriteString("environment: (none resolved)\n")
	}

	nameWidth := len("component")
	for _, r := range results {
		if len(r.Component) > nameWidth {
			nameWidth = len(r.Component)
		}
	}

	fmt.Fprintf(&b, "%-*s  %-9s  %s\n", nameWidth, "component", "status", "detail")
	var executed, skipped, failed int
	for _, r := range results {
		detail := r.Reason
		switch r.Status {
		case dispatch.StatusExecuted:
			executed++
			detail = fmt.Sprintf("%d step(s) in %s", len(r.Steps), r.Duration.Round(time.Millisecond))
		case dispatch.StatusFailed:
			failed++
			detail = r.Err.Error()
		case dispatch.StatusWouldRun:
			detail = fmt.Sprintf("%d step(s)", len(r.Steps))
		default:
			skipped++
		}
		fmt.Fprintf(&b, "%-*s  %s  %s\n",
			nameWidth, r.Component,
			statusStyle(r.Status).Render(fmt.Sprintf("%-9s", r.Status)),
			detail)
	}

	fmt.Fprintf(&b, "%d executed, %d skipped, %d failed\n", executed, skipped, failed)
	fmt.Fprint(w, b.String())
}
