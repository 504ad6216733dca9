package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// Main View Rendering
// =============================================================================

func (m Model) renderDashboard() string {
	var sections []string

	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderProgress())

	if m.progress != nil && !m.progress.Finished {
		sections = append(sections, m.renderServer())
		sections = append(sections, m.renderClientTable())
	}

	if m.progress != nil && len(m.progress.Completed) > 0 {
		sections = append(sections, m.renderCompleted())
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// =============================================================================
// Header
// =============================================================================

func (m Model) renderHeader() string {
	runID := "-"
	index, total := 0, 0
	if p := m.progress; p != nil {
		if p.RunID != "" {
			runID = p.RunID
		}
		total = p.Total
		index = p.Index + 1
		if index > total {
			index = total
		}
	}

	header := fmt.Sprintf(
		" rwlock-bench │ Run %s │ Scenario %d/%d │ Elapsed: %s ",
		runID,
		index,
		total,
		formatDuration(m.Elapsed()),
	)

	return headerStyle.Width(m.width).Render(header)
}

// =============================================================================
// Progress Section
// =============================================================================

func (m Model) renderProgress() string {
	barWidth := m.width - 30
	if barWidth < 20 {
		barWidth = 20
	}
	progressBar := RenderProgressBar(m.RunProgress(), barWidth)

	var status string
	switch {
	case m.progress == nil:
		status = mutedStyle.Render("Waiting for first update...")
	case m.progress.Finished:
		status = statusOK.Render("✓ All scenarios finished")
	default:
		p := m.progress
		status = lipgloss.JoinHorizontal(lipgloss.Left,
			statusInfo.Render(p.Scenario),
			mutedStyle.Render(fmt.Sprintf("  priority=%s port=%d  ", p.Priority, p.Port)),
			valueStyle.Render(string(p.Phase)),
		)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Scenarios"),
		progressBar,
		status,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Server Panel
// =============================================================================

func (m Model) renderServer() string {
	s := m.progress.Server
	rate := m.progress.OpsRate

	counter := "-"
	if s.HasCounter {
		counter = formatNumber(s.LastCounter)
	}
	agent := "-"
	if s.Agent != "" {
		agent = fmt.Sprintf("%s (run %d)", s.Agent, s.RunLength)
	}

	malformedStyle := valueStyle
	if s.Malformed > 0 {
		malformedStyle = valueWarnStyle
	}

	left := []string{
		RenderKeyValue("Lines", formatNumber(s.Lines)),
		RenderKeyValue("Well-formed", formatNumber(s.WellFormed)),
		lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render("Malformed:"),
			malformedStyle.Render(formatNumber(s.Malformed)),
		),
		RenderKeyValue("Agents", formatNumber(s.Agents)),
	}
	right := []string{
		RenderKeyValue("Counter", counter),
		RenderKeyValue("Current agent", agent),
		RenderKeyValue("Ops/s (1s)", formatRate(rate.Avg1s)),
		RenderKeyValue("Peak ops/s", formatRate(rate.Peak1s)),
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		sectionHeaderStyle.Render("Server"),
		renderTwoColumns(left, right, m.width-6),
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Client Table
// =============================================================================

func (m Model) renderClientTable() string {
	clients := m.progress.Clients
	if len(clients) == 0 {
		return boxStyle.Width(m.width - 2).Render(
			dimStyle.Render("No clients launched yet."),
		)
	}

	header := tableHeaderStyle.Render(
		fmt.Sprintf("%-16s %-7s %-8s %-8s %-8s %-10s %s",
			"Client", "Mode", "Threads", "Lines", "Samples", "Mean", "State"),
	)

	maxRows := m.height - 20
	if maxRows < 5 {
		maxRows = 5
	}
	if m.detailedView {
		maxRows = len(clients)
	}

	var rows []string
	for i, c := range clients {
		if i >= maxRows {
			rows = append(rows, dimStyle.Render(fmt.Sprintf("... and %d more clients (d: show all)", len(clients)-maxRows)))
			break
		}
		mean := "-"
		if c.Samples > 0 {
			mean = formatLatency(c.MeanLatency)
		}
		rows = append(rows, fmt.Sprintf("%-16s %-7s %-8d %-8s %-8s %-10s %s",
			truncate(c.Name, 16),
			string(c.Mode),
			c.Threads,
			formatNumber(c.Lines),
			formatNumber(c.Samples),
			mean,
			GetClientStateLabel(c.Running, c.ExitCode),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{
			sectionHeaderStyle.Render("Clients"),
			header,
		}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Completed Scenarios
// =============================================================================

func (m Model) renderCompleted() string {
	rows := make([]string, 0, len(m.progress.Completed))
	for _, c := range m.progress.Completed {
		counter := "-"
		if c.HasCounter {
			counter = formatNumber(c.FinalCounter)
		}
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Left,
			labelStyle.Render(truncate(c.Name, 18)),
			GetResultLabel(c.Passed),
			mutedStyle.Render(fmt.Sprintf("  counter=%s segments=%d jain=", counter, c.Segments)),
			GetJainStyle(c.JainIndex).Render(fmt.Sprintf("%.3f", c.JainIndex)),
			mutedStyle.Render(" in "+formatDuration(c.Duration)),
		))
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		append([]string{sectionHeaderStyle.Render("Completed")}, rows...)...,
	)

	return boxStyle.Width(m.width - 2).Render(content)
}

// =============================================================================
// Footer
// =============================================================================

func (m Model) renderFooter() string {
	shortcuts := []string{
		"q: close dashboard",
		"d: toggle all clients",
		"r: refresh",
	}

	left := dimStyle.Render(strings.Join(shortcuts, " │ "))
	right := ""
	if m.metricsAddr != "" {
		right = dimStyle.Render("Metrics: http://" + m.metricsAddr + "/metrics")
	}

	padding := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if padding < 1 {
		padding = 1
	}

	return footerStyle.Render(
		lipgloss.JoinHorizontal(lipgloss.Left,
			left,
			strings.Repeat(" ", padding),
			right,
		),
	)
}

// =============================================================================
// Formatting
// =============================================================================

func renderTwoColumns(left, right []string, totalWidth int) string {
	colWidth := (totalWidth - 3) / 2
	if colWidth < 20 {
		colWidth = 20
	}

	leftContent := lipgloss.NewStyle().Width(colWidth).Render(
		lipgloss.JoinVertical(lipgloss.Left, left...),
	)
	rightContent := lipgloss.JoinVertical(lipgloss.Left, right...)

	separator := mutedStyle.Render(" │ ")
	return lipgloss.JoinHorizontal(lipgloss.Top, leftContent, separator, rightContent)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	mins := d / time.Minute
	d -= mins * time.Minute
	s := d / time.Second
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, s)
	}
	return fmt.Sprintf("%02d:%02d", mins, s)
}

func formatNumber(n int64) string {
	switch {
	case n >= 1_000_000_000:
		return fmt.Sprintf("%.2fB", float64(n)/1e9)
	case n >= 1_000_000:
		return fmt.Sprintf("%.2fM", float64(n)/1e6)
	case n >= 10_000:
		return fmt.Sprintf("%.1fK", float64(n)/1e3)
	default:
		return fmt.Sprintf("%d", n)
	}
}

func formatRate(r float64) string {
	return fmt.Sprintf("%.1f/s", r)
}

// formatLatency renders a latency sample in its native units.
func formatLatency(v float64) string {
	return fmt.Sprintf("%.3f", v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
