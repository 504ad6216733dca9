package stats

import (
	"fmt"
	"strings"
	"time"
)

const (
	heavyRule = "═══════════════════════════════════════════════════════════════════════════════\n"
	lightRule = "───────────────────────────────────────────────────────────────────────────────\n"
)

// maxStderrLines is how many stderr lines a failed process contributes.
const maxStderrLines = 5

// FormatScenarioReport renders one scenario for the terminal.
func FormatScenarioReport(r *ScenarioReport) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(lightRule)
	fmt.Fprintf(&b, "  Scenario %s  [%s]\n", r.Name, strings.ToUpper(r.Result()))
	b.WriteString(lightRule)
	b.WriteString("\n")

	fmt.Fprintf(&b, "  Priority:             %s\n", r.Priority)
	fmt.Fprintf(&b, "  Port:                 %d\n", r.Port)
	fmt.Fprintf(&b, "  Seed:                 %d\n", r.Seed)
	fmt.Fprintf(&b, "  Duration:             %s\n", FormatSeconds(r.Duration))
	if r.ReadySource != "" {
		fmt.Fprintf(&b, "  Ready:                %s after %s\n", r.ReadySource, FormatMs(r.ReadyAfter))
	}
	b.WriteString("\n")

	// Server
	srv := r.Server
	b.WriteString("  Server\n")
	if srv.HasCounter {
		fmt.Fprintf(&b, "    Final Counter:      %d\n", srv.FinalCounter)
	} else {
		b.WriteString("    Final Counter:      -\n")
	}
	fmt.Fprintf(&b, "    Lines:              %s (%d malformed)\n", FormatNumber(int64(srv.LinesRead)), srv.Malformed)
	fmt.Fprintf(&b, "    Agents:             %d\n", len(srv.ClientsSeen))
	fmt.Fprintf(&b, "    Segments:           %d (mean run %.1f, max %d by %s)\n",
		r.Fairness.Segments, r.Fairness.MeanRun, r.Fairness.MaxRun, orDash(r.Fairness.MaxRunBy))
	if len(r.Fairness.Shares) > 0 {
		fmt.Fprintf(&b, "    Jain Index:         %.3f\n", r.Fairness.JainIndex)
	}
	if r.PeakOpsRate > 0 {
		fmt.Fprintf(&b, "    Ops Rate:           %s avg, %s peak\n", FormatRate(r.AvgOpsRate), FormatRate(r.PeakOpsRate))
	}
	if srv.CounterRegressions > 0 {
		fmt.Fprintf(&b, "    Counter Regressions: %d\n", srv.CounterRegressions)
	}
	fmt.Fprintf(&b, "    Exit:               %d %s\n", r.ServerExitCode, exitCodeLabel(r.ServerExitCode))
	b.WriteString("\n")

	if len(r.Fairness.Shares) > 0 {
		fmt.Fprintf(&b, "    %-24s %10s %8s %8s\n", "Agent", "Lines", "Runs", "Share")
		b.WriteString("    " + strings.Repeat("─", 53) + "\n")
		for _, s := range topShares(r.Fairness.Shares, 10) {
			fmt.Fprintf(&b, "    %-24s %10d %8d %7.1f%%\n", truncate(s.Agent, 24), s.Lines, s.Runs, s.Share*100)
		}
		if n := len(r.Fairness.Shares) - 10; n > 0 {
			fmt.Fprintf(&b, "    ... %d more agents\n", n)
		}
		b.WriteString("\n")
	}

	// Clients
	if len(r.Clients) > 0 {
		b.WriteString("  Clients\n")
		fmt.Fprintf(&b, "    %-12s %-7s %8s %10s %12s %12s %10s\n",
			"Name", "Mode", "Threads", "Samples", "Mean", "P95", "Exec")
		b.WriteString("    " + strings.Repeat("─", 77) + "\n")
		for _, c := range r.Clients {
			mean, p95 := "-", "-"
			if c.Result.HasSamples() {
				mean = FormatLatency(c.Result.MeanLatency)
				p95 = FormatLatency(c.Latency.P95)
			}
			flag := ""
			if c.Result.Truncated {
				flag = " (truncated)"
			}
			fmt.Fprintf(&b, "    %-12s %-7s %8d %10d %12s %12s %10s%s\n",
				truncate(c.Name, 12), c.Mode, c.Threads, len(c.Result.Samples),
				mean, p95, FormatSeconds(c.Result.ExecTime), flag)
		}
		b.WriteString("\n")
	}

	if r.Err != nil {
		b.WriteString("  Failures\n")
		for _, line := range strings.Split(r.Err.Error(), "\n") {
			fmt.Fprintf(&b, "    - %s\n", line)
		}
		writeTail(&b, "server", r.ServerStderrTail)
		for _, c := range r.Clients {
			if c.Err != nil {
				writeTail(&b, "client "+c.Name, c.StderrTail)
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

// FormatRunSummary renders the closing table for all scenarios.
func FormatRunSummary(s RunSummary) string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(heavyRule)
	b.WriteString("                          rwlock-bench Run Summary\n")
	b.WriteString(heavyRule)
	b.WriteString("\n")

	fmt.Fprintf(&b, "Run ID:                 %s\n", s.RunID)
	fmt.Fprintf(&b, "Run Duration:           %s\n", FormatDuration(s.Duration))
	fmt.Fprintf(&b, "Scenarios:              %d (%d failed)\n\n", len(s.Scenarios), s.Failed())

	if len(s.Scenarios) > 0 {
		fmt.Fprintf(&b, "  %-28s %-8s %8s %10s %8s %8s %12s\n",
			"Scenario", "Priority", "Result", "Counter", "Segs", "Jain", "Mean Lat")
		b.WriteString("  " + strings.Repeat("─", 88) + "\n")
		for _, r := range s.Scenarios {
			counter := "-"
			if r.Server.HasCounter {
				counter = fmt.Sprintf("%d", r.Server.FinalCounter)
			}
			fmt.Fprintf(&b, "  %-28s %-8s %8s %10s %8d %8.3f %12s\n",
				truncate(r.Name, 28), r.Priority, r.Result(), counter,
				r.Fairness.Segments, r.Fairness.JainIndex, meanClientLatency(r))
		}
		b.WriteString("\n")
	}

	if s.MetricsAddr != "" {
		fmt.Fprintf(&b, "Metrics endpoint was: http://%s/metrics\n", s.MetricsAddr)
	}
	b.WriteString(heavyRule)
	return b.String()
}

// meanClientLatency averages the client means that have samples.
func meanClientLatency(r *ScenarioReport) string {
	var means []float64
	for _, c := range r.Clients {
		if c.Result.HasSamples() {
			means = append(means, c.Result.MeanLatency)
		}
	}
	if len(means) == 0 {
		return "-"
	}
	return FormatLatency(Mean(means))
}

func writeTail(b *strings.Builder, label string, lines []string) {
	if len(lines) == 0 {
		return
	}
	if len(lines) > maxStderrLines {
		lines = lines[len(lines)-maxStderrLines:]
	}
	fmt.Fprintf(b, "    %s stderr:\n", label)
	for _, l := range lines {
		fmt.Fprintf(b, "      | %s\n", l)
	}
}

func topShares(shares []AgentShare, n int) []AgentShare {
	if len(shares) > n {
		return shares[:n]
	}
	return shares
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// exitCodeLabel returns a human-readable label for common exit codes.
func exitCodeLabel(code int) string {
	switch code {
	case 0:
		return "(clean)"
	case 1:
		return "(error)"
	case -1:
		return "(not started)"
	case 130:
		return "(SIGINT)"
	case 137:
		return "(SIGKILL)"
	case 143:
		return "(SIGTERM)"
	default:
		return ""
	}
}

// =============================================================================
// Formatting helpers
// =============================================================================

// FormatDuration formats a duration as HH:MM:SS.
func FormatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// FormatSeconds formats a duration as seconds with millisecond precision.
func FormatSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3fs", d.Seconds())
}

// FormatNumber formats a number with K/M suffixes for readability.
func FormatNumber(n int64) string {
	if n >= 1_000_000 {
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	}
	if n >= 1_000 {
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	}
	return fmt.Sprintf("%d", n)
}

// FormatMs formats a duration as milliseconds.
func FormatMs(d time.Duration) string {
	ms := d.Milliseconds()
	if ms == 0 && d > 0 {
		return fmt.Sprintf("%d µs", d.Microseconds())
	}
	return fmt.Sprintf("%d ms", ms)
}

// FormatRate formats a rate with appropriate precision.
func FormatRate(rate float64) string {
	if rate >= 1000 {
		return fmt.Sprintf("%.1fK/s", rate/1000)
	}
	if rate >= 1 {
		return fmt.Sprintf("%.1f/s", rate)
	}
	return fmt.Sprintf("%.2f/s", rate)
}

// FormatLatency formats a raw wait time as printed by the client. The
// unit is whatever the client emits, so only magnitude suffixes are added.
func FormatLatency(v float64) string {
	switch {
	case v >= 1e9:
		return fmt.Sprintf("%.2fG", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	case v >= 1e3:
		return fmt.Sprintf("%.2fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
