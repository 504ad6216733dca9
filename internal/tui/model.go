package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/randomizedcoder/go-rwlock-bench/internal/orchestrator"
)

// refreshInterval is how often the dashboard polls its source.
const refreshInterval = 500 * time.Millisecond

// =============================================================================
// Messages
// =============================================================================

// TickMsg is sent periodically to update the display.
type TickMsg time.Time

// ProgressMsg carries an updated run snapshot.
type ProgressMsg orchestrator.RunProgress

// QuitMsg signals the TUI should exit.
type QuitMsg struct{}

// =============================================================================
// Model
// =============================================================================

// ProgressSource provides live run progress.
type ProgressSource interface {
	Progress() orchestrator.RunProgress
}

// Config holds TUI configuration.
type Config struct {
	Source      ProgressSource
	MetricsAddr string
}

// Model represents the TUI state.
type Model struct {
	source      ProgressSource
	metricsAddr string

	progress     *orchestrator.RunProgress
	lastUpdate   time.Time
	detailedView bool

	width  int
	height int

	quitting bool
}

// New creates a new TUI model.
func New(cfg Config) Model {
	return Model{
		source:      cfg.Source,
		metricsAddr: cfg.MetricsAddr,
		lastUpdate:  time.Now(),
		width:       80,
		height:      24,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages. Quitting closes the dashboard only; the run
// itself keeps going.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "d":
			m.detailedView = !m.detailedView
			return m, nil
		case "r":
			return m, tickCmd()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case TickMsg:
		if m.source != nil {
			p := m.source.Progress()
			m.progress = &p
		}
		m.lastUpdate = time.Now()
		return m, tickCmd()

	case ProgressMsg:
		p := orchestrator.RunProgress(msg)
		m.progress = &p
		m.lastUpdate = time.Now()
		return m, nil

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	return m.renderDashboard()
}

// tickCmd returns a command that sends a tick after refreshInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// =============================================================================
// Accessors
// =============================================================================

// Elapsed returns the run's elapsed time.
func (m Model) Elapsed() time.Duration {
	if m.progress == nil {
		return 0
	}
	return m.progress.Elapsed
}

// Progress returns the last snapshot, or nil before the first tick.
func (m Model) Progress() *orchestrator.RunProgress {
	return m.progress
}

// RunProgress returns the fraction of scenarios completed.
func (m Model) RunProgress() float64 {
	if m.progress == nil || m.progress.Total == 0 {
		return 0
	}
	return float64(len(m.progress.Completed)) / float64(m.progress.Total)
}

// ActiveClients returns the number of running clients.
func (m Model) ActiveClients() int {
	if m.progress == nil {
		return 0
	}
	n := 0
	for _, c := range m.progress.Clients {
		if c.Running {
			n++
		}
	}
	return n
}

// IsQuitting reports whether the user closed the dashboard.
func (m Model) IsQuitting() bool {
	return m.quitting
}
