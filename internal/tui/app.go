// Package tui is an interactive browser over the transcript archive: a run
// list on top of a scrollable per-run transcript.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/d0rbu/llamastack-austin/internal/loop"
	"github.com/d0rbu/llamastack-austin/internal/store"
)

type View int

const (
	ViewRunList View = iota
	ViewTranscript
)

type App struct {
	store *store.Store

	view        View
	runs        []store.RunSummary
	selectedIdx int
	selected    *loop.Outcome
	viewport    viewport.Model
	ready       bool

	width  int
	height int
	err    error
}

func NewApp(st *store.Store) *App {
	return &App{
		store: st,
		view:  ViewRunList,
	}
}

// Run blocks until the user quits.
func Run(st *store.Store) error {
	p := tea.NewProgram(NewApp(st), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (a *App) Init() tea.Cmd {
	return a.loadRuns
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		headerHeight := 3
		footerHeight := 2
		if !a.ready {
			a.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			a.ready = true
		} else {
			a.viewport.Width = msg.Width
			a.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		return a, nil

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) {
			a.selectedIdx = 0
		}
		return a, nil

	case transcriptLoadedMsg:
		a.err = msg.err
		if msg.err == nil {
			a.selected = msg.outcome
			a.viewport.SetContent(renderTranscript(msg.outcome))
			a.viewport.GotoTop()
			a.view = ViewTranscript
		}
		return a, nil
	}

	if a.view == ViewTranscript && a.ready {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewRunList:
		return a.handleRunListKey(msg)
	case ViewTranscript:
		return a.handleTranscriptKey(msg)
	}
	return a, nil
}

func (a *App) handleRunListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.loadTranscript(a.runs[a.selectedIdx].RunID)
		}

	case "r":
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleTranscriptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunList
		a.selected = nil
		return a, nil

	case "ctrl+c":
		return a, tea.Quit
	}

	if a.ready {
		var cmd tea.Cmd
		a.viewport, cmd = a.viewport.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *App) View() string {
	switch a.view {
	case ViewRunList:
		return a.viewRunList()
	case ViewTranscript:
		return a.viewTranscript()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusStopped    = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusTerminated = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusFailed     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusExhausted  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

func (a *App) viewRunList() string {
	s := titleStyle.Render("gdba runs") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}

	if len(a.runs) == 0 {
		s += "No saved runs yet. Finish a debug session with --save to record one.\n"
	} else {
		for i, run := range a.runs {
			line := a.formatRunLine(run)
			if i == a.selectedIdx {
				line = selectedStyle.Render("▶ " + line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] transcript  [r] refresh  [q] quit")

	return s
}

func (a *App) formatRunLine(run store.RunSummary) string {
	status := formatStatus(run.Status)
	age := formatAge(run.StartedAt)
	bug := truncate(run.BugDescription, 40)
	return fmt.Sprintf("%s  %-24s %s  %-6s  %s",
		run.RunID[:8], truncate(run.Executable, 24), status, age, bug)
}

func formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func formatStatus(status string) string {
	switch loop.Status(status) {
	case loop.StatusOracleStopped:
		return statusStopped.Render("✓ " + status)
	case loop.StatusDebuggerTerminated:
		return statusTerminated.Render("● " + status)
	case loop.StatusStepBudgetExhausted:
		return statusExhausted.Render("⚠ " + status)
	case loop.StatusOracleUnresponsive, loop.StatusTransportFailure, loop.StatusSetupFailed:
		return statusFailed.Render("✗ " + status)
	default:
		return dimStyle.Render(status)
	}
}

func (a *App) viewTranscript() string {
	if a.selected == nil || !a.ready {
		return "Loading..."
	}

	header := titleStyle.Render(fmt.Sprintf("Run %s", a.selected.RunID)) +
		"  " + formatStatus(string(a.selected.Status)) + "\n" +
		dimStyle.Render(a.selected.Executable) + "\n"
	footer := "\n" + helpStyle.Render("[↑/↓] scroll  [esc] back  [q] quit")

	return header + a.viewport.View() + footer
}

func renderTranscript(out *loop.Outcome) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Bug: %s\n", out.BugDescription)
	fmt.Fprintf(&b, "Started: %s\n\n", out.StartedAt.Format("2006-01-02 15:04:05"))

	for _, step := range out.Steps {
		fmt.Fprintf(&b, "── Step %d ──\n", step.Step)
		if step.Command != "" {
			fmt.Fprintf(&b, "-> %s\n", step.Command)
		}
		b.WriteString(step.Summary)
		b.WriteString("\n")
		if step.Terminated {
			b.WriteString(dimStyle.Render("(terminated)") + "\n")
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Status: %s", out.Status)
	if out.Error != "" {
		fmt.Fprintf(&b, " (%s)", out.Error)
	}
	b.WriteString("\n")

	return b.String()
}

// Messages

type runsLoadedMsg struct {
	runs []store.RunSummary
	err  error
}

type transcriptLoadedMsg struct {
	outcome *loop.Outcome
	err     error
}

// Commands

func (a *App) loadRuns() tea.Msg {
	runs, err := a.store.ListRuns(50)
	return runsLoadedMsg{runs: runs, err: err}
}

func (a *App) loadTranscript(runID string) tea.Cmd {
	return func() tea.Msg {
		out, err := a.store.LoadOutcome(runID)
		return transcriptLoadedMsg{outcome: out, err: err}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
