package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const asciiLogo = `
╔══════════════════════════════════════════════════════════════════════╗
║  ██████╗  █████╗ ████████╗ ██████╗██╗  ██╗                           ║
║  ██╔══██╗██╔══██╗╚══██╔══╝██╔════╝██║  ██║                           ║
║  ██████╔╝███████║   ██║   ██║     ███████║                           ║
║  ██╔═══╝ ██╔══██║   ██║   ██║     ██╔══██║                           ║
║  ██║     ██║  ██║   ██║   ╚██████╗██║  ██║                           ║
║  ╚═╝     ╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝ WARDEN RUN DASHBOARD      ║
╚══════════════════════════════════════════════════════════════════════╝
`

type model struct {
	styles    styles
	serverURL string

	// UI Components
	viewport  viewport.Model
	spinner   spinner.Model
	isLoading bool
	ready     bool

	// Session State
	runs    []run
	lastErr error
}

func initialModel(theme ThemeName, serverURL string) *model {
	st := GetTheme(theme)

	sp := spinner.New()
	sp.Spinner = spinner.Points
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))

	return &model{
		styles:    st,
		serverURL: serverURL,
		spinner:   sp,
		isLoading: true,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(fetchRunsCmd(m.serverURL), m.spinner.Tick)
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	m.viewport, vpCmd = m.viewport.Update(msg)
	m.spinner, spCmd = m.spinner.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "r":
			m.isLoading = true
			return m, tea.Batch(fetchRunsCmd(m.serverURL), m.spinner.Tick)
		}

	case tea.WindowSizeMsg:
		headerHeight := lipgloss.Height(m.headerView())
		footerHeight := lipgloss.Height(m.footerView())
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.viewport.SetContent(m.renderRuns())

	case runsLoadedMsg:
		m.isLoading = false
		m.lastErr = msg.err
		if msg.err == nil {
			m.runs = msg.runs
		}
		m.viewport.SetContent(m.renderRuns())
		return m, refreshTickCmd()

	case refreshTickMsg:
		return m, fetchRunsCmd(m.serverURL)
	}

	return m, tea.Batch(vpCmd, spCmd)
}

func (m *model) View() string {
	if !m.ready {
		return m.styles.ascii.Render(asciiLogo) + "\n  Initializing..."
	}
	return m.styles.app.Render(lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.styles.viewport.Render(m.viewport.View()),
		m.footerView(),
	))
}

func (m *model) headerView() string {
	title := "PATCH-WARDEN RUNS"
	if m.isLoading {
		title += "  " + m.spinner.View()
	}
	return m.styles.header.Render(title)
}

func (m *model) footerView() string {
	status := m.styles.inactive.Render(fmt.Sprintf("%d runs", len(m.runs)))
	if m.lastErr != nil {
		status = m.styles.error.Render("server unreachable: " + m.lastErr.Error())
	}
	help := m.styles.inactive.Render("  r refresh · q quit")
	return m.styles.footer.Render(status + help)
}

// renderRuns renders the run ledger as a fixed-width table, newest first.
func (m *model) renderRuns() string {
	if len(m.runs) == 0 {
		return m.styles.inactive.Render("No runs recorded yet.")
	}

	var b strings.Builder
	b.WriteString(m.styles.inactive.Render(fmt.Sprintf("%-30s %6s %-10s %-18s %-12s %s",
		"REPOSITORY", "PR", "STAGE", "FAILURE", "COMMIT", "WHEN")))
	b.WriteString("\n")

	for _, r := range m.runs {
		line := fmt.Sprintf("%-30s %6d %-10s %-18s %-12s %s",
			truncate(r.RepoFullName, 30),
			r.PRNumber,
			r.Stage,
			r.FailureKind,
			truncate(r.CommitSHA, 12),
			r.CreatedAt.Format("2006-01-02 15:04"),
		)
		switch {
		case r.FailureKind != "":
			line = m.styles.error.Render(line)
		case r.CommitSHA != "":
			line = m.styles.success.Render(line)
		default:
			line = m.styles.warning.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}
