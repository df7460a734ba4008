package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

func padToWidth(s string, width int) string {
	current := runewidth.StringWidth(s)
	if current >= width {
		return s
	}
	return s + strings.Repeat(" ", width-current)
}

func separatorLine(width int) string {
	if width < 2 {
		return strings.Repeat("─", width)
	}
	return "├" + strings.Repeat("─", width-2) + "┤"
}

func formatInfoLine(text string, width int) string {
	if width < 2 {
		return padToWidth(text, width)
	}
	return "│" + padToWidth(text, width-2) + "│"
}

func truncate(s string, max int) string {
	if runewidth.StringWidth(s) <= max {
		return s
	}
	out := ""
	for _, r := range s {
		if runewidth.StringWidth(out+string(r)) > max-3 {
			break
		}
		out += string(r)
	}
	return out + "..."
}

// Overview summarizes the service as a whole.
type Overview struct {
	PendingCount  int
	ResolvedToday int
	ExpiredToday  int
	PlayerCount   int64
	DBConnected   bool
	UpdatedAt     time.Time
}

// PendingInfo is one in-flight validation request.
type PendingInfo struct {
	RequestID   string
	EventType   string
	SubmitterID string
	Required    int
	Agree       int
	Disagree    int
	ExpiresAt   time.Time
}

// AdjustmentInfo is one trust history row.
type AdjustmentInfo struct {
	PlayerID string
	Delta    float64
	NewScore float64
	Reason   string
	When     time.Time
}

// LeaderInfo is one leaderboard row.
type LeaderInfo struct {
	PlayerID   string
	TrustScore float64
	Tier       string
	Submitted  int64
	Correct    int64
}

// OverviewMsg replaces the header section.
type OverviewMsg struct {
	Overview Overview
}

// PendingUpdateMsg replaces the pending requests table.
type PendingUpdateMsg struct {
	Pending []PendingInfo
}

// AdjustmentsUpdateMsg replaces the recent trust history list.
type AdjustmentsUpdateMsg struct {
	Adjustments []AdjustmentInfo
}

// LeaderboardUpdateMsg replaces the leaderboard table.
type LeaderboardUpdateMsg struct {
	Leaders []LeaderInfo
}

// Model holds the TUI state
type Model struct {
	overview    Overview
	pending     []PendingInfo
	adjustments []AdjustmentInfo
	leaders     []LeaderInfo
	width       int
	height      int
}

// NewModel creates a new TUI model
func NewModel() Model {
	return Model{}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case OverviewMsg:
		m.overview = msg.Overview
		return m, nil

	case PendingUpdateMsg:
		m.pending = msg.Pending
		return m, nil

	case AdjustmentsUpdateMsg:
		m.adjustments = msg.Adjustments
		return m, nil

	case LeaderboardUpdateMsg:
		m.leaders = msg.Leaders
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the UI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := m.renderHeader()
	pending := m.renderPending()
	bottom := m.renderBottom()

	return lipgloss.JoinVertical(lipgloss.Left, header, pending, bottom)
}

// renderHeader renders the top overview section
func (m Model) renderHeader() string {
	colWidth := (m.width - 4) / 2
	rightColWidth := m.width - colWidth - 4

	dbState := "down"
	if m.overview.DBConnected {
		dbState = "up"
	}
	updated := "never"
	if !m.overview.UpdatedAt.IsZero() {
		updated = m.overview.UpdatedAt.Format("15:04:05")
	}

	leftLines := []string{
		fmt.Sprintf("pending=%d resolved=%d expired=%d", m.overview.PendingCount, m.overview.ResolvedToday, m.overview.ExpiredToday),
		fmt.Sprintf("players: %d", m.overview.PlayerCount),
	}
	rightLines := []string{
		fmt.Sprintf("db: %s", dbState),
		fmt.Sprintf("updated: %s", updated),
	}

	var rows []string
	for i := 0; i < len(leftLines); i++ {
		left := truncate(leftLines[i], colWidth-2)
		right := ""
		if i < len(rightLines) {
			right = truncate(rightLines[i], rightColWidth-2)
		}
		rows = append(rows, fmt.Sprintf("│ %s │ %s │",
			padToWidth(left, colWidth-2),
			padToWidth(right, rightColWidth-2)))
	}

	topBorder := fmt.Sprintf("┌%s┬%s┐",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))
	separator := fmt.Sprintf("├%s┴%s┤",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))

	return topBorder + "\n" + strings.Join(rows, "\n") + "\n" + separator
}

// renderPending renders the in-flight validation requests table
func (m Model) renderPending() string {
	inner := m.width - 2
	if inner < 20 {
		inner = 20
	}

	maxRows := (m.height - 10) / 2
	if maxRows < 3 {
		maxRows = 3
	}

	var lines []string
	lines = append(lines, formatInfoLine(" PENDING VALIDATIONS", m.width))
	lines = append(lines, separatorLine(m.width))

	if len(m.pending) == 0 {
		lines = append(lines, formatInfoLine(" (none)", m.width))
	}

	shown := m.pending
	if len(shown) > maxRows {
		shown = shown[:maxRows]
	}
	for _, p := range shown {
		remaining := time.Until(p.ExpiresAt).Round(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		line := fmt.Sprintf(" %s  %-14s  by %-12s  votes %d/%d (+%d/-%d)  expires in %s",
			truncate(p.RequestID, 20),
			truncate(p.EventType, 14),
			truncate(p.SubmitterID, 12),
			p.Agree+p.Disagree, p.Required, p.Agree, p.Disagree,
			remaining)
		lines = append(lines, formatInfoLine(truncate(line, inner), m.width))
	}
	if len(m.pending) > maxRows {
		lines = append(lines, formatInfoLine(fmt.Sprintf(" ... and %d more", len(m.pending)-maxRows), m.width))
	}

	return strings.Join(lines, "\n") + "\n" + separatorLine(m.width)
}

// renderBottom renders leaderboard and recent trust history side by side
func (m Model) renderBottom() string {
	colWidth := (m.width - 3) / 2
	rightColWidth := m.width - colWidth - 3

	maxRows := (m.height - 10) / 2
	if maxRows < 3 {
		maxRows = 3
	}

	leftLines := []string{" TRUST LEADERBOARD"}
	for i, l := range m.leaders {
		if i >= maxRows {
			break
		}
		leftLines = append(leftLines, fmt.Sprintf(" %2d. %-14s %.3f %-6s %d/%d",
			i+1, truncate(l.PlayerID, 14), l.TrustScore, l.Tier, l.Correct, l.Submitted))
	}

	rightLines := []string{" RECENT TRUST CHANGES"}
	for i, a := range m.adjustments {
		if i >= maxRows {
			break
		}
		rightLines = append(rightLines, fmt.Sprintf(" %s %-14s %+.3f → %.3f  %s",
			a.When.Format("15:04:05"), truncate(a.PlayerID, 14), a.Delta, a.NewScore, a.Reason))
	}

	rows := len(leftLines)
	if len(rightLines) > rows {
		rows = len(rightLines)
	}

	var lines []string
	for i := 0; i < rows; i++ {
		left := ""
		if i < len(leftLines) {
			left = truncate(leftLines[i], colWidth)
		}
		right := ""
		if i < len(rightLines) {
			right = truncate(rightLines[i], rightColWidth)
		}
		lines = append(lines, "│"+padToWidth(left, colWidth)+"│"+padToWidth(right, rightColWidth)+"│")
	}

	separator := fmt.Sprintf("├%s┬%s┤",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))
	bottomBorder := fmt.Sprintf("└%s┴%s┘",
		strings.Repeat("─", colWidth),
		strings.Repeat("─", rightColWidth))

	return separator + "\n" + strings.Join(lines, "\n") + "\n" + bottomBorder
}

// Run starts the TUI program
func Run(updateCh <-chan interface{}) error {
	m := NewModel()
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for data := range updateCh {
			switch v := data.(type) {
			case Overview:
				p.Send(OverviewMsg{Overview: v})
			case []PendingInfo:
				p.Send(PendingUpdateMsg{Pending: v})
			case []AdjustmentInfo:
				p.Send(AdjustmentsUpdateMsg{Adjustments: v})
			case []LeaderInfo:
				p.Send(LeaderboardUpdateMsg{Leaders: v})
			}
		}
		// Channel closed, quit TUI
		p.Quit()
	}()

	_, err := p.Run()
	return err
}
