package record

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

// stateMsg carries the latest state row.
type stateMsg struct{ StateRow }

// eventMsg carries a status transition.
type eventMsg struct{ EventRow }

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

const maxLogLines = 500

// TUIWriter renders the session using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. When
// the user quits the TUI the process receives an interrupt.
func NewTUIWriter(target string, rateHz float64) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(target, rateHz), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements StateWriter.
func (w *TUIWriter) Write(row StateRow) error {
	w.program.Send(stateMsg{row})
	if row.Late {
		w.program.Send(logMsg{line: fmt.Sprintf("%s[%s]%s %slate step=%d elapsed=%.1fms%s",
			colorGray, row.Timestamp.Format(time.RFC3339), colorReset,
			colorYellow, row.Step, row.ElapsedMs, colorReset)})
	}
	return nil
}

// WriteEvent implements EventWriter.
func (w *TUIWriter) WriteEvent(e EventRow) error {
	line := fmt.Sprintf("%s[%s]%s %s%s -> %s%s",
		colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
		statusColor(e.To), e.From, e.To, colorReset)
	if e.Cause != "" {
		line += fmt.Sprintf(" %s%s%s", colorRed, e.Cause, colorReset)
	}
	w.program.Send(eventMsg{e})
	w.program.Send(logMsg{line: line})
	return nil
}

// SetAdminStatus updates the admin indicator.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// Close stops the program without signalling the process.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	target     string
	rateHz     float64
	table      table.Model
	vp         viewport.Model
	logs       []string
	state      StateRow
	haveState  bool
	status     string
	steps      int
	late       int
	admin      bool
	wrap       bool
	autoscroll bool
	height     int
}

func newTUIModel(target string, rateHz float64) tuiModel {
	cols := []table.Column{
		{Title: "State", Width: 14},
		{Title: "Value", Width: 14},
		{Title: "State", Width: 14},
		{Title: "Value", Width: 14},
	}
	t := table.New(table.WithColumns(cols), table.WithHeight(8))
	m := tuiModel{
		target:     target,
		rateHz:     rateHz,
		table:      t,
		vp:         viewport.New(0, 0),
		status:     "disconnected",
		autoscroll: true,
	}
	m.table.SetRows(m.stateRows())
	return m
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.height = msg.Height
		m.updateViewportHeight()
		m.refreshViewport()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		case "up", "k":
			m.vp.LineUp(1)
		case "down", "j":
			m.vp.LineDown(1)
		}
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshViewport()
	case stateMsg:
		m.state = msg.StateRow
		m.haveState = true
		m.steps++
		if msg.Late {
			m.late++
		}
		m.table.SetRows(m.stateRows())
	case eventMsg:
		m.status = msg.To
	case adminMsg:
		m.admin = msg.active
	}
	return m, nil
}

func (m tuiModel) stateRows() []table.Row {
	s := m.state
	f := func(v float64) string { return fmt.Sprintf("%.4f", v) }
	if !m.haveState {
		f = func(float64) string { return "-" }
	}
	return []table.Row{
		{"sim time (s)", f(s.SimTime), "step", fmt.Sprintf("%d", s.Step)},
		{"lat (deg)", f(s.Lat), "lon (deg)", f(s.Lon)},
		{"alt (ft)", f(s.Alt), "elapsed (ms)", f(s.ElapsedMs)},
		{"phi (rad)", f(s.Phi), "p (rad/s)", f(s.P)},
		{"theta (rad)", f(s.Theta), "q (rad/s)", f(s.Q)},
		{"psi (rad)", f(s.Psi), "r (rad/s)", f(s.R)},
		{"u (ft/s)", f(s.U), "v (ft/s)", f(s.V)},
		{"w (ft/s)", f(s.W), "late steps", fmt.Sprintf("%d", m.late)},
	}
}

func (m *tuiModel) updateViewportHeight() {
	h := m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.renderBottom()) - 2
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshViewport() {
	var lines []string
	for _, l := range m.logs {
		if m.wrap {
			lines = append(lines, wordwrap.String(l, m.vp.Width))
		} else {
			lines = append(lines, l)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	divider := strings.Repeat("─", m.vp.Width)
	return strings.Join([]string{
		m.renderHeader(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}, "\n")
}

func (m tuiModel) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("JSBSim %s @ %.0f Hz", m.target, m.rateHz))
	status := lipgloss.NewStyle().Foreground(statusLipColor(m.status)).Render(m.status)
	return lipgloss.JoinVertical(lipgloss.Left, title+"  "+status, m.table.View())
}

func (m tuiModel) renderBottom() string {
	indicator := func(on bool) string {
		c := lipgloss.Color("8")
		if on {
			c = lipgloss.Color("10")
		}
		return lipgloss.NewStyle().Foreground(c).Render("●")
	}
	return fmt.Sprintf("%s admin  %s wrap [w]  %s scroll [s]  steps=%d  quit [q]",
		indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll), m.steps)
}

func statusLipColor(status string) lipgloss.Color {
	switch status {
	case "synchronized":
		return lipgloss.Color("10")
	case "faulted":
		return lipgloss.Color("9")
	case "connecting", "reconnecting":
		return lipgloss.Color("11")
	default:
		return lipgloss.Color("8")
	}
}
