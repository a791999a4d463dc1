package ui

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bnema/wlcore/internal/ipc"
)

// StatusSource is polled by the watch view. *ipc.Client satisfies it.
type StatusSource interface {
	Status() (*ipc.Status, error)
}

// StatusMsg carries the result of one poll.
type StatusMsg struct {
	Status *ipc.Status
	Err    error
}

type refreshMsg time.Time

// WatchModel is a bubbletea model that keeps polling a compositor's status
// and renders it live.
type WatchModel struct {
	source   StatusSource
	interval time.Duration
	spinner  spinner.Model

	status  *ipc.Status
	err     error
	updated time.Time
	polls   int
	width   int
}

// NewWatchModel creates a watch view polling source every interval.
func NewWatchModel(source StatusSource, interval time.Duration) *WatchModel {
	if interval <= 0 {
		interval = time.Second
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle
	return &WatchModel{source: source, interval: interval, spinner: s}
}

func (m *WatchModel) poll() tea.Msg {
	st, err := m.source.Status()
	return StatusMsg{Status: st, Err: err}
}

func (m *WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll)
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "r":
			return m, m.poll
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case StatusMsg:
		m.polls++
		m.updated = time.Now()
		m.err = msg.Err
		if msg.Err == nil {
			m.status = msg.Status
		}
		return m, tea.Tick(m.interval, func(t time.Time) tea.Msg { return refreshMsg(t) })

	case refreshMsg:
		return m, m.poll

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Status returns the last successful poll, or nil.
func (m *WatchModel) Status() *ipc.Status { return m.status }

// Err returns the error of the last poll.
func (m *WatchModel) Err() error { return m.err }

func (m *WatchModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("WLCORE"))
	b.WriteString(" ")
	b.WriteString(m.spinner.View())
	b.WriteString("\n\n")

	switch {
	case m.polls == 0:
		b.WriteString(SubtleStyle.Render("Connecting..."))
	case errors.Is(m.err, ipc.ErrNotRunning):
		b.WriteString(FormatStatus(false, WarningStyle.Render("wlcore is not running, waiting")))
	case m.err != nil:
		b.WriteString(ErrorStyle.Render(IconError + " " + m.err.Error()))
	}
	if m.polls > 0 && m.err == nil && m.status != nil {
		b.WriteString(RenderSummary(m.status))
		b.WriteString("\n\n")
		b.WriteString(renderTables(m.status))
		b.WriteString("\n\n")
		b.WriteString(RenderCursor(m.status))
	}

	b.WriteString("\n\n")
	width := 50
	if m.width > 0 && m.width < width {
		width = m.width
	}
	b.WriteString(CreateSeparator(width, "─"))
	b.WriteString("\n")
	b.WriteString(FormatControl("r", "Refresh"))
	b.WriteString("  ")
	b.WriteString(FormatControl("q", "Quit"))
	if !m.updated.IsZero() {
		b.WriteString("  ")
		b.WriteString(MutedStyle.Render("updated " + m.updated.Format("15:04:05")))
	}
	b.WriteString("\n")
	return b.String()
}
