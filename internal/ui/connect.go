package ui

import (
	"io"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type connectDoneMsg struct{ err error }

// ConnectModel shows a spinner while connect runs. Portal sessions can
// sit on a consent dialog for a while, so the wait is made visible.
type ConnectModel struct {
	title   string
	connect func() error
	spinner spinner.Model
	started time.Time

	done bool
	err  error
}

// NewConnectModel creates the model; connect runs in a tea.Cmd
func NewConnectModel(title string, connect func() error) *ConnectModel {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: SpinnerDot,
		FPS:    time.Second / 10,
	}
	s.Style = SpinnerStyle

	return &ConnectModel{title: title, connect: connect, spinner: s, started: time.Now()}
}

// Init implements tea.Model
func (m *ConnectModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return connectDoneMsg{err: m.connect()}
	})
}

// Update implements tea.Model
func (m *ConnectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case connectDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" || msg.String() == "q" {
			m.done = true
			m.err = errInterrupted
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m *ConnectModel) View() string {
	if m.done {
		if m.err != nil {
			return FormatResult(false, m.title, m.err.Error()) + "\n"
		}
		return FormatResult(true, m.title, "") + "\n"
	}
	elapsed := time.Since(m.started).Truncate(time.Second)
	return m.spinner.View() + " " + m.title + " " + SubtleStyle.Render(elapsed.String()) + "\n"
}

// Err is the connect result, or an interruption
func (m *ConnectModel) Err() error {
	return m.err
}

// RunConnect runs connect behind a spinner on out
func RunConnect(out io.Writer, title string, connect func() error) error {
	m := NewConnectModel(title, connect)
	if _, err := tea.NewProgram(m, tea.WithOutput(out)).Run(); err != nil {
		return err
	}
	return m.Err()
}
