package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bnema/waygui/internal/session"
	"github.com/bnema/waygui/internal/transport"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var errInterrupted = errors.New("interrupted")

// RenderStatus renders a backend snapshot in a box
func RenderStatus(st session.Status) string {
	var b strings.Builder

	state := st.State.String()
	if st.Transport != "" {
		state += " via " + st.Transport
	}
	b.WriteString(FormatStatus(st.State == session.Connected, state))
	b.WriteString("\n")

	if st.State == session.Connected {
		b.WriteString(FormatField("Coordinates", st.Convention))
		b.WriteString("\n")
	}
	b.WriteString(FormatField("Screen", st.Size))
	b.WriteString("\n")
	b.WriteString(FormatField("Position", fmt.Sprintf("%d,%d", st.Position.X, st.Position.Y)))

	if st.Degraded {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("degraded: events are being dropped"))
	}
	return BoxStyle.Render(b.String())
}

// RenderEvents renders recorded emissions as a table
func RenderEvents(events []transport.Event) string {
	if len(events) == 0 {
		return MutedStyle.Italic(true).Render("no events emitted")
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorSubtle)).
		Headers("#", "EVENT", "DETAIL").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle
			}
			return TableCellStyle
		})

	for i, e := range events {
		t.Row(fmt.Sprint(i+1), string(e.Kind), eventDetail(e))
	}
	return t.Render()
}

func eventDetail(e transport.Event) string {
	switch e.Kind {
	case transport.EventFrame:
		return ""
	case transport.EventScrollStop:
		return strings.TrimPrefix(e.String(), "scroll-stop ")
	}
	return strings.TrimPrefix(e.String(), string(e.Kind)+" ")
}
