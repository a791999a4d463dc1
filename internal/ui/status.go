package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/bnema/wlcore/internal/ipc"
)

var (
	outputColumns = []table.Column{
		{Title: "Output", Width: 14},
		{Title: "Mode", Width: 18},
		{Title: "Scale", Width: 6},
		{Title: "Position", Width: 12},
	}
	inputColumns = []table.Column{
		{Title: "Device", Width: 24},
		{Title: "Type", Width: 12},
	}
)

// FormatMode renders a mode as WIDTHxHEIGHT@HZ. Refresh is in mHz and is
// omitted when unknown.
func FormatMode(width, height, refresh int) string {
	if refresh <= 0 {
		return fmt.Sprintf("%dx%d", width, height)
	}
	return fmt.Sprintf("%dx%d@%.2f", width, height, float64(refresh)/1000)
}

func outputRows(st *ipc.Status) []table.Row {
	rows := make([]table.Row, 0, len(st.Outputs))
	for _, o := range st.Outputs {
		rows = append(rows, table.Row{
			o.Name,
			FormatMode(o.Width, o.Height, o.Refresh),
			fmt.Sprintf("%.2g", o.Scale),
			fmt.Sprintf("%d,%d", o.X, o.Y),
		})
	}
	return rows
}

func inputRows(st *ipc.Status) []table.Row {
	rows := make([]table.Row, 0, len(st.Inputs))
	for _, in := range st.Inputs {
		rows = append(rows, table.Row{in.Name, in.Type})
	}
	return rows
}

func newTable(cols []table.Column, rows []table.Row) table.Model {
	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
	)
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorSubtle).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Selected = s.Cell
	t.SetStyles(s)
	// header plus its bottom border
	t.SetHeight(len(rows) + 2)
	return t
}

// RenderSummary renders the header block of a status report.
func RenderSummary(st *ipc.Status) string {
	var b strings.Builder
	state := "Stopped"
	if st.Running {
		state = "Running"
	}
	b.WriteString(FormatStatus(st.Running, state))
	b.WriteString("\n")
	b.WriteString(FormatField("Socket", st.Socket))
	b.WriteString("\n")
	b.WriteString(FormatField("Backend", st.Backend))
	b.WriteString("\n")
	b.WriteString(FormatField("Clients", fmt.Sprintf("%d", st.Clients)))
	if len(st.Globals) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatField("Globals", strings.Join(st.Globals, ", ")))
	}
	return BoxStyle.Render(b.String())
}

// CursorOutput returns the name of the output whose layout box holds the
// cursor, or "" when it is on none.
func CursorOutput(st *ipc.Status) string {
	for _, o := range st.Outputs {
		scale := o.Scale
		if scale <= 0 {
			scale = 1
		}
		w, h := float64(o.Width)/scale, float64(o.Height)/scale
		x, y := st.CursorX-float64(o.X), st.CursorY-float64(o.Y)
		if x >= 0 && y >= 0 && x < w && y < h {
			return o.Name
		}
	}
	return ""
}

// RenderCursor renders the cursor position followed by the outputs, the
// one under the cursor highlighted.
func RenderCursor(st *ipc.Status) string {
	var b strings.Builder
	b.WriteString(InfoStyle.Render(IconCursor) + " " + TextStyle.Render(fmt.Sprintf("cursor at %.1f, %.1f", st.CursorX, st.CursorY)))
	under := CursorOutput(st)
	for _, o := range st.Outputs {
		b.WriteString("\n")
		b.WriteString(FormatListItem(o.Name, o.Name == under))
	}
	return b.String()
}

func renderTables(st *ipc.Status) string {
	var b strings.Builder
	b.WriteString(SubheaderStyle.Render(fmt.Sprintf("%s Outputs (%d)", IconOutput, len(st.Outputs))))
	b.WriteString("\n")
	if len(st.Outputs) == 0 {
		b.WriteString(MutedStyle.Italic(true).Render("  none"))
	} else {
		b.WriteString(newTable(outputColumns, outputRows(st)).View())
	}
	b.WriteString("\n\n")
	b.WriteString(SubheaderStyle.Render(fmt.Sprintf("%s Inputs (%d)", IconInput, len(st.Inputs))))
	b.WriteString("\n")
	if len(st.Inputs) == 0 {
		b.WriteString(MutedStyle.Italic(true).Render("  none"))
	} else {
		b.WriteString(newTable(inputColumns, inputRows(st)).View())
	}
	return b.String()
}

// RenderStatus renders a full status report for `wlcore status`.
func RenderStatus(st *ipc.Status) string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("WLCORE"))
	b.WriteString("\n\n")
	b.WriteString(RenderSummary(st))
	b.WriteString("\n\n")
	b.WriteString(renderTables(st))
	b.WriteString("\n\n")
	b.WriteString(RenderCursor(st))
	return b.String()
}
