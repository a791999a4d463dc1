package ui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bnema/wlcore/internal/ipc"
)

type fakeSource struct {
	status *ipc.Status
	err    error
	calls  int
}

func (f *fakeSource) Status() (*ipc.Status, error) {
	f.calls++
	return f.status, f.err
}

func sampleStatus() *ipc.Status {
	return &ipc.Status{
		Running: true,
		Socket:  "wayland-1",
		Backend: "headless",
		Clients: 1,
		Globals: []string{"org_kde_kwin_server_decoration_manager"},
		Outputs: []ipc.OutputStatus{
			{Name: "HEADLESS-1", Width: 1280, Height: 720, Refresh: 60000, Scale: 1},
			{Name: "HEADLESS-2", Width: 800, Height: 600, Refresh: 60000, Scale: 1, X: 1280},
		},
		Inputs:  []ipc.InputStatus{{Name: "mouse", Type: "pointer"}},
		CursorX: 640,
		CursorY: 360,
	}
}

func TestWatchModelPollsAndRenders(t *testing.T) {
	src := &fakeSource{status: sampleStatus()}
	m := NewWatchModel(src, time.Millisecond)

	assert.Contains(t, m.View(), "Connecting")

	msg := m.poll()
	assert.Equal(t, 1, src.calls)

	_, cmd := m.Update(msg)
	require.NotNil(t, cmd, "a poll schedules the next refresh")
	assert.Same(t, src.status, m.Status())

	view := m.View()
	for _, want := range []string{"Running", "wayland-1", "headless", "HEADLESS-1", "HEADLESS-2", "1280x720@60.00", "1280,0", "mouse", "pointer", "640.0, 360.0"} {
		assert.Contains(t, view, want)
	}

	_, cmd = m.Update(refreshMsg(time.Now()))
	require.NotNil(t, cmd)
	_, ok := cmd().(StatusMsg)
	assert.True(t, ok, "a refresh polls again")
	assert.Equal(t, 2, src.calls)
}

func TestWatchModelNotRunning(t *testing.T) {
	m := NewWatchModel(&fakeSource{}, time.Second)
	m.Update(StatusMsg{Status: sampleStatus()})
	m.Update(StatusMsg{Err: ipc.ErrNotRunning})

	assert.ErrorIs(t, m.Err(), ipc.ErrNotRunning)
	assert.NotNil(t, m.Status(), "the last good status is kept")
	view := m.View()
	assert.Contains(t, view, "not running")
	assert.NotContains(t, view, "HEADLESS-1")

	m.Update(StatusMsg{Err: errors.New("failed to read response: EOF")})
	assert.Contains(t, m.View(), "EOF")
}

func TestWatchModelKeys(t *testing.T) {
	m := NewWatchModel(&fakeSource{status: sampleStatus()}, 0)
	assert.Equal(t, time.Second, m.interval)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	_, ok := cmd().(StatusMsg)
	assert.True(t, ok)

	for _, key := range []tea.KeyMsg{
		{Type: tea.KeyRunes, Runes: []rune("q")},
		{Type: tea.KeyCtrlC},
		{Type: tea.KeyEsc},
	} {
		_, cmd := m.Update(key)
		require.NotNil(t, cmd, key.String())
		assert.Equal(t, tea.Quit(), cmd(), key.String())
	}
}

func TestCursorOutput(t *testing.T) {
	st := sampleStatus()
	assert.Equal(t, "HEADLESS-1", CursorOutput(st))

	st.CursorX = 1300
	assert.Equal(t, "HEADLESS-2", CursorOutput(st))

	st.CursorY = 700
	assert.Empty(t, CursorOutput(st), "below the shorter output")

	st.Outputs[0].Scale = 2
	st.CursorX, st.CursorY = 700, 100
	assert.Empty(t, CursorOutput(st), "scaled outputs cover their logical size")
}

func TestRenderCursorListsOutputs(t *testing.T) {
	st := sampleStatus()
	out := RenderCursor(st)
	assert.Contains(t, out, "640.0, 360.0")
	assert.Equal(t, 2, strings.Count(out, "•"))
	assert.Contains(t, out, FormatListItem("HEADLESS-1", true))
	assert.Contains(t, out, FormatListItem("HEADLESS-2", false))
}

func TestRenderStatusEmpty(t *testing.T) {
	out := RenderStatus(&ipc.Status{Socket: "wayland-0"})
	assert.Contains(t, out, "Stopped")
	assert.Contains(t, out, "Outputs (0)")
	assert.Contains(t, out, "none")
}
