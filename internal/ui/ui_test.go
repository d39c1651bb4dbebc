package ui

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"castgrab/internal/media"
)

func TestSpinnerModelFinishesOnResult(t *testing.T) {
	_, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newSpinnerModel(cancel, "Extracting")
	assert.Contains(t, m.View(), "Extracting")

	next, cmd := m.Update(resultMsg{res: media.Success("https://cdn.example.com/a.mp3")})
	sm := next.(spinnerModel)

	assert.True(t, sm.done)
	assert.Equal(t, "https://cdn.example.com/a.mp3", sm.res.AudioURL())
	assert.Empty(t, sm.View())
	assert.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestSpinnerModelAbortCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newSpinnerModel(cancel, "Extracting")

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	sm := next.(spinnerModel)

	assert.True(t, sm.aborted)
	assert.Error(t, ctx.Err(), "abort should cancel the extraction context")
}

func TestRunWithSpinnerReturnsResult(t *testing.T) {
	res, err := runWithSpinner(context.Background(), "Extracting", func(context.Context) media.Result {
		return media.Success("https://cdn.example.com/a.mp3")
	}, tea.WithInput(nil), tea.WithOutput(io.Discard))

	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/a.mp3", res.AudioURL())
}

func TestRunWithSpinnerAbortWaitsForRun(t *testing.T) {
	var finished atomic.Bool
	run := func(ctx context.Context) media.Result {
		<-ctx.Done()
		// Stands in for browser teardown after cancellation.
		time.Sleep(50 * time.Millisecond)
		finished.Store(true)
		return media.Failure(media.Resource, "render cancelled: context canceled")
	}

	_, err := runWithSpinner(context.Background(), "Extracting", run,
		tea.WithInput(strings.NewReader("q")), tea.WithOutput(io.Discard))

	assert.ErrorIs(t, err, ErrAborted)
	assert.True(t, finished.Load(), "run must finish before the spinner returns")
}

func TestFormatResult(t *testing.T) {
	ok := FormatResult(media.Success("https://cdn.example.com/a.mp3"))
	assert.Contains(t, ok, "MP3 URL extracted successfully!")
	assert.Contains(t, ok, "https://cdn.example.com/a.mp3")

	fail := FormatResult(media.Failure(media.MissingDataIsland, "data island not found after render").From(media.StrategyRendered))
	assert.Contains(t, fail, media.MissingDataIsland.UserMessage())
	assert.Contains(t, fail, "data island not found after render (rendered)")
}

func TestCheckLine(t *testing.T) {
	assert.True(t, strings.Contains(CheckLine(LevelOK, "config loaded"), "✅"))
	assert.True(t, strings.Contains(CheckLine(LevelWarn, "auth disabled"), "⚠️"))
	assert.True(t, strings.Contains(CheckLine(LevelFail, "no browser"), "❌"))
	assert.Contains(t, CheckLine(LevelFail, "no browser"), "no browser")
}
