// Package ui renders terminal output for the CLI: a spinner while an
// extraction runs, styled result lines, and diagnostic check lines.
package ui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"castgrab/internal/media"
)

// ErrAborted is returned when the user interrupts the spinner.
var ErrAborted = errors.New("aborted")

var (
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

type resultMsg struct {
	res media.Result
}

type spinnerModel struct {
	spinner spinner.Model
	label   string
	cancel  context.CancelFunc

	res     media.Result
	done    bool
	aborted bool
}

func newSpinnerModel(cancel context.CancelFunc, label string) spinnerModel {
	return spinnerModel{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(spinnerStyle)),
		label:   label,
		cancel:  cancel,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case resultMsg:
		m.res = msg.res
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc", "q":
			m.aborted = true
			m.cancel()
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.label)
}

// RunWithSpinner shows a spinner labelled label on out while run executes.
// Interrupting cancels the context passed to run and returns ErrAborted.
// It never returns before run has.
func RunWithSpinner(ctx context.Context, out io.Writer, label string, run func(context.Context) media.Result) (media.Result, error) {
	return runWithSpinner(ctx, label, run, tea.WithOutput(out))
}

func runWithSpinner(ctx context.Context, label string, run func(context.Context) media.Result, opts ...tea.ProgramOption) (media.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newSpinnerModel(cancel, label), opts...)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res := run(ctx)
		// Send returns immediately once the program has exited.
		p.Send(resultMsg{res: res})
	}()

	final, err := p.Run()
	cancel()
	<-finished
	if err != nil {
		return media.Result{}, fmt.Errorf("running spinner: %w", err)
	}

	m := final.(spinnerModel)
	if m.aborted {
		return media.Result{}, ErrAborted
	}
	return m.res, nil
}

// FormatResult renders an extraction result for humans.
func FormatResult(res media.Result) string {
	if res.OK() {
		return fmt.Sprintf("%s %s\n%s\n",
			okStyle.Render("✅"),
			"MP3 URL extracted successfully!",
			res.AudioURL())
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", failStyle.Render("❌"), res.Kind().UserMessage())
	if res.Reason() != "" {
		detail := res.Reason()
		if res.Strategy() != "" {
			detail = fmt.Sprintf("%s (%s)", detail, res.Strategy())
		}
		fmt.Fprintf(&b, "   %s\n", dimStyle.Render(detail))
	}
	return b.String()
}

// Level grades one diagnostic check.
type Level int

const (
	LevelOK Level = iota
	LevelWarn
	LevelFail
)

// CheckLine renders a diagnostic check with its status marker.
func CheckLine(level Level, msg string) string {
	switch level {
	case LevelOK:
		return okStyle.Render("✅") + " " + msg
	case LevelWarn:
		return warnStyle.Render("⚠️") + "  " + msg
	default:
		return failStyle.Render("❌") + " " + msg
	}
}

// Heading renders a section title.
func Heading(s string) string {
	return lipgloss.NewStyle().Bold(true).Render(s)
}

// Dim renders secondary text.
func Dim(s string) string {
	return dimStyle.Render(s)
}
