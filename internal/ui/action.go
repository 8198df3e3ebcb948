package ui

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/moby/term"
)

// ActionOptions configures Action.
type ActionOptions struct {
	// Clear removes the status line once the action is done.
	Clear bool
}

type actionDoneMsg struct {
	err error
}

type actionModel struct {
	spinner spinner.Model
	message string
	clear   bool
	done    bool
	err     error
}

func newActionModel(message string, clear bool) actionModel {
	s := spinner.New(spinner.WithSpinner(spinner.Dot))
	s.Style = s.Style.Foreground(highlight)
	return actionModel{spinner: s, message: message, clear: clear}
}

func (m actionModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m actionModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case actionDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m actionModel) View() string {
	if !m.done {
		return fmt.Sprintf("%s %s...", m.spinner.View(), m.message)
	}
	if m.clear {
		return ""
	}
	return fmt.Sprintf("%s... %s\n", m.message, status(m.err))
}

func status(err error) string {
	if err != nil {
		return "failed"
	}
	return "done"
}

// Action runs fn while showing message with a spinner on w. When w is not a
// terminal it prints "message... done" instead. fn's error is returned as is.
func Action(ctx context.Context, w io.Writer, message string, opts ActionOptions, fn func(ctx context.Context) error) error {
	if _, isTerminal := term.GetFdInfo(w); !isTerminal {
		return plainAction(ctx, w, message, opts, fn)
	}

	p := tea.NewProgram(newActionModel(message, opts.Clear),
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	result := make(chan error, 1)
	go func() {
		err := fn(ctx)
		result <- err
		p.Send(actionDoneMsg{err: err})
	}()

	// fn decides the outcome even if the spinner fails to render.
	_, _ = p.Run()
	return <-result
}

func plainAction(ctx context.Context, w io.Writer, message string, opts ActionOptions, fn func(ctx context.Context) error) error {
	if !opts.Clear {
		fmt.Fprintf(w, "%s... ", message)
	}
	err := fn(ctx)
	if !opts.Clear {
		fmt.Fprintln(w, status(err))
	}
	return err
}
