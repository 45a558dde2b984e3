package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/studiowebux/chatbench/internal/loadtest"
)

const (
	pollInterval = 100 * time.Millisecond
	maxWidth     = 90
	barWidth     = 40
)

// ProgressSource is polled for live counters. *loadtest.Driver implements it.
type ProgressSource interface {
	Progress() loadtest.Progress
}

// Info describes the run being displayed
type Info struct {
	Name   string
	Target string
	Model  string
}

// Model is the load test progress view. It quits on its own once the source
// reports Done; q, esc and ctrl+c cancel the run first.
type Model struct {
	source   ProgressSource
	cancel   context.CancelFunc
	info     Info
	bar      progress.Model
	current  loadtest.Progress
	stopping bool
	width    int
	height   int
}

type tickMsg time.Time

// New returns a progress view for source. cancel stops the run.
func New(source ProgressSource, cancel context.CancelFunc, info Info) Model {
	return Model{
		source: source,
		cancel: cancel,
		info:   info,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
}

func (m Model) Init() tea.Cmd {
	return poll()
}

func poll() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			if !m.stopping {
				m.stopping = true
				if m.cancel != nil {
					m.cancel()
				}
			}
		}
		return m, nil

	case tickMsg:
		m.current = m.source.Progress()
		if m.current.Done {
			return m, tea.Quit
		}
		return m, poll()
	}

	return m, nil
}

// Stopping reports whether the user asked to cancel the run
func (m Model) Stopping() bool {
	return m.stopping
}

// Run shows the progress view until the run is done
func Run(m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}
