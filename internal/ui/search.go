package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/ssdp/internal/ssdp"
)

// SearchFunc runs one search. Cancelling ctx ends the wait early.
type SearchFunc func(ctx context.Context) ([]*ssdp.SearchResponse, error)

type searchTickMsg time.Time

type searchDoneMsg struct {
	responses []*ssdp.SearchResponse
	err       error
}

type searchKeyMap struct {
	Stop key.Binding
}

func (k searchKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Stop}
}

func (k searchKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Stop}}
}

// SearchModel shows a spinner and a bar filling over the search window
// while a search runs, then exits.
type SearchModel struct {
	Label     string
	Window    time.Duration
	Responses []*ssdp.SearchResponse
	Err       error

	run     SearchFunc
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time
	percent float64
	done    bool

	spinner spinner.Model
	bar     progress.Model
	help    help.Model
	keys    searchKeyMap
}

// NewSearchModel creates a model that runs fn when the program starts.
func NewSearchModel(ctx context.Context, label string, window time.Duration, fn SearchFunc) SearchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	return SearchModel{
		Label:   label,
		Window:  window,
		run:     fn,
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:    help.New(),
		keys: searchKeyMap{
			Stop: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "stop waiting"),
			),
		},
	}
}

func searchTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return searchTickMsg(t)
	})
}

func (m SearchModel) runSearch() tea.Msg {
	responses, err := m.run(m.ctx)
	return searchDoneMsg{responses: responses, err: err}
}

// Init implements tea.Model
func (m SearchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, searchTick(), m.runSearch)
}

// Update implements tea.Model
func (m SearchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Stop) {
			// The search returns what it has so far.
			m.cancel()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case searchTickMsg:
		if m.done {
			return m, nil
		}
		if m.Window > 0 {
			m.percent = float64(time.Time(msg).Sub(m.started)) / float64(m.Window)
		}
		if m.percent > 1 {
			m.percent = 1
		}
		return m, searchTick()

	case searchDoneMsg:
		m.done = true
		m.percent = 1
		m.Responses = msg.responses
		m.Err = msg.err
		m.cancel()
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m SearchModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s %s\n\n", m.spinner.View(), m.Label)
	fmt.Fprintf(&b, "  %s\n\n", m.bar.ViewAs(m.percent))
	fmt.Fprintf(&b, "  %s\n", m.help.View(m.keys))
	return b.String()
}

// RunSearch runs fn behind a SearchModel when stdout is a terminal and
// directly otherwise.
func RunSearch(ctx context.Context, label string, window time.Duration, fn SearchFunc) ([]*ssdp.SearchResponse, error) {
	if !IsTerminal() {
		return fn(ctx)
	}

	final, err := tea.NewProgram(NewSearchModel(ctx, label, window, fn)).Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run search view: %w", err)
	}
	m := final.(SearchModel)
	return m.Responses, m.Err
}
