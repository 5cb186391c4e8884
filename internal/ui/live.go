package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// DefaultLiveLines is how many lines a live view keeps when the terminal
// height is unknown.
const DefaultLiveLines = 20

type liveLineMsg string

type liveClosedMsg struct{}

type liveKeyMap struct {
	Pause key.Binding
	Clear key.Binding
	Quit  key.Binding
}

func (k liveKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.Clear, k.Quit}
}

func (k liveKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Pause, k.Clear, k.Quit}}
}

// LiveModel shows a scrolling list of lines read from a feed, used by
// listen and monitor. Pausing holds new lines back until resumed.
type LiveModel struct {
	Title  string
	Status string
	Count  int

	feed    <-chan string
	lines   []string
	pending []string
	paused  bool
	closed  bool
	height  int

	spinner spinner.Model
	help    help.Model
	keys    liveKeyMap
}

// NewLiveModel creates a live view over feed. The view ends when feed is
// closed or the user quits.
func NewLiveModel(title, status string, feed <-chan string) LiveModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return LiveModel{
		Title:   title,
		Status:  status,
		feed:    feed,
		spinner: s,
		help:    help.New(),
		keys: liveKeyMap{
			Pause: key.NewBinding(
				key.WithKeys("p", " "),
				key.WithHelp("p", "pause"),
			),
			Clear: key.NewBinding(
				key.WithKeys("c"),
				key.WithHelp("c", "clear"),
			),
			Quit: key.NewBinding(
				key.WithKeys("q", "esc", "ctrl+c"),
				key.WithHelp("q", "quit"),
			),
		},
	}
}

func waitForLine(feed <-chan string) tea.Cmd {
	return func() tea.Msg {
		line, ok := <-feed
		if !ok {
			return liveClosedMsg{}
		}
		return liveLineMsg(line)
	}
}

// Init implements tea.Model
func (m LiveModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForLine(m.feed))
}

// Update implements tea.Model
func (m LiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Pause):
			m.paused = !m.paused
			if !m.paused {
				for _, l := range m.pending {
					m.push(l)
				}
				m.pending = nil
			}
		case key.Matches(msg, m.keys.Clear):
			m.lines = nil
			m.pending = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case liveLineMsg:
		m.Count++
		if m.paused {
			m.pending = append(m.pending, string(msg))
		} else {
			m.push(string(msg))
		}
		return m, waitForLine(m.feed)

	case liveClosedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *LiveModel) push(line string) {
	m.lines = append(m.lines, line)
	if limit := m.maxLines(); len(m.lines) > limit {
		m.lines = m.lines[len(m.lines)-limit:]
	}
}

func (m LiveModel) maxLines() int {
	// Title, status, blank lines and help take six rows.
	if m.height > 10 {
		return m.height - 6
	}
	return DefaultLiveLines
}

// Lines returns the lines currently on screen.
func (m LiveModel) Lines() []string {
	return m.lines
}

// View implements tea.Model
func (m LiveModel) View() string {
	var b strings.Builder
	b.WriteString(HeaderTitleStyle.Render(strings.ToUpper(m.Title)))
	b.WriteString("\n")

	status := fmt.Sprintf("%s (%d received)", m.Status, m.Count)
	if m.paused {
		status = fmt.Sprintf("paused, %d held back", len(m.pending))
	}
	if m.closed {
		b.WriteString("  " + StatusStyle.Render(status) + "\n\n")
	} else {
		b.WriteString("  " + m.spinner.View() + " " + StatusStyle.Render(status) + "\n\n")
	}

	for _, l := range m.lines {
		b.WriteString("  " + l + "\n")
	}
	b.WriteString("\n  " + m.help.View(m.keys) + "\n")
	return b.String()
}

// RunLive shows feed in a LiveModel until ctx is cancelled, the feed closes
// or the user quits. Without a terminal the lines are printed as they come.
func RunLive(ctx context.Context, title, status string, feed <-chan string) error {
	if !IsTerminal() {
		p := NewPrinter(nil)
		for {
			select {
			case <-ctx.Done():
				return nil
			case line, ok := <-feed:
				if !ok {
					return nil
				}
				p.Println(line)
			}
		}
	}

	prog := tea.NewProgram(NewLiveModel(title, status, feed))
	stop := context.AfterFunc(ctx, prog.Quit)
	defer stop()

	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("failed to run live view: %w", err)
	}
	return nil
}
