// Package tui implements the "orc watch" live view: a scrolling feed
// of ledger messages for one cluster, refreshed as the bus delivers
// them.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/orc-run/orc/internal/bus"
	"github.com/orc-run/orc/internal/ledger"
	"github.com/orc-run/orc/internal/message"
)

var (
	profile    = termenv.ColorProfile()
	senderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	topicStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	timeStyle   = lipgloss.NewStyle().Faint(true)
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

type lineMsg message.Message

// Model is the bubbletea model backing "orc watch".
type Model struct {
	clusterID string
	bus       *bus.Bus
	viewport  viewport.Model
	lines     []string
	unsub     bus.Unsubscribe
	ch        chan message.Message
	ready     bool
}

// New builds a watch model for clusterID, replaying its existing
// history from store before subscribing to live updates on b.
func New(ctx context.Context, clusterID string, b *bus.Bus, store ledger.Store) (*Model, error) {
	history, err := store.Query(ctx, ledger.Filter{ClusterID: clusterID})
	if err != nil {
		return nil, fmt.Errorf("tui: loading history for %q: %w", clusterID, err)
	}

	m := &Model{
		clusterID: clusterID,
		bus:       b,
		ch:        make(chan message.Message, 256),
	}
	for _, msg := range history {
		m.lines = append(m.lines, renderLine(msg))
	}
	return m, nil
}

func (m *Model) Init() tea.Cmd {
	m.unsub = m.bus.Subscribe(ledger.Filter{ClusterID: m.clusterID}, func(msg message.Message) {
		select {
		case m.ch <- msg:
		default:
		}
	})
	return m.waitForMessage
}

func (m *Model) waitForMessage() tea.Msg {
	return lineMsg(<-m.ch)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch v := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(v.Width, v.Height-2)
			m.ready = true
		} else {
			m.viewport.Width = v.Width
			m.viewport.Height = v.Height - 2
		}
		m.viewport.SetContent(strings.Join(m.lines, "\n"))
		m.viewport.GotoBottom()
		return m, nil

	case lineMsg:
		m.lines = append(m.lines, renderLine(message.Message(v)))
		if m.ready {
			m.viewport.SetContent(strings.Join(m.lines, "\n"))
			m.viewport.GotoBottom()
		}
		return m, m.waitForMessage

	case tea.KeyMsg:
		switch v.String() {
		case "q", "ctrl+c", "esc":
			if m.unsub != nil {
				m.unsub()
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) View() string {
	if !m.ready {
		return "loading...\n"
	}
	header := headerStyle.Render(fmt.Sprintf("cluster %s", m.clusterID))
	return header + "\n" + m.viewport.View() + "\n"
}

func renderLine(m message.Message) string {
	ts := time.UnixMilli(m.Timestamp).Format("15:04:05")
	return fmt.Sprintf("%s %s -> %s", timeStyle.Render(ts), senderStyle.Render(m.Sender), topicStyle.Render(m.Topic))
}
