package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-perform/midi"
	"go-perform/protocol"
	"go-perform/sequencer"
	"go-perform/theme"
	"go-perform/widgets"
)

const refreshInterval = 100 * time.Millisecond

var keyHelp = []widgets.KeyBinding{
	{Key: "p", Desc: "play"},
	{Key: "s", Desc: "stop"},
	{Key: "q", Desc: "quit"},
}

// Model is the performance monitor. It only reads player state; the p and s
// keys go through the same instruction queue as every other client.
type Model struct {
	Player   *sequencer.Player
	Theme    *theme.Theme
	Addr     string // API address shown in the header
	state    sequencer.State
	status   string
	quitting bool
}

type UpdateMsg struct{}

type tickMsg time.Time

// sentMsg reports the result of queueing a batch from a key press
type sentMsg struct {
	address string
	err     error
}

func NewModel(player *sequencer.Player, th *theme.Theme, addr string) Model {
	return Model{
		Player: player,
		Theme:  th,
		Addr:   addr,
		state:  player.Snapshot(),
	}
}

func ListenForUpdates(player *sequencer.Player) tea.Cmd {
	return func() tea.Msg {
		<-player.UpdateChan
		return UpdateMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// send queues a single-message batch
func send(player *sequencer.Player, address string) tea.Cmd {
	return func() tea.Msg {
		msg, err := protocol.NewMessage(address)
		if err != nil {
			return sentMsg{address, err}
		}
		raw, err := protocol.Encode(msg)
		if err != nil {
			return sentMsg{address, err}
		}
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return sentMsg{address, player.Enqueue(ctx, raw)}
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Player),
		tick(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "p":
			return m, send(m.Player, "/system/play")

		case "s":
			return m, send(m.Player, "/system/stop")
		}

	case sentMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v", msg.address, msg.err)
		} else {
			m.status = msg.address + " queued"
		}

	case UpdateMsg:
		m.state = m.Player.Snapshot()
		return m, ListenForUpdates(m.Player)

	case tickMsg:
		m.state = m.Player.Snapshot()
		return m, tick()
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	playStyle := lipgloss.NewStyle().Foreground(m.Theme.Success())

	s := m.state

	playState := string(m.Theme.Symbols.Stopped) + " STOP"
	if s.Playing {
		playState = playStyle.Render(string(m.Theme.Symbols.Playing) + " PLAY")
	}
	clock := "frozen"
	if s.Running {
		clock = "running"
	}

	header := headerStyle.Render(fmt.Sprintf("go-perform  %s  %s  %s", playState, formatOffset(s.Offset), clock))
	if m.Addr != "" {
		header += dimStyle.Render("  api " + m.Addr)
	}

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n\n")

	out.WriteString(widgets.RenderChannelStrip(m.Theme, channelOwners(s), int(midi.PercussionChannel)))
	out.WriteString("\n\n")

	if len(s.Tracks) == 0 {
		out.WriteString(dimStyle.Render("no tracks yet"))
		out.WriteString("\n")
	} else {
		out.WriteString(dimStyle.Render(fmt.Sprintf("%-6s %-4s %-8s %-10s %s", "track", "ch", "pending", "next", "looping")))
		out.WriteString("\n")
		for _, t := range s.Tracks {
			ch := "-"
			if t.Channel >= 0 {
				ch = fmt.Sprintf("%d", t.Channel+1)
			}
			line := fmt.Sprintf("%-6d %-4s %-8d %-10s ", t.ID, ch, t.Pending, formatOffset(t.StartOffset))
			out.WriteString(line)
			out.WriteString(activeStyle.Render(strings.Join(t.Active, " ")))
			out.WriteString("\n")
		}
	}

	if len(s.Patterns) > 0 {
		out.WriteString("\n")
		names := make([]string, len(s.Patterns))
		for i, p := range s.Patterns {
			names[i] = fmt.Sprintf("%s(%d)", p.Name, p.Events)
		}
		out.WriteString(dimStyle.Render("patterns: " + strings.Join(names, " ")))
		out.WriteString("\n")
	}

	out.WriteString("\n")
	out.WriteString(widgets.RenderKeyHelp(m.Theme, keyHelp))
	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(dimStyle.Render(m.status))
	}

	return out.String()
}

// channelOwners maps every MIDI channel to the track bound to it
func channelOwners(s sequencer.State) []int {
	owners := make([]int, midi.NumChannels)
	for i := range owners {
		owners[i] = widgets.Unbound
	}
	for _, t := range s.Tracks {
		if t.Channel >= 0 && t.Channel < midi.NumChannels {
			owners[t.Channel] = t.ID
		}
	}
	return owners
}

func formatOffset(ms int64) string {
	return fmt.Sprintf("%d.%03ds", ms/1000, ms%1000)
}
