package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"go-perform/theme"
)

// Unbound marks a channel no track owns
const Unbound = -1

// RenderChannelStrip renders one cell per MIDI channel. owners[ch] is the
// track bound to ch, or Unbound. percussion is the reserved drum channel.
func RenderChannelStrip(th *theme.Theme, owners []int, percussion int) string {
	free := lipgloss.NewStyle().Foreground(th.Muted())
	bound := lipgloss.NewStyle().Foreground(th.Active())
	drums := lipgloss.NewStyle().Foreground(th.Warning())

	var cells, labels strings.Builder
	for ch, owner := range owners {
		if ch > 0 {
			cells.WriteString(" ")
			labels.WriteString(" ")
		}
		fmt.Fprintf(&labels, "%-2d", ch+1)

		switch {
		case ch == percussion && owner != Unbound:
			cells.WriteString(drums.Render(string(th.Symbols.ChannelPercussion) + " "))
		case ch == percussion:
			cells.WriteString(free.Render(string(th.Symbols.ChannelReserved) + " "))
		case owner != Unbound:
			cells.WriteString(bound.Render(string(th.Symbols.ChannelBound) + " "))
		default:
			cells.WriteString(free.Render(string(th.Symbols.ChannelFree) + " "))
		}
	}
	return free.Render(labels.String()) + "\n" + cells.String()
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

// RenderKeyHelp renders bindings on one line: "p:play  s:stop"
func RenderKeyHelp(th *theme.Theme, keys []KeyBinding) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.Key + ":" + k.Desc
	}
	return lipgloss.NewStyle().Foreground(th.Muted()).Render(strings.Join(parts, "  "))
}
