package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderCell renders a single colored symbol cell
func RenderCell(color [3]uint8, symbol rune) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(symbol))
}

// RenderChannelRow renders the 16 MIDI channels as one spaced row. Channels
// present in notes get the busy symbol and color, the rest the idle pair.
func RenderChannelRow(notes map[uint8]int, busyColor, idleColor [3]uint8, busy, idle rune) string {
	var out strings.Builder
	for ch := uint8(0); ch < 16; ch++ {
		if ch > 0 {
			out.WriteString(" ")
		}
		if _, ok := notes[ch]; ok {
			out.WriteString(RenderCell(busyColor, busy))
		} else {
			out.WriteString(RenderCell(idleColor, idle))
		}
	}
	return out.String()
}

// RenderChannelNotes lists the sounding assignments as "ch:note" pairs, in
// channel order, for the line under the row.
func RenderChannelNotes(notes map[uint8]int) string {
	var parts []string
	for ch := uint8(0); ch < 16; ch++ {
		if note, ok := notes[ch]; ok {
			parts = append(parts, fmt.Sprintf("%d:%d", ch, note))
		}
	}
	return strings.Join(parts, " ")
}

// RenderKeyHelp formats key bindings in a friendly way
func RenderKeyHelp(sections []KeySection) string {
	var lines []string
	for _, sec := range sections {
		if sec.Title != "" {
			lines = append(lines, sec.Title)
		}
		for _, k := range sec.Keys {
			lines = append(lines, fmt.Sprintf("  %-12s %s", k.Key, k.Desc))
		}
	}
	return strings.Join(lines, "\n")
}

// KeySection groups related key bindings
type KeySection struct {
	Title string
	Keys  []KeyBinding
}

// KeyBinding is a single key and its description
type KeyBinding struct {
	Key  string
	Desc string
}

func rgbToHex(c [3]uint8) string {
	return fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2])
}
