package widgets

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// RenderPad renders a single colored glyph
func RenderPad(color [3]uint8, glyph rune) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	return style.Render(string(glyph))
}

// Button is one cell of a button row
type Button struct {
	Color  [3]uint8
	Glyph  rune
	Label  string // optional, shown after the glyph
	Offset bool   // half-cell indent (staggered accordion rows)
}

// RenderButtonRow renders buttons separated by spaces
func RenderButtonRow(buttons []Button) string {
	var out strings.Builder
	for i, b := range buttons {
		if i == 0 && b.Offset {
			out.WriteString(" ")
		}
		if i > 0 {
			out.WriteString(" ")
		}
		out.WriteString(RenderPad(b.Color, b.Glyph))
		if b.Label != "" {
			out.WriteString(b.Label)
		}
	}
	return out.String()
}

// Mark is a note drawn in a lane grid. Row 0 is the top.
type Mark struct {
	Lane  int
	Row   int
	Color [3]uint8
}

// LaneGrid describes the falling-note area
type LaneGrid struct {
	Lanes     int
	Height    int
	Labels    []string // one per lane, printed under the hit line
	LaneColor [3]uint8
	HitColor  [3]uint8
	LaneGlyph rune
	NoteGlyph rune
	HitGlyph  rune
}

// RenderLanes draws the lanes top to bottom, ending with the hit line.
// Lanes are 3 cells wide.
func RenderLanes(g LaneGrid, marks []Mark) string {
	if g.Lanes == 0 || g.Height == 0 {
		return ""
	}

	cells := make([][]*Mark, g.Height)
	for r := range cells {
		cells[r] = make([]*Mark, g.Lanes)
	}
	for i := range marks {
		m := &marks[i]
		if m.Lane < 0 || m.Lane >= g.Lanes || m.Row < 0 || m.Row >= g.Height {
			continue
		}
		cells[m.Row][m.Lane] = m
	}

	laneStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(g.LaneColor)))
	hitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(g.HitColor)))

	var lines []string
	for r := 0; r < g.Height; r++ {
		var line strings.Builder
		for l := 0; l < g.Lanes; l++ {
			line.WriteString(" ")
			if m := cells[r][l]; m != nil {
				line.WriteString(RenderPad(m.Color, g.NoteGlyph))
			} else {
				line.WriteString(laneStyle.Render(string(g.LaneGlyph)))
			}
			line.WriteString(" ")
		}
		lines = append(lines, line.String())
	}
	lines = append(lines, hitStyle.Render(strings.Repeat(string(g.HitGlyph), g.Lanes*3)))

	if len(g.Labels) > 0 {
		var labels strings.Builder
		for l := 0; l < g.Lanes; l++ {
			label := ""
			if l < len(g.Labels) {
				label = g.Labels[l]
			}
			labels.WriteString(fmt.Sprintf("%-3.3s", label))
		}
		lines = append(lines, laneStyle.Render(labels.String()))
	}
	return strings.Join(lines, "\n")
}

// LaneRow maps a note's distance from the hit line to a grid row. A note due
// now sits on the last row; one a full lead away sits on row 0.
func LaneRow(untilMs, leadMs int64, height int) int {
	if height <= 1 || leadMs <= 0 {
		return height - 1
	}
	if untilMs < 0 {
		untilMs = 0
	}
	row := int(int64(height-1) - untilMs*int64(height-1)/leadMs)
	if row < 0 {
		row = 0
	}
	return row
}

// RenderMeter renders "label [█████░░░░░] value"
func RenderMeter(label string, value, max, width int, color [3]uint8) string {
	if max <= 0 {
		max = 1
	}
	filled := value * width / max
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(rgbToHex(color)))
	bar := style.Render(strings.Repeat("█", filled)) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s [%s] %d", label, bar, value)
}

// RenderLegendItem renders a single legend item: "■ Name - description"
func RenderLegendItem(color [3]uint8, name, desc string) string {
	return fmt.Sprintf("  %s %s - %s", RenderPad(color, '■'), name, desc)
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
