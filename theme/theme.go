package theme

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"go-acordeon/catalog"
	"go-acordeon/sequencer"
)

type Theme struct {
	Palette *Palette
	Symbols Symbols
}

type Symbols struct {
	// Button grid
	ButtonIdle   rune // ○ not sounding
	ButtonActive rune // ● sounding

	// Lanes
	Note    rune // ◆ falling note
	Lane    rune // │ empty lane
	HitLine rune // ═ hit line

	// Bellows
	PushArrow rune // ▶
	PullArrow rune // ◀
}

func New(palette *Palette) *Theme {
	return &Theme{
		Palette: palette,
		Symbols: Symbols{
			ButtonIdle:   '○',
			ButtonActive: '●',

			Note:    '◆',
			Lane:    '│',
			HitLine: '═',

			PushArrow: '▶',
			PullArrow: '◀',
		},
	}
}

// Default is the built-in palette theme
func Default() *Theme {
	return New(DefaultPalette())
}

// Color roles mapped to palette positions (0-1)
const (
	RoleBG      = 0.0
	RoleSurface = 0.1
	RoleMuted   = 0.25
	RoleFG      = 0.45
	RoleAccent  = 0.55
	RoleCursor  = 0.65
	RoleActive  = 0.7
	RoleWarning = 0.85
	RoleSuccess = 1.0
)

// Fixed colors that carry meaning regardless of palette
var (
	PushRGB = RGB{0x3a, 0x86, 0xff} // blue
	PullRGB = RGB{0xff, 0x4d, 0x4d} // red

	tierRGB = map[sequencer.Tier]RGB{
		sequencer.TierPerfect: {0xff, 0xd1, 0x66},
		sequencer.TierGood:    {0x06, 0xd6, 0xa0},
		sequencer.TierOffbeat: {0x8e, 0x9a, 0xaf},
		sequencer.TierMiss:    {0xef, 0x47, 0x6f},
	}
)

// Style helpers

func (t *Theme) BG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleBG))
}

func (t *Theme) FG() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleFG))
}

func (t *Theme) Accent() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleAccent))
}

func (t *Theme) Muted() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleMuted))
}

func (t *Theme) Active() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleActive))
}

func (t *Theme) Cursor() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleCursor))
}

func (t *Theme) Warning() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleWarning))
}

func (t *Theme) Success() lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(RoleSuccess))
}

// Color returns lipgloss color for any normalized value 0-1
func (t *Theme) Color(norm float64) lipgloss.Color {
	return rgbToLipgloss(t.Palette.Lookup(norm))
}

// RGB returns raw RGB for any normalized value
func (t *Theme) RGB(norm float64) RGB {
	return t.Palette.Lookup(norm)
}

// DirectionRGB is the color tag of a bellows direction: blue push, red pull
func (t *Theme) DirectionRGB(d catalog.Direction) RGB {
	if d == catalog.Push {
		return PushRGB
	}
	return PullRGB
}

// TagRGB maps an active note's color tag
func (t *Theme) TagRGB(tag string) RGB {
	if tag == catalog.Push.ColorTag() {
		return PushRGB
	}
	return PullRGB
}

func (t *Theme) Direction(d catalog.Direction) lipgloss.Color {
	return rgbToLipgloss(t.DirectionRGB(d))
}

func (t *Theme) Tier(tier sequencer.Tier) lipgloss.Color {
	if c, ok := tierRGB[tier]; ok {
		return rgbToLipgloss(c)
	}
	return t.FG()
}

func rgbToLipgloss(c RGB) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", c[0], c[1], c[2]))
}
