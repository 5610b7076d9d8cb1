package render

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/lucasb-eyer/go-colorful"

	"termbridge/internal/term"
)

// Default console theme. An empty background leaves the host terminal's
// own background visible.
var (
	DefaultForeground = "#e2e8f0"
	DefaultBackground = ""
	DefaultCursor     = "#D4AF37"
	DefaultANSI       = [16]string{
		"#0f172a", "#ef4444", "#22c55e", "#eab308",
		"#3b82f6", "#d946ef", "#06b6d4", "#f8fafc",
		"#64748b", "#f87171", "#4ade80", "#facc15",
		"#60a5fa", "#f472b6", "#22d3ee", "#ffffff",
	}
)

// Palette maps cell colours to concrete RGB values.
type Palette struct {
	Foreground  colorful.Color
	Background  colorful.Color
	Cursor      colorful.Color
	ANSI        [16]colorful.Color
	Transparent bool
}

func DefaultPalette() Palette {
	p, err := ParsePalette(DefaultForeground, DefaultBackground, DefaultCursor, DefaultANSI[:])
	if err != nil {
		panic(err)
	}
	return p
}

// ParsePalette parses hex colours. A background of "" or "transparent"
// keeps the host background. Missing ANSI entries keep the defaults.
func ParsePalette(fg, bg, cursor string, ansi []string) (Palette, error) {
	var p Palette
	var err error
	if p.Foreground, err = parseHex("foreground", fg, DefaultForeground); err != nil {
		return Palette{}, err
	}
	if p.Cursor, err = parseHex("cursor", cursor, DefaultCursor); err != nil {
		return Palette{}, err
	}
	switch strings.ToLower(strings.TrimSpace(bg)) {
	case "", "transparent":
		p.Transparent = true
	default:
		if p.Background, err = colorful.Hex(strings.TrimSpace(bg)); err != nil {
			return Palette{}, fmt.Errorf("palette background %q: %w", bg, err)
		}
	}
	if len(ansi) > len(p.ANSI) {
		return Palette{}, fmt.Errorf("palette has %d ansi colours, want at most %d", len(ansi), len(p.ANSI))
	}
	for i := range p.ANSI {
		v := ""
		if i < len(ansi) {
			v = ansi[i]
		}
		if p.ANSI[i], err = parseHex(fmt.Sprintf("ansi[%d]", i), v, DefaultANSI[i]); err != nil {
			return Palette{}, err
		}
	}
	return p, nil
}

func parseHex(name, v, def string) (colorful.Color, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		v = def
	}
	c, err := colorful.Hex(v)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("palette %s %q: %w", name, v, err)
	}
	return c, nil
}

// Resolve returns the concrete colour of c. ok is false for the default
// background of a transparent palette.
func (p Palette) Resolve(c term.Color, fg bool) (colorful.Color, bool) {
	if c.IsDefault() {
		if fg {
			return p.Foreground, true
		}
		return p.Background, !p.Transparent
	}
	if i, ok := c.Index(); ok {
		if i < len(p.ANSI) {
			return p.ANSI[i], true
		}
		return xterm256(i), true
	}
	r, g, b, _ := c.RGB()
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}, true
}

func (p Palette) tcellColor(c term.Color, fg bool) tcell.Color {
	col, ok := p.Resolve(c, fg)
	if !ok {
		return tcell.ColorDefault
	}
	r, g, b := col.RGB255()
	return tcell.NewRGBColor(int32(r), int32(g), int32(b))
}

// sgrColor returns the truecolour SGR parameters for c.
func (p Palette) sgrColor(c term.Color, fg bool) string {
	col, ok := p.Resolve(c, fg)
	if !ok {
		return "49"
	}
	r, g, b := col.RGB255()
	if fg {
		return fmt.Sprintf("38;2;%d;%d;%d", r, g, b)
	}
	return fmt.Sprintf("48;2;%d;%d;%d", r, g, b)
}

var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

func xterm256(i int) colorful.Color {
	var r, g, b uint8
	switch {
	case i >= 232:
		v := uint8(8 + 10*(i-232))
		r, g, b = v, v, v
	default:
		i -= 16
		r, g, b = cubeLevels[i/36], cubeLevels[(i/6)%6], cubeLevels[i%6]
	}
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}
