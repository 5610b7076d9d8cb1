package term

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hinshun/vt10x"
)

// Attr is a bit set of cell rendering attributes.
type Attr uint8

const (
	AttrBold Attr = 1 << iota
	AttrUnderline
	AttrInverse
	AttrItalic
	AttrBlink
)

// Color is a cell colour: ColorDefault, a palette index in [0,256), or a
// 24-bit RGB value. The engine stores direct colours without a tag, so an
// RGB value below 256 reads back as a palette index.
type Color uint32

const (
	ColorDefault Color = 1 << 31
	colorRGB     Color = 1 << 24
)

func PaletteColor(i int) Color {
	if i < 0 || i > 255 {
		return ColorDefault
	}
	return Color(i)
}

func RGBColor(r, g, b uint8) Color {
	return colorRGB | Color(r)<<16 | Color(g)<<8 | Color(b)
}

func (c Color) IsDefault() bool { return c == ColorDefault }

// Index returns the palette index when c is an indexed colour.
func (c Color) Index() (int, bool) {
	if c < 256 {
		return int(c), true
	}
	return 0, false
}

// RGB returns the channel values when c is a direct colour.
func (c Color) RGB() (r, g, b uint8, ok bool) {
	if c == ColorDefault || c&colorRGB == 0 {
		return 0, 0, 0, false
	}
	return uint8(c >> 16), uint8(c >> 8), uint8(c), true
}

// Cell is one character position of the grid.
type Cell struct {
	Glyph rune
	FG    Color
	BG    Color
	Attrs Attr
}

func (c Cell) Has(a Attr) bool { return c.Attrs&a != 0 }

// BlankCell is the cell used to pad grown geometry.
var BlankCell = Cell{Glyph: ' ', FG: ColorDefault, BG: ColorDefault}

// Cursor is the clamped cursor position of a snapshot.
type Cursor struct {
	Row     int
	Col     int
	Visible bool
}

// Line is one row of cells, used for scrollback history.
type Line []Cell

// String returns the glyphs of the line with trailing blanks removed.
func (l Line) String() string {
	var b strings.Builder
	for _, c := range l {
		b.WriteRune(c.Glyph)
	}
	return strings.TrimRight(b.String(), " ")
}

// Snapshot is an immutable copy of the screen taken under the model lock.
// Renderers only ever see snapshots, never the live grid.
type Snapshot struct {
	Cols          int
	Rows          int
	Cells         [][]Cell
	Cursor        Cursor
	Version       uint64
	AltScreen     bool
	Title         string
	ScrollbackLen int
}

// Row returns the text of row y with trailing blanks removed.
func (s Snapshot) Row(y int) string {
	if y < 0 || y >= len(s.Cells) {
		return ""
	}
	return Line(s.Cells[y]).String()
}

// Text returns all rows joined by newlines.
func (s Snapshot) Text() string {
	rows := make([]string, len(s.Cells))
	for y := range s.Cells {
		rows[y] = s.Row(y)
	}
	return strings.Join(rows, "\n")
}

// Mode bits of vt10x glyphs (mirrors the engine's unexported constants).
const (
	vtAttrReverse   int16 = 1 << 0
	vtAttrUnderline int16 = 1 << 1
	vtAttrBold      int16 = 1 << 2
	vtAttrItalic    int16 = 1 << 4
	vtAttrBlink     int16 = 1 << 5
)

// Cursor state bit set by vt10x when the next printable wraps.
const vtCursorWrapNext uint8 = 1 << 1

func cellFromGlyph(g vt10x.Glyph) Cell {
	fg, bg := g.FG, g.BG
	c := Cell{Glyph: sanitizeGlyphRune(g.Char)}
	if g.Mode&vtAttrReverse != 0 {
		// The engine stores reversed cells with their colours already swapped.
		fg, bg = bg, fg
		c.Attrs |= AttrInverse
	}
	c.FG, c.BG = colorFromVT(fg), colorFromVT(bg)
	if g.Mode&vtAttrBold != 0 {
		c.Attrs |= AttrBold
	}
	if g.Mode&vtAttrUnderline != 0 {
		c.Attrs |= AttrUnderline
	}
	if g.Mode&vtAttrItalic != 0 {
		c.Attrs |= AttrItalic
	}
	if g.Mode&vtAttrBlink != 0 {
		c.Attrs |= AttrBlink
	}
	return c
}

func colorFromVT(c vt10x.Color) Color {
	switch c {
	case vt10x.DefaultFG, vt10x.DefaultBG, vt10x.DefaultCursor:
		return ColorDefault
	}
	if c < 256 {
		return Color(c)
	}
	return colorRGB | Color(c&0xffffff)
}

func sanitizeGlyphRune(ch rune) rune {
	if ch == 0 || ch == utf8.RuneError || !utf8.ValidRune(ch) {
		return ' '
	}
	if ch < 0x20 || ch == 0x7f {
		return ' '
	}
	if unicode.IsControl(ch) {
		return ' '
	}
	return ch
}
