package render

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/mattn/go-runewidth"

	"termbridge/internal/term"
)

// CanvasBackend is the software fallback. It rasterises each row to an
// SGR-styled string and rewrites only the rows that changed since the
// previous frame. It needs nothing but a byte sink.
type CanvasBackend struct {
	mu      sync.Mutex
	w       io.Writer
	palette Palette
	metrics CellMetrics

	mounted  bool
	disposed bool
	drawn    bool
	cols     int
	rows     int
	prev     []string
	version  uint64
	cursor   term.Cursor
}

type CanvasOption func(*CanvasBackend)

func WithCanvasPalette(p Palette) CanvasOption {
	return func(b *CanvasBackend) { b.palette = p }
}

func WithCanvasMetrics(m CellMetrics) CanvasOption {
	return func(b *CanvasBackend) {
		if m.Valid() {
			b.metrics = m
		}
	}
}

func NewCanvasBackend(w io.Writer, opts ...CanvasOption) *CanvasBackend {
	if w == nil {
		w = io.Discard
	}
	b := &CanvasBackend{
		w:       w,
		palette: DefaultPalette(),
		metrics: unitMetrics,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *CanvasBackend) Kind() Kind { return KindCanvas }

func (b *CanvasBackend) Metrics() CellMetrics { return b.metrics }

func (b *CanvasBackend) Mount() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return ErrNotMounted
	}
	b.mounted = true
	return nil
}

func (b *CanvasBackend) Draw(snap term.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.mounted {
		return ErrNotMounted
	}
	if b.drawn && snap.Version == b.version && snap.Cursor == b.cursor {
		return nil
	}

	var buf bytes.Buffer
	full := !b.drawn || snap.Cols != b.cols || snap.Rows != b.rows
	if full {
		buf.WriteString("\x1b[0m\x1b[H\x1b[2J")
		b.prev = make([]string, snap.Rows)
	}
	for y := 0; y < snap.Rows && y < len(snap.Cells); y++ {
		line := b.renderRow(snap.Cells[y])
		if !full && line == b.prev[y] {
			continue
		}
		fmt.Fprintf(&buf, "\x1b[%d;1H%s\x1b[0m\x1b[K", y+1, line)
		b.prev[y] = line
	}
	if buf.Len() > 0 || snap.Cursor != b.cursor {
		if snap.Cursor.Visible {
			fmt.Fprintf(&buf, "\x1b[%d;%dH\x1b[?25h", snap.Cursor.Row+1, snap.Cursor.Col+1)
		} else {
			buf.WriteString("\x1b[?25l")
		}
	}

	b.drawn = true
	b.cols, b.rows = snap.Cols, snap.Rows
	b.version = snap.Version
	b.cursor = snap.Cursor
	if buf.Len() == 0 {
		return nil
	}
	_, err := b.w.Write(buf.Bytes())
	return err
}

// Dispose resets attributes and shows the cursor again.
func (b *CanvasBackend) Dispose() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return nil
	}
	b.disposed = true
	if !b.drawn {
		return nil
	}
	_, err := io.WriteString(b.w, "\x1b[0m\x1b[?25h\r\n")
	return err
}

// renderRow emits a row as SGR runs. The grid stores a wide glyph in a
// single cell, so the blank cells after it absorb its second column and
// anything past the row width is cut off.
func (b *CanvasBackend) renderRow(cells []term.Cell) string {
	var out strings.Builder
	var cur string
	col, debt := 0, 0
	for _, c := range cells {
		if col >= len(cells) {
			break
		}
		ch := c.Glyph
		if debt > 0 && (ch == ' ' || ch == 0) {
			debt--
			continue
		}
		w := runewidth.RuneWidth(ch)
		switch {
		case w == 0:
			ch, w = ' ', 1
		case w == 2 && col+2 > len(cells):
			ch, w = ' ', 1
		}
		if sgr := b.sgr(c); sgr != cur {
			out.WriteString(sgr)
			cur = sgr
		}
		out.WriteRune(ch)
		col += w
		debt += w - 1
	}
	return out.String()
}

func (b *CanvasBackend) sgr(c term.Cell) string {
	codes := []string{"0"}
	if c.Has(term.AttrBold) {
		codes = append(codes, "1")
	}
	if c.Has(term.AttrItalic) {
		codes = append(codes, "3")
	}
	if c.Has(term.AttrUnderline) {
		codes = append(codes, "4")
	}
	if c.Has(term.AttrBlink) {
		codes = append(codes, "5")
	}
	if c.Has(term.AttrInverse) {
		codes = append(codes, "7")
	}
	codes = append(codes, b.palette.sgrColor(c.FG, true), b.palette.sgrColor(c.BG, false))
	return "\x1b[" + strings.Join(codes, ";") + "m"
}
