package render

import (
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"termbridge/internal/term"
)

// ScreenProvider creates the tcell screen a ScreenBackend draws on.
type ScreenProvider func() (tcell.Screen, error)

// ScreenBackend is the accelerated backend. tcell keeps a back buffer and
// only flushes cells that changed since the last Show.
type ScreenBackend struct {
	mu       sync.Mutex
	provider ScreenProvider
	palette  Palette
	metrics  CellMetrics

	screen      tcell.Screen
	disposed    bool
	drawn       bool
	lastVersion uint64
	status      string
	statusDirty bool
}

type ScreenOption func(*ScreenBackend)

func WithScreenProvider(p ScreenProvider) ScreenOption {
	return func(b *ScreenBackend) {
		if p != nil {
			b.provider = p
		}
	}
}

func WithScreenPalette(p Palette) ScreenOption {
	return func(b *ScreenBackend) { b.palette = p }
}

func WithScreenMetrics(m CellMetrics) ScreenOption {
	return func(b *ScreenBackend) {
		if m.Valid() {
			b.metrics = m
		}
	}
}

func NewScreenBackend(opts ...ScreenOption) *ScreenBackend {
	b := &ScreenBackend{
		provider: tcell.NewScreen,
		palette:  DefaultPalette(),
		metrics:  unitMetrics,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *ScreenBackend) Kind() Kind { return KindScreen }

func (b *ScreenBackend) Metrics() CellMetrics { return b.metrics }

// Mount creates and initialises the screen. It fails when no usable
// terminal is attached.
func (b *ScreenBackend) Mount() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return ErrNotMounted
	}
	if b.screen != nil {
		return nil
	}
	s, err := b.provider()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	s.EnablePaste()
	r, g, bl := b.palette.Cursor.RGB255()
	s.SetCursorStyle(tcell.CursorStyleBlinkingBlock, tcell.NewRGBColor(int32(r), int32(g), int32(bl)))
	s.Clear()
	b.screen = s
	return nil
}

// Screen returns the mounted tcell screen, or nil.
func (b *ScreenBackend) Screen() tcell.Screen {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.screen
}

// SetStatus sets a line drawn on the bottom row of the screen, below the
// terminal grid. An empty status draws nothing.
func (b *ScreenBackend) SetStatus(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if text != b.status {
		b.status = text
		b.statusDirty = true
	}
}

func (b *ScreenBackend) Draw(snap term.Snapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.screen == nil {
		return ErrNotMounted
	}
	if b.drawn && snap.Version == b.lastVersion && !b.statusDirty {
		return nil
	}

	s := b.screen
	width, height := s.Size()
	gridH := height
	if b.status != "" && gridH > 0 {
		gridH--
	}

	for row := 0; row < gridH; row++ {
		for col := 0; col < width; col++ {
			cell := term.BlankCell
			if row < snap.Rows && col < snap.Cols && row < len(snap.Cells) && col < len(snap.Cells[row]) {
				cell = snap.Cells[row][col]
			}
			s.SetContent(col, row, cell.Glyph, nil, b.style(cell))
		}
	}
	if gridH < height {
		drawStatus(s, gridH, width, b.status)
	}

	cur := snap.Cursor
	if cur.Visible && cur.Row < gridH && cur.Col < width {
		s.ShowCursor(cur.Col, cur.Row)
	} else {
		s.HideCursor()
	}
	s.Show()

	b.drawn = true
	b.lastVersion = snap.Version
	b.statusDirty = false
	return nil
}

// Dispose restores the terminal. It is safe to call more than once.
func (b *ScreenBackend) Dispose() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return nil
	}
	b.disposed = true
	if b.screen != nil {
		b.screen.Fini()
		b.screen = nil
	}
	return nil
}

func (b *ScreenBackend) style(c term.Cell) tcell.Style {
	return tcell.StyleDefault.
		Foreground(b.palette.tcellColor(c.FG, true)).
		Background(b.palette.tcellColor(c.BG, false)).
		Bold(c.Has(term.AttrBold)).
		Underline(c.Has(term.AttrUnderline)).
		Reverse(c.Has(term.AttrInverse)).
		Italic(c.Has(term.AttrItalic)).
		Blink(c.Has(term.AttrBlink))
}

func drawStatus(s tcell.Screen, y, width int, text string) {
	style := tcell.StyleDefault.Reverse(true)
	col := 0
	for _, r := range text {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if col+w > width {
			break
		}
		s.SetContent(col, y, r, nil, style)
		col += w
	}
	for ; col < width; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}
