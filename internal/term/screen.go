package term

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/x/ansi"
	"github.com/hinshun/vt10x"
)

const (
	DefaultCols       = 80
	DefaultRows       = 24
	DefaultScrollback = 1000

	modeTailMaxLen = 64
)

var ErrInvalidGeometry = errors.New("invalid geometry")

// GeometryError reports a rejected resize.
type GeometryError struct {
	Cols int
	Rows int
}

func (e *GeometryError) Error() string {
	return fmt.Sprintf("invalid geometry %dx%d", e.Cols, e.Rows)
}

func (e *GeometryError) Unwrap() error { return ErrInvalidGeometry }

type ScreenOption func(*Screen)

// WithScrollback sets the scrollback capacity in rows. Zero disables history.
func WithScrollback(n int) ScreenOption {
	return func(s *Screen) {
		if n >= 0 {
			s.scrollbackMax = n
		}
	}
}

// WithReplyWriter routes terminal replies (device attributes, status
// reports) produced by the engine.
func WithReplyWriter(w io.Writer) ScreenOption {
	return func(s *Screen) {
		if w != nil {
			s.reply = w
		}
	}
}

// Screen is the grid of cells, cursor and scrollback history. It is only
// mutated through an Interpreter; everything else reads snapshots.
type Screen struct {
	mu sync.Mutex

	vt    vt10x.Terminal
	reply io.Writer
	cols  int
	rows  int

	scrollback    []Line
	scrollbackMax int

	// Mirror of the engine's DECSTBM region, zero-based and inclusive.
	scrollTop    int
	scrollBottom int

	version   uint64
	malformed int

	modeTail       string
	bracketedPaste bool
}

func NewScreen(cols, rows int, opts ...ScreenOption) *Screen {
	if cols < 1 || rows < 1 {
		cols, rows = DefaultCols, DefaultRows
	}
	s := &Screen{
		reply:         io.Discard,
		cols:          cols,
		rows:          rows,
		scrollbackMax: DefaultScrollback,
		scrollBottom:  rows - 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.vt = vt10x.New(vt10x.WithWriter(replyGuard{s.reply}), vt10x.WithSize(cols, rows))
	return s
}

// replyGuard keeps a failing reply writer from aborting the engine's parse.
type replyGuard struct{ w io.Writer }

func (g replyGuard) Write(p []byte) (int, error) {
	_, _ = g.w.Write(p)
	return len(p), nil
}

func (s *Screen) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// Resize changes the geometry. Rows that would slide off the top because
// the cursor sits below the new bottom are kept in scrollback.
func (s *Screen) Resize(cols, rows int) error {
	if cols < 1 || rows < 1 {
		return &GeometryError{Cols: cols, Rows: rows}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cols == s.cols && rows == s.rows {
		return nil
	}

	s.vt.Lock()
	cur := s.vt.Cursor()
	alt := s.vt.Mode()&vt10x.ModeAltScreen != 0
	if slide := cur.Y - rows + 1; slide > 0 && !alt {
		for y := 0; y < slide && y < s.rows; y++ {
			s.pushScrollbackLocked(s.rowLocked(y, s.cols))
		}
	}
	s.vt.Unlock()

	s.vt.Resize(cols, rows)
	s.cols, s.rows = cols, rows
	s.scrollTop, s.scrollBottom = 0, rows-1
	s.version++
	return nil
}

func (s *Screen) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vt.Lock()
	defer s.vt.Unlock()

	snap := Snapshot{
		Cols:          s.cols,
		Rows:          s.rows,
		Cells:         make([][]Cell, s.rows),
		Version:       s.version,
		AltScreen:     s.vt.Mode()&vt10x.ModeAltScreen != 0,
		Title:         s.vt.Title(),
		ScrollbackLen: len(s.scrollback),
	}
	for y := range s.rows {
		snap.Cells[y] = s.rowLocked(y, s.cols)
	}
	snap.Cursor = s.cursorLocked()
	return snap
}

func (s *Screen) Cursor() Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vt.Lock()
	defer s.vt.Unlock()
	return s.cursorLocked()
}

// Scrollback returns a copy of the history, oldest first.
func (s *Screen) Scrollback() []Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Line, len(s.scrollback))
	for i, line := range s.scrollback {
		out[i] = append(Line(nil), line...)
	}
	return out
}

// ScrollbackText exports the history followed by the visible rows as plain text.
func (s *Screen) ScrollbackText() string {
	lines := s.Scrollback()
	snap := s.Snapshot()
	var b strings.Builder
	for _, line := range lines {
		b.WriteString(ansi.Strip(line.String()))
		b.WriteByte('\n')
	}
	for y := range snap.Cells {
		b.WriteString(ansi.Strip(snap.Row(y)))
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Screen) BracketedPasteEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bracketedPaste
}

func (s *Screen) AppCursorKeys() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vt.Lock()
	defer s.vt.Unlock()
	return s.vt.Mode()&vt10x.ModeAppCursor != 0
}

// Version increases on every applied change.
func (s *Screen) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// The methods below require s.mu.

// writeLocked feeds p to the engine. A panic inside the engine is
// recovered and returned so the rest of the stream still renders.
func (s *Screen) writeLocked(p []byte) (recovered any) {
	if len(p) == 0 {
		return nil
	}
	s.version++
	defer func() {
		if r := recover(); r != nil {
			s.malformed++
			recovered = r
		}
	}()
	_, _ = s.vt.Write(p)
	return nil
}

// cursorStateLocked reports the cursor row, whether the next printable
// wraps, and whether autowrap is on.
func (s *Screen) cursorStateLocked() (row, col int, wrapNext, autowrap bool) {
	s.vt.Lock()
	defer s.vt.Unlock()
	cur := s.vt.Cursor()
	return cur.Y, cur.X, cur.State&vtCursorWrapNext != 0, s.vt.Mode()&vt10x.ModeWrap != 0
}

// captureTopLocked copies the top n rows into scrollback. It does nothing
// on the alternate screen, which has no history.
func (s *Screen) captureTopLocked(n int) {
	if s.scrollbackMax == 0 || n < 1 {
		return
	}
	s.vt.Lock()
	defer s.vt.Unlock()
	if s.vt.Mode()&vt10x.ModeAltScreen != 0 {
		return
	}
	for y := 0; y < n && y < s.rows; y++ {
		s.pushScrollbackLocked(s.rowLocked(y, s.cols))
	}
}

// scrollsOffTopLocked reports whether a line feed on row would push the
// top row off the screen.
func (s *Screen) scrollsOffTopLocked(row int) bool {
	return s.scrollTop == 0 && row == s.scrollBottom
}

// setScrollRegionLocked follows a "CSI top;bottom r" with one-based
// arguments, defaulting to the full screen.
func (s *Screen) setScrollRegionLocked(args []int) {
	top, bottom := 1, s.rows
	if len(args) > 0 {
		top = args[0]
	}
	if len(args) > 1 {
		bottom = args[1]
	}
	top = clamp(top-1, 0, s.rows-1)
	bottom = clamp(bottom-1, 0, s.rows-1)
	if top > bottom {
		top, bottom = bottom, top
	}
	s.scrollTop, s.scrollBottom = top, bottom
}

func (s *Screen) pushScrollbackLocked(line Line) {
	if s.scrollbackMax == 0 {
		return
	}
	s.scrollback = append(s.scrollback, line)
	if over := len(s.scrollback) - s.scrollbackMax; over > 0 {
		s.scrollback = s.scrollback[over:]
	}
}

// updateModesLocked tracks bracketed paste across chunk boundaries.
func (s *Screen) updateModesLocked(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	data := s.modeTail + string(chunk)
	enable := strings.LastIndex(data, "\x1b[?2004h")
	disable := strings.LastIndex(data, "\x1b[?2004l")
	if enable >= 0 || disable >= 0 {
		s.bracketedPaste = enable > disable
	}
	if len(data) > modeTailMaxLen {
		data = data[len(data)-modeTailMaxLen:]
	}
	s.modeTail = data
}

func (s *Screen) resetModesLocked() {
	s.modeTail = ""
	s.bracketedPaste = false
}

// rowLocked copies row y; requires the engine lock as well.
func (s *Screen) rowLocked(y, cols int) Line {
	line := make(Line, cols)
	for x := range cols {
		g, ok := safeCell(s.vt, x, y)
		if !ok {
			line[x] = BlankCell
			continue
		}
		line[x] = cellFromGlyph(g)
	}
	return line
}

// cursorLocked requires the engine lock as well.
func (s *Screen) cursorLocked() Cursor {
	cur := s.vt.Cursor()
	return Cursor{
		Row:     clamp(cur.Y, 0, s.rows-1),
		Col:     clamp(cur.X, 0, s.cols-1),
		Visible: s.vt.CursorVisible(),
	}
}

func safeCell(vt vt10x.Terminal, x, y int) (g vt10x.Glyph, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	return vt.Cell(x, y), true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
