package render

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/x/ansi"

	"termbridge/internal/term"
)

func feed(s *term.Screen, data string) {
	term.NewInterpreter(s).Feed([]byte(data))
}

func TestCanvasFirstDrawWritesAllRows(t *testing.T) {
	var out bytes.Buffer
	b := NewCanvasBackend(&out)
	if err := b.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	s := term.NewScreen(10, 3)
	feed(s, "hi\r\nthere")

	if err := b.Draw(s.Snapshot()); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	got := out.String()
	for row := 1; row <= 3; row++ {
		if want := "\x1b[" + string(rune('0'+row)) + ";1H"; !strings.Contains(got, want) {
			t.Fatalf("expected row %d to be addressed, output %q", row, got)
		}
	}
	plain := ansi.Strip(got)
	if !strings.Contains(plain, "hi") || !strings.Contains(plain, "there") {
		t.Fatalf("expected text in output, got %q", plain)
	}
}

func TestCanvasUnchangedSnapshotWritesNothing(t *testing.T) {
	var out bytes.Buffer
	b := NewCanvasBackend(&out)
	_ = b.Mount()
	s := term.NewScreen(10, 3)
	feed(s, "hello")

	snap := s.Snapshot()
	if err := b.Draw(snap); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	out.Reset()
	if err := b.Draw(snap); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("expected zero bytes for an unchanged frame, got %q", out.String())
	}
}

func TestCanvasRewritesOnlyChangedRows(t *testing.T) {
	var out bytes.Buffer
	b := NewCanvasBackend(&out)
	_ = b.Mount()
	s := term.NewScreen(10, 3)
	in := term.NewInterpreter(s)
	in.Feed([]byte("one\r\ntwo"))
	_ = b.Draw(s.Snapshot())

	out.Reset()
	in.Feed([]byte("\x1b[3;1Hthree"))
	if err := b.Draw(s.Snapshot()); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	got := out.String()
	if strings.Contains(got, "\x1b[1;1H") || strings.Contains(got, "\x1b[2;1H") {
		t.Fatalf("unchanged rows were rewritten: %q", got)
	}
	if !strings.Contains(got, "\x1b[3;1H") || !strings.Contains(ansi.Strip(got), "three") {
		t.Fatalf("changed row missing: %q", got)
	}
}

func TestCanvasGeometryChangeRedrawsEverything(t *testing.T) {
	var out bytes.Buffer
	b := NewCanvasBackend(&out)
	_ = b.Mount()
	s := term.NewScreen(10, 2)
	feed(s, "x")
	_ = b.Draw(s.Snapshot())

	out.Reset()
	if err := s.Resize(12, 2); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	_ = b.Draw(s.Snapshot())
	if got := out.String(); !strings.Contains(got, "\x1b[2J") || !strings.Contains(got, "\x1b[1;1H") {
		t.Fatalf("expected a full redraw, got %q", got)
	}
}

func TestCanvasUsesPaletteTruecolor(t *testing.T) {
	var out bytes.Buffer
	b := NewCanvasBackend(&out)
	_ = b.Mount()
	s := term.NewScreen(10, 1)
	feed(s, "\x1b[31mR")

	_ = b.Draw(s.Snapshot())
	// ANSI red of the default palette is #ef4444.
	if got := out.String(); !strings.Contains(got, "38;2;239;68;68") {
		t.Fatalf("expected palette red, got %q", got)
	}
}

func TestCanvasRowKeepsColumnsWithWideGlyphs(t *testing.T) {
	glyphs := func(rs ...rune) []term.Cell {
		cells := make([]term.Cell, len(rs))
		for i, r := range rs {
			cells[i] = term.Cell{Glyph: r, FG: term.ColorDefault, BG: term.ColorDefault}
		}
		return cells
	}
	tests := []struct {
		name  string
		cells []term.Cell
		want  string
	}{
		{name: "blank after wide glyph", cells: glyphs('世', ' ', 'a', '界'), want: "世a "},
		{name: "text right after wide glyph", cells: glyphs('中', 'a', ' ', ' '), want: "中a "},
		{name: "two wide glyphs", cells: glyphs('中', '文', 'x', ' ', ' ', ' '), want: "中文x "},
		{name: "wide glyph in last column", cells: glyphs('a', 'b', '中'), want: "ab "},
		{name: "narrow only", cells: glyphs('a', 'b', 'c'), want: "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewCanvasBackend(nil)
			row := b.renderRow(tt.cells)
			if got := ansi.Strip(row); got != tt.want {
				t.Fatalf("row = %q, want %q", got, tt.want)
			}
			if w := ansi.StringWidth(row); w != len(tt.cells) {
				t.Fatalf("row width = %d, want %d (%q)", w, len(tt.cells), row)
			}
		})
	}
}

func TestCanvasDrawBeforeMount(t *testing.T) {
	b := NewCanvasBackend(nil)
	if err := b.Draw(term.Snapshot{}); err != ErrNotMounted {
		t.Fatalf("Draw before Mount = %v, want ErrNotMounted", err)
	}
}
