package term

import (
	"errors"
	"math/rand"
	"testing"
)

func TestNewScreenFallsBackToDefaultGeometry(t *testing.T) {
	s := NewScreen(0, -1)
	cols, rows := s.Size()
	if cols != DefaultCols || rows != DefaultRows {
		t.Fatalf("got %dx%d, want %dx%d", cols, rows, DefaultCols, DefaultRows)
	}
}

func TestScreenResizeRejectsInvalidGeometry(t *testing.T) {
	s := NewScreen(80, 24)
	NewInterpreter(s).Feed([]byte("abc"))

	for _, tc := range []struct{ cols, rows int }{{0, 5}, {5, 0}, {-1, -1}} {
		err := s.Resize(tc.cols, tc.rows)
		if !errors.Is(err, ErrInvalidGeometry) {
			t.Fatalf("Resize(%d, %d) = %v, want ErrInvalidGeometry", tc.cols, tc.rows, err)
		}
		var ge *GeometryError
		if !errors.As(err, &ge) || ge.Cols != tc.cols || ge.Rows != tc.rows {
			t.Fatalf("expected GeometryError carrying %dx%d, got %#v", tc.cols, tc.rows, err)
		}
		if cols, rows := s.Size(); cols != 80 || rows != 24 {
			t.Fatalf("geometry changed to %dx%d after rejected resize", cols, rows)
		}
	}
	if got := s.Snapshot().Row(0); got != "abc" {
		t.Fatalf("content changed after rejected resize: %q", got)
	}
}

func TestScreenResizeKeepsCursorInBounds(t *testing.T) {
	s := NewScreen(80, 24)
	in := NewInterpreter(s)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		cols, rows := 1+rng.Intn(150), 1+rng.Intn(60)
		if err := s.Resize(cols, rows); err != nil {
			t.Fatalf("Resize(%d, %d): %v", cols, rows, err)
		}
		if i%3 == 0 {
			in.Feed([]byte("some output that may wrap around the edge\r\n\x1b[999;999H"))
		}
		cur := s.Cursor()
		if cur.Row < 0 || cur.Row >= rows || cur.Col < 0 || cur.Col >= cols {
			t.Fatalf("cursor %+v out of bounds for %dx%d", cur, cols, rows)
		}
		snap := s.Snapshot()
		if snap.Cols != cols || snap.Rows != rows || len(snap.Cells) != rows || len(snap.Cells[0]) != cols {
			t.Fatalf("snapshot geometry %dx%d does not match %dx%d", snap.Cols, snap.Rows, cols, rows)
		}
	}
}

func TestScreenResizeSameSizeIsNoop(t *testing.T) {
	s := NewScreen(10, 4)
	v := s.Version()
	if err := s.Resize(10, 4); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if s.Version() != v {
		t.Fatalf("expected version to stay at %d, got %d", v, s.Version())
	}
}

func TestScreenResizeShrinkPushesRowsIntoScrollback(t *testing.T) {
	s := NewScreen(10, 5)
	in := NewInterpreter(s)
	in.Feed([]byte("1\r\n2\r\n3\r\n4\r\n5"))

	if err := s.Resize(10, 2); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	snap := s.Snapshot()
	if snap.Row(0) != "4" || snap.Row(1) != "5" {
		t.Fatalf("unexpected rows after shrink: %q", snap.Text())
	}
	got := lineStrings(s.Scrollback())
	want := []string{"1", "2", "3"}
	if !equalStrings(got, want) {
		t.Fatalf("scrollback = %q, want %q", got, want)
	}
}

func TestScreenResizeTruncatesAndPads(t *testing.T) {
	s := NewScreen(10, 2)
	NewInterpreter(s).Feed([]byte("abcdefgh"))

	if err := s.Resize(4, 2); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if got := s.Snapshot().Row(0); got != "abcd" {
		t.Fatalf("row after shrink = %q, want %q", got, "abcd")
	}
	if err := s.Resize(12, 3); err != nil {
		t.Fatalf("Resize: %v", err)
	}
	snap := s.Snapshot()
	if len(snap.Cells[2]) != 12 || snap.Cells[2][11].Glyph != ' ' {
		t.Fatalf("expected blank padded row, got %q", snap.Row(2))
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	s := NewScreen(10, 2)
	NewInterpreter(s).Feed([]byte("hi"))

	snap := s.Snapshot()
	snap.Cells[0][0].Glyph = 'X'
	if got := s.Snapshot().Row(0); got != "hi" {
		t.Fatalf("mutating a snapshot changed the model: %q", got)
	}
}

func TestScrollbackCapacityEvictsOldest(t *testing.T) {
	s := NewScreen(10, 2, WithScrollback(2))
	NewInterpreter(s).Feed([]byte("a\r\nb\r\nc\r\nd\r\ne"))

	got := lineStrings(s.Scrollback())
	want := []string{"b", "c"}
	if !equalStrings(got, want) {
		t.Fatalf("scrollback = %q, want %q", got, want)
	}
}

func TestScrollbackText(t *testing.T) {
	s := NewScreen(10, 2)
	NewInterpreter(s).Feed([]byte("one\r\n\x1b[1mtwo\x1b[0m\r\nthree"))

	want := "one\ntwo\nthree"
	if got := s.ScrollbackText(); got != want {
		t.Fatalf("ScrollbackText() = %q, want %q", got, want)
	}
}

func lineStrings(lines []Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.String()
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
