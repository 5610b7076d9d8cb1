package render

import (
	"errors"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"

	"termbridge/internal/term"
)

func newSimBackend(t *testing.T, w, h int) (*ScreenBackend, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	b := NewScreenBackend(WithScreenProvider(func() (tcell.Screen, error) { return sim, nil }))
	if err := b.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	sim.SetSize(w, h)
	t.Cleanup(func() { _ = b.Dispose() })
	return b, sim
}

func readLine(s tcell.SimulationScreen, x, y, w int) string {
	var b strings.Builder
	for i := 0; i < w; i++ {
		r, _, _, _ := s.GetContent(x+i, y)
		if r == 0 {
			r = ' '
		}
		b.WriteRune(r)
	}
	return b.String()
}

func TestScreenBackendDrawsGrid(t *testing.T) {
	b, sim := newSimBackend(t, 20, 4)
	s := term.NewScreen(20, 4)
	feed(s, "hello\r\n\x1b[1mworld")

	if err := b.Draw(s.Snapshot()); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if got := strings.TrimRight(readLine(sim, 0, 0, 20), " "); got != "hello" {
		t.Fatalf("row 0 = %q", got)
	}
	if got := strings.TrimRight(readLine(sim, 0, 1, 20), " "); got != "world" {
		t.Fatalf("row 1 = %q", got)
	}
	_, _, style, _ := sim.GetContent(0, 1)
	if _, _, attrs := style.Decompose(); attrs&tcell.AttrBold == 0 {
		t.Fatalf("expected bold cell")
	}
}

func TestScreenBackendClipsOversizedGrid(t *testing.T) {
	b, _ := newSimBackend(t, 10, 3)
	s := term.NewScreen(80, 24)
	feed(s, strings.Repeat("x", 200))

	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("draw panicked with oversized grid: %v", r)
		}
	}()
	if err := b.Draw(s.Snapshot()); err != nil {
		t.Fatalf("Draw: %v", err)
	}
}

func TestScreenBackendStatusLine(t *testing.T) {
	b, sim := newSimBackend(t, 20, 4)
	b.SetStatus("connected")
	s := term.NewScreen(20, 3)
	feed(s, "prompt$")

	if err := b.Draw(s.Snapshot()); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if got := strings.TrimRight(readLine(sim, 0, 3, 20), " "); got != "connected" {
		t.Fatalf("status row = %q", got)
	}

	b.SetStatus("closed")
	if err := b.Draw(s.Snapshot()); err != nil {
		t.Fatalf("Draw: %v", err)
	}
	if got := strings.TrimRight(readLine(sim, 0, 3, 20), " "); got != "closed" {
		t.Fatalf("status row after change = %q", got)
	}
}

func TestScreenBackendMountFailure(t *testing.T) {
	b := NewScreenBackend(WithScreenProvider(func() (tcell.Screen, error) {
		return nil, errors.New("terminal entry not found")
	}))
	if err := b.Mount(); err == nil {
		t.Fatalf("expected mount error")
	}
	if err := b.Draw(term.Snapshot{}); !errors.Is(err, ErrNotMounted) {
		t.Fatalf("Draw = %v, want ErrNotMounted", err)
	}
}

func TestScreenBackendFallsBackToCanvasWithoutTTY(t *testing.T) {
	var fallbackErr error
	r := New(
		func() (Backend, error) {
			return NewScreenBackend(WithScreenProvider(func() (tcell.Screen, error) {
				return nil, errors.New("open /dev/tty: no such device")
			})), nil
		},
		func() Backend { return NewCanvasBackend(nil) },
		WithOnFallback(func(err error) { fallbackErr = err }),
	)
	if err := r.Mount(); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if r.Handle().Kind != KindCanvas {
		t.Fatalf("expected canvas, got %q", r.Handle().Kind)
	}
	if !errors.Is(fallbackErr, ErrRendererInit) {
		t.Fatalf("expected ErrRendererInit diagnostic, got %v", fallbackErr)
	}
}
