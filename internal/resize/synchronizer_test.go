package resize

import (
	"sync"
	"testing"
	"time"

	"termbridge/internal/render"
	"termbridge/internal/term"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls [][2]int
}

func (n *recordingNotifier) NotifyResize(cols, rows int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, [2]int{cols, rows})
	return nil
}

func (n *recordingNotifier) Calls() [][2]int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][2]int(nil), n.calls...)
}

func fixedMetrics(w, h int) func() render.CellMetrics {
	return func() render.CellMetrics { return render.CellMetrics{Width: w, Height: h} }
}

func TestFit(t *testing.T) {
	tests := []struct {
		name       string
		w, h       int
		m          render.CellMetrics
		cols, rows int
	}{
		{name: "exact", w: 720, h: 432, m: render.CellMetrics{Width: 9, Height: 18}, cols: 80, rows: 24},
		{name: "floor", w: 725, h: 440, m: render.CellMetrics{Width: 9, Height: 18}, cols: 80, rows: 24},
		{name: "clamp", w: 3, h: 3, m: render.CellMetrics{Width: 9, Height: 18}, cols: 1, rows: 1},
		{name: "cells", w: 120, h: 40, m: render.CellMetrics{Width: 1, Height: 1}, cols: 120, rows: 40},
		{name: "invalid metrics", w: 50, h: 10, m: render.CellMetrics{}, cols: 50, rows: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cols, rows := Fit(tt.w, tt.h, tt.m)
			if cols != tt.cols || rows != tt.rows {
				t.Fatalf("Fit = %dx%d, want %dx%d", cols, rows, tt.cols, tt.rows)
			}
		})
	}
}

func TestSynchronousApply(t *testing.T) {
	screen := term.NewScreen(80, 24)
	n := &recordingNotifier{}
	applied := 0
	s := New(screen, fixedMetrics(9, 18),
		WithSettle(0),
		WithNotifier(n),
		WithOnApply(func(int, int) { applied++ }))

	s.Observe(1080, 720)
	if cols, rows := screen.Size(); cols != 120 || rows != 40 {
		t.Fatalf("screen = %dx%d, want 120x40", cols, rows)
	}
	if got := n.Calls(); len(got) != 1 || got[0] != [2]int{120, 40} {
		t.Fatalf("notifications = %v", got)
	}

	s.Observe(1085, 725)
	if len(n.Calls()) != 1 || applied != 1 {
		t.Fatalf("unchanged geometry applied again: notify=%d applied=%d", len(n.Calls()), applied)
	}
}

func TestZeroSizeContainerIgnored(t *testing.T) {
	screen := term.NewScreen(80, 24)
	n := &recordingNotifier{}
	s := New(screen, fixedMetrics(1, 1), WithSettle(0), WithNotifier(n))

	s.Observe(0, 30)
	s.Observe(100, 0)
	if cols, rows := screen.Size(); cols != 80 || rows != 24 {
		t.Fatalf("screen = %dx%d, want 80x24", cols, rows)
	}
	if len(n.Calls()) != 0 {
		t.Fatalf("notified for a zero-size container")
	}
}

func TestBurstCoalesced(t *testing.T) {
	screen := term.NewScreen(80, 24)
	n := &recordingNotifier{}
	s := New(screen, fixedMetrics(1, 1), WithSettle(20*time.Millisecond), WithNotifier(n))
	defer s.Stop()

	for i := 0; i < 30; i++ {
		s.Observe(90+i, 30)
	}
	deadline := time.Now().Add(2 * time.Second)
	for s.Pending() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(10 * time.Millisecond)

	if got := n.Calls(); len(got) != 1 || got[0] != [2]int{119, 30} {
		t.Fatalf("notifications = %v, want one 119x30", got)
	}
	if s.Applied() != 1 {
		t.Fatalf("applied = %d", s.Applied())
	}
}

func TestFlushAppliesImmediately(t *testing.T) {
	screen := term.NewScreen(80, 24)
	s := New(screen, fixedMetrics(1, 1), WithSettle(time.Hour))
	defer s.Stop()

	s.Observe(100, 50)
	if cols, _ := screen.Size(); cols != 80 {
		t.Fatalf("applied before settle")
	}
	s.Flush()
	if cols, rows := screen.Size(); cols != 100 || rows != 50 {
		t.Fatalf("screen = %dx%d after Flush", cols, rows)
	}
}

func TestStopCancelsPending(t *testing.T) {
	screen := term.NewScreen(80, 24)
	n := &recordingNotifier{}
	s := New(screen, fixedMetrics(1, 1), WithSettle(10*time.Millisecond), WithNotifier(n))

	s.Observe(100, 50)
	s.Stop()
	time.Sleep(40 * time.Millisecond)
	s.Observe(120, 60)
	s.Flush()

	if cols, rows := screen.Size(); cols != 80 || rows != 24 {
		t.Fatalf("screen = %dx%d after Stop", cols, rows)
	}
	if len(n.Calls()) != 0 {
		t.Fatalf("notified after Stop: %v", n.Calls())
	}
}

func TestMetricsReadAtApplyTime(t *testing.T) {
	screen := term.NewScreen(80, 24)
	m := render.CellMetrics{Width: 1, Height: 1}
	s := New(screen, func() render.CellMetrics { return m }, WithSettle(time.Hour))
	defer s.Stop()

	s.Observe(200, 100)
	m = render.CellMetrics{Width: 2, Height: 4}
	s.Flush()
	if cols, rows := screen.Size(); cols != 100 || rows != 25 {
		t.Fatalf("screen = %dx%d, want 100x25", cols, rows)
	}
}
