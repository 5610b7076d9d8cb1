package render

import (
	"testing"

	"termbridge/internal/term"
)

func TestDefaultPaletteMatchesConsoleTheme(t *testing.T) {
	p := DefaultPalette()
	if got := p.Foreground.Hex(); got != "#e2e8f0" {
		t.Fatalf("foreground = %s", got)
	}
	if got := p.Cursor.Hex(); got != "#d4af37" {
		t.Fatalf("cursor = %s", got)
	}
	if !p.Transparent {
		t.Fatalf("expected transparent background")
	}
	if got := p.ANSI[12].Hex(); got != "#60a5fa" {
		t.Fatalf("bright blue = %s", got)
	}
}

func TestParsePalette(t *testing.T) {
	t.Run("overrides", func(t *testing.T) {
		p, err := ParsePalette("#ffffff", "#000000", "", []string{"#010203"})
		if err != nil {
			t.Fatalf("ParsePalette: %v", err)
		}
		if p.Transparent || p.Background.Hex() != "#000000" {
			t.Fatalf("unexpected background %s transparent=%v", p.Background.Hex(), p.Transparent)
		}
		if p.ANSI[0].Hex() != "#010203" || p.ANSI[1].Hex() != "#ef4444" {
			t.Fatalf("unexpected ansi %s %s", p.ANSI[0].Hex(), p.ANSI[1].Hex())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		if _, err := ParsePalette("not-a-colour", "", "", nil); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("too many ansi", func(t *testing.T) {
		if _, err := ParsePalette("", "", "", make([]string, 17)); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestPaletteResolve(t *testing.T) {
	p := DefaultPalette()
	tests := []struct {
		name string
		c    term.Color
		fg   bool
		want string
		ok   bool
	}{
		{name: "default fg", c: term.ColorDefault, fg: true, want: "#e2e8f0", ok: true},
		{name: "default bg", c: term.ColorDefault, fg: false, ok: false},
		{name: "ansi", c: term.PaletteColor(2), fg: true, want: "#22c55e", ok: true},
		{name: "cube", c: term.PaletteColor(196), fg: true, want: "#ff0000", ok: true},
		{name: "gray", c: term.PaletteColor(232), fg: true, want: "#080808", ok: true},
		{name: "rgb", c: term.RGBColor(0x12, 0x34, 0x56), fg: false, want: "#123456", ok: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.Resolve(tt.c, tt.fg)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && got.Hex() != tt.want {
				t.Fatalf("got %s, want %s", got.Hex(), tt.want)
			}
		})
	}
}
