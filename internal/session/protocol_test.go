package session

import "testing"

func TestEncodeResize(t *testing.T) {
	p, err := EncodeResize(120, 40)
	if err != nil {
		t.Fatalf("EncodeResize: %v", err)
	}
	if got := string(p); got != `{"type":"resize","cols":120,"rows":40}` {
		t.Fatalf("payload = %s", got)
	}
}

func TestDecodeResize(t *testing.T) {
	tests := []struct {
		in         string
		cols, rows int
		ok         bool
	}{
		{in: `{"type":"resize","cols":80,"rows":24}`, cols: 80, rows: 24, ok: true},
		{in: `{"type":"input","cols":80,"rows":24}`},
		{in: "ls -la\r"},
		{in: ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			cols, rows, ok := DecodeResize([]byte(tt.in))
			if ok != tt.ok || cols != tt.cols || rows != tt.rows {
				t.Fatalf("DecodeResize(%q) = %d,%d,%v", tt.in, cols, rows, ok)
			}
		})
	}
}

func TestEncodeResizeClamps(t *testing.T) {
	p, _ := EncodeResize(70000, -1)
	cols, rows, ok := DecodeResize(p)
	if !ok || cols != 0xffff || rows != 0 {
		t.Fatalf("clamped = %d,%d,%v", cols, rows, ok)
	}
}
