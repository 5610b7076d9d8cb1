package render

import (
	"errors"
	"fmt"

	"termbridge/internal/term"
)

// Kind names a rendering backend.
type Kind string

const (
	// KindScreen is the accelerated backend: a diffing tcell screen.
	KindScreen Kind = "gpu"
	// KindCanvas rasterises rows to SGR text on any byte sink.
	KindCanvas Kind = "cpu-canvas"
)

// CellMetrics is the size of one cell in surface units.
type CellMetrics struct {
	Width  int
	Height int
}

// Valid reports whether both dimensions are positive.
func (m CellMetrics) Valid() bool { return m.Width > 0 && m.Height > 0 }

var unitMetrics = CellMetrics{Width: 1, Height: 1}

// Backend draws snapshots onto a surface.
type Backend interface {
	Kind() Kind
	Mount() error
	Draw(snap term.Snapshot) error
	Metrics() CellMetrics
	Dispose() error
}

var (
	ErrRendererInit = errors.New("renderer init failed")
	ErrNotMounted   = errors.New("renderer not mounted")
)

// InitError records why a backend could not be used.
type InitError struct {
	Kind Kind
	Err  error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s renderer: %v", e.Kind, e.Err)
}

func (e *InitError) Is(target error) bool { return target == ErrRendererInit }

func (e *InitError) Unwrap() error { return e.Err }

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
