package render

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/log"

	"termbridge/internal/term"
)

// Preference selects which backends a Renderer may use.
type Preference string

const (
	PreferAuto   Preference = "auto"
	PreferScreen Preference = "screen"
	PreferCanvas Preference = "canvas"
)

// NormalizePreference maps user input onto a Preference, defaulting to auto.
func NormalizePreference(v string) Preference {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case string(PreferScreen), string(KindScreen), "tcell":
		return PreferScreen
	case string(PreferCanvas), string(KindCanvas), "cpu":
		return PreferCanvas
	default:
		return PreferAuto
	}
}

// Handle describes the active backend.
type Handle struct {
	Kind    Kind
	Metrics CellMetrics
}

type Option func(*Renderer)

func WithPreference(p Preference) Option {
	return func(r *Renderer) { r.pref = p }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithOnFallback registers a hook that runs once when the renderer
// switches to the fallback backend.
func WithOnFallback(fn func(err error)) Option {
	return func(r *Renderer) { r.onFallback = fn }
}

// Renderer owns the active backend. It tries the primary backend first and
// switches to the fallback at most once, either when the primary cannot be
// mounted or when it fails while drawing. The primary is never retried.
type Renderer struct {
	mu          sync.Mutex
	newPrimary  func() (Backend, error)
	newFallback func() Backend
	pref        Preference
	logger      *log.Logger
	onFallback  func(error)

	active   Backend
	fellBack bool
	cause    error
	disposed bool
}

func New(newPrimary func() (Backend, error), newFallback func() Backend, opts ...Option) *Renderer {
	r := &Renderer{
		newPrimary:  newPrimary,
		newFallback: newFallback,
		pref:        PreferAuto,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount selects and mounts a backend.
func (r *Renderer) Mount() error {
	r.mu.Lock()
	if r.disposed {
		r.mu.Unlock()
		return ErrNotMounted
	}
	if r.active != nil {
		r.mu.Unlock()
		return nil
	}
	if r.pref == PreferCanvas || r.newPrimary == nil {
		err := r.mountFallbackLocked()
		r.mu.Unlock()
		return err
	}

	var primary Backend
	err := guard(func() error {
		b, err := r.newPrimary()
		if err != nil {
			return err
		}
		primary = b
		return b.Mount()
	})
	if err == nil {
		r.active = primary
		r.logger.Info("renderer mounted", "kind", primary.Kind())
		r.mu.Unlock()
		return nil
	}
	if primary != nil {
		_ = guard(primary.Dispose)
	}
	if r.pref == PreferScreen {
		r.mu.Unlock()
		return &InitError{Kind: KindScreen, Err: err}
	}
	fired, ferr := r.fallbackLocked(err)
	r.mu.Unlock()
	r.fire(fired)
	return ferr
}

// Draw draws snap on the active backend. A failure of the primary disposes
// it and redraws on the fallback.
func (r *Renderer) Draw(snap term.Snapshot) error {
	r.mu.Lock()
	b := r.active
	if b == nil {
		r.mu.Unlock()
		return ErrNotMounted
	}
	err := guard(func() error { return b.Draw(snap) })
	if err == nil || r.fellBack || r.pref != PreferAuto || b.Kind() == KindCanvas {
		r.mu.Unlock()
		return err
	}

	_ = guard(b.Dispose)
	r.active = nil
	fired, ferr := r.fallbackLocked(err)
	if ferr == nil {
		ferr = guard(func() error { return r.active.Draw(snap) })
	}
	r.mu.Unlock()
	r.fire(fired)
	return ferr
}

func (r *Renderer) Handle() Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		return Handle{Metrics: unitMetrics}
	}
	m := r.active.Metrics()
	if !m.Valid() {
		m = unitMetrics
	}
	return Handle{Kind: r.active.Kind(), Metrics: m}
}

// Active returns the mounted backend, or nil.
func (r *Renderer) Active() Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// FallbackCause returns the error that forced the fallback, or nil.
func (r *Renderer) FallbackCause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cause
}

func (r *Renderer) Dispose() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disposed {
		return nil
	}
	r.disposed = true
	if r.active == nil {
		return nil
	}
	b := r.active
	r.active = nil
	return guard(b.Dispose)
}

func (r *Renderer) mountFallbackLocked() error {
	if r.newFallback == nil {
		return errors.New("no fallback renderer")
	}
	fb := r.newFallback()
	if err := guard(fb.Mount); err != nil {
		return &InitError{Kind: fb.Kind(), Err: err}
	}
	r.active = fb
	r.logger.Info("renderer mounted", "kind", fb.Kind())
	return nil
}

// fallbackLocked switches to the fallback backend. It returns the error to
// report through the hook, or nil when the switch already happened.
func (r *Renderer) fallbackLocked(cause error) (*InitError, error) {
	if r.fellBack {
		return nil, nil
	}
	r.fellBack = true
	initErr := &InitError{Kind: KindScreen, Err: cause}
	r.cause = initErr
	r.logger.Warn("accelerated renderer unavailable, using fallback", "err", cause)
	if err := r.mountFallbackLocked(); err != nil {
		return initErr, fmt.Errorf("fallback after %v: %w", cause, err)
	}
	return initErr, nil
}

func (r *Renderer) fire(err *InitError) {
	if err != nil && r.onFallback != nil {
		r.onFallback(err)
	}
}
