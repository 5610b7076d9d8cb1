package bridge

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"termbridge/internal/input"
	"termbridge/internal/render"
	"termbridge/internal/resize"
	"termbridge/internal/session"
	"termbridge/internal/term"
)

// Config describes one terminal bridge.
type Config struct {
	Endpoint   string
	Dialer     session.Dialer
	Cols       int
	Rows       int
	Scrollback int
	Preference render.Preference
	FPS        int

	// NewPrimary and NewFallback build the renderer backends. nil selects
	// a tcell screen and a canvas on stdout.
	NewPrimary  func() (render.Backend, error)
	NewFallback func() render.Backend
}

type Option func(*Bridge)

func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithBanner sets the lines written locally when a session opens.
func WithBanner(lines []string) Option {
	return func(b *Bridge) { b.banner = lines }
}

// WithSettle sets the resize settle delay.
func WithSettle(d time.Duration) Option {
	return func(b *Bridge) { b.settle = d }
}

// WithStateHook is called after every session transition.
func WithStateHook(fn func(session.State)) Option {
	return func(b *Bridge) { b.onState = fn }
}

// WithFallbackHook is called once if the renderer falls back.
func WithFallbackHook(fn func(error)) Option {
	return func(b *Bridge) { b.onFallback = fn }
}

// Bridge wires the screen model, interpreter, renderer, resize
// synchronizer and input forwarder to one session at a time.
type Bridge struct {
	cfg        Config
	logger     *log.Logger
	banner     []string
	settle     time.Duration
	onState    func(session.State)
	onFallback func(error)

	screen   *term.Screen
	interp   *term.Interpreter
	renderer *render.Renderer
	clock    *render.FrameClock
	resizer  *resize.Synchronizer
	fwd      *input.Forwarder

	mu       sync.Mutex
	sess     *session.Session
	mounted  bool
	disposed bool
}

func New(cfg Config, opts ...Option) *Bridge {
	b := &Bridge{
		cfg:    cfg,
		logger: log.New(io.Discard),
		banner: session.DefaultBanner,
		settle: resize.DefaultSettle,
	}
	for _, opt := range opts {
		opt(b)
	}

	newPrimary := cfg.NewPrimary
	if newPrimary == nil {
		newPrimary = func() (render.Backend, error) { return render.NewScreenBackend(), nil }
	}
	newFallback := cfg.NewFallback
	if newFallback == nil {
		newFallback = func() render.Backend { return render.NewCanvasBackend(os.Stdout) }
	}

	b.screen = term.NewScreen(cfg.Cols, cfg.Rows,
		term.WithScrollback(cfg.Scrollback),
		term.WithReplyWriter(replyWriter{b}))
	b.clock = render.NewFrameClock(cfg.FPS, b.draw)
	b.interp = term.NewInterpreter(b.screen,
		term.WithLogger(b.logger.With("component", "term")),
		term.WithHooks(term.Hooks{OnChange: b.clock.Invalidate}))
	b.renderer = render.New(newPrimary, newFallback,
		render.WithPreference(cfg.Preference),
		render.WithLogger(b.logger.With("component", "render")),
		render.WithOnFallback(b.fallback))
	b.resizer = resize.New(b.screen, b.metrics,
		resize.WithSettle(b.settle),
		resize.WithNotifier(b),
		resize.WithOnApply(func(int, int) { b.clock.Invalidate() }),
		resize.WithLogger(b.logger.With("component", "resize")))
	b.fwd = input.New(b, b.screen, input.WithLogger(b.logger.With("component", "input")))
	return b
}

// Mount selects a renderer backend and starts drawing.
func (b *Bridge) Mount() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.disposed {
		return render.ErrNotMounted
	}
	if b.mounted {
		return nil
	}
	if err := b.renderer.Mount(); err != nil {
		return err
	}
	b.mounted = true
	b.clock.Start()
	b.clock.Invalidate()
	return nil
}

// Connect starts a new session when there is none or the current one has
// closed. It never interrupts a live session.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return session.ErrInvalidState
	}
	if b.sess != nil && b.sess.State() != session.StateClosed {
		b.mu.Unlock()
		return session.ErrInvalidState
	}
	s := session.New(b.cfg.Endpoint, b.cfg.Dialer,
		session.WithSink(b.interp),
		session.WithGeometry(b.screen.Size),
		session.WithBanner(b.banner),
		session.WithLogger(b.logger.With("component", "session")),
		session.OnStateChange(b.stateChanged))
	b.sess = s
	b.mu.Unlock()

	// Modes negotiated by the previous remote shell do not carry over.
	b.interp.Reset()
	return s.Connect(ctx)
}

// State is idle until the first Connect, then the current session's state.
func (b *Bridge) State() session.State {
	s := b.Session()
	if s == nil {
		return session.StateIdle
	}
	return s.State()
}

// Send forwards input to the current session.
func (b *Bridge) Send(p []byte) error {
	s := b.Session()
	if s == nil {
		return session.ErrNotOpen
	}
	return s.Send(p)
}

// NotifyResize forwards a geometry change to the current session.
func (b *Bridge) NotifyResize(cols, rows int) error {
	s := b.Session()
	if s == nil {
		return nil
	}
	return s.NotifyResize(cols, rows)
}

// Invalidate schedules a redraw on the next frame.
func (b *Bridge) Invalidate() { b.clock.Invalidate() }

// Dispose releases the session, timers and renderer. It is idempotent.
func (b *Bridge) Dispose() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	s := b.sess
	b.mu.Unlock()

	b.resizer.Stop()
	var err error
	if s != nil {
		err = s.Dispose()
	}
	b.clock.Stop()
	if rerr := b.renderer.Dispose(); err == nil {
		err = rerr
	}
	b.logger.Debug("bridge disposed")
	return err
}

func (b *Bridge) Screen() *term.Screen               { return b.screen }
func (b *Bridge) Interpreter() *term.Interpreter     { return b.interp }
func (b *Bridge) Forwarder() *input.Forwarder        { return b.fwd }
func (b *Bridge) Synchronizer() *resize.Synchronizer { return b.resizer }
func (b *Bridge) Renderer() *render.Renderer         { return b.renderer }
func (b *Bridge) FrameClock() *render.FrameClock     { return b.clock }

func (b *Bridge) Session() *session.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sess
}

func (b *Bridge) draw() {
	if err := b.renderer.Draw(b.screen.Snapshot()); err != nil {
		b.logger.Debug("draw failed", "err", err)
	}
}

func (b *Bridge) metrics() render.CellMetrics {
	return b.renderer.Handle().Metrics
}

func (b *Bridge) stateChanged(st session.State) {
	b.clock.Invalidate()
	if b.onState != nil {
		b.onState(st)
	}
}

func (b *Bridge) fallback(err error) {
	// The fallback may report different cell metrics.
	b.clock.Invalidate()
	if b.onFallback != nil {
		b.onFallback(err)
	}
}

// replyWriter routes terminal replies (cursor reports and the like) to the
// current session.
type replyWriter struct{ b *Bridge }

func (w replyWriter) Write(p []byte) (int, error) {
	_ = w.b.Send(p)
	return len(p), nil
}
