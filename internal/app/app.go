package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"termbridge/internal/bridge"
	"termbridge/internal/render"
	"termbridge/internal/resize"
	"termbridge/internal/session"
	"termbridge/internal/telemetry"
)

const (
	keyQuit      = 0x1d // Ctrl+]
	keyReconnect = 0x12 // Ctrl+R
)

var errQuit = errors.New("quit")

type Option func(*App)

// WithScreenProvider overrides how the tcell screen is created.
func WithScreenProvider(p render.ScreenProvider) Option {
	return func(a *App) { a.provider = p }
}

// WithIO sets the tty the app reads from and draws the canvas on.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(a *App) {
		a.stdin = in
		a.stdout = out
	}
}

// WithDialer replaces the websocket dialer.
func WithDialer(d session.Dialer) Option {
	return func(a *App) { a.dialer = d }
}

// App hosts one bridge on the local terminal.
type App struct {
	cfg      Config
	provider render.ScreenProvider
	dialer   session.Dialer
	stdin    io.Reader
	stdout   io.Writer

	logger *log.Logger
	closer io.Closer
	bridge *bridge.Bridge

	mu     sync.Mutex
	screen *render.ScreenBackend
	tty    tcell.Screen
	state  session.State
}

func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, stdin: os.Stdin, stdout: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	if a.provider == nil {
		a.provider = tcell.NewScreen
	}

	logger, closer, err := telemetry.NewLogger(cfg.LogPath, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("open log: %w", err)
	}
	a.logger, a.closer = logger, closer

	palette, err := render.ParsePalette(cfg.Palette.Foreground, cfg.Palette.Background, cfg.Palette.Cursor, cfg.Palette.ANSI)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	if a.dialer == nil {
		header := http.Header{}
		for k, v := range cfg.Headers {
			header.Set(k, v)
		}
		a.dialer = &session.WebsocketDialer{
			Header:      header,
			DialTimeout: cfg.DialTimeout(),
			SendQueue:   cfg.SendQueue,
			Logger:      logger.With("component", "transport"),
		}
	}

	metrics := cfg.CellMetrics()
	a.bridge = bridge.New(bridge.Config{
		Endpoint:   cfg.Endpoint,
		Dialer:     a.dialer,
		Cols:       cfg.Screen.Cols,
		Rows:       cfg.Screen.Rows,
		Scrollback: cfg.Screen.Scrollback,
		Preference: cfg.Preference(),
		FPS:        cfg.Render.FPS,
		NewPrimary: func() (render.Backend, error) {
			sb := render.NewScreenBackend(
				render.WithScreenProvider(a.trackScreen),
				render.WithScreenPalette(palette),
				render.WithScreenMetrics(metrics))
			a.mu.Lock()
			a.screen = sb
			a.mu.Unlock()
			return sb, nil
		},
		NewFallback: func() render.Backend {
			return render.NewCanvasBackend(a.stdout,
				render.WithCanvasPalette(palette),
				render.WithCanvasMetrics(metrics))
		},
	},
		bridge.WithLogger(logger),
		bridge.WithBanner(cfg.Banner),
		bridge.WithSettle(cfg.SettleDelay()),
		bridge.WithStateHook(a.stateChanged),
		bridge.WithFallbackHook(func(err error) {
			logger.Warn("renderer fallback", "err", err)
		}),
	)
	return a, nil
}

// Bridge exposes the hosted bridge.
func (a *App) Bridge() *bridge.Bridge { return a.bridge }

// Run mounts the renderer, connects and serves local input until the user
// quits or ctx is done.
func (a *App) Run(ctx context.Context) error {
	defer a.closer.Close()
	if err := a.bridge.Mount(); err != nil {
		_ = a.bridge.Dispose()
		return fmt.Errorf("mount renderer: %w", err)
	}
	a.logger.Info("starting", "endpoint", a.cfg.Endpoint, "renderer", a.bridge.Renderer().Handle().Kind)
	if err := a.bridge.Connect(ctx); err != nil {
		// The failure is already on screen; the user may reconnect.
		a.logger.Warn("connect failed", "err", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.serveInput(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.bridge.Dispose()
	})
	err := g.Wait()
	if errors.Is(err, errQuit) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// serveInput reads local input in the mode matching the active renderer,
// switching to raw stdin if the screen backend is lost mid-session.
func (a *App) serveInput(ctx context.Context) error {
	for {
		kind := a.bridge.Renderer().Handle().Kind
		switch hostModeFor(kind) {
		case hostScreen:
			scr := a.tcellScreen()
			if scr == nil {
				return errQuit
			}
			if err := a.pollScreen(ctx, scr); err != nil {
				return err
			}
			if ctx.Err() != nil {
				return nil
			}
			a.logger.Info("screen lost, switching to raw input")
		default:
			return a.readRaw(ctx)
		}
	}
}

// pollScreen handles tcell events. It returns nil when the screen is
// finalised underneath it.
func (a *App) pollScreen(ctx context.Context, scr tcell.Screen) error {
	fwd := a.bridge.Forwarder()
	rs := a.bridge.Synchronizer()

	w, h := scr.Size()
	rs.Observe(w, max(1, h-1))

	var paste []rune
	pasting := false
	for {
		ev := scr.PollEvent()
		if ev == nil {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		switch ev := ev.(type) {
		case *tcell.EventResize:
			w, h := ev.Size()
			rs.Observe(w, max(1, h-1))
			a.refreshStatus()
		case *tcell.EventPaste:
			if ev.Start() {
				pasting, paste = true, paste[:0]
				continue
			}
			pasting = false
			_ = fwd.Paste(string(paste))
		case *tcell.EventKey:
			if pasting {
				paste = appendPasteKey(paste, ev)
				continue
			}
			switch a.command(keyCode(ev)) {
			case commandQuit:
				return errQuit
			case commandReconnect:
				continue
			}
			_ = fwd.Key(ev)
		}
	}
}

// readRaw forwards stdin bytes unchanged. The reader goroutine is not
// supervised because a blocked tty read cannot be cancelled.
func (a *App) readRaw(ctx context.Context) error {
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer term.Restore(fd, old)

		go func() {
			_ = resize.WatchWindow(ctx, fd, a.bridge.Synchronizer().Observe)
		}()
	} else {
		a.bridge.Synchronizer().Observe(a.cfg.Screen.Cols, a.cfg.Screen.Rows)
	}

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := a.stdin.Read(buf)
			if n > 0 {
				select {
				case chunks <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	fwd := a.bridge.Forwarder()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if errors.Is(err, io.EOF) {
				return errQuit
			}
			return err
		case p := <-chunks:
			for len(p) > 0 {
				i := indexCommand(p)
				if i < 0 {
					_ = fwd.Raw(p)
					break
				}
				_ = fwd.Raw(p[:i])
				switch a.command(p[i]) {
				case commandQuit:
					return errQuit
				case commandNone:
					_ = fwd.Raw(p[i : i+1])
				}
				p = p[i+1:]
			}
		}
	}
}

type command int

const (
	commandNone command = iota
	commandQuit
	commandReconnect
)

// command interprets a local control byte. Ctrl+R only reconnects when the
// session has closed; otherwise it belongs to the remote shell.
func (a *App) command(code byte) command {
	switch code {
	case keyQuit:
		return commandQuit
	case keyReconnect:
		if a.bridge.State() != session.StateClosed {
			return commandNone
		}
		a.logger.Info("reconnecting", "endpoint", a.cfg.Endpoint)
		if err := a.bridge.Connect(context.Background()); err != nil {
			a.logger.Warn("reconnect failed", "err", err)
		}
		return commandReconnect
	}
	return commandNone
}

func indexCommand(p []byte) int {
	for i, b := range p {
		if b == keyQuit || b == keyReconnect {
			return i
		}
	}
	return -1
}

// keyCode returns the control byte a key event stands for, or 0.
func keyCode(ev *tcell.EventKey) byte {
	switch {
	case ev.Key() == tcell.KeyCtrlRightSq:
		return keyQuit
	case ev.Key() == tcell.KeyCtrlR:
		return keyReconnect
	case ev.Key() == tcell.KeyRune && ev.Modifiers()&tcell.ModCtrl != 0:
		switch ev.Rune() {
		case ']':
			return keyQuit
		case 'r', 'R':
			return keyReconnect
		}
	}
	return 0
}

func appendPasteKey(buf []rune, ev *tcell.EventKey) []rune {
	switch ev.Key() {
	case tcell.KeyRune:
		return append(buf, ev.Rune())
	case tcell.KeyEnter:
		return append(buf, '\r')
	case tcell.KeyTab:
		return append(buf, '\t')
	}
	return buf
}

func (a *App) trackScreen() (tcell.Screen, error) {
	scr, err := a.provider()
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	a.tty = scr
	a.mu.Unlock()
	return scr, nil
}

// tcellScreen returns the screen of the mounted screen backend, or nil.
func (a *App) tcellScreen() tcell.Screen {
	if a.bridge.Renderer().Handle().Kind != render.KindScreen {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tty
}

func (a *App) stateChanged(st session.State) {
	a.mu.Lock()
	a.state = st
	a.mu.Unlock()
	a.refreshStatus()
}

func (a *App) refreshStatus() {
	a.mu.Lock()
	sb, scr, st := a.screen, a.tty, a.state
	a.mu.Unlock()
	if sb == nil || scr == nil {
		return
	}
	width, _ := scr.Size()
	sb.SetStatus(statusText(a.cfg.Endpoint, st, width))
	a.bridge.Invalidate()
}

func statusText(endpoint string, st session.State, width int) string {
	hint := "Ctrl+] quit"
	if st == session.StateClosed {
		hint = "Ctrl+R reconnect | " + hint
	}
	text := fmt.Sprintf(" termbridge | %s | %s | %s", st, endpoint, hint)
	return ansi.Truncate(text, width, "…")
}
