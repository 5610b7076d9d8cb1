package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"termbridge/internal/term"
)

// Lines written locally through the sink. They never reach the remote side.
var (
	DefaultBanner = []string{
		"\x1b[1;33m[SYSTEM_INIT] Shell session established.\x1b[0m",
	}
	lostLine        = "\r\n\x1b[1;31m[SESSION_END] Kernel signal lost.\x1b[0m"
	unreachableLine = "\r\n\x1b[1;31m[ERROR] Deployment agent unreachable.\x1b[0m"
)

type Option func(*Session)

// WithBanner replaces the lines written when the session opens. nil
// disables the banner.
func WithBanner(lines []string) Option {
	return func(s *Session) { s.banner = lines }
}

// WithSink sets where remote output and diagnostic lines go.
func WithSink(sink term.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithGeometry sets the source of the size announced when the session
// opens. It is read at that moment, never earlier.
func WithGeometry(fn func() (cols, rows int)) Option {
	return func(s *Session) { s.geometry = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// OnStateChange registers a hook called after every transition, outside
// the session lock.
func OnStateChange(fn func(State)) Option {
	return func(s *Session) { s.onState = fn }
}

// Session is one connection attempt to the remote shell. Its transitions
// are driven by transport callbacks, Connect and Dispose. A closed session
// stays closed; reconnecting means building a new Session.
type Session struct {
	id        string
	endpoint  string
	createdAt time.Time
	dialer    Dialer

	sink     term.Sink
	geometry func() (int, int)
	banner   []string
	logger   *log.Logger
	onState  func(State)

	mu        sync.Mutex
	state     State
	transport Transport
	gen       uint64
	lastErr   error
	sentCols  int
	sentRows  int
}

func New(endpoint string, dialer Dialer, opts ...Option) *Session {
	s := &Session{
		id:        uuid.NewString(),
		endpoint:  endpoint,
		createdAt: time.Now().UTC(),
		dialer:    dialer,
		banner:    DefaultBanner,
		geometry:  func() (int, int) { return term.DefaultCols, term.DefaultRows },
		logger:    log.New(io.Discard),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.id[:8])
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Endpoint() string     { return s.endpoint }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastError returns the transport failure that ended the session, if any.
func (s *Session) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Connect starts the transport. It is valid only once, from idle.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle || s.dialer == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	s.gen++
	gen := s.gen
	s.state = StateConnecting
	s.mu.Unlock()
	s.logger.Info("connecting", "endpoint", s.endpoint)
	s.emit(StateConnecting)

	s.mu.Lock()
	if gen != s.gen {
		// Disposed before the dial started.
		s.mu.Unlock()
		return ErrInvalidState
	}
	// Dialers never call back before Dial returns, so holding the lock here
	// keeps early callbacks waiting until the transport is recorded.
	t, err := s.dialer.Dial(ctx, s.endpoint, &binding{s: s, gen: gen})
	if err == nil {
		s.transport = t
	}
	s.mu.Unlock()

	if err != nil {
		terr := &TransportError{Endpoint: s.endpoint, Err: err}
		s.fail(gen, terr, unreachableLine)
		return terr
	}
	return nil
}

// Send forwards raw input to the remote side. It never blocks.
func (s *Session) Send(p []byte) error {
	s.mu.Lock()
	if s.state != StateOpen || s.transport == nil {
		s.mu.Unlock()
		return ErrNotOpen
	}
	t := s.transport
	s.mu.Unlock()
	if len(p) == 0 {
		return nil
	}
	return t.Send(p)
}

// Write lets the session serve as the reply writer of a term.Screen.
// Replies produced while the session is not open are dropped.
func (s *Session) Write(p []byte) (int, error) {
	_ = s.Send(p)
	return len(p), nil
}

// NotifyResize tells the remote side about a new geometry. Nothing is sent
// unless the session is open and the geometry differs from the last one
// announced.
func (s *Session) NotifyResize(cols, rows int) error {
	if cols < 1 || rows < 1 {
		return nil
	}
	s.mu.Lock()
	if s.state != StateOpen || s.transport == nil {
		s.mu.Unlock()
		return nil
	}
	if cols == s.sentCols && rows == s.sentRows {
		s.mu.Unlock()
		return nil
	}
	t := s.transport
	s.mu.Unlock()
	if err := t.SendResize(cols, rows); err != nil {
		// Left unrecorded so the next call with the same size retries.
		return err
	}
	s.mu.Lock()
	if s.transport == t {
		s.sentCols, s.sentRows = cols, rows
	}
	s.mu.Unlock()
	return nil
}

// Dispose forces the session closed and releases the transport. It is safe
// to call more than once and from any state.
func (s *Session) Dispose() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.gen++
	t := s.transport
	s.transport = nil
	var passed []State
	if t != nil {
		s.state = StateClosing
		passed = append(passed, StateClosing)
	}
	s.state = StateClosed
	passed = append(passed, StateClosed)
	s.mu.Unlock()

	var err error
	if t != nil {
		err = t.Close()
	}
	s.logger.Info("disposed")
	s.emit(passed...)
	return err
}

func (s *Session) open(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.state = StateOpen
	s.mu.Unlock()
	s.logger.Info("open")
	s.emit(StateOpen)

	if s.sink != nil {
		for _, line := range s.banner {
			s.sink.Writeln(line)
		}
	}
	cols, rows := s.geometry()
	if err := s.NotifyResize(cols, rows); err != nil {
		s.logger.Warn("initial resize failed", "err", err)
	}
}

func (s *Session) message(gen uint64, p []byte) {
	s.mu.Lock()
	live := gen == s.gen && s.state == StateOpen
	s.mu.Unlock()
	if live && s.sink != nil {
		s.sink.Feed(p)
	}
}

// fail moves a live session through error to closed, leaving a
// diagnostic line on the screen.
func (s *Session) fail(gen uint64, err error, line string) {
	s.mu.Lock()
	if gen != s.gen || s.state == StateClosed || s.state == StateError {
		s.mu.Unlock()
		return
	}
	s.gen++
	s.transport = nil
	s.lastErr = err
	s.state = StateError
	s.mu.Unlock()
	s.logger.Error("session ended", "err", err)
	s.emit(StateError)

	if s.sink != nil {
		s.sink.Writeln(line)
	}

	s.mu.Lock()
	if s.state != StateError {
		// Disposed while the diagnostic was written.
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()
	s.emit(StateClosed)
}

func (s *Session) emit(states ...State) {
	if s.onState == nil {
		return
	}
	for _, st := range states {
		s.onState(st)
	}
}

// binding ties transport callbacks to the connection attempt that created
// them, so callbacks from a replaced transport are ignored.
type binding struct {
	s   *Session
	gen uint64
}

func (b *binding) OnOpen() { b.s.open(b.gen) }

func (b *binding) OnMessage(p []byte) { b.s.message(b.gen, p) }

func (b *binding) OnError(err error) {
	b.s.fail(b.gen, &TransportError{Endpoint: b.s.endpoint, Err: err}, lostLine)
}

func (b *binding) OnClose() {
	b.s.fail(b.gen, &TransportError{Endpoint: b.s.endpoint, Err: ErrRemoteClosed}, lostLine)
}
