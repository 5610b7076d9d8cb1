package term

import (
	"io"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/charmbracelet/x/ansi"
)

// Hooks are side effects of interpreted output. They run after the chunk
// has been applied, outside of any lock.
type Hooks struct {
	OnBell   func()
	OnChange func()
}

type InterpreterOption func(*Interpreter)

func WithHooks(h Hooks) InterpreterOption {
	return func(in *Interpreter) { in.hooks = h }
}

func WithLogger(l *log.Logger) InterpreterOption {
	return func(in *Interpreter) {
		if l != nil {
			in.logger = l
		}
	}
}

// Interpreter feeds a byte stream into a Screen. It holds back incomplete
// UTF-8 runes between chunks and keeps history of rows that scroll off the
// top, so the result does not depend on how the stream was chunked.
type Interpreter struct {
	mu      sync.Mutex
	screen  *Screen
	hooks   Hooks
	logger  *log.Logger
	pending []byte
	scan    scanner
}

func NewInterpreter(screen *Screen, opts ...InterpreterOption) *Interpreter {
	in := &Interpreter{
		screen: screen,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}

func (in *Interpreter) Screen() *Screen { return in.screen }

// Feed applies a chunk of remote output.
func (in *Interpreter) Feed(p []byte) {
	if len(p) == 0 {
		return
	}
	in.mu.Lock()
	data := p
	if len(in.pending) > 0 {
		data = make([]byte, 0, len(in.pending)+len(p))
		data = append(data, in.pending...)
		data = append(data, p...)
		in.pending = nil
	}
	if cut := incompleteTail(data); cut < len(data) {
		in.pending = append([]byte(nil), data[cut:]...)
		data = data[:cut]
	}
	bells := in.applyLocked(data, true)
	in.mu.Unlock()

	in.notify(len(data) > 0, bells)
}

// Writeln writes a local line, e.g. a banner or a diagnostic.
func (in *Interpreter) Writeln(line string) {
	in.logger.Debug("local line", "text", ansi.Strip(line))
	in.mu.Lock()
	bells := in.applyLocked([]byte(line+"\r\n"), false)
	in.mu.Unlock()

	in.notify(true, bells)
}

// Reset forgets partial input and stream-sniffed modes. It is used when a
// new connection starts feeding the same screen.
func (in *Interpreter) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.pending = nil
	in.scan = scanner{}
	in.screen.mu.Lock()
	in.screen.resetModesLocked()
	in.screen.mu.Unlock()
}

// Malformed returns how many engine failures were recovered.
func (in *Interpreter) Malformed() int {
	in.screen.mu.Lock()
	defer in.screen.mu.Unlock()
	return in.screen.malformed
}

func (in *Interpreter) notify(changed bool, bells int) {
	if changed && in.hooks.OnChange != nil {
		in.hooks.OnChange()
	}
	if bells > 0 && in.hooks.OnBell != nil {
		in.hooks.OnBell()
	}
}

// applyLocked writes data to the engine in runs. Before a byte that can
// scroll the primary screen, the pending run is flushed and the departing
// top rows are captured into scrollback. Rows only leave the screen when
// the scroll region starts at the top row. Printables are counted against
// the room left on the cursor row so the cursor is only inspected when a
// wrap is possible.
func (in *Interpreter) applyLocked(data []byte, remote bool) (bells int) {
	s := in.screen
	s.mu.Lock()
	defer s.mu.Unlock()
	if remote {
		s.updateModesLocked(data)
	}

	start := 0
	budget := 0
	flush := func(end int) {
		if end <= start {
			return
		}
		if r := s.writeLocked(data[start:end]); r != nil {
			in.logger.Debug("recovered malformed sequence", "panic", r, "bytes", end-start)
		}
		start = end
	}

	for i := 0; i < len(data); {
		b := data[i]
		size := 1
		if b >= utf8.RuneSelf {
			if _, n := utf8.DecodeRune(data[i:]); n > 1 {
				size = n
			}
		}

		switch in.scan.step(b) {
		case evPrint:
			if budget == 0 {
				flush(i)
				row, col, wrapNext, autowrap := s.cursorStateLocked()
				if wrapNext && autowrap && s.scrollsOffTopLocked(row) {
					s.captureTopLocked(1)
				}
				if wrapNext {
					budget = 1
				} else {
					budget = s.cols - col
				}
			}
			budget--
		case evLineFeed, evIndex:
			flush(i)
			if row, _, _, _ := s.cursorStateLocked(); s.scrollsOffTopLocked(row) {
				s.captureTopLocked(1)
			}
			budget = 0
		case evScrollUp:
			flush(i)
			if s.scrollTop == 0 {
				s.captureTopLocked(min(in.scan.count, s.scrollBottom+1))
			}
			budget = 0
		case evSetRegion:
			s.setScrollRegionLocked(in.scan.args)
			budget = 0
		case evReset:
			s.scrollTop, s.scrollBottom = 0, s.rows-1
			budget = 0
		case evBell:
			bells++
			budget = 0
		default:
			budget = 0
		}
		i += size
	}
	flush(len(data))
	return bells
}

// incompleteTail returns the offset of a trailing partial UTF-8 rune, or
// len(p) when the chunk ends on a rune boundary.
func incompleteTail(p []byte) int {
	for i := len(p) - 1; i >= 0 && i >= len(p)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(p[i]) {
			continue
		}
		if p[i] >= utf8.RuneSelf && !utf8.FullRune(p[i:]) {
			return i
		}
		return len(p)
	}
	return len(p)
}

type scanState uint8

const (
	scanGround scanState = iota
	scanEscape
	scanEscapeArg
	scanCSI
	scanString
	scanStringEscape
)

type scanEvent uint8

const (
	evNone scanEvent = iota
	evPrint
	evControl
	evLineFeed
	evIndex
	evScrollUp
	evSetRegion
	evReset
	evBell
)

const maxCSIParams = 256

// scanner follows the engine's escape state machine closely enough to tell
// where text, line feeds and scroll commands are. The engine does the
// real parsing.
type scanner struct {
	state  scanState
	params []byte
	count  int
	args   []int
}

func (sc *scanner) step(b byte) scanEvent {
	switch sc.state {
	case scanGround:
		if b < 0x20 || b == 0x7f {
			return sc.control(b)
		}
		return evPrint

	case scanEscape:
		if isHandledControl(b) {
			return sc.control(b)
		}
		sc.state = scanGround
		switch b {
		case '[':
			sc.state = scanCSI
			sc.params = sc.params[:0]
		case ']', 'P', '^', '_', 'k':
			sc.state = scanString
		case '(', '#':
			sc.state = scanEscapeArg
		case 'D', 'E':
			return evIndex
		case 'c':
			return evReset
		}
		return evControl

	case scanEscapeArg:
		if isHandledControl(b) {
			return sc.control(b)
		}
		sc.state = scanGround
		return evControl

	case scanCSI:
		if isHandledControl(b) {
			return sc.control(b)
		}
		sc.params = append(sc.params, b)
		if (b >= 0x40 && b <= 0x7e) || len(sc.params) >= maxCSIParams {
			sc.state = scanGround
			switch b {
			case 'S':
				sc.count = scrollCount(sc.params[:len(sc.params)-1])
				return evScrollUp
			case 'r':
				if sc.params[0] != '?' {
					sc.args = csiArgs(sc.args[:0], sc.params[:len(sc.params)-1])
					return evSetRegion
				}
			}
		}
		return evControl

	case scanString:
		switch b {
		case 0x07:
			sc.state = scanGround
		case 0x1b:
			sc.state = scanStringEscape
		}
		return evNone

	case scanStringEscape:
		if isHandledControl(b) {
			return sc.control(b)
		}
		sc.state = scanGround
		return evNone
	}
	return evNone
}

// control applies a C0 code the engine executes in any non-string state.
func (sc *scanner) control(b byte) scanEvent {
	switch {
	case b == 0x1b:
		sc.state = scanEscape
	case b == 0x18 || b == 0x1a:
		sc.params = sc.params[:0]
	case b == 0x07:
		return evBell
	case isLineFeed(b):
		return evLineFeed
	}
	return evControl
}

func isHandledControl(b byte) bool {
	switch b {
	case '\t', '\b', '\r', '\n', '\v', '\f', 0x07, 0x1b, 0x0e, 0x0f, 0x18, 0x1a, 0x05, 0x00, 0x11, 0x13, 0x7f:
		return true
	}
	return false
}

func isLineFeed(b byte) bool {
	return b == '\n' || b == '\v' || b == '\f'
}

// scrollCount returns the row count of "CSI n S". A missing or unparsable
// count means one row and an explicit zero scrolls nothing.
func scrollCount(params []byte) int {
	first, _, _ := strings.Cut(strings.TrimPrefix(string(params), "?"), ";")
	if first == "" {
		return 1
	}
	n, err := strconv.Atoi(first)
	if err != nil {
		return 1
	}
	return n
}

// csiArgs parses numeric CSI parameters the way the engine does: parsing
// stops at the first empty or non-numeric field.
func csiArgs(dst []int, params []byte) []int {
	if len(params) == 0 {
		return dst
	}
	for _, f := range strings.Split(string(params), ";") {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		dst = append(dst, n)
	}
	return dst
}
