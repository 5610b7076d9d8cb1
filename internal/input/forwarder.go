package input

import (
	"errors"
	"io"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"

	"termbridge/internal/session"
	"termbridge/internal/term"
)

// Sender delivers raw input bytes to the remote side.
type Sender interface {
	Send(p []byte) error
}

type Option func(*Forwarder)

func WithLogger(l *log.Logger) Option {
	return func(f *Forwarder) {
		if l != nil {
			f.logger = l
		}
	}
}

// Forwarder encodes local input events and sends them without local echo.
// Input that arrives while the session is not open is dropped, never
// buffered, so nothing typed during an outage reaches a later session.
type Forwarder struct {
	sender Sender
	modes  term.Modes
	logger *log.Logger

	sent    atomic.Uint64
	dropped atomic.Uint64
}

func New(sender Sender, modes term.Modes, opts ...Option) *Forwarder {
	f := &Forwarder{sender: sender, modes: modes, logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Key forwards a key press.
func (f *Forwarder) Key(ev *tcell.EventKey) error {
	if ev == nil {
		return nil
	}
	appCursor := f.modes != nil && f.modes.AppCursorKeys()
	return f.send(term.EncodeEventToBytes(ev, appCursor))
}

// Paste forwards pasted text, bracketed when the remote side asked for it.
func (f *Forwarder) Paste(text string) error {
	bracketed := f.modes != nil && f.modes.BracketedPasteEnabled()
	return f.send(term.EncodePasteToBytes(text, bracketed))
}

// Text forwards committed composition text as UTF-8.
func (f *Forwarder) Text(s string) error {
	return f.send([]byte(s))
}

// Raw forwards bytes read from a raw-mode tty unchanged.
func (f *Forwarder) Raw(p []byte) error {
	return f.send(p)
}

// Sent returns how many payloads were handed to the session.
func (f *Forwarder) Sent() uint64 { return f.sent.Load() }

// Dropped returns how many payloads were discarded.
func (f *Forwarder) Dropped() uint64 { return f.dropped.Load() }

func (f *Forwarder) send(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if f.sender == nil {
		f.dropped.Add(1)
		return nil
	}
	err := f.sender.Send(p)
	switch {
	case err == nil:
		f.sent.Add(1)
		return nil
	case errors.Is(err, session.ErrNotOpen):
		f.dropped.Add(1)
		return nil
	default:
		f.dropped.Add(1)
		f.logger.Warn("input dropped", "bytes", len(p), "err", err)
		return err
	}
}
