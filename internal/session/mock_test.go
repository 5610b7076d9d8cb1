package session

import (
	"context"
	"errors"
	"sync"
)

// mockTransport records everything the session sends. Tests drive the
// lifecycle through the handler it was dialled with.
type mockTransport struct {
	mu      sync.Mutex
	h       Handler
	sent    [][]byte
	resizes [][2]int
	closes  int
	sendErr error
	// resizeFails makes that many SendResize calls fail before any succeed.
	resizeFails int
}

func (m *mockTransport) Send(p []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, append([]byte(nil), p...))
	return nil
}

func (m *mockTransport) SendResize(cols, rows int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resizeFails > 0 {
		m.resizeFails--
		return ErrBackpressure
	}
	m.resizes = append(m.resizes, [2]int{cols, rows})
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return nil
}

func (m *mockTransport) FailResizes(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resizeFails = n
}

func (m *mockTransport) Open()            { m.h.OnOpen() }
func (m *mockTransport) Deliver(s string) { m.h.OnMessage([]byte(s)) }
func (m *mockTransport) Fail(err error)   { m.h.OnError(err) }
func (m *mockTransport) RemoteClose()     { m.h.OnClose() }

func (m *mockTransport) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.sent...)
}

func (m *mockTransport) Resizes() [][2]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][2]int(nil), m.resizes...)
}

func (m *mockTransport) Closes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}

type mockDialer struct {
	mu         sync.Mutex
	transports []*mockTransport
	err        error
}

func (d *mockDialer) Dial(_ context.Context, _ string, h Handler) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	t := &mockTransport{h: h}
	d.transports = append(d.transports, t)
	return t, nil
}

func (d *mockDialer) Dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *mockDialer) Last() *mockTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[len(d.transports)-1]
}

type recordingSink struct {
	mu    sync.Mutex
	fed   []byte
	lines []string
}

func (r *recordingSink) Feed(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fed = append(r.fed, p...)
}

func (r *recordingSink) Writeln(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines = append(r.lines, line)
}

func (r *recordingSink) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

func (r *recordingSink) Fed() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return string(r.fed)
}

type stateLog struct {
	mu     sync.Mutex
	states []State
}

func (l *stateLog) record(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.states = append(l.states, s)
}

func (l *stateLog) All() []State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]State(nil), l.states...)
}

var errBoom = errors.New("connection reset by peer")
