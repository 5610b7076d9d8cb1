package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
)

const (
	DefaultDialTimeout = 10 * time.Second
	DefaultSendQueue   = 256
	DefaultReadLimit   = 1024 * 1024
)

// WebsocketDialer connects to the remote shell over a websocket. Terminal
// bytes travel as binary frames and resize requests as JSON text frames.
type WebsocketDialer struct {
	Header      http.Header
	DialTimeout time.Duration
	SendQueue   int
	ReadLimit   int64
	Logger      *log.Logger
}

// Dial validates endpoint and starts connecting in the background. ctx
// carries values only; the attempt is bounded by DialTimeout and by Close.
func (d *WebsocketDialer) Dial(ctx context.Context, endpoint string, h Handler) (Transport, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss", "http", "https":
	default:
		return nil, fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}

	t := &wsTransport{
		endpoint:    endpoint,
		header:      d.Header.Clone(),
		dialTimeout: d.DialTimeout,
		readLimit:   d.ReadLimit,
		h:           h,
		logger:      d.Logger,
		queue:       make(chan wsFrame, d.SendQueue),
		done:        make(chan struct{}),
	}
	if t.dialTimeout <= 0 {
		t.dialTimeout = DefaultDialTimeout
	}
	if t.readLimit <= 0 {
		t.readLimit = DefaultReadLimit
	}
	if cap(t.queue) == 0 {
		t.queue = make(chan wsFrame, DefaultSendQueue)
	}
	if t.logger == nil {
		t.logger = log.New(io.Discard)
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t.cancel = cancel
	go t.run(runCtx)
	return t, nil
}

type wsFrame struct {
	typ  websocket.MessageType
	data []byte
}

type wsTransport struct {
	endpoint    string
	header      http.Header
	dialTimeout time.Duration
	readLimit   int64
	h           Handler
	logger      *log.Logger

	queue  chan wsFrame
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	conn      *websocket.Conn
	closed    bool
	closeOnce sync.Once
}

func (t *wsTransport) Send(p []byte) error {
	return t.enqueue(wsFrame{typ: websocket.MessageBinary, data: bytes.Clone(p)})
}

func (t *wsTransport) SendResize(cols, rows int) error {
	payload, err := EncodeResize(cols, rows)
	if err != nil {
		return err
	}
	return t.enqueue(wsFrame{typ: websocket.MessageText, data: payload})
}

func (t *wsTransport) enqueue(f wsFrame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrNotOpen
	}
	select {
	case t.queue <- f:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close performs a normal closure and waits for the connection goroutines.
// It must not be called from a Handler callback.
func (t *wsTransport) Close() error {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.closed = true
		conn := t.conn
		t.mu.Unlock()
		if conn != nil {
			err := conn.Close(websocket.StatusNormalClosure, "")
			if err != nil && !errors.Is(err, net.ErrClosed) && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				t.logger.Debug("close handshake", "err", err)
			}
		}
		t.cancel()
	})
	<-t.done
	return nil
}

func (t *wsTransport) run(ctx context.Context) {
	defer close(t.done)

	dialCtx, cancel := context.WithTimeout(ctx, t.dialTimeout)
	conn, _, err := websocket.Dial(dialCtx, t.endpoint, &websocket.DialOptions{HTTPHeader: t.header})
	cancel()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		t.logger.Warn("dial failed", "endpoint", t.endpoint, "err", err)
		t.h.OnError(err)
		return
	}
	conn.SetReadLimit(t.readLimit)

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	t.conn = conn
	t.mu.Unlock()

	t.logger.Debug("connected", "endpoint", t.endpoint)
	t.h.OnOpen()

	writerCtx, stopWriter := context.WithCancel(ctx)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		t.writeLoop(writerCtx, conn)
	}()

	err = t.readLoop(ctx, conn)
	stopWriter()
	<-writerDone

	t.mu.Lock()
	local := t.closed
	t.closed = true
	t.mu.Unlock()
	if local {
		return
	}
	_ = conn.CloseNow()

	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		t.logger.Debug("remote closed", "endpoint", t.endpoint)
		t.h.OnClose()
	default:
		t.logger.Warn("connection lost", "endpoint", t.endpoint, "err", err)
		t.h.OnError(err)
	}
}

func (t *wsTransport) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		t.h.OnMessage(data)
	}
}

func (t *wsTransport) writeLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-t.queue:
			if err := conn.Write(ctx, f.typ, f.data); err != nil {
				t.logger.Debug("write failed", "err", err)
				return
			}
		}
	}
}
