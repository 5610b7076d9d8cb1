package session

import "context"

// Transport is one live connection to the remote shell endpoint.
// Send and SendResize must not block on the network.
type Transport interface {
	Send(p []byte) error
	SendResize(cols, rows int) error
	Close() error
}

// Handler receives the lifecycle callbacks of a Transport. Callbacks are
// delivered from a single goroutine in order. After OnError or OnClose no
// further callbacks arrive and the transport has released its resources.
type Handler interface {
	OnOpen()
	OnMessage(p []byte)
	OnError(err error)
	OnClose()
}

// Dialer starts a connection. Dial returns as soon as the connection attempt
// is under way; the outcome is reported through h. Implementations must not
// invoke h before Dial returns.
type Dialer interface {
	Dial(ctx context.Context, endpoint string, h Handler) (Transport, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, endpoint string, h Handler) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, endpoint string, h Handler) (Transport, error) {
	return f(ctx, endpoint, h)
}
