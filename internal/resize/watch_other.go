//go:build !unix

package resize

import "context"

// WatchWindow reports the initial size of the tty on fd. This platform has
// no window-change signal.
func WatchWindow(ctx context.Context, fd int, fn func(cols, rows int)) error {
	reportSize(fd, fn)
	<-ctx.Done()
	return nil
}
