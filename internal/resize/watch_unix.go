//go:build unix

package resize

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// WatchWindow reports the size of the tty on fd now and after every
// SIGWINCH until ctx is done.
func WatchWindow(ctx context.Context, fd int, fn func(cols, rows int)) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGWINCH)
	defer signal.Stop(sigCh)

	reportSize(fd, fn)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sigCh:
			reportSize(fd, fn)
		}
	}
}
