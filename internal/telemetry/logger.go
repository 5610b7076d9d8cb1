package telemetry

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// NewLogger returns a JSON-lines logger writing to path. With no path the
// logger discards everything, since the tty belongs to the renderer. The
// returned closer releases the file.
func NewLogger(path string, debug bool) (*log.Logger, io.Closer, error) {
	var w io.WriteCloser = nopCloser{Writer: io.Discard}
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return nil, nil, err
		}
		w = f
	}
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Formatter:       log.JSONFormatter,
		Level:           log.InfoLevel,
	})
	if debug {
		l.SetLevel(log.DebugLevel)
	}
	return l, w, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
