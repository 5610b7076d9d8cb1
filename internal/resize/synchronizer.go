package resize

import (
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"termbridge/internal/render"
)

// DefaultSettle is how long a burst of observations must be quiet before
// the last size is applied.
const DefaultSettle = 25 * time.Millisecond

// Grid is the local terminal model being kept in sync.
type Grid interface {
	Size() (cols, rows int)
	Resize(cols, rows int) error
}

// Notifier learns about every geometry change applied to the Grid. It
// decides on its own whether the remote side is told.
type Notifier interface {
	NotifyResize(cols, rows int) error
}

type Option func(*Synchronizer)

// WithSettle sets the settle delay. Zero applies each observation
// synchronously.
func WithSettle(d time.Duration) Option {
	return func(s *Synchronizer) {
		if d >= 0 {
			s.settle = d
		}
	}
}

func WithNotifier(n Notifier) Option {
	return func(s *Synchronizer) { s.notifier = n }
}

// WithOnApply registers a hook that runs after the Grid was resized.
func WithOnApply(fn func(cols, rows int)) Option {
	return func(s *Synchronizer) { s.onApply = fn }
}

func WithLogger(l *log.Logger) Option {
	return func(s *Synchronizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// Synchronizer turns container sizes into grid geometry. Sizes are in
// surface units and divided by the cell metrics of the active renderer.
type Synchronizer struct {
	grid     Grid
	metrics  func() render.CellMetrics
	notifier Notifier
	onApply  func(cols, rows int)
	settle   time.Duration
	logger   *log.Logger

	applyMu sync.Mutex

	mu         sync.Mutex
	timer      *time.Timer
	width      int
	height     int
	hasPending bool
	stopped    bool
	applied    int
}

// New builds a Synchronizer for grid. metrics is read at apply time; nil
// means one surface unit per cell.
func New(grid Grid, metrics func() render.CellMetrics, opts ...Option) *Synchronizer {
	s := &Synchronizer{
		grid:    grid,
		metrics: metrics,
		settle:  DefaultSettle,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Observe records the latest container size.
func (s *Synchronizer) Observe(width, height int) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.width, s.height, s.hasPending = width, height, true
	if s.settle == 0 {
		s.mu.Unlock()
		s.Flush()
		return
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.settle, s.Flush)
	} else {
		s.timer.Reset(s.settle)
	}
	s.mu.Unlock()
}

// Flush applies a pending observation now.
func (s *Synchronizer) Flush() {
	s.applyMu.Lock()
	defer s.applyMu.Unlock()

	s.mu.Lock()
	if s.stopped || !s.hasPending {
		s.mu.Unlock()
		return
	}
	w, h := s.width, s.height
	s.hasPending = false
	s.mu.Unlock()

	s.apply(w, h)
}

// Stop cancels a pending observation and waits for an apply in progress.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.hasPending = false
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()

	s.applyMu.Lock()
	s.applyMu.Unlock()
}

// Pending reports whether an observation is waiting to settle.
func (s *Synchronizer) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPending
}

// Applied returns how many geometry changes reached the Grid.
func (s *Synchronizer) Applied() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applied
}

// Fit converts a container size to a grid geometry of at least 1x1.
func Fit(width, height int, m render.CellMetrics) (cols, rows int) {
	if !m.Valid() {
		m = render.CellMetrics{Width: 1, Height: 1}
	}
	return max(1, width/m.Width), max(1, height/m.Height)
}

func (s *Synchronizer) apply(width, height int) {
	// A container without a size is mid-layout.
	if width <= 0 || height <= 0 {
		return
	}
	var m render.CellMetrics
	if s.metrics != nil {
		m = s.metrics()
	}
	cols, rows := Fit(width, height, m)
	if c, r := s.grid.Size(); c == cols && r == rows {
		return
	}
	if err := s.grid.Resize(cols, rows); err != nil {
		s.logger.Debug("resize rejected", "cols", cols, "rows", rows, "err", err)
		return
	}
	s.mu.Lock()
	s.applied++
	s.mu.Unlock()
	s.logger.Debug("resized", "cols", cols, "rows", rows)

	if s.onApply != nil {
		s.onApply(cols, rows)
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyResize(cols, rows); err != nil {
			s.logger.Warn("resize notify failed", "err", err)
		}
	}
}
