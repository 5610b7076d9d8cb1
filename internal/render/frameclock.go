package render

import (
	"sync"
	"sync/atomic"
	"time"
)

const DefaultFPS = 60

// FrameClock coalesces invalidations into at most one draw per frame.
type FrameClock struct {
	interval time.Duration
	draw     func()

	dirty  atomic.Bool
	frames atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	started   atomic.Bool
}

func NewFrameClock(fps int, draw func()) *FrameClock {
	if fps <= 0 {
		fps = DefaultFPS
	}
	return &FrameClock{
		interval: time.Second / time.Duration(fps),
		draw:     draw,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *FrameClock) Start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.loop()
	})
}

// Invalidate marks the model dirty; the next tick draws.
func (c *FrameClock) Invalidate() { c.dirty.Store(true) }

// Frames returns how many frames were drawn.
func (c *FrameClock) Frames() uint64 { return c.frames.Load() }

// Stop halts the clock and waits for an in-flight draw to finish.
func (c *FrameClock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		if c.started.Load() {
			<-c.done
		}
	})
}

func (c *FrameClock) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if c.dirty.Swap(false) {
				c.draw()
				c.frames.Add(1)
			}
		}
	}
}
