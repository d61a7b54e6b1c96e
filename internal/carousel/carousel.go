// Package carousel implements a cyclic image slider whose position is derived
// from a clock instead of a running timer.
package carousel

import (
	"sync"
	"time"

	"github.com/go-faster/errors"
)

// DefaultInterval is the auto-advance period.
const DefaultInterval = 5 * time.Second

// ErrOutOfRange is returned by Select for an index outside [0, N).
var ErrOutOfRange = errors.New("frame index out of range")

// State is a point-in-time view of the carousel.
type State struct {
	Index    int
	Frames   []string
	Autoplay bool
	// NextAt is when the next auto-advance happens. Zero when autoplay is
	// off or there is at most one frame.
	NextAt time.Time
}

// Carousel advances one frame per interval and wraps after the last frame.
// Manual navigation restarts the interval.
type Carousel struct {
	frames   []string
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	index    int
	anchor   time.Time
	autoplay bool
}

// New returns a carousel positioned on the first frame. A non-positive
// interval uses DefaultInterval.
func New(frames []string, interval time.Duration, autoplay bool) *Carousel {
	return newWithClock(frames, interval, autoplay, time.Now)
}

func newWithClock(frames []string, interval time.Duration, autoplay bool, now func() time.Time) *Carousel {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Carousel{
		frames:   append([]string(nil), frames...),
		interval: interval,
		now:      now,
		anchor:   now(),
		autoplay: autoplay,
	}
}

// Len returns the number of frames.
func (c *Carousel) Len() int { return len(c.frames) }

// State returns the current position.
func (c *Carousel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.advance(now)
	st := State{
		Index:    c.index,
		Frames:   c.frames,
		Autoplay: c.autoplay,
	}
	if c.autoplay && len(c.frames) > 1 {
		st.NextAt = c.anchor.Add(c.interval)
	}
	return st
}

// Index returns the current frame index.
func (c *Carousel) Index() int { return c.State().Index }

// Select jumps to frame i and restarts the interval.
func (c *Carousel) Select(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i < 0 || i >= len(c.frames) {
		return ErrOutOfRange
	}
	c.index = i
	c.anchor = c.now()
	return nil
}

// Next moves one frame forward and restarts the interval.
func (c *Carousel) Next() { c.step(1) }

// Prev moves one frame back and restarts the interval.
func (c *Carousel) Prev() { c.step(-1) }

// SetAutoplay turns auto-advance on or off. Turning it off freezes the
// current frame.
func (c *Carousel) SetAutoplay(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.advance(now)
	c.autoplay = on
	c.anchor = now
}

func (c *Carousel) step(delta int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.frames)
	if n == 0 {
		return
	}
	now := c.now()
	c.advance(now)
	c.index = ((c.index+delta)%n + n) % n
	c.anchor = now
}

// advance applies the auto-advance steps elapsed since the anchor.
func (c *Carousel) advance(now time.Time) {
	n := len(c.frames)
	if !c.autoplay || n < 2 {
		return
	}
	elapsed := now.Sub(c.anchor)
	if elapsed < c.interval {
		return
	}
	steps := int64(elapsed / c.interval)
	c.index = int((int64(c.index) + steps) % int64(n))
	c.anchor = c.anchor.Add(time.Duration(steps) * c.interval)
}
