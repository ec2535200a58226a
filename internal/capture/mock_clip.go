package capture

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// MockClip is an in-memory Clip for testing. Every capture returns a blank
// 640x480 frame.
type MockClip struct {
	duration   float64
	seekErr    error
	seekFailAt int
	seeks      []float64
	closed     bool
	inFlight   bool
	concurrent bool
	mu         sync.Mutex
}

// NewMockClip returns a clip of the given duration in seconds.
func NewMockClip(duration float64) *MockClip {
	return &MockClip{duration: duration, seekFailAt: -1}
}

// SetSeekError makes the n-th seek (zero based) fail with err.
func (c *MockClip) SetSeekError(n int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seekFailAt = n
	c.seekErr = err
}

// Seeks returns the positions requested so far.
func (c *MockClip) Seeks() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]float64, len(c.seeks))
	copy(out, c.seeks)
	return out
}

// Overlapped reports whether a seek ever started while a seek-capture pair was in progress.
func (c *MockClip) Overlapped() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.concurrent
}

// Closed reports whether Close has been called.
func (c *MockClip) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *MockClip) Duration() float64 {
	return c.duration
}

func (c *MockClip) Seek(ctx context.Context, seconds float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClipClosed
	}
	if c.inFlight {
		c.concurrent = true
	}
	n := len(c.seeks)
	c.seeks = append(c.seeks, seconds)
	if n == c.seekFailAt {
		return c.seekErr
	}
	c.inFlight = true
	return nil
}

func (c *MockClip) Capture() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClipClosed
	}
	if !c.inFlight {
		return nil, errors.New("capture without a settled seek")
	}
	c.inFlight = false

	mat := gocv.NewMatWithSize(DefaultHeight, DefaultWidth, gocv.MatTypeCV8UC3)
	return &mat, nil
}

func (c *MockClip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
