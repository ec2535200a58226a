package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
)

// ErrClipClosed is returned when using a clip after Close.
var ErrClipClosed = errors.New("clip is closed")

// Clip is a finite, seekable media source.
//
// The playback position is shared state: Seek and Capture must be called
// strictly in sequence, never concurrently.
type Clip interface {
	// Duration returns the clip length in seconds.
	Duration() float64
	// Seek moves the playback position and returns once it has settled.
	Seek(ctx context.Context, seconds float64) error
	// Capture decodes the frame at the current position. The caller closes the returned Mat.
	Capture() (*gocv.Mat, error)
	Close() error
}

// fileClip reads a video file through GoCV.
type fileClip struct {
	path     string
	capture  *gocv.VideoCapture
	duration float64
	mu       sync.Mutex
}

// OpenClip opens a video file and reads its metadata.
// An unreadable file is reported as a SAMPLING_FAILED error.
func OpenClip(path string) (Clip, error) {
	capture, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, failure.PipelineError("open clip", "cannot load source", err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, failure.PipelineError("open clip", "cannot load source", fmt.Errorf("%s: not a readable video", path))
	}

	frames := capture.Get(gocv.VideoCaptureFrameCount)
	fps := capture.Get(gocv.VideoCaptureFPS)
	if frames <= 0 || fps <= 0 {
		capture.Close()
		return nil, failure.PipelineError("open clip", "cannot load source", fmt.Errorf("%s: unknown duration", path))
	}

	return &fileClip{
		path:     path,
		capture:  capture,
		duration: frames / fps,
	}, nil
}

func (c *fileClip) Duration() float64 {
	return c.duration
}

func (c *fileClip) Seek(ctx context.Context, seconds float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return ErrClipClosed
	}
	if seconds < 0 || seconds > c.duration {
		return fmt.Errorf("seek to %.2fs: outside clip of %.2fs", seconds, c.duration)
	}

	c.capture.Set(gocv.VideoCapturePosMsec, seconds*1000)
	return nil
}

func (c *fileClip) Capture() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrClipClosed
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, errors.New("failed to decode frame")
	}
	return &mat, nil
}

func (c *fileClip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}
