// Package capture provides live camera capture and seekable clip sampling using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
)

// Live capture settings. The pose model works on 640x480 input and the hold
// timer only needs a few frames per second.
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned by ReadFrame before Open or after Close.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrEmptyFrame is returned when the device delivers no image.
	ErrEmptyFrame = errors.New("camera returned an empty frame")
)

// Camera is the frame source of a live capture session. A session opens it
// on start and closes it when it completes, is skipped or is stopped.
type Camera interface {
	// Open acquires the device. Failure is reported as a CAMERA_DENIED error.
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

// webcam reads frames from a local video device.
type webcam struct {
	deviceID int

	mu     sync.Mutex
	device *gocv.VideoCapture
	fps    int
}

// NewCamera returns a Camera for the given device index. It is not opened.
func NewCamera(deviceID int) Camera {
	return &webcam{deviceID: deviceID, fps: DefaultFPS}
}

// Open acquires the device at DefaultWidth x DefaultHeight. Opening an open
// camera is a no-op.
func (c *webcam) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device != nil {
		return nil
	}

	op := fmt.Sprintf("open camera %d", c.deviceID)
	device, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return failure.AcquisitionError(op, err)
	}
	if !device.IsOpened() {
		device.Close()
		return failure.AcquisitionError(op, errors.New("device not available or permission denied"))
	}

	device.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
	device.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	device.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.device = device
	return nil
}

// Close releases the device. Closing a closed camera is a no-op.
func (c *webcam) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil
	}
	err := c.device.Close()
	c.device = nil
	return err
}

func (c *webcam) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.device == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if !c.device.Read(&mat) {
		mat.Close()
		return nil, fmt.Errorf("read camera %d: device read failed", c.deviceID)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}
	return &mat, nil
}

// SetFPS sets the capture rate, which also paces the live loop.
// Non-positive values are ignored.
func (c *webcam) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.device != nil {
		c.device.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *webcam) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *webcam) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.device != nil
}
