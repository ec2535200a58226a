package app

import (
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/detector"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/rom"
)

// runLoop reads a frame per tick, runs pose detection and folds the result
// into the session. It exits when stop is closed.
//
// Loop logic:
// 1. Tick at the camera frame rate
// 2. Read a frame; on error log and wait for the next tick
// 3. Keep a JPEG copy for the preview stream
// 4. Detect the pose; no person yields an empty landmark set
// 5. Advance the session with the frame timestamp in milliseconds
// 6. On capture, move to the next step after the advance delay
func (a *App) runLoop(stop <-chan struct{}, det detector.Detector) {
	fps := a.camera.FPS()
	if fps <= 0 {
		fps = 15
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			frame, err := a.camera.ReadFrame()
			if err != nil {
				slog.Debug("app: error reading frame", "error", err)
				continue
			}

			a.setPreview(frame)

			set, err := det.Detect(frame)
			frame.Close()
			if err != nil {
				slog.Warn("app: pose detection failed", "error", describe(err))
				continue
			}

			var landmarks pose.LandmarkSet
			if set != nil {
				landmarks = *set
			}

			a.feed(stop, pose.Frame{Timestamp: a.now().UnixMilli(), Landmarks: landmarks})
		}
	}
}

// feed advances the session owned by stop with one frame. Frames that arrive
// after the session has been stopped or replaced are discarded.
func (a *App) feed(stop <-chan struct{}, frame pose.Frame) {
	a.mu.Lock()
	if !a.active || a.stopCh == nil || (<-chan struct{})(a.stopCh) != stop {
		a.mu.Unlock()
		return
	}

	s, ev := rom.Advance(a.session, frame)
	a.session = s

	var updates []Update
	if ev.Type != rom.EventIgnored {
		updates = append(updates, a.updateLocked(UpdateFrame, &ev))
	}
	if ev.Type == rom.EventCaptured {
		slog.Info("app: step captured", "session", a.sessionID, "step", ev.Step, "value", ev.Value)
		updates = append(updates, a.afterCaptureLocked()...)
	}
	a.mu.Unlock()

	a.publish(updates)
}

// setPreview stores the frame as the latest preview image.
func (a *App) setPreview(frame *gocv.Mat) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, *frame)
	if err != nil {
		return
	}
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	buf.Close()

	a.mu.Lock()
	a.preview = data
	a.mu.Unlock()
}

// Preview returns the latest camera frame as JPEG. It reports false when no
// session is running.
func (a *App) Preview() ([]byte, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active || a.preview == nil {
		return nil, false
	}
	return a.preview, true
}
