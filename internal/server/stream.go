package server

import (
	"fmt"
	"net/http"
	"time"
)

// frameInterval paces the stream at about 15 FPS.
const frameInterval = 66 * time.Millisecond

// PreviewSource provides the latest camera frame as JPEG.
type PreviewSource interface {
	Preview() ([]byte, bool)
}

// StreamHandler serves MJPEG frames from the live capture session.
type StreamHandler struct {
	source PreviewSource
}

// NewStreamHandler creates a new StreamHandler reading from source.
func NewStreamHandler(source PreviewSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// ServeHTTP streams MJPEG frames to connected clients until they disconnect.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		jpeg, ok := h.source.Preview()
		if !ok {
			continue
		}

		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(jpeg))
		if _, err := w.Write(jpeg); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
