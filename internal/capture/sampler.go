package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
)

// DefaultSampleCount is the number of frames sampled from a clip.
const DefaultSampleCount = 5

// SampleTimes returns n evenly spaced positions in a clip of the given
// duration, excluding its very start and end.
func SampleTimes(duration float64, n int) []float64 {
	if n <= 0 || duration <= 0 {
		return nil
	}

	interval := duration / float64(n+1)
	times := make([]float64, n)
	for i := range times {
		times[i] = interval * float64(i+1)
	}
	return times
}

// Sampler extracts still frames from a clip.
type Sampler struct {
	// Count is the number of frames to sample; zero means DefaultSampleCount.
	Count int
}

// Sample seeks to each sample time in order and captures one frame there.
//
// Seeks are strictly sequential. On any failure every frame captured so far
// is closed and a SAMPLING_FAILED error is returned, so callers never see a
// partial sample.
func (s *Sampler) Sample(ctx context.Context, clip Clip) ([]*gocv.Mat, error) {
	n := s.Count
	if n <= 0 {
		n = DefaultSampleCount
	}

	times := SampleTimes(clip.Duration(), n)
	if len(times) == 0 {
		return nil, failure.PipelineError("sample", "no frames to sample", fmt.Errorf("clip duration %.2fs", clip.Duration()))
	}

	frames := make([]*gocv.Mat, 0, len(times))
	release := func() {
		for _, f := range frames {
			f.Close()
		}
	}

	for i, t := range times {
		if err := clip.Seek(ctx, t); err != nil {
			release()
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			return nil, failure.PipelineError(fmt.Sprintf("sample frame %d", i), fmt.Sprintf("seek to %.2fs failed", t), err)
		}

		mat, err := clip.Capture()
		if err != nil {
			release()
			return nil, failure.PipelineError(fmt.Sprintf("sample frame %d", i), fmt.Sprintf("capture at %.2fs failed", t), err)
		}
		frames = append(frames, mat)
	}

	slog.Debug("capture: sampled clip", "frames", len(frames), "duration", clip.Duration())
	return frames, nil
}
