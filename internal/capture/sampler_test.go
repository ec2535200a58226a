package capture

import (
	"context"
	"errors"
	"testing"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
)

func TestSampleTimes(t *testing.T) {
	tests := []struct {
		name     string
		duration float64
		n        int
		want     []float64
	}{
		{"fifteen seconds five frames", 15.0, 5, []float64{2.5, 5.0, 7.5, 10.0, 12.5}},
		{"single frame is the midpoint", 8.0, 1, []float64{4.0}},
		{"zero count", 10.0, 0, nil},
		{"zero duration", 0, 5, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SampleTimes(tt.duration, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("SampleTimes() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("time %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestSampler_Sample(t *testing.T) {
	clip := NewMockClip(15.0)
	s := &Sampler{}

	frames, err := s.Sample(context.Background(), clip)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	defer func() {
		for _, f := range frames {
			f.Close()
		}
	}()

	if len(frames) != DefaultSampleCount {
		t.Fatalf("expected %d frames, got %d", DefaultSampleCount, len(frames))
	}

	seeks := clip.Seeks()
	want := []float64{2.5, 5.0, 7.5, 10.0, 12.5}
	for i := range want {
		if seeks[i] != want[i] {
			t.Errorf("seek %d = %v, want %v", i, seeks[i], want[i])
		}
	}
	if clip.Overlapped() {
		t.Error("seeks must never overlap a pending capture")
	}
}

func TestSampler_SeekFailure(t *testing.T) {
	clip := NewMockClip(15.0)
	clip.SetSeekError(3, errors.New("decoder stalled"))
	s := &Sampler{Count: 5}

	frames, err := s.Sample(context.Background(), clip)

	if frames != nil {
		t.Errorf("expected zero frames on failure, got %d", len(frames))
	}
	if !failure.Is(err, failure.CodeSamplingFailed) {
		t.Errorf("expected SAMPLING_FAILED, got %v", err)
	}
	if len(clip.Seeks()) != 4 {
		t.Errorf("expected sampling to stop at the failed seek, got %d seeks", len(clip.Seeks()))
	}
}

func TestSampler_EmptyClip(t *testing.T) {
	s := &Sampler{}

	_, err := s.Sample(context.Background(), NewMockClip(0))
	if !failure.Is(err, failure.CodeSamplingFailed) {
		t.Errorf("expected SAMPLING_FAILED, got %v", err)
	}
}

func TestSampler_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	frames, err := (&Sampler{}).Sample(ctx, NewMockClip(15.0))
	if frames != nil || !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled and no frames, got %v, %v", frames, err)
	}
}

func TestOpenClip_Missing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	_, err := OpenClip(t.TempDir() + "/missing.mp4")
	if !failure.Is(err, failure.CodeSamplingFailed) {
		t.Errorf("expected SAMPLING_FAILED, got %v", err)
	}
}
