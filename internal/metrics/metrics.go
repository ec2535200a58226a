// Package metrics computes exercise-quality metrics from a batch of pose frames.
package metrics

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/failure"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/geometry"
	"github.com/katakate8282/shouldercare-pwa-sub000/internal/pose"
)

// Heuristic thresholds.
const (
	// ShrugRatio is the fraction of the average shoulder-to-nose distance below which a frame counts as shrugged.
	ShrugRatio = 0.7
	// ShrugFrameShare is the share of frames that must be shrugged to raise the flag.
	ShrugFrameShare = 0.3
	// AsymmetryThreshold is the average shoulder height difference, in normalized image units, that raises the flag.
	AsymmetryThreshold = 0.05
	// FastDelta and SlowDelta bound the mean frame-to-frame angle change, in degrees.
	FastDelta = 30.0
	SlowDelta = 5.0
	// CompensationPenalty and FastPenalty are subtracted from the quality score.
	CompensationPenalty = 15
	FastPenalty         = 10
	// MinVisibleLandmarks is the average visible landmark count a batch needs.
	MinVisibleLandmarks = pose.NumLandmarks / 2
)

// Compensation messages.
const (
	shrugMessage     = "shoulder shrug compensation detected (%d frames)"
	AsymmetryMessage = "left-right shoulder height asymmetry detected"
)

// Speed classifies how quickly the movement was performed.
type Speed string

const (
	SpeedSlow     Speed = "slow"
	SpeedModerate Speed = "moderate"
	SpeedFast     Speed = "fast"
)

// AnalysisMetrics is the result of one batch analysis. It is not modified after Compute returns.
type AnalysisMetrics struct {
	FramesAnalyzed int                `json:"frames_analyzed"`
	AvgAngles      map[string]float64 `json:"avg_angles"`
	MaxAngles      map[string]float64 `json:"max_angles"`
	MinAngles      map[string]float64 `json:"min_angles"`
	MovementSpeed  Speed              `json:"movement_speed"`
	Compensations  []string           `json:"compensations"`
	RepsDetected   int                `json:"reps_detected"`
	QualityScore   int                `json:"quality_score"`
	RawAngleSeries *AngleSeries       `json:"raw_angle_series"`
}

// Coverage returns the average number of visible landmarks per frame and
// rejects the batch when it is below MinVisibleLandmarks.
func Coverage(frames []pose.Frame) (float64, error) {
	if len(frames) == 0 {
		return 0, failure.CoverageError(0, MinVisibleLandmarks)
	}

	total := 0
	for i := range frames {
		total += frames[i].Landmarks.VisibleCount()
	}
	avg := float64(total) / float64(len(frames))

	if avg < MinVisibleLandmarks {
		return avg, failure.CoverageError(avg, MinVisibleLandmarks)
	}
	return avg, nil
}

// Compute builds AnalysisMetrics from frames in order.
// Frames without the full landmark set are skipped. If no frame is complete
// the batch is rejected with a coverage error.
func Compute(frames []pose.Frame) (*AnalysisMetrics, error) {
	series := BuildSeries(frames)

	primary := PrimarySeries(series)
	if len(primary) == 0 {
		return nil, fmt.Errorf("compute metrics: no complete frames: %w", failure.CoverageError(0, MinVisibleLandmarks))
	}

	m := &AnalysisMetrics{
		FramesAnalyzed: len(primary),
		AvgAngles:      make(map[string]float64),
		MaxAngles:      make(map[string]float64),
		MinAngles:      make(map[string]float64),
		RawAngleSeries: series,
	}

	for _, key := range series.Keys() {
		vals, _ := series.Get(key)
		m.AvgAngles[key] = geometry.Round1(stat.Mean(vals, nil))
		m.MaxAngles[key] = geometry.Round1(floats.Max(vals))
		m.MinAngles[key] = geometry.Round1(floats.Min(vals))
	}

	m.Compensations = DetectCompensations(series)
	m.MovementSpeed = ClassifySpeed(primary)
	m.RepsDetected = CountReps(primary)
	m.QualityScore = QualityScore(len(m.Compensations), m.MovementSpeed)

	return m, nil
}

// BuildSeries computes the per-frame series for every complete frame.
func BuildSeries(frames []pose.Frame) *AngleSeries {
	series := NewAngleSeries()

	for i := range frames {
		set := &frames[i].Landmarks
		if !set.Complete() {
			continue
		}

		nose := set.At(pose.Nose)
		ls, rs := set.At(pose.LeftShoulder), set.At(pose.RightShoulder)
		le, re := set.At(pose.LeftElbow), set.At(pose.RightElbow)
		lw, rw := set.At(pose.LeftWrist), set.At(pose.RightWrist)
		lh, rh := set.At(pose.LeftHip), set.At(pose.RightHip)
		lk := set.At(pose.LeftKnee)

		series.Append(KeyLeftAbduction, geometry.Angle2D(lh, ls, le))
		series.Append(KeyRightAbduction, geometry.Angle2D(rh, rs, re))
		series.Append(KeyLeftFlexion, geometry.Angle2D(lh, ls, lw))
		series.Append(KeyRightFlexion, geometry.Angle2D(rh, rs, rw))
		series.Append(KeyLeftElbow, geometry.Angle2D(ls, le, lw))
		series.Append(KeyRightElbow, geometry.Angle2D(rs, re, rw))
		series.Append(KeyShoulderToNoseLeft, ls.Y-nose.Y)
		series.Append(KeyShoulderToNoseRight, rs.Y-nose.Y)
		series.Append(KeyTrunkAngle, geometry.Angle2D(ls, lh, lk))
		series.Append(KeyShoulderSymmetry, math.Abs(ls.Y-rs.Y))
	}

	return series
}

// PrimarySeries returns the series used for speed and repetition analysis:
// left abduction when present, otherwise left flexion.
func PrimarySeries(series *AngleSeries) []float64 {
	if vals, ok := series.Get(KeyLeftAbduction); ok && len(vals) > 0 {
		return vals
	}
	vals, _ := series.Get(KeyLeftFlexion)
	return vals
}

// DetectCompensations evaluates the shrug and asymmetry heuristics independently.
func DetectCompensations(series *AngleSeries) []string {
	var flags []string

	if vals, ok := series.Get(KeyShoulderToNoseLeft); ok && len(vals) > 0 {
		avg := stat.Mean(vals, nil)
		shrugged := 0
		for _, v := range vals {
			if v < avg*ShrugRatio {
				shrugged++
			}
		}
		if float64(shrugged) > float64(len(vals))*ShrugFrameShare {
			flags = append(flags, fmt.Sprintf(shrugMessage, shrugged))
		}
	}

	if vals, ok := series.Get(KeyShoulderSymmetry); ok && len(vals) > 0 {
		if stat.Mean(vals, nil) > AsymmetryThreshold {
			flags = append(flags, AsymmetryMessage)
		}
	}

	return flags
}

// ClassifySpeed classifies the mean absolute frame-to-frame change of vals.
// Fewer than two values means no observed movement.
func ClassifySpeed(vals []float64) Speed {
	if len(vals) < 2 {
		return SpeedSlow
	}

	var sum float64
	for i := 1; i < len(vals); i++ {
		sum += math.Abs(vals[i] - vals[i-1])
	}
	mean := sum / float64(len(vals)-1)

	switch {
	case mean > FastDelta:
		return SpeedFast
	case mean < SlowDelta:
		return SpeedSlow
	default:
		return SpeedModerate
	}
}

// CountReps counts strict local maxima, excluding the first and last value.
func CountReps(vals []float64) int {
	reps := 0
	for i := 1; i < len(vals)-1; i++ {
		if vals[i] > vals[i-1] && vals[i] > vals[i+1] {
			reps++
		}
	}
	return reps
}

// QualityScore starts at 100, subtracts CompensationPenalty per flag and
// FastPenalty for fast movement, and clamps to [0, 100].
func QualityScore(compensations int, speed Speed) int {
	score := 100 - CompensationPenalty*compensations
	if speed == SpeedFast {
		score -= FastPenalty
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
