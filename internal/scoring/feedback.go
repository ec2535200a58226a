package scoring

import (
	"fmt"
	"strings"

	"github.com/katakate8282/shouldercare-pwa-sub000/internal/metrics"
)

// Grades by quality score.
const (
	GradeExcellent = "excellent"
	GradeGood      = "good"
	GradeFair      = "fair"
	GradeNeedsWork = "needs_work"
)

// Grade maps a quality score to a grade.
func Grade(score int) string {
	switch {
	case score >= 85:
		return GradeExcellent
	case score >= 70:
		return GradeGood
	case score >= 50:
		return GradeFair
	default:
		return GradeNeedsWork
	}
}

// Narrate builds rule-based feedback from the metrics.
func Narrate(m *metrics.AnalysisMetrics) Feedback {
	fb := Feedback{
		Grade:        Grade(m.QualityScore),
		Strengths:    []string{},
		Improvements: []string{},
	}

	if len(m.Compensations) == 0 {
		fb.Strengths = append(fb.Strengths, "No compensation patterns detected.")
	}
	for _, c := range m.Compensations {
		switch {
		case strings.Contains(c, "shrug"):
			fb.Improvements = append(fb.Improvements, "Keep your shoulders relaxed and down while lifting the arm.")
		case strings.Contains(c, "asymmetry"):
			fb.Improvements = append(fb.Improvements, "Keep both shoulders level throughout the movement.")
		default:
			fb.Improvements = append(fb.Improvements, c)
		}
	}

	switch m.MovementSpeed {
	case metrics.SpeedModerate:
		fb.Strengths = append(fb.Strengths, "Controlled movement tempo.")
	case metrics.SpeedFast:
		fb.Improvements = append(fb.Improvements, "Slow down and move through the range over two to three seconds.")
	case metrics.SpeedSlow:
		fb.Improvements = append(fb.Improvements, "Aim for a steady, continuous motion.")
	}

	if m.RepsDetected > 0 {
		fb.Strengths = append(fb.Strengths, fmt.Sprintf("%d repetitions detected.", m.RepsDetected))
	} else {
		fb.Improvements = append(fb.Improvements, "No full repetitions detected; complete the full range each time.")
	}

	if peak, ok := m.MaxAngles[metrics.KeyLeftAbduction]; ok {
		fb.Summary = fmt.Sprintf("Quality score %d/100 (%s) over %d frames, peak abduction %.1f°.",
			m.QualityScore, fb.Grade, m.FramesAnalyzed, peak)
	} else {
		fb.Summary = fmt.Sprintf("Quality score %d/100 (%s) over %d frames.",
			m.QualityScore, fb.Grade, m.FramesAnalyzed)
	}

	return fb
}
