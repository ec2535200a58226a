// Package rom implements the guided live range-of-motion capture flow.
//
// A Session moves through intro, flexion, abduction, external rotation and
// done. Each incoming frame is folded into the session by Advance, which is a
// pure function: it returns the next session value and an Event describing
// what happened, so the whole flow is testable without a camera.
package rom

// Step is a stage of the guided capture flow.
type Step string

const (
	StepIntro            Step = "intro"
	StepFlexion          Step = "flexion"
	StepAbduction        Step = "abduction"
	StepExternalRotation Step = "external_rotation"
	StepDone             Step = "done"
)

// Steps lists the flow in order.
var Steps = []Step{StepIntro, StepFlexion, StepAbduction, StepExternalRotation, StepDone}

// Measuring reports whether the step records a ROM value.
func (s Step) Measuring() bool {
	return s == StepFlexion || s == StepAbduction || s == StepExternalRotation
}

// next returns the step that follows s. Done is terminal.
func (s Step) next() Step {
	for i, step := range Steps {
		if step == s && i+1 < len(Steps) {
			return Steps[i+1]
		}
	}
	return StepDone
}

// Instruction returns the text shown to the user for a step.
//
// Flexion and abduction use the same joint triple and the same angle
// formula; only this instruction tells the user which plane to move in.
func (s Step) Instruction() string {
	switch s {
	case StepIntro:
		return "Stand side-on to the camera so your whole upper body is visible."
	case StepFlexion:
		return "Raise your arm forward and up as high as you comfortably can, then hold."
	case StepAbduction:
		return "Raise your arm out to the side and up as high as you comfortably can, then hold."
	case StepExternalRotation:
		return "Keep your elbow bent at 90 degrees by your side and rotate your forearm outward, then hold."
	case StepDone:
		return "Measurement complete."
	default:
		return ""
	}
}
