package pose

import "fmt"

// Side selects the tracked arm.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// ParseSide converts a config or request value into a Side.
// An empty string selects the right arm.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case "", SideRight:
		return SideRight, nil
	case SideLeft:
		return SideLeft, nil
	default:
		return "", fmt.Errorf("invalid side %q", s)
	}
}

// Arm holds the joints that make up one side's upper limb and trunk anchor.
type Arm struct {
	Shoulder Joint
	Elbow    Joint
	Wrist    Joint
	Hip      Joint
}

// ArmOf returns the joints of the given side.
func ArmOf(side Side) Arm {
	if side == SideLeft {
		return Arm{Shoulder: LeftShoulder, Elbow: LeftElbow, Wrist: LeftWrist, Hip: LeftHip}
	}
	return Arm{Shoulder: RightShoulder, Elbow: RightElbow, Wrist: RightWrist, Hip: RightHip}
}
