package rom

// EventType describes the outcome of folding a frame or command into a session.
type EventType string

const (
	EventUpdated       EventType = "updated"
	EventCaptured      EventType = "captured"
	EventLowVisibility EventType = "low_visibility"
	EventIgnored       EventType = "ignored"
)

// Event reports what a transition did. Value is set only for EventCaptured.
type Event struct {
	Type        EventType `json:"type"`
	Step        Step      `json:"step"`
	Angle       float64   `json:"angle"`
	MaxAngle    float64   `json:"max_angle"`
	HoldElapsed float64   `json:"hold_elapsed"`
	Value       float64   `json:"value,omitempty"`
}
