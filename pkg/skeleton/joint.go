// Package skeleton models the frames produced by a depth-camera body tracker:
// bodies, joints, tracking state and the floor clip plane.
package skeleton

import (
	"fmt"
	"strings"
)

// JointType identifies a tracked joint. Values follow the 25-joint layout
// used by common depth-camera SDKs.
type JointType int

const (
	SpineBase JointType = iota
	SpineMid
	Neck
	Head
	ShoulderLeft
	ElbowLeft
	WristLeft
	HandLeft
	ShoulderRight
	ElbowRight
	WristRight
	HandRight
	HipLeft
	KneeLeft
	AnkleLeft
	FootLeft
	HipRight
	KneeRight
	AnkleRight
	FootRight
	SpineShoulder
	HandTipLeft
	ThumbLeft
	HandTipRight
	ThumbRight

	jointCount
)

var jointNames = [...]string{
	"spine_base", "spine_mid", "neck", "head",
	"shoulder_left", "elbow_left", "wrist_left", "hand_left",
	"shoulder_right", "elbow_right", "wrist_right", "hand_right",
	"hip_left", "knee_left", "ankle_left", "foot_left",
	"hip_right", "knee_right", "ankle_right", "foot_right",
	"spine_shoulder", "hand_tip_left", "thumb_left", "hand_tip_right", "thumb_right",
}

func (j JointType) String() string {
	if j < 0 || j >= jointCount {
		return fmt.Sprintf("joint(%d)", int(j))
	}
	return jointNames[j]
}

// MarshalText implements encoding.TextMarshaler.
func (j JointType) MarshalText() ([]byte, error) {
	if j < 0 || j >= jointCount {
		return nil, fmt.Errorf("skeleton: invalid joint %d", int(j))
	}
	return []byte(jointNames[j]), nil
}

// UnmarshalText accepts snake_case or CamelCase joint names.
func (j *JointType) UnmarshalText(text []byte) error {
	name := normalize(string(text))
	for i, n := range jointNames {
		if normalize(n) == name {
			*j = JointType(i)
			return nil
		}
	}
	return fmt.Errorf("skeleton: unknown joint %q", text)
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// JointClass selects which pair of joints drives motion detection.
type JointClass int

const (
	Ankle JointClass = iota
	Knee
)

func (c JointClass) String() string {
	switch c {
	case Ankle:
		return "ankle"
	case Knee:
		return "knee"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Joints returns the left and right joints tracked for the class.
func (c JointClass) Joints() []JointType {
	if c == Knee {
		return []JointType{KneeLeft, KneeRight}
	}
	return []JointType{AnkleLeft, AnkleRight}
}

// MarshalText implements encoding.TextMarshaler.
func (c JointClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalText parses "ankle" (or "foot") and "knee".
func (c *JointClass) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "ankle", "foot":
		*c = Ankle
	case "knee":
		*c = Knee
	default:
		return fmt.Errorf("skeleton: unknown joint class %q", text)
	}
	return nil
}

// TrackingState is the tracker's confidence in a joint position.
type TrackingState int

const (
	NotTracked TrackingState = iota
	Inferred
	Tracked
)

func (s TrackingState) String() string {
	switch s {
	case NotTracked:
		return "not_tracked"
	case Inferred:
		return "inferred"
	case Tracked:
		return "tracked"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s TrackingState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name. An empty string means tracked.
func (s *TrackingState) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "not_tracked", "nottracked":
		*s = NotTracked
	case "inferred":
		*s = Inferred
	case "tracked", "":
		*s = Tracked
	default:
		return fmt.Errorf("skeleton: unknown tracking state %q", text)
	}
	return nil
}
