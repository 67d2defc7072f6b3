package protocol

import (
	"errors"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-redlight/pkg/skeleton"
)

// ErrInvalidFrame is returned when a tracked body carries no joints.
var ErrInvalidFrame = errors.New("protocol: tracked body has no joints")

// FrameData is a skeletal tracker frame on the wire. Positions are metres
// in camera space.
type FrameData struct {
	FrameID uint64 `json:"frame_id,omitempty"`
	// TimestampUs is the sensor-relative capture time in microseconds.
	TimestampUs int64       `json:"ts_us"`
	Floor       *[4]float64 `json:"floor,omitempty"` // a, b, c, w
	Bodies      []BodyData  `json:"bodies"`
}

// BodyData is one tracked body
type BodyData struct {
	TrackingID uint64                           `json:"id"`
	Tracked    bool                             `json:"tracked"`
	Joints     map[skeleton.JointType]JointData `json:"joints"`
}

// JointData is one joint reading. A missing state means tracked.
type JointData struct {
	Position [3]float64              `json:"p"`
	State    *skeleton.TrackingState `json:"state,omitempty"`
}

// NewFrameData converts a frame for sending.
func NewFrameData(f *skeleton.Frame, id uint64) FrameData {
	fd := FrameData{
		FrameID:     id,
		TimestampUs: f.Timestamp.Microseconds(),
		Bodies:      make([]BodyData, 0, len(f.Bodies)),
	}
	if f.HasFloor() {
		floor := [4]float64(f.Floor)
		fd.Floor = &floor
	}
	for _, b := range f.Bodies {
		bd := BodyData{
			TrackingID: b.TrackingID,
			Tracked:    b.Tracked,
			Joints:     make(map[skeleton.JointType]JointData, len(b.Joints)),
		}
		for jt, j := range b.Joints {
			jd := JointData{Position: [3]float64(j.Position)}
			if j.State != skeleton.Tracked {
				state := j.State
				jd.State = &state
			}
			bd.Joints[jt] = jd
		}
		fd.Bodies = append(fd.Bodies, bd)
	}
	return fd
}

// ToFrame converts wire data to a tracker frame.
func (fd *FrameData) ToFrame() (*skeleton.Frame, error) {
	f := &skeleton.Frame{
		Timestamp: time.Duration(fd.TimestampUs) * time.Microsecond,
		Bodies:    make([]skeleton.Body, 0, len(fd.Bodies)),
	}
	if fd.Floor != nil {
		f.Floor = mgl64.Vec4(*fd.Floor)
	}
	for _, bd := range fd.Bodies {
		if bd.Tracked && len(bd.Joints) == 0 {
			return nil, ErrInvalidFrame
		}
		b := skeleton.Body{
			TrackingID: bd.TrackingID,
			Tracked:    bd.Tracked,
			Joints:     make(map[skeleton.JointType]skeleton.Joint, len(bd.Joints)),
		}
		for jt, jd := range bd.Joints {
			j := skeleton.Joint{Position: mgl64.Vec3(jd.Position), State: skeleton.Tracked}
			if jd.State != nil {
				j.State = *jd.State
			}
			b.Joints[jt] = j
		}
		f.Bodies = append(f.Bodies, b)
	}
	return f, nil
}
