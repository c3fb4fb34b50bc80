// Package pose defines body landmarks and the pose detector contract.
package pose

import (
	"math"

	"github.com/teslashibe/go-posture/pkg/geometry"
)

// Landmark identifies a tracked body point.
type Landmark int

// Tracked landmarks. Names follow the MediaPipe pose model.
const (
	Nose Landmark = iota
	LeftEar
	RightEar
	LeftShoulder
	RightShoulder
	LeftHip
	RightHip

	NumLandmarks int = iota
)

var landmarkNames = [NumLandmarks]string{
	Nose:          "nose",
	LeftEar:       "left_ear",
	RightEar:      "right_ear",
	LeftShoulder:  "left_shoulder",
	RightShoulder: "right_shoulder",
	LeftHip:       "left_hip",
	RightHip:      "right_hip",
}

// Required lists the landmarks a frame must have to be classified.
var Required = []Landmark{RightShoulder, RightEar, RightHip, LeftShoulder, LeftHip}

// Connections are the landmark pairs drawn as the skeleton overlay.
var Connections = [][2]Landmark{
	{RightEar, RightShoulder},
	{LeftEar, LeftShoulder},
	{LeftShoulder, RightShoulder},
	{RightShoulder, RightHip},
	{LeftShoulder, LeftHip},
	{LeftHip, RightHip},
}

// String returns the snake_case name used on the wire.
func (l Landmark) String() string {
	if l < 0 || int(l) >= NumLandmarks {
		return "unknown"
	}
	return landmarkNames[l]
}

// ParseLandmark maps a wire name back to a Landmark.
func ParseLandmark(name string) (Landmark, bool) {
	for i, n := range landmarkNames {
		if n == name {
			return Landmark(i), true
		}
	}
	return 0, false
}

// Keypoint is a landmark position in normalized image coordinates.
type Keypoint struct {
	X          float64 `json:"x"`          // Nominally 0-1, left to right
	Y          float64 `json:"y"`          // Nominally 0-1, top to bottom
	Visibility float64 `json:"visibility"` // Model confidence, 0-1
}

// LandmarkSet holds every tracked landmark for one frame.
// A LandmarkSet always contains all Required landmarks; build one with
// NewLandmarkSet.
type LandmarkSet struct {
	points  [NumLandmarks]Keypoint
	present [NumLandmarks]bool
}

// NewLandmarkSet builds a set from detector output.
// It returns false when any Required landmark is missing or not finite,
// so partial detections are reported as no detection.
// Coordinates outside [0,1] are kept as reported; a hip below the frame
// still scales to its real position.
func NewLandmarkSet(points map[Landmark]Keypoint) (*LandmarkSet, bool) {
	s := &LandmarkSet{}
	for l, kp := range points {
		if l < 0 || int(l) >= NumLandmarks {
			continue
		}
		if !finite(kp.X) || !finite(kp.Y) {
			continue
		}
		s.points[l] = kp
		s.present[l] = true
	}

	for _, l := range Required {
		if !s.present[l] {
			return nil, false
		}
	}
	return s, true
}

// Has reports whether l was detected.
func (s *LandmarkSet) Has(l Landmark) bool {
	if l < 0 || int(l) >= NumLandmarks {
		return false
	}
	return s.present[l]
}

// Keypoint returns the normalized keypoint for l.
func (s *LandmarkSet) Keypoint(l Landmark) (Keypoint, bool) {
	if !s.Has(l) {
		return Keypoint{}, false
	}
	return s.points[l], true
}

// Point returns l scaled to a width x height frame.
// Missing optional landmarks return the origin.
func (s *LandmarkSet) Point(l Landmark, width, height int) geometry.Point2D {
	kp, _ := s.Keypoint(l)
	return geometry.Point2D{
		X: kp.X * float64(width),
		Y: kp.Y * float64(height),
	}
}

// Named returns the detected keypoints keyed by wire name.
func (s *LandmarkSet) Named() map[string]Keypoint {
	out := make(map[string]Keypoint, NumLandmarks)
	for i := 0; i < NumLandmarks; i++ {
		if s.present[i] {
			out[landmarkNames[i]] = s.points[i]
		}
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
