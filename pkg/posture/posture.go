// Package posture classifies a detected pose as good or slouching.
package posture

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/teslashibe/go-posture/pkg/geometry"
	"github.com/teslashibe/go-posture/pkg/pose"
)

// Reasons reported on a slouching verdict, in evaluation order.
const (
	ReasonNeckForward     = "Neck bent forward"
	ReasonShouldersUneven = "Shoulders uneven"
)

// Default thresholds, tuned on a side-on laptop camera.
const (
	DefaultNeckAngleMin    = 65.0 // degrees
	DefaultShoulderDiffMax = 20.0 // pixels
)

// Thresholds holds the tunable posture limits.
type Thresholds struct {
	// NeckAngleMin is the smallest acceptable ear-shoulder-hip angle in degrees.
	NeckAngleMin float64 `json:"neck_angle_min" validate:"gt=0,lte=180"`

	// ShoulderDiffMax is the largest acceptable shoulder height difference in pixels.
	ShoulderDiffMax float64 `json:"shoulder_diff_max" validate:"gt=0"`
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		NeckAngleMin:    DefaultNeckAngleMin,
		ShoulderDiffMax: DefaultShoulderDiffMax,
	}
}

var validate = validator.New()

// Validate checks the thresholds are usable.
func (t Thresholds) Validate() error {
	err := validate.Struct(t)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("posture: %w", err)
	}
	fe := verrs[0]
	switch fe.Field() {
	case "NeckAngleMin":
		return fmt.Errorf("posture: neck angle min must be in (0, 180], got %v", fe.Value())
	default:
		return fmt.Errorf("posture: shoulder diff max must be positive, got %v", fe.Value())
	}
}

// Verdict is the classification of one frame.
type Verdict struct {
	Slouching    bool     `json:"slouching"`
	NeckAngle    float64  `json:"neck_angle"`    // degrees
	ShoulderDiff float64  `json:"shoulder_diff"` // pixels
	Reasons      []string `json:"reasons"`
}

// Classify measures the pose and applies the thresholds.
// The neck check runs before the shoulder check and reasons keep that order.
func Classify(set *pose.LandmarkSet, width, height int, t Thresholds) Verdict {
	ear := set.Point(pose.RightEar, width, height)
	rightShoulder := set.Point(pose.RightShoulder, width, height)
	rightHip := set.Point(pose.RightHip, width, height)
	leftShoulder := set.Point(pose.LeftShoulder, width, height)

	v := Verdict{
		NeckAngle:    geometry.AngleDegrees(ear, rightShoulder, rightHip),
		ShoulderDiff: geometry.VerticalDifference(rightShoulder, leftShoulder),
		Reasons:      []string{},
	}

	if v.NeckAngle < t.NeckAngleMin {
		v.Slouching = true
		v.Reasons = append(v.Reasons, ReasonNeckForward)
	}

	if v.ShoulderDiff > t.ShoulderDiffMax {
		v.Slouching = true
		v.Reasons = append(v.Reasons, ReasonShouldersUneven)
	}

	return v
}
