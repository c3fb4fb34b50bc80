package movenet

import (
	"errors"
	"testing"

	"github.com/teslashibe/go-posture/pkg/pose"
)

// output builds a raw MoveNet tensor with every keypoint at (x, y, score).
func output(x, y, score float32) []float32 {
	data := make([]float32, numKeypoints*stride)
	for i := 0; i < numKeypoints; i++ {
		data[i*stride] = y
		data[i*stride+1] = x
		data[i*stride+2] = score
	}
	return data
}

func TestParseKeypoints(t *testing.T) {
	data := output(0.25, 0.75, 0.9)

	set := parseKeypoints(data, 0.3)
	if set == nil {
		t.Fatal("expected a detection")
	}

	kp, ok := set.Keypoint(pose.RightShoulder)
	if !ok {
		t.Fatal("RightShoulder missing")
	}
	// MoveNet stores y before x
	if kp.X != 0.25 || kp.Y != 0.75 {
		t.Errorf("RightShoulder: got (%v, %v), want (0.25, 0.75)", kp.X, kp.Y)
	}
	if kp.Visibility < 0.89 || kp.Visibility > 0.91 {
		t.Errorf("Visibility: got %v, want 0.9", kp.Visibility)
	}
}

func TestParseKeypoints_LowScore(t *testing.T) {
	data := output(0.5, 0.5, 0.9)
	// COCO 12 is the right hip
	data[12*stride+2] = 0.1

	if set := parseKeypoints(data, 0.3); set != nil {
		t.Error("a required landmark below threshold should mean no detection")
	}
}

func TestParseKeypoints_OptionalLowScore(t *testing.T) {
	data := output(0.5, 0.5, 0.9)
	// COCO 0 is the nose, which is not required
	data[2] = 0.1

	set := parseKeypoints(data, 0.3)
	if set == nil {
		t.Fatal("expected a detection")
	}
	if set.Has(pose.Nose) {
		t.Error("low-score nose should be dropped")
	}
}

func TestParseKeypoints_ShortOutput(t *testing.T) {
	if set := parseKeypoints(make([]float32, 10), 0); set != nil {
		t.Error("short tensor should be no detection")
	}
}

func TestCOCOIndex_CoversRequired(t *testing.T) {
	mapped := map[pose.Landmark]bool{}
	for _, l := range cocoIndex {
		mapped[l] = true
	}
	for _, l := range pose.Required {
		if !mapped[l] {
			t.Errorf("required landmark %s has no COCO index", l)
		}
	}
}

func TestNew_MissingModel(t *testing.T) {
	cfg := pose.DefaultConfig()
	cfg.ModelPath = "/nonexistent/movenet.onnx"

	if _, err := New(cfg); !errors.Is(err, pose.ErrModelNotFound) {
		t.Errorf("got %v, want ErrModelNotFound", err)
	}
}
