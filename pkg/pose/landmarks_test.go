package pose

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/go-posture/pkg/frame"
)

func fullPose() map[Landmark]Keypoint {
	return map[Landmark]Keypoint{
		RightEar:      {X: 0.50, Y: 0.20, Visibility: 0.9},
		RightShoulder: {X: 0.50, Y: 0.40, Visibility: 0.9},
		RightHip:      {X: 0.50, Y: 0.80, Visibility: 0.9},
		LeftShoulder:  {X: 0.40, Y: 0.40, Visibility: 0.9},
		LeftHip:       {X: 0.40, Y: 0.80, Visibility: 0.9},
	}
}

func TestNewLandmarkSet_Complete(t *testing.T) {
	set, ok := NewLandmarkSet(fullPose())
	if !ok || set == nil {
		t.Fatal("expected complete set to be accepted")
	}

	for _, l := range Required {
		if !set.Has(l) {
			t.Errorf("Has(%s): expected true", l)
		}
	}
	if set.Has(Nose) {
		t.Error("Has(nose): expected false for optional landmark not provided")
	}
}

func TestNewLandmarkSet_RejectsPartial(t *testing.T) {
	for _, missing := range Required {
		t.Run(missing.String(), func(t *testing.T) {
			points := fullPose()
			delete(points, missing)

			set, ok := NewLandmarkSet(points)
			if ok || set != nil {
				t.Errorf("missing %s: expected no detection, got %+v", missing, set)
			}
		})
	}
}

func TestNewLandmarkSet_RejectsNaN(t *testing.T) {
	points := fullPose()
	points[RightEar] = Keypoint{X: math.NaN(), Y: 0.2}

	if _, ok := NewLandmarkSet(points); ok {
		t.Error("NaN coordinate should make the set incomplete")
	}
}

func TestNewLandmarkSet_InfiniteIsIncomplete(t *testing.T) {
	for _, v := range []float64{math.Inf(1), math.Inf(-1)} {
		points := fullPose()
		points[RightHip] = Keypoint{X: 0.5, Y: v}
		if _, ok := NewLandmarkSet(points); ok {
			t.Errorf("Y=%v should make the set incomplete", v)
		}
	}
}

func TestNewLandmarkSet_KeepsOffFrameCoordinates(t *testing.T) {
	points := fullPose()
	points[RightHip] = Keypoint{X: 1.08, Y: 1.6}

	set, ok := NewLandmarkSet(points)
	if !ok {
		t.Fatal("expected set")
	}

	kp, _ := set.Keypoint(RightHip)
	if kp.X != 1.08 || kp.Y != 1.6 {
		t.Errorf("off-frame hip: got (%v, %v), want (1.08, 1.6)", kp.X, kp.Y)
	}
	p := set.Point(RightHip, 640, 480)
	if math.Abs(p.Y-768) > 1e-9 {
		t.Errorf("Point Y: got %v, want 768", p.Y)
	}
}

func TestLandmarkSet_Point(t *testing.T) {
	set, _ := NewLandmarkSet(fullPose())

	p := set.Point(RightShoulder, 640, 480)
	if p.X != 320 || p.Y != 192 {
		t.Errorf("Point: got (%v, %v), want (320, 192)", p.X, p.Y)
	}
}

func TestLandmark_StringRoundTrip(t *testing.T) {
	for i := 0; i < NumLandmarks; i++ {
		l := Landmark(i)
		back, ok := ParseLandmark(l.String())
		if !ok || back != l {
			t.Errorf("ParseLandmark(%q): got %v/%v, want %v", l.String(), back, ok, l)
		}
	}

	if _, ok := ParseLandmark("left_knee"); ok {
		t.Error("ParseLandmark: untracked landmark should not parse")
	}
	if Landmark(99).String() != "unknown" {
		t.Error("out of range landmark should stringify as unknown")
	}
}

func TestLandmarkSet_Named(t *testing.T) {
	set, _ := NewLandmarkSet(fullPose())
	named := set.Named()

	if len(named) != len(Required) {
		t.Errorf("Named: got %d entries, want %d", len(named), len(Required))
	}
	if _, ok := named["right_ear"]; !ok {
		t.Error("Named: missing right_ear")
	}
}

func TestMock(t *testing.T) {
	set, _ := NewLandmarkSet(fullPose())
	m := NewStaticMock(set)

	got, err := m.Detect(context.Background(), frame.Frame{Index: 7})
	if err != nil || got != set {
		t.Errorf("Detect: got %v, %v", got, err)
	}

	boom := errors.New("camera unplugged")
	m.DetectFunc = func(ctx context.Context, f frame.Frame) (*LandmarkSet, error) {
		return nil, boom
	}
	if _, err := m.Detect(context.Background(), frame.Frame{Index: 8}); !errors.Is(err, boom) {
		t.Errorf("Detect: expected %v, got %v", boom, err)
	}

	calls := m.Calls()
	if len(calls) != 2 || calls[0] != 7 || calls[1] != 8 {
		t.Errorf("Calls: got %v, want [7 8]", calls)
	}
}
