package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/teslashibe/go-posture/pkg/frame"
	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/session"
)

// slouchPose has the ear dropped forward below the shoulder line
// (neck angle ~53° at 640x480) and level shoulders.
func slouchPose(t *testing.T) *pose.LandmarkSet {
	t.Helper()
	set, ok := pose.NewLandmarkSet(map[pose.Landmark]pose.Keypoint{
		pose.RightEar:      {X: 0.60, Y: 0.60},
		pose.RightShoulder: {X: 0.50, Y: 0.50},
		pose.RightHip:      {X: 0.50, Y: 0.90},
		pose.LeftShoulder:  {X: 0.40, Y: 0.50},
		pose.LeftHip:       {X: 0.40, Y: 0.90},
	})
	if !ok {
		t.Fatal("slouchPose: incomplete")
	}
	return set
}

// uprightPose has the ear straight above the shoulder.
func uprightPose(t *testing.T) *pose.LandmarkSet {
	t.Helper()
	set, ok := pose.NewLandmarkSet(map[pose.Landmark]pose.Keypoint{
		pose.RightEar:      {X: 0.50, Y: 0.30},
		pose.RightShoulder: {X: 0.50, Y: 0.50},
		pose.RightHip:      {X: 0.50, Y: 0.90},
		pose.LeftShoulder:  {X: 0.40, Y: 0.50},
		pose.LeftHip:       {X: 0.40, Y: 0.90},
	})
	if !ok {
		t.Fatal("uprightPose: incomplete")
	}
	return set
}

// recordingRenderer captures annotations and tags the output frame.
type recordingRenderer struct {
	annotations []Annotation
	err         error
}

func (r *recordingRenderer) Annotate(f frame.Frame, a Annotation) (frame.Frame, error) {
	if r.err != nil {
		return f, r.err
	}
	r.annotations = append(r.annotations, a)
	return f.WithJPEG([]byte("annotated")), nil
}

func newPipeline(t *testing.T, det pose.Detector, r Renderer) *Pipeline {
	t.Helper()
	cls, err := posture.NewClassifier(posture.DefaultThresholds())
	if err != nil {
		t.Fatal(err)
	}
	return New(det, cls, r)
}

func testFrame(i int) frame.Frame {
	return frame.Frame{Index: i, JPEG: []byte("raw"), Width: 640, Height: 480}
}

func TestProcessFrame_NoDetectionCountsAsGood(t *testing.T) {
	acc := session.New()
	acc.Start()
	r := &recordingRenderer{}
	p := newPipeline(t, pose.NewMock(), r)

	res, err := p.ProcessFrame(context.Background(), testFrame(1), acc)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}

	if res.Detected {
		t.Error("Detected: expected false")
	}
	if !res.Counted {
		t.Error("Counted: undetected frame should count as good")
	}
	if string(res.Frame.JPEG) != "raw" {
		t.Errorf("undetected frame should pass through unannotated, got %q", res.Frame.JPEG)
	}
	if len(r.annotations) != 0 {
		t.Errorf("renderer called %d times, want 0", len(r.annotations))
	}

	if st := acc.Status(); st.GoodFrames != 1 || st.BadFrames != 0 {
		t.Errorf("counters: got %d/%d, want 1/0", st.GoodFrames, st.BadFrames)
	}
}

func TestProcessFrame_SkipUndetected(t *testing.T) {
	acc := session.New()
	acc.Start()
	p := newPipeline(t, pose.NewMock(), nil)
	p.SkipUndetected = true

	res, err := p.ProcessFrame(context.Background(), testFrame(1), acc)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if res.Counted {
		t.Error("Counted: expected undetected frame to be skipped")
	}
	if st := acc.Status(); st.Total() != 0 {
		t.Errorf("counters: got total %d, want 0", st.Total())
	}
}

func TestProcessFrame_SlouchIsRecordedAndAnnotated(t *testing.T) {
	acc := session.New()
	acc.Start()
	r := &recordingRenderer{}
	p := newPipeline(t, pose.NewStaticMock(slouchPose(t)), r)

	res, err := p.ProcessFrame(context.Background(), testFrame(1), acc)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}

	if !res.Detected || !res.Verdict.Slouching {
		t.Errorf("expected detected slouch, got %+v", res)
	}
	if st := acc.Status(); st.BadFrames != 1 {
		t.Errorf("BadFrames: got %d, want 1", st.BadFrames)
	}
	if string(res.Frame.JPEG) != "annotated" {
		t.Errorf("frame should carry the renderer output, got %q", res.Frame.JPEG)
	}

	if len(r.annotations) != 1 {
		t.Fatalf("renderer called %d times, want 1", len(r.annotations))
	}
	a := r.annotations[0]
	if a.NeckAngle != res.Verdict.NeckAngle || a.ShoulderDiff != res.Verdict.ShoulderDiff {
		t.Errorf("annotation values %+v do not match verdict %+v", a, res.Verdict)
	}
	if a.Landmarks == nil || a.Width != 640 || a.Height != 480 {
		t.Errorf("annotation missing landmarks or frame size: %+v", a)
	}
}

func TestProcessFrame_GoodPosture(t *testing.T) {
	acc := session.New()
	acc.Start()
	p := newPipeline(t, pose.NewStaticMock(uprightPose(t)), &recordingRenderer{})

	res, err := p.ProcessFrame(context.Background(), testFrame(1), acc)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if res.Verdict.Slouching || len(res.Verdict.Reasons) != 0 {
		t.Errorf("upright pose classified as %+v", res.Verdict)
	}
	if st := acc.Status(); st.GoodFrames != 1 {
		t.Errorf("GoodFrames: got %d, want 1", st.GoodFrames)
	}
}

func TestProcessFrame_DetectorError(t *testing.T) {
	acc := session.New()
	acc.Start()

	boom := errors.New("model crashed")
	det := &pose.Mock{DetectFunc: func(ctx context.Context, f frame.Frame) (*pose.LandmarkSet, error) {
		return nil, boom
	}}
	p := newPipeline(t, det, nil)

	_, err := p.ProcessFrame(context.Background(), testFrame(4), acc)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped %v, got %v", boom, err)
	}
	if st := acc.Status(); st.Total() != 0 {
		t.Error("failed frame must not be counted")
	}
}

func TestProcessFrame_RendererError(t *testing.T) {
	acc := session.New()
	acc.Start()

	boom := errors.New("bad jpeg")
	p := newPipeline(t, pose.NewStaticMock(uprightPose(t)), &recordingRenderer{err: boom})

	if _, err := p.ProcessFrame(context.Background(), testFrame(1), acc); !errors.Is(err, boom) {
		t.Errorf("expected wrapped %v, got %v", boom, err)
	}
}

func TestProcessFrame_IdleRecorderDiscards(t *testing.T) {
	acc := session.New() // never started
	p := newPipeline(t, pose.NewStaticMock(slouchPose(t)), nil)

	res, err := p.ProcessFrame(context.Background(), testFrame(1), acc)
	if err != nil {
		t.Fatalf("ProcessFrame: %v", err)
	}
	if res.Counted {
		t.Error("frame processed while idle should not be counted")
	}
	if !res.Verdict.Slouching {
		t.Error("verdict should still be computed for display")
	}
}

func TestAnnotation_Lines(t *testing.T) {
	tests := []struct {
		name string
		a    Annotation
		want []string
	}{
		{
			name: "no warnings",
			a:    Annotation{NeckAngle: 80.9, ShoulderDiff: 5.2},
			want: []string{"Neck Angle: 80", "Shoulder Diff: 5"},
		},
		{
			name: "both warnings in order",
			a: Annotation{
				NeckAngle:    50.4,
				ShoulderDiff: 31.7,
				Warnings:     []string{posture.ReasonNeckForward, posture.ReasonShouldersUneven},
			},
			want: []string{
				"Neck Angle: 50",
				"Shoulder Diff: 31",
				"Warning: Neck bent forward",
				"Warning: Shoulders uneven",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Lines(); !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Lines: got %q, want %q", got, tc.want)
			}
		})
	}
}
