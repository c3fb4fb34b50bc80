// Package pipeline runs pose detection, classification and accounting for
// each captured frame.
package pipeline

import (
	"context"
	"fmt"

	"github.com/teslashibe/go-posture/pkg/frame"
	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/posture"
)

// Recorder receives one verdict per processed frame.
// *session.Accumulator and session.Bound implement it.
type Recorder interface {
	RecordFrame(v posture.Verdict) bool
}

// Renderer draws an annotation onto a frame and returns the new image.
type Renderer interface {
	Annotate(f frame.Frame, a Annotation) (frame.Frame, error)
}

// Annotation is what the renderer should draw for one frame.
type Annotation struct {
	NeckAngle    float64
	ShoulderDiff float64
	Warnings     []string
	Landmarks    *pose.LandmarkSet
	Width        int
	Height       int
}

// Lines returns the overlay text top to bottom: angle label, diff label,
// then one line per warning.
func (a Annotation) Lines() []string {
	lines := make([]string, 0, 2+len(a.Warnings))
	lines = append(lines,
		fmt.Sprintf("Neck Angle: %d", int(a.NeckAngle)),
		fmt.Sprintf("Shoulder Diff: %d", int(a.ShoulderDiff)),
	)
	for _, w := range a.Warnings {
		lines = append(lines, "Warning: "+w)
	}
	return lines
}

// Result describes one processed frame.
type Result struct {
	Frame    frame.Frame     // Annotated when a pose was detected
	Detected bool            // A complete pose was found
	Verdict  posture.Verdict // Zero value when nothing was detected
	Counted  bool            // The recorder accepted the verdict
}

// Pipeline wires the per-frame collaborators together.
type Pipeline struct {
	Detector   pose.Detector
	Classifier *posture.Classifier
	Renderer   Renderer // Optional; frames pass through unannotated when nil

	// SkipUndetected stops frames without a pose from being counted.
	// By default they count as good frames, since only a confirmed slouch
	// is bad.
	SkipUndetected bool
}

// New creates a pipeline.
func New(det pose.Detector, cls *posture.Classifier, r Renderer) *Pipeline {
	return &Pipeline{
		Detector:   det,
		Classifier: cls,
		Renderer:   r,
	}
}

// ProcessFrame detects, classifies, records and annotates one frame.
// Detector and renderer errors are returned; the caller decides whether the
// session continues.
func (p *Pipeline) ProcessFrame(ctx context.Context, f frame.Frame, rec Recorder) (Result, error) {
	res := Result{Frame: f}

	set, err := p.Detector.Detect(ctx, f)
	if err != nil {
		return res, fmt.Errorf("detect frame %d: %w", f.Index, err)
	}

	if set == nil {
		if !p.SkipUndetected {
			res.Counted = rec.RecordFrame(posture.Verdict{})
		}
		return res, nil
	}

	res.Detected = true
	res.Verdict = p.Classifier.Classify(set, f.Width, f.Height)
	res.Counted = rec.RecordFrame(res.Verdict)

	if p.Renderer == nil {
		return res, nil
	}

	annotated, err := p.Renderer.Annotate(f, Annotation{
		NeckAngle:    res.Verdict.NeckAngle,
		ShoulderDiff: res.Verdict.ShoulderDiff,
		Warnings:     res.Verdict.Reasons,
		Landmarks:    set,
		Width:        f.Width,
		Height:       f.Height,
	})
	if err != nil {
		return res, fmt.Errorf("annotate frame %d: %w", f.Index, err)
	}
	res.Frame = annotated
	return res, nil
}
