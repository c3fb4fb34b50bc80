// Package movenet runs a MoveNet single-pose ONNX model in process with
// OpenCV DNN.
package movenet

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/frame"
	"github.com/teslashibe/go-posture/pkg/pose"
)

// MoveNet emits 17 COCO keypoints as (y, x, score) triples.
const (
	numKeypoints = 17
	stride       = 3
)

// cocoIndex maps COCO keypoint positions to tracked landmarks.
var cocoIndex = map[int]pose.Landmark{
	0:  pose.Nose,
	3:  pose.LeftEar,
	4:  pose.RightEar,
	5:  pose.LeftShoulder,
	6:  pose.RightShoulder,
	11: pose.LeftHip,
	12: pose.RightHip,
}

// Detector implements pose.Detector with gocv.
// The model must take an NCHW float blob of InputWidth x InputHeight RGB
// pixels in 0-255 and output [1,1,17,3].
type Detector struct {
	net       gocv.Net
	config    pose.Config
	mu        sync.Mutex
	inputSize image.Point
	closed    bool
}

// New loads the ONNX model.
func New(cfg pose.Config) (*Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", pose.ErrModelNotFound, cfg.ModelPath)
	}

	net := gocv.ReadNetFromONNX(cfg.ModelPath)
	if net.Empty() {
		return nil, fmt.Errorf("movenet: failed to load model from %s", cfg.ModelPath)
	}

	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	log.Info("movenet model loaded", "path", cfg.ModelPath, "input", fmt.Sprintf("%dx%d", cfg.InputWidth, cfg.InputHeight))

	return &Detector{
		net:       net,
		config:    cfg,
		inputSize: image.Pt(cfg.InputWidth, cfg.InputHeight),
	}, nil
}

// Detect runs the model on one frame.
func (d *Detector) Detect(ctx context.Context, f frame.Frame) (*pose.LandmarkSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, pose.ErrClosed
	}

	img, err := gocv.IMDecode(f.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("%w %d: %v", pose.ErrDecode, f.Index, err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, fmt.Errorf("%w %d: empty image", pose.ErrDecode, f.Index)
	}

	blob := gocv.BlobFromImage(img, 1.0, d.inputSize, gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("movenet: read output: %w", err)
	}

	set := parseKeypoints(data, d.config.MinConfidence)
	if set == nil {
		log.Debug("movenet no pose", "frame", f.Index)
	}
	return set, nil
}

// Close releases the network. Safe to call more than once.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.net.Close()
}

// parseKeypoints converts raw model output into a landmark set.
// Keypoints scoring below minScore are dropped; a set missing any required
// landmark is no detection.
func parseKeypoints(data []float32, minScore float64) *pose.LandmarkSet {
	if len(data) < numKeypoints*stride {
		return nil
	}

	points := make(map[pose.Landmark]pose.Keypoint, len(cocoIndex))
	for i, l := range cocoIndex {
		y := float64(data[i*stride])
		x := float64(data[i*stride+1])
		score := float64(data[i*stride+2])
		if score < minScore {
			continue
		}
		points[l] = pose.Keypoint{X: x, Y: y, Visibility: score}
	}

	set, ok := pose.NewLandmarkSet(points)
	if !ok {
		return nil
	}
	return set
}

var _ pose.Detector = (*Detector)(nil)
