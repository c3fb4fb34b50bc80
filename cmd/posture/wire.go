package main

import (
	"fmt"

	"github.com/teslashibe/go-posture/internal/config"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/camera"
	"github.com/teslashibe/go-posture/pkg/pipeline"
	"github.com/teslashibe/go-posture/pkg/pose"
	"github.com/teslashibe/go-posture/pkg/pose/mediapipe"
	"github.com/teslashibe/go-posture/pkg/pose/movenet"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/render"
)

func newDetector(s config.Settings) (pose.Detector, error) {
	switch s.PoseBackend {
	case config.BackendMoveNet:
		cfg := pose.DefaultConfig()
		cfg.ModelPath = s.PoseModel
		return movenet.New(cfg)
	case config.BackendMediaPipe:
		return mediapipe.New(mediapipeConfig(s))
	}
	return nil, fmt.Errorf("unknown pose backend %q", s.PoseBackend)
}

func mediapipeConfig(s config.Settings) mediapipe.Config {
	cfg := mediapipe.DefaultConfig()
	cfg.Python = s.PythonBin
	cfg.Script = s.WorkerScript
	cfg.MinVisibility = s.MinVisibility
	return cfg
}

// newPipeline builds the frame pipeline. Close the returned detector when
// done.
func newPipeline(s config.Settings, annotate bool) (*pipeline.Pipeline, pose.Detector, error) {
	cls, err := posture.NewClassifier(posture.Thresholds{
		NeckAngleMin:    s.NeckAngleMin,
		ShoulderDiffMax: s.ShoulderDiffMax,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("thresholds: %w", err)
	}
	cls.OnChange = func(t posture.Thresholds) {
		log.Debug("classifier thresholds changed", "neck_angle_min", t.NeckAngleMin, "shoulder_diff_max", t.ShoulderDiffMax)
	}

	det, err := newDetector(s)
	if err != nil {
		return nil, nil, err
	}

	var r pipeline.Renderer
	if annotate {
		style := render.DefaultStyle()
		style.Quality = s.JPEGQuality
		r = render.New(style)
	}

	p := pipeline.New(det, cls, r)
	p.SkipUndetected = s.SkipUndetected
	return p, det, nil
}

func cameraConfig(s config.Settings) camera.Config {
	cfg := camera.DefaultConfig()
	cfg.Device = s.Camera
	cfg.Width = s.CameraWidth
	cfg.Height = s.CameraHeight
	cfg.Quality = s.JPEGQuality
	return cfg
}
