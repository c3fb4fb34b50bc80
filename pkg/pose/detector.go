package pose

import (
	"context"

	"github.com/teslashibe/go-posture/pkg/frame"
)

// Detector is the interface for pose estimation backends.
type Detector interface {
	// Detect locates body landmarks in the frame.
	// It returns nil, nil when no complete pose is found.
	Detect(ctx context.Context, f frame.Frame) (*LandmarkSet, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration shared by backends.
type Config struct {
	ModelPath     string  // Model file or worker script
	MinConfidence float64 // Below this overall score the frame has no detection
	InputWidth    int     // Model input width (in-process backends)
	InputHeight   int     // Model input height (in-process backends)
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		ModelPath:     "models/movenet_singlepose_lightning.onnx",
		MinConfidence: 0.3,
		InputWidth:    192,
		InputHeight:   192,
	}
}
