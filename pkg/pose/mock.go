package pose

import (
	"context"
	"sync"

	"github.com/teslashibe/go-posture/pkg/frame"
)

// Mock implements Detector for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	DetectFunc func(ctx context.Context, f frame.Frame) (*LandmarkSet, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu     sync.Mutex
	frames []int
}

// NewMock creates a mock that never detects anyone.
func NewMock() *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, f frame.Frame) (*LandmarkSet, error) {
			return nil, nil
		},
	}
}

// NewStaticMock creates a mock that returns set for every frame.
func NewStaticMock(set *LandmarkSet) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, f frame.Frame) (*LandmarkSet, error) {
			return set, nil
		},
	}
}

// Detect implements Detector.
func (m *Mock) Detect(ctx context.Context, f frame.Frame) (*LandmarkSet, error) {
	m.mu.Lock()
	m.frames = append(m.frames, f.Index)
	m.mu.Unlock()

	if m.DetectFunc == nil {
		return nil, nil
	}
	return m.DetectFunc(ctx, f)
}

// Close implements Detector.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Calls returns the frame indexes Detect has seen, in order.
func (m *Mock) Calls() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.frames))
	copy(out, m.frames)
	return out
}

var _ Detector = (*Mock)(nil)
