package posture

import (
	"sync"

	"github.com/teslashibe/go-posture/pkg/pose"
)

// Classifier applies thresholds that can be changed at runtime.
type Classifier struct {
	thresholds Thresholds
	mu         sync.RWMutex

	// Callback when thresholds change
	OnChange func(t Thresholds)
}

// NewClassifier creates a classifier with the given thresholds.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t}, nil
}

// Classify classifies set against the current thresholds.
func (c *Classifier) Classify(set *pose.LandmarkSet, width, height int) Verdict {
	return Classify(set, width, height, c.Thresholds())
}

// Thresholds returns the current thresholds.
func (c *Classifier) Thresholds() Thresholds {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.thresholds
}

// SetThresholds replaces the thresholds after validating them.
func (c *Classifier) SetThresholds(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.thresholds = t
	callback := c.OnChange
	c.mu.Unlock()

	if callback != nil {
		callback(t)
	}
	return nil
}
