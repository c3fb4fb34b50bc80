// Package mediapipe runs the MediaPipe pose model in a Python worker process.
package mediapipe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/frame"
	"github.com/teslashibe/go-posture/pkg/pose"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrWorker wraps an error reported by the worker itself.
var ErrWorker = errors.New("mediapipe: worker error")

// Config configures the worker process.
type Config struct {
	Python        string  // Interpreter, e.g. "python3"
	Script        string  // Path to pose_worker.py
	MinVisibility float64 // Landmarks below this visibility are dropped
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Python: "python3",
		Script: "python/pose_worker.py",
	}
}

// response is one worker reply.
type response struct {
	Landmarks map[string]pose.Keypoint `json:"landmarks"`
	Error     string                   `json:"error,omitempty"`
}

// Detector implements pose.Detector on top of a worker process.
// Calls are serialized; the worker handles one frame at a time.
type Detector struct {
	cfg Config

	mu     sync.Mutex
	w      *worker
	closed bool
}

// New starts the worker.
func New(cfg Config) (*Detector, error) {
	if _, err := os.Stat(cfg.Script); err != nil {
		return nil, fmt.Errorf("%w: %s", pose.ErrModelNotFound, cfg.Script)
	}

	w, err := startWorker(cfg.Python, cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("mediapipe: %w", err)
	}

	log.Info("pose worker started", "script", cfg.Script, "pid", w.cmd.Process.Pid)
	return &Detector{cfg: cfg, w: w}, nil
}

// Detect sends the frame to the worker and parses its landmarks.
// Cancelling ctx mid-request kills the worker; later calls return
// pose.ErrClosed.
func (d *Detector) Detect(ctx context.Context, f frame.Frame) (*pose.LandmarkSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, pose.ErrClosed
	}
	if f.Empty() {
		return nil, fmt.Errorf("%w: empty frame %d", pose.ErrDecode, f.Index)
	}

	type reply struct {
		body []byte
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		body, err := d.w.communicate(f.JPEG)
		done <- reply{body, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			d.closed = true
			logs := d.w.close()
			if logs != "" {
				log.Error("pose worker crashed", "stderr", logs)
			}
			return nil, fmt.Errorf("mediapipe: worker: %w", r.err)
		}
		return parseResponse(r.body, d.cfg.MinVisibility)

	case <-ctx.Done():
		d.closed = true
		d.w.kill()
		<-done
		d.w.close()
		return nil, ctx.Err()
	}
}

// Close stops the worker. Safe to call more than once.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.w.close()
	log.Info("pose worker stopped")
	return nil
}

// parseResponse decodes a worker reply.
// A null or incomplete landmark map is no detection, not an error.
func parseResponse(body []byte, minVisibility float64) (*pose.LandmarkSet, error) {
	var resp response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("mediapipe: bad reply: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrWorker, resp.Error)
	}
	if len(resp.Landmarks) == 0 {
		return nil, nil
	}

	points := make(map[pose.Landmark]pose.Keypoint, len(resp.Landmarks))
	for name, kp := range resp.Landmarks {
		l, ok := pose.ParseLandmark(name)
		if !ok {
			continue
		}
		if kp.Visibility < minVisibility {
			continue
		}
		points[l] = kp
	}

	set, ok := pose.NewLandmarkSet(points)
	if !ok {
		return nil, nil
	}
	return set, nil
}

var _ pose.Detector = (*Detector)(nil)
