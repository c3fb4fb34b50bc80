// Package monitor owns the posture session lifecycle: it opens the camera,
// runs the frame worker, and exposes start, stop and status to transports.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/frame"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/pipeline"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/session"
)

// OpenFunc opens the frame source for a new session.
type OpenFunc func(ctx context.Context) (frame.Source, error)

// Config wires the monitor's collaborators.
type Config struct {
	Pipeline *pipeline.Pipeline
	Open     OpenFunc
	MaxFPS   float64

	// Optional fan-out targets
	Frames *hub.Hub // Annotated JPEG per frame
	Stats  *hub.Hub // FrameEvent JSON per frame
}

// FrameEvent is published to stats subscribers after every frame.
type FrameEvent struct {
	SessionID string          `json:"session_id"`
	Frame     int             `json:"frame"`
	Detected  bool            `json:"detected"`
	Counted   bool            `json:"counted"`
	Verdict   posture.Verdict `json:"verdict"`
	Summary   session.Summary `json:"summary"`
}

// SessionEnd is published to stats subscribers when a worker exits.
type SessionEnd struct {
	SessionID string          `json:"session_id"`
	Reason    string          `json:"reason"`
	Error     string          `json:"error,omitempty"`
	Summary   session.Summary `json:"summary"`
}

// Monitor runs at most one frame worker at a time.
type Monitor struct {
	cfg Config
	acc *session.Accumulator

	startMu sync.Mutex // Serializes Start

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{} // Closed when the current worker has released its source
	lastErr error

	latestMu sync.RWMutex
	latest   frame.Frame
}

// New creates an idle monitor.
func New(cfg Config) *Monitor {
	done := make(chan struct{})
	close(done)
	return &Monitor{
		cfg:  cfg,
		acc:  session.New(),
		done: done,
	}
}

// Start opens the source and begins a session.
// While a session is running it returns that session's ID with
// started=false. A previous worker is given until ctx ends to release the
// camera before the source is reopened.
func (m *Monitor) Start(ctx context.Context) (id string, started bool, err error) {
	m.startMu.Lock()
	defer m.startMu.Unlock()

	if st := m.acc.Status(); st.State == session.Running {
		return st.SessionID, false, nil
	}

	select {
	case <-m.Done():
	case <-ctx.Done():
		return "", false, fmt.Errorf("monitor: previous session still releasing camera: %w", ctx.Err())
	}

	src, err := m.cfg.Open(ctx)
	if err != nil {
		return "", false, fmt.Errorf("monitor: open source: %w", err)
	}

	id, _ = m.acc.Start()

	// The worker outlives the request that started it.
	wctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.cancel = cancel
	m.done = done
	m.lastErr = nil
	m.mu.Unlock()

	m.setLatest(frame.Frame{})

	log.Info("session started", "session", id)
	go m.run(wctx, id, src, done)
	return id, true, nil
}

// Stop ends the running session and returns its summary. It does not wait
// for the worker; a frame already being processed is not counted.
// Stopping while idle returns the last session's summary.
func (m *Monitor) Stop() session.Summary {
	summary := m.acc.Stop()

	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		log.Info("session stopped",
			"good_frames", summary.GoodFrames,
			"bad_frames", summary.BadFrames,
			"good_pct", summary.GoodPct)
	}
	return summary
}

func (m *Monitor) run(ctx context.Context, id string, src frame.Source, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := src.Close(); err != nil {
			log.Warn("close source failed", "session", id, "error", err)
		}
	}()

	runner := pipeline.Runner{
		Pipeline: m.cfg.Pipeline,
		MaxFPS:   m.cfg.MaxFPS,
		OnFrame: func(r pipeline.Result) {
			m.publish(id, r)
		},
	}

	reason, err := runner.Run(ctx, src, m.acc.Bind(id))

	summary, ended := m.acc.StopSession(id)
	if !ended {
		summary = m.acc.Summary()
	}

	end := SessionEnd{SessionID: id, Reason: reason.String(), Summary: summary}
	if err != nil {
		end.Error = err.Error()
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		log.Error("session failed", "session", id, "error", err)
	} else if ended {
		log.Info("session ended", "session", id, "reason", reason.String())
	}

	if m.cfg.Stats != nil {
		if err := m.cfg.Stats.BroadcastJSON(end); err != nil {
			log.Warn("publish session end failed", "error", err)
		}
	}
}

func (m *Monitor) publish(id string, r pipeline.Result) {
	m.setLatest(r.Frame)

	if m.cfg.Frames != nil && !r.Frame.Empty() {
		m.cfg.Frames.BroadcastBinary(r.Frame.JPEG)
	}

	if m.cfg.Stats != nil {
		ev := FrameEvent{
			SessionID: id,
			Frame:     r.Frame.Index,
			Detected:  r.Detected,
			Counted:   r.Counted,
			Verdict:   r.Verdict,
			Summary:   m.acc.Status().Summary,
		}
		if err := m.cfg.Stats.BroadcastJSON(ev); err != nil {
			log.Warn("publish frame event failed", "error", err)
		}
	}
}

func (m *Monitor) setLatest(f frame.Frame) {
	m.latestMu.Lock()
	m.latest = f
	m.latestMu.Unlock()
}

// Latest returns the most recent processed frame of the current session.
func (m *Monitor) Latest() (frame.Frame, bool) {
	m.latestMu.RLock()
	defer m.latestMu.RUnlock()
	return m.latest, !m.latest.Empty()
}

// Running reports whether a session is active.
func (m *Monitor) Running() bool {
	return m.acc.Running()
}

// Status returns the accumulator's current view.
func (m *Monitor) Status() session.Status {
	return m.acc.Status()
}

// Done is closed once the current (or last) worker has exited.
func (m *Monitor) Done() <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.done
}

// Wait blocks until the current worker exits and returns its error, if any.
func (m *Monitor) Wait(ctx context.Context) error {
	select {
	case <-m.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.Err()
}

// Err returns the error that ended the last session, if any.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Classifier exposes the live classifier for threshold tuning.
func (m *Monitor) Classifier() *posture.Classifier {
	return m.cfg.Pipeline.Classifier
}

// Shutdown stops any session and waits up to timeout for the camera to
// be released.
func (m *Monitor) Shutdown(timeout time.Duration) error {
	m.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := m.Wait(ctx); errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("monitor: worker did not exit: %w", err)
	}
	return nil
}
