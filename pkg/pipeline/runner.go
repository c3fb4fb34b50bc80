package pipeline

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/frame"
)

// SessionRecorder is a Recorder that knows whether its session is still live.
type SessionRecorder interface {
	Recorder
	Running() bool
}

// StopReason says why a Runner returned.
type StopReason int

const (
	// StoppedIdle means the session was stopped from the control path.
	StoppedIdle StopReason = iota
	// StoppedEndOfStream means the source ran out of frames.
	StoppedEndOfStream
	// StoppedCancelled means the context was cancelled.
	StoppedCancelled
	// StoppedError means detection, rendering or capture failed.
	StoppedError
)

// String returns a short name for logs.
func (r StopReason) String() string {
	switch r {
	case StoppedIdle:
		return "idle"
	case StoppedEndOfStream:
		return "end_of_stream"
	case StoppedCancelled:
		return "cancelled"
	default:
		return "error"
	}
}

// Runner drives a pipeline over a frame source, one frame at a time.
type Runner struct {
	Pipeline *Pipeline

	// MaxFPS caps processing rate; 0 runs as fast as the detector allows.
	MaxFPS float64

	// OnFrame is called after every processed frame
	OnFrame func(Result)
}

// Run processes frames until the recorder's session stops, the source is
// exhausted, ctx is cancelled, or a step fails. The returned error is nil
// unless the reason is StoppedError.
func (r *Runner) Run(ctx context.Context, src frame.Source, rec SessionRecorder) (StopReason, error) {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if r.MaxFPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.MaxFPS), 1)
	}

	processed := 0
	for {
		if !rec.Running() {
			log.Debug("runner: session idle", "frames", processed)
			return StoppedIdle, nil
		}

		if err := limiter.Wait(ctx); err != nil {
			return StoppedCancelled, nil
		}

		f, err := src.NextFrame(ctx)
		switch {
		case frame.IsEndOfStream(err):
			log.Info("runner: source exhausted", "frames", processed)
			return StoppedEndOfStream, nil
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return StoppedCancelled, nil
		case err != nil:
			return StoppedError, err
		}

		res, err := r.Pipeline.ProcessFrame(ctx, f, rec)
		if err != nil {
			if ctx.Err() != nil {
				return StoppedCancelled, nil
			}
			return StoppedError, err
		}
		processed++

		if r.OnFrame != nil {
			r.OnFrame(res)
		}
	}
}
