// Package frame defines captured video frames and the sources that produce them.
package frame

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrEndOfStream is returned by a Source when no more frames will arrive.
var ErrEndOfStream = io.EOF

// Frame is a single captured image.
type Frame struct {
	Index    int       // Position in the stream, starting at 1
	JPEG     []byte    // Encoded image
	Width    int       // Pixels
	Height   int       // Pixels
	Captured time.Time // Capture timestamp
}

// Empty reports whether the frame carries no image.
func (f Frame) Empty() bool {
	return len(f.JPEG) == 0
}

// WithJPEG returns a copy of f carrying different image bytes.
func (f Frame) WithJPEG(data []byte) Frame {
	f.JPEG = data
	return f
}

// Source produces frames one at a time.
type Source interface {
	// NextFrame blocks until a frame is available.
	// It returns ErrEndOfStream when the source is exhausted.
	NextFrame(ctx context.Context) (Frame, error)

	// Close releases the underlying device or connection.
	Close() error
}

// IsEndOfStream reports whether err signals source exhaustion.
func IsEndOfStream(err error) bool {
	return errors.Is(err, ErrEndOfStream)
}

// Slice is an in-memory Source, useful for tests and replays.
type Slice struct {
	frames []Frame
	next   int
	closed bool
}

// NewSlice creates a Source that yields frames in order, then ErrEndOfStream.
func NewSlice(frames ...Frame) *Slice {
	return &Slice{frames: frames}
}

// NextFrame implements Source.
func (s *Slice) NextFrame(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.closed || s.next >= len(s.frames) {
		return Frame{}, ErrEndOfStream
	}
	f := s.frames[s.next]
	s.next++
	if f.Index == 0 {
		f.Index = s.next
	}
	return f, nil
}

// Close implements Source.
func (s *Slice) Close() error {
	s.closed = true
	return nil
}
