package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-posture/pkg/frame"
)

// Sentinel errors
var (
	ErrOpen   = errors.New("camera: cannot open device")
	ErrClosed = errors.New("camera: capture closed")
)

// Capture is a frame.Source backed by an OpenCV VideoCapture.
// A failed read ends the stream for both devices and files.
type Capture struct {
	cfg  Config
	file bool

	mu     sync.Mutex
	vc     *gocv.VideoCapture
	img    gocv.Mat
	index  int
	closed bool
}

// Open starts capturing from cfg.Device.
func Open(cfg Config) (*Capture, error) {
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("camera: invalid config: %v", errs)
	}

	var (
		vc  *gocv.VideoCapture
		err error
	)
	idx, isDevice := cfg.DeviceIndex()
	if isDevice {
		vc, err = gocv.OpenVideoCapture(idx)
	} else {
		vc, err = gocv.VideoCaptureFile(cfg.Device)
	}
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrOpen, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w %q", ErrOpen, cfg.Device)
	}

	if isDevice {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
		vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))
	}

	return &Capture{
		cfg:  cfg,
		file: !isDevice,
		vc:   vc,
		img:  gocv.NewMat(),
	}, nil
}

// NextFrame reads, optionally mirrors, and JPEG-encodes the next frame.
func (c *Capture) NextFrame(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return frame.Frame{}, ErrClosed
	}

	if ok := c.vc.Read(&c.img); !ok || c.img.Empty() {
		return frame.Frame{}, frame.ErrEndOfStream
	}
	captured := time.Now()

	if c.cfg.Mirror {
		gocv.Flip(c.img, &c.img, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, c.img, []int{gocv.IMWriteJpegQuality, c.cfg.Quality})
	if err != nil {
		return frame.Frame{}, fmt.Errorf("camera: encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	c.index++
	return frame.Frame{
		Index:    c.index,
		JPEG:     data,
		Width:    c.img.Cols(),
		Height:   c.img.Rows(),
		Captured: captured,
	}, nil
}

// FrameCount returns the number of frames in a video file, or 0 for a
// live device or when the container does not report it.
func (c *Capture) FrameCount() int {
	if !c.file {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	n := c.vc.Get(gocv.VideoCaptureFrameCount)
	if n < 0 {
		return 0
	}
	return int(n)
}

// Config returns the configuration the capture was opened with.
func (c *Capture) Config() Config {
	return c.cfg
}

// Close releases the device. Safe to call more than once.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.img.Close()
	return c.vc.Close()
}

var _ frame.Source = (*Capture)(nil)
