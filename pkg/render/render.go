// Package render draws posture diagnostics onto frames with OpenCV.
package render

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-posture/pkg/frame"
	"github.com/teslashibe/go-posture/pkg/pipeline"
	"github.com/teslashibe/go-posture/pkg/pose"
)

// Style controls overlay layout and colors.
type Style struct {
	Origin      image.Point // Position of the first text line
	LineHeight  int         // Pixels between text lines
	FontScale   float64
	Thickness   int
	WarnWeight  int // Thickness of warning lines
	Label       color.RGBA
	Warning     color.RGBA
	Skeleton    color.RGBA
	Joint       color.RGBA
	JointRadius int
	Quality     int // JPEG quality 1-100
}

// DefaultStyle returns the classic green-labels, red-warnings overlay.
func DefaultStyle() Style {
	return Style{
		Origin:      image.Pt(30, 50),
		LineHeight:  40,
		FontScale:   1,
		Thickness:   2,
		WarnWeight:  3,
		Label:       color.RGBA{0, 255, 0, 0},
		Warning:     color.RGBA{255, 0, 0, 0},
		Skeleton:    color.RGBA{245, 117, 66, 0},
		Joint:       color.RGBA{245, 66, 230, 0},
		JointRadius: 4,
		Quality:     80,
	}
}

// Renderer implements pipeline.Renderer using gocv.
type Renderer struct {
	style Style
	mu    sync.Mutex // Serializes Mat allocation for concurrent callers
}

// New creates a renderer.
func New(style Style) *Renderer {
	return &Renderer{style: style}
}

// Annotate decodes the frame, draws the skeleton and text lines, and
// re-encodes it as JPEG.
func (r *Renderer) Annotate(f frame.Frame, a pipeline.Annotation) (frame.Frame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	img, err := gocv.IMDecode(f.JPEG, gocv.IMReadColor)
	if err != nil {
		return f, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return f, fmt.Errorf("empty image")
	}

	if a.Landmarks != nil {
		r.drawSkeleton(&img, a.Landmarks)
	}
	r.drawLines(&img, a)

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{gocv.IMWriteJpegQuality, r.style.Quality})
	if err != nil {
		return f, fmt.Errorf("encode image: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return f.WithJPEG(data), nil
}

// drawLines writes labels first, then warnings, one per line.
func (r *Renderer) drawLines(img *gocv.Mat, a pipeline.Annotation) {
	labels := 2
	for i, line := range a.Lines() {
		pt := image.Pt(r.style.Origin.X, r.style.Origin.Y+i*r.style.LineHeight)
		c, thick := r.style.Label, r.style.Thickness
		if i >= labels {
			c, thick = r.style.Warning, r.style.WarnWeight
		}
		gocv.PutText(img, line, pt, gocv.FontHersheySimplex, r.style.FontScale, bgr(c), thick)
	}
}

func (r *Renderer) drawSkeleton(img *gocv.Mat, set *pose.LandmarkSet) {
	w, h := img.Cols(), img.Rows()

	for _, pair := range pose.Connections {
		if !set.Has(pair[0]) || !set.Has(pair[1]) {
			continue
		}
		gocv.Line(img, pixel(set, pair[0], w, h), pixel(set, pair[1], w, h), bgr(r.style.Skeleton), r.style.Thickness)
	}

	for i := 0; i < pose.NumLandmarks; i++ {
		l := pose.Landmark(i)
		if !set.Has(l) {
			continue
		}
		gocv.Circle(img, pixel(set, l, w, h), r.style.JointRadius, bgr(r.style.Joint), -1)
	}
}

func pixel(set *pose.LandmarkSet, l pose.Landmark, w, h int) image.Point {
	p := set.Point(l, w, h)
	return image.Pt(int(p.X), int(p.Y))
}

// bgr swaps channels: OpenCV Mats are BGR.
func bgr(c color.RGBA) color.RGBA {
	return color.RGBA{R: c.B, G: c.G, B: c.R, A: c.A}
}

var _ pipeline.Renderer = (*Renderer)(nil)
