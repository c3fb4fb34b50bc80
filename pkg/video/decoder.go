package video

import (
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"os/exec"
	"time"
)

// JPEG markers
var (
	jpegSOI = []byte{0xFF, 0xD8, 0xFF}
	jpegEOI = []byte{0xFF, 0xD9}
)

// Decoder turns buffered H264 (Annex-B) into a JPEG using ffmpeg pipes.
type Decoder struct {
	Binary  string        // ffmpeg executable
	Timeout time.Duration // Per-decode limit
	Quality int           // ffmpeg -q:v, 2-31, lower is better
}

// NewDecoder returns a decoder with production defaults.
func NewDecoder() *Decoder {
	return &Decoder{
		Binary:  "ffmpeg",
		Timeout: 500 * time.Millisecond,
		Quality: 3,
	}
}

// Decode decodes every frame in h264 and returns the last one.
// It returns nil, nil when the data does not yet hold a usable frame.
func (d *Decoder) Decode(ctx context.Context, h264 []byte) ([]byte, error) {
	if len(h264) < 100 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, d.Binary,
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", fmt.Sprint(d.Quality),
		"pipe:1",
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdin = bytes.NewReader(h264)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, nil
		}
		// Partial GOPs make ffmpeg exit non-zero; keep whatever it produced.
		if stdout.Len() == 0 {
			return nil, nil
		}
	}

	img := lastJPEG(stdout.Bytes())
	if img == nil || isGrayJPEG(img) {
		return nil, nil
	}
	return img, nil
}

// lastJPEG returns the final complete JPEG in a concatenated stream.
func lastJPEG(stream []byte) []byte {
	end := bytes.LastIndex(stream, jpegEOI)
	if end < 0 {
		return nil
	}
	end += len(jpegEOI)

	start := bytes.LastIndex(stream[:end], jpegSOI)
	if start < 0 {
		return nil
	}

	out := make([]byte, end-start)
	copy(out, stream[start:end])
	return out
}

// isGrayJPEG checks if a JPEG is likely gray/corrupt.
// Decoders emit flat gray frames until they see a keyframe.
func isGrayJPEG(jpegData []byte) bool {
	img, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return true
	}

	bounds := img.Bounds()
	if bounds.Dx() < 100 || bounds.Dy() < 100 {
		return true
	}

	var rSum, gSum, bSum, samples int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += bounds.Dy() / 10 {
		for x := bounds.Min.X; x < bounds.Max.X; x += bounds.Dx() / 10 {
			r, g, b, _ := img.At(x, y).RGBA()
			rSum += int(r >> 8)
			gSum += int(g >> 8)
			bSum += int(b >> 8)
			samples++
		}
	}

	avgR := rSum / samples
	avgG := gSum / samples
	avgB := bSum / samples

	if avgR < 30 && avgG < 30 && avgB < 30 {
		return true
	}

	// Uniform mid gray
	colorDiff := abs(avgR-avgG) + abs(avgG-avgB) + abs(avgR-avgB)
	return colorDiff < 15 && avgR > 100 && avgR < 150
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
