package video

import "bytes"

// H264 NAL unit types
const (
	nalSlice = 1
	nalIDR   = 5
	nalSPS   = 7
	nalPPS   = 8
)

var startCode = []byte{0x00, 0x00, 0x00, 0x01}

// gop buffers Annex-B NAL units from the latest keyframe onwards, so a
// one-shot decoder always sees a decodable stream.
type gop struct {
	sps, pps []byte
	buf      bytes.Buffer
	keyed    bool
	lastType byte
	maxBytes int
}

func newGOP(maxBytes int) *gop {
	return &gop{maxBytes: maxBytes}
}

// add appends depacketized Annex-B data.
func (g *gop) add(annexB []byte) {
	for _, nal := range splitNALs(annexB) {
		t := nal[0] & 0x1F
		switch t {
		case nalSPS:
			g.sps = append(g.sps[:0], nal...)
		case nalPPS:
			g.pps = append(g.pps[:0], nal...)
		case nalIDR:
			if g.lastType != nalIDR {
				g.reset()
			}
			g.write(nal)
		default:
			if g.keyed {
				g.write(nal)
			}
		}
		g.lastType = t
	}

	if g.buf.Len() > g.maxBytes {
		g.buf.Reset()
		g.keyed = false
	}
}

// reset starts a new group with the current parameter sets.
func (g *gop) reset() {
	g.buf.Reset()
	if g.sps != nil {
		g.write(g.sps)
	}
	if g.pps != nil {
		g.write(g.pps)
	}
	g.keyed = true
}

func (g *gop) write(nal []byte) {
	g.buf.Write(startCode)
	g.buf.Write(nal)
}

// snapshot copies the buffered stream, or nil before the first keyframe.
func (g *gop) snapshot() []byte {
	if !g.keyed || g.buf.Len() == 0 {
		return nil
	}
	out := make([]byte, g.buf.Len())
	copy(out, g.buf.Bytes())
	return out
}

// splitNALs splits Annex-B data on 3- or 4-byte start codes.
func splitNALs(data []byte) [][]byte {
	var nals [][]byte
	start := -1
	for i := 0; i+2 < len(data); i++ {
		if data[i] != 0 || data[i+1] != 0 || data[i+2] != 1 {
			continue
		}
		if start >= 0 {
			end := i
			if end > start && data[end-1] == 0 {
				end--
			}
			if end > start {
				nals = append(nals, data[start:end])
			}
		}
		start = i + 3
		i += 2
	}
	if start >= 0 && start < len(data) {
		nals = append(nals, data[start:])
	}
	return nals
}
