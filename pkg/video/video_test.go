package video

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-posture/pkg/frame"
)

func TestParseWelcome(t *testing.T) {
	id, err := parseWelcome([]byte(`{"type":"welcome","peerId":"abc-123"}`))
	if err != nil || id != "abc-123" {
		t.Errorf("parseWelcome: got (%q, %v), want abc-123", id, err)
	}

	if _, err := parseWelcome([]byte(`{"type":"list"}`)); err == nil {
		t.Error("expected error for non-welcome message")
	}
	if _, err := parseWelcome([]byte(`{"type":"welcome"}`)); err == nil {
		t.Error("expected error for missing peer id")
	}
}

func TestFindProducer(t *testing.T) {
	msg := []byte(`{"type":"list","producers":[
		{"id":"p1","meta":{"name":"other"}},
		{"id":"p2","meta":{"name":"reachymini"}}
	]}`)

	id, err := findProducer(msg, "reachymini")
	if err != nil || id != "p2" {
		t.Errorf("findProducer: got (%q, %v), want p2", id, err)
	}

	if _, err := findProducer(msg, "desk-cam"); err == nil {
		t.Error("expected error for unknown producer")
	}
}

func TestPeerMessage_RoundTrip(t *testing.T) {
	mid := "0"
	line := uint16(0)
	out := iceMessage("s1", webrtc.ICECandidateInit{Candidate: "candidate:1", SDPMid: &mid, SDPMLineIndex: &line})

	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	in, err := parsePeer(data)
	if err != nil {
		t.Fatalf("parsePeer: %v", err)
	}
	if in.Type != msgPeer || in.SessionID != "s1" || in.ICE == nil {
		t.Fatalf("parsePeer: got %+v", in)
	}
	got := in.ICE.init()
	if got.Candidate != "candidate:1" || *got.SDPMid != "0" || *got.SDPMLineIndex != 0 {
		t.Errorf("ICE: got %+v", got)
	}
	if in.SDP != nil {
		t.Error("ICE message should carry no SDP")
	}
}

func TestParsePeer_Offer(t *testing.T) {
	p, err := parsePeer([]byte(`{"type":"peer","sessionId":"s1","sdp":{"type":"offer","sdp":"v=0"}}`))
	if err != nil {
		t.Fatalf("parsePeer: %v", err)
	}
	if p.SDP == nil || p.SDP.Type != "offer" || p.SDP.SDP != "v=0" {
		t.Errorf("SDP: got %+v", p.SDP)
	}

	ans := sdpMessage("s1", webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0"})
	if ans.SDP.Type != "answer" {
		t.Errorf("answer type: got %q", ans.SDP.Type)
	}
}

func nal(typ byte, body ...byte) []byte {
	return append([]byte{0, 0, 0, 1, typ}, body...)
}

func TestSplitNALs(t *testing.T) {
	data := append(nal(0x67, 1, 2), append([]byte{0, 0, 1, 0x68, 3}, nal(0x65, 4, 5, 6)...)...)

	nals := splitNALs(data)
	if len(nals) != 3 {
		t.Fatalf("splitNALs: got %d NALs, want 3", len(nals))
	}
	want := [][]byte{{0x67, 1, 2}, {0x68, 3}, {0x65, 4, 5, 6}}
	for i := range want {
		if !bytes.Equal(nals[i], want[i]) {
			t.Errorf("NAL %d: got %x, want %x", i, nals[i], want[i])
		}
	}
}

func TestGOP(t *testing.T) {
	g := newGOP(1 << 20)

	// Slices before the first keyframe are useless to a one-shot decoder.
	g.add(nal(0x41, 9))
	if g.snapshot() != nil {
		t.Error("snapshot before keyframe should be nil")
	}

	g.add(nal(0x67, 1))
	g.add(nal(0x68, 2))
	g.add(nal(0x65, 3))
	g.add(nal(0x65, 4)) // second slice of the same IDR frame
	g.add(nal(0x41, 5))

	snap := g.snapshot()
	nals := splitNALs(snap)
	types := make([]byte, len(nals))
	for i, n := range nals {
		types[i] = n[0] & 0x1F
	}
	want := []byte{nalSPS, nalPPS, nalIDR, nalIDR, nalSlice}
	if !bytes.Equal(types, want) {
		t.Errorf("GOP NAL types: got %v, want %v", types, want)
	}

	// A new keyframe restarts the group with the stored parameter sets.
	g.add(nal(0x65, 6))
	nals = splitNALs(g.snapshot())
	if len(nals) != 3 || nals[2][1] != 6 {
		t.Errorf("after new IDR: got %d NALs %x", len(nals), nals)
	}
}

func TestGOP_Overflow(t *testing.T) {
	g := newGOP(16)
	g.add(nal(0x65, make([]byte, 32)...))

	if g.snapshot() != nil {
		t.Error("oversized group should be dropped until the next keyframe")
	}
}

func testJPEG(t *testing.T, c color.Color, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestLastJPEG(t *testing.T) {
	a := testJPEG(t, color.RGBA{200, 10, 10, 255}, 120)
	b := testJPEG(t, color.RGBA{10, 200, 10, 255}, 120)

	stream := append(append([]byte{}, a...), b...)
	if got := lastJPEG(stream); !bytes.Equal(got, b) {
		t.Errorf("lastJPEG returned %d bytes, want the second image (%d bytes)", len(got), len(b))
	}

	if lastJPEG([]byte("no markers here")) != nil {
		t.Error("lastJPEG without markers should be nil")
	}
}

func TestIsGrayJPEG(t *testing.T) {
	tests := []struct {
		name string
		img  []byte
		want bool
	}{
		{"colorful", testJPEG(t, color.RGBA{200, 60, 30, 255}, 160), false},
		{"black", testJPEG(t, color.RGBA{0, 0, 0, 255}, 160), true},
		{"mid gray", testJPEG(t, color.RGBA{128, 128, 128, 255}, 160), true},
		{"too small", testJPEG(t, color.RGBA{200, 60, 30, 255}, 50), true},
		{"corrupt", []byte{0xFF, 0xD8, 0xFF, 0x00}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := isGrayJPEG(tc.img); got != tc.want {
				t.Errorf("isGrayJPEG: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestDecoder_ShortInput(t *testing.T) {
	img, err := NewDecoder().Decode(context.Background(), []byte{0, 0, 0, 1})
	if img != nil || err != nil {
		t.Errorf("Decode: got (%v, %v), want (nil, nil)", img, err)
	}
}

func TestLatest_ReplacesUnread(t *testing.T) {
	ch := make(chan frame.Frame, 1)
	latest(ch, frame.Frame{Index: 1})
	latest(ch, frame.Frame{Index: 2})

	if f := <-ch; f.Index != 2 {
		t.Errorf("latest: got frame %d, want 2", f.Index)
	}
}

func TestClient_NextFrameAfterClose(t *testing.T) {
	c := &Client{
		frames: make(chan frame.Frame, 1),
		done:   make(chan struct{}),
	}
	latest(c.frames, frame.Frame{Index: 7})

	f, err := c.NextFrame(context.Background())
	if err != nil || f.Index != 7 {
		t.Fatalf("NextFrame: got (%d, %v), want 7", f.Index, err)
	}

	c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.NextFrame(ctx); !frame.IsEndOfStream(err) {
		t.Errorf("NextFrame after Close: got %v, want end of stream", err)
	}
}
