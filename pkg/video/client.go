// Package video receives a remote camera over WebRTC and exposes it as a
// frame source.
package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/jpeg"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/frame"
)

// ErrTimeout is returned when the remote camera never sends video.
var ErrTimeout = errors.New("video: timeout waiting for track")

// Config configures the remote camera connection.
type Config struct {
	Host           string        // Camera host; signalling is ws://Host:Port
	Port           int           // Signalling port
	Producer       string        // Producer name advertised in "meta.name"
	DecodeInterval time.Duration // Minimum time between decodes
	ConnectTimeout time.Duration // Limit for signalling and the first track
	MaxGOPBytes    int           // Buffered H264 before giving up on a group
}

// DefaultConfig returns defaults for a GStreamer webrtcsink camera.
func DefaultConfig(host string) Config {
	return Config{
		Host:           host,
		Port:           8443,
		Producer:       "reachymini",
		DecodeInterval: 100 * time.Millisecond,
		ConnectTimeout: 15 * time.Second,
		MaxGOPBytes:    8 << 20,
	}
}

// Client is a frame.Source fed by a WebRTC H264 track.
type Client struct {
	cfg Config
	dec *Decoder

	ws   *websocket.Conn
	wsMu sync.Mutex
	pc   *webrtc.PeerConnection

	peerID     string
	producerID string
	sessionMu  sync.Mutex
	sessionID  string

	trackReady chan struct{}
	pending    chan []byte      // GOP snapshots awaiting decode
	frames     chan frame.Frame // Latest decoded frame
	done       chan struct{}
	closeOnce  sync.Once
}

// Dial connects to the remote camera and waits for the video track.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	c := &Client{
		cfg:        cfg,
		dec:        NewDecoder(),
		trackReady: make(chan struct{}, 1),
		pending:    make(chan []byte, 1),
		frames:     make(chan frame.Frame, 1),
		done:       make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) connect(ctx context.Context) error {
	url := fmt.Sprintf("ws://%s:%d", c.cfg.Host, c.cfg.Port)
	log.Info("connecting to camera signalling", "url", url)

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("video: signalling connect: %w", err)
	}
	c.ws = ws

	msg, err := c.read(c.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("video: welcome: %w", err)
	}
	if c.peerID, err = parseWelcome(msg); err != nil {
		return fmt.Errorf("video: welcome: %w", err)
	}

	if err := c.send(envelope{Type: msgList}); err != nil {
		return fmt.Errorf("video: list producers: %w", err)
	}
	msg, err = c.read(c.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("video: list producers: %w", err)
	}
	if c.producerID, err = findProducer(msg, c.cfg.Producer); err != nil {
		return fmt.Errorf("video: %w", err)
	}
	log.Debug("found producer", "peer", c.peerID, "producer", c.producerID)

	if err := c.createPeerConnection(); err != nil {
		return fmt.Errorf("video: peer connection: %w", err)
	}
	if err := c.send(envelope{Type: msgStartSession, PeerID: c.producerID}); err != nil {
		return fmt.Errorf("video: start session: %w", err)
	}

	go c.handleSignalling()
	go c.decodeLoop()

	select {
	case <-c.trackReady:
		log.Info("video connected", "host", c.cfg.Host)
		return nil
	case <-c.done:
		return fmt.Errorf("video: connection closed during setup")
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.ConnectTimeout):
		return ErrTimeout
	}
}

func (c *Client) read(timeout time.Duration) ([]byte, error) {
	c.ws.SetReadDeadline(time.Now().Add(timeout))
	defer c.ws.SetReadDeadline(time.Time{})
	_, msg, err := c.ws.ReadMessage()
	return msg, err
}

func (c *Client) send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) createPeerConnection() error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return err
	}
	c.pc = pc

	if _, err = pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		return err
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		codec := track.Codec().MimeType
		log.Info("got track", "kind", track.Kind().String(), "codec", codec)
		if track.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		if codec != webrtc.MimeTypeH264 {
			log.Warn("unsupported video codec", "codec", codec)
			return
		}
		go c.handleVideoTrack(track)
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		c.sessionMu.Lock()
		sid := c.sessionID
		c.sessionMu.Unlock()
		if sid == "" {
			return
		}
		if err := c.send(iceMessage(sid, candidate.ToJSON())); err != nil {
			log.Warn("send ice candidate failed", "error", err)
		}
	})

	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		log.Debug("peer connection state", "state", state.String())
		switch state {
		case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
			c.shutdown()
		}
	})

	return nil
}

func (c *Client) handleSignalling() {
	defer c.shutdown()

	for {
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Warn("signalling error", "error", err)
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			log.Warn("bad signalling message", "error", err)
			continue
		}

		switch env.Type {
		case msgSessionStarted:
			c.sessionMu.Lock()
			c.sessionID = env.SessionID
			c.sessionMu.Unlock()
		case msgPeer:
			c.handlePeerMessage(msg)
		case msgEndSession:
			log.Info("camera ended session")
			return
		}
	}
}

func (c *Client) handlePeerMessage(msg []byte) {
	p, err := parsePeer(msg)
	if err != nil {
		log.Warn("bad peer message", "error", err)
		return
	}

	if p.SDP != nil && p.SDP.Type == "offer" {
		if err := c.answer(p.SessionID, p.SDP.SDP); err != nil {
			log.Error("sdp negotiation failed", "error", err)
		}
	}

	if p.ICE != nil {
		if err := c.pc.AddICECandidate(p.ICE.init()); err != nil {
			log.Warn("add ice candidate failed", "error", err)
		}
	}
}

func (c *Client) answer(sessionID, sdp string) error {
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}

	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}

	return c.send(sdpMessage(sessionID, answer))
}

// handleVideoTrack depacketizes RTP into a GOP buffer and hands snapshots
// to the decoder at most once per DecodeInterval.
func (c *Client) handleVideoTrack(track *webrtc.TrackRemote) {
	select {
	case c.trackReady <- struct{}{}:
	default:
	}

	var (
		depack     codecs.H264Packet
		group      = newGOP(c.cfg.MaxGOPBytes)
		lastDecode time.Time
	)

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			log.Debug("video track ended", "error", err)
			c.shutdown()
			return
		}

		nals, err := depack.Unmarshal(pkt.Payload)
		if err != nil || len(nals) == 0 {
			continue
		}
		group.add(nals)

		// Marker set on the last packet of an access unit
		if !pkt.Marker || time.Since(lastDecode) < c.cfg.DecodeInterval {
			continue
		}
		if snap := group.snapshot(); snap != nil {
			lastDecode = time.Now()
			select {
			case c.pending <- snap:
			default:
			}
		}
	}
}

func (c *Client) decodeLoop() {
	index := 0
	for {
		select {
		case <-c.done:
			return
		case h264 := <-c.pending:
			img, err := c.dec.Decode(context.Background(), h264)
			if err != nil {
				log.Warn("h264 decode failed", "error", err)
				continue
			}
			if img == nil {
				continue
			}

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(img))
			if err != nil {
				continue
			}
			index++
			latest(c.frames, frame.Frame{
				Index:    index,
				JPEG:     img,
				Width:    cfg.Width,
				Height:   cfg.Height,
				Captured: time.Now(),
			})
		}
	}
}

// latest replaces any unread frame with f.
func latest(ch chan frame.Frame, f frame.Frame) {
	for {
		select {
		case ch <- f:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// NextFrame blocks until a new decoded frame arrives.
// It returns frame.ErrEndOfStream once the connection is gone.
func (c *Client) NextFrame(ctx context.Context) (frame.Frame, error) {
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.done:
		return frame.Frame{}, frame.ErrEndOfStream
	case <-ctx.Done():
		return frame.Frame{}, ctx.Err()
	}
}

func (c *Client) shutdown() {
	first := false
	c.closeOnce.Do(func() {
		close(c.done)
		first = true
	})
	if !first {
		return
	}

	if c.pc != nil {
		c.pc.Close()
	}
	if c.ws != nil {
		c.wsMu.Lock()
		c.ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.wsMu.Unlock()
		c.ws.Close()
	}
}

// Close tears down the peer connection and signalling socket.
func (c *Client) Close() error {
	c.shutdown()
	return nil
}

var _ frame.Source = (*Client)(nil)
