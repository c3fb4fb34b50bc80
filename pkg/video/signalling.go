package video

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/pion/webrtc/v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// GStreamer webrtcsink signalling messages.
const (
	msgWelcome        = "welcome"
	msgList           = "list"
	msgStartSession   = "startSession"
	msgSessionStarted = "sessionStarted"
	msgPeer           = "peer"
	msgEndSession     = "endSession"
)

type envelope struct {
	Type      string `json:"type"`
	PeerID    string `json:"peerId,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

type producer struct {
	ID   string            `json:"id"`
	Meta map[string]string `json:"meta"`
}

type listReply struct {
	Type      string     `json:"type"`
	Producers []producer `json:"producers"`
}

type sdpPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type icePayload struct {
	Candidate     string  `json:"candidate"`
	SDPMid        *string `json:"sdpMid"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex"`
}

type peerMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	SDP       *sdpPayload `json:"sdp,omitempty"`
	ICE       *icePayload `json:"ice,omitempty"`
}

func parseWelcome(msg []byte) (string, error) {
	var w envelope
	if err := json.Unmarshal(msg, &w); err != nil {
		return "", err
	}
	if w.Type != msgWelcome {
		return "", fmt.Errorf("expected welcome, got %s", w.Type)
	}
	if w.PeerID == "" {
		return "", fmt.Errorf("welcome without peer id")
	}
	return w.PeerID, nil
}

// findProducer returns the id of the producer advertising name.
func findProducer(msg []byte, name string) (string, error) {
	var list listReply
	if err := json.Unmarshal(msg, &list); err != nil {
		return "", err
	}
	for _, p := range list.Producers {
		if p.Meta["name"] == name {
			return p.ID, nil
		}
	}
	return "", fmt.Errorf("%s producer not found in %d producers", name, len(list.Producers))
}

func parsePeer(msg []byte) (peerMessage, error) {
	var p peerMessage
	err := json.Unmarshal(msg, &p)
	return p, err
}

func sdpMessage(sessionID string, sd webrtc.SessionDescription) peerMessage {
	return peerMessage{
		Type:      msgPeer,
		SessionID: sessionID,
		SDP:       &sdpPayload{Type: sd.Type.String(), SDP: sd.SDP},
	}
}

func iceMessage(sessionID string, c webrtc.ICECandidateInit) peerMessage {
	return peerMessage{
		Type:      msgPeer,
		SessionID: sessionID,
		ICE: &icePayload{
			Candidate:     c.Candidate,
			SDPMid:        c.SDPMid,
			SDPMLineIndex: c.SDPMLineIndex,
		},
	}
}

func (i icePayload) init() webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:     i.Candidate,
		SDPMid:        i.SDPMid,
		SDPMLineIndex: i.SDPMLineIndex,
	}
}
