package hub

import (
	"context"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func recv(t *testing.T, s *Subscriber) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-s.Messages():
		return m, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}, false
	}
}

func TestHub_Broadcast(t *testing.T) {
	h, _ := startHub(t)

	a := h.Subscribe(4, false)
	b := h.Subscribe(4, false)
	if h.ClientCount() != 2 {
		t.Fatalf("ClientCount: got %d, want 2", h.ClientCount())
	}

	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for _, s := range []*Subscriber{a, b} {
		m, ok := recv(t, s)
		if !ok || m.Type != BinaryMessage || len(m.Data) != 2 {
			t.Errorf("got %+v (ok=%v), want 2-byte binary message", m, ok)
		}
	}
}

func TestHub_BroadcastJSON(t *testing.T) {
	h, _ := startHub(t)
	s := h.Subscribe(1, false)

	if err := h.BroadcastJSON(map[string]int{"good_frames": 3}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}

	m, _ := recv(t, s)
	if m.Type != JSONMessage || string(m.Data) != `{"good_frames":3}` {
		t.Errorf("got %s (type %d)", m.Data, m.Type)
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h, _ := startHub(t)
	s := h.Subscribe(1, false)

	s.Unsubscribe()
	s.Unsubscribe()

	if _, ok := recv(t, s); ok {
		t.Error("Messages should be closed after Unsubscribe")
	}
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount: got %d, want 0", h.ClientCount())
	}
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h, _ := startHub(t)
	slow := h.Subscribe(1, false)

	h.BroadcastBinary([]byte{1})
	h.BroadcastBinary([]byte{2})

	deadline := time.After(time.Second)
	for h.ClientCount() != 0 {
		select {
		case <-deadline:
			t.Fatal("slow subscriber was not dropped")
		case <-time.After(5 * time.Millisecond):
		}
	}

	m, ok := recv(t, slow)
	if !ok || m.Data[0] != 1 {
		t.Errorf("first message: got %v (ok=%v)", m.Data, ok)
	}
	if _, ok := recv(t, slow); ok {
		t.Error("channel should be closed after drop")
	}
}

func TestHub_LossySubscriberKept(t *testing.T) {
	h, _ := startHub(t)
	s := h.Subscribe(1, true)
	marker := h.Subscribe(8, false)

	for i := 0; i < 5; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}
	// Once the marker has all five, the hub has processed them all.
	for i := 0; i < 5; i++ {
		recv(t, marker)
	}

	if h.ClientCount() != 2 {
		t.Errorf("ClientCount: got %d, want 2", h.ClientCount())
	}
	m, ok := recv(t, s)
	if !ok || m.Data[0] != 0 {
		t.Errorf("lossy subscriber: got %v (ok=%v), want first message", m.Data, ok)
	}
}

func TestHub_StopClosesSubscribers(t *testing.T) {
	h, cancel := startHub(t)
	s := h.Subscribe(1, false)

	cancel()
	<-h.Done()

	if _, ok := recv(t, s); ok {
		t.Error("Messages should be closed when the hub stops")
	}
	if h.Subscribe(1, false) != nil {
		t.Error("Subscribe after stop should return nil")
	}
	s.Unsubscribe() // must not block
}
