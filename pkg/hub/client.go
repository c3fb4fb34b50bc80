package hub

import (
	"time"

	"github.com/gofiber/websocket/v2"
)

// Conn is the part of a websocket connection a Client drives.
// *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(kind int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	Close() error
}

// ClientConfig bounds how long a viewer may stall before it is dropped.
type ClientConfig struct {
	WriteTimeout time.Duration // Per write, frames included
	IdleTimeout  time.Duration // Without a pong; pings go out at 90% of this
	ReadLimit    int64         // Viewers only send control frames
	Buffer       int           // Subscription buffer
}

// DefaultClientConfig returns limits for browser viewers on a LAN.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
		ReadLimit:    4 << 10,
		Buffer:       256,
	}
}

// Client relays one hub subscription to one websocket viewer.
type Client struct {
	cfg  ClientConfig
	sub  *Subscriber
	conn Conn
}

// NewClient subscribes conn to h with default limits.
// It returns nil if the hub has stopped.
func NewClient(h *Hub, conn Conn, lossy bool) *Client {
	return NewClientWithConfig(h, conn, lossy, DefaultClientConfig())
}

// NewClientWithConfig is NewClient with explicit limits.
func NewClientWithConfig(h *Hub, conn Conn, lossy bool, cfg ClientConfig) *Client {
	sub := h.Subscribe(cfg.Buffer, lossy)
	if sub == nil {
		return nil
	}
	return &Client{cfg: cfg, sub: sub, conn: conn}
}

// Run writes greeting, then relays hub messages until the viewer goes
// away or the hub stops. It returns only after the connection is closed and
// its reader has exited, so the handler may release conn afterwards.
func (c *Client) Run(greeting ...Message) {
	gone := make(chan struct{})
	go c.watch(gone)

	c.relay(gone, greeting)

	c.sub.Unsubscribe()
	c.conn.Close()
	<-gone
}

// watch consumes control frames until the viewer disconnects or stops
// answering pings.
func (c *Client) watch(gone chan<- struct{}) {
	defer close(gone)

	c.conn.SetReadLimit(c.cfg.ReadLimit)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.IdleTimeout))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// relay is the only writer on the connection.
func (c *Client) relay(gone <-chan struct{}, greeting []Message) {
	for _, m := range greeting {
		if c.write(m.wsType(), m.Data) != nil {
			return
		}
	}

	keepalive := time.NewTicker(c.cfg.IdleTimeout * 9 / 10)
	defer keepalive.Stop()

	for {
		select {
		case <-gone:
			return
		case m, ok := <-c.sub.Messages():
			if !ok {
				c.write(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if c.write(m.wsType(), m.Data) != nil {
				return
			}
		case <-keepalive.C:
			if c.write(websocket.PingMessage, nil) != nil {
				return
			}
		}
	}
}

func (c *Client) write(kind int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(kind, data)
}
