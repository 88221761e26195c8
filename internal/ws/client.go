package ws

import (
	"sync"

	"golang.org/x/net/websocket"
)

const clientBuffer = 64

// Client is one websocket connection bound to an authenticated wallet.
type Client struct {
	conn   *websocket.Conn
	wallet string
	out    chan []byte

	mu       sync.RWMutex
	channels map[string]struct{}
	closed   bool
}

func NewClient(conn *websocket.Conn, wallet string) *Client {
	return &Client{
		conn:     conn,
		wallet:   wallet,
		out:      make(chan []byte, clientBuffer),
		channels: map[string]struct{}{},
	}
}

func (c *Client) send(payload []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- payload:
		return true
	default:
		if c.conn != nil {
			_ = c.conn.Close()
		}
		return false
	}
}

// close stops the writer. Sends after close are dropped.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.out)
}

func (c *Client) addChannel(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channels[channel] = struct{}{}
}

func (c *Client) listChannels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}
