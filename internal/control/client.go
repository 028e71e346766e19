package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/thruflo/loom/internal/protocol"
)

// ErrClientClosed is returned by Do after Close or after an earlier
// exchange failed.
var ErrClientClosed = errors.New("control client closed")

// Client is the operator side of a control session. Exchanges are
// serialised: each Do sends one frame and waits for exactly one reply.
type Client struct {
	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// Dial connects to the control endpoint at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewClient(conn), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// RemoteAddr returns the endpoint address.
func (c *Client) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Do sends payload as one frame and returns the reply payload. Any send
// or receive failure tears the session down; later calls return
// ErrClientClosed.
func (c *Client) Do(payload string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return "", ErrClientClosed
	}

	if err := protocol.WriteMessage(c.conn, payload); err != nil {
		if errors.Is(err, protocol.ErrFrameTooLarge) {
			// Nothing was written; the session is still in step.
			return "", err
		}
		c.closeLocked()
		return "", fmt.Errorf("send: %w", err)
	}

	reply, err := protocol.ReadMessage(c.conn)
	if err != nil {
		c.closeLocked()
		return "", fmt.Errorf("receive: %w", err)
	}
	return reply, nil
}

// Send encodes cmd and exchanges it.
func (c *Client) Send(cmd protocol.Command) (string, error) {
	return c.Do(cmd.String())
}

// GetName asks the endpoint to identify itself.
func (c *Client) GetName() (string, error) {
	return c.Send(protocol.GetName{})
}

// Add installs fix id backed by extension.
func (c *Client) Add(id int, extension string) (string, error) {
	return c.Send(protocol.Add{ID: id, Extension: extension})
}

// Del removes fix id.
func (c *Client) Del(id int) (string, error) {
	return c.Send(protocol.Del{ID: id})
}

// List returns the endpoint's fix table.
func (c *Client) List() (string, error) {
	return c.Send(protocol.List{})
}

// Close ends the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeLocked()
}

func (c *Client) closeLocked() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
