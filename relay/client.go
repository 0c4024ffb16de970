package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

const (
	initialReconnectDelay = 500 * time.Millisecond
	maxReconnectDelay     = 5 * time.Second
)

// Client is the listener's persistent outbound connection to the relay
// server. Construction starts the connection attempt without blocking the
// caller; every navigation action first awaits connection completion, so an
// event emitted right after startup is never lost to a not-yet-open
// connection. Dropped connections are redialed with backoff.
type Client struct {
	url    string
	logger *slog.Logger

	// ready is closed once the first handshake completes. Many navigation
	// actions may await it concurrently.
	ready     chan struct{}
	readyOnce sync.Once

	// mu guards conn and serializes writes on it.
	mu   sync.Mutex
	conn *websocket.Conn

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient starts an asynchronous connection attempt to the relay server
// at url (a ws:// URL) and returns immediately.
func NewClient(url string, logger *slog.Logger) *Client {
	c := &Client{
		url:    url,
		logger: logger,
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go c.connectLoop()
	return c
}

// Next emits a nextSlide event.
func (c *Client) Next(ctx context.Context) error {
	return c.emit(ctx, NextSlide())
}

// Previous emits a previousSlide event.
func (c *Client) Previous(ctx context.Context) error {
	return c.emit(ctx, PreviousSlide())
}

// GoTo emits a changeSlide event targeting slide n.
func (c *Client) GoTo(ctx context.Context, n int) error {
	return c.emit(ctx, ChangeSlide(n))
}

// Close stops the reconnect loop and tears down the connection.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
			c.conn = nil
		}
		c.mu.Unlock()
	})
	return nil
}

// emit awaits connection completion, then writes the event. During a
// reconnect window it fails fast; the caller logs and moves on, since one
// lost navigation event must not end the transcription session.
func (c *Client) emit(ctx context.Context, ev Event) error {
	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return errors.New("relay client closed")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("relay connection down, reconnect in progress")
	}
	if err := c.conn.WriteJSON(ev); err != nil {
		return errors.Wrapf(err, "emit %s", ev.Name)
	}
	return nil
}

// connectLoop dials the relay server, signals readiness on the first
// successful handshake, and redials with capped backoff whenever the
// connection drops.
func (c *Client) connectLoop() {
	delay := initialReconnectDelay
	for {
		select {
		case <-c.done:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			c.logger.Warn("relay dial failed",
				slog.String("url", c.url),
				slog.String("error", err.Error()),
				slog.Duration("retry_in", delay),
			)
			select {
			case <-time.After(delay):
			case <-c.done:
				return
			}
			delay *= 2
			if delay > maxReconnectDelay {
				delay = maxReconnectDelay
			}
			continue
		}

		c.mu.Lock()
		c.conn = conn
		c.mu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })
		delay = initialReconnectDelay
		c.logger.Info("connected to relay server", slog.String("url", c.url))

		// The server echoes every broadcast back to us (it does not
		// distinguish originator); drain and discard until the connection
		// fails, which doubles as drop detection.
		c.drain(conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		conn.Close()

		select {
		case <-c.done:
			return
		default:
			c.logger.Warn("relay connection lost, reconnecting")
		}
	}
}

func (c *Client) drain(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
