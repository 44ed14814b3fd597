package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrNotConnected is returned when an operation requires an open connection.
	ErrNotConnected = errors.New("stream: not connected")

	// ErrStaleConnection is reported when the exchange stops answering pings.
	ErrStaleConnection = errors.New("stream: connection stale, no ping response")

	// ErrAlreadyClosed is returned when Close is called more than once.
	ErrAlreadyClosed = errors.New("stream: client already closed")
)

// TimestampedMessage wraps a raw frame with its local receive time.
type TimestampedMessage struct {
	Data       []byte
	ReceivedAt time.Time
}

// ClientConfig holds settings for a single WebSocket connection.
type ClientConfig struct {
	// URL is the full stream URL including the combined stream query.
	URL string

	// PingTimeout is how long the connection may go without any ping
	// traffic before it is declared stale.
	PingTimeout time.Duration

	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration

	// BufferSize is the capacity of the inbound message channel.
	BufferSize int
}

// DefaultClientConfig returns connection settings suitable for the
// exchange's market streams, which ping every few minutes.
func DefaultClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:          url,
		PingTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Second,
		BufferSize:   1024,
	}
}

// Client is a WebSocket connection to the exchange's market streams.
type Client interface {
	// Connect establishes the connection and starts the read loop.
	Connect(ctx context.Context) error

	// Close shuts the connection down. Safe to call after a failed Connect.
	Close() error

	// Send writes a raw text frame, for live subscription management.
	Send(msg []byte) error

	// Messages returns the channel of inbound frames.
	Messages() <-chan TimestampedMessage

	// Errors returns the channel of fatal connection errors. Receiving
	// on it means the connection is no longer usable.
	Errors() <-chan error

	// IsConnected reports whether the connection is currently open.
	IsConnected() bool
}

type wsClient struct {
	cfg    ClientConfig
	logger *slog.Logger

	mu         sync.RWMutex
	conn       *websocket.Conn
	connected  bool
	lastPingAt time.Time

	messages  chan TimestampedMessage
	errCh     chan error
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewClient creates a client for the given stream URL. Market streams are
// public, so no credentials are attached to the handshake.
func NewClient(cfg ClientConfig, logger *slog.Logger) Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = 5 * time.Minute
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	return &wsClient{
		cfg:      cfg,
		logger:   logger,
		messages: make(chan TimestampedMessage, cfg.BufferSize),
		errCh:    make(chan error, 1),
		done:     make(chan struct{}),
	}
}

func (c *wsClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, http.Header{})
	if err != nil {
		if resp != nil {
			c.logger.Error("websocket handshake failed",
				"status", resp.StatusCode,
				"err", err,
			)
		}
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.lastPingAt = time.Now()
	c.mu.Unlock()

	// The exchange pings periodically and disconnects clients that do not
	// answer. Both directions of ping traffic count as liveness.
	conn.SetPingHandler(func(appData string) error {
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.cfg.WriteTimeout))
	})
	conn.SetPongHandler(func(string) error {
		c.mu.Lock()
		c.lastPingAt = time.Now()
		c.mu.Unlock()
		return nil
	})

	c.wg.Add(2)
	go c.readLoop()
	go c.heartbeatLoop()

	c.logger.Debug("stream connected", "url", c.cfg.URL)
	return nil
}

func (c *wsClient) Close() error {
	var err error = ErrAlreadyClosed
	c.closeOnce.Do(func() {
		close(c.done)

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.connected = false
		c.mu.Unlock()

		if conn != nil {
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			err = conn.Close()
		} else {
			err = nil
		}

		c.wg.Wait()
	})
	return err
}

func (c *wsClient) Send(msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}

	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsClient) Messages() <-chan TimestampedMessage {
	return c.messages
}

func (c *wsClient) Errors() <-chan error {
	return c.errCh
}

func (c *wsClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// readLoop pulls frames off the wire until the connection fails or the
// client is closed.
func (c *wsClient) readLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.done:
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()
		if conn == nil {
			return
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case c.errCh <- err:
			default:
			}
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			return
		}

		msg := TimestampedMessage{Data: data, ReceivedAt: time.Now()}
		select {
		case c.messages <- msg:
		case <-c.done:
			return
		default:
			// Consumers only need the latest status.
			c.logger.Warn("stream buffer full, dropping message")
		}
	}
}

// heartbeatLoop sends keepalive pings and watches for a silent peer.
func (c *wsClient) heartbeatLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			last := c.lastPingAt
			c.mu.RUnlock()
			if conn == nil {
				return
			}

			if time.Since(last) > c.cfg.PingTimeout {
				select {
				case <-c.done:
				case c.errCh <- ErrStaleConnection:
				default:
				}
				c.mu.Lock()
				c.connected = false
				c.mu.Unlock()
				return
			}

			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("keepalive ping failed", "err", err)
			}
		}
	}
}
