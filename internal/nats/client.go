package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrNotConnected is returned by Client calls made before Connect succeeded.
var ErrNotConnected = errors.New("not connected to NATS")

// CommandError is a failure reported by the daemon in a Reply.
type CommandError struct {
	Subject string
	Message string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Subject, e.Message)
}

// Client sends commands to the daemon and receives its notifications.
type Client struct {
	url    string
	conn   *nats.Conn
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewClient creates a new NATS client for the daemon at url.
func NewClient(url string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		url:    url,
		logger: logger.With("component", "nats-client"),
	}
}

// Connect establishes a connection to the NATS server.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := nats.Connect(c.url,
		nats.Name("rogd-client"),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				c.logger.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.logger.Info("NATS reconnected")
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}

	c.conn = conn
	c.logger.Debug("Connected to NATS", "url", c.url)
	return nil
}

// Request sends payload to a command subject and waits for the Reply. A nil
// payload sends an empty body.
func (c *Client) Request(ctx context.Context, subject string, payload any) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return ErrNotConnected
	}

	var data []byte
	if payload != nil {
		var err error
		if data, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	msg, err := conn.RequestWithContext(ctx, subject, data)
	if err != nil {
		return fmt.Errorf("%s: %w", subject, err)
	}

	reply, err := UnmarshalReply(msg.Data)
	if err != nil {
		return fmt.Errorf("%s: invalid reply: %w", subject, err)
	}
	if !reply.OK {
		return &CommandError{Subject: subject, Message: reply.Error}
	}
	return nil
}

// Notifications calls handler for every daemon notification with its kind
// and JSON body. The returned function unsubscribes.
func (c *Client) Notifications(handler func(kind string, data []byte)) (func(), error) {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil, ErrNotConnected
	}

	sub, err := conn.Subscribe(SubjectNotifyPrefix+".>", func(msg *nats.Msg) {
		handler(strings.TrimPrefix(msg.Subject, SubjectNotifyPrefix+"."), msg.Data)
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// IsConnected returns true if the client is connected to NATS.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
