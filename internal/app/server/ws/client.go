package ws

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"novahub/internal/core/domain"
	"novahub/pkg/logging"
)

type RuntimeClient struct {
	ctx    context.Context
	cancel context.CancelFunc
	ws     *WebSocket
	id     string
	userID string
	out    chan []byte
	log    *slog.Logger
	once   sync.Once
}

// NewClient wraps ws for userID. The write loop is not running until Start,
// so frames queued before Start are the first ones on the wire.
func NewClient(
	parent context.Context,
	log *slog.Logger,
	ws *WebSocket,
	userID string,
	sendBuffer int,
) *RuntimeClient {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	ctx, cancel := context.WithCancel(parent)
	id := uuid.NewString()
	return &RuntimeClient{
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		id:     id,
		userID: userID,
		out:    make(chan []byte, sendBuffer),
		log:    log.With(logging.Connection(id), logging.User(userID)),
	}
}

func (c *RuntimeClient) ID() string     { return c.id }
func (c *RuntimeClient) UserID() string { return c.userID }

func (c *RuntimeClient) Send(ctx context.Context, data []byte) error {
	select {
	case <-c.ctx.Done():
		return domain.ErrClientClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case c.out <- data:
		return nil
	default:
		return domain.ErrSendBufferFull
	}
}

func (c *RuntimeClient) Close() {
	c.CloseWith(websocket.CloseGoingAway, "connection closed by server")
}

// CloseWith marks the client closed at once and writes the close frame in the
// background: the frame waits for any write the loop has in flight, and a
// stalled peer must not hold up the caller.
func (c *RuntimeClient) CloseWith(code int, reason string) {
	c.once.Do(func() {
		c.cancel()
		go c.ws.CloseWith(code, reason)
	})
}

// Start launches the write loop; it exits when the client or the socket closes.
func (c *RuntimeClient) Start() {
	go c.writeLoop()
}

func (c *RuntimeClient) writeLoop() {
	ticker := time.NewTicker(c.ws.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.CloseWith(websocket.CloseNormalClosure, "")
	}()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.ws.Done():
			return
		case data := <-c.out:
			if err := c.ws.WriteMessage(data); err != nil {
				c.log.Info("ws client - write loop - write failed", logging.Err(err))
				return
			}
		case <-ticker.C:
			if err := c.ws.Ping(); err != nil {
				c.log.Info("ws client - write loop - ping failed", logging.Err(err))
				return
			}
		}
	}
}
