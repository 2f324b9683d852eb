package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readLimit    = 1024 * 1024
	readDeadline = 90 * time.Second
	pingPeriod   = 30 * time.Second
	sendBuffer   = 16
)

// MessageProcessor handles raw inbound frames.
type MessageProcessor interface {
	Process(ctx context.Context, chargePointID string, raw []byte) ([]byte, error)
}

// Connection is one live charge-point WebSocket. Inbound frames are processed
// strictly in arrival order; outbound frames go through a buffered send
// channel so handlers never block on the socket.
type Connection struct {
	chargePointID string
	ws            *websocket.Conn
	writeMu       sync.Mutex
	send          chan []byte
	processor     MessageProcessor
	logger        *zap.Logger
	writeTimeout  time.Duration
	onClose       func(chargePointID string)
}

// NewConnection wraps an upgraded socket.
func NewConnection(chargePointID string, ws *websocket.Conn, processor MessageProcessor, writeTimeout time.Duration, logger *zap.Logger, onClose func(string)) *Connection {
	return &Connection{
		chargePointID: chargePointID,
		ws:            ws,
		send:          make(chan []byte, sendBuffer),
		processor:     processor,
		logger:        logger,
		writeTimeout:  writeTimeout,
		onClose:       onClose,
	}
}

// ChargePointID returns the identifier taken from the connection path.
func (c *Connection) ChargePointID() string {
	return c.chargePointID
}

// Start launches the write pump and runs the read loop until the socket closes.
func (c *Connection) Start(ctx context.Context) {
	go c.writePump(ctx)
	c.readPump(ctx)
}

func (c *Connection) readPump(ctx context.Context) {
	defer c.cleanup()
	c.ws.SetReadLimit(readLimit)
	c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.ws.ReadMessage()
		if err != nil {
			c.logger.Info("charge point link closed", zap.String("charge_point_id", c.chargePointID), zap.Error(err))
			return
		}

		response, err := c.processor.Process(ctx, c.chargePointID, message)
		if err != nil {
			// Malformed frame: drop it, keep the connection.
			c.logger.Warn("dropping frame", zap.String("charge_point_id", c.chargePointID), zap.Error(err))
			continue
		}
		if response != nil {
			c.Send(response)
		}
	}
}

func (c *Connection) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.send:
			if !ok {
				_ = c.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// Send enqueues a frame for writing. Frames are dropped when the buffer is
// full rather than blocking the caller.
func (c *Connection) Send(msg []byte) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("send on closed link", zap.String("charge_point_id", c.chargePointID))
		}
	}()
	select {
	case c.send <- msg:
	default:
		c.logger.Warn("outbound buffer full, dropping frame", zap.String("charge_point_id", c.chargePointID))
	}
}

// Ping sends a control ping.
func (c *Connection) Ping() error {
	return c.write(websocket.PingMessage, []byte("ping"))
}

// write serializes socket writes; keepalive pings arrive from outside the
// write pump.
func (c *Connection) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) cleanup() {
	close(c.send)
	_ = c.ws.Close()
	if c.onClose != nil {
		c.onClose(c.chargePointID)
	}
}
