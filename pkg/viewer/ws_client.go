package viewer

import (
	"sync"
	"time"

	"github.com/frostbyte73/core"
	"github.com/gammazero/deque"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/bluenviron/gocamstream/pkg/imagestream"
)

type wsClient struct {
	s      *Server
	id     uuid.UUID
	wc     *websocket.Conn
	logger *zap.Logger

	mutex  sync.Mutex
	queue  deque.Deque[*imagestream.Image]
	notify chan struct{}
	closed core.Fuse

	imagesDropped atomic.Uint64
}

func (c *wsClient) initialize() {
	c.notify = make(chan struct{}, 1)
}

func (c *wsClient) close() {
	c.closed.Break()
}

// push queues an image, discarding the oldest one when the queue is full.
func (c *wsClient) push(img *imagestream.Image) {
	c.mutex.Lock()
	if c.queue.Len() >= c.s.ClientQueueSize {
		c.queue.PopFront()
		c.imagesDropped.Inc()
	}
	c.queue.PushBack(img)
	c.mutex.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *wsClient) pop() *imagestream.Image {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.queue.Len() == 0 {
		return nil
	}
	return c.queue.PopFront()
}

func (c *wsClient) run() {
	defer c.wc.Close() //nolint:errcheck

	go c.runReader()

	err := c.runWriter()
	if err != nil && !c.closed.IsBroken() {
		c.logger.Debug("websocket write failed", zap.Stringer("id", c.id), zap.Error(err))
	}

	c.closed.Break()
}

// runReader discards incoming messages and detects disconnections.
func (c *wsClient) runReader() {
	for {
		_, _, err := c.wc.ReadMessage()
		if err != nil {
			c.closed.Break()
			return
		}
	}
}

func (c *wsClient) runWriter() error {
	ticker := time.NewTicker(c.s.StatsPeriod)
	defer ticker.Stop()

	err := c.writeStats()
	if err != nil {
		return err
	}

	for {
		select {
		case <-ticker.C:
			err = c.writeStats()
			if err != nil {
				return err
			}

		case <-c.notify:
			for {
				img := c.pop()
				if img == nil {
					break
				}

				c.wc.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
				err = c.wc.WriteMessage(websocket.BinaryMessage, img.Payload)
				if err != nil {
					return err
				}
			}

		case <-c.closed.Watch():
			c.wc.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
			c.wc.WriteMessage(websocket.CloseMessage, //nolint:errcheck
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

func (c *wsClient) writeStats() error {
	c.wc.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck
	return c.wc.WriteJSON(c.s.stats())
}
