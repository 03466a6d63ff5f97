package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	id "collabhub/pkg/domain"
)

const maxInboundBytes = 4096

// client is one upgraded socket. The write pump is the only writer to conn.
type client struct {
	id     id.ConnectionID
	userID id.UserID
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func newClient(connID id.ConnectionID, userID id.UserID, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:     connID,
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
	}
}

// close asks the write pump to send a close frame and hang up.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// readPump drains inbound frames so control frames are processed. Clients
// have nothing to say on this socket; data frames are discarded. Returns
// when the peer goes away or misses a pong deadline.
func (c *client) readPump(pongWait time.Duration) {
	defer c.close()

	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump serializes frames and keepalive pings onto the socket.
func (c *client) writePump(writeWait, pingPeriod time.Duration, sent func()) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			sent()
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing"),
				time.Now().Add(writeWait))
			return
		}
	}
}
