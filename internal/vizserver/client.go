package vizserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/banshee-data/lidar-bridge/internal/monitoring"
)

const (
	// sendBuffer is the per-client outbound queue; a viewer that cannot keep
	// up sheds data frames rather than backpressuring the pipeline.
	sendBuffer = 256

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 45 * time.Second
)

type outMessage struct {
	messageType int
	data        []byte
}

// client is one connected viewer.
type client struct {
	id     string
	server *Server
	conn   *websocket.Conn
	send   chan outMessage

	mu      sync.Mutex
	subs    map[uint32]uint32 // channel id -> subscription id
	dropped uint64
}

// serveClient runs the reader for a new connection; the writer runs on its
// own goroutine. Returns when the connection dies.
func (s *Server) serveClient(conn *websocket.Conn) {
	c := &client{
		id:     uuid.NewString(),
		server: s,
		conn:   conn,
		send:   make(chan outMessage, sendBuffer),
	}
	c.subs = make(map[uint32]uint32)
	s.addClient(c)
	monitoring.Logf("vizserver: client %s connected from %s", c.id, conn.RemoteAddr())

	c.enqueueJSON(serverInfoMsg{Op: opServerInfo, Name: s.name, Capabilities: []string{}})
	c.enqueueJSON(s.advertisement())

	go c.writePump()
	c.readPump()
}

func (c *client) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.conn.Close()
		monitoring.Logf("vizserver: client %s disconnected", c.id)
	}()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				monitoring.Logf("vizserver: client %s read: %v", c.id, err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var op clientOp
		if err := json.Unmarshal(data, &op); err != nil {
			monitoring.Logf("vizserver: client %s sent malformed op: %v", c.id, err)
			continue
		}
		c.handleOp(op)
	}
}

func (c *client) handleOp(op clientOp) {
	switch op.Op {
	case opSubscribe:
		for _, sub := range op.Subscriptions {
			ch := c.server.channelByID(sub.ChannelID)
			if ch == nil {
				monitoring.Logf("vizserver: client %s subscribed to unknown channel %d", c.id, sub.ChannelID)
				continue
			}
			c.mu.Lock()
			c.subs[sub.ChannelID] = sub.ID
			c.mu.Unlock()

			// Latched channels deliver the most recent payload immediately.
			if data, nanos, ok := ch.latchedPayload(); ok {
				c.sendData(ch.info.ID, nanos, data)
			}
		}
	case opUnsubscribe:
		c.mu.Lock()
		for _, subID := range op.SubscriptionIDs {
			for channelID, id := range c.subs {
				if id == subID {
					delete(c.subs, channelID)
				}
			}
		}
		c.mu.Unlock()
	default:
		monitoring.Logf("vizserver: client %s sent unsupported op %q", c.id, op.Op)
	}
}

// sendData enqueues a binary data frame if the client subscribes to the
// channel, shedding the frame when the outbound queue is full.
func (c *client) sendData(channelID uint32, receiveTimeNanos uint64, payload []byte) {
	c.mu.Lock()
	subID, ok := c.subs[channelID]
	c.mu.Unlock()
	if !ok {
		return
	}

	select {
	case c.send <- outMessage{websocket.BinaryMessage, packDataFrame(subID, receiveTimeNanos, payload)}:
	default:
		c.mu.Lock()
		c.dropped++
		n := c.dropped
		c.mu.Unlock()
		if n%100 == 1 {
			monitoring.Logf("vizserver: client %s slow, dropped %d frames", c.id, n)
		}
	}
}

func (c *client) enqueueJSON(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		monitoring.Logf("vizserver: marshal %T: %v", v, err)
		return
	}
	select {
	case c.send <- outMessage{websocket.TextMessage, data}:
	default:
		monitoring.Logf("vizserver: client %s dropped control message", c.id)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(msg.messageType, msg.data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
