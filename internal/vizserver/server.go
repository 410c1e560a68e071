// Package vizserver is the live visualization sink: a websocket server that
// advertises typed channels to connecting viewers and streams timestamped
// binary payloads to their subscriptions. Channels are created once at
// startup, before serving; latched channels replay their most recent payload
// to late subscribers.
package vizserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/banshee-data/lidar-bridge/internal/monitoring"
)

// Server owns the channel table and the set of connected clients.
type Server struct {
	name     string
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	channels []*Channel
	clients  map[string]*client

	started atomic.Bool
}

// New returns a server with no channels and no clients.
func New(name string) *Server {
	return &Server{
		name: name,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Viewers connect from arbitrary origins (desktop apps, local
			// web tools); the server carries no credentials.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Channel is one advertised telemetry stream. Send may be called from any
// single goroutine; the channel handle is owned by the fan-out worker that
// writes it.
type Channel struct {
	server  *Server
	info    channelInfo
	latched bool

	mu       sync.Mutex
	lastData []byte
	lastTime uint64
}

// CreateChannel registers a channel before serving starts. The schema bytes
// are advertised base64-encoded (unpadded) alongside their encoding name;
// latched channels replay the last payload to every new subscriber.
func (s *Server) CreateChannel(topic, contentType, schemaName string, schema []byte, schemaEncoding string, latched bool) (*Channel, error) {
	if s.started.Load() {
		return nil, errors.New("vizserver: channels must be created before serving")
	}
	if topic == "" {
		return nil, errors.New("vizserver: empty topic")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ch := &Channel{
		server: s,
		info: channelInfo{
			ID:             uint32(len(s.channels) + 1),
			Topic:          topic,
			Encoding:       encodingFromContentType(contentType),
			SchemaName:     schemaName,
			Schema:         base64.RawStdEncoding.EncodeToString(schema),
			SchemaEncoding: schemaEncoding,
		},
		latched: latched,
	}
	s.channels = append(s.channels, ch)
	return ch, nil
}

func encodingFromContentType(contentType string) string {
	if contentType == "application/json" || contentType == "" {
		return "json"
	}
	return contentType
}

// Send delivers one timestamped payload to every subscriber of the channel.
// Slow subscribers shed this frame; a failed viewer never propagates an
// error to the caller.
func (c *Channel) Send(receiveTimeNanos uint64, payload []byte) error {
	if c.latched {
		c.mu.Lock()
		c.lastData = append(c.lastData[:0], payload...)
		c.lastTime = receiveTimeNanos
		c.mu.Unlock()
	}

	s := c.server
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, cl := range s.clients {
		cl.sendData(c.info.ID, receiveTimeNanos, payload)
	}
	return nil
}

// latchedPayload returns a copy of the last payload, if any.
func (c *Channel) latchedPayload() ([]byte, uint64, bool) {
	if !c.latched {
		return nil, 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lastData == nil {
		return nil, 0, false
	}
	data := make([]byte, len(c.lastData))
	copy(data, c.lastData)
	return data, c.lastTime, true
}

// Handler returns the websocket upgrade handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			monitoring.Logf("vizserver: upgrade: %v", err)
			return
		}
		s.serveClient(conn)
	})
}

// ListenAndServe serves the websocket endpoint until the context ends. Viewer
// connections are abandoned on shutdown; only the log sink needs a clean
// flush.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.started.Store(true)

	server := &http.Server{Addr: addr, Handler: s.Handler()}

	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("vizserver: listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("vizserver: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
	}
	return nil
}

func (s *Server) channelByID(id uint32) *Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.channels {
		if ch.info.ID == id {
			return ch
		}
	}
	return nil
}

func (s *Server) advertisement() advertiseMsg {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg := advertiseMsg{Op: opAdvertise, Channels: make([]channelInfo, 0, len(s.channels))}
	for _, ch := range s.channels {
		msg.Channels = append(msg.Channels, ch.info)
	}
	return msg
}

func (s *Server) addClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c.id] = c
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[c.id]; ok {
		delete(s.clients, c.id)
		close(c.send)
	}
}
