// Package viz adapts the websocket visualization server to the fan-out Sink
// contract. The one-time create-channel handshake happens at construction;
// per-frame sends go to the channel handles it returned.
package viz

import (
	"fmt"

	"github.com/banshee-data/lidar-bridge/internal/sink"
	"github.com/banshee-data/lidar-bridge/internal/vizserver"
)

// Sink forwards frames to per-kind visualization channels.
type Sink struct {
	channels map[sink.Kind]*vizserver.Channel
}

// New creates one visualization channel per registered frame kind.
func New(server *vizserver.Server, regs map[sink.Kind]sink.Registration) (*Sink, error) {
	channels := make(map[sink.Kind]*vizserver.Channel, len(regs))
	for kind, reg := range regs {
		ch, err := server.CreateChannel(reg.Topic, reg.ContentType, reg.SchemaName,
			reg.Schema, reg.SchemaEncoding, reg.Latched)
		if err != nil {
			return nil, fmt.Errorf("viz: create channel %s: %w", reg.Topic, err)
		}
		channels[kind] = ch
	}
	return &Sink{channels: channels}, nil
}

func (s *Sink) Name() string { return "websocket" }

func (s *Sink) WriteFrame(kind sink.Kind, seq uint64, logTimeNanos uint64, payload []byte) error {
	ch, ok := s.channels[kind]
	if !ok {
		return fmt.Errorf("viz: no channel for %s", kind)
	}
	return ch.Send(logTimeNanos, payload)
}

// Close is a no-op; viewer connections are abandoned at shutdown.
func (s *Sink) Close() error { return nil }
