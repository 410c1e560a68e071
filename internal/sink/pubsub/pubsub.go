// Package pubsub publishes encoded frames on the bus. Registration with the
// bus is implicit: the first publish on a subject creates it.
package pubsub

import (
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/banshee-data/lidar-bridge/internal/sink"
)

// Sink publishes each frame kind on its configured subject. The connection
// is shared with the control listener and owned by the caller; Close only
// flushes what this sink has published.
type Sink struct {
	nc       *nats.Conn
	subjects map[sink.Kind]string
}

// New builds a pub/sub sink from the registration table. An optional subject
// prefix is applied to every topic.
func New(nc *nats.Conn, regs map[sink.Kind]sink.Registration, prefix string) *Sink {
	subjects := make(map[sink.Kind]string, len(regs))
	for kind, reg := range regs {
		subject := reg.Topic
		if prefix != "" {
			subject = prefix + "." + subject
		}
		subjects[kind] = subject
	}
	return &Sink{nc: nc, subjects: subjects}
}

func (s *Sink) Name() string { return "pubsub" }

func (s *Sink) WriteFrame(kind sink.Kind, seq uint64, logTimeNanos uint64, payload []byte) error {
	subject, ok := s.subjects[kind]
	if !ok {
		return fmt.Errorf("pubsub: no subject for %s", kind)
	}
	return s.nc.Publish(subject, payload)
}

func (s *Sink) Close() error {
	return s.nc.Flush()
}
