// Package mcaplog appends encoded frames to an MCAP container on disk. The
// schema and channel for each frame kind are registered once at construction;
// Close flushes the writer and emits the container trailer, so a log file is
// only well-formed after a clean shutdown.
package mcaplog

import (
	"fmt"
	"os"
	"sync"

	"github.com/foxglove/mcap/go/mcap"

	"github.com/banshee-data/lidar-bridge/internal/sink"
)

// Sink writes frame records to a single MCAP file.
type Sink struct {
	mu       sync.Mutex
	file     *os.File
	writer   *mcap.Writer
	channels map[sink.Kind]uint16
	closed   bool
}

// channelOrder fixes the schema/channel id assignment so files are
// deterministic across runs.
var channelOrder = []sink.Kind{sink.KindLaserScan, sink.KindPointCloud}

// New creates the output file and registers one schema and channel per frame
// kind. An unwritable path is a fatal configuration error and is returned.
func New(path string, regs map[sink.Kind]sink.Registration) (*Sink, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("mcaplog: create %s: %w", path, err)
	}

	writer, err := mcap.NewWriter(file, &mcap.WriterOptions{
		Chunked:     true,
		Compression: mcap.CompressionZSTD,
	})
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("mcaplog: writer: %w", err)
	}

	if err := writer.WriteHeader(&mcap.Header{Library: "lidar-bridge"}); err != nil {
		file.Close()
		return nil, fmt.Errorf("mcaplog: header: %w", err)
	}

	channels := make(map[sink.Kind]uint16, len(regs))
	for i, kind := range channelOrder {
		reg, ok := regs[kind]
		if !ok {
			continue
		}
		schemaID := uint16(i + 1) // schema id 0 means "no schema" in MCAP
		if err := writer.WriteSchema(&mcap.Schema{
			ID:       schemaID,
			Name:     reg.SchemaName,
			Encoding: reg.SchemaEncoding,
			Data:     reg.Schema,
		}); err != nil {
			file.Close()
			return nil, fmt.Errorf("mcaplog: schema %s: %w", reg.SchemaName, err)
		}

		channelID := uint16(i)
		if err := writer.WriteChannel(&mcap.Channel{
			ID:              channelID,
			SchemaID:        schemaID,
			Topic:           reg.Topic,
			MessageEncoding: reg.MessageEncoding,
		}); err != nil {
			file.Close()
			return nil, fmt.Errorf("mcaplog: channel %s: %w", reg.Topic, err)
		}
		channels[kind] = channelID
	}

	return &Sink{file: file, writer: writer, channels: channels}, nil
}

func (s *Sink) Name() string { return "mcap" }

// WriteFrame appends one record. Log time and publish time both carry the
// capture timestamp.
func (s *Sink) WriteFrame(kind sink.Kind, seq uint64, logTimeNanos uint64, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mcaplog: write after close")
	}
	channelID, ok := s.channels[kind]
	if !ok {
		return fmt.Errorf("mcaplog: no channel for %s", kind)
	}
	return s.writer.WriteMessage(&mcap.Message{
		ChannelID:   channelID,
		Sequence:    uint32(seq),
		LogTime:     logTimeNanos,
		PublishTime: logTimeNanos,
		Data:        payload,
	})
}

// Close finalizes the container (summary section and trailer) and closes the
// file.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.writer.Close(); err != nil {
		s.file.Close()
		return fmt.Errorf("mcaplog: finalize: %w", err)
	}
	return s.file.Close()
}
