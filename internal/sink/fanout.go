package sink

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/banshee-data/lidar-bridge/internal/frame"
	"github.com/banshee-data/lidar-bridge/internal/monitoring"
	"github.com/banshee-data/lidar-bridge/internal/scan"
)

// revolutionLogEvery is how many revolutions pass between counter log lines.
const revolutionLogEvery = 80

// DefaultQueueCapacity is the per-sink payload queue depth. The queue only
// smooths jitter; a sink that falls persistently behind sheds frames.
const DefaultQueueCapacity = 32

// DefaultStatsInterval is how often per-sink delivery counters are logged.
const DefaultStatsInterval = 30 * time.Second

type envelope struct {
	kind    Kind
	logTime uint64
	payload []byte
}

type worker struct {
	sink Sink
	ch   chan envelope
	seq  [numKinds]uint64

	frames atomic.Uint64
	bytes  atomic.Uint64
	drops  atomic.Uint64
	errors atomic.Uint64
}

// Fanout encodes revolutions and distributes the payloads to all sinks.
type Fanout struct {
	frameID string
	pose    frame.Pose
	workers []*worker

	QueueCapacity int
	StatsInterval time.Duration

	revolutions uint64
}

// NewFanout returns a fan-out over the given sinks. The sinks are owned by
// the fan-out from here on: Run closes them when the input ends.
func NewFanout(frameID string, pose frame.Pose, sinks []Sink) *Fanout {
	f := &Fanout{
		frameID:       frameID,
		pose:          pose,
		QueueCapacity: DefaultQueueCapacity,
		StatsInterval: DefaultStatsInterval,
	}
	for _, s := range sinks {
		f.workers = append(f.workers, &worker{sink: s})
	}
	return f
}

// Run consumes revolutions until in is closed or the context ends, then
// drains the per-sink queues and closes every sink (the log sink writes its
// trailer there). Frames reach each sink in capture order.
func (f *Fanout) Run(ctx context.Context, in <-chan scan.Revolution) error {
	var wg sync.WaitGroup
	for _, w := range f.workers {
		w.ch = make(chan envelope, f.QueueCapacity)
		wg.Add(1)
		go func(w *worker) {
			defer wg.Done()
			f.runWorker(w)
		}(w)
	}

	statsDone := make(chan struct{})
	go f.logStats(statsDone)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case rev, ok := <-in:
			if !ok {
				break loop
			}
			f.handleRevolution(rev)
		}
	}

	for _, w := range f.workers {
		close(w.ch)
	}
	wg.Wait()
	close(statsDone)

	var firstErr error
	for _, w := range f.workers {
		if err := w.sink.Close(); err != nil {
			monitoring.Logf("fanout: close %s: %v", w.sink.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (f *Fanout) handleRevolution(rev scan.Revolution) {
	captureTime := time.Now()
	nanos := uint64(captureTime.UnixNano())

	laser, cloud := frame.Encode(rev, captureTime, f.frameID, f.pose)

	laserPayload, err := laser.Marshal()
	if err != nil {
		monitoring.Logf("fanout: encode laser scan: %v", err)
		return
	}
	cloudPayload, err := cloud.Marshal()
	if err != nil {
		monitoring.Logf("fanout: encode point cloud: %v", err)
		return
	}

	f.dispatch(envelope{kind: KindLaserScan, logTime: nanos, payload: laserPayload})
	f.dispatch(envelope{kind: KindPointCloud, logTime: nanos, payload: cloudPayload})

	f.revolutions++
	if f.revolutions%revolutionLogEvery == 0 {
		monitoring.Logf("fanout: %d revolutions processed", f.revolutions)
	}
}

// dispatch hands the payload to every sink queue without blocking; a full
// queue sheds the frame for that sink only.
func (f *Fanout) dispatch(env envelope) {
	for _, w := range f.workers {
		select {
		case w.ch <- env:
		default:
			if n := w.drops.Add(1); n%100 == 1 {
				monitoring.Logf("fanout: %s queue full, dropped %d frames", w.sink.Name(), n)
			}
		}
	}
}

// runWorker delivers queued payloads to one sink. Errors are logged and
// counted, never retried; the next frame is attempted regardless.
func (f *Fanout) runWorker(w *worker) {
	for env := range w.ch {
		seq := w.seq[env.kind]
		w.seq[env.kind]++

		if err := w.sink.WriteFrame(env.kind, seq, env.logTime, env.payload); err != nil {
			if n := w.errors.Add(1); n%100 == 1 {
				monitoring.Logf("fanout: %s write %s: %v", w.sink.Name(), env.kind, err)
			}
			continue
		}
		w.frames.Add(1)
		w.bytes.Add(uint64(len(env.payload)))
	}
}

func (f *Fanout) logStats(done <-chan struct{}) {
	ticker := time.NewTicker(f.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			for _, w := range f.workers {
				monitoring.Logf("fanout stats: sink=%s frames=%d sent=%s dropped=%d errors=%d",
					w.sink.Name(), w.frames.Load(), humanize.Bytes(w.bytes.Load()),
					w.drops.Load(), w.errors.Load())
			}
		}
	}
}
