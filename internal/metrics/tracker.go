// Package metrics tracks streaming statistics and exports them to Prometheus.
package metrics

import (
	"maps"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "camstream"

// Tracker holds the per-session stream FPS table and the encode-side FPS
// gauge. The table and gauge are cleared together by Reset; the snapshot
// and traffic counters live for the whole process.
type Tracker struct {
	mu        sync.Mutex
	slots     map[string]float64
	encodeFPS float64

	snapshots atomic.Int64

	streamFPS   *prometheus.GaugeVec
	averageFPS  prometheus.Gauge
	encodeGauge prometheus.Gauge
	sessions    prometheus.Gauge
	snapCounter prometheus.Counter
	frames      prometheus.Counter
	bytes       prometheus.Counter
}

// NewTracker creates a tracker whose collectors are registered on reg.
// A nil reg leaves them unregistered.
func NewTracker(reg prometheus.Registerer) *Tracker {
	factory := promauto.With(reg)
	return &Tracker{
		slots: make(map[string]float64),
		streamFPS: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "fps",
			Help:      "Rolling FPS delivered to a stream client",
		}, []string{"client"}),
		averageFPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "fps_average",
			Help:      "Mean FPS across stream clients",
		}),
		encodeGauge: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "encoder",
			Name:      "fps",
			Help:      "Frames per second written by the frame source",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Stream and snapshot sessions currently holding the encoder gate",
		}),
		snapCounter: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Snapshots served",
		}),
		frames: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "frames_total",
			Help:      "MJPEG parts written to stream clients",
		}),
		bytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "bytes_total",
			Help:      "JPEG bytes written to stream clients",
		}),
	}
}

// Publish stores fps as the latest rolling value for client, creating the
// slot on first use.
func (t *Tracker) Publish(client string, fps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slots[client] = fps
	t.streamFPS.WithLabelValues(client).Set(fps)
	t.averageFPS.Set(t.averageLocked())
}

// Remove deletes the slot for client if present.
func (t *Tracker) Remove(client string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.slots[client]; !ok {
		return
	}
	delete(t.slots, client)
	t.streamFPS.DeleteLabelValues(client)
	t.averageFPS.Set(t.averageLocked())
}

// Average returns the arithmetic mean of all slots, 0 when there are none.
func (t *Tracker) Average() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.averageLocked()
}

func (t *Tracker) averageLocked() float64 {
	if len(t.slots) == 0 {
		return 0
	}
	var sum float64
	for _, fps := range t.slots {
		sum += fps
	}
	return sum / float64(len(t.slots))
}

// Sessions returns a copy of the slot table.
func (t *Tracker) Sessions() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return maps.Clone(t.slots)
}

// Count returns the number of slots.
func (t *Tracker) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// SetEncodeFPS records the producer's frame rate.
func (t *Tracker) SetEncodeFPS(fps float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.encodeFPS = fps
	t.encodeGauge.Set(fps)
}

// EncodeFPS returns the producer's last recorded frame rate.
func (t *Tracker) EncodeFPS() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.encodeFPS
}

// Reset clears the slot table and the encode gauge.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	clear(t.slots)
	t.encodeFPS = 0
	t.streamFPS.Reset()
	t.averageFPS.Set(0)
	t.encodeGauge.Set(0)
}

// SetActiveSessions mirrors the gate's session count into the exported gauge.
func (t *Tracker) SetActiveSessions(n int) {
	t.sessions.Set(float64(n))
}

// IncSnapshots counts one served snapshot and returns the new total.
func (t *Tracker) IncSnapshots() int64 {
	t.snapCounter.Inc()
	return t.snapshots.Add(1)
}

// Snapshots returns the number of snapshots served since start.
func (t *Tracker) Snapshots() int64 {
	return t.snapshots.Load()
}

// AddFrame counts one MJPEG part of n bytes.
func (t *Tracker) AddFrame(n int) {
	t.frames.Inc()
	t.bytes.Add(float64(n))
}
