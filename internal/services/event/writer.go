package event

import (
	"sync"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
)

// AsyncWriter is the subset of api.WriteAPI used here.
type AsyncWriter interface {
	WritePoint(point *write.Point)
	Errors() <-chan error
	Flush()
}

// Writer wraps the non-blocking Influx write API and tracks the last write error
// for /healthz and /readyz. A nil *Writer is a no-op.
type Writer struct {
	api     AsyncWriter
	log     *logrus.Entry
	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
	done    chan struct{}
}

// NewWriter starts listening on the asynchronous error channel of w.
func NewWriter(w AsyncWriter, log *logrus.Entry) *Writer {
	ww := &Writer{
		api:     w,
		log:     log,
		lastErr: time.Now().Add(-24 * time.Hour), // lontano nel tempo
		counts:  make(map[string]int64),
		done:    make(chan struct{}),
	}
	errs := w.Errors()
	go func() {
		defer close(ww.done)
		for err := range errs {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				log.WithError(err).Error("influx write error")
			}
		}
	}()
	return ww
}

// Write queues evt as a system_event point.
func (w *Writer) Write(evt CommonEvent) {
	if w == nil {
		return
	}
	w.api.WritePoint(EventToPoint(evt))
	w.mu.Lock()
	w.counts[evt.EventType]++
	w.mu.Unlock()
	w.log.WithFields(logrus.Fields{"event_type": evt.EventType, "severity": evt.Severity}).Debug("event queued")
}

func (w *Writer) HandlePumpState(e messages.PumpStateEvent) {
	w.Write(FromPumpState(e))
}

func (w *Writer) HandleSensorStatus(e messages.SensorStatusChanged) {
	w.Write(FromSensorStatus(e))
}

func (w *Writer) Flush() {
	if w == nil {
		return
	}
	w.api.Flush()
}

// LastErrorAge ritorna da quanto tempo non si verificano errori di scrittura.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Count returns how many events of a type were queued.
func (w *Writer) Count(eventType string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.counts[eventType]
}
