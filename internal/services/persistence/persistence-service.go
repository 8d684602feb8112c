package persistence

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
)

// Measurement holds one point per sensor per simulator pass.
const Measurement = "sensor_reading"

// PointWriter is satisfied by api.WriteAPIBlocking.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// Querier is satisfied by api.QueryAPI.
type Querier interface {
	Query(ctx context.Context, query string) (*api.QueryTableResult, error)
}

// Service keeps the latest reading of every sensor and, when Influx is configured,
// writes every reading as a point, batching up to BatchSize or FlushInterval.
type Service struct {
	writer        PointWriter
	querier       Querier
	bucket        string
	batchSize     int
	flushInterval time.Duration
	log           *logrus.Entry

	queue chan messages.SensorReading

	mu     sync.RWMutex
	latest map[string]messages.SensorReading

	errMu      sync.RWMutex
	lastErr    error
	lastErrAt  time.Time
	lastWrites time.Time
}

type Option func(*Service)

// WithInflux enables writes and queries against bucket.
func WithInflux(w PointWriter, q Querier, bucket string) Option {
	return func(s *Service) { s.writer, s.querier, s.bucket = w, q, bucket }
}

func WithBatching(size int, every time.Duration) Option {
	return func(s *Service) { s.batchSize, s.flushInterval = size, every }
}

func NewService(log *logrus.Entry, opts ...Option) *Service {
	s := &Service{
		batchSize:     10,
		flushInterval: time.Second,
		log:           log,
		latest:        make(map[string]messages.SensorReading),
	}
	for _, o := range opts {
		o(s)
	}
	if s.batchSize <= 0 {
		s.batchSize = 1
	}
	if s.flushInterval <= 0 {
		s.flushInterval = time.Second
	}
	s.queue = make(chan messages.SensorReading, s.batchSize*16)
	return s
}

// Enabled reports whether readings go to Influx.
func (s *Service) Enabled() bool { return s.writer != nil }

// HandleSnapshot refreshes the cache and queues the readings for writing. It never blocks:
// when the queue is full the reading is dropped from Influx but still cached.
func (s *Service) HandleSnapshot(snap messages.Snapshot) {
	readings := snap.Readings()

	s.mu.Lock()
	for _, r := range readings {
		s.latest[r.SensorID] = r
	}
	s.mu.Unlock()

	if s.writer == nil {
		return
	}
	for _, r := range readings {
		select {
		case s.queue <- r:
		default:
			s.log.WithField("sensor_id", r.SensorID).Warn("influx queue full, reading dropped")
		}
	}
}

// Start drains the queue until ctx is done, flushing what is left on exit.
func (s *Service) Start(ctx context.Context) {
	if s.writer == nil {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]*write.Point, 0, s.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := s.write(ctx, batch...); err != nil {
			s.log.WithError(err).WithField("points", len(batch)).Error("influx write failed")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// svuota la coda prima di uscire
			for {
				select {
				case r := <-s.queue:
					batch = append(batch, ReadingToPoint(r))
				default:
					shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					flush(shCtx)
					cancel()
					return
				}
			}
		case r := <-s.queue:
			batch = append(batch, ReadingToPoint(r))
			if len(batch) >= s.batchSize {
				flush(ctx)
			}
		case <-ticker.C:
			flush(ctx)
		}
	}
}

func (s *Service) write(ctx context.Context, points ...*write.Point) error {
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := s.writer.WritePoint(wctx, points...)

	s.errMu.Lock()
	defer s.errMu.Unlock()
	if err != nil {
		s.lastErr, s.lastErrAt = err, time.Now()
		return errors.Wrap(err, "write points")
	}
	s.lastWrites = time.Now()
	return nil
}

// LastWriteError returns when the last failed write happened and its error.
func (s *Service) LastWriteError() (time.Time, error) {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.lastErrAt, s.lastErr
}

// LastWrite is the time of the last successful write.
func (s *Service) LastWrite() time.Time {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return s.lastWrites
}

// ReadingToPoint maps a reading onto the sensor_reading measurement.
func ReadingToPoint(r messages.SensorReading) *write.Point {
	t := r.Timestamp
	if t.IsZero() {
		t = time.Now()
	}
	tags := map[string]string{
		"sensor_id": r.SensorID,
		"type":      string(r.Type),
		"location":  r.Location,
		"source":    r.Source,
	}
	fields := map[string]interface{}{
		"value":  r.Value,
		"active": r.Status == entities.StatusActive,
	}
	return influxdb2.NewPoint(Measurement, tags, fields, t)
}

// LatestCache returns the cached readings sorted by sensor id.
func (s *Service) LatestCache() []messages.SensorReading {
	s.mu.RLock()
	out := make([]messages.SensorReading, 0, len(s.latest))
	for _, r := range s.latest {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out
}

// QueryLatestFromInflux returns the last value of every sensor written in the last minutes.
func (s *Service) QueryLatestFromInflux(ctx context.Context, minutes int) ([]messages.SensorReading, error) {
	if s.querier == nil {
		return nil, errors.New("influx not configured")
	}
	flux := fmt.Sprintf(`from(bucket: %q)
  |> range(start: -%dm)
  |> filter(fn: (r) => r._measurement == %q and r._field == "value")
  |> group(columns: ["sensor_id"])
  |> last()`, s.bucket, minutes, Measurement)

	res, err := s.querier.Query(ctx, flux)
	if err != nil {
		return nil, errors.Wrap(err, "query latest readings")
	}
	defer res.Close()

	var out []messages.SensorReading
	for res.Next() {
		rec := res.Record()
		v, ok := rec.Value().(float64)
		if !ok {
			continue
		}
		out = append(out, messages.SensorReading{
			SensorID:  str(rec.ValueByKey("sensor_id")),
			Type:      entities.SensorKind(str(rec.ValueByKey("type"))),
			Location:  str(rec.ValueByKey("location")),
			Value:     v,
			Unit:      entities.SensorKind(str(rec.ValueByKey("type"))).Unit(),
			Status:    entities.StatusActive,
			Source:    str(rec.ValueByKey("source")),
			Timestamp: rec.Time(),
		})
	}
	if res.Err() != nil {
		return nil, errors.Wrap(res.Err(), "read query result")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SensorID < out[j].SensorID })
	return out, nil
}

func str(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
