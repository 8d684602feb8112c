package sensor_simulator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
	"github.com/CrissP24/citrus-flow-sim/pkg/metrics"
)

var (
	ErrUnknownSensor = errors.New("unknown sensor")
	ErrInvalidStatus = errors.New("invalid sensor status")
)

// Evaluator is run after every full update pass (the auto-irrigation rule).
type Evaluator interface {
	Evaluate(ctx context.Context) bool
}

// Simulator refreshes the active sensors of the stored aggregate.
type Simulator struct {
	store    *store.Holder
	weather  *WeatherModel
	device   DeviceSensors
	loc      *time.Location
	now      func() time.Time
	log      *logrus.Entry
	metrics  *metrics.Metrics
	interval time.Duration
	jitter   time.Duration

	mu        sync.RWMutex
	evaluator Evaluator
	observers []func(messages.Snapshot)
	statusObs []func(messages.SensorStatusChanged)
}

type Option func(*Simulator)

func WithDevice(d DeviceSensors) Option     { return func(s *Simulator) { s.device = d } }
func WithMetrics(m *metrics.Metrics) Option { return func(s *Simulator) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *Simulator) { s.now = now } }
func WithLocation(l *time.Location) Option  { return func(s *Simulator) { s.loc = l } }

// WithIntervals sets the full update and jitter periods used by Start.
func WithIntervals(update, jitter time.Duration) Option {
	return func(s *Simulator) { s.interval, s.jitter = update, jitter }
}

func NewSimulator(st *store.Holder, weather *WeatherModel, log *logrus.Entry, opts ...Option) *Simulator {
	s := &Simulator{
		store:    st,
		weather:  weather,
		device:   NoDevice{},
		loc:      time.Local,
		now:      time.Now,
		log:      log,
		interval: 10 * time.Second,
		jitter:   3 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// LoadLocation resolves a timezone name, falling back to local time.
func LoadLocation(name string, log *logrus.Entry) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		log.WithError(err).Warnf("invalid TZ=%q, falling back to local", name)
		return time.Local
	}
	return loc
}

func (s *Simulator) SetEvaluator(e Evaluator) {
	s.mu.Lock()
	s.evaluator = e
	s.mu.Unlock()
}

// OnSnapshot registers fn to receive every committed pass.
func (s *Simulator) OnSnapshot(fn func(messages.Snapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

func (s *Simulator) OnStatusChange(fn func(messages.SensorStatusChanged)) {
	s.mu.Lock()
	s.statusObs = append(s.statusObs, fn)
	s.mu.Unlock()
}

// Update is the full pass: every active sensor gets a fresh baseline (or a real reading),
// then the auto-irrigation rule is evaluated.
func (s *Simulator) Update(ctx context.Context) entities.SystemData {
	now := s.now()
	hour := now.In(s.loc).Hour()

	// letture reali fuori dal lock dello store; un solo valore per tipo
	readings := map[entities.SensorKind]float64{}
	fromDevice := map[entities.SensorKind]bool{}
	for _, kind := range []entities.SensorKind{entities.KindHumidity, entities.KindTemperature} {
		if v, ok := s.device.Read(ctx, kind); ok {
			readings[kind] = Settle(kind, v)
			fromDevice[kind] = true
			continue
		}
		readings[kind] = s.weather.Sample(kind, hour)
	}

	data := s.store.Transact(ctx, func(d *entities.SystemData) bool {
		ts := entities.NewTimestamp(now)
		for i := range d.Sensors {
			sen := &d.Sensors[i]
			if !sen.IsActive() {
				continue
			}
			sen.Value = readings[sen.Type]
			sen.LastUpdated = ts
		}
		d.Config.LastUpdate = ts
		return true
	})

	s.metrics.SimulatorPass(messages.PassUpdate)
	s.log.WithFields(logrus.Fields{"hour": hour, "device": len(fromDevice)}).Debug("update pass")
	s.notify(messages.Snapshot{Pass: messages.PassUpdate, Data: data, FromDevice: fromDevice, At: now})

	s.mu.RLock()
	ev := s.evaluator
	s.mu.RUnlock()
	if ev != nil {
		ev.Evaluate(ctx)
	}
	return data
}

// Jitter is the fast pass: active sensors drift by at most ±1 around their current value.
func (s *Simulator) Jitter(ctx context.Context) entities.SystemData {
	now := s.now()
	data := s.store.Transact(ctx, func(d *entities.SystemData) bool {
		ts := entities.NewTimestamp(now)
		for i := range d.Sensors {
			sen := &d.Sensors[i]
			if !sen.IsActive() {
				continue
			}
			sen.Value = s.weather.Jitter(sen.Type, sen.Value)
			sen.LastUpdated = ts
		}
		return true
	})
	s.metrics.SimulatorPass(messages.PassJitter)
	s.notify(messages.Snapshot{Pass: messages.PassJitter, Data: data, At: now})
	return data
}

// SetSensorStatus enables or disables a sensor and refreshes its timestamp.
func (s *Simulator) SetSensorStatus(ctx context.Context, id string, status entities.SensorStatus) (entities.Sensor, error) {
	if !status.Valid() {
		return entities.Sensor{}, errors.Wrapf(ErrInvalidStatus, "%q", status)
	}
	now := s.now()
	var (
		found  bool
		before entities.SensorStatus
		after  entities.Sensor
	)
	data := s.store.Transact(ctx, func(d *entities.SystemData) bool {
		sen := d.FindSensor(id)
		if sen == nil {
			return false
		}
		found = true
		before = sen.Status
		sen.Status = status
		sen.LastUpdated = entities.NewTimestamp(now)
		after = *sen
		return true
	})
	if !found {
		return entities.Sensor{}, errors.Wrapf(ErrUnknownSensor, "%q", id)
	}

	s.log.WithFields(logrus.Fields{"sensor": id, "from": before, "to": status}).Info("sensor status changed")
	evt := messages.SensorStatusChanged{SensorID: id, OldStatus: before, NewStatus: status, Timestamp: now}
	s.mu.RLock()
	obs := append([]func(messages.SensorStatusChanged){}, s.statusObs...)
	s.mu.RUnlock()
	for _, fn := range obs {
		fn(evt)
	}
	s.notify(messages.Snapshot{Pass: messages.PassStatus, Data: data, At: now})
	return after, nil
}

func (s *Simulator) notify(snap messages.Snapshot) {
	s.mu.RLock()
	obs := append([]func(messages.Snapshot){}, s.observers...)
	s.mu.RUnlock()
	for _, fn := range obs {
		fn(snap)
	}
}

// Start runs both passes on their tickers until ctx is cancelled.
func (s *Simulator) Start(ctx context.Context) {
	update := time.NewTicker(s.interval)
	defer update.Stop()
	jitter := time.NewTicker(s.jitter)
	defer jitter.Stop()

	s.log.WithFields(logrus.Fields{"interval": s.interval, "jitter": s.jitter, "tz": s.loc.String()}).Info("simulator started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info("simulator stopped")
			return
		case <-update.C:
			s.Update(ctx)
		case <-jitter.C:
			s.Jitter(ctx)
		}
	}
}
