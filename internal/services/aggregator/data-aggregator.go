package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
	"github.com/CrissP24/citrus-flow-sim/pkg/rabbitmq"
)

// TrendTopic carries every new chart point when a broker is configured.
const TrendTopic = "citriflow/trend"

// TrendPoint is one sample of the dashboard chart.
type TrendPoint struct {
	Time        string    `json:"time"`
	Humidity    float64   `json:"humidity"`
	Temperature float64   `json:"temperature"`
	Threshold   float64   `json:"threshold"`
	At          time.Time `json:"at"`
}

// TrendAggregator samples the store on a fixed interval and keeps the last N points.
type TrendAggregator struct {
	store     *store.Holder
	publisher rabbitmq.IPublisher
	interval  time.Duration
	size      int
	loc       *time.Location
	now       func() time.Time
	log       *logrus.Entry

	mutex  sync.RWMutex
	points []TrendPoint
}

type Option func(*TrendAggregator)

func WithPublisher(p rabbitmq.IPublisher) Option { return func(a *TrendAggregator) { a.publisher = p } }
func WithLocation(loc *time.Location) Option     { return func(a *TrendAggregator) { a.loc = loc } }
func WithClock(now func() time.Time) Option      { return func(a *TrendAggregator) { a.now = now } }

func NewTrendAggregator(st *store.Holder, interval time.Duration, size int, log *logrus.Entry, opts ...Option) *TrendAggregator {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if size <= 0 {
		size = 20
	}
	a := &TrendAggregator{
		store:    st,
		interval: interval,
		size:     size,
		loc:      time.Local,
		now:      time.Now,
		log:      log,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Start samples once immediately, then on every tick until ctx is done.
func (a *TrendAggregator) Start(ctx context.Context) {
	a.Sample(ctx)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Sample(ctx)
		}
	}
}

// Sample appends the current rounded means and threshold as a new point.
func (a *TrendAggregator) Sample(ctx context.Context) TrendPoint {
	data := a.store.Load(ctx)
	now := a.now()
	p := TrendPoint{
		Time:        now.In(a.loc).Format("15:04"),
		Humidity:    data.RoundedMean(entities.KindHumidity),
		Temperature: data.RoundedMean(entities.KindTemperature),
		Threshold:   data.Config.HumidityThreshold,
		At:          now.UTC(),
	}

	a.mutex.Lock()
	a.points = append(a.points, p)
	if over := len(a.points) - a.size; over > 0 {
		a.points = append([]TrendPoint(nil), a.points[over:]...)
	}
	a.mutex.Unlock()

	if a.publisher != nil {
		if err := a.publisher.PublishMessage(p); err != nil {
			a.log.WithError(err).Warn("trend publish failed")
		}
	}
	a.log.WithFields(logrus.Fields{"humidity": p.Humidity, "temperature": p.Temperature}).Debug("trend sampled")
	return p
}

// Points returns the retained points, oldest first.
func (a *TrendAggregator) Points() []TrendPoint {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	return append([]TrendPoint(nil), a.points...)
}
