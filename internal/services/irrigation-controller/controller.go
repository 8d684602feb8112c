package irrigation_controller

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/internal/model/messages"
	"github.com/CrissP24/citrus-flow-sim/internal/store"
	"github.com/CrissP24/citrus-flow-sim/pkg/metrics"
)

// ErrInvalidTrigger is returned for triggers other than manual and automatic.
var ErrInvalidTrigger = errors.New("invalid irrigation trigger")

// nominal duration (minutes) recorded for automatic irrigations
const automaticDurationMin = 15

// Controller owns the pump: activation bookkeeping, the single pending
// deactivation and the auto-irrigation rule.
type Controller struct {
	store     *store.Holder
	scheduler Scheduler
	manualRun time.Duration
	autoRun   time.Duration
	now       func() time.Time
	newID     func() string
	log       *logrus.Entry
	metrics   *metrics.Metrics

	// una sola disattivazione pendente
	mu    sync.Mutex
	timer Timer
	gen   uint64

	lmu       sync.RWMutex
	listeners []func(messages.PumpStateEvent)
}

type Option func(*Controller)

func WithScheduler(s Scheduler) Option        { return func(c *Controller) { c.scheduler = s } }
func WithClock(now func() time.Time) Option   { return func(c *Controller) { c.now = now } }
func WithIDGenerator(fn func() string) Option { return func(c *Controller) { c.newID = fn } }
func WithMetrics(m *metrics.Metrics) Option   { return func(c *Controller) { c.metrics = m } }

// WithRunTimes sets how long the pump runs for manual and automatic activations.
func WithRunTimes(manual, automatic time.Duration) Option {
	return func(c *Controller) { c.manualRun, c.autoRun = manual, automatic }
}

func NewController(st *store.Holder, log *logrus.Entry, opts ...Option) *Controller {
	c := &Controller{
		store:     st,
		scheduler: realScheduler{},
		manualRun: 30 * time.Second,
		autoRun:   15 * time.Second,
		now:       time.Now,
		newID:     func() string { return "irr-" + uuid.NewString() },
		log:       log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnStateChange registers fn for every pump transition.
func (c *Controller) OnStateChange(fn func(messages.PumpStateEvent)) {
	c.lmu.Lock()
	c.listeners = append(c.listeners, fn)
	c.lmu.Unlock()
}

// RunTime is the scheduled run time for a trigger.
func (c *Controller) RunTime(trigger entities.TriggerType) time.Duration {
	if trigger == entities.TriggerAutomatic {
		return c.autoRun
	}
	return c.manualRun
}

// Activate starts the pump and appends a history record. Activating an already
// running pump records a new entry and replaces the pending deactivation.
func (c *Controller) Activate(ctx context.Context, trigger entities.TriggerType) (entities.IrrigationRecord, error) {
	if !trigger.Valid() {
		return entities.IrrigationRecord{}, errors.Wrapf(ErrInvalidTrigger, "%q", trigger)
	}
	var rec entities.IrrigationRecord

	// c.mu copre scrittura e timer: ordine c.mu -> store
	c.mu.Lock()
	c.store.Transact(ctx, func(d *entities.SystemData) bool {
		rec = c.apply(d, trigger)
		return true
	})
	runFor := c.scheduleLocked(rec.Type)
	c.mu.Unlock()

	c.started(rec, runFor)
	return rec, nil
}

// Evaluate applies the auto-irrigation rule: with auto mode on, pump off and the
// mean of the active humidity sensors below the threshold, the pump starts as automatic.
// Without active humidity sensors nothing happens. Check and activation share one transaction.
func (c *Controller) Evaluate(ctx context.Context) bool {
	var (
		rec       entities.IrrigationRecord
		activated bool
		runFor    time.Duration
	)
	c.mu.Lock()
	c.store.Transact(ctx, func(d *entities.SystemData) bool {
		if !ShouldAutoIrrigate(d) {
			return false
		}
		rec = c.apply(d, entities.TriggerAutomatic)
		activated = true
		return true
	})
	if activated {
		runFor = c.scheduleLocked(rec.Type)
	}
	c.mu.Unlock()

	if activated {
		c.log.WithFields(logrus.Fields{"humidity": rec.Humidity, "record": rec.ID}).Info("auto irrigation triggered")
		c.started(rec, runFor)
	}
	return activated
}

// ShouldAutoIrrigate reports whether the auto rule fires on d.
func ShouldAutoIrrigate(d *entities.SystemData) bool {
	if !d.Config.AutoIrrigation || d.Config.PumpActive {
		return false
	}
	mean, ok := d.Mean(entities.KindHumidity)
	return ok && mean < d.Config.HumidityThreshold
}

// Deactivate stops the pump and cancels any pending deactivation. Idempotent.
func (c *Controller) Deactivate(ctx context.Context) {
	c.mu.Lock()
	c.cancelLocked()
	evt, changed := c.stopLocked(ctx, messages.ReasonManualOff)
	c.mu.Unlock()
	c.stopped(evt, changed)
}

func (c *Controller) apply(d *entities.SystemData, trigger entities.TriggerType) entities.IrrigationRecord {
	now := c.now()
	d.Config.PumpActive = true
	d.Config.LastUpdate = entities.NewTimestamp(now)

	rec := entities.IrrigationRecord{
		ID:          c.newID(),
		Timestamp:   entities.NewTimestamp(now),
		Humidity:    d.RoundedMean(entities.KindHumidity),
		Temperature: d.RoundedMean(entities.KindTemperature),
		PumpStatus:  true,
		Type:        trigger,
	}
	if trigger == entities.TriggerAutomatic {
		dur := automaticDurationMin
		rec.Duration = &dur
	}
	d.PrependRecord(rec)
	return rec
}

// scheduleLocked replaces the pending deactivation. c.mu must be held.
func (c *Controller) scheduleLocked(trigger entities.TriggerType) time.Duration {
	runFor := c.RunTime(trigger)
	c.cancelLocked()
	gen := c.gen
	c.timer = c.scheduler.AfterFunc(runFor, func() { c.expire(gen) })
	return runFor
}

func (c *Controller) started(rec entities.IrrigationRecord, runFor time.Duration) {
	c.metrics.PumpActivated(string(rec.Type))
	c.log.WithFields(logrus.Fields{"trigger": rec.Type, "record": rec.ID, "run_for": runFor}).Info("pump activated")
	c.emit(messages.PumpStateEvent{
		Active:      true,
		Trigger:     rec.Type,
		Reason:      messages.ReasonActivated,
		RecordID:    rec.ID,
		Humidity:    rec.Humidity,
		Temperature: rec.Temperature,
		RunFor:      runFor,
		Timestamp:   rec.Timestamp.Time,
	})
}

// expire is the timer callback; a stale generation means it was replaced or cancelled.
// The check and the store write happen under the same lock as Activate.
func (c *Controller) expire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.timer == nil {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	evt, changed := c.stopLocked(context.Background(), messages.ReasonTimer)
	c.mu.Unlock()
	c.stopped(evt, changed)
}

func (c *Controller) cancelLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
}

// stopLocked clears pumpActive; changed is false when the pump was already off.
func (c *Controller) stopLocked(ctx context.Context, reason string) (messages.PumpStateEvent, bool) {
	now := c.now()
	var wasActive bool
	c.store.Transact(ctx, func(d *entities.SystemData) bool {
		wasActive = d.Config.PumpActive
		d.Config.PumpActive = false
		d.Config.LastUpdate = entities.NewTimestamp(now)
		return true
	})
	return messages.PumpStateEvent{Active: false, Reason: reason, Timestamp: now}, wasActive
}

func (c *Controller) stopped(evt messages.PumpStateEvent, changed bool) {
	c.metrics.PumpStopped()
	if !changed {
		return
	}
	c.log.WithField("reason", evt.Reason).Info("pump deactivated")
	c.emit(evt)
}

// Pending reports whether a deactivation is scheduled.
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timer != nil
}

func (c *Controller) emit(evt messages.PumpStateEvent) {
	c.lmu.RLock()
	ls := append([]func(messages.PumpStateEvent){}, c.listeners...)
	c.lmu.RUnlock()
	for _, fn := range ls {
		fn(evt)
	}
}
