// Package store keeps the CitriFlow aggregate and the login marker in a kvstore backend.
// Every read-modify-write goes through Transact, serialised by one mutex.
package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
	"github.com/CrissP24/citrus-flow-sim/pkg/kvstore"
	"github.com/CrissP24/citrus-flow-sim/pkg/metrics"
)

// Storage keys.
const (
	DataKey    = "citriflow-data"
	SessionKey = "citriflow-auth"
)

type Holder struct {
	mu      sync.Mutex
	backend kvstore.Backend
	log     *logrus.Entry
	metrics *metrics.Metrics
	now     func() time.Time

	lastErrMu sync.RWMutex
	lastErr   error
}

type Option func(*Holder)

func WithMetrics(m *metrics.Metrics) Option { return func(h *Holder) { h.metrics = m } }

func WithClock(now func() time.Time) Option { return func(h *Holder) { h.now = now } }

func New(backend kvstore.Backend, log *logrus.Entry, opts ...Option) *Holder {
	h := &Holder{backend: backend, log: log, now: time.Now}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Load returns the stored aggregate. When it is missing or unreadable the
// initial snapshot is written and returned instead.
func (h *Holder) Load(ctx context.Context) entities.SystemData {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

// Save overwrites the aggregate. Failures are logged, never returned.
func (h *Holder) Save(ctx context.Context, data entities.SystemData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.save(ctx, data)
}

// Transact loads the aggregate, hands it to fn and saves it if fn returns true.
// It returns the aggregate as left by fn.
func (h *Holder) Transact(ctx context.Context, fn func(d *entities.SystemData) bool) entities.SystemData {
	h.mu.Lock()
	defer h.mu.Unlock()
	data := h.load(ctx)
	if fn(&data) {
		h.save(ctx, data)
	}
	return data
}

func (h *Holder) load(ctx context.Context) entities.SystemData {
	raw, err := h.backend.Get(ctx, DataKey)
	if err == nil {
		var data entities.SystemData
		if err = json.Unmarshal(raw, &data); err == nil {
			h.setErr(nil)
			return data
		}
		err = errors.Wrap(err, "decode stored data")
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		h.fail("load", err)
	}

	data := entities.InitialSystemData(h.now())
	h.save(ctx, data)
	return data
}

func (h *Holder) save(ctx context.Context, data entities.SystemData) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.fail("save", errors.Wrap(err, "encode data"))
		return
	}
	if err := h.backend.Set(ctx, DataKey, raw); err != nil {
		h.fail("save", err)
	}
}

// Session returns the stored login marker, if any.
func (h *Holder) Session(ctx context.Context) (entities.Session, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, err := h.backend.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			h.fail("session_get", err)
		}
		return entities.Session{}, false
	}
	var s entities.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		h.fail("session_get", errors.Wrap(err, "decode session"))
		return entities.Session{}, false
	}
	return s, true
}

func (h *Holder) SetSession(ctx context.Context, s entities.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	raw, _ := json.Marshal(s)
	if err := h.backend.Set(ctx, SessionKey, raw); err != nil {
		h.fail("session_set", err)
	}
}

func (h *Holder) ClearSession(ctx context.Context) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.backend.Delete(ctx, SessionKey); err != nil {
		h.fail("session_clear", err)
	}
}

// LastError is the most recent storage failure, cleared by the next successful read.
func (h *Holder) LastError() error {
	h.lastErrMu.RLock()
	defer h.lastErrMu.RUnlock()
	return h.lastErr
}

func (h *Holder) fail(op string, err error) {
	h.log.WithError(err).WithField("op", op).Error("storage failure")
	h.metrics.StoreFailure(op)
	h.setErr(err)
}

func (h *Holder) setErr(err error) {
	h.lastErrMu.Lock()
	h.lastErr = err
	h.lastErrMu.Unlock()
}

func (h *Holder) Close() error {
	return h.backend.Close()
}
