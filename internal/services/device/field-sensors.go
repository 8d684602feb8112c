package device

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// FieldReading is the payload of citriflow/device/{humidity|temperature}.
type FieldReading struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

type seen struct {
	value float64
	at    time.Time
}

// FieldSensors keeps the last reading per kind received from field hardware.
// A reading older than the liveness TTL is treated as missing.
type FieldSensors struct {
	ttl  time.Duration
	now  func() time.Time
	last sync.Map // kind -> seen
}

func NewFieldSensors(ttl time.Duration) *FieldSensors {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &FieldSensors{ttl: ttl, now: time.Now}
}

// OnReading stores a reading from topic citriflow/device/{kind}.
func (f *FieldSensors) OnReading(topic string, payload []byte) error {
	kind := entities.SensorKind(strings.TrimPrefix(topic, FieldTopicPrefix))
	if kind != entities.KindHumidity && kind != entities.KindTemperature {
		return errors.Errorf("unknown sensor kind in topic %s", topic)
	}
	var r FieldReading
	if err := json.Unmarshal(payload, &r); err != nil {
		return errors.Wrapf(err, "decode reading on %s", topic)
	}
	f.last.Store(kind, seen{value: r.Value, at: f.now()})
	return nil
}

// Read implements the simulator's device source.
func (f *FieldSensors) Read(_ context.Context, kind entities.SensorKind) (float64, bool) {
	v, ok := f.last.Load(kind)
	if !ok {
		return 0, false
	}
	s := v.(seen)
	if f.now().Sub(s.at) >= f.ttl {
		return 0, false
	}
	return s.value, true
}
