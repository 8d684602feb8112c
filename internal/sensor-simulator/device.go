package sensor_simulator

import (
	"context"

	"github.com/CrissP24/citrus-flow-sim/internal/model/entities"
)

// DeviceSensors is a source of real readings. ok is false when no reading is available,
// which is the normal case without hardware.
type DeviceSensors interface {
	Read(ctx context.Context, kind entities.SensorKind) (value float64, ok bool)
}

// NoDevice never has a reading.
type NoDevice struct{}

func (NoDevice) Read(context.Context, entities.SensorKind) (float64, bool) { return 0, false }

// Chain asks each source in order and returns the first reading.
type Chain []DeviceSensors

func (c Chain) Read(ctx context.Context, kind entities.SensorKind) (float64, bool) {
	for _, d := range c {
		if d == nil {
			continue
		}
		if v, ok := d.Read(ctx, kind); ok {
			return v, true
		}
	}
	return 0, false
}
